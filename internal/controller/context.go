package controller

import (
	"context"

	"github.com/vidroom/server/internal/repository/connection"
)

type contextKey int

const (
	roomIdCtxKey contextKey = iota
	userIdCtxKey
	connCtxKey
)

func (c controller) getRoomIdFromCtx(ctx context.Context) string {
	roomId, ok := ctx.Value(roomIdCtxKey).(string)
	if !ok {
		return ""
	}

	return roomId
}

func (c controller) getUserIdFromCtx(ctx context.Context) string {
	userId, ok := ctx.Value(userIdCtxKey).(string)
	if !ok {
		return ""
	}

	return userId
}

func (c controller) getConnFromCtx(ctx context.Context) connection.Conn {
	conn, ok := ctx.Value(connCtxKey).(connection.Conn)
	if !ok {
		return nil
	}

	return conn
}
