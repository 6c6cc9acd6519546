package controller

import (
	"context"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/wsrouter"
)

func (c controller) getWSRouter() *wsrouter.WSRouter {
	mux := wsrouter.New()

	mux.Use(c.wsRequestIdMw())
	mux.Use(c.wsLoggerMw())

	mux.Handle("playback", c.handlePlayback)
	mux.Handle("chat", c.handleChat)
	mux.Handle("sync", c.handleSync)
	mux.Handle("profile", c.handleProfile)
	mux.Handle("ping", c.handlePing)

	// command failures are reported to the originating connection only; the
	// connection stays open and state is left unmodified
	mux.HandleError(func(ctx context.Context, conn *websocket.Conn, err error) {
		c.logger.InfoContext(ctx, "failed to handle message", "error", err)

		if wrapped := c.getConnFromCtx(ctx); wrapped != nil {
			wrapped.WriteJSON(room.ErrorOutput(err))
			return
		}
		conn.WriteJSON(room.ErrorOutput(err))
	})

	return mux
}
