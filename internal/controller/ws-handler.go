package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/repository/connection"
	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/ctxlogger"
)

func (c controller) serveWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wsConn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to upgrade connection", "error", err)
		return
	}

	// gorilla allows exactly one writer at a time; every write after this
	// point goes through the serialized wrapper
	conn := connection.NewSyncConn(wsConn)

	query := r.URL.Query()

	var connectResp room.ConnectResponse
	if connectToken := query.Get("connect-token"); connectToken != "" {
		connectResp, err = c.roomService.ConnectWithToken(ctx, &room.ConnectWithTokenParams{
			Conn:         conn,
			ConnectToken: connectToken,
		})
	} else {
		connectResp, err = c.roomService.Connect(ctx, &room.ConnectParams{
			Conn:        conn,
			RoomId:      query.Get("room-id"),
			UserId:      query.Get("user-id"),
			Nickname:    query.Get("nickname"),
			InviteToken: query.Get("invite-token"),
		})
	}
	if err != nil {
		// admission failures are fatal to the connection attempt
		c.logger.InfoContext(ctx, "connection rejected", "error", err)
		conn.WriteJSON(room.ErrorOutput(err))
		conn.Close()
		return
	}

	ctx = context.WithValue(ctx, roomIdCtxKey, connectResp.RoomId)
	ctx = context.WithValue(ctx, userIdCtxKey, connectResp.UserId)
	ctx = context.WithValue(ctx, connCtxKey, conn)
	ctx = ctxlogger.AppendCtx(ctx,
		slog.String("room_id", connectResp.RoomId),
		slog.String("user_id", connectResp.UserId),
	)

	defer func() {
		c.roomService.Disconnect(ctx, &room.DisconnectParams{Conn: conn})
		conn.Close()
	}()

	if err := c.getWSRouter().ServeConn(ctx, wsConn); err != nil {
		c.logger.DebugContext(ctx, "connection closed", "error", err)
	}
}

type playbackInput struct {
	Action    string   `json:"action"`
	AtTimeSec *float64 `json:"atTimeSec"`
	VideoId   string   `json:"videoId"`
}

func (c controller) handlePlayback(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	var input playbackInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return room.ErrMalformedPayload
	}

	return c.roomService.HandlePlayback(ctx, &room.PlaybackParams{
		Conn:      c.getConnFromCtx(ctx),
		RoomId:    c.getRoomIdFromCtx(ctx),
		UserId:    c.getUserIdFromCtx(ctx),
		Action:    input.Action,
		AtTimeSec: input.AtTimeSec,
		VideoId:   input.VideoId,
	})
}

type chatInput struct {
	Message          string  `json:"message"`
	ReplyToMessageId *string `json:"replyToMessageId"`
}

func (c controller) handleChat(ctx context.Context, conn *websocket.Conn, payload json.RawMessage) error {
	var input chatInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return room.ErrMalformedPayload
	}

	_, err := c.roomService.PostChatMessage(ctx, &room.PostChatMessageParams{
		RoomId:           c.getRoomIdFromCtx(ctx),
		UserId:           c.getUserIdFromCtx(ctx),
		Text:             input.Message,
		ReplyToMessageId: input.ReplyToMessageId,
	})

	return err
}

func (c controller) handleSync(ctx context.Context, _ *websocket.Conn, _ json.RawMessage) error {
	return c.roomService.SyncState(ctx, &room.SyncStateParams{
		Conn:   c.getConnFromCtx(ctx),
		RoomId: c.getRoomIdFromCtx(ctx),
	})
}

type profileInput struct {
	Action   string `json:"action"`
	Nickname string `json:"nickname"`
}

func (c controller) handleProfile(ctx context.Context, _ *websocket.Conn, payload json.RawMessage) error {
	var input profileInput
	if err := json.Unmarshal(payload, &input); err != nil {
		return room.ErrMalformedPayload
	}

	if input.Action != "setNickname" {
		return room.ErrMalformedPayload
	}

	return c.roomService.SetNickname(ctx, &room.SetNicknameParams{
		RoomId:   c.getRoomIdFromCtx(ctx),
		UserId:   c.getUserIdFromCtx(ctx),
		Nickname: input.Nickname,
	})
}

type pongPayload struct {
	At time.Time `json:"at"`
}

func (c controller) handlePing(ctx context.Context, _ *websocket.Conn, _ json.RawMessage) error {
	return c.getConnFromCtx(ctx).WriteJSON(&room.Output{
		Type:    "pong",
		Payload: pongPayload{At: time.Now()},
	})
}
