package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/rest"
)

type createRoomInput struct {
	VideoId  string `json:"video_id" validate:"required"`
	UserId   string `json:"user_id" validate:"required"`
	Nickname string `json:"nickname" validate:"omitempty,min=1,max=32"`
}

type createRoomResponse struct {
	Room        room.RoomSnapshot `json:"room"`
	InviteToken string            `json:"invite_token"`
}

func (c controller) createRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var input createRoomInput
	if err := rest.ReadJSON(r, &input); err != nil {
		c.logger.InfoContext(ctx, "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.InfoContext(ctx, "failed to validate input", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	createRoomResp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		VideoId:  input.VideoId,
		UserId:   input.UserId,
		Nickname: input.Nickname,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to create room", "error", err)
		rest.WriteJSON(w, restStatus(err), rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusCreated, rest.Envelope{"data": createRoomResponse{
		Room:        createRoomResp.Room,
		InviteToken: createRoomResp.InviteToken,
	}})
}

type joinRoomInput struct {
	UserId      string `json:"user_id" validate:"required"`
	Nickname    string `json:"nickname" validate:"omitempty,min=1,max=32"`
	InviteToken string `json:"invite_token" validate:"required"`
}

type joinRoomResponse struct {
	ConnectToken string `json:"connect_token"`
}

func (c controller) joinRoom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	roomId := chi.URLParam(r, "room-id")
	if roomId == "" {
		rest.WriteJSON(w, http.StatusNotFound, rest.Envelope{"error": room.ErrRoomNotFound.Error()})
		return
	}

	var input joinRoomInput
	if err := rest.ReadJSON(r, &input); err != nil {
		c.logger.InfoContext(ctx, "failed to read json", "error", err)
		rest.WriteJSON(w, http.StatusUnprocessableEntity, rest.Envelope{"error": err.Error()})
		return
	}

	if validationErrors, ok := c.validate.Validate(input); !ok {
		c.logger.InfoContext(ctx, "failed to validate input", "errors", validationErrors)
		rest.WriteJSON(w, http.StatusBadRequest, rest.Envelope{"errors": validationErrors})
		return
	}

	connectToken, err := c.roomService.CreateJoinSession(ctx, &room.CreateJoinSessionParams{
		RoomId:      roomId,
		UserId:      input.UserId,
		Nickname:    input.Nickname,
		InviteToken: input.InviteToken,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to create join session", "error", err)
		rest.WriteJSON(w, restStatus(err), rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": joinRoomResponse{
		ConnectToken: connectToken,
	}})
}

func (c controller) listVideos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	videos, err := c.roomService.ListVideos(ctx)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to list videos", "error", err)
		rest.WriteJSON(w, http.StatusInternalServerError, rest.Envelope{"error": err.Error()})
		return
	}

	rest.WriteJSON(w, http.StatusOK, rest.Envelope{"data": videos})
}
