package controller

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/service/room"
)

func (c controller) generateTimeBasedId() string {
	return fmt.Sprintf("%d-%04d", time.Now().UnixMilli(), rand.IntN(10000))
}

func restStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrRoomNotFound), errors.Is(err, room.ErrVideoNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrInvalidInviteToken):
		return http.StatusForbidden
	case errors.Is(err, room.ErrRoomFull):
		return http.StatusConflict
	case errors.Is(err, room.ErrMissingUserId),
		errors.Is(err, room.ErrMissingVideoId),
		errors.Is(err, domain.ErrInvalidNickname):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
