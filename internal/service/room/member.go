package room

import (
	"context"

	"github.com/vidroom/server/internal/domain"
)

type SetNicknameParams struct {
	RoomId   string
	UserId   string
	Nickname string
}

// SetNickname validates and records a new display name. Re-setting the
// current nickname is a no-op: no revision bump, no broadcast.
func (s *service) SetNickname(ctx context.Context, params *SetNicknameParams) error {
	s.mu.Lock()

	room, err := s.roomRepo.Get(params.RoomId)
	if err != nil {
		s.mu.Unlock()
		return ErrRoomNotFound
	}

	changed, err := room.SetNickname(params.UserId, params.Nickname)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	if !changed {
		s.mu.Unlock()
		return nil
	}

	now := s.now()
	room.Playback = room.Playback.Extrapolate(now)
	room.BumpRevision()

	snapshot := s.roomSnapshot(room, now)
	sender := domain.UserSender(params.UserId, room.DisplayName(params.UserId))
	conns := s.connRepo.GetConnsByRoomId(room.Id)

	s.mu.Unlock()

	s.broadcast(ctx, conns, roomStateOutput(snapshot, ReasonNicknameChange, sender, ""), nil)

	return nil
}
