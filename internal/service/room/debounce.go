package room

import (
	"context"
	"slices"
	"time"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/connection"
)

type burstKey struct {
	roomId string
	userId string
}

type pendingBurst struct {
	timer   *time.Timer
	gen     uint64
	actions []string
	conn    connection.Conn
}

// enqueueBurst queues an applied playback event for the (room, user) pair
// and restarts the debounce window. Callers hold s.mu. The timer closure
// captures identifiers and a generation only and re-resolves state at fire
// time, so it degrades to a no-op if the room or member is gone, or if a
// newer event restarted the window while the old timer was already past
// Stop (an expired timer blocked on the lock must not flush early).
func (s *service) enqueueBurst(roomId, userId, action string, conn connection.Conn) {
	key := burstKey{roomId: roomId, userId: userId}

	burst, ok := s.pending[key]
	if !ok {
		burst = &pendingBurst{}
		s.pending[key] = burst
	}

	burst.actions = append(burst.actions, action)
	burst.conn = conn
	burst.gen++

	gen := burst.gen
	if burst.timer != nil {
		burst.timer.Stop()
	}
	burst.timer = time.AfterFunc(s.cfg.DebounceWindow, func() {
		s.flushBurst(context.Background(), roomId, userId, gen)
	})
}

// flushBurst coalesces the queued events and broadcasts the result to every
// connection in the room except the one that issued the latest event. A
// burst containing any seek collapses to a single seek: later seeks
// supersede the play/pause/seek noise of the same gesture.
func (s *service) flushBurst(ctx context.Context, roomId, userId string, gen uint64) {
	key := burstKey{roomId: roomId, userId: userId}

	s.mu.Lock()

	burst, ok := s.pending[key]
	if !ok || burst.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, key)

	room, err := s.roomRepo.Get(roomId)
	if err != nil || !room.HasMember(userId) {
		s.mu.Unlock()
		return
	}

	actions := burst.actions
	if slices.Contains(actions, ActionSeek) {
		actions = []string{ActionSeek}
	}

	snapshot := s.roomSnapshot(room, s.now())
	sender := domain.UserSender(userId, room.DisplayName(userId))
	conns := s.connRepo.GetConnsByRoomId(roomId)
	exclude := burst.conn

	s.mu.Unlock()

	for _, action := range actions {
		s.broadcast(ctx, conns, roomStateOutput(snapshot, ReasonPlayback, sender, action), exclude)
	}
}

// cancelBurst discards any pending debounce for the pair. Callers hold s.mu.
func (s *service) cancelBurst(roomId, userId string) {
	key := burstKey{roomId: roomId, userId: userId}

	if burst, ok := s.pending[key]; ok {
		burst.timer.Stop()
		delete(s.pending, key)
	}
}
