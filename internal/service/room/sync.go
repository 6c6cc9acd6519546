package room

import (
	"context"
	"time"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/connection"
)

type SyncStateParams struct {
	Conn   connection.Conn
	RoomId string
}

// SyncState answers a client's explicit sync request with the current
// extrapolated snapshot. Reads only; the revision is untouched.
func (s *service) SyncState(ctx context.Context, params *SyncStateParams) error {
	s.mu.Lock()

	room, err := s.roomRepo.Get(params.RoomId)
	if err != nil {
		s.mu.Unlock()
		return ErrRoomNotFound
	}

	snapshot := s.roomSnapshot(room, s.now())

	s.mu.Unlock()

	s.writeToConn(ctx, params.Conn, roomStateOutput(snapshot, ReasonSync, domain.SystemSender(), ""))

	return nil
}

// Run drives the ambient re-sync tick until the context is cancelled.
func (s *service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.syncTick(ctx)
		}
	}
}

// syncTick freezes extrapolation into storage for every playing room with
// at least one live connection and fans out a sync snapshot, skipping the
// connections of an active lease holder: that user already has the freshest
// local state and should not be redundantly corrected.
func (s *service) syncTick(ctx context.Context) {
	now := s.now()

	type delivery struct {
		msg   *Output
		conns []connection.Conn
	}
	var deliveries []delivery

	s.mu.Lock()

	for _, roomId := range s.connRepo.RoomIds() {
		room, err := s.roomRepo.Get(roomId)
		if err != nil {
			continue
		}

		if !room.Playback.IsPlaying {
			continue
		}

		room.Playback = room.Playback.Extrapolate(now)

		conns := s.connRepo.GetConnsByRoomId(roomId)
		if holder := room.Lease.HolderId; holder != "" && room.LeaseActiveFor(holder, now) {
			held := s.connRepo.GetUserConns(roomId, holder)
			conns = withoutConns(conns, held)
		}
		if len(conns) == 0 {
			continue
		}

		deliveries = append(deliveries, delivery{
			msg:   roomStateOutput(s.roomSnapshot(room, now), ReasonSync, domain.SystemSender(), ""),
			conns: conns,
		})
	}

	s.mu.Unlock()

	for _, d := range deliveries {
		s.broadcast(ctx, d.conns, d.msg, nil)
	}
}

func withoutConns(conns, excluded []connection.Conn) []connection.Conn {
	if len(excluded) == 0 {
		return conns
	}

	kept := make([]connection.Conn, 0, len(conns))
	for _, conn := range conns {
		skip := false
		for _, ex := range excluded {
			if conn == ex {
				skip = true
				break
			}
		}
		if !skip {
			kept = append(kept, conn)
		}
	}

	return kept
}
