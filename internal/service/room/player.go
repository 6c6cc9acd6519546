package room

import (
	"context"
	"math"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/connection"
)

const (
	ActionPlay        = "play"
	ActionPause       = "pause"
	ActionSeek        = "seek"
	ActionChangeVideo = "changeVideo"
)

type PlaybackParams struct {
	Conn      connection.Conn
	RoomId    string
	UserId    string
	Action    string
	AtTimeSec *float64
	VideoId   string
}

// HandlePlayback reconciles one playback command. The sender must win the
// control lease; a lost race is dropped silently, as is a no-op command.
// The client discovers the outcome from the next authoritative room_state.
func (s *service) HandlePlayback(ctx context.Context, params *PlaybackParams) error {
	// validation precedes arbitration: a rejected command must not capture
	// or refresh the lease. Resolving the target video is also the only
	// suspending step, so it runs before the lock.
	var video domain.Video
	switch params.Action {
	case ActionPlay, ActionPause:
	case ActionSeek:
		if params.AtTimeSec == nil {
			return domain.ErrInvalidSeekTime
		}
		if at := *params.AtTimeSec; math.IsNaN(at) || math.IsInf(at, 0) || at < 0 {
			return domain.ErrInvalidSeekTime
		}
	case ActionChangeVideo:
		if params.VideoId == "" {
			return ErrMissingVideoId
		}

		v, err := s.videoRepo.Resolve(ctx, params.VideoId)
		if err != nil {
			s.logger.InfoContext(ctx, "failed to resolve video", "error", err)
			return ErrVideoNotFound
		}
		video = v
	default:
		return ErrMalformedPayload
	}

	now := s.now()

	s.mu.Lock()

	room, err := s.roomRepo.Get(params.RoomId)
	if err != nil {
		s.mu.Unlock()
		return ErrRoomNotFound
	}

	if !room.AcquireLease(params.UserId, now, s.cfg.LeaseDuration) {
		s.mu.Unlock()
		return nil
	}

	playback := room.Playback.Extrapolate(now)

	var changed, resume bool
	switch params.Action {
	case ActionPlay:
		playback, changed = playback.Play(now)
	case ActionPause:
		playback, changed = playback.Pause(now)
		if changed {
			room.LastPauseBy = params.UserId
			room.LastPauseAt = now
		}
	case ActionSeek:
		playback, changed, err = playback.Seek(*params.AtTimeSec, now)
		if err != nil {
			s.mu.Unlock()
			return err
		}

		// a seek right after the same user's pause is a scrub gesture:
		// releasing the seek bar implies resuming
		if changed && !playback.IsPlaying &&
			room.LastPauseBy == params.UserId && now.Sub(room.LastPauseAt) <= s.cfg.ResumeWindow {
			resume = true
		}
	case ActionChangeVideo:
		playback, changed = playback.ChangeVideo(video, now)
	}

	if !changed {
		s.mu.Unlock()
		return nil
	}

	room.Playback = playback
	room.BumpRevision()

	if resume {
		room.Playback, _ = room.Playback.Play(now)
		room.BumpRevision()
		room.LastPauseBy = ""
	}

	snapshot := s.roomSnapshot(room, now)
	sender := domain.UserSender(params.UserId, room.DisplayName(params.UserId))

	if params.Action == ActionChangeVideo {
		conns := s.connRepo.GetConnsByRoomId(room.Id)
		s.mu.Unlock()

		s.broadcast(ctx, conns, roomStateOutput(snapshot, ReasonVideoChange, sender, ActionChangeVideo), nil)

		return nil
	}

	s.enqueueBurst(room.Id, params.UserId, params.Action, params.Conn)

	s.mu.Unlock()

	// echo authoritative state to the originator right away; everyone else
	// gets the coalesced broadcast once the burst settles
	s.writeToConn(ctx, params.Conn, roomStateOutput(snapshot, ReasonPlayback, sender, params.Action))

	return nil
}
