package domain

import (
	"errors"
	"math"
	"time"
)

// seekEpsilon is the dead zone around the current position. Clients
// periodically re-report their local position; seeks landing inside the
// epsilon are noise, not commands.
const seekEpsilon = 1.0

var ErrInvalidSeekTime = errors.New("invalid_seek_time")

type Video struct {
	Id  string `json:"id"`
	URL string `json:"url"`
}

// PlaybackState is the stored playback position of a room. While IsPlaying
// is true the actual position at any instant is Position plus the wall time
// elapsed since UpdatedAt; the stored value is only frozen by the next
// applied command or periodic tick.
type PlaybackState struct {
	VideoId   string
	VideoURL  string
	Position  float64
	IsPlaying bool
	UpdatedAt time.Time
}

// Extrapolate advances the state to now. Callers must extrapolate before
// reading or before applying a command so elapsed play time is neither lost
// nor double-counted.
func (p PlaybackState) Extrapolate(now time.Time) PlaybackState {
	if !p.IsPlaying {
		return p
	}

	elapsed := now.Sub(p.UpdatedAt).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}

	p.Position += elapsed
	p.UpdatedAt = now

	return p
}

func (p PlaybackState) Play(now time.Time) (PlaybackState, bool) {
	if p.IsPlaying {
		return p, false
	}

	p.IsPlaying = true
	p.UpdatedAt = now

	return p, true
}

func (p PlaybackState) Pause(now time.Time) (PlaybackState, bool) {
	if !p.IsPlaying {
		return p, false
	}

	p.IsPlaying = false
	p.UpdatedAt = now

	return p, true
}

func (p PlaybackState) Seek(atTimeSec float64, now time.Time) (PlaybackState, bool, error) {
	if math.IsNaN(atTimeSec) || math.IsInf(atTimeSec, 0) || atTimeSec < 0 {
		return p, false, ErrInvalidSeekTime
	}

	if math.Abs(p.Position-atTimeSec) <= seekEpsilon {
		return p, false, nil
	}

	p.Position = atTimeSec
	p.UpdatedAt = now

	return p, true, nil
}

func (p PlaybackState) ChangeVideo(video Video, now time.Time) (PlaybackState, bool) {
	if p.VideoId == video.Id {
		return p, false
	}

	p.VideoId = video.Id
	p.VideoURL = video.URL
	p.Position = 0
	p.IsPlaying = false
	p.UpdatedAt = now

	return p, true
}
