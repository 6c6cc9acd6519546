package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidNickname       = errors.New("invalid_nickname")
	ErrMessageEmpty          = errors.New("message_empty")
	ErrInvalidReplyMessageId = errors.New("invalid_reply_message_id")
	ErrReplyMessageNotFound  = errors.New("reply_message_not_found")
)

const maxNicknameLength = 32

type ChatMessage struct {
	Id               string
	RoomId           string
	UserId           string
	Nickname         string
	Text             string
	ReplyToMessageId *string
	CreatedAt        time.Time
}

// ControlLease is the time-boxed exclusive right to mutate playback. It is
// never explicitly released; it lapses after its duration, which is how a
// disconnected holder stops blocking everyone else.
type ControlLease struct {
	HolderId  string
	ExpiresAt time.Time
}

// Room owns all mutable room state. Snapshots handed to broadcasts are
// read-only projections taken at send time; nothing here is shared.
type Room struct {
	Id          string
	CreatorId   string
	InviteToken string
	Members     map[string]struct{}
	Profiles    map[string]string
	Playback    PlaybackState
	Revision    int64
	CreatedAt   time.Time
	Lease       ControlLease
	Messages    []ChatMessage

	// resume-after-scrub bookkeeping
	LastPauseBy string
	LastPauseAt time.Time
}

// NewRoom creates a room at revision 1 with the creator as sole member and
// initial lease holder.
func NewRoom(id, creatorId, inviteToken string, video Video, now time.Time, leaseDuration time.Duration) *Room {
	return &Room{
		Id:          id,
		CreatorId:   creatorId,
		InviteToken: inviteToken,
		Members:     map[string]struct{}{creatorId: {}},
		Profiles:    map[string]string{creatorId: creatorId},
		Playback: PlaybackState{
			VideoId:   video.Id,
			VideoURL:  video.URL,
			Position:  0,
			IsPlaying: false,
			UpdatedAt: now,
		},
		Revision:  1,
		CreatedAt: now,
		Lease: ControlLease{
			HolderId:  creatorId,
			ExpiresAt: now.Add(leaseDuration),
		},
	}
}

func (r *Room) BumpRevision() int64 {
	r.Revision++
	return r.Revision
}

func (r *Room) HasMember(userId string) bool {
	_, ok := r.Members[userId]
	return ok
}

// AddMember is idempotent. A supplied nickname is validated and recorded;
// absent one, the profile defaults to the user id itself.
func (r *Room) AddMember(userId, nickname string) error {
	if nickname != "" {
		valid, err := validateNickname(nickname)
		if err != nil {
			return err
		}
		r.Profiles[userId] = valid
	} else if _, ok := r.Profiles[userId]; !ok {
		r.Profiles[userId] = userId
	}

	r.Members[userId] = struct{}{}

	return nil
}

// RemoveMember reports whether a removal actually occurred. The member's
// profile, lease and pause bookkeeping go with them.
func (r *Room) RemoveMember(userId string) bool {
	if _, ok := r.Members[userId]; !ok {
		return false
	}

	delete(r.Members, userId)
	delete(r.Profiles, userId)

	if r.Lease.HolderId == userId {
		r.Lease = ControlLease{}
	}
	if r.LastPauseBy == userId {
		r.LastPauseBy = ""
	}

	return true
}

func (r *Room) SetNickname(userId, nickname string) (bool, error) {
	valid, err := validateNickname(nickname)
	if err != nil {
		return false, err
	}

	if r.Profiles[userId] == valid {
		return false, nil
	}

	r.Profiles[userId] = valid

	return true, nil
}

func (r *Room) DisplayName(userId string) string {
	if nickname, ok := r.Profiles[userId]; ok {
		return nickname
	}

	return userId
}

// AcquireLease grants when there is no current holder, the holder is already
// userId, or the stored lease has expired. On grant the lease is refreshed.
func (r *Room) AcquireLease(userId string, now time.Time, duration time.Duration) bool {
	if r.Lease.HolderId != "" && r.Lease.HolderId != userId && now.Before(r.Lease.ExpiresAt) {
		return false
	}

	r.Lease = ControlLease{
		HolderId:  userId,
		ExpiresAt: now.Add(duration),
	}

	return true
}

// LeaseActiveFor reports whether userId holds an unexpired lease.
func (r *Room) LeaseActiveFor(userId string, now time.Time) bool {
	return r.Lease.HolderId == userId && now.Before(r.Lease.ExpiresAt)
}

// PostMessage validates and appends a chat message, discarding the oldest
// entries once the log exceeds historyLimit.
func (r *Room) PostMessage(userId, text string, replyToMessageId *string, now time.Time, historyLimit int) (ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return ChatMessage{}, ErrMessageEmpty
	}

	if replyToMessageId != nil {
		trimmed := strings.TrimSpace(*replyToMessageId)
		if trimmed == "" {
			return ChatMessage{}, ErrInvalidReplyMessageId
		}
		if !r.hasMessage(trimmed) {
			return ChatMessage{}, ErrReplyMessageNotFound
		}
		replyToMessageId = &trimmed
	}

	msg := ChatMessage{
		Id:               uuid.NewString(),
		RoomId:           r.Id,
		UserId:           userId,
		Nickname:         r.DisplayName(userId),
		Text:             text,
		ReplyToMessageId: replyToMessageId,
		CreatedAt:        now,
	}

	r.Messages = append(r.Messages, msg)
	if len(r.Messages) > historyLimit {
		r.Messages = r.Messages[len(r.Messages)-historyLimit:]
	}

	return msg, nil
}

func (r *Room) hasMessage(messageId string) bool {
	for i := range r.Messages {
		if r.Messages[i].Id == messageId {
			return true
		}
	}

	return false
}

func validateNickname(nickname string) (string, error) {
	trimmed := strings.TrimSpace(nickname)
	if trimmed == "" || len(trimmed) > maxNicknameLength {
		return "", ErrInvalidNickname
	}

	return trimmed, nil
}
