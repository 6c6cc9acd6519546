package room

import (
	"slices"
	"time"

	"golang.org/x/exp/maps"

	"github.com/vidroom/server/internal/domain"
)

type Participant struct {
	UserId   string `json:"userId"`
	Nickname string `json:"nickname"`
}

type PlaybackSnapshot struct {
	VideoId   string    `json:"videoId"`
	VideoURL  string    `json:"videoUrl"`
	Position  float64   `json:"position"`
	IsPlaying bool      `json:"isPlaying"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RoomSnapshot is the read-only projection broadcast to clients, taken at
// send time with playback extrapolated to "now".
type RoomSnapshot struct {
	Id           string           `json:"id"`
	CreatorId    string           `json:"creatorId"`
	Participants []Participant    `json:"participants"`
	Playback     PlaybackSnapshot `json:"playback"`
	Revision     int64            `json:"revision"`
	CreatedAt    time.Time        `json:"createdAt"`
}

type ChatMessage struct {
	Id               string    `json:"id"`
	RoomId           string    `json:"roomId"`
	UserId           string    `json:"userId"`
	Nickname         string    `json:"nickname"`
	Text             string    `json:"text"`
	ReplyToMessageId *string   `json:"replyToMessageId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (s *service) roomSnapshot(room *domain.Room, now time.Time) RoomSnapshot {
	playback := room.Playback.Extrapolate(now)

	userIds := maps.Keys(room.Members)
	slices.Sort(userIds)

	participants := make([]Participant, 0, len(userIds))
	for _, userId := range userIds {
		participants = append(participants, Participant{
			UserId:   userId,
			Nickname: room.DisplayName(userId),
		})
	}

	return RoomSnapshot{
		Id:           room.Id,
		CreatorId:    room.CreatorId,
		Participants: participants,
		Playback: PlaybackSnapshot{
			VideoId:   playback.VideoId,
			VideoURL:  playback.VideoURL,
			Position:  playback.Position,
			IsPlaying: playback.IsPlaying,
			UpdatedAt: playback.UpdatedAt,
		},
		Revision:  room.Revision,
		CreatedAt: room.CreatedAt,
	}
}

func chatMessageDTO(msg domain.ChatMessage) ChatMessage {
	return ChatMessage{
		Id:               msg.Id,
		RoomId:           msg.RoomId,
		UserId:           msg.UserId,
		Nickname:         msg.Nickname,
		Text:             msg.Text,
		ReplyToMessageId: msg.ReplyToMessageId,
		CreatedAt:        msg.CreatedAt,
	}
}
