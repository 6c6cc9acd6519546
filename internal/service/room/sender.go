package room

import (
	"context"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/connection"
)

const (
	ReasonJoin           = "join"
	ReasonLeave          = "leave"
	ReasonPlayback       = "playback"
	ReasonVideoChange    = "video_change"
	ReasonSync           = "sync"
	ReasonNicknameChange = "nickname_change"
)

type Output struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type SenderInfo struct {
	Kind        string `json:"kind"`
	UserId      string `json:"userId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type RoomStatePayload struct {
	Room   RoomSnapshot `json:"room"`
	Reason string       `json:"reason"`
	By     SenderInfo   `json:"by"`
	Action string       `json:"action,omitempty"`
}

type WelcomePayload struct {
	Room     RoomSnapshot  `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

type ChatMessagePayload struct {
	Message  ChatMessage `json:"message"`
	Revision int64       `json:"revision"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func roomStateOutput(snapshot RoomSnapshot, reason string, by domain.Sender, action string) *Output {
	return &Output{
		Type: "room_state",
		Payload: RoomStatePayload{
			Room:   snapshot,
			Reason: reason,
			By: SenderInfo{
				Kind:        string(by.Kind),
				UserId:      by.UserId,
				DisplayName: by.DisplayName,
			},
			Action: action,
		},
	}
}

func ErrorOutput(err error) *Output {
	return &Output{
		Type:    "error",
		Payload: ErrorPayload{Error: err.Error()},
	}
}

// broadcast delivers msg to every given connection except the excluded one.
// Delivery is best-effort: a dead connection is skipped, never retried; its
// own read loop handles the teardown.
func (s *service) broadcast(ctx context.Context, conns []connection.Conn, msg *Output, exclude connection.Conn) {
	for _, conn := range conns {
		if conn == exclude {
			continue
		}

		if err := conn.WriteJSON(msg); err != nil {
			s.logger.DebugContext(ctx, "failed to write to conn", "error", err)
		}
	}
}

func (s *service) writeToConn(ctx context.Context, conn connection.Conn, msg *Output) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.DebugContext(ctx, "failed to write to conn", "error", err)
	}
}
