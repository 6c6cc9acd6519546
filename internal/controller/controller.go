package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/service/room"
	"github.com/vidroom/server/pkg/validator"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	CreateJoinSession(context.Context, *room.CreateJoinSessionParams) (string, error)
	Connect(context.Context, *room.ConnectParams) (room.ConnectResponse, error)
	ConnectWithToken(context.Context, *room.ConnectWithTokenParams) (room.ConnectResponse, error)
	Disconnect(context.Context, *room.DisconnectParams) error
	HandlePlayback(context.Context, *room.PlaybackParams) error
	PostChatMessage(context.Context, *room.PostChatMessageParams) (room.PostChatMessageResponse, error)
	SetNickname(context.Context, *room.SetNicknameParams) error
	SyncState(context.Context, *room.SyncStateParams) error
	ListVideos(context.Context) ([]domain.Video, error)
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger
	mediaDir    string
}

func NewController(roomService iRoomService, logger *slog.Logger, mediaDir string) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
		mediaDir:    mediaDir,
	}
}
