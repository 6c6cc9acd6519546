package room

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/connection"
	"github.com/vidroom/server/internal/repository/session"
	"github.com/vidroom/server/pkg/randstr"
)

// Error text doubles as the wire error code.
var (
	ErrRoomNotFound        = errors.New("room_not_found")
	ErrMissingUserId       = errors.New("missing_user_id")
	ErrInvalidInviteToken  = errors.New("invalid_invite_token")
	ErrInvalidConnectToken = errors.New("invalid_connect_token")
	ErrRoomFull            = errors.New("room_full")
	ErrMissingVideoId      = errors.New("missing_video_id")
	ErrVideoNotFound       = errors.New("video_not_found")
	ErrMalformedPayload    = errors.New("malformed_payload")
)

type iRoomRepo interface {
	Add(*domain.Room) error
	Get(roomId string) (*domain.Room, error)
	Ids() []string
}

type iConnRepo interface {
	Add(conn connection.Conn, roomId, userId string) error
	RemoveByConn(conn connection.Conn) (roomId, userId string, remaining int, err error)
	GetConnsByRoomId(roomId string) []connection.Conn
	GetUserConns(roomId, userId string) []connection.Conn
	RoomIds() []string
}

type iSessionRepo interface {
	SetConnectSession(context.Context, *session.SetConnectSessionParams) error
	GetConnectSession(ctx context.Context, sessionId string) (session.ConnectSession, error)
}

type iVideoRepo interface {
	Resolve(ctx context.Context, videoId string) (domain.Video, error)
	List(ctx context.Context) ([]domain.Video, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	Secret           string
	MembersLimit     int
	LeaseDuration    time.Duration
	DebounceWindow   time.Duration
	ResumeWindow     time.Duration
	SyncInterval     time.Duration
	ChatHistoryLimit int
}

type service struct {
	roomRepo    iRoomRepo
	connRepo    iConnRepo
	sessionRepo iSessionRepo
	videoRepo   iVideoRepo
	generator   iGenerator
	logger      *slog.Logger
	cfg         Config

	// mu serializes every room mutation: the engine processes one message
	// at a time, never suspending mid-mutation. I/O (video resolve, session
	// fetch) happens strictly before the lock is taken.
	mu      sync.Mutex
	pending map[burstKey]*pendingBurst

	now func() time.Time
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, sessionRepo iSessionRepo, videoRepo iVideoRepo, logger *slog.Logger, cfg *Config) *service {
	s := service{
		roomRepo:    roomRepo,
		connRepo:    connRepo,
		sessionRepo: sessionRepo,
		videoRepo:   videoRepo,
		logger:      logger,
		cfg:         *cfg,
		pending:     make(map[burstKey]*pendingBurst),
		now:         time.Now,
	}

	if s.cfg.LeaseDuration <= 0 {
		s.cfg.LeaseDuration = 2 * time.Second
	}
	if s.cfg.DebounceWindow <= 0 {
		s.cfg.DebounceWindow = 250 * time.Millisecond
	}
	if s.cfg.ResumeWindow <= 0 {
		s.cfg.ResumeWindow = 500 * time.Millisecond
	}
	if s.cfg.SyncInterval <= 0 {
		s.cfg.SyncInterval = 2 * time.Second
	}
	if s.cfg.ChatHistoryLimit <= 0 {
		s.cfg.ChatHistoryLimit = 200
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

func (s *service) ListVideos(ctx context.Context) ([]domain.Video, error) {
	return s.videoRepo.List(ctx)
}
