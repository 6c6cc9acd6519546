package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vidroom/server/internal/repository/session"
)

const connectSessionPrefix = "connect-session:"

type Repo struct {
	rc         *redis.Client
	expireTime time.Duration
}

func NewRepo(rc *redis.Client, expireTime time.Duration) *Repo {
	return &Repo{
		rc:         rc,
		expireTime: expireTime,
	}
}

func (r Repo) SetConnectSession(ctx context.Context, params *session.SetConnectSessionParams) error {
	key := connectSessionPrefix + params.SessionId

	pipe := r.rc.TxPipeline()
	pipe.HSet(ctx, key, session.ConnectSession{
		RoomId:      params.RoomId,
		UserId:      params.UserId,
		Nickname:    params.Nickname,
		InviteToken: params.InviteToken,
	})
	pipe.Expire(ctx, key, r.expireTime)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set connect session: %w", err)
	}

	return nil
}

// GetConnectSession consumes the session: it is removed on first read.
func (r Repo) GetConnectSession(ctx context.Context, sessionId string) (session.ConnectSession, error) {
	key := connectSessionPrefix + sessionId

	var s session.ConnectSession
	if err := r.rc.HGetAll(ctx, key).Scan(&s); err != nil {
		return session.ConnectSession{}, fmt.Errorf("failed to get connect session: %w", err)
	}

	if s.RoomId == "" {
		return session.ConnectSession{}, session.ErrNotFound
	}

	r.rc.Del(ctx, key)

	return s, nil
}
