package room

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidroom/server/internal/domain"
	connInmemory "github.com/vidroom/server/internal/repository/connection/inmemory"
	roomInmemory "github.com/vidroom/server/internal/repository/room/inmemory"
	sessionRedis "github.com/vidroom/server/internal/repository/session/redis"
)

func floatPtr(v float64) *float64 {
	return &v
}

func playbackCommand(roomId, userId, action string, conn *fakeConn) *PlaybackParams {
	return &PlaybackParams{
		Conn:   conn,
		RoomId: roomId,
		UserId: userId,
		Action: action,
	}
}

func TestPlaybackLeaseMutualExclusion(t *testing.T) {
	s, _ := newTestService(nil)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)
	connB := mustConnect(t, s, roomId, "bob", createResp.InviteToken)

	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))

	room, err := s.roomRepo.Get(roomId)
	require.NoError(t, err)
	assert.True(t, room.Playback.IsPlaying)
	revisionAfterPlay := room.Revision

	// bob loses the lease race: silently dropped, nothing changes
	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "bob", ActionPause, connB)))

	assert.True(t, room.Playback.IsPlaying)
	assert.Equal(t, revisionAfterPlay, room.Revision)
	assert.Equal(t, "alice", room.Lease.HolderId)
}

func TestPlaybackRejectedCommandLeavesLeaseUntouched(t *testing.T) {
	s, clock := newTestService(nil)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)
	connB := mustConnect(t, s, roomId, "bob", createResp.InviteToken)

	room, err := s.roomRepo.Get(roomId)
	require.NoError(t, err)

	// let the creator's initial lease lapse so bob's command would win it
	clock.Advance(3 * time.Second)

	invalid := []*float64{nil, floatPtr(math.NaN()), floatPtr(math.Inf(1)), floatPtr(-1)}
	for _, at := range invalid {
		cmd := playbackCommand(roomId, "bob", ActionSeek, connB)
		cmd.AtTimeSec = at
		err := s.HandlePlayback(ctx, cmd)
		assert.ErrorIs(t, err, domain.ErrInvalidSeekTime)
	}

	err = s.HandlePlayback(ctx, playbackCommand(roomId, "bob", "warp", connB))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	assert.Equal(t, "alice", room.Lease.HolderId, "a rejected command must not capture the lease")

	// alice's next valid command is not blocked by a phantom lease
	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))
	assert.True(t, room.Playback.IsPlaying)
}

func TestPlaybackNoOpsKeepRevision(t *testing.T) {
	s, clock := newTestService(nil)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)

	room, err := s.roomRepo.Get(roomId)
	require.NoError(t, err)

	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))
	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPause, connA)))
	// put the scrub-resume window behind us so seeks stay paused
	clock.Advance(time.Second)

	seekCmd := playbackCommand(roomId, "alice", ActionSeek, connA)
	seekCmd.AtTimeSec = floatPtr(10)
	require.NoError(t, s.HandlePlayback(ctx, seekCmd))

	revision := room.Revision

	tests := []struct {
		name    string
		command func() *PlaybackParams
	}{
		{
			name: "pause while paused",
			command: func() *PlaybackParams {
				return playbackCommand(roomId, "alice", ActionPause, connA)
			},
		},
		{
			name: "seek within the dedup epsilon",
			command: func() *PlaybackParams {
				cmd := playbackCommand(roomId, "alice", ActionSeek, connA)
				cmd.AtTimeSec = floatPtr(10.5)
				return cmd
			},
		},
		{
			name: "change to the already loaded video",
			command: func() *PlaybackParams {
				cmd := playbackCommand(roomId, "alice", ActionChangeVideo, connA)
				cmd.VideoId = "intro.mp4"
				return cmd
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, s.HandlePlayback(ctx, tt.command()))
			assert.Equal(t, revision, room.Revision)
			assert.Equal(t, float64(10), room.Playback.Position)
			assert.False(t, room.Playback.IsPlaying)
		})
	}
}

func TestPlaybackBurstCoalescing(t *testing.T) {
	s, _ := newTestService(&Config{DebounceWindow: 20 * time.Millisecond})
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)
	connB := mustConnect(t, s, roomId, "bob", createResp.InviteToken)

	// one scrub gesture arriving as a burst: play, pause, seek
	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))
	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPause, connA)))
	seekCmd := playbackCommand(roomId, "alice", ActionSeek, connA)
	seekCmd.AtTimeSec = floatPtr(30)
	require.NoError(t, s.HandlePlayback(ctx, seekCmd))

	// the originator is echoed per command, the room gets one coalesced seek
	assert.Len(t, connA.roomStates(ReasonPlayback), 3)
	require.Eventually(t, func() bool {
		return len(connB.roomStates(ReasonPlayback)) > 0
	}, time.Second, 5*time.Millisecond)

	time.Sleep(50 * time.Millisecond)

	states := connB.roomStates(ReasonPlayback)
	require.Len(t, states, 1)
	assert.Equal(t, ActionSeek, states[0].Action)
	assert.Equal(t, float64(30), states[0].Room.Playback.Position)
	assert.Equal(t, "alice", states[0].By.UserId)
}

func TestBurstFlushIgnoresSupersededTimer(t *testing.T) {
	s, _ := newTestService(&Config{DebounceWindow: time.Hour})
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)
	connB := mustConnect(t, s, roomId, "bob", createResp.InviteToken)

	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))

	key := burstKey{roomId: roomId, userId: "alice"}
	s.mu.Lock()
	gen := s.pending[key].gen
	s.mu.Unlock()

	// a timer that expired before a newer event restarted the window
	// carries a stale generation and must deliver nothing
	s.flushBurst(ctx, roomId, "alice", gen-1)
	assert.Empty(t, connB.roomStates(ReasonPlayback))

	s.flushBurst(ctx, roomId, "alice", gen)
	assert.Len(t, connB.roomStates(ReasonPlayback), 1)
}

func TestPlaybackResumeAfterScrub(t *testing.T) {
	s, clock := newTestService(nil)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)

	room, err := s.roomRepo.Get(roomId)
	require.NoError(t, err)

	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))
	clock.Advance(2 * time.Second)
	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPause, connA)))

	revisionAfterPause := room.Revision

	t.Run("a seek shortly after one's own pause resumes playback", func(t *testing.T) {
		clock.Advance(300 * time.Millisecond)

		seekCmd := playbackCommand(roomId, "alice", ActionSeek, connA)
		seekCmd.AtTimeSec = floatPtr(12)
		require.NoError(t, s.HandlePlayback(ctx, seekCmd))

		assert.Equal(t, float64(12), room.Playback.Position)
		assert.True(t, room.Playback.IsPlaying)
		assert.Equal(t, revisionAfterPause+2, room.Revision, "scrub resume applies two transitions")
	})

	t.Run("a seek past the window stays paused", func(t *testing.T) {
		require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPause, connA)))
		clock.Advance(time.Second)

		seekCmd := playbackCommand(roomId, "alice", ActionSeek, connA)
		seekCmd.AtTimeSec = floatPtr(40)
		require.NoError(t, s.HandlePlayback(ctx, seekCmd))

		assert.Equal(t, float64(40), room.Playback.Position)
		assert.False(t, room.Playback.IsPlaying)
	})
}

func TestPlaybackChangeVideoBroadcastsImmediately(t *testing.T) {
	s, _ := newTestService(nil)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)
	connB := mustConnect(t, s, roomId, "bob", createResp.InviteToken)

	cmd := playbackCommand(roomId, "alice", ActionChangeVideo, connA)
	cmd.VideoId = "feature.mp4"
	require.NoError(t, s.HandlePlayback(ctx, cmd))

	for _, conn := range []*fakeConn{connA, connB} {
		states := conn.roomStates(ReasonVideoChange)
		require.Len(t, states, 1)
		assert.Equal(t, "feature.mp4", states[0].Room.Playback.VideoId)
		assert.Zero(t, states[0].Room.Playback.Position)
		assert.False(t, states[0].Room.Playback.IsPlaying)
	}
}

func TestPlayAndSyncState(t *testing.T) {
	s, clock := newTestService(nil)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)

	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))
	clock.Advance(5 * time.Second)

	require.NoError(t, s.SyncState(ctx, &SyncStateParams{Conn: connA, RoomId: roomId}))

	syncs := connA.roomStates(ReasonSync)
	require.Len(t, syncs, 1)
	assert.InDelta(t, 5.0, syncs[0].Room.Playback.Position, 0.001)
	assert.True(t, syncs[0].Room.Playback.IsPlaying)
	assert.Equal(t, string(domain.SenderKindSystem), syncs[0].By.Kind)

	err = s.SyncState(ctx, &SyncStateParams{Conn: connA, RoomId: "missing"})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSyncTick(t *testing.T) {
	s, clock := newTestService(nil)
	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	connA := mustConnect(t, s, roomId, "alice", createResp.InviteToken)
	connB := mustConnect(t, s, roomId, "bob", createResp.InviteToken)

	room, err := s.roomRepo.Get(roomId)
	require.NoError(t, err)

	t.Run("paused rooms are skipped", func(t *testing.T) {
		s.syncTick(ctx)
		assert.Empty(t, connA.roomStates(ReasonSync))
		assert.Empty(t, connB.roomStates(ReasonSync))
	})

	require.NoError(t, s.HandlePlayback(ctx, playbackCommand(roomId, "alice", ActionPlay, connA)))
	revision := room.Revision

	t.Run("the active lease holder is not corrected", func(t *testing.T) {
		s.syncTick(ctx)
		assert.Empty(t, connA.roomStates(ReasonSync))
		assert.Len(t, connB.roomStates(ReasonSync), 1)
	})

	t.Run("everyone is included once the lease lapsed", func(t *testing.T) {
		clock.Advance(3 * time.Second)
		s.syncTick(ctx)

		require.Len(t, connA.roomStates(ReasonSync), 1)
		assert.Len(t, connB.roomStates(ReasonSync), 2)

		tick := connA.roomStates(ReasonSync)[0]
		assert.InDelta(t, 3.0, tick.Room.Playback.Position, 0.001)
		assert.Equal(t, revision, tick.Room.Revision, "sync never bumps the revision")
		assert.InDelta(t, 3.0, room.Playback.Position, 0.001, "the tick freezes extrapolation into storage")
	})
}

func TestConnectTokenFlow(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := &Config{Secret: "test-secret"}
	videoRepo := &fakeVideoRepo{videos: map[string]domain.Video{
		"intro.mp4": {Id: "intro.mp4", URL: "/media/intro.mp4"},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewService(roomInmemory.NewRepo(), connInmemory.NewRepo(), sessionRedis.NewRepo(rc, 30*time.Second), videoRepo, logger, cfg)

	ctx := context.Background()

	createResp, err := s.CreateRoom(ctx, &CreateRoomParams{VideoId: "intro.mp4", UserId: "alice"})
	require.NoError(t, err)
	roomId := createResp.Room.Id

	token, err := s.CreateJoinSession(ctx, &CreateJoinSessionParams{
		RoomId:      roomId,
		UserId:      "bob",
		Nickname:    "Bobby",
		InviteToken: createResp.InviteToken,
	})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	conn := &fakeConn{}
	resp, err := s.ConnectWithToken(ctx, &ConnectWithTokenParams{Conn: conn, ConnectToken: token})
	require.NoError(t, err)
	assert.Equal(t, roomId, resp.RoomId)
	assert.Equal(t, "bob", resp.UserId)

	room, err := s.roomRepo.Get(roomId)
	require.NoError(t, err)
	assert.True(t, room.HasMember("bob"))
	assert.Equal(t, "Bobby", room.DisplayName("bob"))

	t.Run("a connect token is single use", func(t *testing.T) {
		_, err := s.ConnectWithToken(ctx, &ConnectWithTokenParams{Conn: &fakeConn{}, ConnectToken: token})
		assert.ErrorIs(t, err, ErrInvalidConnectToken)
	})

	t.Run("garbage tokens are rejected", func(t *testing.T) {
		_, err := s.ConnectWithToken(ctx, &ConnectWithTokenParams{Conn: &fakeConn{}, ConnectToken: "not-a-token"})
		assert.ErrorIs(t, err, ErrInvalidConnectToken)
	})

	t.Run("the session checks admission against the room", func(t *testing.T) {
		_, err := s.CreateJoinSession(ctx, &CreateJoinSessionParams{
			RoomId:      roomId,
			UserId:      "carol",
			InviteToken: "wrong",
		})
		assert.ErrorIs(t, err, ErrInvalidInviteToken)
	})
}
