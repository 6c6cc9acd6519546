package domain

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRoom() *Room {
	return NewRoom("room-1", "alice", "tok", Video{Id: "intro.mp4", URL: "/media/intro.mp4"}, t0, 2*time.Second)
}

func TestNewRoom(t *testing.T) {
	room := newTestRoom()

	assert.Equal(t, int64(1), room.Revision)
	assert.True(t, room.HasMember("alice"))
	assert.Equal(t, "alice", room.DisplayName("alice"))
	assert.Equal(t, "alice", room.Lease.HolderId)
	assert.False(t, room.Playback.IsPlaying)
	assert.Zero(t, room.Playback.Position)
}

func TestMembership(t *testing.T) {
	room := newTestRoom()

	require.NoError(t, room.AddMember("bob", "Bobby"))
	assert.True(t, room.HasMember("bob"))
	assert.Equal(t, "Bobby", room.DisplayName("bob"))

	// idempotent, nickname kept when none supplied
	require.NoError(t, room.AddMember("bob", ""))
	assert.Equal(t, "Bobby", room.DisplayName("bob"))

	assert.True(t, room.RemoveMember("bob"))
	assert.False(t, room.RemoveMember("bob"), "second removal must report false")
	assert.Equal(t, "bob", room.DisplayName("bob"), "profile is gone with the member")
}

func TestRemoveMemberDropsLease(t *testing.T) {
	room := newTestRoom()

	require.True(t, room.AcquireLease("alice", t0, 2*time.Second))
	room.RemoveMember("alice")
	assert.Empty(t, room.Lease.HolderId)
}

func TestSetNickname(t *testing.T) {
	room := newTestRoom()

	changed, err := room.SetNickname("alice", "  Alice  ")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "Alice", room.DisplayName("alice"))

	changed, err = room.SetNickname("alice", "Alice")
	require.NoError(t, err)
	assert.False(t, changed, "identical nickname must be a no-op")

	for _, nickname := range []string{"", "   ", strings.Repeat("x", 33)} {
		_, err := room.SetNickname("alice", nickname)
		assert.ErrorIs(t, err, ErrInvalidNickname)
	}
}

func TestAcquireLease(t *testing.T) {
	room := newTestRoom()
	room.Lease = ControlLease{}

	require.True(t, room.AcquireLease("alice", t0, 2*time.Second), "no holder")
	require.True(t, room.AcquireLease("alice", t0.Add(time.Second), 2*time.Second), "same holder refreshes")
	assert.False(t, room.AcquireLease("bob", t0.Add(2*time.Second), 2*time.Second), "other holder within window")
	assert.True(t, room.AcquireLease("bob", t0.Add(4*time.Second), 2*time.Second), "lease lapsed")
	assert.Equal(t, "bob", room.Lease.HolderId)
}

func TestPostMessage(t *testing.T) {
	room := newTestRoom()

	t.Run("rejects empty text", func(t *testing.T) {
		_, err := room.PostMessage("alice", "   ", nil, t0, 200)
		assert.ErrorIs(t, err, ErrMessageEmpty)
	})

	t.Run("rejects blank reply id", func(t *testing.T) {
		blank := "  "
		_, err := room.PostMessage("alice", "hi", &blank, t0, 200)
		assert.ErrorIs(t, err, ErrInvalidReplyMessageId)
	})

	t.Run("rejects unknown reply id", func(t *testing.T) {
		missing := "nonexistent"
		_, err := room.PostMessage("alice", "hi", &missing, t0, 200)
		assert.ErrorIs(t, err, ErrReplyMessageNotFound)
	})

	t.Run("threads a valid reply", func(t *testing.T) {
		first, err := room.PostMessage("alice", "hello", nil, t0, 200)
		require.NoError(t, err)
		assert.Equal(t, "alice", first.Nickname)

		reply, err := room.PostMessage("alice", "hello again", &first.Id, t0, 200)
		require.NoError(t, err)
		require.NotNil(t, reply.ReplyToMessageId)
		assert.Equal(t, first.Id, *reply.ReplyToMessageId)
	})

	t.Run("discards oldest beyond the history limit", func(t *testing.T) {
		room := newTestRoom()
		for i := 0; i < 205; i++ {
			_, err := room.PostMessage("alice", fmt.Sprintf("msg %d", i), nil, t0, 200)
			require.NoError(t, err)
		}
		require.Len(t, room.Messages, 200)
		assert.Equal(t, "msg 204", room.Messages[199].Text)
		assert.Equal(t, "msg 5", room.Messages[0].Text)
	})
}
