package inmemory

import (
	"sync"

	"golang.org/x/exp/maps"

	"github.com/vidroom/server/internal/repository/connection"
)

type connInfo struct {
	roomId string
	userId string
}

// Repo is the bidirectional connection index: connection -> (room, user)
// and room -> open connections. A user may hold several connections to the
// same room at once; add and remove are kept as matching pairs so nothing
// depends on garbage collection to stay consistent.
type Repo struct {
	conns map[connection.Conn]connInfo
	rooms map[string]map[connection.Conn]string
	mu    sync.RWMutex
}

func NewRepo() *Repo {
	return &Repo{
		conns: make(map[connection.Conn]connInfo),
		rooms: make(map[string]map[connection.Conn]string),
	}
}

func (r *Repo) Add(conn connection.Conn, roomId, userId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[conn]; ok {
		return connection.ErrAlreadyExists
	}

	r.conns[conn] = connInfo{roomId: roomId, userId: userId}

	roomConns, ok := r.rooms[roomId]
	if !ok {
		roomConns = make(map[connection.Conn]string)
		r.rooms[roomId] = roomConns
	}
	roomConns[conn] = userId

	return nil
}

// RemoveByConn drops the connection and reports its association plus how
// many connections the same user still holds in that room.
func (r *Repo) RemoveByConn(conn connection.Conn) (roomId, userId string, remaining int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, ok := r.conns[conn]
	if !ok {
		return "", "", 0, connection.ErrNotFound
	}

	delete(r.conns, conn)

	roomConns := r.rooms[info.roomId]
	delete(roomConns, conn)
	if len(roomConns) == 0 {
		delete(r.rooms, info.roomId)
	}

	for _, connUserId := range roomConns {
		if connUserId == info.userId {
			remaining++
		}
	}

	return info.roomId, info.userId, remaining, nil
}

func (r *Repo) GetRoomUser(conn connection.Conn) (roomId, userId string, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, ok := r.conns[conn]
	if !ok {
		return "", "", connection.ErrNotFound
	}

	return info.roomId, info.userId, nil
}

func (r *Repo) GetConnsByRoomId(roomId string) []connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.rooms[roomId])
}

func (r *Repo) GetUserConns(roomId, userId string) []connection.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var conns []connection.Conn
	for conn, connUserId := range r.rooms[roomId] {
		if connUserId == userId {
			conns = append(conns, conn)
		}
	}

	return conns
}

// RoomIds lists rooms with at least one open connection.
func (r *Repo) RoomIds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.rooms)
}
