package inmemory

import (
	"sync"

	"golang.org/x/exp/maps"

	"github.com/vidroom/server/internal/domain"
	"github.com/vidroom/server/internal/repository/room"
)

// Repo is the authoritative room-by-id registry. Entries are created on
// room creation and live until process restart; rooms are never deleted.
// The mutex guards the map only. The rooms themselves are mutated
// exclusively by the room service, which serializes every mutation.
type Repo struct {
	rooms map[string]*domain.Room
	mu    sync.RWMutex
}

func NewRepo() *Repo {
	return &Repo{rooms: make(map[string]*domain.Room)}
}

func (r *Repo) Add(rm *domain.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[rm.Id]; ok {
		return room.ErrAlreadyExists
	}

	r.rooms[rm.Id] = rm

	return nil
}

func (r *Repo) Get(roomId string) (*domain.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomId]
	if !ok {
		return nil, room.ErrNotFound
	}

	return rm, nil
}

func (r *Repo) Ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Keys(r.rooms)
}
