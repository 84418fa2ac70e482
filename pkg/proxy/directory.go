package proxy

import (
	"strings"
	"sync"

	"github.com/dualspiral/velocity/pkg/util/uuid"
)

// playerDirectory is the single point of truth of the online players.
// It holds at most one player per id and per (case-insensitive) name.
type playerDirectory struct {
	mu    sync.RWMutex
	ids   map[uuid.UUID]*connectedPlayer
	names map[string]*connectedPlayer // lowercase names
}

func newPlayerDirectory() *playerDirectory {
	return &playerDirectory{
		ids:   map[uuid.UUID]*connectedPlayer{},
		names: map[string]*connectedPlayer{},
	}
}

// TryInsert registers the player unless a player with
// the same id or name is already registered.
func (d *playerDirectory) TryInsert(p *connectedPlayer) bool {
	name := strings.ToLower(p.Username())
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.ids[p.ID()]; exists {
		return false
	}
	if _, exists := d.names[name]; exists {
		return false
	}
	d.ids[p.ID()] = p
	d.names[name] = p
	return true
}

// Remove unregisters the player. An entry of another player
// (with the same id or name) is left untouched.
func (d *playerDirectory) Remove(p *connectedPlayer) bool {
	name := strings.ToLower(p.Username())
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ids[p.ID()] != p {
		return false
	}
	delete(d.ids, p.ID())
	if d.names[name] == p {
		delete(d.names, name)
	}
	return true
}

// Player returns the online player by id or nil.
func (d *playerDirectory) Player(id uuid.UUID) *connectedPlayer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ids[id]
}

// PlayerByName returns the online player by case-insensitive name or nil.
func (d *playerDirectory) PlayerByName(name string) *connectedPlayer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.names[strings.ToLower(name)]
}

// Count returns the number of online players.
func (d *playerDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.ids)
}

// Players returns a snapshot of the online players.
func (d *playerDirectory) Players() []*connectedPlayer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l := make([]*connectedPlayer, 0, len(d.ids))
	for _, p := range d.ids {
		l = append(l, p)
	}
	return l
}
