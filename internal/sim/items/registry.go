// Package items holds the in-process item catalog. Runtime ids are assigned at
// registration time and are only stable for the life of the process; the
// persistence layer translates them to stable ids.
package items

import (
	"sort"
	"sync"
)

// TileIDs are texture tile indexes. Sprite is used by plants and other items
// drawn as two crossed sprites in the middle of a block.
type TileIDs struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
	Front  int `json:"front"`
	Back   int `json:"back"`
	Sprite int `json:"sprite"`
}

type Flags struct {
	Plant        bool `json:"plant"`
	Obstacle     bool `json:"obstacle"`
	Transparent  bool `json:"transparent"`
	Destructable bool `json:"destructable"`
}

type Item struct {
	Name  string
	ID    uint32
	Tiles TileIDs
	Flags Flags
}

// Registry is append-only. Id 0 is never assigned and means "no item".
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Item
	byID   map[uint32]*Item
	lastID uint32
}

func NewRegistry() *Registry {
	return &Registry{
		byName: map[string]*Item{},
		byID:   map[uint32]*Item{},
	}
}

// Register adds an item and returns its runtime id. Registering a name twice
// is a no-op that returns the existing id.
func (r *Registry) Register(name string, tiles TileIDs, flags Flags) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if it, ok := r.byName[name]; ok {
		return it.ID
	}
	r.lastID++
	it := &Item{Name: name, ID: r.lastID, Tiles: tiles, Flags: flags}
	r.byName[name] = it
	r.byID[it.ID] = it
	return it.ID
}

func (r *Registry) ByName(name string) (Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.byName[name]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

func (r *Registry) ByID(id uint32) (Item, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.byID[id]
	if !ok {
		return Item{}, false
	}
	return *it, true
}

// LastID is the highest runtime id handed out so far (0 when empty).
func (r *Registry) LastID() uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastID
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}

// Each calls fn for every item in runtime id order.
func (r *Registry) Each(fn func(Item)) {
	r.mu.RLock()
	list := make([]Item, 0, len(r.byID))
	for _, it := range r.byID {
		list = append(list, *it)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	for _, it := range list {
		fn(it)
	}
}

func (r *Registry) flags(id uint32) Flags {
	it, ok := r.ByID(id)
	if !ok {
		return Flags{}
	}
	return it.Flags
}

// Unknown ids report false for every flag.
func (r *Registry) IsPlant(id uint32) bool        { return r.flags(id).Plant }
func (r *Registry) IsObstacle(id uint32) bool     { return r.flags(id).Obstacle }
func (r *Registry) IsTransparent(id uint32) bool  { return r.flags(id).Transparent }
func (r *Registry) IsDestructable(id uint32) bool { return r.flags(id).Destructable }
