package worlddb

import (
	"sync"

	"worldkeeper.dev/internal/sim/items"
)

// itemIDs maps between persisted item ids (stable, stored in the items table)
// and runtime ids (assigned by the registry at startup). Both directions are
// dense slices indexed by id; 0 means unknown. The slices are rebuilt from
// scratch whenever the persisted set changes, which is cheap for catalogs of a
// few hundred items.
// maxItemID bounds persisted and runtime ids. Both id slices are sized by the
// largest id in use.
const maxItemID = 1<<24 - 1

type itemIDs struct {
	mu sync.RWMutex

	byName map[string]uint32
	lastDB uint32

	dbToRuntime []uint32
	runtimeToDB []uint32
}

func (c *itemIDs) reset(list []persistedItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byName = make(map[string]uint32, len(list))
	c.lastDB = 0
	for _, it := range list {
		c.byName[it.Name] = it.ID
		if it.ID > c.lastDB {
			c.lastDB = it.ID
		}
	}
}

func (c *itemIDs) add(id uint32, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.byName == nil {
		c.byName = map[string]uint32{}
	}
	c.byName[name] = id
	if id > c.lastDB {
		c.lastDB = id
	}
}

func (c *itemIDs) lookup(name string) (uint32, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[name]
	return id, ok
}

// next is the persisted id the next new item gets, or 0 once ids run out.
func (c *itemIDs) next() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastDB >= maxItemID {
		return 0
	}
	return c.lastDB + 1
}

func (c *itemIDs) rebuild(reg *items.Registry) {
	var lastRuntime uint32
	if reg != nil {
		lastRuntime = reg.LastID()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if lastRuntime > maxItemID {
		lastRuntime = maxItemID
	}
	lastDB := c.lastDB
	if lastDB > maxItemID {
		lastDB = maxItemID
	}

	dbToRuntime := make([]uint32, uint64(lastDB)+1)
	runtimeToDB := make([]uint32, uint64(lastRuntime)+1)
	for name, dbID := range c.byName {
		if reg == nil {
			break
		}
		it, ok := reg.ByName(name)
		if !ok || dbID > lastDB || it.ID > lastRuntime {
			continue
		}
		dbToRuntime[dbID] = it.ID
		runtimeToDB[it.ID] = dbID
	}
	c.dbToRuntime = dbToRuntime
	c.runtimeToDB = runtimeToDB
}

func (c *itemIDs) toRuntime(dbID uint32) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if uint64(dbID) >= uint64(len(c.dbToRuntime)) {
		return 0
	}
	return c.dbToRuntime[dbID]
}

func (c *itemIDs) toDB(runtimeID uint32) uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if uint64(runtimeID) >= uint64(len(c.runtimeToDB)) {
		return 0
	}
	return c.runtimeToDB[runtimeID]
}
