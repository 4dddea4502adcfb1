package worlddb

import (
	"context"
	"fmt"
	"sort"
)

// Item is a row of the persisted items table.
type Item struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// LoadItems reloads the persisted item table and rebuilds the id mapping.
func (e *Engine) LoadItems() error {
	e.itemMu.Lock()
	defer e.itemMu.Unlock()
	return e.loadItems()
}

func (e *Engine) loadItems() error {
	var list []persistedItem
	err := e.load(func(ctx context.Context, st *store) error {
		var err error
		list, err = st.items(ctx)
		return err
	})
	if err != nil || !e.active() {
		return err
	}
	e.ids.reset(list)
	e.ids.rebuild(e.reg)
	return nil
}

// Items returns the persisted items ordered by id.
func (e *Engine) Items() []Item {
	if !e.active() {
		return nil
	}
	e.ids.mu.RLock()
	out := make([]Item, 0, len(e.ids.byName))
	for name, id := range e.ids.byName {
		out = append(out, Item{ID: id, Name: name})
	}
	e.ids.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) ItemExists(name string) (ok bool, err error) {
	err = e.load(func(ctx context.Context, st *store) error {
		ok, err = st.hasItem(ctx, name)
		return err
	})
	return ok, err
}

// InsertItem makes sure name has a persisted id and returns it. New names get
// the highest persisted id plus one. The id mapping is rebuilt either way,
// since the registry may have grown since the last rebuild.
func (e *Engine) InsertItem(name string) (uint32, error) {
	if !e.active() {
		return 0, nil
	}
	e.itemMu.Lock()
	defer e.itemMu.Unlock()

	exists, err := e.ItemExists(name)
	if err != nil {
		return 0, err
	}

	var id uint32
	if exists {
		var ok bool
		if id, ok = e.ids.lookup(name); !ok {
			// Written behind our back; pick it up from the table.
			if err := e.loadItems(); err != nil {
				return 0, err
			}
			id, _ = e.ids.lookup(name)
		}
	} else {
		err = e.withStore(func(ctx context.Context, st *store) error {
			if id = e.ids.next(); id == 0 {
				return fmt.Errorf("item %q: no persisted ids left", name)
			}
			if err := st.putItem(ctx, id, name); err != nil {
				id = 0
				return err
			}
			e.ids.add(id, name)
			return nil
		})
	}
	e.ids.rebuild(e.reg)
	return id, err
}

// ItemDBToRuntime translates a persisted item id. Unknown ids map to 0.
func (e *Engine) ItemDBToRuntime(id uint32) uint32 {
	if !e.active() {
		return 0
	}
	return e.ids.toRuntime(id)
}

// ItemRuntimeToDB translates a runtime item id. Unknown ids map to 0.
func (e *Engine) ItemRuntimeToDB(id uint32) uint32 {
	if !e.active() {
		return 0
	}
	return e.ids.toDB(id)
}
