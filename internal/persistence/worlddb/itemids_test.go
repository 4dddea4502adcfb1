package worlddb

import (
	"testing"

	"worldkeeper.dev/internal/sim/items"
)

func newRegistry(names ...string) *items.Registry {
	reg := items.NewRegistry()
	for _, n := range names {
		reg.Register(n, items.TileIDs{}, items.Flags{})
	}
	return reg
}

func TestItemIDs_InverseLaw(t *testing.T) {
	reg := newRegistry("grass", "sand", "stone", "glass")

	var c itemIDs
	c.reset([]persistedItem{
		{ID: 1, Name: "stone"},
		{ID: 2, Name: "glass"},
		{ID: 5, Name: "grass"},
		{ID: 7, Name: "sand"},
	})
	c.rebuild(reg)

	for _, pid := range []uint32{1, 2, 5, 7} {
		rid := c.toRuntime(pid)
		if rid == 0 {
			t.Fatalf("persisted %d has no runtime id", pid)
		}
		if back := c.toDB(rid); back != pid {
			t.Fatalf("toDB(toRuntime(%d))=%d", pid, back)
		}
	}
	for rid := uint32(1); rid <= reg.LastID(); rid++ {
		if back := c.toRuntime(c.toDB(rid)); back != rid {
			t.Fatalf("toRuntime(toDB(%d))=%d", rid, back)
		}
	}
	if got := c.toRuntime(3); got != 0 {
		t.Fatalf("gap id 3 -> %d want=0", got)
	}
}

func TestItemIDs_OutOfRange(t *testing.T) {
	var c itemIDs
	if c.toRuntime(1) != 0 || c.toDB(1) != 0 {
		t.Fatalf("empty cache must map to 0")
	}

	reg := newRegistry("grass")
	c.reset([]persistedItem{{ID: 3, Name: "grass"}})
	c.rebuild(reg)
	for _, id := range []uint32{4, 100, ^uint32(0)} {
		if got := c.toRuntime(id); got != 0 {
			t.Fatalf("toRuntime(%d)=%d want=0", id, got)
		}
		if got := c.toDB(id); got != 0 {
			t.Fatalf("toDB(%d)=%d want=0", id, got)
		}
	}
}

func TestItemIDs_UnknownNamesDoNotClaimZero(t *testing.T) {
	reg := newRegistry("grass")
	var c itemIDs
	c.reset([]persistedItem{{ID: 1, Name: "grass"}, {ID: 2, Name: "removed_mod_item"}})
	c.rebuild(reg)

	if got := c.toRuntime(2); got != 0 {
		t.Fatalf("unknown name -> %d want=0", got)
	}
	if got := c.toDB(0); got != 0 {
		t.Fatalf("runtime 0 -> %d want=0", got)
	}
	if got := c.next(); got != 3 {
		t.Fatalf("next=%d want=3", got)
	}
}

func TestItemIDs_RebuildPicksUpRegistryGrowth(t *testing.T) {
	reg := newRegistry("grass")
	var c itemIDs
	c.reset([]persistedItem{{ID: 1, Name: "grass"}, {ID: 2, Name: "brick"}})
	c.rebuild(reg)
	if c.toRuntime(2) != 0 {
		t.Fatalf("brick mapped before registration")
	}

	brick := reg.Register("brick", items.TileIDs{}, items.Flags{})
	if c.toDB(brick) != 0 {
		t.Fatalf("stale cache mapped new runtime id")
	}
	c.rebuild(reg)
	if c.toRuntime(2) != brick || c.toDB(brick) != 2 {
		t.Fatalf("brick mapping missing after rebuild")
	}
}

func TestItemIDs_NextStopsAtMaxID(t *testing.T) {
	var c itemIDs
	c.reset([]persistedItem{{ID: maxItemID - 1, Name: "grass"}})
	if got := c.next(); got != maxItemID {
		t.Fatalf("next=%d want=%d", got, maxItemID)
	}
	c.add(maxItemID, "sand")
	if got := c.next(); got != 0 {
		t.Fatalf("next after max=%d want=0", got)
	}
}
