package catalogs

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"worldkeeper.dev/internal/sim/items"
)

func TestLoadItems_RegistersInFileOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.json")
	raw := `[
	  {"name":"grass","tiles":{"top":32,"bottom":0,"left":16,"right":16,"front":16,"back":16},"flags":{"obstacle":true,"destructable":true}},
	  {"name":"tall_grass","tiles":{"sprite":48},"flags":{"plant":true,"transparent":true,"destructable":true}},
	  {"name":"cloud"}
	]`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cat, err := LoadItems(path)
	if err != nil {
		t.Fatalf("LoadItems: %v", err)
	}
	if len(cat.Defs) != 3 || cat.Digest == "" {
		t.Fatalf("defs=%d digest=%q", len(cat.Defs), cat.Digest)
	}

	reg := items.NewRegistry()
	cat.Register(reg)
	it, ok := reg.ByName("tall_grass")
	if !ok || it.ID != 2 || it.Tiles.Sprite != 48 || !it.Flags.Plant {
		t.Fatalf("tall_grass=%+v ok=%v", it, ok)
	}
	if id := reg.Register("cloud", items.TileIDs{}, items.Flags{}); id != 3 {
		t.Fatalf("cloud id=%d want=3", id)
	}
}

func TestParseItems_RejectsInvalidDocuments(t *testing.T) {
	cases := map[string]string{
		"not array":     `{"name":"grass"}`,
		"missing name":  `[{"flags":{"plant":true}}]`,
		"negative tile": `[{"name":"grass","tiles":{"top":-1}}]`,
		"unknown field": `[{"name":"grass","colour":"green"}]`,
		"duplicate":     `[{"name":"grass"},{"name":"grass"}]`,
	}
	for name, raw := range cases {
		if _, err := ParseItems([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		} else if !strings.Contains(err.Error(), "items.json") {
			t.Fatalf("%s: error not prefixed: %v", name, err)
		}
	}
}
