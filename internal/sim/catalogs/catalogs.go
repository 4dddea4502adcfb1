package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"worldkeeper.dev/internal/sim/items"
)

//go:embed items.schema.json
var itemsSchemaJSON string

var itemsSchema = jsonschema.MustCompileString("items.schema.json", itemsSchemaJSON)

type ItemDef struct {
	Name  string        `json:"name"`
	Tiles items.TileIDs `json:"tiles"`
	Flags items.Flags   `json:"flags"`
}

// ItemCatalog is the ordered list of item definitions. Order matters: it is the
// order runtime ids are assigned in.
type ItemCatalog struct {
	Defs   []ItemDef
	Digest string
}

func LoadItems(path string) (*ItemCatalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseItems(raw)
}

func ParseItems(raw []byte) (*ItemCatalog, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	if err := itemsSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("items.json: %w", err)
	}
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if _, dup := seen[d.Name]; dup {
			return nil, fmt.Errorf("items.json: duplicate name %q", d.Name)
		}
		seen[d.Name] = struct{}{}
	}
	return &ItemCatalog{Defs: defs, Digest: sha256Hex(raw)}, nil
}

// Register adds every definition to reg in catalog order.
func (c *ItemCatalog) Register(reg *items.Registry) {
	for _, d := range c.Defs {
		reg.Register(d.Name, d.Tiles, d.Flags)
	}
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
