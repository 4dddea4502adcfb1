package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"worldkeeper.dev/internal/config"
	"worldkeeper.dev/internal/persistence/dump"
	"worldkeeper.dev/internal/persistence/worlddb"
	"worldkeeper.dev/internal/sim/catalogs"
	"worldkeeper.dev/internal/sim/items"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "db":
			dbCmd(os.Args[2:])
			return
		case "export":
			exportCmd(os.Args[2:])
			return
		case "catalog":
			catalogCmd(os.Args[2:])
			return
		case "chunk":
			chunkCmd(os.Args[2:])
			return
		case "items":
			itemsCmd(os.Args[2:])
			return
		}
	}
	fmt.Fprintln(os.Stderr, "usage: admin <db|export|catalog|chunk|items> [flags]")
	os.Exit(2)
}

// storeFlags are shared by every subcommand that opens the world db directly.
type storeFlags struct {
	configPath *string
	dbPath     *string
	authPath   *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		configPath: fs.String("config", "", "config yaml path (optional)"),
		dbPath:     fs.String("db", "", "world sqlite path (overrides config)"),
		authPath:   fs.String("auth", "", "auth sqlite path (overrides config)"),
	}
}

func (f storeFlags) open() *worlddb.Engine {
	cfg := config.Defaults()
	if p := strings.TrimSpace(*f.configPath); p != "" {
		c, err := config.Load(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "config:", err)
			os.Exit(2)
		}
		cfg = c
	}
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if p := strings.TrimSpace(*f.dbPath); p != "" {
		cfg.DBPath = p
	}
	if p := strings.TrimSpace(*f.authPath); p != "" {
		cfg.AuthPath = p
	}
	if _, err := os.Stat(cfg.DBPath); err != nil {
		fmt.Fprintln(os.Stderr, "db:", err)
		os.Exit(2)
	}
	cfg.Enabled = true

	e, err := worlddb.Open(cfg.Engine(), items.NewRegistry(), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	return e
}

func exportCmd(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	sf := addStoreFlags(fs)
	outPath := fs.String("out", "", "output path (.jsonl.zst)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*outPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -out")
		os.Exit(2)
	}

	e := sf.open()
	n, err := dump.Export(e, *outPath)
	if cerr := e.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "export:", err)
		os.Exit(1)
	}
	log.Printf("exported %d records to %s", n, *outPath)
}

// catalogCmd validates an items catalog and prints the runtime ids it assigns.
func catalogCmd(args []string) {
	fs := flag.NewFlagSet("catalog", flag.ExitOnError)
	path := fs.String("items", "./configs/items.json", "items catalog path")
	_ = fs.Parse(args)

	cat, err := catalogs.LoadItems(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "catalog:", err)
		os.Exit(1)
	}
	reg := items.NewRegistry()
	cat.Register(reg)
	reg.Each(func(it items.Item) {
		printJSON(struct {
			ID    uint32      `json:"id"`
			Name  string      `json:"name"`
			Flags items.Flags `json:"flags"`
		}{it.ID, it.Name, it.Flags})
	})
	log.Printf("%d items, digest %s", reg.Len(), cat.Digest)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
