package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"worldkeeper.dev/internal/persistence/worlddb"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	sf := addStoreFlags(fs)
	p := fs.Int("p", 0, "chunk p (blocks, lights, signs, key)")
	q := fs.Int("q", 0, "chunk q (blocks, lights, signs, key)")
	user := fs.String("user", "", "username (identity; defaults to the selected one)")
	_ = fs.Parse(args)

	query := "chunks"
	if fs.NArg() > 0 {
		query = strings.TrimSpace(fs.Arg(0))
	}

	e := sf.open()
	defer e.Close()

	if err := runQuery(e, query, *p, *q, *user); err != nil {
		fmt.Fprintln(os.Stderr, query+":", err)
		_ = e.Close()
		os.Exit(1)
	}
}

func runQuery(e *worlddb.Engine, query string, p, q int, user string) error {
	switch query {
	case "chunks":
		chunks, err := e.Chunks()
		if err != nil {
			return err
		}
		for _, c := range chunks {
			printJSON(c)
		}

	case "blocks", "lights":
		load := e.LoadBlocks
		if query == "lights" {
			load = e.LoadLights
		}
		vs, err := load(p, q)
		if err != nil {
			return err
		}
		for _, v := range vs {
			printJSON(struct {
				P int `json:"p"`
				Q int `json:"q"`
				worlddb.Voxel
			}{p, q, v})
		}

	case "signs":
		signs, err := e.LoadSigns(p, q)
		if err != nil {
			return err
		}
		for _, s := range signs {
			printJSON(s)
		}

	case "key":
		key, err := e.GetKey(p, q)
		if err != nil {
			return err
		}
		printJSON(struct {
			P   int `json:"p"`
			Q   int `json:"q"`
			Key int `json:"key"`
		}{p, q, key})

	case "items":
		for _, it := range e.Items() {
			printJSON(it)
		}

	case "state":
		st, ok, err := e.LoadState()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no saved state")
		}
		printJSON(st)

	case "identity":
		var (
			token string
			ok    bool
			err   error
		)
		if user == "" {
			user, token, ok, err = e.AuthGetSelected()
		} else {
			token, ok, err = e.AuthGet(user)
		}
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no identity")
		}
		printJSON(struct {
			Username string `json:"username"`
			Token    string `json:"token"`
		}{user, token})

	default:
		return fmt.Errorf("unknown query (want chunks|blocks|lights|signs|key|items|state|identity)")
	}
	return nil
}
