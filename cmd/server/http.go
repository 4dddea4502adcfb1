package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"worldkeeper.dev/internal/persistence/worlddb"
	"worldkeeper.dev/internal/sim/items"
)

func newMux(e *worlddb.Engine, reg *items.Registry, enableAdmin bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeEngineMetrics(rw, e.Stats())
	})
	if !enableAdmin {
		return mux
	}

	// Local-only, read-only.
	mux.HandleFunc("/admin/v1/chunk", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		p, err1 := strconv.Atoi(r.URL.Query().Get("p"))
		q, err2 := strconv.Atoi(r.URL.Query().Get("q"))
		if err1 != nil || err2 != nil {
			http.Error(rw, "p and q must be integers", http.StatusBadRequest)
			return
		}
		resp, err := loadChunk(e, reg, p, q)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	})
	mux.HandleFunc("/admin/v1/items", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		type itemJSON struct {
			Name      string `json:"name"`
			RuntimeID uint32 `json:"runtime_id"`
			DBID      uint32 `json:"db_id"`
		}
		out := make([]itemJSON, 0, reg.Len())
		reg.Each(func(it items.Item) {
			out = append(out, itemJSON{Name: it.Name, RuntimeID: it.ID, DBID: e.ItemRuntimeToDB(it.ID)})
		})
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(out)
	})
	return mux
}

type blockJSON struct {
	worlddb.Voxel
	Item string `json:"item,omitempty"`
}

type chunkJSON struct {
	P      int             `json:"p"`
	Q      int             `json:"q"`
	Key    int             `json:"key"`
	Blocks []blockJSON     `json:"blocks"`
	Lights []worlddb.Voxel `json:"lights"`
	Signs  []worlddb.Sign  `json:"signs"`
}

// loadChunk reads one chunk the way a client load would. Block values are
// persisted item ids; Item names the runtime item they map to, if any.
func loadChunk(e *worlddb.Engine, reg *items.Registry, p, q int) (chunkJSON, error) {
	out := chunkJSON{P: p, Q: q, Blocks: []blockJSON{}, Lights: []worlddb.Voxel{}, Signs: []worlddb.Sign{}}

	blocks, err := e.LoadBlocks(p, q)
	if err != nil {
		return out, fmt.Errorf("blocks: %w", err)
	}
	for _, b := range blocks {
		bj := blockJSON{Voxel: b}
		if b.W > 0 {
			if it, ok := reg.ByID(e.ItemDBToRuntime(uint32(b.W))); ok {
				bj.Item = it.Name
			}
		}
		out.Blocks = append(out.Blocks, bj)
	}

	lights, err := e.LoadLights(p, q)
	if err != nil {
		return out, fmt.Errorf("lights: %w", err)
	}
	out.Lights = append(out.Lights, lights...)

	signs, err := e.LoadSigns(p, q)
	if err != nil {
		return out, fmt.Errorf("signs: %w", err)
	}
	out.Signs = append(out.Signs, signs...)

	if out.Key, err = e.GetKey(p, q); err != nil {
		return out, fmt.Errorf("key: %w", err)
	}
	return out, nil
}

func writeEngineMetrics(rw http.ResponseWriter, s worlddb.Stats) {
	enabled := 0
	if s.Enabled {
		enabled = 1
	}
	fmt.Fprintf(rw, "# HELP worldkeeper_db_enabled Whether persistence is enabled.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_enabled gauge\n")
	fmt.Fprintf(rw, "worldkeeper_db_enabled %d\n", enabled)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_queue_depth Current write queue depth.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_queue_depth gauge\n")
	fmt.Fprintf(rw, "worldkeeper_db_queue_depth %d\n", s.QueueDepth)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_queue_capacity Write queue capacity.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_queue_capacity gauge\n")
	fmt.Fprintf(rw, "worldkeeper_db_queue_capacity %d\n", s.QueueCapacity)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_enqueued_total Total queued commands.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_enqueued_total counter\n")
	fmt.Fprintf(rw, "worldkeeper_db_enqueued_total %d\n", s.EnqueuedTotal)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_dropped_total Total commands dropped because the queue stayed full.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_dropped_total counter\n")
	fmt.Fprintf(rw, "worldkeeper_db_dropped_total %d\n", s.DroppedTotal)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_applied_total Total commands applied by the worker.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_applied_total counter\n")
	fmt.Fprintf(rw, "worldkeeper_db_applied_total %d\n", s.AppliedTotal)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_write_fail_total Total queued writes that failed.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_write_fail_total counter\n")
	fmt.Fprintf(rw, "worldkeeper_db_write_fail_total %d\n", s.WriteFailTotal)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_commit_total Total commits.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_commit_total counter\n")
	fmt.Fprintf(rw, "worldkeeper_db_commit_total %d\n", s.CommitTotal)

	fmt.Fprintf(rw, "# HELP worldkeeper_db_commit_fail_total Total failed commits.\n")
	fmt.Fprintf(rw, "# TYPE worldkeeper_db_commit_fail_total counter\n")
	fmt.Fprintf(rw, "worldkeeper_db_commit_fail_total %d\n", s.CommitFailTotal)
}
