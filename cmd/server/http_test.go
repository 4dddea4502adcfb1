package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"worldkeeper.dev/internal/persistence/worlddb"
	"worldkeeper.dev/internal/sim/catalogs"
	"worldkeeper.dev/internal/sim/items"
)

func findRepoRootForServerTests(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatalf("could not locate go.mod from %s", dir)
		}
		dir = parent
	}
}

func newTestServerEngine(t *testing.T) (*worlddb.Engine, *items.Registry) {
	t.Helper()
	root := findRepoRootForServerTests(t)
	cat, err := catalogs.LoadItems(filepath.Join(root, "configs", "items.json"))
	if err != nil {
		t.Fatalf("load items: %v", err)
	}
	reg := items.NewRegistry()
	cat.Register(reg)

	e, err := worlddb.Open(worlddb.Config{
		Enabled:       true,
		Path:          filepath.Join(t.TempDir(), "craft.db"),
		QueueCapacity: 64,
	}, reg, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	if err := syncItems(e, reg); err != nil {
		t.Fatalf("sync items: %v", err)
	}
	return e, reg
}

func waitApplied(t *testing.T, e *worlddb.Engine, n uint64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for e.Stats().AppliedTotal < n {
		if time.Now().After(deadline) {
			t.Fatalf("applied=%d want>=%d", e.Stats().AppliedTotal, n)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestAdminChunk_ReturnsPersistedChunk(t *testing.T) {
	e, reg := newTestServerEngine(t)
	stone, _ := reg.ByName("stone")

	e.InsertBlock(1, -1, 40, 12, -20, int(e.ItemRuntimeToDB(stone.ID)))
	e.InsertLight(1, -1, 40, 13, -20, 15)
	e.SetKey(1, -1, 3)
	waitApplied(t, e, 3)
	if err := e.InsertSign(1, -1, 40, 12, -20, 0, "hello"); err != nil {
		t.Fatalf("InsertSign: %v", err)
	}

	mux := newMux(e, reg, true)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/chunk?p=1&q=-1", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}

	var got chunkJSON
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != 3 || len(got.Blocks) != 1 || len(got.Lights) != 1 || len(got.Signs) != 1 {
		t.Fatalf("chunk=%+v", got)
	}
	if got.Blocks[0].Item != "stone" || got.Blocks[0].Y != 12 {
		t.Fatalf("block=%+v", got.Blocks[0])
	}
	if got.Signs[0].Text != "hello" {
		t.Fatalf("sign=%+v", got.Signs[0])
	}
}

func TestAdminChunk_RejectsRemoteAndBadParams(t *testing.T) {
	e, reg := newTestServerEngine(t)
	mux := newMux(e, reg, true)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/chunk?p=0&q=0", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("remote status=%d want=%d", rr.Code, http.StatusForbidden)
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/v1/chunk?p=x&q=0", nil)
	req.RemoteAddr = "[::1]:1234"
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad param status=%d want=%d", rr.Code, http.StatusBadRequest)
	}
}

func TestAdminItems_ListsCatalogWithPersistedIDs(t *testing.T) {
	e, reg := newTestServerEngine(t)
	mux := newMux(e, reg, true)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/items", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var got []struct {
		Name      string `json:"name"`
		RuntimeID uint32 `json:"runtime_id"`
		DBID      uint32 `json:"db_id"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != reg.Len() {
		t.Fatalf("items=%d want=%d", len(got), reg.Len())
	}
	for _, it := range got {
		if it.DBID == 0 {
			t.Fatalf("item %s has no persisted id", it.Name)
		}
	}
}

func TestAdminDisabled_OnlyHealthAndMetrics(t *testing.T) {
	e, reg := newTestServerEngine(t)
	mux := newMux(e, reg, false)

	req := httptest.NewRequest(http.MethodGet, "/admin/v1/items", nil)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want=%d", rr.Code, http.StatusNotFound)
	}

	srv := httptest.NewServer(mux)
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status=%d", resp.StatusCode)
	}
}

func TestMetrics_ExportsEngineCounters(t *testing.T) {
	e, reg := newTestServerEngine(t)
	e.InsertBlock(0, 0, 0, 0, 0, 1)
	e.Commit()
	waitApplied(t, e, 2)

	srv := httptest.NewServer(newMux(e, reg, true))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	body := string(b)
	for _, want := range []string{
		"worldkeeper_db_enabled 1\n",
		"worldkeeper_db_queue_capacity 64\n",
		"worldkeeper_db_enqueued_total 2\n",
		"worldkeeper_db_commit_total 1\n",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestCommitTicker_QueuesCommitsUntilCancelled(t *testing.T) {
	e, _ := newTestServerEngine(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := startCommitTicker(ctx, e, 5*time.Millisecond)

	deadline := time.Now().Add(5 * time.Second)
	for e.Stats().CommitTotal < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("commits=%d want>=2", e.Stats().CommitTotal)
		}
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("ticker did not stop")
	}

	off := startCommitTicker(context.Background(), e, 0)
	select {
	case <-off:
	default:
		t.Fatalf("zero interval should not start a ticker")
	}
}
