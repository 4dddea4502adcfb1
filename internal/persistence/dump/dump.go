// Package dump writes a world database out as zstd-compressed JSON lines, one
// record per row, for backups and offline inspection.
package dump

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"worldkeeper.dev/internal/persistence/worlddb"
)

const (
	KindBlock = "block"
	KindLight = "light"
	KindSign  = "sign"
	KindKey   = "key"
	KindItem  = "item"
	KindState = "state"
)

// Record is one dumped row. Only the fields of its Kind are set.
type Record struct {
	Kind string `json:"kind"`

	P    int `json:"p,omitempty"`
	Q    int `json:"q,omitempty"`
	X    int `json:"x,omitempty"`
	Y    int `json:"y,omitempty"`
	Z    int `json:"z,omitempty"`
	W    int `json:"w,omitempty"`
	Face int `json:"face,omitempty"`
	Key  int `json:"key,omitempty"`

	Text string `json:"text,omitempty"`
	ID   uint32 `json:"id,omitempty"`
	Name string `json:"name,omitempty"`

	State *worlddb.State `json:"state,omitempty"`
}

type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	n   int
}

func Create(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

func (w *Writer) Write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	w.n++
	return nil
}

// Count is the number of records written so far.
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	err := w.w.Flush()
	if cerr := w.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Read calls fn for every record in the dump at path, in file order.
func Read(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		var r Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return sc.Err()
}

// Export writes every row reachable through e to path and returns the number
// of records written. Rows still queued in e are not included.
func Export(e *worlddb.Engine, path string) (int, error) {
	w, err := Create(path)
	if err != nil {
		return 0, err
	}
	n, err := export(e, w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func export(e *worlddb.Engine, w *Writer) (int, error) {
	for _, it := range e.Items() {
		if err := w.Write(Record{Kind: KindItem, ID: it.ID, Name: it.Name}); err != nil {
			return w.Count(), err
		}
	}

	chunks, err := e.Chunks()
	if err != nil {
		return w.Count(), fmt.Errorf("list chunks: %w", err)
	}
	for _, c := range chunks {
		blocks, err := e.LoadBlocks(c.P, c.Q)
		if err != nil {
			return w.Count(), fmt.Errorf("blocks %d,%d: %w", c.P, c.Q, err)
		}
		for _, b := range blocks {
			if err := w.Write(Record{Kind: KindBlock, P: c.P, Q: c.Q, X: b.X, Y: b.Y, Z: b.Z, W: b.W}); err != nil {
				return w.Count(), err
			}
		}

		lights, err := e.LoadLights(c.P, c.Q)
		if err != nil {
			return w.Count(), fmt.Errorf("lights %d,%d: %w", c.P, c.Q, err)
		}
		for _, l := range lights {
			if err := w.Write(Record{Kind: KindLight, P: c.P, Q: c.Q, X: l.X, Y: l.Y, Z: l.Z, W: l.W}); err != nil {
				return w.Count(), err
			}
		}

		signs, err := e.LoadSigns(c.P, c.Q)
		if err != nil {
			return w.Count(), fmt.Errorf("signs %d,%d: %w", c.P, c.Q, err)
		}
		for _, s := range signs {
			if err := w.Write(Record{Kind: KindSign, P: c.P, Q: c.Q, X: s.X, Y: s.Y, Z: s.Z, Face: s.Face, Text: s.Text}); err != nil {
				return w.Count(), err
			}
		}

		key, err := e.GetKey(c.P, c.Q)
		if err != nil {
			return w.Count(), fmt.Errorf("key %d,%d: %w", c.P, c.Q, err)
		}
		if key != 0 {
			if err := w.Write(Record{Kind: KindKey, P: c.P, Q: c.Q, Key: key}); err != nil {
				return w.Count(), err
			}
		}
	}

	st, ok, err := e.LoadState()
	if err != nil {
		return w.Count(), fmt.Errorf("state: %w", err)
	}
	if ok {
		if err := w.Write(Record{Kind: KindState, State: &st}); err != nil {
			return w.Count(), err
		}
	}
	return w.Count(), nil
}
