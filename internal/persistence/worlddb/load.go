package worlddb

import "context"

// The load path runs on the caller's goroutine. loadMu keeps two loads from
// sharing a statement cursor; queued writes may still land between rows.

func (e *Engine) load(fn func(ctx context.Context, st *store) error) error {
	return e.withStore(func(ctx context.Context, st *store) error {
		e.loadMu.Lock()
		defer e.loadMu.Unlock()
		return fn(ctx, st)
	})
}

// LoadBlocks returns the edited blocks of chunk (p,q) in local coordinates.
func (e *Engine) LoadBlocks(p, q int) (out []Voxel, err error) {
	err = e.load(func(ctx context.Context, st *store) error {
		out, err = st.voxels(ctx, st.loadBlocks, p, q)
		return err
	})
	return out, err
}

func (e *Engine) LoadLights(p, q int) (out []Voxel, err error) {
	err = e.load(func(ctx context.Context, st *store) error {
		out, err = st.voxels(ctx, st.loadLights, p, q)
		return err
	})
	return out, err
}

func (e *Engine) LoadSigns(p, q int) (out []Sign, err error) {
	err = e.load(func(ctx context.Context, st *store) error {
		out, err = st.signs(ctx, p, q)
		return err
	})
	return out, err
}

// GetKey returns the stored key of chunk (p,q), or 0 when none was set.
func (e *Engine) GetKey(p, q int) (key int, err error) {
	err = e.load(func(ctx context.Context, st *store) error {
		key, err = st.keyOf(ctx, p, q)
		return err
	})
	return key, err
}

// Chunks lists every chunk with at least one block, light, sign or key row.
func (e *Engine) Chunks() (out []Chunk, err error) {
	err = e.load(func(ctx context.Context, st *store) error {
		out, err = st.chunkList(ctx)
		return err
	})
	return out, err
}
