package worlddb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Voxel is one row of the block or light table. W is the block type or the
// light level.
type Voxel struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
	W int `json:"w"`
}

type Sign struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Z    int    `json:"z"`
	Face int    `json:"face"`
	Text string `json:"text"`
}

// Chunk addresses a chunk column.
type Chunk struct {
	P int `json:"p"`
	Q int `json:"q"`
}

// State is the saved player position and orientation.
type State struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
}

type persistedItem struct {
	ID   uint32
	Name string
}

const (
	insertBlockQuery = `insert or replace into block (p, q, x, y, z, w) values (?, ?, ?, ?, ?, ?);`
	insertItemQuery  = `insert or replace into items (id, name) values (?, ?);`
	insertLightQuery = `insert or replace into light (p, q, x, y, z, w) values (?, ?, ?, ?, ?, ?);`
	insertSignQuery  = `insert or replace into sign (p, q, x, y, z, face, text) values (?, ?, ?, ?, ?, ?, ?);`
	deleteSignQuery  = `delete from sign where x = ? and y = ? and z = ? and face = ?;`
	deleteSignsQuery = `delete from sign where x = ? and y = ? and z = ?;`
	loadBlocksQuery  = `select x, y, z, w from block where p = ? and q = ?;`
	itemExistsQuery  = `select 1 from items where name = ?;`
	loadItemsQuery   = `select id, name from items;`
	loadLightsQuery  = `select x, y, z, w from light where p = ? and q = ?;`
	loadSignsQuery   = `select x, y, z, face, text from sign where p = ? and q = ?;`
	getKeyQuery      = `select key from key where p = ? and q = ?;`
	setKeyQuery      = `insert or replace into key (p, q, key) values (?, ?, ?);`
	chunksQuery      = `select p, q from block union select p, q from light union select p, q from sign union select p, q from key order by 1, 2;`
)

// store owns the database handle and the single connection every statement
// runs on. Outside of commit() the connection always has an open transaction.
type store struct {
	db   *sql.DB
	conn *sql.Conn

	insertBlock *sql.Stmt
	insertItem  *sql.Stmt
	insertLight *sql.Stmt
	insertSign  *sql.Stmt
	deleteSign  *sql.Stmt
	deleteSigns *sql.Stmt
	loadBlocks  *sql.Stmt
	itemExists  *sql.Stmt
	loadItems   *sql.Stmt
	loadLights  *sql.Stmt
	loadSigns   *sql.Stmt
	getKey      *sql.Stmt
	setKey      *sql.Stmt
	chunks      *sql.Stmt
}

func openStore(ctx context.Context, path, authPath string) (*store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if authPath == "" {
		authPath = filepath.Join(filepath.Dir(path), "auth.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("conn: %w", err)
	}
	s := &store{db: db, conn: conn}

	fail := func(step string, err error) (*store, error) {
		s.closeStmts()
		_ = conn.Close()
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", step, err)
	}

	if err := initPragmas(ctx, conn); err != nil {
		return fail("pragmas", err)
	}
	if _, err := conn.ExecContext(ctx, `attach database ? as auth;`, authPath); err != nil {
		return fail("attach auth", err)
	}
	if err := initSchema(ctx, conn); err != nil {
		return fail("schema", err)
	}
	if err := s.prepare(ctx); err != nil {
		return fail("prepare", err)
	}
	if _, err := conn.ExecContext(ctx, `begin;`); err != nil {
		return fail("begin", err)
	}
	return s, nil
}

func initPragmas(ctx context.Context, conn *sql.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(ctx context.Context, conn *sql.Conn) error {
	stmts := []string{
		`create table if not exists auth.identity_token (
			username text not null,
			token text not null,
			selected int not null
		);`,
		`create unique index if not exists auth.identity_token_username_idx
			on identity_token (username);`,
		`create table if not exists state (
			x float not null,
			y float not null,
			z float not null,
			rx float not null,
			ry float not null
		);`,
		`create table if not exists block (
			p int not null,
			q int not null,
			x int not null,
			y int not null,
			z int not null,
			w int not null
		);`,
		`create table if not exists items (
			id int not null,
			name text not null
		);`,
		`create table if not exists light (
			p int not null,
			q int not null,
			x int not null,
			y int not null,
			z int not null,
			w int not null
		);`,
		`create table if not exists key (
			p int not null,
			q int not null,
			key int not null
		);`,
		`create table if not exists sign (
			p int not null,
			q int not null,
			x int not null,
			y int not null,
			z int not null,
			face int not null,
			text text not null
		);`,
		`create unique index if not exists block_pqxyz_idx on block (p, q, x, y, z);`,
		`create unique index if not exists items_id_idx on items (id);`,
		`create unique index if not exists light_pqxyz_idx on light (p, q, x, y, z);`,
		`create unique index if not exists key_pq_idx on key (p, q);`,
		`create unique index if not exists sign_xyzface_idx on sign (x, y, z, face);`,
		`create index if not exists sign_pq_idx on sign (p, q);`,
	}
	for _, s := range stmts {
		if _, err := conn.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) statements() []struct {
	dst   **sql.Stmt
	query string
} {
	return []struct {
		dst   **sql.Stmt
		query string
	}{
		{&s.insertBlock, insertBlockQuery},
		{&s.insertItem, insertItemQuery},
		{&s.insertLight, insertLightQuery},
		{&s.insertSign, insertSignQuery},
		{&s.deleteSign, deleteSignQuery},
		{&s.deleteSigns, deleteSignsQuery},
		{&s.loadBlocks, loadBlocksQuery},
		{&s.itemExists, itemExistsQuery},
		{&s.loadItems, loadItemsQuery},
		{&s.loadLights, loadLightsQuery},
		{&s.loadSigns, loadSignsQuery},
		{&s.getKey, getKeyQuery},
		{&s.setKey, setKeyQuery},
		{&s.chunks, chunksQuery},
	}
}

func (s *store) prepare(ctx context.Context) error {
	for _, st := range s.statements() {
		stmt, err := s.conn.PrepareContext(ctx, st.query)
		if err != nil {
			return fmt.Errorf("%q: %w", st.query, err)
		}
		*st.dst = stmt
	}
	return nil
}

func (s *store) closeStmts() {
	for _, st := range s.statements() {
		if *st.dst != nil {
			_ = (*st.dst).Close()
			*st.dst = nil
		}
	}
}

// close commits the open transaction and releases the connection.
func (s *store) close(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `commit;`)
	s.closeStmts()
	if cerr := s.conn.Close(); err == nil {
		err = cerr
	}
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// commit ends the rolling transaction and immediately starts the next one.
func (s *store) commit(ctx context.Context) error {
	_, cerr := s.conn.ExecContext(ctx, `commit;`)
	_, berr := s.conn.ExecContext(ctx, `begin;`)
	return errors.Join(cerr, berr)
}

func (s *store) putBlock(ctx context.Context, c InsertBlock) error {
	_, err := s.insertBlock.ExecContext(ctx, c.P, c.Q, c.X, c.Y, c.Z, c.W)
	return err
}

func (s *store) putLight(ctx context.Context, c InsertLight) error {
	_, err := s.insertLight.ExecContext(ctx, c.P, c.Q, c.X, c.Y, c.Z, c.W)
	return err
}

func (s *store) putKey(ctx context.Context, c SetKey) error {
	_, err := s.setKey.ExecContext(ctx, c.P, c.Q, c.Key)
	return err
}

func (s *store) putSign(ctx context.Context, p, q, x, y, z, face int, text string) error {
	_, err := s.insertSign.ExecContext(ctx, p, q, x, y, z, face, text)
	return err
}

func (s *store) removeSign(ctx context.Context, x, y, z, face int) error {
	_, err := s.deleteSign.ExecContext(ctx, x, y, z, face)
	return err
}

func (s *store) removeSigns(ctx context.Context, x, y, z int) error {
	_, err := s.deleteSigns.ExecContext(ctx, x, y, z)
	return err
}

func (s *store) removeAllSigns(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `delete from sign;`)
	return err
}

func (s *store) voxels(ctx context.Context, stmt *sql.Stmt, p, q int) ([]Voxel, error) {
	rows, err := stmt.QueryContext(ctx, p, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Voxel
	for rows.Next() {
		var v Voxel
		if err := rows.Scan(&v.X, &v.Y, &v.Z, &v.W); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *store) signs(ctx context.Context, p, q int) ([]Sign, error) {
	rows, err := s.loadSigns.QueryContext(ctx, p, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sign
	for rows.Next() {
		var sg Sign
		if err := rows.Scan(&sg.X, &sg.Y, &sg.Z, &sg.Face, &sg.Text); err != nil {
			return nil, err
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}

func (s *store) keyOf(ctx context.Context, p, q int) (int, error) {
	var key int
	err := s.getKey.QueryRowContext(ctx, p, q).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return key, err
}

func (s *store) chunkList(ctx context.Context) ([]Chunk, error) {
	rows, err := s.chunks.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.P, &c.Q); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *store) hasItem(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.itemExists.QueryRowContext(ctx, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return one != 0, nil
}

func (s *store) putItem(ctx context.Context, id uint32, name string) error {
	_, err := s.insertItem.ExecContext(ctx, int64(id), name)
	return err
}

func (s *store) items(ctx context.Context) ([]persistedItem, error) {
	rows, err := s.loadItems.QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []persistedItem
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		if id < 1 || id > maxItemID {
			return nil, fmt.Errorf("item %q: id %d out of range 1..%d", name, id, maxItemID)
		}
		out = append(out, persistedItem{ID: uint32(id), Name: name})
	}
	return out, rows.Err()
}

// saveState keeps a single row: the table is cleared before every insert.
func (s *store) saveState(ctx context.Context, st State) error {
	if _, err := s.conn.ExecContext(ctx, `delete from state;`); err != nil {
		return err
	}
	_, err := s.conn.ExecContext(ctx,
		`insert into state (x, y, z, rx, ry) values (?, ?, ?, ?, ?);`,
		st.X, st.Y, st.Z, st.RX, st.RY)
	return err
}

func (s *store) loadState(ctx context.Context) (State, bool, error) {
	var st State
	err := s.conn.QueryRowContext(ctx, `select x, y, z, rx, ry from state;`).
		Scan(&st.X, &st.Y, &st.Z, &st.RX, &st.RY)
	if errors.Is(err, sql.ErrNoRows) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	return st, true, nil
}
