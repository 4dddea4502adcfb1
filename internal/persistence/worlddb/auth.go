package worlddb

import (
	"context"
	"database/sql"
	"errors"
)

// Identity tokens live in a separate database file attached as "auth", so a
// world file can be shared without leaking credentials. At most one row is
// selected at a time.

func (s *store) authSet(ctx context.Context, username, token string) error {
	if _, err := s.conn.ExecContext(ctx,
		`insert or replace into auth.identity_token (username, token, selected) values (?, ?, ?);`,
		username, token, 1); err != nil {
		return err
	}
	_, err := s.authSelect(ctx, username)
	return err
}

// authSelect reports whether a row for username exists (and is now selected).
func (s *store) authSelect(ctx context.Context, username string) (bool, error) {
	if err := s.authSelectNone(ctx); err != nil {
		return false, err
	}
	res, err := s.conn.ExecContext(ctx,
		`update auth.identity_token set selected = 1 where username = ?;`, username)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *store) authSelectNone(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `update auth.identity_token set selected = 0;`)
	return err
}

func (s *store) authGet(ctx context.Context, username string) (string, bool, error) {
	var token string
	err := s.conn.QueryRowContext(ctx,
		`select token from auth.identity_token where username = ?;`, username).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (s *store) authGetSelected(ctx context.Context) (username, token string, ok bool, err error) {
	err = s.conn.QueryRowContext(ctx,
		`select username, token from auth.identity_token where selected = 1;`).Scan(&username, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", false, nil
	}
	if err != nil {
		return "", "", false, err
	}
	return username, token, true, nil
}

// AuthSet stores the identity token for username and selects it.
func (e *Engine) AuthSet(username, token string) error {
	return e.withStore(func(ctx context.Context, st *store) error {
		return st.authSet(ctx, username, token)
	})
}

// AuthSelect selects username and deselects everyone else. It reports false
// when no token is stored for username, in which case nothing is selected.
func (e *Engine) AuthSelect(username string) (ok bool, err error) {
	err = e.withStore(func(ctx context.Context, st *store) error {
		ok, err = st.authSelect(ctx, username)
		return err
	})
	return ok, err
}

func (e *Engine) AuthSelectNone() error {
	return e.withStore(func(ctx context.Context, st *store) error {
		return st.authSelectNone(ctx)
	})
}

func (e *Engine) AuthGet(username string) (token string, ok bool, err error) {
	err = e.withStore(func(ctx context.Context, st *store) error {
		token, ok, err = st.authGet(ctx, username)
		return err
	})
	return token, ok, err
}

func (e *Engine) AuthGetSelected() (username, token string, ok bool, err error) {
	err = e.withStore(func(ctx context.Context, st *store) error {
		username, token, ok, err = st.authGetSelected(ctx)
		return err
	})
	return username, token, ok, err
}
