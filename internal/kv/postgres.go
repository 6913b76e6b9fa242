package kv

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/stdlib"
)

// NotifyChannel is the LISTEN/NOTIFY channel fed by the kv_entries trigger.
const NotifyChannel = "kv_changes"

// PostgresStore keeps entries in the kv_entries table. Each row carries a
// version that Update compares before writing. A trigger on the table
// emits a NOTIFY for every change, so writers need not publish.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore wraps an open database. The kv_entries migration must
// have been applied.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

const (
	pgSelectValue = `SELECT value FROM kv_entries WHERE origin = $1 AND key = $2`

	pgSelectVersioned = `SELECT value, version FROM kv_entries WHERE origin = $1 AND key = $2`

	pgUpsert = `INSERT INTO kv_entries (origin, key, value, version, updated_at)
VALUES ($1, $2, $3, 1, now())
ON CONFLICT (origin, key) DO UPDATE
SET value = EXCLUDED.value, version = kv_entries.version + 1, updated_at = now()`

	pgInsertNew = `INSERT INTO kv_entries (origin, key, value, version, updated_at)
VALUES ($1, $2, $3, 1, now())
ON CONFLICT (origin, key) DO NOTHING`

	pgUpdateVersioned = `UPDATE kv_entries SET value = $3, version = version + 1, updated_at = now()
WHERE origin = $1 AND key = $2 AND version = $4`

	pgDelete = `DELETE FROM kv_entries WHERE origin = $1 AND key = $2`

	pgDeleteVersioned = `DELETE FROM kv_entries WHERE origin = $1 AND key = $2 AND version = $3`
)

func (s *PostgresStore) Get(ctx context.Context, origin, key string) ([]byte, bool, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, pgSelectValue, origin, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("kv postgres get %s: %w", key, err)
	}
	return v, true, nil
}

func (s *PostgresStore) Set(ctx context.Context, origin, key string, value []byte) error {
	if _, err := s.db.ExecContext(ctx, pgUpsert, origin, key, value); err != nil {
		return fmt.Errorf("kv postgres set %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, origin, key string) error {
	if _, err := s.db.ExecContext(ctx, pgDelete, origin, key); err != nil {
		return fmt.Errorf("kv postgres delete %s: %w", key, err)
	}
	return nil
}

// Update reads the row version, applies fn, and writes only if the version
// is unchanged. A missing row is claimed with INSERT ... DO NOTHING.
func (s *PostgresStore) Update(ctx context.Context, origin, key string, fn UpdateFunc) error {
	for attempt := 1; attempt <= MaxUpdateAttempts; attempt++ {
		var (
			old     []byte
			version int64
			exists  = true
		)
		err := s.db.QueryRowContext(ctx, pgSelectVersioned, origin, key).Scan(&old, &version)
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
		} else if err != nil {
			return fmt.Errorf("kv postgres update %s: %w", key, err)
		}

		next, write, err := fn(old, exists)
		if err != nil {
			return err
		}
		if !write || (next == nil && !exists) {
			return nil
		}

		var res sql.Result
		switch {
		case !exists:
			res, err = s.db.ExecContext(ctx, pgInsertNew, origin, key, next)
		case next == nil:
			res, err = s.db.ExecContext(ctx, pgDeleteVersioned, origin, key, version)
		default:
			res, err = s.db.ExecContext(ctx, pgUpdateVersioned, origin, key, next, version)
		}
		if err != nil {
			return fmt.Errorf("kv postgres update %s: %w", key, err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("kv postgres update %s: %w", key, err)
		}
		if n == 1 {
			return nil
		}
		s.logger.Debug("kv update conflict, retrying", "key", key, "attempt", attempt)
	}
	return ErrConflict
}

// Watch pins one pooled connection, issues LISTEN on it and forwards
// notifications until ctx is cancelled. The database must be opened with
// the pgx stdlib driver.
func (s *PostgresStore) Watch(ctx context.Context) (<-chan Change, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("kv postgres watch: %w", err)
	}

	ready := make(chan error, 1)
	out := make(chan Change, watchBuffer)

	go func() {
		defer close(out)
		defer conn.Close()

		signalled := false
		err := conn.Raw(func(driverConn any) error {
			signalled = true
			pc, ok := driverConn.(*stdlib.Conn)
			if !ok {
				ready <- fmt.Errorf("kv postgres watch: driver %T does not support LISTEN", driverConn)
				return nil
			}
			pgConn := pc.Conn()
			if _, err := pgConn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
				ready <- fmt.Errorf("kv postgres listen: %w", err)
				return driver.ErrBadConn
			}
			ready <- nil

			for {
				n, err := pgConn.WaitForNotification(ctx)
				if err != nil {
					if ctx.Err() == nil {
						s.logger.Error("kv change feed stopped", "error", err)
					}
					// The connection still has LISTEN active; drop it.
					return driver.ErrBadConn
				}
				var c Change
				if err := json.Unmarshal([]byte(n.Payload), &c); err != nil {
					s.logger.Warn("dropping malformed change notification", "payload", n.Payload, "error", err)
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		})
		if !signalled {
			ready <- fmt.Errorf("kv postgres watch: %w", err)
		}
	}()

	if err := <-ready; err != nil {
		return nil, err
	}
	return out, nil
}

// Close closes the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
