// Package sqlite provides the SQLite-backed assessment store.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/generyand/sinag-sub000/internal/assessment/domain"
	"github.com/generyand/sinag-sub000/internal/platform/storage/sqlitemigrate"
	"github.com/generyand/sinag-sub000/internal/storage"
	"github.com/generyand/sinag-sub000/internal/storage/sqlite/migrations"
)

// querier is satisfied by both *sql.DB and *sql.Tx so store methods work
// inside and outside transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store provides a SQLite-backed store implementing storage.Store.
type Store struct {
	sqlDB *sql.DB
	q     querier
	inTx  bool
}

var _ storage.Store = (*Store)(nil)

// Open opens the assessment SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if err := sqlitemigrate.Apply(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB, q: sqlDB}, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// InTx runs fn against a transactional view. Calls nested inside an
// active transaction reuse it; SQLite has no nested transactions.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if fn == nil {
		return fmt.Errorf("transaction callback is required")
	}
	if s.inTx {
		return fn(ctx, s)
	}

	const (
		maxBusyRetries = 8
		retryBaseDelay = 10 * time.Millisecond
	)

	var lastBusyErr error
	for attempt := 0; ; attempt++ {
		tx, err := s.sqlDB.BeginTx(ctx, nil)
		if err != nil {
			if isBusyError(err) && attempt < maxBusyRetries {
				lastBusyErr = err
				if waitErr := waitForRetry(ctx, attempt, retryBaseDelay); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("begin tx: %w", err)
		}

		txStore := &Store{sqlDB: s.sqlDB, q: tx, inTx: true}
		if err := fn(ctx, txStore); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			if isBusyError(err) && attempt < maxBusyRetries {
				lastBusyErr = err
				if waitErr := waitForRetry(ctx, attempt, retryBaseDelay); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("commit tx: %w", err)
		}
		_ = lastBusyErr
		return nil
	}
}

func waitForRetry(ctx context.Context, attempt int, base time.Duration) error {
	timer := time.NewTimer(time.Duration(attempt+1) * base)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullMillis(value *time.Time) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) *time.Time {
	if !value.Valid {
		return nil
	}
	t := fromMillis(value.Int64)
	return &t
}

func marshalJSON(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("marshal json column: %w", err)
	}
	return string(raw), nil
}

// checklistToJSON converts role-keyed checklist namespaces to a
// string-keyed object for persistence.
func checklistToJSON(checklist map[domain.Role]map[string]any) (string, error) {
	byName := make(map[string]map[string]any, len(checklist))
	for role, entries := range checklist {
		if len(entries) == 0 {
			continue
		}
		byName[role.String()] = entries
	}
	return marshalJSON(byName)
}

func checklistFromJSON(raw string) (map[domain.Role]map[string]any, error) {
	out := make(map[domain.Role]map[string]any)
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	var byName map[string]map[string]any
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, fmt.Errorf("unmarshal checklist column: %w", err)
	}
	for name, entries := range byName {
		role, err := domain.ParseRole(name)
		if err != nil {
			return nil, fmt.Errorf("unmarshal checklist column: %w", err)
		}
		out[role] = entries
	}
	return out, nil
}
