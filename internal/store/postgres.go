package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/roach88/ordinal/internal/order"
)

//go:embed migrations/*.up.sql
var migrationFS embed.FS

const pgUniqueViolation = "23505"

// PostgresStore is the PostgreSQL-backed PositionStore.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects through the pgx stdlib driver and applies the
// embedded migrations.
func OpenPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return NewPostgresStore(db), nil
}

// NewPostgresStore wraps an already migrated connection pool.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// DB returns the underlying connection pool.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// AppendItem inserts item at the end of its group: position = max(group)+1.
// item.Position is ignored; the stored item is returned.
//
// Unlike the single-connection SQLite store, concurrent appends to one group
// can read the same MAX under READ COMMITTED. The loser fails the unique
// constraint and gets an error wrapping order.ErrConstraintViolation; callers
// may retry it. A duplicate ID wraps ErrItemExists.
func (s *PostgresStore) AppendItem(ctx context.Context, item order.Item) (order.Item, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO items (id, group_id, position, title, published)
		SELECT $1::text, $2::text, COALESCE(MAX(position), 0) + 1, $3::text, $4::boolean
		FROM items WHERE group_id = $2
		RETURNING position
	`, item.ID, item.GroupID, item.Title, item.Published).Scan(&item.Position)
	if err != nil {
		return order.Item{}, fmt.Errorf("append item %s: %w", item.ID, classifyPg(err))
	}
	return item, nil
}

// SetPosition moves one item to position. Each call is its own statement and
// is checked against UNIQUE(group_id, position) immediately.
func (s *PostgresStore) SetPosition(ctx context.Context, itemID string, position int) error {
	result, err := s.db.ExecContext(ctx, `UPDATE items SET position = $1 WHERE id = $2`, position, itemID)
	if err != nil {
		return fmt.Errorf("set position %s=%d: %w", itemID, position, classifyPg(err))
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set position %s=%d: rows affected: %w", itemID, position, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("set position %s: %w", itemID, order.ErrItemNotFound)
	}
	return nil
}

// ListOrdered returns every item of the group ascending by position, id
// breaking ties. Returns an empty slice (not nil) for an unknown group.
func (s *PostgresStore) ListOrdered(ctx context.Context, groupID string) ([]order.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, position, title, published
		FROM items
		WHERE group_id = $1
		ORDER BY position ASC, id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []order.Item{}
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ID, &it.GroupID, &it.Position, &it.Title, &it.Published); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// MaxPosition returns the highest position in use in the group, 0 if empty.
func (s *PostgresStore) MaxPosition(ctx context.Context, groupID string) (int, error) {
	var highest int
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), 0) FROM items WHERE group_id = $1`, groupID).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	return highest, nil
}

// GetItem returns a single item by ID.
func (s *PostgresStore) GetItem(ctx context.Context, itemID string) (order.Item, error) {
	var it order.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, position, title, published FROM items WHERE id = $1
	`, itemID).Scan(&it.ID, &it.GroupID, &it.Position, &it.Title, &it.Published)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Item{}, fmt.Errorf("get item %s: %w", itemID, order.ErrItemNotFound)
	}
	if err != nil {
		return order.Item{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return it, nil
}

// DeleteItem removes an item, leaving a gap in its group's positions.
func (s *PostgresStore) DeleteItem(ctx context.Context, itemID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", itemID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete item %s: rows affected: %w", itemID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("delete item %s: %w", itemID, order.ErrItemNotFound)
	}
	return nil
}

// classifyPg maps unique violations onto the order sentinels. The primary key
// and the (group_id, position) constraint share SQLSTATE 23505; the
// constraint name tells them apart.
func classifyPg(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return err
	}
	if pgErr.ConstraintName == "items_pkey" {
		return fmt.Errorf("%w: %v", ErrItemExists, err)
	}
	return fmt.Errorf("%w: %v", order.ErrConstraintViolation, err)
}

// ApplyMigrations runs every embedded *.up.sql file not yet recorded in
// schema_migrations, each in its own transaction, in lexical order.
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	if err := ensureMigrationsTable(ctx, db); err != nil {
		return err
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".up.sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, version := range files {
		if migrated, err := isMigrated(ctx, db, version); err != nil {
			return err
		} else if migrated {
			continue
		}

		contents, err := migrationFS.ReadFile("migrations/" + version)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration tx %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, string(contents)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", version, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version) VALUES($1)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}

	return nil
}

func ensureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure schema_migrations: %w", err)
	}
	return nil
}

func isMigrated(ctx context.Context, db *sql.DB, version string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, version).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check migration %s: %w", version, err)
	}
	return exists, nil
}
