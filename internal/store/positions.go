package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/ordinal/internal/order"
)

// AppendItem inserts item at the end of its group: position = max(group)+1.
// The position is computed inside the INSERT so two appends cannot race to
// the same slot. item.Position is ignored; the stored item is returned.
func (s *Store) AppendItem(ctx context.Context, item order.Item) (order.Item, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO items (id, group_id, position, title, published)
		SELECT ?, ?, COALESCE(MAX(position), 0) + 1, ?, ?
		FROM items WHERE group_id = ?
		RETURNING position
	`,
		item.ID,
		item.GroupID,
		item.Title,
		item.Published,
		item.GroupID,
	).Scan(&item.Position)
	if err != nil {
		return order.Item{}, fmt.Errorf("append item %s: %w", item.ID, classify(err))
	}
	return item, nil
}

// SetPosition moves one item to position. Each call is its own statement and
// is checked against UNIQUE(group_id, position) immediately.
func (s *Store) SetPosition(ctx context.Context, itemID string, position int) error {
	result, err := s.db.ExecContext(ctx, `UPDATE items SET position = ? WHERE id = ?`, position, itemID)
	if err != nil {
		return fmt.Errorf("set position %s=%d: %w", itemID, position, classify(err))
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

// ListOrdered returns every item of the group ascending by position.
// Ties cannot happen under the unique constraint; id breaks them anyway so
// results stay deterministic.
//
// Returns an empty slice (not nil) for an unknown group.
func (s *Store) ListOrdered(ctx context.Context, groupID string) ([]order.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, group_id, position, title, published
		FROM items
		WHERE group_id = ?
		ORDER BY position ASC, id COLLATE BINARY ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
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
func (s *Store) MaxPosition(ctx context.Context, groupID string) (int, error) {
	var highest int
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), 0) FROM items WHERE group_id = ?
	`, groupID).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("max position: %w", err)
	}
	return highest, nil
}

// GetItem returns a single item by ID.
func (s *Store) GetItem(ctx context.Context, itemID string) (order.Item, error) {
	var it order.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, position, title, published FROM items WHERE id = ?
	`, itemID).Scan(&it.ID, &it.GroupID, &it.Position, &it.Title, &it.Published)
	if errors.Is(err, sql.ErrNoRows) {
		return order.Item{}, fmt.Errorf("get item %s: %w", itemID, order.ErrItemNotFound)
	}
	if err != nil {
		return order.Item{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return it, nil
}

// DeleteItem removes an item. The hole it leaves in the group's positions is
// closed by the next reorder or compaction of that group.
func (s *Store) DeleteItem(ctx context.Context, itemID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, itemID)
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
