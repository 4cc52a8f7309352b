package db

import (
	"database/sql"
	"fmt"
	"time"
)

// NeededItem is one entry of the shared shopping list.
type NeededItem struct {
	ID          int64
	Item        string
	RequestedBy *int64
	RequestedAt time.Time
	BoughtBy    *int64
}

// NeededItems returns items nobody has bought yet, oldest first.
func (d *DB) NeededItems() ([]NeededItem, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.Query(`
		SELECT id, item, requested_by, requested_at, bought_by
		FROM needed_items
		WHERE bought_by IS NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query needed items: %w", err)
	}
	defer rows.Close()

	var out []NeededItem
	for rows.Next() {
		var (
			it        NeededItem
			requested sql.NullInt64
			bought    sql.NullInt64
			at        string
		)
		if err := rows.Scan(&it.ID, &it.Item, &requested, &at, &bought); err != nil {
			return nil, fmt.Errorf("scan needed item: %w", err)
		}
		if requested.Valid {
			v := requested.Int64
			it.RequestedBy = &v
		}
		if bought.Valid {
			v := bought.Int64
			it.BoughtBy = &v
		}
		if it.RequestedAt, err = decodeTime(at); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// AddNeededItem appends one item to the shopping list.
func (d *DB) AddNeededItem(item string, requestedBy int64, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(`
		INSERT INTO needed_items (item, requested_by, requested_at, bought_by)
		VALUES (?, ?, ?, NULL)`,
		item, requestedBy, encodeTime(now))
	if err != nil {
		return fmt.Errorf("add needed item: %w", err)
	}
	return nil
}
