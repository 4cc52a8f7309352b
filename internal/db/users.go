package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// User is a Telegram account the bot has seen.
type User struct {
	ID        int64
	Username  *string
	FirstName string
}

// UpsertUser records or refreshes a user's display data.
func (d *DB) UpsertUser(u User) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var username any
	if u.Username != nil {
		username = *u.Username
	}
	_, err := d.db.Exec(`
		INSERT INTO tg_users (id, username, first_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username,
		                              first_name = excluded.first_name`,
		u.ID, username, u.FirstName)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// DisplayName formats a user for prompts: @username when set, otherwise
// the first name, otherwise "Unknown User".
func (u User) DisplayName() string {
	if u.Username != nil && *u.Username != "" {
		return "@" + *u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	return "Unknown User"
}

// DisplayNames resolves a batch of user ids to display names. Unknown ids
// map to "Unknown User".
func (d *DB) DisplayNames(ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		out[id] = "Unknown User"
	}
	if len(ids) == 0 {
		return out, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := d.db.Query(
		`SELECT id, username, first_name FROM tg_users WHERE id IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			u        User
			username sql.NullString
		)
		if err := rows.Scan(&u.ID, &username, &u.FirstName); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		if username.Valid {
			v := username.String
			u.Username = &v
		}
		out[u.ID] = u.DisplayName()
	}
	return out, rows.Err()
}

// IsResident reports whether the user has an open residency record
// (end_date IS NULL).
func (d *DB) IsResident(userID int64) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isResidentLocked(userID)
}

func (d *DB) isResidentLocked(userID int64) (bool, error) {
	var count int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM residents WHERE tg_id = ? AND end_date IS NULL`,
		userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check residency: %w", err)
	}
	return count > 0, nil
}

// AddResident opens a residency record for the user.
func (d *DB) AddResident(userID int64, from time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO residents (tg_id, begin_date, end_date) VALUES (?, ?, NULL)`,
		userID, encodeTime(from))
	if err != nil {
		return fmt.Errorf("add resident: %w", err)
	}
	return nil
}

// UsersByMACs returns display names of users owning any of the given MAC
// addresses, deduplicated and sorted by name.
func (d *DB) UsersByMACs(macs []string) ([]string, error) {
	if len(macs) == 0 {
		return nil, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(macs)), ",")
	args := make([]any, len(macs))
	for i, m := range macs {
		args[i] = strings.ToUpper(m)
	}
	rows, err := d.db.Query(`
		SELECT DISTINCT u.id, u.username, u.first_name
		FROM user_macs m
		JOIN tg_users u ON u.id = m.tg_id
		WHERE UPPER(m.mac) IN (`+placeholders+`)
		ORDER BY u.first_name`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query users by macs: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var (
			u        User
			username sql.NullString
		)
		if err := rows.Scan(&u.ID, &username, &u.FirstName); err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		if username.Valid {
			v := username.String
			u.Username = &v
		}
		out = append(out, u.DisplayName())
	}
	return out, rows.Err()
}

// RegisterMAC associates a MAC address with a user for presence tracking.
func (d *DB) RegisterMAC(userID int64, mac string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT OR IGNORE INTO user_macs (tg_id, mac) VALUES (?, ?)`,
		userID, strings.ToUpper(mac))
	if err != nil {
		return fmt.Errorf("register mac: %w", err)
	}
	return nil
}
