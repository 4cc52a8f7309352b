package db

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// Memory is one remembered fact. Nil scope columns mean "applies to all":
// a memory with nil ChatID is global, nil UserID matches every user, and
// so on. ExpiresAt nil means the memory is persistent.
type Memory struct {
	ID        int64
	Text      string
	CreatedAt time.Time
	ExpiresAt *time.Time
	ChatID    *int64
	ThreadID  *int64
	UserID    *int64
}

// SaveMemoryParams describes a save_memory request together with the
// conversation it originated from.
type SaveMemoryParams struct {
	Text          string
	DurationHours *int64
	ChatSpecific  bool
	ThreadSpecific bool
	UserSpecific  bool

	ChatID   int64
	ThreadID int64
	UserID   int64
}

// SaveMemory stores a memory, enforcing the non-resident policy:
// non-residents may only save user-specific memories with an explicit
// duration. Durations are clamped to limitHours.
func (d *DB) SaveMemory(p SaveMemoryParams, limitHours int64, now time.Time) (Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	resident, err := d.isResidentLocked(p.UserID)
	if err != nil {
		return Memory{}, err
	}
	if !resident {
		if !p.UserSpecific {
			return Memory{}, fmt.Errorf("%w: non-resident users can only save user-specific memories", ErrForbidden)
		}
		if p.DurationHours == nil {
			return Memory{}, fmt.Errorf("%w: non-resident users can only save short-term memories (up to %d hours)", ErrForbidden, limitHours)
		}
	}

	m := Memory{Text: p.Text, CreatedAt: now}
	if p.DurationHours != nil {
		hours := *p.DurationHours
		if hours > limitHours {
			hours = limitHours
		}
		exp := now.Add(time.Duration(hours) * time.Hour)
		m.ExpiresAt = &exp
	}
	if p.ChatSpecific {
		m.ChatID = &p.ChatID
	}
	// A thread scope without a chat scope is meaningless; drop it.
	if p.ThreadSpecific && p.ChatSpecific {
		m.ThreadID = &p.ThreadID
	}
	if p.UserSpecific {
		m.UserID = &p.UserID
	}

	res, err := d.db.Exec(`
		INSERT INTO memories
		    (memory_text, creation_date, expiration_date, chat_id, thread_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.Text, encodeTime(m.CreatedAt), encodeTimePtr(m.ExpiresAt),
		nullableInt(m.ChatID), nullableInt(m.ThreadID), nullableInt(m.UserID))
	if err != nil {
		return Memory{}, fmt.Errorf("save memory: %w", err)
	}
	m.ID, _ = res.LastInsertId()

	log.Printf("[db] saved memory %d: %q (duration %v)", m.ID, p.Text, p.DurationHours)
	return m, nil
}

// RemoveMemory deletes a memory by id. Only residents may remove memories.
func (d *DB) RemoveMemory(id, requesterID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	resident, err := d.isResidentLocked(requesterID)
	if err != nil {
		return err
	}
	if !resident {
		return fmt.Errorf("%w: non-resident users cannot remove memories", ErrForbidden)
	}

	var count int
	if err := d.db.QueryRow(`SELECT COUNT(*) FROM memories WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("check memory: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("memory with ID %d: %w", id, ErrNotFound)
	}

	if _, err := d.db.Exec(`DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("remove memory: %w", err)
	}
	log.Printf("[db] removed memory %d", id)
	return nil
}

// RelevantMemories returns memories visible from the given conversation:
// every scope column is either unset or matches, and the memory is
// persistent, still active, or expired less than 24 hours ago. Recently
// expired memories stay visible so the model can notice the lapse.
func (d *DB) RelevantMemories(chatID, threadID, userID int64, now time.Time) ([]Memory, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	yesterday := encodeTime(now.Add(-24 * time.Hour))
	rows, err := d.db.Query(`
		SELECT id, memory_text, creation_date, expiration_date, chat_id, thread_id, user_id
		FROM memories
		WHERE (expiration_date IS NULL OR expiration_date > ?)
		  AND (chat_id IS NULL OR chat_id = ?)
		  AND (thread_id IS NULL OR thread_id = ?)
		  AND (user_id IS NULL OR user_id = ?)
		ORDER BY id`,
		yesterday, chatID, threadID, userID)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var (
			m       Memory
			created string
			expires sql.NullString
			chat    sql.NullInt64
			thread  sql.NullInt64
			user    sql.NullInt64
		)
		if err := rows.Scan(&m.ID, &m.Text, &created, &expires, &chat, &thread, &user); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		if m.CreatedAt, err = decodeTime(created); err != nil {
			return nil, err
		}
		if expires.Valid {
			t, err := decodeTime(expires.String)
			if err != nil {
				return nil, err
			}
			m.ExpiresAt = &t
		}
		if chat.Valid {
			v := chat.Int64
			m.ChatID = &v
		}
		if thread.Valid {
			v := thread.Int64
			m.ThreadID = &v
		}
		if user.Valid {
			v := user.Int64
			m.UserID = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// PruneMemories deletes memories that expired more than 24 hours ago.
func (d *DB) PruneMemories(now time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec(`
		DELETE FROM memories
		WHERE expiration_date IS NOT NULL AND expiration_date <= ?`,
		encodeTime(now.Add(-24*time.Hour)))
	if err != nil {
		return 0, fmt.Errorf("prune memories: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
