package db

import (
	"database/sql"
	"fmt"
	"time"
)

// HistoryEntry is one row of chat_history. FromUserID is nil for the
// bot's own messages.
type HistoryEntry struct {
	ID             int64
	ChatID         int64
	ThreadID       int64
	MessageID      int
	FromUserID     *int64
	Timestamp      time.Time
	Text           string
	Classification *string
	UsedModel      *string
}

// StoreMessage records an inbound user message.
func (d *DB) StoreMessage(e HistoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var fromUser any
	if e.FromUserID != nil {
		fromUser = *e.FromUserID
	}
	_, err := d.db.Exec(`
		INSERT INTO chat_history
		    (chat_id, thread_id, message_id, from_user_id, timestamp,
		     message_text, classification_result, used_model)
		VALUES (?, ?, ?, ?, ?, ?, NULL, NULL)`,
		e.ChatID, e.ThreadID, e.MessageID, fromUser,
		encodeTime(e.Timestamp), e.Text)
	if err != nil {
		return fmt.Errorf("store message: %w", err)
	}
	return nil
}

// StoreBotResponse records a message the bot sent, annotated with the
// classification label and model that produced it.
func (d *DB) StoreBotResponse(chatID, threadID int64, messageID int, text, classification string, usedModel *string, now time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var model any
	if usedModel != nil {
		model = *usedModel
	}
	_, err := d.db.Exec(`
		INSERT INTO chat_history
		    (chat_id, thread_id, message_id, from_user_id, timestamp,
		     message_text, classification_result, used_model)
		VALUES (?, ?, ?, NULL, ?, ?, ?, ?)`,
		chatID, threadID, messageID, encodeTime(now), text, classification, model)
	if err != nil {
		return fmt.Errorf("store bot response: %w", err)
	}
	return nil
}

// UpdateClassification annotates an already stored inbound message with the
// classifier's verdict. Used on the ignore path, where no response row is
// ever written.
func (d *DB) UpdateClassification(chatID int64, messageID int, classification string, usedModel *string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var model any
	if usedModel != nil {
		model = *usedModel
	}
	_, err := d.db.Exec(`
		UPDATE chat_history
		SET classification_result = ?, used_model = ?
		WHERE chat_id = ? AND message_id = ?`,
		classification, model, chatID, messageID)
	if err != nil {
		return fmt.Errorf("update classification: %w", err)
	}
	return nil
}

// History returns the last messages of a (chat, thread) pair, newest first.
// Only rows from the past 24 hours are returned, at most max entries.
func (d *DB) History(chatID, threadID int64, now time.Time, max int) ([]HistoryEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dayAgo := encodeTime(now.Add(-24 * time.Hour))
	rows, err := d.db.Query(`
		SELECT id, chat_id, thread_id, message_id, from_user_id,
		       timestamp, message_text, classification_result, used_model
		FROM chat_history
		WHERE chat_id = ? AND thread_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		chatID, threadID, dayAgo, max)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var (
			e        HistoryEntry
			fromUser sql.NullInt64
			ts       string
			class    sql.NullString
			model    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ChatID, &e.ThreadID, &e.MessageID,
			&fromUser, &ts, &e.Text, &class, &model); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		if fromUser.Valid {
			v := fromUser.Int64
			e.FromUserID = &v
		}
		if e.Timestamp, err = decodeTime(ts); err != nil {
			return nil, err
		}
		if class.Valid {
			v := class.String
			e.Classification = &v
		}
		if model.Valid {
			v := model.String
			e.UsedModel = &v
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindEntry returns the stored history row for a specific message, or
// ErrNotFound. Used by the debug-info command.
func (d *DB) FindEntry(chatID int64, messageID int) (HistoryEntry, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		e        HistoryEntry
		fromUser sql.NullInt64
		ts       string
		class    sql.NullString
		model    sql.NullString
	)
	err := d.db.QueryRow(`
		SELECT id, chat_id, thread_id, message_id, from_user_id,
		       timestamp, message_text, classification_result, used_model
		FROM chat_history
		WHERE chat_id = ? AND message_id = ?`,
		chatID, messageID).Scan(&e.ID, &e.ChatID, &e.ThreadID, &e.MessageID,
		&fromUser, &ts, &e.Text, &class, &model)
	if err == sql.ErrNoRows {
		return HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("find history entry: %w", err)
	}
	if fromUser.Valid {
		v := fromUser.Int64
		e.FromUserID = &v
	}
	if e.Timestamp, err = decodeTime(ts); err != nil {
		return HistoryEntry{}, err
	}
	if class.Valid {
		v := class.String
		e.Classification = &v
	}
	if model.Valid {
		v := model.String
		e.UsedModel = &v
	}
	return e, nil
}

// PruneHistory deletes chat_history rows older than 24 hours and returns
// the number of rows removed.
func (d *DB) PruneHistory(now time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec(`DELETE FROM chat_history WHERE timestamp < ?`,
		encodeTime(now.Add(-24*time.Hour)))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
