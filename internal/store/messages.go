package store

import (
	"context"

	"github.com/rpggio/memengine/internal/memerr"
	"github.com/rpggio/memengine/internal/memory"
)

// MessageRepository persists memory.ThreadMessage rows, following the
// teacher's ActivityRepository split (internal/sqlite/activity.go): a
// simple append-only log table with no update path.
type MessageRepository struct {
	db *DB
}

func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Append inserts a message and, in the same transaction, bumps the parent
// thread's last_active and activation_count — spec §3's ThreadMessage
// invariant requires this to be one atomic unit, the same shape as the
// teacher's RecordRepository.Create-then-relate two-step but committed
// together here since both rows must agree or neither should exist.
func (r *MessageRepository) Append(ctx context.Context, msg memory.ThreadMessage) error {
	metadata, err := encodeJSON(msg.Metadata)
	if err != nil {
		return memerr.Infrastructure("encode message metadata", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.Storage("begin append message", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO thread_messages (id, thread_id, content, is_truncated, source, source_type, timestamp, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.ThreadID, msg.Content, msg.IsTruncated, msg.Source, msg.SourceType, encodeTime(msg.Timestamp), metadata)
	if err != nil {
		if isForeignKeyViolation(err) {
			return memerr.NotFound("Thread", msg.ThreadID)
		}
		return memerr.Storage("insert thread message", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE threads SET last_active = ?, activation_count = activation_count + 1, tick = tick + 1
		WHERE id = ?
	`, encodeTime(msg.Timestamp), msg.ThreadID)
	if err != nil {
		return memerr.Storage("bump thread activation", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return memerr.NotFound("Thread", msg.ThreadID)
	}

	if err := tx.Commit(); err != nil {
		return memerr.Storage("commit append message", err)
	}
	return nil
}

// CountByThread returns a thread's total message count, used by the
// manager's auto-importance scoring rather than substituting
// activation_count for it.
func (r *MessageRepository) CountByThread(ctx context.Context, threadID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thread_messages WHERE thread_id = ?`, threadID).Scan(&count)
	if err != nil {
		return 0, memerr.Storage("count thread messages", err)
	}
	return count, nil
}

// ListByThread returns a thread's messages in insertion order.
func (r *MessageRepository) ListByThread(ctx context.Context, threadID string) ([]memory.ThreadMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, thread_id, content, is_truncated, source, source_type, timestamp, metadata
		FROM thread_messages WHERE thread_id = ? ORDER BY timestamp ASC
	`, threadID)
	if err != nil {
		return nil, memerr.Storage("list thread messages", err)
	}
	defer rows.Close()

	var messages []memory.ThreadMessage
	for rows.Next() {
		var msg memory.ThreadMessage
		var timestamp, metadata string
		if err := rows.Scan(&msg.ID, &msg.ThreadID, &msg.Content, &msg.IsTruncated, &msg.Source, &msg.SourceType, &timestamp, &metadata); err != nil {
			return nil, memerr.Storage("scan thread message", err)
		}
		msg.Timestamp = decodeTime(timestamp)
		if err := decodeJSON(metadata, &msg.Metadata); err != nil {
			return nil, memerr.Infrastructure("decode message metadata", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Storage("iterate thread messages", err)
	}
	return messages, nil
}
