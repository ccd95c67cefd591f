package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rpggio/memengine/internal/inbox"
)

// InboxRepository implements inbox.Repository against the shared.db
// inbox_messages/dead_letters tables.
type InboxRepository struct {
	db *DB
}

func NewInboxRepository(db *DB) *InboxRepository {
	return &InboxRepository{db: db}
}

var _ inbox.Repository = (*InboxRepository)(nil)

func (r *InboxRepository) Send(ctx context.Context, msg *inbox.Message) error {
	attachments, err := encodeJSON(msg.Attachments)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO inbox_messages (id, from_agent, to_agent, subject, content, priority, status, created_at, ttl_expiry, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, msg.ID, msg.From, msg.To, msg.Subject, msg.Content, msg.Priority, msg.Status,
		encodeTime(msg.CreatedAt), encodeTime(msg.TTLExpiry), attachments)
	return err
}

func (r *InboxRepository) Get(ctx context.Context, id string) (*inbox.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, from_agent, to_agent, subject, content, priority, status,
			created_at, ttl_expiry, read_at, acked_at, attachments
		FROM inbox_messages WHERE id = ?
	`, id)
	return scanMessage(row.Scan)
}

func scanMessage(scan scanFunc) (*inbox.Message, error) {
	var m inbox.Message
	var createdAt, ttlExpiry, attachments string
	var readAt, ackedAt sql.NullString

	err := scan(&m.ID, &m.From, &m.To, &m.Subject, &m.Content, &m.Priority, &m.Status,
		&createdAt, &ttlExpiry, &readAt, &ackedAt, &attachments)
	if err == sql.ErrNoRows {
		return nil, inbox.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	m.CreatedAt = decodeTime(createdAt)
	m.TTLExpiry = decodeTime(ttlExpiry)
	if readAt.Valid {
		m.ReadAt = decodeTimePtr(&readAt.String)
	}
	if ackedAt.Valid {
		m.AckedAt = decodeTimePtr(&ackedAt.String)
	}
	if err := decodeJSON(attachments, &m.Attachments); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *InboxRepository) ListForAgent(ctx context.Context, to string, status inbox.Status) ([]*inbox.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, from_agent, to_agent, subject, content, priority, status,
			created_at, ttl_expiry, read_at, acked_at, attachments
		FROM inbox_messages WHERE to_agent = ? AND status = ?
		ORDER BY created_at ASC
	`, to, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*inbox.Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (r *InboxRepository) MarkRead(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inbox_messages SET status = ?, read_at = ? WHERE id = ? AND status = ?
	`, inbox.StatusRead, encodeTime(at), id, inbox.StatusPending)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return inbox.ErrMessageNotFound
	}
	return nil
}

func (r *InboxRepository) MarkAcked(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE inbox_messages SET status = ?, acked_at = ? WHERE id = ?
	`, inbox.StatusAcked, encodeTime(at), id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return inbox.ErrMessageNotFound
	}
	return nil
}

// ExpirePending moves every pending message whose ttl_expiry has passed
// into dead_letters, one transaction per message (spec §5: never absent
// from both tables, never present in both).
func (r *InboxRepository) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id FROM inbox_messages WHERE status = ? AND ttl_expiry < ?
	`, inbox.StatusPending, encodeTime(now))
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	expired := 0
	for _, id := range ids {
		if err := r.expireOne(ctx, id, now); err != nil {
			return expired, err
		}
		expired++
	}
	return expired, nil
}

func (r *InboxRepository) expireOne(ctx context.Context, id string, now time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		SELECT id, from_agent, to_agent, subject, content, priority, created_at, ttl_expiry, attachments
		FROM inbox_messages WHERE id = ? AND status = ?
	`, id, inbox.StatusPending)

	var dl inbox.DeadLetter
	var createdAt, ttlExpiry, attachments string
	err = row.Scan(&dl.OriginalID, &dl.From, &dl.To, &dl.Subject, &dl.Content, &dl.Priority, &createdAt, &ttlExpiry, &attachments)
	if err == sql.ErrNoRows {
		return nil // already transitioned by a racing expiry pass
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO dead_letters (id, original_id, from_agent, to_agent, subject, content, priority, created_at, ttl_expiry, expired_at, attachments)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, dl.OriginalID, dl.From, dl.To, dl.Subject, dl.Content, dl.Priority, createdAt, ttlExpiry, encodeTime(now), attachments); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM inbox_messages WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// CountDeadLetters reports the total number of dead letters across every
// agent, used by the healthguard sweep as a project-wide delivery-health
// signal rather than a per-agent one.
func (r *InboxRepository) CountDeadLetters(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letters`).Scan(&n)
	return n, err
}

func (r *InboxRepository) ListDeadLettersForAgent(ctx context.Context, to string) ([]*inbox.DeadLetter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, original_id, from_agent, to_agent, subject, content, priority, created_at, ttl_expiry, expired_at, attachments
		FROM dead_letters WHERE to_agent = ? ORDER BY expired_at DESC
	`, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var letters []*inbox.DeadLetter
	for rows.Next() {
		var dl inbox.DeadLetter
		var createdAt, ttlExpiry, expiredAt, attachments string
		if err := rows.Scan(&dl.ID, &dl.OriginalID, &dl.From, &dl.To, &dl.Subject, &dl.Content, &dl.Priority, &createdAt, &ttlExpiry, &expiredAt, &attachments); err != nil {
			return nil, err
		}
		dl.CreatedAt = decodeTime(createdAt)
		dl.TTLExpiry = decodeTime(ttlExpiry)
		dl.ExpiredAt = decodeTime(expiredAt)
		if err := decodeJSON(attachments, &dl.Attachments); err != nil {
			return nil, err
		}
		letters = append(letters, &dl)
	}
	return letters, rows.Err()
}
