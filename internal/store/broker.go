package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rpggio/memengine/internal/broker"
)

// BrokerStore implements broker.Store against the shared.db
// broker_messages append log and per-consumer cursor table.
type BrokerStore struct {
	db *DB
}

func NewBrokerStore(db *DB) *BrokerStore {
	return &BrokerStore{db: db}
}

var _ broker.Store = (*BrokerStore)(nil)

func (s *BrokerStore) Publish(ctx context.Context, env broker.Envelope) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broker_messages (id, from_agent, to_agent, subject, content, sent_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, env.ID, env.From, env.To, env.Subject, env.Content, encodeTime(env.SentAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil // idempotent re-publish
		}
		return err
	}
	return nil
}

// PollSince returns up to limit envelopes published after the consumer's
// last acknowledged sequence position.
func (s *BrokerStore) PollSince(ctx context.Context, consumer string, limit int) ([]broker.Envelope, error) {
	var lastID string
	err := s.db.QueryRowContext(ctx, `SELECT last_delivered_id FROM broker_fanout_cursor WHERE consumer = ?`, consumer).Scan(&lastID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var lastSeq int64
	if lastID != "" {
		_ = s.db.QueryRowContext(ctx, `SELECT seq FROM broker_messages WHERE id = ?`, lastID).Scan(&lastSeq)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, from_agent, to_agent, subject, content, sent_at
		FROM broker_messages WHERE seq > ? AND to_agent = ? ORDER BY seq ASC LIMIT ?
	`, lastSeq, consumer, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var envelopes []broker.Envelope
	for rows.Next() {
		var env broker.Envelope
		var sentAt string
		if err := rows.Scan(&env.ID, &env.From, &env.To, &env.Subject, &env.Content, &sentAt); err != nil {
			return nil, err
		}
		env.SentAt = decodeTime(sentAt)
		envelopes = append(envelopes, env)
	}
	return envelopes, rows.Err()
}

func (s *BrokerStore) Ack(ctx context.Context, consumer, lastID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO broker_fanout_cursor (consumer, last_delivered_id) VALUES (?, ?)
		ON CONFLICT(consumer) DO UPDATE SET last_delivered_id = excluded.last_delivered_id
	`, consumer, lastID)
	return err
}
