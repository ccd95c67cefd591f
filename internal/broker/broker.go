// Package broker implements the shared broker named in spec §2/§6: a
// durable dead-letter-backed message bus shared across agents in a project,
// as distinct from inbox's per-agent TTL mailbox. (expansion, enrichment
// from intelligencedev-manifold and jemygraw-langgraphgo, both of which
// layer redis/go-redis/v9 in front of a durable store for live fan-out.)
//
// Redis is strictly optional: when no address is configured the broker
// degrades to polling the durable store directly, honoring the spec's
// Non-goal of no required network I/O on the hot retrieval path (the
// retrieval path never touches the broker at all regardless of this mode).
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Envelope is the payload fanned out over redis pub/sub, mirroring the
// shape persisted to the durable store so a subscriber never needs a
// follow-up read to act on it.
type Envelope struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// Store is the durable persistence the broker always writes through,
// implemented by internal/store against shared.db.
type Store interface {
	Publish(ctx context.Context, env Envelope) error
	PollSince(ctx context.Context, consumer string, limit int) ([]Envelope, error)
	Ack(ctx context.Context, consumer, lastID string) error
}

// Broker publishes to the durable Store and, when a redis client is
// configured, additionally fans the envelope out over a pub/sub channel for
// subscribers that want push delivery instead of polling.
type Broker struct {
	store  Store
	redis  *redis.Client
	logger *slog.Logger
}

// New constructs a Broker. redisClient may be nil — the zero value disables
// live fan-out and callers fall back to PollSince against the durable store.
func New(store Store, redisClient *redis.Client, logger *slog.Logger) *Broker {
	return &Broker{store: store, redis: redisClient, logger: logger}
}

func channelName(projectHash string) string {
	return "memengine:broker:" + projectHash
}

// Publish persists env durably and, if redis is configured, best-effort
// publishes it for live subscribers. A redis failure never fails the send —
// the durable write already succeeded and polling consumers still see it.
func (b *Broker) Publish(ctx context.Context, projectHash string, env Envelope) error {
	if err := b.store.Publish(ctx, env); err != nil {
		return fmt.Errorf("persist broker message: %w", err)
	}
	if b.redis == nil {
		return nil
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return nil
	}
	if err := b.redis.Publish(ctx, channelName(projectHash), payload).Err(); err != nil && b.logger != nil {
		b.logger.Warn("broker redis publish failed, durable write still applied", "error", err)
	}
	return nil
}

// Subscribe returns a channel of envelopes delivered live over redis. The
// caller must only use this when redis is configured (Enabled()); otherwise
// it should poll the durable store instead.
func (b *Broker) Subscribe(ctx context.Context, projectHash string) (<-chan Envelope, func(), error) {
	if b.redis == nil {
		return nil, nil, fmt.Errorf("broker: redis not configured, use PollSince")
	}
	sub := b.redis.Subscribe(ctx, channelName(projectHash))
	out := make(chan Envelope)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				continue
			}
			select {
			case out <- env:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { sub.Close() }, nil
}

// PollSince is the degrade-path for consumers without redis: read
// everything published since the consumer's last acknowledged cursor.
func (b *Broker) PollSince(ctx context.Context, consumer string, limit int) ([]Envelope, error) {
	return b.store.PollSince(ctx, consumer, limit)
}

// Ack advances a polling consumer's cursor.
func (b *Broker) Ack(ctx context.Context, consumer, lastID string) error {
	return b.store.Ack(ctx, consumer, lastID)
}

// Enabled reports whether live redis fan-out is configured.
func (b *Broker) Enabled() bool { return b.redis != nil }
