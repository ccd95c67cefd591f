package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpggio/memengine/internal/memerr"
	"github.com/rpggio/memengine/internal/memory"
)

// ThreadRepository persists memory.Thread rows, following the teacher's
// RecordRepository shape (internal/sqlite/record.go): plain database/sql,
// optimistic concurrency via a monotonic tick compared in the UPDATE WHERE
// clause, rows-affected used to distinguish not-found from conflict.
type ThreadRepository struct {
	db *DB
}

func NewThreadRepository(db *DB) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// Create inserts a new thread at tick 0.
func (r *ThreadRepository) Create(ctx context.Context, th *memory.Thread) error {
	topics, err := encodeJSON(th.Topics)
	if err != nil {
		return memerr.Infrastructure("encode topics", err)
	}
	labels, err := encodeJSON(th.Labels)
	if err != nil {
		return memerr.Infrastructure("encode labels", err)
	}
	tags, err := encodeJSON(th.Tags)
	if err != nil {
		return memerr.Infrastructure("encode tags", err)
	}
	concepts, err := encodeJSON(th.Concepts)
	if err != nil {
		return memerr.Infrastructure("encode concepts", err)
	}
	workContext, err := encodeJSON(th.WorkContext)
	if err != nil {
		return memerr.Infrastructure("encode work_context", err)
	}
	injectionStats, err := encodeJSON(th.InjectionStats)
	if err != nil {
		return memerr.Infrastructure("encode injection_stats", err)
	}
	driftHistory, err := encodeJSON(th.DriftHistory)
	if err != nil {
		return memerr.Infrastructure("encode drift_history", err)
	}
	ratings, err := encodeJSON(th.Ratings)
	if err != nil {
		return memerr.Infrastructure("encode ratings", err)
	}

	splitLocked := th.SplitLock != nil && th.SplitLock.Locked
	var splitLockExpiry *string
	if th.SplitLock != nil {
		splitLockExpiry = encodeTimePtr(th.SplitLock.ExpiresAt)
	}

	query := `
		INSERT INTO threads (
			id, title, status, origin_type, weight, importance,
			importance_manually_set, relevance_score, activation_count,
			created_at, last_active, parent_id,
			topics, labels, tags, concepts, embedding, summary,
			work_context, injection_stats, split_locked, split_lock_expiry,
			drift_history, ratings, tick
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`
	_, err = r.db.ExecContext(ctx, query,
		th.ID, th.Title, th.Status, th.Origin, th.Weight, th.Importance,
		th.ImportanceManuallySet, th.RelevanceScore, th.ActivationCount,
		encodeTime(th.CreatedAt), encodeTime(th.LastActive), th.ParentID,
		topics, labels, tags, concepts, encodeEmbedding(th.Embedding), th.Summary,
		nullIfEmpty(workContext), nullIfEmpty(injectionStats), splitLocked, splitLockExpiry,
		driftHistory, ratings,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return memerr.InvalidInput("parent thread does not exist")
		}
		return memerr.Storage("create thread", err)
	}
	return nil
}

// Get fetches a thread and derives ChildIDs from the reverse parent_id scan.
func (r *ThreadRepository) Get(ctx context.Context, id string) (*memory.Thread, error) {
	th, _, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	children, err := r.childIDs(ctx, id)
	if err != nil {
		return nil, err
	}
	th.ChildIDs = children
	return th, nil
}

// GetWithTick fetches a thread along with its current tick, for callers
// (the thread manager) that need to round-trip the tick into Update.
func (r *ThreadRepository) GetWithTick(ctx context.Context, id string) (*memory.Thread, int64, error) {
	th, tick, err := r.get(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	children, err := r.childIDs(ctx, id)
	if err != nil {
		return nil, 0, err
	}
	th.ChildIDs = children
	return th, tick, nil
}

func (r *ThreadRepository) get(ctx context.Context, id string) (*memory.Thread, int64, error) {
	query := `
		SELECT
			id, title, status, origin_type, weight, importance,
			importance_manually_set, relevance_score, activation_count,
			created_at, last_active, parent_id,
			topics, labels, tags, concepts, embedding, summary,
			work_context, injection_stats, split_locked, split_lock_expiry,
			drift_history, ratings, tick
		FROM threads WHERE id = ?
	`
	var th memory.Thread
	var createdAt, lastActive string
	var topics, labels, tags, concepts, driftHistory, ratings string
	var embedding []byte
	var workContext, injectionStats sql.NullString
	var summary sql.NullString
	var splitLockExpiry sql.NullString
	var splitLocked bool
	var tick int64

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&th.ID, &th.Title, &th.Status, &th.Origin, &th.Weight, &th.Importance,
		&th.ImportanceManuallySet, &th.RelevanceScore, &th.ActivationCount,
		&createdAt, &lastActive, &th.ParentID,
		&topics, &labels, &tags, &concepts, &embedding, &summary,
		&workContext, &injectionStats, &splitLocked, &splitLockExpiry,
		&driftHistory, &ratings, &tick,
	)
	if err == sql.ErrNoRows {
		return nil, 0, memerr.NotFound("Thread", id)
	}
	if err != nil {
		return nil, 0, memerr.Storage("get thread", err)
	}

	th.CreatedAt = decodeTime(createdAt)
	th.LastActive = decodeTime(lastActive)
	th.Embedding = decodeEmbedding(embedding)
	if summary.Valid {
		th.Summary = summary.String
	}
	if err := decodeJSON(topics, &th.Topics); err != nil {
		return nil, 0, memerr.Infrastructure("decode topics", err)
	}
	if err := decodeJSON(labels, &th.Labels); err != nil {
		return nil, 0, memerr.Infrastructure("decode labels", err)
	}
	if err := decodeJSON(tags, &th.Tags); err != nil {
		return nil, 0, memerr.Infrastructure("decode tags", err)
	}
	if err := decodeJSON(concepts, &th.Concepts); err != nil {
		return nil, 0, memerr.Infrastructure("decode concepts", err)
	}
	if err := decodeJSON(driftHistory, &th.DriftHistory); err != nil {
		return nil, 0, memerr.Infrastructure("decode drift_history", err)
	}
	if err := decodeJSON(ratings, &th.Ratings); err != nil {
		return nil, 0, memerr.Infrastructure("decode ratings", err)
	}
	if workContext.Valid {
		var wc memory.WorkContext
		if err := decodeJSON(workContext.String, &wc); err != nil {
			return nil, 0, memerr.Infrastructure("decode work_context", err)
		}
		th.WorkContext = &wc
	}
	if injectionStats.Valid {
		var is memory.InjectionStats
		if err := decodeJSON(injectionStats.String, &is); err != nil {
			return nil, 0, memerr.Infrastructure("decode injection_stats", err)
		}
		th.InjectionStats = &is
	}
	if splitLocked || splitLockExpiry.Valid {
		sl := &memory.SplitLock{Locked: splitLocked}
		if splitLockExpiry.Valid {
			sl.ExpiresAt = decodeTimePtr(&splitLockExpiry.String)
		}
		th.SplitLock = sl
	}

	return &th, tick, nil
}

func (r *ThreadRepository) childIDs(ctx context.Context, parentID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM threads WHERE parent_id = ?`, parentID)
	if err != nil {
		return nil, memerr.Storage("list child threads", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, memerr.Storage("scan child thread id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Update writes th back with optimistic concurrency: the caller must supply
// the tick it last read. A mismatched tick yields memerr.KindStorage with a
// conflict message rather than silently overwriting a concurrent writer.
func (r *ThreadRepository) Update(ctx context.Context, th *memory.Thread, expectedTick int64) error {
	topics, _ := encodeJSON(th.Topics)
	labels, _ := encodeJSON(th.Labels)
	tags, _ := encodeJSON(th.Tags)
	concepts, _ := encodeJSON(th.Concepts)
	workContext, _ := encodeJSON(th.WorkContext)
	injectionStats, _ := encodeJSON(th.InjectionStats)
	driftHistory, _ := encodeJSON(th.DriftHistory)
	ratings, _ := encodeJSON(th.Ratings)

	splitLocked := th.SplitLock != nil && th.SplitLock.Locked
	var splitLockExpiry *string
	if th.SplitLock != nil {
		splitLockExpiry = encodeTimePtr(th.SplitLock.ExpiresAt)
	}

	query := `
		UPDATE threads SET
			title = ?, status = ?, origin_type = ?, weight = ?, importance = ?,
			importance_manually_set = ?, relevance_score = ?, activation_count = ?,
			last_active = ?, parent_id = ?,
			topics = ?, labels = ?, tags = ?, concepts = ?, embedding = ?, summary = ?,
			work_context = ?, injection_stats = ?, split_locked = ?, split_lock_expiry = ?,
			drift_history = ?, ratings = ?, tick = ?
		WHERE id = ? AND tick = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		th.Title, th.Status, th.Origin, th.Weight, th.Importance,
		th.ImportanceManuallySet, th.RelevanceScore, th.ActivationCount,
		encodeTime(th.LastActive), th.ParentID,
		topics, labels, tags, concepts, encodeEmbedding(th.Embedding), th.Summary,
		nullIfEmpty(workContext), nullIfEmpty(injectionStats), splitLocked, splitLockExpiry,
		driftHistory, ratings, expectedTick+1,
		th.ID, expectedTick,
	)
	if err != nil {
		return memerr.Storage("update thread", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return memerr.Storage("update thread rows affected", err)
	}
	if rows == 0 {
		var exists bool
		_ = r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM threads WHERE id = ?)`, th.ID).Scan(&exists)
		if !exists {
			return memerr.NotFound("Thread", th.ID)
		}
		return memerr.Storage(fmt.Sprintf("thread %s was modified concurrently", th.ID), nil)
	}
	return nil
}

// ListActive returns all active threads, used for quota enforcement.
func (r *ThreadRepository) ListActive(ctx context.Context) ([]*memory.Thread, error) {
	return r.listByStatus(ctx, memory.StatusActive)
}

// ListSuspended returns all suspended threads, used by the thread manager's
// reactivation search.
func (r *ThreadRepository) ListSuspended(ctx context.Context) ([]*memory.Thread, error) {
	return r.listByStatus(ctx, memory.StatusSuspended)
}

// ListAll returns every thread in the project store, used by the index
// rebuild and the engram retriever's candidate scan.
func (r *ThreadRepository) ListAll(ctx context.Context) ([]*memory.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM threads`)
	if err != nil {
		return nil, memerr.Storage("list threads", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, memerr.Storage("scan thread id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, memerr.Storage("iterate threads", err)
	}

	threads := make([]*memory.Thread, 0, len(ids))
	for _, id := range ids {
		th, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		threads = append(threads, th)
	}
	return threads, nil
}

func (r *ThreadRepository) listByStatus(ctx context.Context, status memory.ThreadStatus) ([]*memory.Thread, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM threads WHERE status = ?`, status)
	if err != nil {
		return nil, memerr.Storage("list threads by status", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, memerr.Storage("scan thread id", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, memerr.Storage("iterate threads", err)
	}

	threads := make([]*memory.Thread, 0, len(ids))
	for _, id := range ids {
		th, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		threads = append(threads, th)
	}
	return threads, nil
}

// Delete removes a thread. Messages cascade via the foreign key; any bridge
// that referenced it becomes an orphan for the decayer's cleanup pass.
func (r *ThreadRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id)
	if err != nil {
		return memerr.Storage("delete thread", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return memerr.Storage("delete thread rows affected", err)
	}
	if rows == 0 {
		return memerr.NotFound("Thread", id)
	}
	return nil
}

// CountActive returns the number of active threads, the quota check's
// primary read (spec §3 invariant: |active threads| <= quota).
func (r *ThreadRepository) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM threads WHERE status = ?`, memory.StatusActive).Scan(&n)
	if err != nil {
		return 0, memerr.Storage("count active threads", err)
	}
	return n, nil
}

func nullIfEmpty(s string) *string {
	if s == "" || s == "null" {
		return nil
	}
	return &s
}
