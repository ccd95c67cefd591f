package store

import (
	"context"
	"database/sql"

	"github.com/rpggio/memengine/internal/memerr"
	"github.com/rpggio/memengine/internal/memory"
)

// BridgeRepository persists memory.Bridge rows, grounded on the teacher's
// RecordRepository.AddRelation/GetRelated pair but generalized to a
// first-class typed, weighted, decaying edge rather than a bare join table.
type BridgeRepository struct {
	db *DB
}

func NewBridgeRepository(db *DB) *BridgeRepository {
	return &BridgeRepository{db: db}
}

func (r *BridgeRepository) Create(ctx context.Context, b *memory.Bridge) error {
	if b.SourceID == b.TargetID {
		return memerr.InvalidInput("bridge source and target must differ")
	}
	shared, err := encodeJSON(b.SharedConcepts)
	if err != nil {
		return memerr.Infrastructure("encode shared_concepts", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO bridges (
			id, source_id, target_id, relation_type, status, weight, confidence,
			reason, shared_concepts, use_count, propagated_from, propagation_depth,
			created_by, created_at, last_reinforced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.SourceID, b.TargetID, b.Relation, b.Status, b.Weight, b.Confidence,
		b.Reason, shared, b.UseCount, b.PropagatedFrom, b.PropagationDepth,
		b.CreatedBy, encodeTime(b.CreatedAt), encodeTimePtr(b.LastReinforced))
	if err != nil {
		if isForeignKeyViolation(err) {
			return memerr.InvalidInput("bridge endpoint thread does not exist")
		}
		if isCheckViolation(err) {
			return memerr.InvalidInput("bridge source and target must differ")
		}
		return memerr.Storage("create bridge", err)
	}
	return nil
}

func (r *BridgeRepository) Get(ctx context.Context, id string) (*memory.Bridge, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, source_id, target_id, relation_type, status, weight, confidence,
			reason, shared_concepts, use_count, propagated_from, propagation_depth,
			created_by, created_at, last_reinforced
		FROM bridges WHERE id = ?
	`, id)
	return scanBridge(row.Scan, id)
}

// scanFunc abstracts *sql.Row.Scan and *sql.Rows.Scan so ListForThread can
// reuse the same column-order decode logic as Get.
type scanFunc func(dest ...any) error

func scanBridge(scan scanFunc, id string) (*memory.Bridge, error) {
	var b memory.Bridge
	var shared string
	var createdAt string
	var lastReinforced sql.NullString

	err := scan(
		&b.ID, &b.SourceID, &b.TargetID, &b.Relation, &b.Status, &b.Weight, &b.Confidence,
		&b.Reason, &shared, &b.UseCount, &b.PropagatedFrom, &b.PropagationDepth,
		&b.CreatedBy, &createdAt, &lastReinforced,
	)
	if err == sql.ErrNoRows {
		return nil, memerr.NotFound("Bridge", id)
	}
	if err != nil {
		return nil, memerr.Storage("scan bridge", err)
	}
	b.CreatedAt = decodeTime(createdAt)
	if lastReinforced.Valid {
		b.LastReinforced = decodeTimePtr(&lastReinforced.String)
	}
	if err := decodeJSON(shared, &b.SharedConcepts); err != nil {
		return nil, memerr.Infrastructure("decode shared_concepts", err)
	}
	return &b, nil
}

// ListForThread returns every bridge with thread as either endpoint.
func (r *BridgeRepository) ListForThread(ctx context.Context, threadID string) ([]*memory.Bridge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation_type, status, weight, confidence,
			reason, shared_concepts, use_count, propagated_from, propagation_depth,
			created_by, created_at, last_reinforced
		FROM bridges WHERE source_id = ? OR target_id = ?
	`, threadID, threadID)
	if err != nil {
		return nil, memerr.Storage("list bridges for thread", err)
	}
	defer rows.Close()

	var bridges []*memory.Bridge
	for rows.Next() {
		b, err := scanBridge(rows.Scan, threadID)
		if err != nil {
			return nil, err
		}
		bridges = append(bridges, b)
	}
	return bridges, rows.Err()
}

// ListAll returns every bridge, used by decay and by orphan detection.
func (r *BridgeRepository) ListAll(ctx context.Context) ([]*memory.Bridge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, relation_type, status, weight, confidence,
			reason, shared_concepts, use_count, propagated_from, propagation_depth,
			created_by, created_at, last_reinforced
		FROM bridges
	`)
	if err != nil {
		return nil, memerr.Storage("list all bridges", err)
	}
	defer rows.Close()

	var bridges []*memory.Bridge
	for rows.Next() {
		b, err := scanBridge(rows.Scan, "")
		if err != nil {
			return nil, err
		}
		bridges = append(bridges, b)
	}
	return bridges, rows.Err()
}

// Update writes back weight/status/use_count/last_reinforced changes made by
// gossip reinforcement or decay.
func (r *BridgeRepository) Update(ctx context.Context, b *memory.Bridge) error {
	shared, err := encodeJSON(b.SharedConcepts)
	if err != nil {
		return memerr.Infrastructure("encode shared_concepts", err)
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE bridges SET status = ?, weight = ?, confidence = ?, reason = ?,
			shared_concepts = ?, use_count = ?, last_reinforced = ?
		WHERE id = ?
	`, b.Status, b.Weight, b.Confidence, b.Reason, shared, b.UseCount, encodeTimePtr(b.LastReinforced), b.ID)
	if err != nil {
		return memerr.Storage("update bridge", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return memerr.NotFound("Bridge", b.ID)
	}
	return nil
}

// Delete removes a bridge outright (used by invalid-status pruning).
func (r *BridgeRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bridges WHERE id = ?`, id)
	if err != nil {
		return memerr.Storage("delete bridge", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return memerr.NotFound("Bridge", id)
	}
	return nil
}

// PurgeOrphans deletes any bridge whose source or target no longer resolves
// to an existing thread (spec §3: an orphan bridge must be purged). Returns
// the number of rows removed.
func (r *BridgeRepository) PurgeOrphans(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM bridges
		WHERE source_id NOT IN (SELECT id FROM threads)
		   OR target_id NOT IN (SELECT id FROM threads)
	`)
	if err != nil {
		return 0, memerr.Storage("purge orphan bridges", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, memerr.Storage("purge orphan bridges rows affected", err)
	}
	return n, nil
}

// CountOrphans reports how many bridges would be removed by PurgeOrphans,
// without removing them — used by the healthguard sweep to flag drift
// before the next decay pass purges it.
func (r *BridgeRepository) CountOrphans(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bridges
		WHERE source_id NOT IN (SELECT id FROM threads)
		   OR target_id NOT IN (SELECT id FROM threads)
	`).Scan(&n)
	if err != nil {
		return 0, memerr.Storage("count orphan bridges", err)
	}
	return n, nil
}
