package store

import (
	"context"
	"fmt"

	"github.com/rpggio/memengine/internal/memerr"
	"github.com/rpggio/memengine/internal/memory"
)

// MergeExecutor performs the merge evaluator's atomic 6-step fusion
// (spec §4.4): re-point messages, the caller has already consolidated
// survivor metadata in memory, delete absorbed's bridges, delete absorbed,
// all in one transaction that rolls back on any error.
type MergeExecutor struct {
	db *DB
}

func NewMergeExecutor(db *DB) *MergeExecutor {
	return &MergeExecutor{db: db}
}

// Execute re-points absorbed's messages to survivor, writes survivor's
// fully consolidated metadata (the caller has already run
// merge.ConsolidateAfterMerge and recomputed the embedding), deletes
// absorbed's bridges, and deletes absorbed — all within one transaction
// that rolls back on any error.
func (m *MergeExecutor) Execute(ctx context.Context, survivor *memory.Thread, absorbedID string, newEmbedding []float32) error {
	topics, _ := encodeJSON(survivor.Topics)
	labels, _ := encodeJSON(survivor.Labels)
	concepts, _ := encodeJSON(survivor.Concepts)

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.Storage("begin merge transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE thread_messages SET thread_id = ? WHERE thread_id = ?`, survivor.ID, absorbedID); err != nil {
		return memerr.Storage("re-point absorbed messages", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE threads SET title = ?, summary = ?, embedding = ?, weight = ?,
			topics = ?, labels = ?, concepts = ?, tick = tick + 1
		WHERE id = ?
	`, survivor.Title, survivor.Summary, encodeEmbedding(newEmbedding), survivor.Weight,
		topics, labels, concepts, survivor.ID)
	if err != nil {
		return memerr.Storage("update survivor metadata", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return memerr.NotFound("Thread", survivor.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM bridges WHERE source_id = ? OR target_id = ?`, absorbedID, absorbedID); err != nil {
		return memerr.Storage("delete absorbed bridges", err)
	}

	deleteResult, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, absorbedID)
	if err != nil {
		return memerr.Storage("delete absorbed thread", err)
	}
	if rows, _ := deleteResult.RowsAffected(); rows == 0 {
		return memerr.NotFound("Thread", absorbedID)
	}

	if err := tx.Commit(); err != nil {
		return memerr.Storage(fmt.Sprintf("commit merge of %s into %s", absorbedID, survivor.ID), err)
	}
	return nil
}
