package main

import (
	"context"

	"github.com/rpggio/memengine/internal/bootstrap"
	"github.com/rpggio/memengine/internal/config"
	"github.com/rpggio/memengine/internal/engram"
	"github.com/rpggio/memengine/internal/guardianconfig"
	"github.com/rpggio/memengine/internal/index"
	"github.com/rpggio/memengine/internal/store"
)

// buildRetriever opens the project's databases with the hook connection
// role and assembles a retriever good for a single invocation. Unlike
// cmd/daemon, a hook process has no long-lived in-memory index to reuse —
// it rebuilds the concept/topic indexes from a full thread scan every
// time, the same rebuild path the daemon runs at startup, just paid on
// every call instead of once.
func buildRetriever(ctx context.Context, cfg config.Config, layout store.Layout, projectHash string, guardianCfg guardianconfig.Config) (*engram.Retriever, *bootstrap.Databases, error) {
	dbs, err := bootstrap.OpenAll(layout, projectHash, store.RoleHook)
	if err != nil {
		return nil, nil, err
	}

	embedder, err := bootstrap.BuildEmbedder(ctx, cfg, guardianCfg.Engram.Embedding.Mode)
	if err != nil {
		dbs.Close()
		return nil, nil, err
	}

	threads := store.NewThreadRepository(dbs.Project)
	bridges := store.NewBridgeRepository(dbs.Project)

	concepts, topics, err := rebuildIndexesFrom(ctx, threads)
	if err != nil {
		dbs.Close()
		return nil, nil, err
	}

	validators := bootstrap.BuildValidators()
	weights := bootstrap.EngramValidatorWeights(guardianCfg.Engram.ValidatorWeights, len(validators))
	retriever := engram.New(threads, bridges, topics, concepts, embedder, validators, weights,
		guardianCfg.Engram.StrongInjectMin, guardianCfg.Engram.WeakInjectMin, guardianCfg.Engram.MaxCandidates)
	return retriever, dbs, nil
}

// rebuildIndexesFrom builds fresh in-memory concept/topic indexes from a
// full scan of threads, the same rebuild cmd/daemon runs once at startup —
// here run on every hook invocation since a short-lived process has no
// long-lived index to keep warm across calls.
func rebuildIndexesFrom(ctx context.Context, threads *store.ThreadRepository) (concepts, topics *index.Index, err error) {
	all, err := threads.ListAll(ctx)
	if err != nil {
		return nil, nil, err
	}
	conceptItems := make([]index.ThreadTerms, 0, len(all))
	topicItems := make([]index.ThreadTerms, 0, len(all))
	for _, th := range all {
		conceptItems = append(conceptItems, index.ThreadTerms{ThreadID: th.ID, Terms: th.Concepts})
		topicItems = append(topicItems, index.ThreadTerms{ThreadID: th.ID, Terms: th.Topics})
	}
	concepts = index.New()
	topics = index.New()
	concepts.Rebuild(conceptItems)
	topics.Rebuild(topicItems)
	return concepts, topics, nil
}
