// Package guardianconfig parses the per-project guardian_config.json file
// (spec §6): hooks, capture, decay, gossip, engram, thread_matching,
// heartbeat and healthguard sections. Unlike the process-level internal/
// config package (YAML, loaded once at process start), this file is
// per-project, JSON, and may be reloaded mid-process as the project's
// tuning changes — encoding/json is used because the spec names this
// file's wire format explicitly.
package guardianconfig

import (
	"encoding/json"
	"fmt"
	"os"
)

type HooksConfig struct {
	CaptureEnabled bool `json:"capture_enabled"`
	InjectEnabled  bool `json:"inject_enabled"`
	HeartbeatBeat  bool `json:"heartbeat_enabled"`
}

type CaptureConfig struct {
	MinCaptureLength int      `json:"min_capture_length"`
	BlockList        []string `json:"block_list"`
}

type DecayConfig struct {
	ThreadDecayFloor  float64 `json:"thread_decay_floor"`
	BridgeDecayFloor  float64 `json:"bridge_decay_floor"`
	ArchiveAfterHours float64 `json:"archive_after_hours"`
}

type GossipConfig struct {
	CadenceSeconds    int     `json:"cadence_seconds"`
	MinShared         int     `json:"min_shared"`
	TargetBridgeRatio float64 `json:"target_bridge_ratio"`
	MinPer            int     `json:"min_per"`
	MaxPer            int     `json:"max_per"`
}

// EmbeddingConfig selects the backend internal/embed resolves against.
type EmbeddingConfig struct {
	Mode string `json:"mode"` // off | tfidf | onnx
}

type EngramConfig struct {
	// ValidatorWeights is an eight- or nine-element weight vector, one per
	// registered internal/engram.Validator, indexed by registration order.
	ValidatorWeights  []float64       `json:"validator_weights"`
	StrongInjectMin   int             `json:"strong_inject_min"`
	WeakInjectMin     int             `json:"weak_inject_min"`
	Embedding         EmbeddingConfig `json:"embedding"`
	HashIndexEnabled  bool            `json:"hash_index_enabled"`
	MaxCandidates     int             `json:"max_candidates"`
}

// CoherenceLLMConfig gates whether the coherence checker attempts an LLM
// call before falling back to embedding similarity.
type CoherenceLLMConfig struct {
	Enabled bool `json:"enabled"`
}

// CoherenceConfig tunes the coherence checker that scores a new capture
// against the most recently active thread before the thread manager runs.
type CoherenceConfig struct {
	ChildThreshold  float64             `json:"child_threshold"`
	OrphanThreshold float64             `json:"orphan_threshold"`
	MaxContextChars int                 `json:"max_context_chars"`
	LLM             CoherenceLLMConfig  `json:"llm"`
}

type ThreadMatchingConfig struct {
	ContinueThreshold         float64 `json:"continue_threshold"`
	ReactivateThreshold       float64 `json:"reactivate_threshold"`
	CapacitySuspendThreshold  float64 `json:"capacity_suspend_threshold"`
}

// HeartbeatConfig gives the thresholds, in seconds since last-seen, that
// classify an agent's AgentStatus (registry.AgentAlive/Idle/Offline).
type HeartbeatConfig struct {
	AliveSeconds   int `json:"alive_seconds"`
	IdleSeconds    int `json:"idle_seconds"`
	OfflineSeconds int `json:"offline_seconds"`
}

// HealthguardConfig names the nine check thresholds the daemon's
// healthguard loop evaluates, plus the cooldown between successive runs.
type HealthguardConfig struct {
	DiskFreeMB          int     `json:"disk_free_mb"`
	WalSizeMB           int     `json:"wal_size_mb"`
	OrphanBridgeCount   int     `json:"orphan_bridge_count"`
	StaleAgentSeconds   int     `json:"stale_agent_seconds"`
	DeadLetterCount     int     `json:"dead_letter_count"`
	ActiveThreadRatio   float64 `json:"active_thread_ratio"`
	AvgThreadWeight     float64 `json:"avg_thread_weight"`
	MigrationVersionLag int     `json:"migration_version_lag"`
	LastBackupAgeHours  float64 `json:"last_backup_age_hours"`
	MaxSuggestions      int     `json:"max_suggestions"`
	CooldownSecs        int     `json:"cooldown_secs"`
}

type Config struct {
	Hooks          HooksConfig          `json:"hooks"`
	Capture        CaptureConfig        `json:"capture"`
	Coherence      CoherenceConfig      `json:"coherence"`
	Decay          DecayConfig          `json:"decay"`
	Gossip         GossipConfig         `json:"gossip"`
	Engram         EngramConfig         `json:"engram"`
	ThreadMatching ThreadMatchingConfig `json:"thread_matching"`
	Heartbeat      HeartbeatConfig      `json:"heartbeat"`
	Healthguard    HealthguardConfig    `json:"healthguard"`
}

// Default returns the compiled-in defaults named throughout spec §4: these
// are starting points, never authoritative once a guardian_config.json
// exists on disk — min_capture_length in particular must be read fresh
// from the loaded Config at call time, never cached as a constant.
func Default() Config {
	return Config{
		Hooks: HooksConfig{CaptureEnabled: true, InjectEnabled: true, HeartbeatBeat: true},
		Capture: CaptureConfig{
			MinCaptureLength: 20,
			BlockList:        []string{"great", "awesome", "nice", "cool", "thanks", "lol"},
		},
		Coherence: CoherenceConfig{
			ChildThreshold:  0.6,
			OrphanThreshold: 0.3,
			MaxContextChars: 4000,
			LLM:             CoherenceLLMConfig{Enabled: true},
		},
		Decay: DecayConfig{
			ThreadDecayFloor:  0.1,
			BridgeDecayFloor:  0.05,
			ArchiveAfterHours: 168,
		},
		Gossip: GossipConfig{
			CadenceSeconds:    300,
			MinShared:         2,
			TargetBridgeRatio: 1.5,
			MinPer:            1,
			MaxPer:            8,
		},
		Engram: EngramConfig{
			ValidatorWeights: []float64{1, 1, 1, 1, 1, 1, 1, 1, 1},
			StrongInjectMin:  5,
			WeakInjectMin:    3,
			Embedding:        EmbeddingConfig{Mode: "tfidf"},
			HashIndexEnabled: true,
			MaxCandidates:    200,
		},
		ThreadMatching: ThreadMatchingConfig{
			ContinueThreshold:        0.65,
			ReactivateThreshold:      0.55,
			CapacitySuspendThreshold: 0.85,
		},
		Heartbeat: HeartbeatConfig{
			AliveSeconds:   60,
			IdleSeconds:    300,
			OfflineSeconds: 900,
		},
		Healthguard: HealthguardConfig{
			DiskFreeMB:          500,
			WalSizeMB:           64,
			OrphanBridgeCount:   50,
			StaleAgentSeconds:   1800,
			DeadLetterCount:     100,
			ActiveThreadRatio:   0.9,
			AvgThreadWeight:     0.05,
			MigrationVersionLag: 1,
			LastBackupAgeHours:  24,
			MaxSuggestions:      5,
			CooldownSecs:        600,
		},
	}
}

// Load reads guardian_config.json from path, merging it onto Default() so
// an absent or partial file still yields a fully-populated Config. A
// missing file is not an error — every project without manual tuning runs
// purely on defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read guardian config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse guardian config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to path as indented JSON, for `cli config set`-style
// commands that persist a tuning change back to guardian_config.json.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal guardian config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
