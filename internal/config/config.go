// Package config loads process-level bootstrap configuration for the
// daemon/mcpserver/hook/cli binaries: an optional YAML file overridden by
// MEMENGINE_* environment variables, generalizing the teacher's
// internal/config/config.go TRELLIS_* pattern exactly.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the bootstrap configuration shared by every binary.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Server    ServerConfig    `yaml:"server"`
	Daemon    DaemonConfig    `yaml:"daemon"`
	Data      DataConfig      `yaml:"data"`
	Log       LogConfig       `yaml:"log"`
	LLM       LLMConfig       `yaml:"llm"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Redis     RedisConfig     `yaml:"redis"`
}

type TransportConfig struct {
	Mode string `yaml:"mode"` // "stdio" or "http", mcpserver only
}

// ServerConfig addresses cmd/mcpserver's own transport when Transport.Mode
// is "http" — the MCP endpoint itself.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DaemonConfig addresses cmd/daemon's /healthz and /metrics endpoints,
// kept on a separate port from ServerConfig so a daemon and an mcpserver
// for the same project can run side by side without a bind conflict.
type DaemonConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DataConfig points at the root data directory holding projects/<hash>/,
// registry.db and shared.db (spec §6 persisted layout).
type DataConfig struct {
	Dir string `yaml:"dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" or "gemini"
	Model    string `yaml:"model"`
	APIKey   string `yaml:"-"` // never written to disk; env only
}

type EmbeddingConfig struct {
	Mode string `yaml:"mode"` // "off", "tfidf", "onnx" (spec §6 engram.embedding.mode)
}

type RedisConfig struct {
	Addr string `yaml:"addr"` // empty disables broker fan-out
}

// Load builds defaults, applies an optional YAML file named by
// MEMENGINE_CONFIG_PATH, then applies environment overrides — file beats
// defaults, env beats file, exactly the teacher's layering order.
func Load() (Config, error) {
	defaultDataDir := "memengine-data"
	if home, err := os.UserHomeDir(); err == nil {
		defaultDataDir = filepath.Join(home, ".memengine")
	}

	cfg := Config{
		Transport: TransportConfig{Mode: "stdio"},
		Server:    ServerConfig{Host: "127.0.0.1", Port: 8099},
		Daemon:    DaemonConfig{Host: "127.0.0.1", Port: 8098},
		Data:      DataConfig{Dir: defaultDataDir},
		Log:       LogConfig{Level: "info"},
		LLM:       LLMConfig{Provider: "openai", Model: "gpt-4o-mini"},
		Embedding: EmbeddingConfig{Mode: "tfidf"},
	}

	if path := os.Getenv("MEMENGINE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if mode := os.Getenv("MEMENGINE_TRANSPORT"); mode != "" {
		cfg.Transport.Mode = mode
	}
	if host := os.Getenv("MEMENGINE_SERVER_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portStr := os.Getenv("MEMENGINE_SERVER_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MEMENGINE_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}
	if host := os.Getenv("MEMENGINE_DAEMON_HOST"); host != "" {
		cfg.Daemon.Host = host
	}
	if portStr := os.Getenv("MEMENGINE_DAEMON_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MEMENGINE_DAEMON_PORT: %w", err)
		}
		cfg.Daemon.Port = port
	}
	if dir := os.Getenv("MEMENGINE_DATA_DIR"); dir != "" {
		cfg.Data.Dir = dir
	}
	if level := os.Getenv("MEMENGINE_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if file := os.Getenv("MEMENGINE_LOG_FILE"); file != "" {
		cfg.Log.File = file
	}
	if provider := os.Getenv("MEMENGINE_LLM_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if model := os.Getenv("MEMENGINE_LLM_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	cfg.LLM.APIKey = firstNonEmpty(os.Getenv("OPENAI_API_KEY"), os.Getenv("GEMINI_API_KEY"))
	if mode := os.Getenv("MEMENGINE_EMBEDDING_MODE"); mode != "" {
		cfg.Embedding.Mode = mode
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}

	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
