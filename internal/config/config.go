// Package config provides configuration management for chorus.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// Defaults.
const (
	DefaultWorkerPort     = 37780
	DefaultPDSHost        = "https://bsky.social"
	DefaultEmbeddingModel = "text-embedding-3-small"
	DefaultChatModel      = "gpt-4o-mini"

	// DefaultMaxPostLength is the target platform's post length limit.
	DefaultMaxPostLength = 300

	// DefaultAnnotationPrefix is prepended to every published annotation so
	// readers can tell generated notes from organic replies.
	DefaultAnnotationPrefix = "🧵 "
)

// Config holds all chorus configuration.
type Config struct {
	// Platform
	PDSHost     string `json:"pds_host"`
	Handle      string `json:"handle"`
	AppPassword string `json:"-"` // env only, never serialized

	// Generation backends
	OpenAIKey      string `json:"-"` // env only, never serialized
	EmbeddingModel string `json:"embedding_model"`
	ChatModel      string `json:"chat_model"`

	// Clustering policy
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MinGroupSize        int     `json:"min_group_size"`

	// Publication policy
	MaxPostLength    int    `json:"max_post_length"`
	AnnotationPrefix string `json:"annotation_prefix"`

	// Scheduling
	PollIntervalSec   int `json:"poll_interval_sec"`
	MentionFetchLimit int `json:"mention_fetch_limit"`
	RemoteTimeoutSec  int `json:"remote_timeout_sec"`

	// Service
	WorkerPort int `json:"worker_port"`
	MaxConns   int `json:"max_conns"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		PDSHost:             DefaultPDSHost,
		EmbeddingModel:      DefaultEmbeddingModel,
		ChatModel:           DefaultChatModel,
		SimilarityThreshold: 0.2,
		MinGroupSize:        3,
		MaxPostLength:       DefaultMaxPostLength,
		AnnotationPrefix:    DefaultAnnotationPrefix,
		PollIntervalSec:     300,
		MentionFetchLimit:   50,
		RemoteTimeoutSec:    30,
		WorkerPort:          DefaultWorkerPort,
		MaxConns:            4,
	}
}

// dataDirOverride relocates all state when set (the -data-dir flag).
var dataDirOverride string

// SetDataDir overrides the default data directory. Settings, database,
// and the settings watcher all follow it. Empty restores the default.
func SetDataDir(path string) {
	dataDirOverride = path
}

// DataDir returns the chorus data directory (~/.chorus unless overridden).
func DataDir() string {
	if dataDirOverride != "" {
		return dataDirOverride
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".chorus")
}

// DBPath returns the SQLite database path.
func DBPath() string {
	return filepath.Join(DataDir(), "chorus.db")
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), "settings.json")
}

// EnsureDataDir creates the data directory if missing.
func EnsureDataDir() error {
	return os.MkdirAll(DataDir(), 0o755)
}

// EnsureSettings writes a default settings file if none exists.
func EnsureSettings() error {
	path := SettingsPath()
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	data, err := json.MarshalIndent(Default(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// EnsureAll creates the data directory and settings file.
func EnsureAll() error {
	if err := EnsureDataDir(); err != nil {
		return err
	}
	return EnsureSettings()
}

// Load reads settings.json over the defaults, then applies environment
// overrides. Secrets only ever come from the environment.
func Load() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(SettingsPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read settings: %w", err)
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if v := os.Getenv("BLUESKY_HANDLE"); v != "" {
		c.Handle = v
	}
	if v := os.Getenv("BLUESKY_APP_PASSWORD"); v != "" {
		c.AppPassword = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAIKey = v
	}
	if v := os.Getenv("BLUESKY_PDS_HOST"); v != "" {
		c.PDSHost = v
	}
}

// Validate checks required settings. A config failing validation prevents
// startup entirely; nothing later in the pipeline tolerates missing
// credentials.
func (c *Config) Validate() error {
	var errs []error
	if c.Handle == "" {
		errs = append(errs, errors.New("handle is required (settings.json or BLUESKY_HANDLE)"))
	}
	if c.AppPassword == "" {
		errs = append(errs, errors.New("app password is required (BLUESKY_APP_PASSWORD)"))
	}
	if c.OpenAIKey == "" {
		errs = append(errs, errors.New("OpenAI API key is required (OPENAI_API_KEY)"))
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		errs = append(errs, fmt.Errorf("similarity_threshold %v outside [-1, 1]", c.SimilarityThreshold))
	}
	if c.MinGroupSize < 1 {
		errs = append(errs, fmt.Errorf("min_group_size %d must be at least 1", c.MinGroupSize))
	}
	if c.MaxPostLength < len([]rune(c.AnnotationPrefix))+1 {
		errs = append(errs, fmt.Errorf("max_post_length %d leaves no room after the annotation prefix", c.MaxPostLength))
	}
	return errors.Join(errs...)
}

// PollInterval returns the scheduling interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

// RemoteTimeout returns the bound applied to every remote call.
func (c *Config) RemoteTimeout() time.Duration {
	return time.Duration(c.RemoteTimeoutSec) * time.Second
}
