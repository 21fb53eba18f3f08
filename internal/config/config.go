// Package config provides configuration loading and structs for the kakushi pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Engine   EngineConfig   `yaml:"engine"`
	NER      NERConfig      `yaml:"ner"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Watch    WatchConfig    `yaml:"watch"`
}

// WatchConfig holds inbox directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and locates the result store and the search index.
type StorageConfig struct {
	Driver         string `yaml:"driver"` // sqlite or postgres
	DatabasePath   string `yaml:"database_path"`
	PostgresURL    string `yaml:"postgres_url"`
	BleveIndexPath string `yaml:"bleve_index_path"`
}

// PipelineConfig holds the document gates, chunking and filtering settings.
type PipelineConfig struct {
	ChunkSize            int      `yaml:"chunk_size"`      // max characters per chunk
	ChunkThreshold       int      `yaml:"chunk_threshold"` // texts up to this length are not split
	MinChars             int      `yaml:"min_chars"`
	MinWords             int      `yaml:"min_words"`
	ScoreThreshold       float64  `yaml:"score_threshold"`
	RemoveDuplicates     *bool    `yaml:"remove_duplicates"`
	PersonScoreThreshold float64  `yaml:"person_score_threshold"`
	Languages            []string `yaml:"languages"`
	FileTypes            []string `yaml:"file_types"`
	RecordVersion        int      `yaml:"record_version"`
	ExtendedFormats      bool     `yaml:"extended_formats"`
}

// RemoveDuplicatesOrDefault returns whether hits are deduplicated by span; defaults to true.
func (p *PipelineConfig) RemoveDuplicatesOrDefault() bool {
	if p.RemoveDuplicates != nil {
		return *p.RemoveDuplicates
	}
	return true
}

// EngineConfig configures the PII analysis engine.
type EngineConfig struct {
	Mode            string             `yaml:"mode"` // local or remote
	DefaultURL      string             `yaml:"default_url"`
	URLs            map[string]string  `yaml:"urls"` // language code -> analyze URL
	Timeout         time.Duration      `yaml:"timeout"`
	RateLimit       float64            `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Weights         map[string]float64 `yaml:"weights"`
	FilterDetection bool               `yaml:"filter_detection"`
	CollectionType  string             `yaml:"collection_type"`
	CollectionName  string             `yaml:"collection_name"`
}

// NERConfig configures the secondary named-entity recognizer used for PERSON checks.
type NERConfig struct {
	Mode      string        `yaml:"mode"` // heuristic, http or onnx
	URL       string        `yaml:"url"`
	Timeout   time.Duration `yaml:"timeout"`
	ModelPath string        `yaml:"model_path"`
	VocabPath string        `yaml:"vocab_path"`
	MaxTokens int           `yaml:"max_tokens"`
}

// JobsConfig selects where job progress is tracked.
type JobsConfig struct {
	Backend   string        `yaml:"backend"` // memory or redis
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// Load reads and parses the config file at path, applies environment overrides,
// expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	if cfg.NER.ModelPath != "" {
		cfg.NER.ModelPath = expandPath(cfg.NER.ModelPath, configDir)
	}
	if cfg.NER.VocabPath != "" {
		cfg.NER.VocabPath = expandPath(cfg.NER.VocabPath, configDir)
	}
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
