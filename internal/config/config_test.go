package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
pipeline:
  chunk_size: 2000
  file_types: ["txt", "html"]
engine:
  mode: remote
  urls:
    en: "http://engine/en/analyze"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Pipeline.ChunkSize != 2000 || cfg.Pipeline.ChunkThreshold != 2000 {
		t.Errorf("chunk_threshold should follow chunk_size: got %d/%d", cfg.Pipeline.ChunkSize, cfg.Pipeline.ChunkThreshold)
	}
	if len(cfg.Pipeline.FileTypes) != 2 {
		t.Errorf("file_types: got %v", cfg.Pipeline.FileTypes)
	}
	if cfg.Engine.Mode != "remote" || cfg.Engine.URLs["en"] != "http://engine/en/analyze" {
		t.Errorf("unexpected engine config: %+v", cfg.Engine)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/records.db"
watch:
  directories: ["./inbox"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "records.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	if len(cfg.Watch.Directories) != 1 {
		t.Fatalf("watch directories: got %d", len(cfg.Watch.Directories))
	}
	wantWatch := filepath.Join(dir, "inbox")
	if cfg.Watch.Directories[0] != wantWatch {
		t.Errorf("watch directory = %s, want %s", cfg.Watch.Directories[0], wantWatch)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KAKUSHI_SERVER_PORT", "9100")
	t.Setenv("KAKUSHI_SCORE_THRESHOLD", "0.75")
	t.Setenv("KAKUSHI_LANGUAGES", "en, fr ,")
	t.Setenv("KAKUSHI_JOBS_TTL", "2h")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("port: got %d, want 9100", cfg.Server.Port)
	}
	if cfg.Pipeline.ScoreThreshold != 0.75 {
		t.Errorf("score_threshold: got %f", cfg.Pipeline.ScoreThreshold)
	}
	if len(cfg.Pipeline.Languages) != 2 || cfg.Pipeline.Languages[1] != "fr" {
		t.Errorf("languages: got %v", cfg.Pipeline.Languages)
	}
	if cfg.Jobs.TTL != 2*time.Hour {
		t.Errorf("jobs ttl: got %v", cfg.Jobs.TTL)
	}
}

func TestLoad_envInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("debug: false\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("KAKUSHI_CHUNK_SIZE", "big")
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-numeric KAKUSHI_CHUNK_SIZE")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("KAKUSHI_TEST_DOTENV=loaded\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("KAKUSHI_TEST_DOTENV") })
	if err := LoadDotEnv(envPath, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("KAKUSHI_TEST_DOTENV"); got != "loaded" {
		t.Errorf("KAKUSHI_TEST_DOTENV = %q, want loaded", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("default driver: got %s", cfg.Storage.Driver)
	}
	if cfg.Pipeline.ScoreThreshold != 0.6 {
		t.Errorf("default score_threshold: got %f", cfg.Pipeline.ScoreThreshold)
	}
	if cfg.Pipeline.PersonScoreThreshold != 0.5 {
		t.Errorf("default person_score_threshold: got %f", cfg.Pipeline.PersonScoreThreshold)
	}
	if !cfg.Pipeline.RemoveDuplicatesOrDefault() {
		t.Error("remove_duplicates should default to true")
	}
	if cfg.Pipeline.RecordVersion != 1 {
		t.Errorf("default record_version: got %d", cfg.Pipeline.RecordVersion)
	}
	if cfg.Engine.Mode != "local" || len(cfg.Engine.Weights) == 0 {
		t.Errorf("engine defaults: mode=%s weights=%d", cfg.Engine.Mode, len(cfg.Engine.Weights))
	}
	if cfg.NER.Mode != "heuristic" {
		t.Errorf("default ner mode: got %s", cfg.NER.Mode)
	}
	if cfg.Jobs.Backend != "memory" {
		t.Errorf("default jobs backend: got %s", cfg.Jobs.Backend)
	}
	if len(cfg.Watch.Extensions) != 4 || cfg.Watch.Extensions[0] != ".txt" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_ExtendedFormatsWidenWatchExtensions(t *testing.T) {
	cfg := &Config{Pipeline: PipelineConfig{ExtendedFormats: true}}
	ApplyDefaults(cfg)
	if len(cfg.Watch.Extensions) != 10 || cfg.Watch.Extensions[4] != ".pdf" {
		t.Errorf("watch extensions: got %v", cfg.Watch.Extensions)
	}
}

func TestApplyDefaults_KeepsExplicitRemoveDuplicatesFalse(t *testing.T) {
	f := false
	cfg := &Config{Pipeline: PipelineConfig{RemoveDuplicates: &f}}
	ApplyDefaults(cfg)
	if cfg.Pipeline.RemoveDuplicatesOrDefault() {
		t.Error("explicit remove_duplicates=false must be kept")
	}
}

func TestApplyDefaults_WatchRecursiveWhenDirectoriesSet(t *testing.T) {
	cfg := &Config{Watch: WatchConfig{Directories: []string{"/tmp/docs"}}}
	ApplyDefaults(cfg)
	if cfg.Watch.Recursive == nil || !*cfg.Watch.Recursive {
		t.Error("recursive should default to true when directories are set")
	}
}

func TestWatchConfig_RecursiveOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		w := &WatchConfig{}
		if got := w.RecursiveOrDefault(); !got {
			t.Errorf("RecursiveOrDefault() = %v, want true", got)
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		w := &WatchConfig{Recursive: &f}
		if got := w.RecursiveOrDefault(); got {
			t.Errorf("RecursiveOrDefault() = %v, want false", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
