package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "KAKUSHI_"

// LoadDotEnv loads a .env file into the process environment. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg fields from KAKUSHI_* environment variables.
// Unset variables leave the field unchanged.
func ApplyEnv(cfg *Config) error {
	var err error
	str := func(name string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && err == nil {
			n, perr := strconv.Atoi(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = n
		}
	}
	flt := func(name string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && err == nil {
			f, perr := strconv.ParseFloat(v, 64)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = f
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok && err == nil {
			d, perr := time.ParseDuration(v)
			if perr != nil {
				err = fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, perr)
				return
			}
			*dst = d
		}
	}
	list := func(name string, dst *[]string) {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = splitList(v)
		}
	}

	if v, ok := os.LookupEnv(EnvPrefix + "DEBUG"); ok {
		cfg.Debug = v == "1" || strings.EqualFold(v, "true")
	}
	str("SERVER_HOST", &cfg.Server.Host)
	num("SERVER_PORT", &cfg.Server.Port)
	str("STORAGE_DRIVER", &cfg.Storage.Driver)
	str("DATABASE_PATH", &cfg.Storage.DatabasePath)
	str("POSTGRES_URL", &cfg.Storage.PostgresURL)
	str("BLEVE_INDEX_PATH", &cfg.Storage.BleveIndexPath)
	num("CHUNK_SIZE", &cfg.Pipeline.ChunkSize)
	num("CHUNK_THRESHOLD", &cfg.Pipeline.ChunkThreshold)
	num("MIN_CHARS", &cfg.Pipeline.MinChars)
	num("MIN_WORDS", &cfg.Pipeline.MinWords)
	flt("SCORE_THRESHOLD", &cfg.Pipeline.ScoreThreshold)
	flt("PERSON_SCORE_THRESHOLD", &cfg.Pipeline.PersonScoreThreshold)
	list("LANGUAGES", &cfg.Pipeline.Languages)
	list("FILE_TYPES", &cfg.Pipeline.FileTypes)
	num("RECORD_VERSION", &cfg.Pipeline.RecordVersion)
	str("ENGINE_MODE", &cfg.Engine.Mode)
	str("ENGINE_URL", &cfg.Engine.DefaultURL)
	dur("ENGINE_TIMEOUT", &cfg.Engine.Timeout)
	flt("ENGINE_RATE_LIMIT", &cfg.Engine.RateLimit)
	str("NER_MODE", &cfg.NER.Mode)
	str("NER_URL", &cfg.NER.URL)
	str("NER_MODEL_PATH", &cfg.NER.ModelPath)
	str("JOBS_BACKEND", &cfg.Jobs.Backend)
	str("REDIS_ADDR", &cfg.Jobs.RedisAddr)
	dur("JOBS_TTL", &cfg.Jobs.TTL)
	return err
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
