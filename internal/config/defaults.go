package config

import "time"

// Default entity weights used by the local engine when none are configured.
// Values are risk levels on a 0-10 scale.
var defaultWeights = map[string]float64{
	"PERSON":            5,
	"EMAIL_ADDRESS":     6,
	"PHONE_NUMBER":      6,
	"CREDIT_CARD":       9,
	"IBAN_CODE":         9,
	"US_SSN":            10,
	"US_DRIVER_LICENSE": 8,
	"IP_ADDRESS":        4,
	"DATE_TIME":         2,
	"MEDICAL_LICENSE":   8,
	"LOCATION":          3,
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8090
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kakushi/data/db/records.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "/usr/local/var/kakushi/data/indices/bleve"
	}
	if cfg.Pipeline.ChunkSize == 0 {
		cfg.Pipeline.ChunkSize = 5000
	}
	if cfg.Pipeline.ChunkThreshold == 0 {
		cfg.Pipeline.ChunkThreshold = cfg.Pipeline.ChunkSize
	}
	if cfg.Pipeline.MinChars == 0 {
		cfg.Pipeline.MinChars = 30
	}
	if cfg.Pipeline.MinWords == 0 {
		cfg.Pipeline.MinWords = 10
	}
	if cfg.Pipeline.ScoreThreshold == 0 {
		cfg.Pipeline.ScoreThreshold = 0.6
	}
	if cfg.Pipeline.RemoveDuplicates == nil {
		t := true
		cfg.Pipeline.RemoveDuplicates = &t
	}
	if cfg.Pipeline.PersonScoreThreshold == 0 {
		cfg.Pipeline.PersonScoreThreshold = 0.5
	}
	if cfg.Pipeline.Languages == nil {
		cfg.Pipeline.Languages = []string{"en", "fr", "de", "es", "it", "nl", "pt"}
	}
	if cfg.Pipeline.RecordVersion == 0 {
		cfg.Pipeline.RecordVersion = 1
	}
	if cfg.Engine.Mode == "" {
		cfg.Engine.Mode = "local"
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = 60 * time.Second
	}
	if cfg.Engine.Weights == nil {
		cfg.Engine.Weights = make(map[string]float64, len(defaultWeights))
		for k, v := range defaultWeights {
			cfg.Engine.Weights[k] = v
		}
	}
	if cfg.Engine.CollectionType == "" {
		cfg.Engine.CollectionType = "document"
	}
	if cfg.Engine.CollectionName == "" {
		cfg.Engine.CollectionName = "kakushi"
	}
	if cfg.NER.Mode == "" {
		cfg.NER.Mode = "heuristic"
	}
	if cfg.NER.Timeout == 0 {
		cfg.NER.Timeout = 10 * time.Second
	}
	if cfg.NER.MaxTokens == 0 {
		cfg.NER.MaxTokens = 128
	}
	if cfg.Jobs.Backend == "" {
		cfg.Jobs.Backend = "memory"
	}
	if cfg.Jobs.RedisAddr == "" {
		cfg.Jobs.RedisAddr = "localhost:6379"
	}
	if cfg.Jobs.TTL == 0 {
		cfg.Jobs.TTL = 24 * time.Hour
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".html", ".htm"}
		if cfg.Pipeline.ExtendedFormats {
			cfg.Watch.Extensions = append(cfg.Watch.Extensions, ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods")
		}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
