package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int               `json:"port"`
	LogConfig     logger.LogConfig  `json:"log_config"`
	Database      DatabaseConfig    `json:"database"`
	AI            AIConfig          `json:"ai"`
	Limits        LimitsConfig      `json:"limits"`
	Chat          ChatConfig        `json:"chat"`
	Extract       ExtractConfig     `json:"extract"`
	ReportStore   ReportStoreConfig `json:"report_store"`
	CORSAllowlist []string          `json:"cors_allowlist"`
}

type DatabaseConfig struct {
	DSN          string `json:"dsn"`
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	DBName       string `json:"db_name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// ProviderEntry describes one provider in an ordered fallback chain.
type ProviderEntry struct {
	Provider string      `json:"provider"`
	Model    string      `json:"model"`
	Data     interface{} `json:"data"`
}

type AIConfig struct {
	Chat           []ProviderEntry `json:"chat"`
	Extract        []ProviderEntry `json:"extract"`
	Embed          []ProviderEntry `json:"embed"`
	TimeoutSeconds int             `json:"timeout_seconds"`
	EmbedCacheSize int             `json:"embed_cache_size"`
	EmbedCacheTTL  int             `json:"embed_cache_ttl_seconds"`
}

type LimitsConfig struct {
	PerMinute           int `json:"per_minute"`
	PerDay              int `json:"per_day"`
	DayTokens           int `json:"day_tokens"`
	RepeatWindowSeconds int `json:"repeat_window_seconds"`
}

type ChatConfig struct {
	MaxInputChars      int      `json:"max_input_chars"`
	MaxContextChunks   int      `json:"max_context_chunks"`
	MinSimilarity      float64  `json:"min_similarity"`
	ThemeTopN          int      `json:"theme_top_n"`
	ThemeMinScore      float64  `json:"theme_min_score"`
	AmbiguityThreshold float64  `json:"ambiguity_threshold"`
	AmbiguityGap       float64  `json:"ambiguity_gap"`
	MaxGuests          int      `json:"max_guests"`
	DebounceMillis     int      `json:"debounce_millis"`
	BlockedPhrases     []string `json:"blocked_phrases"`
}

type ExtractConfig struct {
	Enabled             bool     `json:"enabled"`
	CronSpec            string   `json:"cron_spec"`
	Podcasts            []string `json:"podcasts"`
	SampleChunks        int      `json:"sample_chunks"`
	ConceptTarget       int      `json:"concept_target"`
	InsightTarget       int      `json:"insight_target"`
	MinGuestsPerInsight int      `json:"min_guests_per_insight"`
	MinConceptWords     int      `json:"min_concept_words"`
	PrimaryOnly         bool     `json:"primary_only"`
}

type ReportStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if len(cfg.AI.Embed) == 0 {
		return nil, fmt.Errorf("ai.embed requires at least one provider")
	}
	if len(cfg.AI.Chat) == 0 {
		return nil, fmt.Errorf("ai.chat requires at least one provider")
	}
	if len(cfg.AI.Extract) == 0 {
		cfg.AI.Extract = cfg.AI.Chat
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.AI.EmbedCacheSize == 0 {
		cfg.AI.EmbedCacheSize = 10000
	}
	if cfg.AI.EmbedCacheTTL == 0 {
		cfg.AI.EmbedCacheTTL = 7200
	}
	if cfg.Limits.PerMinute == 0 {
		cfg.Limits.PerMinute = 10
	}
	if cfg.Limits.PerDay == 0 {
		cfg.Limits.PerDay = 50
	}
	if cfg.Limits.DayTokens == 0 {
		cfg.Limits.DayTokens = 10000
	}
	if cfg.Limits.RepeatWindowSeconds == 0 {
		cfg.Limits.RepeatWindowSeconds = 120
	}
	if cfg.Chat.MaxInputChars == 0 {
		cfg.Chat.MaxInputChars = 500
	}
	if cfg.Chat.MaxContextChunks == 0 {
		cfg.Chat.MaxContextChunks = 6
	}
	if cfg.Chat.MinSimilarity == 0 {
		cfg.Chat.MinSimilarity = 0.35
	}
	if cfg.Chat.ThemeTopN == 0 {
		cfg.Chat.ThemeTopN = 5
	}
	if cfg.Chat.ThemeMinScore == 0 {
		cfg.Chat.ThemeMinScore = 0.3
	}
	if cfg.Chat.AmbiguityThreshold == 0 {
		cfg.Chat.AmbiguityThreshold = 0.6
	}
	if cfg.Chat.AmbiguityGap == 0 {
		cfg.Chat.AmbiguityGap = 0.1
	}
	if cfg.Chat.MaxGuests == 0 {
		cfg.Chat.MaxGuests = 10
	}
	if cfg.Chat.DebounceMillis == 0 {
		cfg.Chat.DebounceMillis = 800
	}
	if cfg.Extract.SampleChunks == 0 {
		cfg.Extract.SampleChunks = 220
	}
	if cfg.Extract.ConceptTarget == 0 {
		cfg.Extract.ConceptTarget = 12
	}
	if cfg.Extract.InsightTarget == 0 {
		cfg.Extract.InsightTarget = 10
	}
	if cfg.Extract.MinGuestsPerInsight == 0 {
		cfg.Extract.MinGuestsPerInsight = 2
	}
	if cfg.Extract.MinConceptWords == 0 {
		cfg.Extract.MinConceptWords = 150
	}
	if cfg.Extract.CronSpec == "" {
		cfg.Extract.CronSpec = "0 4 * * *"
	}
	if cfg.ReportStore.Type == "" {
		cfg.ReportStore.Type = "local"
	}
	return &cfg, nil
}
