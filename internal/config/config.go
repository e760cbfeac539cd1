package config

import (
	"os"
	"strconv"
)

// Config collects every environment knob the pipeline and service read.
// Load it once after godotenv has run; zero values mean "not configured".
type Config struct {
	Port string

	SegmenterURL string

	HFAPIURL         string
	HFToken          string
	RelevanceModel   string
	SpecificityModel string

	SupabaseURL string
	SupabaseKey string

	TranscriptsBucket string
	ResultsBucket     string
	MetadataTable     string
}

const (
	DefaultRelevanceModel   = "gtfintechlab/SubjECTiveQA-RELEVANT"
	DefaultSpecificityModel = "gtfintechlab/SubjECTiveQA-SPECIFIC"
	DefaultHFAPIURL         = "https://api-inference.huggingface.co"
)

func Load() Config {
	return Config{
		Port:              envOr("PORT", "8080"),
		SegmenterURL:      os.Getenv("SEGMENTER_URL"),
		HFAPIURL:          envOr("HF_API_URL", DefaultHFAPIURL),
		HFToken:           os.Getenv("HF_TOKEN"),
		RelevanceModel:    envOr("RELEVANCE_MODEL", DefaultRelevanceModel),
		SpecificityModel:  envOr("SPECIFICITY_MODEL", DefaultSpecificityModel),
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseKey:       os.Getenv("SUPABASE_KEY"),
		TranscriptsBucket: envOr("TRANSCRIPTS_BUCKET", "transcripts"),
		ResultsBucket:     envOr("RESULTS_BUCKET", "sentiment"),
		MetadataTable:     envOr("METADATA_TABLE", "processing_jobs"),
	}
}

// SupabaseConfigured reports whether remote storage can be used at all.
func (c Config) SupabaseConfigured() bool {
	return c.SupabaseURL != "" && c.SupabaseKey != ""
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// EnvInt reads an integer env var, falling back to def on absence or garbage.
func EnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
