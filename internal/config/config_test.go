package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	assert.Equal(t, DefaultRelevanceModel, cfg.RelevanceModel)
	assert.Equal(t, DefaultSpecificityModel, cfg.SpecificityModel)
	assert.Equal(t, "transcripts", cfg.TranscriptsBucket)
	assert.Equal(t, "sentiment", cfg.ResultsBucket)
	assert.Equal(t, "processing_jobs", cfg.MetadataTable)
	assert.Equal(t, DefaultHFAPIURL, cfg.HFAPIURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("RELEVANCE_MODEL", "acme/relevance")
	t.Setenv("RESULTS_BUCKET", "scores")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_KEY", "k")
	cfg := Load()
	assert.Equal(t, "acme/relevance", cfg.RelevanceModel)
	assert.Equal(t, "scores", cfg.ResultsBucket)
	assert.True(t, cfg.SupabaseConfigured())
}

func TestSupabaseNotConfigured(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_KEY", "")
	assert.False(t, Load().SupabaseConfigured())
}

func TestEnvInt(t *testing.T) {
	t.Setenv("SOME_INT", "42")
	assert.Equal(t, 42, EnvInt("SOME_INT", 7))
	t.Setenv("SOME_INT", "garbage")
	assert.Equal(t, 7, EnvInt("SOME_INT", 7))
	assert.Equal(t, 7, EnvInt("UNSET_INT_VAR", 7))
}
