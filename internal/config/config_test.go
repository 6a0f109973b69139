package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "ollama", cfg.Embedding.Provider)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverridesApply(t *testing.T) {
	t.Setenv("KENNY_DB_PATH", "/tmp/custom.db")
	t.Setenv("KENNY_ENV", "production")
	t.Setenv("OLLAMA_ENDPOINT", "http://example:1234")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, "/tmp/custom.db", cfg.Store.Path)
	require.Equal(t, "production", cfg.Env)
	require.Equal(t, "http://example:1234", cfg.Embedding.OllamaEndpoint)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.Path = "/tmp/kenny-roundtrip.db"
	path := filepath.Join(t.TempDir(), "kenny.yaml")
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/tmp/kenny-roundtrip.db", loaded.Store.Path)
}

func TestValidateRejectsBadEmbeddingProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "carrier-pigeon"
	require.Error(t, cfg.Validate())
}

func TestGetLLMTimeoutFallsBackOnBadDuration(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "not-a-duration"
	require.Equal(t, cfg.GetLLMTimeout().Seconds(), float64(60))
}
