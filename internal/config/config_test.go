package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"slidevoice/internal/decks"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/slidevoice")
	t.Setenv("PORT", "")
	t.Setenv("API_BASE_URL", "")
	t.Setenv("API_PREFIX", "")
	t.Setenv("MAX_DECK_BYTES", "")
	t.Setenv("HTTP_TIMEOUT", "")
	t.Setenv("VIEW_IDLE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, decks.DefaultMaxDeckBytes, cfg.MaxDeckBytes)
	require.Equal(t, 2*time.Minute, cfg.HTTPTimeout)
	require.Equal(t, 30*time.Minute, cfg.ViewIdle)
	require.Equal(t, "http://localhost:8000/api/v1", cfg.APIRoot())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/slidevoice")
	t.Setenv("API_BASE_URL", "https://narration.example.com/")
	t.Setenv("API_PREFIX", "/api/v2/")
	t.Setenv("MAX_DECK_BYTES", "1048576")
	t.Setenv("HTTP_TIMEOUT", "30s")
	t.Setenv("VIEW_IDLE_TIMEOUT", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://narration.example.com/api/v2", cfg.APIRoot())
	require.Equal(t, int64(1048576), cfg.MaxDeckBytes)
	require.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	require.Equal(t, 5*time.Minute, cfg.ViewIdle)
}

func TestLoadRequiresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	_, err := Load()
	require.EqualError(t, err, "DB_DSN is required")
}

func TestLoadRejectsBadLimits(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://localhost/slidevoice")
	t.Setenv("MAX_DECK_BYTES", "lots")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("MAX_DECK_BYTES", "")
	t.Setenv("HTTP_TIMEOUT", "-1s")
	_, err = Load()
	require.Error(t, err)

	t.Setenv("HTTP_TIMEOUT", "")
	t.Setenv("VIEW_IDLE_TIMEOUT", "soon")
	_, err = Load()
	require.Error(t, err)
}
