package app

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	_ "github.com/meridian-ops/meridian-ops/internal/testing/guard"
)

func TestInTestModeFollowsEnv(t *testing.T) {
	// The guard import sets the flag before any test runs.
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("MERIDIAN_TEST_MODE", "0")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("MERIDIAN_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())
}

func TestLoadConfigDefaults(t *testing.T) {
	os.Unsetenv("APP_ENV")
	os.Unsetenv("APP_ADDR")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "development", cfg.AppEnv)
	require.Equal(t, ":8080", cfg.AppAddr)
	require.False(t, cfg.IsProduction())
	require.False(t, cfg.AllowNegativeStock)

	t.Setenv("APP_ENV", "production")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	require.True(t, cfg.IsProduction())
}
