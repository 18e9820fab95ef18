package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 10, cfg.MaxIter)

	opt := cfg.traverseOpt()
	assert.Equal(t, 1e-4, opt.Tolerance)
	assert.Equal(t, 2.0, opt.DistBaseMM)
	assert.Equal(t, 2.0, opt.DistPPM)
	assert.Equal(t, 5.0, opt.AngleArcsec)
}

func TestLoadConfigEnvironment(t *testing.T) {
	t.Setenv("GOADJUST_MAX_ITER", "30")
	t.Setenv("GOADJUST_DIST_PPM", "1.5")
	t.Setenv("GOADJUST_LOG_FORMAT", "json")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.MaxIter)
	assert.Equal(t, 1.5, cfg.DistPPM)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadConfigDotenv(t *testing.T) {
	// godotenv does not override variables already set; clear ours first
	t.Setenv("GOADJUST_ANGLE_ARCSEC", "")
	os.Unsetenv("GOADJUST_ANGLE_ARCSEC")

	fn := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(fn, []byte("GOADJUST_ANGLE_ARCSEC=1.5\n"), 0644))

	cfg, err := loadConfig(fn)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.AngleArcsec)
	os.Unsetenv("GOADJUST_ANGLE_ARCSEC")
}

func TestLoadConfigInvalid(t *testing.T) {
	t.Setenv("GOADJUST_MAX_ITER", "many")
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}
