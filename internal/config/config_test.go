package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 24*time.Second, cfg.OCR.TimeBudget)
	assert.Equal(t, 0.9, cfg.Thresholds.EarlyExitScore)
	assert.Equal(t, 0.18, cfg.Thresholds.MergeWindow)
	assert.Equal(t, 0.2, cfg.Thresholds.CandidateFloor)
	assert.Equal(t, 1200, cfg.Normalize.MinWidth)
	assert.Equal(t, 2000, cfg.Normalize.MaxWidth)
	assert.Equal(t, 5, cfg.OCR.MaxVariants)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero budget", func(c *Config) { c.OCR.TimeBudget = 0 }},
		{"no variants", func(c *Config) { c.OCR.MaxVariants = 0 }},
		{"inverted width band", func(c *Config) { c.Normalize.MinWidth = 2000; c.Normalize.MaxWidth = 1200 }},
		{"negative merge window", func(c *Config) { c.Thresholds.MergeWindow = -0.1 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"orientation confidence out of range", func(c *Config) { c.Normalize.OrientationConfidence = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoader_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Thresholds, cfg.Thresholds)
}

func TestLoader_EnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("CARDSCAN_OCR_TIME_BUDGET", "10s")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.OCR.TimeBudget)
}

func TestLoader_WithFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	path := filepath.Join(dir, "cardscan.yaml")
	content := "log_level: debug\nocr:\n  max_variants: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := NewLoader().LoadWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.OCR.MaxVariants)
	// Untouched values keep defaults.
	assert.Equal(t, 24*time.Second, cfg.OCR.TimeBudget)
}

func TestLoader_MissingFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	_, err := NewLoader().LoadWithFile("/nonexistent/cardscan.yaml")
	assert.Error(t, err)
}

func TestResolveModelPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelsDir = "/opt/models"
	assert.Equal(t, "/opt/models/rec_mobile.onnx", cfg.ResolveModelPath("rec_mobile.onnx"))
	assert.Equal(t, "/abs/model.onnx", cfg.ResolveModelPath("/abs/model.onnx"))
	assert.Equal(t, "", cfg.ResolveModelPath(""))
}
