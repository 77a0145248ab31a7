package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "scanforge", cfg.Logger.ServiceName)

	assert.Equal(t, 3, cfg.Pipeline.MaxAttempts)
	assert.InDelta(t, 0.9, cfg.Pipeline.MinLengthRatio, 1e-9)
	assert.InDelta(t, 0.35, cfg.Pipeline.ConfidenceThreshold, 1e-9)
	assert.Equal(t, 45*time.Second, cfg.Pipeline.GenerationTimeout)
	assert.Equal(t, []string{"detect_setups", "run_detection", "scan_symbol"}, cfg.Pipeline.DetectionAliases)
	assert.Contains(t, cfg.Pipeline.HelperNames, "compute_adv")
	assert.Contains(t, cfg.Pipeline.ConfigAnchors, "PARAMS")
	assert.Contains(t, cfg.Pipeline.LegacyEntryPoints, "main_loop")

	assert.Equal(t, ":8470", cfg.Server.Listen)
	assert.EqualValues(t, 8, cfg.Server.MaxConcurrent)
	assert.Empty(t, cfg.History.URL, "persistence must be opt-in")

	require.NoError(t, cfg.Validate(), "defaults must validate")
}

func TestNewConfigFromViper(t *testing.T) {
	t.Run("overrides defaults from the viper instance", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("pipeline.max_attempts", 5)
		v.Set("server.listen", ":9000")

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
		assert.Equal(t, ":9000", cfg.Server.Listen)
	})

	t.Run("api key binds from the environment", func(t *testing.T) {
		t.Setenv("SCANFORGE_GEMINI_API_KEY", "test-key-123")

		v := viper.New()
		SetDefaults(v)
		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "test-key-123", cfg.Generator.Models["gemini_flash"].APIKey)
		assert.Equal(t, "test-key-123", cfg.Generator.Models["gemini_pro"].APIKey)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("pipeline.min_length_ratio", 1.5)

		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_length_ratio")
	})
}

func TestPipelineValidate(t *testing.T) {
	base := func() PipelineConfig {
		return PipelineConfig{
			MaxAttempts:         3,
			MinLengthRatio:      0.9,
			ConfidenceThreshold: 0.35,
			GenerationTimeout:   45 * time.Second,
			DetectionAliases:    []string{"detect_setups"},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*PipelineConfig)
		wantErr string
	}{
		{"valid", func(p *PipelineConfig) {}, ""},
		{"zero attempts", func(p *PipelineConfig) { p.MaxAttempts = 0 }, "max_attempts"},
		{"ratio above one", func(p *PipelineConfig) { p.MinLengthRatio = 1.1 }, "min_length_ratio"},
		{"ratio zero", func(p *PipelineConfig) { p.MinLengthRatio = 0 }, "min_length_ratio"},
		{"negative threshold", func(p *PipelineConfig) { p.ConfidenceThreshold = -0.1 }, "confidence_threshold"},
		{"zero timeout", func(p *PipelineConfig) { p.GenerationTimeout = 0 }, "generation_timeout"},
		{"no aliases", func(p *PipelineConfig) { p.DetectionAliases = nil }, "detection_aliases"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := base()
			tc.mutate(&p)
			err := p.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}
