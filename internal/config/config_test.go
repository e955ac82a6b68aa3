package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.Loading.Cache)
	assert.Equal(t, "error", cfg.Loading.CircularDependencyStrategy)
	assert.Equal(t, []string{".slv", ".js"}, cfg.Resolution.Extensions)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad circular strategy",
			mutate:  func(c *Config) { c.Loading.CircularDependencyStrategy = "ignore" },
			wantErr: "circularDependencyStrategy",
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Management.Port = 70000 },
			wantErr: "managementPort",
		},
		{
			name:    "extension without dot",
			mutate:  func(c *Config) { c.Resolution.Extensions = []string{"slv"} },
			wantErr: "dot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromMapAppliesRecognizedOptions(t *testing.T) {
	cfg, err := FromMap(map[string]any{
		"resolution": map[string]any{
			"baseUrl":    "/srv/project",
			"extensions": []any{".slv"},
		},
		"loading": map[string]any{
			"cache":                      false,
			"circularDependencyStrategy": "warn",
		},
		"compilation": map[string]any{
			"target":       "es2017",
			"strict":       true,
			"verifyOutput": true,
		},
		"metrics":         true,
		"circuitBreakers": false,
		"logger":          true,
		"managementPort":  float64(9090), // JSON numbers decode as float64
	})
	require.NoError(t, err)

	assert.Equal(t, "/srv/project", cfg.Resolution.BaseURL)
	assert.Equal(t, []string{".slv"}, cfg.Resolution.Extensions)
	assert.False(t, cfg.Loading.Cache)
	assert.Equal(t, "warn", cfg.Loading.CircularDependencyStrategy)
	assert.Equal(t, "es2017", cfg.Compilation.Target)
	assert.True(t, cfg.Compilation.Strict)
	assert.True(t, cfg.Compilation.VerifyOutput)
	assert.False(t, cfg.Features.CircuitBreakers)
	assert.Equal(t, 9090, cfg.Management.Port)
}

func TestFromMapRejectsUnknownKeys(t *testing.T) {
	tests := []struct {
		name string
		opts map[string]any
	}{
		{name: "unknown top-level key", opts: map[string]any{"resolutionn": map[string]any{}}},
		{name: "unknown nested key", opts: map[string]any{"loading": map[string]any{"cacheTTL": 60}}},
		{name: "unknown compilation key", opts: map[string]any{"compilation": map[string]any{"minify": true}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromMap(tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unknown option")
		})
	}
}

func TestFromMapRejectsWrongTypes(t *testing.T) {
	_, err := FromMap(map[string]any{"metrics": "yes"})
	require.Error(t, err)

	_, err = FromMap(map[string]any{"managementPort": 80.5})
	require.Error(t, err)

	_, err = FromMap(map[string]any{"resolution": "nope"})
	require.Error(t, err)
}

func TestFromMapValidatesResult(t *testing.T) {
	_, err := FromMap(map[string]any{
		"loading": map[string]any{"circularDependencyStrategy": "panic"},
	})
	require.Error(t, err)
}

func TestFromMapEmptyKeepsDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
