package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brbranch/semstore/internal/model"
)

func TestConfigPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "semstore.yaml")

	out, err := execute(t, "", "-c", path, "config", "path")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestConfigSetEmbedder(t *testing.T) {
	configPath := writeConfig(t, model.StoreTypeSQLite)

	out, err := execute(t, "", "-c", configPath, "config", "set-embedder", "--model", "nomic-embed-text", "--dim", "768")
	require.NoError(t, err)
	assert.Contains(t, out, "ollama:nomic-embed-text:768")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	var saved model.Config
	require.NoError(t, json.Unmarshal(data, &saved))

	assert.Equal(t, model.ProviderOllama, saved.Embedder.Provider)
	assert.Equal(t, "nomic-embed-text", saved.Embedder.Model)
	assert.Equal(t, 768, saved.Embedder.Dim)
	require.NotNil(t, saved.Embedder.BaseURL)
	assert.True(t, strings.HasSuffix(*saved.Embedder.BaseURL, "/v1"))
	assert.Equal(t, model.StoreTypeSQLite, saved.Store.Type)
}

func TestConfigSetEmbedder_Errors(t *testing.T) {
	configPath := writeConfig(t, model.StoreTypeSQLite)
	before, err := os.ReadFile(configPath)
	require.NoError(t, err)

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no flags", nil, "nothing to change"},
		{"negative dim", []string{"--dim", "-1"}, "invalid dim"},
		{"unknown provider", []string{"--provider", "bogus"}, "unknown embedder provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"-c", configPath, "config", "set-embedder"}, tt.args...)
			_, err := execute(t, "", args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			after, err := os.ReadFile(configPath)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}
