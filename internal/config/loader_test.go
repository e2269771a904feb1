package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestHome points HOME at a temp dir and returns the vecli config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()

	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	configDir := filepath.Join(tmpHome, ".config", "vecli")
	require.NoError(t, os.MkdirAll(configDir, 0700))
	return configDir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), perm))
	return path
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)

	path := writeConfig(t, dir, `qdrant:
  host: qdrant.internal
  port: 6400
  timeout: 15s
  api_key: s3cr3t

index:
  provider: chromem
  path: /var/lib/vecli

embeddings:
  provider: tei
  base_url: http://tei:8080
  batch_size: 16

collection:
  name: novels

telemetry:
  enabled: true
  protocol: http/protobuf
  sample_rate: 0.5
  export_interval: 30s

metrics:
  textfile: /var/lib/node_exporter/vecli.prom
`, 0600)

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 6400, cfg.Qdrant.Port)
	assert.Equal(t, 15*time.Second, cfg.Qdrant.Timeout)
	assert.Equal(t, "s3cr3t", cfg.Qdrant.APIKey.Value())
	assert.Equal(t, "chromem", cfg.Index.Provider)
	assert.Equal(t, "/var/lib/vecli", cfg.Index.Path)
	assert.Equal(t, "tei", cfg.Embeddings.Provider)
	assert.Equal(t, "http://tei:8080", cfg.Embeddings.BaseURL)
	assert.Equal(t, 16, cfg.Embeddings.BatchSize)
	assert.Equal(t, "novels", cfg.Collection.Name)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http/protobuf", cfg.Telemetry.Protocol)
	assert.Equal(t, 0.5, cfg.Telemetry.SampleRate)
	assert.Equal(t, 30*time.Second, cfg.Telemetry.ExportInterval)
	assert.Equal(t, "/var/lib/node_exporter/vecli.prom", cfg.Metrics.Textfile)

	// Unset fields still receive defaults
	assert.Equal(t, DefaultEmbedModel, cfg.Embeddings.Model)
	assert.Equal(t, DefaultSnapshotDir, cfg.Snapshot.Dir)
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)

	path := writeConfig(t, dir, `qdrant:
  host: from-yaml
collection:
  name: from-yaml
`, 0600)

	t.Setenv("VECLI_QDRANT_HOST", "from-env")
	t.Setenv("VECLI_QDRANT_RETRY_ATTEMPTS", "2")
	t.Setenv("VECLI_COLLECTION_NAME", "env_collection")

	cfg, err := LoadWithFile(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Qdrant.Host)
	assert.Equal(t, 2, cfg.Qdrant.RetryAttempts)
	assert.Equal(t, "env_collection", cfg.Collection.Name)
}

func TestLoadWithFile_MissingFileUsesDefaults(t *testing.T) {
	dir := setupTestHome(t)

	cfg, err := LoadWithFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DefaultCollectionName, cfg.Collection.Name)
	assert.Equal(t, DefaultQdrantTimeout, cfg.Qdrant.Timeout)
	assert.Zero(t, cfg.Qdrant.RetryAttempts, "retries are opt-in")
}

func TestLoadWithFile_DefaultPath(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	require.NoError(t, err)
	assert.Equal(t, DefaultQdrantPort, cfg.Qdrant.Port)
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)

	path := writeConfig(t, dir, "qdrant:\n  port: [\n  invalid syntax here\n", 0600)

	_, err := LoadWithFile(path)
	assert.Error(t, err)
}

func TestLoadWithFile_ValidationFailure(t *testing.T) {
	dir := setupTestHome(t)

	path := writeConfig(t, dir, "qdrant:\n  port: 99999\n", 0600)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid qdrant port")
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	tests := []string{
		"../../../../etc/passwd",
		filepath.Join(t.TempDir(), "config.yaml"),
	}

	for _, path := range tests {
		t.Run(path, func(t *testing.T) {
			_, err := LoadWithFile(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "must be in ~/.config/vecli/ or /etc/vecli/")
		})
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)

	path := writeConfig(t, dir, "collection:\n  name: x\n", 0644)

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure config file permissions")
}

func TestLoadWithFile_TooLarge(t *testing.T) {
	dir := setupTestHome(t)

	big := make([]byte, maxConfigFileSize+1)
	for i := range big {
		big[i] = '#'
	}
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, big, 0600))

	_, err := LoadWithFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file too large")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"VECLI_QDRANT_HOST":           "qdrant.host",
		"VECLI_QDRANT_API_KEY":        "qdrant.api_key",
		"VECLI_EMBEDDINGS_BATCH_SIZE": "embeddings.batch_size",
		"VECLI_COLLECTION_NAME":       "collection.name",
		"VECLI_DEBUG":                 "debug",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
