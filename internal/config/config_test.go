package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Second, cfg.Redis.BlockInterval)
	assert.Equal(t, 30*time.Second, cfg.Redis.VisibilityTimeout)
	assert.Equal(t, int64(5), cfg.Redis.MaxDeliveries)
	assert.False(t, cfg.OpenSearch.Enabled)
	assert.False(t, cfg.Postgres.Enabled)
	assert.Equal(t, "default", cfg.Digest.DefaultNamespace)
	assert.Equal(t, []string{"standard"}, cfg.Digest.DefaultStrategies)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad_DefaultStrategiesWhenNoneDeclared(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Len(t, cfg.Strategies, 3)
	names := make(map[string]StrategyConfig, 3)
	for _, s := range cfg.Strategies {
		names[s.Name] = s
	}
	assert.Equal(t, "vector", names["standard"].Type)
	assert.Equal(t, "markdown", names["tables"].Splitter)
	assert.Equal(t, "graph", names["knowledge-graph"].Type)
	assert.False(t, names["knowledge-graph"].Embedding)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  port: 9090
redis:
  addr: redis.internal:6379
  max_deliveries: 2
strategies:
  - name: custom
    type: vector
    splitter: markdown
    chunk_size: 512
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	assert.Equal(t, int64(2), cfg.Redis.MaxDeliveries)
	require.Len(t, cfg.Strategies, 1)
	assert.Equal(t, "custom", cfg.Strategies[0].Name)
	assert.Equal(t, 512, cfg.Strategies[0].ChunkSize)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
