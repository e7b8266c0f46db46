package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wwwzy/RagAgent/internal/agent"
)

// 写一个只包含向量库定义的最小配置文件，其余字段走默认值/环境变量。
func writeMinimalConfig(t *testing.T) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
vector_stores:
  - name: "product_docs"
    description: "Product documentation and user guides"
    index: "idx:product_docs"
`)
	err := os.WriteFile(configFile, content, 0644)
	assert.NoError(t, err)
	return configFile
}

func TestLoad_Defaults(t *testing.T) {
	// 设置必填环境变量，绕过 Validate 检查
	t.Setenv("ARK_API_KEY", "dummy-key")
	t.Setenv("ARK_MODEL_ID", "dummy-model")
	t.Setenv("ARK_EMBED_MODEL_ID", "dummy-embed")

	cfg, err := Load(writeMinimalConfig(t))
	assert.NoError(t, err)
	assert.NotNil(t, cfg)

	// 验证默认值
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "ragagent.db", cfg.Storage.Path)
	assert.True(t, cfg.Storage.EnableWAL)
	assert.Equal(t, agent.DefaultMaxSearches, cfg.Agent.MaxSearches)
	assert.Equal(t, agent.DefaultMaxRewrites, cfg.Agent.MaxRewrites)
	assert.False(t, cfg.Agent.RequireRetrieval)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoad_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	content := []byte(`
log_level: "debug"
ark:
  api_key: "file-key"
  model_id: "file-model"
  embed_model_id: "file-embed"
storage:
  path: "test.db"
  busy_timeout: "10s"
agent:
  max_searches: 5
  require_retrieval: true
redis:
  addr: "redis-host:6380"
vector_stores:
  - name: "product_docs"
    description: "Product documentation and user guides"
    index: "idx:product_docs"
    namespace: "docs"
    top_k: 8
    ranker_weights: [0.7, 0.3]
  - name: "support_tickets"
    description: "Historical support tickets"
    index: "idx:tickets"
`)
	err := os.WriteFile(configFile, content, 0644)
	assert.NoError(t, err)

	cfg, err := Load(configFile)
	assert.NoError(t, err)

	// 验证覆盖值
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "test.db", cfg.Storage.Path)
	assert.Equal(t, 10*time.Second, cfg.Storage.BusyTimeout)
	assert.Equal(t, 5, cfg.Agent.MaxSearches)
	assert.True(t, cfg.Agent.RequireRetrieval)
	assert.Equal(t, "redis-host:6380", cfg.Redis.Addr)

	// 验证未覆盖的字段保持默认值
	assert.Equal(t, agent.DefaultMaxRewrites, cfg.Agent.MaxRewrites)

	// 向量库定义
	assert.Len(t, cfg.VectorStores, 2)
	assert.Equal(t, "product_docs", cfg.VectorStores[0].Name)
	assert.Equal(t, []float64{0.7, 0.3}, cfg.VectorStores[0].RankerWeights)

	sc := cfg.SearcherConfig(cfg.VectorStores[0])
	assert.Equal(t, "redis-host:6380", sc.Addr)
	assert.Equal(t, "idx:product_docs", sc.Index)
	assert.Equal(t, "docs", sc.Namespace)
	assert.Equal(t, 8, sc.TopK)

	ec := cfg.EmbeddingConfig()
	assert.Equal(t, "file-key", ec.APIKey)
	assert.Equal(t, "file-embed", ec.ModelID)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("RAGAGENT_LOG_LEVEL", "warn")
	t.Setenv("RAGAGENT_STORAGE_PATH", "env.db")
	t.Setenv("RAGAGENT_AGENT_MAX_SEARCHES", "4")
	// 必须设置必填项，否则 Validate 会失败
	t.Setenv("ARK_API_KEY", "test-key")
	t.Setenv("ARK_MODEL_ID", "test-model")
	t.Setenv("ARK_EMBED_MODEL_ID", "test-embed")

	cfg, err := Load(writeMinimalConfig(t))
	assert.NoError(t, err)

	// 验证环境变量覆盖
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "env.db", cfg.Storage.Path)
	assert.Equal(t, 4, cfg.Agent.MaxSearches)
	assert.Equal(t, "test-key", cfg.Ark.APIKey)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "ragagent.db", cfg.Storage.Path)
	assert.Equal(t, 5*time.Second, cfg.Storage.BusyTimeout)
	assert.Equal(t, agent.DefaultMaxSearches, cfg.Agent.MaxSearches)
}

func TestLoad_ValidateArk(t *testing.T) {
	// 确保没有环境变量干扰
	t.Setenv("ARK_API_KEY", "")
	t.Setenv("ARK_MODEL_ID", "")
	t.Setenv("ARK_EMBED_MODEL_ID", "")

	_, err := Load(writeMinimalConfig(t))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "ark.api_key is required")
}

func TestLoad_ValidateVectorStores(t *testing.T) {
	t.Setenv("ARK_API_KEY", "k")
	t.Setenv("ARK_MODEL_ID", "m")
	t.Setenv("ARK_EMBED_MODEL_ID", "e")

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")
	content := []byte(`
vector_stores:
  - name: "dup"
    description: "first"
    index: "idx:a"
  - name: "dup"
    description: "second"
    index: "idx:b"
`)
	err := os.WriteFile(configFile, content, 0644)
	assert.NoError(t, err)

	_, err = Load(configFile)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate vector store name")
}
