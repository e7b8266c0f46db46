package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wwwzy/RagAgent/internal/agent"
	"github.com/wwwzy/RagAgent/internal/retriever"
	"github.com/wwwzy/RagAgent/internal/storage"
)

// AgentConfig 是对话回合的预算与行为配置。
type AgentConfig struct {
	MaxSearches      int  `mapstructure:"max_searches"`
	MaxRewrites      int  `mapstructure:"max_rewrites"`
	RequireRetrieval bool `mapstructure:"require_retrieval"`
}

// VectorStoreDef 描述一个可被 Agent 使用的向量库。
// Name 会成为模型看到的工具名，Description 决定模型何时选用它。
type VectorStoreDef struct {
	Name          string    `mapstructure:"name"`
	Description   string    `mapstructure:"description"`
	Index         string    `mapstructure:"index"`
	Namespace     string    `mapstructure:"namespace"`
	TopK          int       `mapstructure:"top_k"`
	RankerWeights []float64 `mapstructure:"ranker_weights"`
}

// RedisConfig 是所有向量库共用的 Redis 连接配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type Config struct {
	Storage      storage.Config   `mapstructure:"storage"`
	Ark          agent.ArkConfig  `mapstructure:"ark"`
	Agent        AgentConfig      `mapstructure:"agent"`
	Redis        RedisConfig      `mapstructure:"redis"`
	VectorStores []VectorStoreDef `mapstructure:"vector_stores"`
	LogLevel     string           `mapstructure:"log_level"`
}

func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		// 默认搜索路径
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.ragagent")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("RAGAGENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 注意：Viper 的 Unmarshal 只反序列化它“知道”的 key
	// （来自配置文件、Defaults 或显式 Bind），只存在于环境变量中的
	// key 需要 SetDefault 或 BindEnv 之后才会生效。
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
		// 配置文件未找到，使用默认值
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Ark.APIKey == "" {
		return fmt.Errorf("ark.api_key is required (or set ARK_API_KEY env var)")
	}
	if c.Ark.ModelID == "" {
		return fmt.Errorf("ark.model_id is required (or set ARK_MODEL_ID env var)")
	}
	if c.Ark.EmbedModelID == "" {
		return fmt.Errorf("ark.embed_model_id is required (or set ARK_EMBED_MODEL_ID env var)")
	}
	if len(c.VectorStores) == 0 {
		return fmt.Errorf("at least one vector store must be configured under vector_stores")
	}
	seen := make(map[string]struct{}, len(c.VectorStores))
	for i, vs := range c.VectorStores {
		if vs.Name == "" {
			return fmt.Errorf("vector_stores[%d].name is required", i)
		}
		if vs.Description == "" {
			return fmt.Errorf("vector_stores[%d].description is required", i)
		}
		if vs.Index == "" {
			return fmt.Errorf("vector_stores[%d].index is required", i)
		}
		if _, dup := seen[vs.Name]; dup {
			return fmt.Errorf("duplicate vector store name: %s", vs.Name)
		}
		seen[vs.Name] = struct{}{}
	}
	if c.Agent.MaxSearches < 0 || c.Agent.MaxRewrites < 0 {
		return fmt.Errorf("agent budgets must be non-negative")
	}
	return nil
}

// SearcherConfig 把一个向量库定义与共用 Redis 连接拼成检索器配置。
func (c *Config) SearcherConfig(vs VectorStoreDef) retriever.Config {
	return retriever.Config{
		Addr:          c.Redis.Addr,
		Password:      c.Redis.Password,
		DB:            c.Redis.DB,
		Index:         vs.Index,
		Namespace:     vs.Namespace,
		TopK:          vs.TopK,
		RankerWeights: vs.RankerWeights,
	}
}

// EmbeddingConfig 返回查询向量化所用的 embedding 模型配置。
func (c *Config) EmbeddingConfig() retriever.EmbeddingConfig {
	return retriever.EmbeddingConfig{
		APIKey:  c.Ark.APIKey,
		ModelID: c.Ark.EmbedModelID,
		BaseURL: c.Ark.BaseURL,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("storage.path", "ragagent.db")
	v.SetDefault("storage.busy_timeout", 5*time.Second)
	v.SetDefault("storage.enable_wal", true)

	v.SetDefault("agent.max_searches", agent.DefaultMaxSearches)
	v.SetDefault("agent.max_rewrites", agent.DefaultMaxRewrites)
	v.SetDefault("agent.require_retrieval", false)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("ark.api_key", "")
	v.SetDefault("ark.model_id", "")
	v.SetDefault("ark.embed_model_id", "")
	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")

	v.BindEnv("ark.api_key", "ARK_API_KEY")
	v.BindEnv("ark.model_id", "ARK_MODEL_ID")
	v.BindEnv("ark.embed_model_id", "ARK_EMBED_MODEL_ID")
	v.BindEnv("ark.base_url", "ARK_BASE_URL")
}

func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Storage: storage.Config{
			Path:        "ragagent.db",
			BusyTimeout: 5 * time.Second,
			EnableWAL:   true,
		},
		Agent: AgentConfig{
			MaxSearches: agent.DefaultMaxSearches,
			MaxRewrites: agent.DefaultMaxRewrites,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
	}
}
