package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	apperrors "github.com/docuhub/backend-go/internal/errors"
)

// Config 应用配置
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Chunking    ChunkingConfig    `mapstructure:"chunking"`
	Retrieval   RetrievalConfig   `mapstructure:"retrieval"`
	Embedding   EmbeddingConfig   `mapstructure:"embedding"`
	Generation  GenerationConfig  `mapstructure:"generation"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Retry       RetryConfig       `mapstructure:"retry"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name        string `mapstructure:"name"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

// ChunkingConfig 文本切分配置
type ChunkingConfig struct {
	// 按rune计数的窗口大小与重叠
	Size    int `mapstructure:"size" validate:"gt=0"`
	Overlap int `mapstructure:"overlap" validate:"gte=0,ltfield=Size"`
}

// RetrievalConfig 检索配置
type RetrievalConfig struct {
	TopK int `mapstructure:"top_k" validate:"gt=0"`
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model" validate:"required"`
	Dimensions int           `mapstructure:"dimensions" validate:"gt=0"`
	BatchSize  int           `mapstructure:"batch_size" validate:"gt=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// GenerationConfig 回答生成配置
type GenerationConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model" validate:"required"`
	Temperature     float32       `mapstructure:"temperature" validate:"gte=0,lte=2"`
	MaxContextChars int           `mapstructure:"max_context_chars" validate:"gt=0"`
	Timeout         time.Duration `mapstructure:"timeout" validate:"gt=0"`
	// 是否先用LLM改写问题再检索
	ReformulateQuery bool `mapstructure:"reformulate_query"`
}

// VectorStoreConfig 向量存储配置
type VectorStoreConfig struct {
	Provider   string        `mapstructure:"provider" validate:"oneof=memory milvus pgvector"`
	Collection string        `mapstructure:"collection" validate:"required"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Milvus     MilvusConfig  `mapstructure:"milvus"`
}

// MilvusConfig Milvus连接配置
type MilvusConfig struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DatabaseConfig Postgres连接配置
type DatabaseConfig struct {
	// Enabled 关闭时不连接Postgres，文档状态登记随之停用
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN 构造Postgres连接串
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// RedisConfig Redis连接配置
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// RetryConfig 外部调用重试配置
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"gte=1"`
	InitialDelay time.Duration `mapstructure:"initial_delay" validate:"gt=0"`
	MaxDelay     time.Duration `mapstructure:"max_delay" validate:"gt=0"`
	Multiplier   float64       `mapstructure:"multiplier" validate:"gte=1"`
}

// AppConf 全局配置实例
var AppConf *Config

// LoadConfig 加载配置（默认值 + 配置文件 + 环境变量覆盖）
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		// 搜索路径下没有配置文件时仅使用默认值与环境变量
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, apperrors.NewInvalidConfiguration("failed to read config file").WithCause(err)
		}
	}

	v.SetEnvPrefix("DOCQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.NewInvalidConfiguration("failed to parse config").WithCause(err)
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	AppConf = &cfg
	return &cfg, nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "docqa")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.development", false)

	v.SetDefault("chunking.size", 800)
	v.SetDefault("chunking.overlap", 120)

	v.SetDefault("retrieval.top_k", 5)

	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.dimensions", 1536)
	v.SetDefault("embedding.batch_size", 64)
	v.SetDefault("embedding.timeout", 30*time.Second)

	v.SetDefault("generation.model", "gpt-4o-mini")
	v.SetDefault("generation.temperature", 0.1)
	v.SetDefault("generation.max_context_chars", 12000)
	v.SetDefault("generation.timeout", 60*time.Second)
	v.SetDefault("generation.reformulate_query", false)

	v.SetDefault("vector_store.provider", "memory")
	v.SetDefault("vector_store.collection", "docqa_chunks")
	v.SetDefault("vector_store.timeout", 10*time.Second)
	v.SetDefault("vector_store.milvus.address", "localhost:19530")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "docqa")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_delay", 200*time.Millisecond)
	v.SetDefault("retry.max_delay", 5*time.Second)
	v.SetDefault("retry.multiplier", 2.0)
}

// applyEnvOverrides 常用环境变量覆盖
func applyEnvOverrides(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if cfg.Embedding.APIKey == "" {
			cfg.Embedding.APIKey = key
		}
		if cfg.Generation.APIKey == "" {
			cfg.Generation.APIKey = key
		}
	}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		if cfg.Embedding.BaseURL == "" {
			cfg.Embedding.BaseURL = base
		}
		if cfg.Generation.BaseURL == "" {
			cfg.Generation.BaseURL = base
		}
	}
	if addr := os.Getenv("MILVUS_ADDRESS"); addr != "" {
		cfg.VectorStore.Milvus.Address = addr
	}
	if pwd := os.Getenv("POSTGRES_PASSWORD"); pwd != "" {
		cfg.Database.Password = pwd
	}
}

// Validate 校验配置，非法参数返回配置错误
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if validationErrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(validationErrs))
			for _, fe := range validationErrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return apperrors.NewInvalidConfiguration(
				fmt.Sprintf("invalid configuration: %s", strings.Join(fields, ", "))).WithCause(err)
		}
		return apperrors.NewInvalidConfiguration("invalid configuration").WithCause(err)
	}
	return nil
}
