package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App           AppConfig
	Server        ServerConfig
	Corpus        CorpusConfig
	KnowledgeBase KnowledgeBaseConfig
	Resolver      ResolverConfig
	Embedding     EmbeddingConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Elastic       ElasticConfig
	Report        ReportConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// CorpusConfig 语料配置
type CorpusConfig struct {
	Name       string
	Dir        string
	Format     string   // conll, json
	Partitions []string // 默认 train, dev, test
}

// KnowledgeBaseStrategy 知识库构建策略
type KnowledgeBaseStrategy string

const (
	StrategyInCorpus KnowledgeBaseStrategy = "in_corpus"
	StrategyExternal KnowledgeBaseStrategy = "external"
)

// KnowledgeBaseConfig 知识库配置
type KnowledgeBaseConfig struct {
	Strategy      KnowledgeBaseStrategy
	Threshold     int
	ExternalDir   string
	ExternalFiles []string
}

// ResolverKind 消歧方法
type ResolverKind string

const (
	ResolverRule      ResolverKind = "rule"
	ResolverEmbedding ResolverKind = "embedding"
)

// IndexKind 上下文向量索引
type IndexKind string

const (
	IndexMemory  IndexKind = "memory"
	IndexElastic IndexKind = "elastic"
)

// ResolverConfig 消歧配置
type ResolverConfig struct {
	Kind       ResolverKind
	MaskEntity bool
	Workers    int
	Index      IndexKind
}

// EmbeddingProvider 向量提供方
type EmbeddingProvider string

const (
	ProviderHTTP      EmbeddingProvider = "http"
	ProviderDashscope EmbeddingProvider = "dashscope"
	ProviderOpenAI    EmbeddingProvider = "openai"
	ProviderOllama    EmbeddingProvider = "ollama"
)

// EmbeddingConfig Embedding配置
type EmbeddingConfig struct {
	Provider   EmbeddingProvider
	Model      string
	APIKey     string
	BaseURL    string
	Timeout    int
	Dimensions int
	MaskToken  string
	MaxRetries int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled      bool
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置（向量缓存）
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	CacheTTL int // 秒，0 表示不过期
}

// ElasticConfig Elasticsearch配置
type ElasticConfig struct {
	Host        string
	Username    string
	Password    string
	IndexPrefix string
}

// ReportConfig 报告配置
type ReportConfig struct {
	Dir           string
	Formats       []string // csv, parquet, table
	HardCasesPath string
}

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("NEXT_LINKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate 检查枚举取值和组合约束
func (c *Config) Validate() error {
	var errs []error

	switch c.KnowledgeBase.Strategy {
	case StrategyInCorpus:
	case StrategyExternal:
		if c.KnowledgeBase.ExternalDir == "" {
			errs = append(errs, errors.New("knowledgeBase.externalDir is required for external strategy"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported knowledge base strategy: %s", c.KnowledgeBase.Strategy))
	}

	switch c.Resolver.Kind {
	case ResolverRule:
	case ResolverEmbedding:
		if c.KnowledgeBase.Strategy == StrategyExternal {
			errs = append(errs, errors.New("embedding resolver needs context vectors; external knowledge base has none"))
		}
		switch c.Embedding.Provider {
		case ProviderHTTP, ProviderDashscope, ProviderOpenAI, ProviderOllama:
		default:
			errs = append(errs, fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported resolver: %s", c.Resolver.Kind))
	}

	switch c.Resolver.Index {
	case IndexMemory:
	case IndexElastic:
		if c.Elastic.Host == "" {
			errs = append(errs, errors.New("elastic.host is required for elastic index"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported context index: %s", c.Resolver.Index))
	}

	if c.KnowledgeBase.Threshold < 0 {
		errs = append(errs, fmt.Errorf("knowledgeBase.threshold must be >= 0, got %d", c.KnowledgeBase.Threshold))
	}
	if c.Corpus.Dir == "" {
		errs = append(errs, errors.New("corpus.dir is required"))
	}

	for _, f := range c.Report.Formats {
		switch f {
		case "csv", "parquet", "table":
		default:
			errs = append(errs, fmt.Errorf("unsupported report format: %s", f))
		}
	}

	return errors.Join(errs...)
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "next-linker")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Corpus
	v.SetDefault("corpus.name", "corpus")
	v.SetDefault("corpus.dir", "./data")
	v.SetDefault("corpus.format", "conll")
	v.SetDefault("corpus.partitions", []string{"train", "dev", "test"})

	// KnowledgeBase
	v.SetDefault("knowledgeBase.strategy", string(StrategyInCorpus))
	v.SetDefault("knowledgeBase.threshold", 1)
	v.SetDefault("knowledgeBase.externalFiles", []string{"humans.json", "organizations.json"})

	// Resolver
	v.SetDefault("resolver.kind", string(ResolverRule))
	v.SetDefault("resolver.maskEntity", false)
	v.SetDefault("resolver.workers", 1)
	v.SetDefault("resolver.index", string(IndexMemory))

	// Embedding
	v.SetDefault("embedding.provider", string(ProviderHTTP))
	v.SetDefault("embedding.baseUrl", "http://localhost:8000")
	v.SetDefault("embedding.model", "bert-base-german-cased")
	v.SetDefault("embedding.timeout", 60)
	v.SetDefault("embedding.maskToken", "[MASK]")
	v.SetDefault("embedding.maxRetries", 3)

	// Database
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "next_linker")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cacheTTL", 7*24*3600)

	// Elastic
	v.SetDefault("elastic.host", "http://localhost:9200")
	v.SetDefault("elastic.indexPrefix", "next_linker")

	// Report
	v.SetDefault("report.dir", "./reports")
	v.SetDefault("report.formats", []string{"table", "csv"})
	v.SetDefault("report.hardCasesPath", "")
}
