package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ashwinyue/next-linker/internal/config"
	"github.com/ashwinyue/next-linker/internal/corpus"
	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/repository"
	"github.com/ashwinyue/next-linker/internal/service/callback"
	"github.com/ashwinyue/next-linker/internal/service/evaluation"
	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
	"github.com/ashwinyue/next-linker/internal/service/linking"
	"github.com/ashwinyue/next-linker/internal/service/vectorizer"
	"github.com/cloudwego/eino-ext/components/embedding/dashscope"
	"github.com/cloudwego/eino-ext/components/embedding/ollama"
	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"github.com/redis/go-redis/v9"
)

// Services 服务集合
type Services struct {
	Config *config.Config

	// 语料
	Loader *corpus.Loader

	// 消歧组件
	Provider   vectorizer.Provider    // 仅 embedding 方法需要
	Vectorizer *vectorizer.Vectorizer // 仅 embedding 方法需要
	Source     knowledgebase.Source
	Resolver   linking.Resolver

	// 评估
	Evaluation *evaluation.Service
}

// NewServices 创建所有服务；repo 和 redisClient 可以为 nil
func NewServices(cfg *config.Config, repo *repository.Repositories, redisClient *redis.Client) (*Services, error) {
	ctx := context.Background()

	format, err := corpus.ParseFormat(cfg.Corpus.Format)
	if err != nil {
		return nil, err
	}
	partitions := make([]model.Partition, 0, len(cfg.Corpus.Partitions))
	for _, p := range cfg.Corpus.Partitions {
		partitions = append(partitions, model.Partition(p))
	}

	svc := &Services{
		Config: cfg,
		Loader: corpus.NewLoader(cfg.Corpus.Dir, format, partitions),
	}

	// 向量化器只在 embedding 方法下创建
	if cfg.Resolver.Kind == config.ResolverEmbedding {
		provider, err := newProvider(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if redisClient != nil {
			ttl := time.Duration(cfg.Redis.CacheTTL) * time.Second
			provider = vectorizer.NewCachedProvider(provider, vectorizer.NewRedisVectorCache(redisClient, ttl), cacheNamespace(cfg))
			log.Printf("Vector cache enabled (ttl=%s)", ttl)
		}
		svc.Provider = provider
		svc.Vectorizer = vectorizer.New(provider,
			vectorizer.WithMask(cfg.Resolver.MaskEntity),
			vectorizer.WithMaskToken(cfg.Embedding.MaskToken),
		)
	}

	source, err := newSource(cfg, svc.Vectorizer)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Source = source

	resolver, err := newResolver(cfg, svc.Vectorizer)
	if err != nil {
		svc.Close()
		return nil, err
	}
	svc.Resolver = resolver

	opts := []evaluation.Option{
		evaluation.WithWorkers(cfg.Resolver.Workers),
		evaluation.WithRunInfo(evaluation.RunInfo{
			Corpus:     cfg.Corpus.Name,
			MaskEntity: cfg.Resolver.MaskEntity,
			Threshold:  cfg.KnowledgeBase.Threshold,
		}),
	}
	if repo != nil && repo.Evaluation != nil {
		opts = append(opts, evaluation.WithRunStore(repo.Evaluation))
	}
	svc.Evaluation = evaluation.NewService(source, resolver, opts...)

	log.Printf("Services initialized: resolver=%s strategy=%s", resolver.Name(), source.Name())
	return svc, nil
}

// Close 释放向量提供方
func (s *Services) Close() error {
	if s.Provider == nil {
		return nil
	}
	return s.Provider.Close()
}

// newProvider 创建向量提供方：http 为上下文相关的 token 向量服务，其余为静态词向量
func newProvider(ctx context.Context, cfg *config.Config) (vectorizer.Provider, error) {
	embCfg := cfg.Embedding

	if embCfg.Provider == config.ProviderHTTP {
		return vectorizer.NewHTTPProvider(vectorizer.HTTPConfig{
			BaseURL:    embCfg.BaseURL,
			Model:      embCfg.Model,
			APIKey:     embCfg.APIKey,
			Timeout:    time.Duration(embCfg.Timeout) * time.Second,
			MaxRetries: uint64(embCfg.MaxRetries),
		})
	}

	embedder, err := newEmbedder(ctx, embCfg)
	if err != nil {
		return nil, err
	}
	callback.SetupGlobalCallbacks(cfg.App.Debug)
	return vectorizer.NewStaticProvider(embedder), nil
}

// newEmbedder 创建 Embedding 器
func newEmbedder(ctx context.Context, embCfg config.EmbeddingConfig) (embedding.Embedder, error) {
	timeout := time.Duration(embCfg.Timeout) * time.Second

	var dimensions *int
	if embCfg.Dimensions > 0 {
		dimensions = &embCfg.Dimensions
	}

	switch embCfg.Provider {
	case config.ProviderDashscope:
		if embCfg.APIKey == "" {
			return nil, fmt.Errorf("embedding api_key is required for provider: %s", embCfg.Provider)
		}
		modelName := embCfg.Model
		if modelName == "" {
			modelName = "text-embedding-v3"
		}
		return dashscope.NewEmbedder(ctx, &dashscope.EmbeddingConfig{
			APIKey:     embCfg.APIKey,
			Model:      modelName,
			Timeout:    timeout,
			Dimensions: dimensions,
		})
	case config.ProviderOpenAI:
		if embCfg.APIKey == "" {
			return nil, fmt.Errorf("embedding api_key is required for provider: %s", embCfg.Provider)
		}
		return openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
			APIKey:     embCfg.APIKey,
			Model:      embCfg.Model,
			BaseURL:    embCfg.BaseURL,
			Timeout:    timeout,
			Dimensions: dimensions,
		})
	case config.ProviderOllama:
		baseURL := embCfg.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return ollama.NewEmbedder(ctx, &ollama.EmbeddingConfig{
			BaseURL: baseURL,
			Model:   embCfg.Model,
			Timeout: timeout,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", embCfg.Provider)
	}
}

// cacheNamespace 同一模型、同一掩码设置下的向量才能共享缓存
func cacheNamespace(cfg *config.Config) string {
	return strings.Join([]string{
		string(cfg.Embedding.Provider),
		cfg.Embedding.Model,
		fmt.Sprintf("mask=%t", cfg.Resolver.MaskEntity),
	}, ":")
}

// newSource 创建知识库来源
func newSource(cfg *config.Config, v *vectorizer.Vectorizer) (knowledgebase.Source, error) {
	kbCfg := cfg.KnowledgeBase

	switch kbCfg.Strategy {
	case config.StrategyInCorpus, "":
		var opts []knowledgebase.Option
		if v != nil {
			opts = append(opts, knowledgebase.WithVectorizer(v))
		}
		return knowledgebase.NewInCorpusSource(knowledgebase.NewBuilder(kbCfg.Threshold, opts...)), nil
	case config.StrategyExternal:
		source, err := knowledgebase.LoadExternalSource(kbCfg.ExternalDir, kbCfg.ExternalFiles...)
		if err != nil {
			return nil, err
		}
		log.Printf("External knowledge base loaded: %d entries", source.KnowledgeBase().Len())
		return source, nil
	default:
		return nil, fmt.Errorf("unsupported knowledge base strategy: %s", kbCfg.Strategy)
	}
}

// newResolver 创建消歧方法
func newResolver(cfg *config.Config, v *vectorizer.Vectorizer) (linking.Resolver, error) {
	switch cfg.Resolver.Kind {
	case config.ResolverRule, "":
		return linking.NewRuleResolver(), nil
	case config.ResolverEmbedding:
		if v == nil {
			return nil, fmt.Errorf("embedding resolver requires a vectorizer")
		}
		indexes, err := newIndexBuilder(cfg)
		if err != nil {
			return nil, err
		}
		return linking.NewEmbeddingResolver(v, indexes), nil
	default:
		return nil, fmt.Errorf("unsupported resolver: %s", cfg.Resolver.Kind)
	}
}

// newIndexBuilder 创建上下文向量索引
func newIndexBuilder(cfg *config.Config) (linking.IndexBuilder, error) {
	switch cfg.Resolver.Index {
	case config.IndexMemory, "":
		return linking.MemoryIndexBuilder{}, nil
	case config.IndexElastic:
		esCfg := cfg.Elastic
		client, err := linking.NewESClient(esCfg.Host, esCfg.Username, esCfg.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to create es client: %w", err)
		}
		return linking.NewElasticIndexBuilder(client, esCfg.IndexPrefix), nil
	default:
		return nil, fmt.Errorf("unsupported context index: %s", cfg.Resolver.Index)
	}
}
