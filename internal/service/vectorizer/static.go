package vectorizer

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/embedding"
)

// StaticProvider 用 eino Embedder 逐词元取向量。
// 同一词元在任何句子中得到相同向量，因此可以缓存在实例内的词表中。
type StaticProvider struct {
	embedder embedding.Embedder

	mu    sync.RWMutex
	vocab map[string][]float64
}

// NewStaticProvider 创建静态向量提供方
func NewStaticProvider(embedder embedding.Embedder) *StaticProvider {
	return &StaticProvider{
		embedder: embedder,
		vocab:    make(map[string][]float64),
	}
}

// EmbedTokens 只为词表中没有的词元调用 Embedder，同一批内去重
func (p *StaticProvider) EmbedTokens(ctx context.Context, tokens []string) ([][]float64, error) {
	var missing []string
	seen := make(map[string]struct{})

	p.mu.RLock()
	for _, tok := range tokens {
		if _, ok := p.vocab[tok]; ok {
			continue
		}
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		missing = append(missing, tok)
	}
	p.mu.RUnlock()

	if len(missing) > 0 {
		vectors, err := p.embedder.EmbedStrings(ctx, missing)
		if err != nil {
			return nil, fmt.Errorf("failed to embed tokens: %w", err)
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("%w: got %d vectors for %d tokens", ErrProviderContract, len(vectors), len(missing))
		}
		p.mu.Lock()
		for i, tok := range missing {
			p.vocab[tok] = vectors[i]
		}
		p.mu.Unlock()
	}

	out := make([][]float64, len(tokens))
	p.mu.RLock()
	defer p.mu.RUnlock()
	for i, tok := range tokens {
		out[i] = p.vocab[tok]
	}
	return out, nil
}

// VocabSize 已缓存的词元数量
func (p *StaticProvider) VocabSize() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.vocab)
}

// Close 清空词表
func (p *StaticProvider) Close() error {
	p.mu.Lock()
	p.vocab = make(map[string][]float64)
	p.mu.Unlock()
	return nil
}
