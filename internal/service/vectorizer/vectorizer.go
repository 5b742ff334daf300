// Package vectorizer 把句子中的提及区间转换为定长向量
package vectorizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashwinyue/next-linker/internal/model"
)

// DefaultMaskToken 掩码占位符
const DefaultMaskToken = "[MASK]"

var (
	// ErrEmptySpan 提及区间不包含任何词元（调用方违约）
	ErrEmptySpan = errors.New("mention span covers zero tokens")
	// ErrSpanOutOfRange 提及区间超出句子范围
	ErrSpanOutOfRange = errors.New("mention span out of sentence range")
	// ErrProviderContract 向量提供方返回的向量数量或维度不一致
	ErrProviderContract = errors.New("embedding provider returned malformed vectors")
)

// Provider 上下文向量提供方：输入已切分的词元，每个词元返回一个向量。
// 不会重新分词。
type Provider interface {
	EmbedTokens(ctx context.Context, tokens []string) ([][]float64, error)
	Close() error
}

// Vectorizer 提及向量化器
type Vectorizer struct {
	provider  Provider
	mask      bool
	maskToken string
}

// Option 向量化器选项
type Option func(*Vectorizer)

// WithMask 向量化前用占位符替换提及词元
func WithMask(mask bool) Option {
	return func(v *Vectorizer) {
		v.mask = mask
	}
}

// WithMaskToken 自定义掩码占位符
func WithMaskToken(token string) Option {
	return func(v *Vectorizer) {
		if token != "" {
			v.maskToken = token
		}
	}
}

// New 创建向量化器，provider 由调用方持有并负责关闭
func New(provider Provider, opts ...Option) *Vectorizer {
	v := &Vectorizer{
		provider:  provider,
		maskToken: DefaultMaskToken,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Masked 是否启用掩码
func (v *Vectorizer) Masked() bool {
	return v.mask
}

// Vectorize 为每个区间返回一个向量：每个句子只调用一次提供方，
// 然后对区间内的词元向量逐元素求均值。
func (v *Vectorizer) Vectorize(ctx context.Context, sentence model.Sentence, spans []model.Span) ([][]float64, error) {
	for _, sp := range spans {
		if sp.Len() <= 0 {
			return nil, fmt.Errorf("%w: [%d, %d)", ErrEmptySpan, sp.Start, sp.End)
		}
		if sp.Start < 0 || sp.End > sentence.Len() {
			return nil, fmt.Errorf("%w: [%d, %d) in sentence of %d tokens", ErrSpanOutOfRange, sp.Start, sp.End, sentence.Len())
		}
	}
	if len(spans) == 0 {
		return nil, nil
	}

	words := sentence.Words()
	if v.mask {
		for _, sp := range spans {
			for i := sp.Start; i < sp.End; i++ {
				words[i] = v.maskToken
			}
		}
	}

	tokenVectors, err := v.provider.EmbedTokens(ctx, words)
	if err != nil {
		return nil, fmt.Errorf("failed to embed sentence: %w", err)
	}
	if err := checkVectors(tokenVectors, len(words)); err != nil {
		return nil, err
	}

	out := make([][]float64, len(spans))
	for i, sp := range spans {
		out[i] = Mean(tokenVectors[sp.Start:sp.End])
	}
	return out, nil
}

// checkVectors 检查向量数量与维度
func checkVectors(vectors [][]float64, n int) error {
	if len(vectors) != n {
		return fmt.Errorf("%w: got %d vectors for %d tokens", ErrProviderContract, len(vectors), n)
	}
	if n == 0 {
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: zero-dimensional vector", ErrProviderContract)
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("%w: token %d has dimension %d, want %d", ErrProviderContract, i, len(vec), dim)
		}
	}
	return nil
}

// Mean 逐元素均值；单个向量原样复制返回
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	out := make([]float64, len(vectors[0]))
	copy(out, vectors[0])
	if len(vectors) == 1 {
		return out
	}
	for _, vec := range vectors[1:] {
		for j, x := range vec {
			out[j] += x
		}
	}
	n := float64(len(vectors))
	for j := range out {
		out[j] /= n
	}
	return out
}
