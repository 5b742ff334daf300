package knowledgebase

import (
	"context"
	"fmt"

	"github.com/ashwinyue/next-linker/internal/model"
)

// DefaultThreshold 默认上下文阈值：只出现在一个句子中的实体不提供消歧证据
const DefaultThreshold = 1

// Vectorizer 计算句子中提及的向量（见 vectorizer 包）
type Vectorizer interface {
	Vectorize(ctx context.Context, sentence model.Sentence, spans []model.Span) ([][]float64, error)
}

// Builder 知识库构建器
type Builder struct {
	threshold  int
	vectorizer Vectorizer
}

// Option 构建器选项
type Option func(*Builder)

// WithVectorizer 构建时为每个 (实体, 上下文) 预计算向量
func WithVectorizer(v Vectorizer) Option {
	return func(b *Builder) {
		b.vectorizer = v
	}
}

// NewBuilder 创建构建器；上下文数量必须大于 threshold 才会保留
func NewBuilder(threshold int, opts ...Option) *Builder {
	if threshold < 0 {
		threshold = DefaultThreshold
	}
	b := &Builder{threshold: threshold}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Threshold 上下文阈值
func (b *Builder) Threshold() int {
	return b.threshold
}

// Build 扫描一个评估单元的句子并构建知识库
func (b *Builder) Build(ctx context.Context, sentences []model.Sentence) (*KnowledgeBase, error) {
	all := newKnowledgeBase()

	for _, s := range sentences {
		key := s.Key()
		for _, m := range s.Mentions() {
			e, ok := all.Get(m.ID)
			if !ok {
				e = newEntry(m.ID)
				all.add(e)
			}
			e.addMention(s, key, m)
		}
	}

	kb := newKnowledgeBase()
	for _, e := range all.Entries() {
		if e.ContextCount() > b.threshold {
			kb.add(e)
		}
	}

	if b.vectorizer != nil {
		if err := b.vectorize(ctx, kb); err != nil {
			return nil, err
		}
	}
	return kb, nil
}

// contextRef 指向某个条目的某个上下文
type contextRef struct {
	entry *Entry
	index int
}

// vectorize 每个不同的句子只调用一次向量化，把结果分配给句中的各个条目
func (b *Builder) vectorize(ctx context.Context, kb *KnowledgeBase) error {
	var order []string
	sentences := make(map[string]model.Sentence)
	refs := make(map[string][]contextRef)

	for _, e := range kb.Entries() {
		e.Vectors = make([][]float64, len(e.Contexts))
		for i, s := range e.Contexts {
			key := s.Key()
			if _, ok := sentences[key]; !ok {
				sentences[key] = s
				order = append(order, key)
			}
			refs[key] = append(refs[key], contextRef{entry: e, index: i})
		}
	}

	for _, key := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		// 与查询端一致：句中所有提及一起交给向量化器，掩码时全部被替换
		mentions := sentences[key].Mentions()
		spans := make([]model.Span, len(mentions))
		for i, m := range mentions {
			spans[i] = m.Span
		}

		vectors, err := b.vectorizer.Vectorize(ctx, sentences[key], spans)
		if err != nil {
			return fmt.Errorf("failed to vectorize context: %w", err)
		}
		if len(vectors) != len(spans) {
			return fmt.Errorf("vectorizer returned %d vectors for %d mentions", len(vectors), len(spans))
		}
		for _, ref := range refs[key] {
			i := spanIndex(spans, ref.entry.Span(ref.index))
			if i < 0 {
				return fmt.Errorf("context of %s has no mention at %v", ref.entry.ID, ref.entry.Span(ref.index))
			}
			ref.entry.Vectors[ref.index] = vectors[i]
		}
	}
	return nil
}

func spanIndex(spans []model.Span, target model.Span) int {
	for i, sp := range spans {
		if sp == target {
			return i
		}
	}
	return -1
}
