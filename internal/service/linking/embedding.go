package linking

import (
	"context"
	"fmt"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
)

// EmbeddingResolver 基于上下文向量相似度的消歧方法：
// 与所有可用上下文比较余弦相似度，取全局最大者，从不拒绝预测。
type EmbeddingResolver struct {
	vectorizer knowledgebase.Vectorizer
	indexes    IndexBuilder
}

// NewEmbeddingResolver 创建向量消歧器；indexes 为空时使用内存索引
func NewEmbeddingResolver(v knowledgebase.Vectorizer, indexes IndexBuilder) *EmbeddingResolver {
	if indexes == nil {
		indexes = MemoryIndexBuilder{}
	}
	return &EmbeddingResolver{vectorizer: v, indexes: indexes}
}

// Name 方法名
func (r *EmbeddingResolver) Name() string {
	return "embedding"
}

// ForUnit 为知识库建立上下文索引
func (r *EmbeddingResolver) ForUnit(ctx context.Context, kb *knowledgebase.KnowledgeBase) (UnitResolver, error) {
	idx, err := r.indexes.Build(ctx, kb)
	if err != nil {
		return nil, fmt.Errorf("failed to build context index: %w", err)
	}
	return &embeddingUnit{vectorizer: r.vectorizer, kb: kb, index: idx}, nil
}

type embeddingUnit struct {
	vectorizer knowledgebase.Vectorizer
	kb         *knowledgebase.KnowledgeBase
	index      ContextIndex
}

func (u *embeddingUnit) Resolve(ctx context.Context, s model.Sentence) ([]Decision, error) {
	mentions := s.Mentions()
	if len(mentions) == 0 {
		return nil, nil
	}

	key := s.Key()
	admissible := evidences(u.kb, key)
	decisions := make([]Decision, len(mentions))
	if len(admissible) == 0 {
		for i, m := range mentions {
			decisions[i] = Decision{Mention: m, Outcome: Undecidable}
		}
		return decisions, nil
	}

	ids := make([]string, len(admissible))
	for i, ev := range admissible {
		ids[i] = ev.Entry.ID
	}

	spans := make([]model.Span, len(mentions))
	for i, m := range mentions {
		spans[i] = m.Span
	}
	vectors, err := u.vectorizer.Vectorize(ctx, s, spans)
	if err != nil {
		return nil, err
	}

	for i, m := range mentions {
		match, ok, err := u.index.Search(ctx, Query{Vector: vectors[i], ExcludeKey: key, EntryIDs: ids})
		if err != nil {
			return nil, fmt.Errorf("context search failed: %w", err)
		}
		d := Decision{Mention: m}
		if !ok {
			d.Outcome = Undecidable
		} else {
			d.Predicted = match.EntryID
			d.Score = match.Score
			d.Outcome = judge(match.EntryID, m.ID)
		}
		decisions[i] = d
	}
	return decisions, nil
}

func (u *embeddingUnit) Close() error {
	return u.index.Close()
}
