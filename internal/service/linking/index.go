package linking

import (
	"context"
	"fmt"

	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
)

// Query 上下文向量检索请求
type Query struct {
	Vector     []float64
	ExcludeKey string   // 当前句子的结构键，其上下文不参与比较
	EntryIDs   []string // 可用条目，按首次出现顺序
}

// Match 最相似的上下文
type Match struct {
	EntryID string
	Context int
	Score   float64
}

// ContextIndex 一个知识库的上下文向量索引（只读）
type ContextIndex interface {
	// Search 返回最相似的上下文；同分时取先出现的条目和上下文
	Search(ctx context.Context, q Query) (Match, bool, error)
	Close() error
}

// IndexBuilder 为知识库建立上下文向量索引
type IndexBuilder interface {
	Build(ctx context.Context, kb *knowledgebase.KnowledgeBase) (ContextIndex, error)
}

// MemoryIndexBuilder 内存索引构建器
type MemoryIndexBuilder struct{}

// Build 建立内存索引
func (MemoryIndexBuilder) Build(ctx context.Context, kb *knowledgebase.KnowledgeBase) (ContextIndex, error) {
	idx, err := NewMemoryIndex(kb)
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// memoryContext 索引中的一个上下文
type memoryContext struct {
	key    string
	vector []float64
}

// MemoryIndex 线性扫描的内存索引
type MemoryIndex struct {
	contexts map[string][]memoryContext
	dim      int
}

// NewMemoryIndex 从已向量化的知识库建立内存索引
func NewMemoryIndex(kb *knowledgebase.KnowledgeBase) (*MemoryIndex, error) {
	idx := &MemoryIndex{contexts: make(map[string][]memoryContext)}
	for _, e := range kb.Entries() {
		if e.External {
			continue
		}
		if len(e.Vectors) != len(e.Contexts) {
			return nil, fmt.Errorf("entry %s is not vectorized", e.ID)
		}
		cs := make([]memoryContext, len(e.Contexts))
		for i, s := range e.Contexts {
			vec := e.Vectors[i]
			if idx.dim == 0 {
				idx.dim = len(vec)
			}
			if len(vec) != idx.dim {
				return nil, fmt.Errorf("%w: context %d of entry %s has dimension %d, want %d",
					ErrDimensionMismatch, i, e.ID, len(vec), idx.dim)
			}
			cs[i] = memoryContext{key: s.Key(), vector: vec}
		}
		idx.contexts[e.ID] = cs
	}
	return idx, nil
}

// Search 全局取最大值，严格大于才替换，因此同分保留先出现者
func (idx *MemoryIndex) Search(ctx context.Context, q Query) (Match, bool, error) {
	var (
		best  Match
		found bool
	)
	for _, id := range q.EntryIDs {
		for i, c := range idx.contexts[id] {
			if c.key == q.ExcludeKey {
				continue
			}
			score, err := Cosine(q.Vector, c.vector)
			if err != nil {
				return Match{}, false, err
			}
			if !found || score > best.Score {
				best = Match{EntryID: id, Context: i, Score: score}
				found = true
			}
		}
	}
	return best, found, nil
}

// Close 无需释放资源
func (idx *MemoryIndex) Close() error {
	return nil
}
