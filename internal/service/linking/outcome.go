// Package linking 把句子中的提及链接到知识库中的实体标识符
package linking

import (
	"context"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
)

// Outcome 单个提及的判定结果
type Outcome int

const (
	// Undecidable 知识库中没有可用的条目，不计入 tp/fp/fn
	Undecidable Outcome = iota
	TruePositive
	FalsePositive
	FalseNegative
)

func (o Outcome) String() string {
	switch o {
	case TruePositive:
		return "tp"
	case FalsePositive:
		return "fp"
	case FalseNegative:
		return "fn"
	default:
		return "undecidable"
	}
}

// Decision 一个提及的消歧结果
type Decision struct {
	Mention    model.Mention
	Predicted  string   // 预测的标识符；没有预测时为空
	Candidates []string // 规则方法的候选集合
	Score      float64  // 向量方法的最佳余弦相似度
	Outcome    Outcome
}

// Gold 标注的标识符
func (d Decision) Gold() string {
	return d.Mention.ID
}

// Resolver 消歧方法
type Resolver interface {
	Name() string
	// ForUnit 绑定一个评估单元的知识库
	ForUnit(ctx context.Context, kb *knowledgebase.KnowledgeBase) (UnitResolver, error)
}

// UnitResolver 绑定到单个知识库的消歧器
type UnitResolver interface {
	// Resolve 对句中每个提及给出判定，顺序与 Sentence.Mentions 一致
	Resolve(ctx context.Context, s model.Sentence) ([]Decision, error)
	Close() error
}

// judge 由预测与标注得到结果
func judge(predicted, gold string) Outcome {
	if predicted == gold {
		return TruePositive
	}
	return FalsePositive
}

// evidences 计算每个条目在当前句子下的留一证据，保持条目首次出现顺序
func evidences(kb *knowledgebase.KnowledgeBase, key string) []knowledgebase.Evidence {
	entries := kb.Entries()
	out := make([]knowledgebase.Evidence, 0, len(entries))
	for _, e := range entries {
		ev := e.Evidence(key)
		if ev.Admissible() {
			out = append(out, ev)
		}
	}
	return out
}
