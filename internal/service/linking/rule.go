package linking

import (
	"context"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/ashwinyue/next-linker/internal/service/knowledgebase"
)

// RuleResolver 基于表面形式精确匹配的消歧方法：
// 恰好一个候选时给出预测，没有或有多个候选时拒绝猜测。
type RuleResolver struct{}

// NewRuleResolver 创建规则消歧器
func NewRuleResolver() *RuleResolver {
	return &RuleResolver{}
}

// Name 方法名
func (r *RuleResolver) Name() string {
	return "rule"
}

// ForUnit 绑定知识库
func (r *RuleResolver) ForUnit(ctx context.Context, kb *knowledgebase.KnowledgeBase) (UnitResolver, error) {
	return &ruleUnit{kb: kb}, nil
}

type ruleUnit struct {
	kb *knowledgebase.KnowledgeBase
}

func (u *ruleUnit) Resolve(ctx context.Context, s model.Sentence) ([]Decision, error) {
	mentions := s.Mentions()
	if len(mentions) == 0 {
		return nil, nil
	}

	admissible := evidences(u.kb, s.Key())
	decisions := make([]Decision, len(mentions))
	for i, m := range mentions {
		decisions[i] = decideBySurface(m, admissible)
	}
	return decisions, nil
}

func (u *ruleUnit) Close() error {
	return nil
}

// decideBySurface 在可用证据中查找表面形式完全相同的候选
func decideBySurface(m model.Mention, admissible []knowledgebase.Evidence) Decision {
	d := Decision{Mention: m}
	if len(admissible) == 0 {
		d.Outcome = Undecidable
		return d
	}

	for _, ev := range admissible {
		if ev.HasSurface(m.Text) {
			d.Candidates = append(d.Candidates, ev.Entry.ID)
		}
	}

	switch len(d.Candidates) {
	case 0:
		d.Outcome = FalseNegative
	case 1:
		d.Predicted = d.Candidates[0]
		d.Outcome = judge(d.Predicted, m.ID)
	default:
		d.Outcome = FalseNegative
	}
	return d
}
