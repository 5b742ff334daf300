package model

import "fmt"

// IssueKind 标注问题类型
type IssueKind string

const (
	IssueOrphanInside   IssueKind = "orphan_inside"   // inside 没有可延续的实体
	IssueIDMismatch     IssueKind = "id_mismatch"     // inside 与前一词元标识符不同
	IssueTagWithoutID   IssueKind = "tag_without_id"  // 有边界标记但没有标识符
	IssueRepeatedEntity IssueKind = "repeated_entity" // 同一实体在句中多次出现（不连续）
)

// AnnotationIssue 标注数据质量警告
type AnnotationIssue struct {
	Kind  IssueKind `json:"kind"`
	Index int       `json:"index"`
	ID    string    `json:"id"`
}

func (i AnnotationIssue) String() string {
	return fmt.Sprintf("%s at token %d (id=%s)", i.Kind, i.Index, i.ID)
}

// Mentions 返回句中所有提及，忽略标注问题
func (s Sentence) Mentions() []Mention {
	mentions, _ := ExtractMentions(s)
	return mentions
}

// ExtractMentions 切分句中的实体提及。
// 每个实体词元恰好属于一个提及；遇到间断、标记不匹配或标识符不匹配时
// 重新开始一个区间，并报告标注问题（不会中止）。
func ExtractMentions(s Sentence) ([]Mention, []AnnotationIssue) {
	var (
		mentions []Mention
		issues   []AnnotationIssue
		open     = -1 // 当前区间起点
		openID   string
	)
	seen := make(map[string]bool)

	flush := func(end int) {
		if open < 0 {
			return
		}
		if seen[openID] {
			issues = append(issues, AnnotationIssue{Kind: IssueRepeatedEntity, Index: open, ID: openID})
		}
		seen[openID] = true
		mentions = append(mentions, Mention{
			ID:   openID,
			Text: SurfaceText(s.Words()[open:end]),
			Span: Span{Start: open, End: end},
		})
		open = -1
		openID = ""
	}

	for i, tok := range s.Tokens {
		if !tok.IsEntity() {
			if tok.Tag != TagNone {
				issues = append(issues, AnnotationIssue{Kind: IssueTagWithoutID, Index: i, ID: tok.ID})
			}
			flush(i)
			continue
		}

		switch tok.Tag {
		case TagBegin:
			flush(i)
			open, openID = i, tok.ID
		case TagInside:
			if open >= 0 && openID == tok.ID {
				continue
			}
			if open < 0 {
				issues = append(issues, AnnotationIssue{Kind: IssueOrphanInside, Index: i, ID: tok.ID})
			} else {
				issues = append(issues, AnnotationIssue{Kind: IssueIDMismatch, Index: i, ID: tok.ID})
			}
			flush(i)
			open, openID = i, tok.ID
		default:
			// 无边界标记的语料只用标识符标注实体，相邻的相同标识符视为同一提及
			if open >= 0 && openID == tok.ID {
				continue
			}
			flush(i)
			open, openID = i, tok.ID
		}
	}
	flush(len(s.Tokens))

	return mentions, issues
}
