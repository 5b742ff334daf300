package model

import (
	"regexp"
	"strings"
)

// NoEntity 表示 "不是实体" 的标识符哨兵值
const NoEntity = "-"

// Tag 实体边界标记
type Tag int

const (
	TagNone   Tag = iota // 非实体或无边界信息
	TagBegin             // 实体开始
	TagInside            // 实体内部
)

// ParseTag 解析语料中的边界标记（B-PER / I-ORG / O / -）
func ParseTag(s string) Tag {
	switch {
	case strings.HasPrefix(s, "B"):
		return TagBegin
	case strings.HasPrefix(s, "I"):
		return TagInside
	default:
		return TagNone
	}
}

// String 返回标记的文本形式
func (t Tag) String() string {
	switch t {
	case TagBegin:
		return "B"
	case TagInside:
		return "I"
	default:
		return "O"
	}
}

// Token 词元
type Token struct {
	Text string `json:"text"`
	Tag  Tag    `json:"tag"`
	ID   string `json:"id"` // 实体标识符，NoEntity 表示非实体
}

// IsEntity 是否为实体词元
func (t Token) IsEntity() bool {
	return t.ID != "" && t.ID != NoEntity
}

// Sentence 句子，按值比较
type Sentence struct {
	Tokens []Token `json:"tokens"`
}

// NewSentence 创建句子（复制词元，保证不可变）
func NewSentence(tokens []Token) Sentence {
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	return Sentence{Tokens: cp}
}

// Len 词元数量
func (s Sentence) Len() int {
	return len(s.Tokens)
}

// Equal 结构相等：相同的词元序列
func (s Sentence) Equal(o Sentence) bool {
	if len(s.Tokens) != len(o.Tokens) {
		return false
	}
	for i := range s.Tokens {
		if s.Tokens[i] != o.Tokens[i] {
			return false
		}
	}
	return true
}

// Key 返回句子的结构键，两个句子 Equal 当且仅当 Key 相同
func (s Sentence) Key() string {
	var b strings.Builder
	for _, t := range s.Tokens {
		b.WriteString(t.Text)
		b.WriteByte('\x1f')
		b.WriteString(t.Tag.String())
		b.WriteByte('\x1f')
		b.WriteString(t.ID)
		b.WriteByte('\x1e')
	}
	return b.String()
}

// Words 返回词元文本
func (s Sentence) Words() []string {
	words := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		words[i] = t.Text
	}
	return words
}

// Text 返回以空格连接的句子文本
func (s Sentence) Text() string {
	return strings.Join(s.Words(), " ")
}

// Span 词元区间 [Start, End)
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len 区间长度
func (s Span) Len() int {
	return s.End - s.Start
}

// Indices 区间内的词元下标
func (s Span) Indices() []int {
	idx := make([]int, 0, s.Len())
	for i := s.Start; i < s.End; i++ {
		idx = append(idx, i)
	}
	return idx
}

// Mention 实体提及：同一句子中共享同一标识符的连续词元
type Mention struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	Span Span   `json:"span"`
}

var punctSpacing = regexp.MustCompile(`\s+([?.!"])`)

// SurfaceText 拼接词元并规范化标点前的空格
func SurfaceText(words []string) string {
	return punctSpacing.ReplaceAllString(strings.Join(words, " "), "$1")
}
