// Package knowledgebase 从标注语料构建语料内知识库
package knowledgebase

import (
	"github.com/ashwinyue/next-linker/internal/model"
)

// Entry 知识库条目：一个实体标识符的上下文、表面形式和上下文向量
type Entry struct {
	ID       string
	Contexts []model.Sentence // 去重后的上下文句子
	Mentions []string         // 去重后的表面形式，按首次出现排序
	Vectors  [][]float64      // 与 Contexts 下标对齐；未向量化时为 nil

	// External 条目来自外部知识库，没有上下文
	External bool

	keys     map[string]int        // 句子结构键 -> 上下文下标
	forms    []map[string]struct{} // 每个上下文中观察到的表面形式
	spans    []model.Span          // 每个上下文中该实体的第一个提及区间
	mentions map[string]struct{}
}

func newEntry(id string) *Entry {
	return &Entry{
		ID:       id,
		keys:     make(map[string]int),
		mentions: make(map[string]struct{}),
	}
}

// addMention 记录一次提及，返回上下文下标
func (e *Entry) addMention(s model.Sentence, key string, m model.Mention) int {
	idx, ok := e.keys[key]
	if !ok {
		idx = len(e.Contexts)
		e.keys[key] = idx
		e.Contexts = append(e.Contexts, s)
		e.forms = append(e.forms, make(map[string]struct{}))
		e.spans = append(e.spans, m.Span)
	}
	e.forms[idx][m.Text] = struct{}{}
	e.addSurface(m.Text)
	return idx
}

func (e *Entry) addSurface(text string) {
	if _, ok := e.mentions[text]; ok {
		return
	}
	e.mentions[text] = struct{}{}
	e.Mentions = append(e.Mentions, text)
}

// ContextCount 上下文数量
func (e *Entry) ContextCount() int {
	return len(e.Contexts)
}

// HasMention 表面形式是否出现过（任意上下文）
func (e *Entry) HasMention(text string) bool {
	_, ok := e.mentions[text]
	return ok
}

// Span 返回第 i 个上下文中该实体的提及区间
func (e *Entry) Span(i int) model.Span {
	return e.spans[i]
}

// Evidence 排除当前句子（按结构键）后的留一视图
func (e *Entry) Evidence(currentKey string) Evidence {
	ev := Evidence{Entry: e}
	if e.External {
		return ev
	}
	skip, ok := e.keys[currentKey]
	ev.Contexts = make([]int, 0, len(e.Contexts))
	for i := range e.Contexts {
		if ok && i == skip {
			continue
		}
		ev.Contexts = append(ev.Contexts, i)
	}
	return ev
}

// Evidence 条目在留一约束下可用的证据
type Evidence struct {
	Entry    *Entry
	Contexts []int // 剩余上下文下标
}

// Admissible 剩余上下文是否构成独立证据（至少两个）。外部条目总是可用。
func (ev Evidence) Admissible() bool {
	if ev.Entry.External {
		return true
	}
	return len(ev.Contexts) > 1
}

// HasSurface 剩余上下文中是否观察到该表面形式（大小写敏感）
func (ev Evidence) HasSurface(text string) bool {
	if ev.Entry.External {
		return ev.Entry.HasMention(text)
	}
	for _, i := range ev.Contexts {
		if _, ok := ev.Entry.forms[i][text]; ok {
			return true
		}
	}
	return false
}

// KnowledgeBase 标识符到条目的映射，构建后只读
type KnowledgeBase struct {
	entries map[string]*Entry
	order   []string
}

func newKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{entries: make(map[string]*Entry)}
}

func (kb *KnowledgeBase) add(e *Entry) {
	if _, ok := kb.entries[e.ID]; !ok {
		kb.order = append(kb.order, e.ID)
	}
	kb.entries[e.ID] = e
}

// Get 按标识符获取条目
func (kb *KnowledgeBase) Get(id string) (*Entry, bool) {
	e, ok := kb.entries[id]
	return e, ok
}

// Entries 按首次出现顺序返回条目
func (kb *KnowledgeBase) Entries() []*Entry {
	entries := make([]*Entry, 0, len(kb.order))
	for _, id := range kb.order {
		entries = append(entries, kb.entries[id])
	}
	return entries
}

// IDs 按首次出现顺序返回标识符
func (kb *KnowledgeBase) IDs() []string {
	ids := make([]string, len(kb.order))
	copy(ids, kb.order)
	return ids
}

// Len 条目数量
func (kb *KnowledgeBase) Len() int {
	return len(kb.order)
}

// Vectorized 是否预计算了上下文向量
func (kb *KnowledgeBase) Vectorized() bool {
	for _, e := range kb.entries {
		if e.Vectors != nil {
			return true
		}
	}
	return false
}
