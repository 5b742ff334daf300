package knowledgebase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/ashwinyue/next-linker/internal/model"
	"github.com/kaptinlin/jsonrepair"
)

// Source 为评估单元提供知识库。构建策略在启动时选定一次。
type Source interface {
	Name() string
	ForUnit(ctx context.Context, unit *model.Unit) (*KnowledgeBase, error)
}

// InCorpusSource 每个单元从自身句子重新构建知识库
type InCorpusSource struct {
	builder *Builder
}

// NewInCorpusSource 创建语料内知识库来源
func NewInCorpusSource(builder *Builder) *InCorpusSource {
	return &InCorpusSource{builder: builder}
}

// Name 策略名
func (s *InCorpusSource) Name() string {
	return "in_corpus"
}

// ForUnit 构建单元知识库
func (s *InCorpusSource) ForUnit(ctx context.Context, unit *model.Unit) (*KnowledgeBase, error) {
	return s.builder.Build(ctx, unit.Sentences)
}

// DefaultExternalFiles 外部知识库的默认文件
var DefaultExternalFiles = []string{"humans.json", "organizations.json"}

// ExternalSource 外部知识库：只有表面形式，没有上下文，所有单元共享（只读）
type ExternalSource struct {
	kb *KnowledgeBase
}

// Name 策略名
func (s *ExternalSource) Name() string {
	return "external"
}

// ForUnit 返回共享的外部知识库
func (s *ExternalSource) ForUnit(ctx context.Context, unit *model.Unit) (*KnowledgeBase, error) {
	return s.kb, nil
}

// KnowledgeBase 外部知识库
func (s *ExternalSource) KnowledgeBase() *KnowledgeBase {
	return s.kb
}

// externalRecord 外部知识库中的一条记录
type externalRecord struct {
	Mentions      []string `json:"MENTIONS"`
	MentionsLower []string `json:"mentions"`
}

// LoadExternalSource 从目录加载外部知识库文件（后加载的文件覆盖同名标识符）
func LoadExternalSource(dir string, files ...string) (*ExternalSource, error) {
	if len(files) == 0 {
		files = DefaultExternalFiles
	}

	kb := newKnowledgeBase()
	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read knowledge base file %s: %w", name, err)
		}

		records, err := decodeExternal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode knowledge base file %s: %w", name, err)
		}

		ids := make([]string, 0, len(records))
		for id := range records {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			rec := records[id]
			e := newEntry(id)
			e.External = true
			for _, m := range append(rec.Mentions, rec.MentionsLower...) {
				e.addSurface(m)
			}
			kb.add(e)
		}
	}

	return &ExternalSource{kb: kb}, nil
}

// decodeExternal 解析外部知识库；手工维护的文件常有尾逗号等问题，失败时先修复再解析
func decodeExternal(data []byte) (map[string]externalRecord, error) {
	var records map[string]externalRecord
	err := json.Unmarshal(data, &records)
	if err == nil {
		return records, nil
	}

	repaired, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(repaired), &records); err != nil {
		return nil, err
	}
	log.Printf("Warning: knowledge base file was malformed and has been repaired")
	return records, nil
}
