// Package corpus 读取实体标注语料
package corpus

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ashwinyue/next-linker/internal/model"
)

// unitHeader CoNLL 文件中的单元分隔注释
const unitHeader = "# unit:"

// DocumentSentences 一个单元的句子
type DocumentSentences struct {
	Name      string
	Sentences []model.Sentence
}

// ReadCoNLL 读取 CoNLL 风格的标注文本。
// 每行 "token tag id"，以 # 开头的行为注释，空行结束一个句子。
// "# unit: name" 开始一个新的单元；没有单元注释时整个文件为一个单元 defaultName。
func ReadCoNLL(r io.Reader, defaultName string) ([]DocumentSentences, error) {
	var (
		docs     []DocumentSentences
		current  = DocumentSentences{Name: defaultName}
		sentence []model.Token
	)

	endSentence := func() {
		if len(sentence) > 0 {
			current.Sentences = append(current.Sentences, model.NewSentence(sentence))
			sentence = sentence[:0]
		}
	}
	endUnit := func() {
		endSentence()
		if len(current.Sentences) > 0 {
			docs = append(docs, current)
		}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, unitHeader) {
			endUnit()
			current = DocumentSentences{Name: strings.TrimSpace(strings.TrimPrefix(line, unitHeader))}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		if strings.TrimSpace(line) == "" {
			endSentence()
			continue
		}

		token, err := parseFields(strings.Split(line, " "))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		sentence = append(sentence, token)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}
	endUnit()

	return docs, nil
}

// ReadPartitionJSON 读取按单元分组的 JSON 语料：
// {"<unit>": [[["token", "tag", "id"], ...], ...]}
func ReadPartitionJSON(r io.Reader) ([]DocumentSentences, error) {
	var raw map[string][][][]string
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode corpus: %w", err)
	}

	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	docs := make([]DocumentSentences, 0, len(names))
	for _, name := range names {
		doc := DocumentSentences{Name: name}
		for si, rows := range raw[name] {
			tokens := make([]model.Token, 0, len(rows))
			for ti, fields := range rows {
				token, err := parseFields(fields)
				if err != nil {
					return nil, fmt.Errorf("unit %s sentence %d token %d: %w", name, si, ti, err)
				}
				tokens = append(tokens, token)
			}
			if len(tokens) > 0 {
				doc.Sentences = append(doc.Sentences, model.NewSentence(tokens))
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// parseFields 解析 [token, tag, id]；标识符取最后一列
func parseFields(fields []string) (model.Token, error) {
	if len(fields) < 3 {
		return model.Token{}, fmt.Errorf("expected at least 3 fields, got %d", len(fields))
	}
	id := fields[len(fields)-1]
	if id == "" {
		id = model.NoEntity
	}
	return model.Token{
		Text: fields[0],
		Tag:  model.ParseTag(fields[1]),
		ID:   id,
	}, nil
}
