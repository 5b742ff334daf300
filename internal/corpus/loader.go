package corpus

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/ashwinyue/next-linker/internal/model"
)

// Format 语料文件格式
type Format string

const (
	FormatCoNLL Format = "conll" // <dir>/<partition>.txt
	FormatJSON  Format = "json"  // <dir>/<partition>.json
)

// ParseFormat 解析格式配置
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatCoNLL, "":
		return FormatCoNLL, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported corpus format: %s", s)
	}
}

// Loader 加载 train/dev/test 并合并为一个评估池
type Loader struct {
	dir        string
	format     Format
	partitions []model.Partition
}

// NewLoader 创建语料加载器
func NewLoader(dir string, format Format, partitions []model.Partition) *Loader {
	if len(partitions) == 0 {
		partitions = model.Partitions
	}
	return &Loader{dir: dir, format: format, partitions: partitions}
}

// Load 读取所有划分，缺失的划分文件只记录警告
func (l *Loader) Load() (*model.Dataset, error) {
	dataset := model.NewDataset()
	loaded := 0

	for _, p := range l.partitions {
		path := l.path(p)
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("Warning: partition %s not found at %s", p, path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open partition %s: %w", p, err)
		}

		docs, err := l.read(f, string(p))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read partition %s: %w", p, err)
		}

		for _, doc := range docs {
			dataset.Add(p, doc.Name, doc.Sentences)
		}
		loaded++
	}

	if loaded == 0 {
		return nil, fmt.Errorf("no corpus partitions found in %s", l.dir)
	}
	return dataset, nil
}

func (l *Loader) path(p model.Partition) string {
	ext := ".txt"
	if l.format == FormatJSON {
		ext = ".json"
	}
	return filepath.Join(l.dir, string(p)+ext)
}

func (l *Loader) read(r io.Reader, defaultName string) ([]DocumentSentences, error) {
	if l.format == FormatJSON {
		return ReadPartitionJSON(r)
	}
	return ReadCoNLL(r, defaultName)
}

// ReportIssues 检查数据集中的标注问题并记录警告，返回问题数量
func ReportIssues(d *model.Dataset) int {
	total := 0
	for _, u := range d.Units() {
		for si, s := range u.Sentences {
			_, issues := model.ExtractMentions(s)
			for _, issue := range issues {
				log.Printf("Warning: malformed annotation in %s sentence %d: %s", u.Key, si, issue)
			}
			total += len(issues)
		}
	}
	return total
}
