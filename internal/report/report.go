// Package report 输出评估报告：CSV、Parquet、终端表格和难例日志
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ashwinyue/next-linker/internal/service/evaluation"
)

// 汇总行标签，顺序与描述统计一致
var summaryLabels = []string{"count", "mean", "std", "min", "25%", "50%", "75%", "max"}

// metricNames 报告中出现的指标列
func metricNames(r *evaluation.Report) []string {
	names := make([]string, 0, len(r.Summary))
	for _, s := range r.Summary {
		names = append(names, s.Metric)
	}
	return names
}

// header 表头
func header(r *evaluation.Report) []string {
	return append([]string{"unit", "tp", "fp", "fn", "undecidable"}, metricNames(r)...)
}

// formatScore 格式化指标；未定义时为空
func formatScore(v float64, ok bool) string {
	if !ok {
		return ""
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// unitRows 每个单元一行
func unitRows(r *evaluation.Report) [][]string {
	names := metricNames(r)
	rows := make([][]string, 0, len(r.Units))
	for _, u := range r.Units {
		row := []string{
			u.Unit,
			strconv.Itoa(u.Counts.TP),
			strconv.Itoa(u.Counts.FP),
			strconv.Itoa(u.Counts.FN),
			strconv.Itoa(u.Counts.Undecidable),
		}
		for _, name := range names {
			row = append(row, formatScore(u.Score(name)))
		}
		rows = append(rows, row)
	}
	return rows
}

// summaryValue 取描述统计的第 i 项
func summaryValue(s evaluation.Summary, i int) string {
	if s.Count == 0 && i > 0 {
		return ""
	}
	switch i {
	case 0:
		return strconv.Itoa(s.Count)
	case 1:
		return formatScore(s.Mean, true)
	case 2:
		return formatScore(s.Std, true)
	case 3:
		return formatScore(s.Min, true)
	case 4:
		return formatScore(s.Q25, true)
	case 5:
		return formatScore(s.Q50, true)
	case 6:
		return formatScore(s.Q75, true)
	default:
		return formatScore(s.Max, true)
	}
}

// summaryRows 汇总行，计数列留空
func summaryRows(r *evaluation.Report) [][]string {
	rows := make([][]string, 0, len(summaryLabels))
	for i, label := range summaryLabels {
		row := []string{label, "", "", "", ""}
		for _, s := range r.Summary {
			row = append(row, summaryValue(s, i))
		}
		rows = append(rows, row)
	}
	return rows
}

// Writer 按配置的格式把报告写入目录
type Writer struct {
	dir     string
	formats []string
}

// NewWriter 创建报告写入器
func NewWriter(dir string, formats []string) *Writer {
	return &Writer{dir: dir, formats: formats}
}

// Write 写出所有文件格式，返回生成的文件路径；table 格式由调用方渲染到终端
func (w *Writer) Write(ctx context.Context, name string, r *evaluation.Report) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report dir: %w", err)
	}

	var paths []string
	for _, format := range w.formats {
		switch format {
		case "csv":
			path := filepath.Join(w.dir, name+".csv")
			f, err := os.Create(path)
			if err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", path, err)
			}
			err = WriteCSV(f, r)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return nil, err
			}
			paths = append(paths, path)
		case "parquet":
			path := filepath.Join(w.dir, name+".parquet")
			if err := WriteParquet(ctx, path, r); err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}
