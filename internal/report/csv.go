package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ashwinyue/next-linker/internal/service/evaluation"
)

// WriteCSV 写出单元行和汇总行
func WriteCSV(w io.Writer, r *evaluation.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(r)); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(append(unitRows(r), summaryRows(r)...)); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}
