package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ashwinyue/next-linker/internal/service/evaluation"
)

// WriteHardCases 每行一个 JSON 对象
func WriteHardCases(w io.Writer, cases []evaluation.HardCase) error {
	enc := json.NewEncoder(w)
	for _, c := range cases {
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to encode hard case: %w", err)
		}
	}
	return nil
}

// SaveHardCases 写入难例日志文件
func SaveHardCases(path string, cases []evaluation.HardCase) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create hard case log: %w", err)
	}
	defer f.Close()
	return WriteHardCases(f, cases)
}
