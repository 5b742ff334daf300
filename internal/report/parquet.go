package report

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/ashwinyue/next-linker/internal/service/evaluation"
	_ "github.com/duckdb/duckdb-go/v2"
)

// WriteParquet 通过内存 DuckDB 写出 Parquet 文件（单元行，未定义的指标为 NULL）
func WriteParquet(ctx context.Context, path string, r *evaluation.Report) error {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return fmt.Errorf("failed to open duckdb: %w", err)
	}
	defer db.Close()

	names := metricNames(r)
	columns := []string{`"unit" VARCHAR`, `"tp" INTEGER`, `"fp" INTEGER`, `"fn" INTEGER`, `"undecidable" INTEGER`}
	for _, name := range names {
		columns = append(columns, fmt.Sprintf(`"%s" DOUBLE`, name))
	}
	createSQL := fmt.Sprintf("CREATE TABLE unit_results (%s)", strings.Join(columns, ", "))
	if _, err := db.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 5+len(names)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO unit_results VALUES (%s)", placeholders)
	for _, u := range r.Units {
		args := []interface{}{u.Unit, u.Counts.TP, u.Counts.FP, u.Counts.FN, u.Counts.Undecidable}
		for _, name := range names {
			if v, ok := u.Score(name); ok {
				args = append(args, v)
			} else {
				args = append(args, nil)
			}
		}
		if _, err := db.ExecContext(ctx, insertSQL, args...); err != nil {
			return fmt.Errorf("failed to insert %s: %w", u.Unit, err)
		}
	}

	copySQL := fmt.Sprintf("COPY unit_results TO '%s' (FORMAT PARQUET)", strings.ReplaceAll(path, "'", "''"))
	if _, err := db.ExecContext(ctx, copySQL); err != nil {
		return fmt.Errorf("failed to export parquet: %w", err)
	}
	return nil
}
