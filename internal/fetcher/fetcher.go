// Package fetcher loads transaction tables (CSV or XLSX) into typed records.
package fetcher

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hannam-lab/markers-cli/internal/model"
)

// ErrorPolicy decides what happens to a row that fails to parse.
type ErrorPolicy string

const (
	// PolicySkip logs and drops the row.
	PolicySkip ErrorPolicy = "skip"
	// PolicyAbort fails the whole load.
	PolicyAbort ErrorPolicy = "abort"
)

// Options configures LoadTransactions.
type Options struct {
	Encoding string      // "utf-8" (default) or "euc-kr"/"cp949"; CSV only
	Sheet    string      // XLSX sheet name; first sheet when empty
	OnError  ErrorPolicy // default PolicySkip
}

// Report counts what happened during a load.
type Report struct {
	Rows    int
	Loaded  int
	Skipped int
}

// RowError describes a row that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return eris.Wrapf(e.Err, "row %d", e.Line).Error()
}

func (e *RowError) Unwrap() error { return e.Err }

// LoadTransactions reads the table at path, choosing the parser by extension.
func LoadTransactions(ctx context.Context, path string, opts Options) ([]model.TransactionRecord, Report, error) {
	if opts.OnError == "" {
		opts.OnError = PolicySkip
	}

	var (
		rows   []rawRow
		report Report
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		rows, err = readCSV(ctx, path, opts)
	case ".xlsx":
		rows, err = readXLSX(ctx, path, opts)
	default:
		return nil, report, eris.Errorf("fetcher: unsupported input extension %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, report, err
	}

	records := make([]model.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		report.Rows++
		rec, parseErr := row.toRecord()
		if parseErr != nil {
			rowErr := &RowError{Line: row.line, Err: parseErr}
			if opts.OnError == PolicyAbort {
				return nil, report, eris.Wrap(rowErr, "fetcher: malformed row")
			}
			report.Skipped++
			zap.L().Warn("fetcher: skipping malformed row",
				zap.Int("line", row.line),
				zap.String("name", row.Name),
				zap.Error(parseErr),
			)
			continue
		}
		records = append(records, rec)
	}
	report.Loaded = len(records)

	zap.L().Info("fetcher: loaded transactions",
		zap.String("path", path),
		zap.Int("rows", report.Rows),
		zap.Int("loaded", report.Loaded),
		zap.Int("skipped", report.Skipped),
	)
	return records, report, nil
}

// ParsePolicy validates a configured error policy.
func ParsePolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PolicySkip:
		return PolicySkip, nil
	case PolicyAbort:
		return PolicyAbort, nil
	default:
		return "", eris.Errorf("fetcher: unknown error policy %q (want skip or abort)", s)
	}
}
