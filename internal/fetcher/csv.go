package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// readCSV decodes every data row of a CSV file. Header names are matched
// case-insensitively after trimming a leading BOM.
func readCSV(ctx context.Context, path string, opts Options) ([]rawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open csv")
	}
	defer f.Close() //nolint:errcheck

	dec, err := textDecoder(opts.Encoding)
	if err != nil {
		return nil, err
	}
	return decodeCSV(ctx, transform.NewReader(f, dec))
}

func decodeCSV(ctx context.Context, r io.Reader) ([]rawRow, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // field count is checked per row by csvutil

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("fetcher: csv is empty")
	}
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: read csv header")
	}
	for i := range header {
		header[i] = normalizeHeader(header[i])
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}

	d, err := csvutil.NewDecoder(reader, header...)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: csv decoder")
	}

	var rows []rawRow
	for {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetcher: context cancelled")
		}

		var row rawRow
		err := d.Decode(&row)
		if err == io.EOF {
			break
		}
		line, _ := reader.FieldPos(0)
		row.line = line
		if errors.Is(err, csvutil.ErrFieldCount) {
			row.shapeErr = eris.Errorf("expected %d fields", len(header))
		} else if err != nil {
			return nil, eris.Wrapf(err, "fetcher: decode csv line %d", line)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// textDecoder maps a configured encoding name to a decoder producing UTF-8.
func textDecoder(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "euc-kr", "euckr", "cp949":
		return korean.EUCKR.NewDecoder(), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported encoding %q", name)
	}
}
