package fetcher

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// readXLSX reads the configured sheet (first sheet by default). The first
// row is the header; date cells stored as Excel serials are converted
// directly.
func readXLSX(ctx context.Context, path string, opts Options) ([]rawRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open xlsx")
	}

	sheet, err := getSheet(f, opts.Sheet)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("fetcher: sheet %q is empty", sheet.Name)
	}

	header := rowToStrings(sheet.Rows[0])
	for i := range header {
		header[i] = normalizeHeader(header[i])
	}
	if err := checkHeader(header); err != nil {
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := col[h]; !dup {
			col[h] = i
		}
	}

	var rows []rawRow
	for i, r := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "fetcher: context cancelled")
		}
		cells := rowToStrings(r)
		if allBlank(cells) {
			continue
		}

		row := rawRow{
			Name:      cellAt(cells, col["name"]),
			DealDate:  cellAt(cells, col["deal_date"]),
			DealPrice: cellAt(cells, col["deal_price"]),
			AreaM2:    cellAt(cells, col["area_m2"]),
			Floor:     cellAt(cells, col["floor"]),
			line:      i + 2,
		}
		if idx := col["deal_date"]; idx < len(r.Cells) {
			row.serial = excelDate(r.Cells[idx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func getSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sheet, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("fetcher: sheet %q not found", name)
		}
		return sheet, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("fetcher: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

// excelDate returns the date of a numeric cell holding an Excel serial, or
// nil when the cell is text.
func excelDate(cell *xlsx.Cell) *time.Time {
	if cell.Type() != xlsx.CellTypeNumeric {
		return nil
	}
	serial, err := strconv.ParseFloat(strings.TrimSpace(cell.Value), 64)
	if err != nil || serial <= 0 || serial >= 100000 {
		return nil
	}
	t := xlsx.TimeFromExcelTime(serial, false)
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func cellAt(cells []string, idx int) string {
	if idx < len(cells) {
		return cells[idx]
	}
	return ""
}

func allBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
