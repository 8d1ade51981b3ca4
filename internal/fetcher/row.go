package fetcher

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/unicode/norm"

	"github.com/hannam-lab/markers-cli/internal/model"
)

// requiredColumns lists the header names every input table must carry.
var requiredColumns = []string{"name", "deal_date", "deal_price", "area_m2", "floor"}

// rawRow is one input row before type conversion.
type rawRow struct {
	Name      string `csv:"name"`
	DealDate  string `csv:"deal_date"`
	DealPrice string `csv:"deal_price"`
	AreaM2    string `csv:"area_m2"`
	Floor     string `csv:"floor"`

	line int
	// serial holds the converted date when the XLSX cell was an Excel date serial.
	serial *time.Time
	// shapeErr is set when the row had the wrong number of fields.
	shapeErr error
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006.01.02",
	"2006/01/02",
	"20060102",
}

func (r rawRow) toRecord() (model.TransactionRecord, error) {
	var rec model.TransactionRecord
	if r.shapeErr != nil {
		return rec, r.shapeErr
	}

	rec.BuildingName = norm.NFC.String(strings.TrimSpace(r.Name))
	if rec.BuildingName == "" {
		return rec, eris.New("missing name")
	}

	if r.serial != nil {
		rec.DealDate = *r.serial
	} else {
		d, err := parseDate(r.DealDate)
		if err != nil {
			return rec, err
		}
		rec.DealDate = d
	}

	price, err := parseNumber(r.DealPrice)
	if err != nil {
		return rec, eris.Wrap(err, "deal_price")
	}
	rec.DealPrice = int64(math.Round(price))

	rec.AreaM2, err = parseNumber(r.AreaM2)
	if err != nil {
		return rec, eris.Wrap(err, "area_m2")
	}

	floor, err := parseNumber(r.Floor)
	if err != nil {
		return rec, eris.Wrap(err, "floor")
	}
	if floor != math.Trunc(floor) {
		return rec, eris.Errorf("floor: %q is not an integer", r.Floor)
	}
	rec.Floor = int(floor)

	if err := rec.Validate(); err != nil {
		return rec, err
	}
	return rec, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, eris.New("missing deal_date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, eris.Errorf("deal_date: unrecognized date %q", s)
}

// parseNumber accepts thousands separators ("120,000") and surrounding spaces.
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, eris.New("missing value")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, eris.Errorf("invalid number %q", s)
	}
	return v, nil
}

// checkHeader fails when a required column is absent.
func checkHeader(header []string) error {
	have := make(map[string]bool, len(header))
	for _, h := range header {
		have[normalizeHeader(h)] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Errorf("fetcher: missing required columns %s", strings.Join(missing, ", "))
	}
	return nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}
