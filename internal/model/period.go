package model

import "fmt"

// PeriodKey identifies a calendar month.
type PeriodKey struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// Less orders periods by year, then month.
func (k PeriodKey) Less(other PeriodKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, k.Month)
}

// PeriodStat summarizes the deals of one period.
//
// Per-building series keep AvgPrice as a float; the neighborhood report
// rounds every price figure to an integer. MedianPrice and AvgPricePerArea
// are nil when the producing variant does not compute them.
type PeriodStat struct {
	PeriodKey
	AvgPrice        float64  `json:"avg_price"`
	MedianPrice     *float64 `json:"median_price,omitempty"`
	AvgPricePerArea *float64 `json:"avg_price_per_m2,omitempty"`
	DealCount       int      `json:"deal_count"`
}

// String overrides the promoted PeriodKey.String so the whole stat prints.
func (s PeriodStat) String() string {
	out := fmt.Sprintf("%s avg=%.2f deals=%d", s.PeriodKey, s.AvgPrice, s.DealCount)
	if s.MedianPrice != nil {
		out += fmt.Sprintf(" median=%.2f", *s.MedianPrice)
	}
	if s.AvgPricePerArea != nil {
		out += fmt.Sprintf(" per_m2=%.2f", *s.AvgPricePerArea)
	}
	return out
}
