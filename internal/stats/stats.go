// Package stats groups transactions by building and month and computes price
// summaries for the markers and neighborhood report outputs.
package stats

import (
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/hannam-lab/markers-cli/internal/model"
)

// GroupByBuilding splits records into per-building groups ordered by name.
// Records inside a group keep their input order.
func GroupByBuilding(records []model.TransactionRecord) []model.BuildingGroup {
	idx := make(map[string]int)
	var groups []model.BuildingGroup
	for _, r := range records {
		i, ok := idx[r.BuildingName]
		if !ok {
			i = len(groups)
			idx[r.BuildingName] = i
			groups = append(groups, model.BuildingGroup{Name: r.BuildingName})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	sort.Slice(groups, func(a, b int) bool { return groups[a].Name < groups[b].Name })
	return groups
}

// BuildingSeries computes the monthly series for one building. Prices stay
// unrounded floats since the map panel plots them directly.
func BuildingSeries(records []model.TransactionRecord) []model.PeriodStat {
	periods, buckets := byPeriod(records)
	out := make([]model.PeriodStat, 0, len(periods))
	for _, k := range periods {
		prices := priceData(buckets[k])
		median := medianOf(prices)
		out = append(out, model.PeriodStat{
			PeriodKey:   k,
			AvgPrice:    meanOf(prices),
			MedianPrice: &median,
			DealCount:   len(buckets[k]),
		})
	}
	return out
}

// Report computes the neighborhood-wide monthly report. Average, median and
// per-m² average are rounded half-to-even to whole currency units.
func Report(records []model.TransactionRecord) []model.PeriodStat {
	periods, buckets := byPeriod(records)
	out := make([]model.PeriodStat, 0, len(periods))
	for _, k := range periods {
		bucket := buckets[k]
		prices := priceData(bucket)
		perArea := make(stats.Float64Data, len(bucket))
		for i, r := range bucket {
			perArea[i] = r.PricePerArea()
		}

		median := roundBank(medianOf(prices))
		avgPerArea := roundBank(meanOf(perArea))
		out = append(out, model.PeriodStat{
			PeriodKey:       k,
			AvgPrice:        roundBank(meanOf(prices)),
			MedianPrice:     &median,
			AvgPricePerArea: &avgPerArea,
			DealCount:       len(bucket),
		})
	}
	return out
}

// LatestAvgPrice is the mean price over all of a building's deals, truncated
// toward zero.
func LatestAvgPrice(records []model.TransactionRecord) int64 {
	if len(records) == 0 {
		return 0
	}
	return int64(meanOf(priceData(records)))
}

// DistinctAreas returns the distinct exclusive areas in ascending order.
func DistinctAreas(records []model.TransactionRecord) []float64 {
	seen := make(map[float64]bool, len(records))
	var areas []float64
	for _, r := range records {
		if seen[r.AreaM2] {
			continue
		}
		seen[r.AreaM2] = true
		areas = append(areas, r.AreaM2)
	}
	sort.Float64s(areas)
	return areas
}

// SortedDeals returns the deals ordered by date, then price, then floor.
func SortedDeals(records []model.TransactionRecord) []model.Deal {
	sorted := make([]model.TransactionRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.DealDate.Equal(b.DealDate) {
			return a.DealDate.Before(b.DealDate)
		}
		if a.DealPrice != b.DealPrice {
			return a.DealPrice < b.DealPrice
		}
		return a.Floor < b.Floor
	})

	deals := make([]model.Deal, len(sorted))
	for i, r := range sorted {
		deals[i] = model.NewDeal(r)
	}
	return deals
}

// byPeriod buckets records by month and returns the keys in ascending order.
func byPeriod(records []model.TransactionRecord) ([]model.PeriodKey, map[model.PeriodKey][]model.TransactionRecord) {
	buckets := make(map[model.PeriodKey][]model.TransactionRecord)
	for _, r := range records {
		k := r.Period()
		buckets[k] = append(buckets[k], r)
	}
	keys := make([]model.PeriodKey, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys, buckets
}

func priceData(records []model.TransactionRecord) stats.Float64Data {
	data := make(stats.Float64Data, len(records))
	for i, r := range records {
		data[i] = float64(r.DealPrice)
	}
	return data
}

// meanOf and medianOf are only called on non-empty buckets; the library's
// only error is for empty input.
func meanOf(data stats.Float64Data) float64 {
	m, _ := stats.Mean(data)
	return m
}

func medianOf(data stats.Float64Data) float64 {
	m, _ := stats.Median(data)
	return m
}

func roundBank(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).RoundBank(0).Float64()
	return f
}
