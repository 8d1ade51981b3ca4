package model

import "time"

// Tier names the resolution strategy that produced a location.
type Tier string

const (
	// TierPreset is a lookup of a configured road address.
	TierPreset Tier = "preset"
	// TierQualified is a place search prefixed with the neighborhood.
	TierQualified Tier = "qualified"
	// TierUnqualified is a place search on the bare name.
	TierUnqualified Tier = "unqualified"
	// TierNone marks a building no tier could place.
	TierNone Tier = "none"
)

// AllTiers returns the resolution tiers in the order they are attempted.
func AllTiers() []Tier {
	return []Tier{TierPreset, TierQualified, TierUnqualified}
}

// ResolvedLocation is the geocoded position of a building.
type ResolvedLocation struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// Deal is the output projection of a TransactionRecord.
type Deal struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Price  int64   `json:"price"`
	AreaM2 float64 `json:"area_m2"`
	Floor  int     `json:"floor"`
}

// EnrichedBuilding is one entry of the markers dataset.
type EnrichedBuilding struct {
	Name           string       `json:"name"`
	Address        string       `json:"address"`
	Lat            float64      `json:"lat"`
	Lng            float64      `json:"lng"`
	Areas          []float64    `json:"areas"`
	LatestAvgPrice int64        `json:"latest_avg"`
	PeriodStats    []PeriodStat `json:"stats"`
	Deals          []Deal       `json:"deals"`
}

// DealDateLayout formats Deal.Date.
const DealDateLayout = "2006-01-02"

// NewDeal projects a record into its output form.
func NewDeal(r TransactionRecord) Deal {
	return Deal{
		Date:   r.DealDate.Format(DealDateLayout),
		Price:  r.DealPrice,
		AreaM2: r.AreaM2,
		Floor:  r.Floor,
	}
}

// RunSummary reports the outcome of one enrichment run.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	Total           int           `json:"total"`
	Resolved        int           `json:"resolved"`
	Unresolved      int           `json:"unresolved"`
	UnresolvedNames []string      `json:"unresolved_names,omitempty"`
	ByTier          map[Tier]int  `json:"by_tier"`
	Requests        int           `json:"requests"`
	CacheHits       int           `json:"cache_hits"`
	Duration        time.Duration `json:"duration"`
}
