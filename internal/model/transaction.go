// Package model defines the record and output types shared by the markers pipeline.
package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// TransactionRecord is a single sale from the transaction table.
type TransactionRecord struct {
	BuildingName string    `json:"name"`
	DealDate     time.Time `json:"deal_date"`
	DealPrice    int64     `json:"deal_price"` // currency units as published (만원)
	AreaM2       float64   `json:"area_m2"`
	Floor        int       `json:"floor"`
}

// Validate checks the record invariants.
func (r TransactionRecord) Validate() error {
	if r.BuildingName == "" {
		return eris.New("model: transaction has empty building name")
	}
	if r.DealDate.IsZero() {
		return eris.Errorf("model: transaction %q has no deal date", r.BuildingName)
	}
	if r.DealPrice <= 0 {
		return eris.Errorf("model: transaction %q has non-positive price %d", r.BuildingName, r.DealPrice)
	}
	if r.AreaM2 <= 0 {
		return eris.Errorf("model: transaction %q has non-positive area %g", r.BuildingName, r.AreaM2)
	}
	return nil
}

// Period returns the (year, month) bucket of the deal date.
func (r TransactionRecord) Period() PeriodKey {
	return PeriodKey{Year: r.DealDate.Year(), Month: int(r.DealDate.Month())}
}

// PricePerArea returns the deal price divided by the exclusive area.
func (r TransactionRecord) PricePerArea() float64 {
	return float64(r.DealPrice) / r.AreaM2
}

// BuildingGroup holds every record sharing a building name.
type BuildingGroup struct {
	Name    string
	Records []TransactionRecord
}
