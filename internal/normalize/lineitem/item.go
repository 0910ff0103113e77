// Package lineitem repairs and validates one extracted quantity+unit item.
package lineitem

import (
	"pantry-assistant/internal/models"
)

// Item is one extracted line: a product mention with an optional quantity
// and unit, in both raw and parsed form.
type Item struct {
	NameRaw     string       `json:"name_raw"`
	Name        string       `json:"name"`
	Quantity    *float64     `json:"quantity"`
	QuantityRaw string       `json:"quantity_raw"`
	Unit        *models.Unit `json:"unit"`
	UnitRaw     string       `json:"unit_raw"`
	Notes       string       `json:"notes"`
	Confidence  float64      `json:"confidence"`
}

// Warning tags appended by Normalize.
const (
	WarnQuantityParsedFromRaw = "quantity_parsed_from_raw"
	WarnInvalidQuantity       = "invalid_quantity"
	WarnQuantityMissing       = "quantity_missing"
	WarnUnitUnmapped          = "unit_unmapped"
	WarnUnitDefaulted         = "unit_defaulted"
	WarnSuspiciousQuantity    = "suspicious_quantity_for_unit"
	WarnLowConfidence         = "low_confidence"
)

// ConfidenceThreshold is the confidence under which an item is flagged.
const ConfidenceThreshold = 0.75

// Blocking reports whether a warning tag must be resolved through a clarify
// question before the item can be applied. Every other tag is advisory and
// only shown in the confirmation summary.
func Blocking(tag string) bool {
	switch tag {
	case WarnQuantityMissing, WarnUnitUnmapped:
		return true
	}
	return false
}

// Result is the outcome of normalizing one item.
type Result struct {
	Item              Item     `json:"item"`
	Warnings          []string `json:"warnings"`
	NeedsConfirmation bool     `json:"needs_confirmation"`
}

func ptrFloat(v float64) *float64 { return &v }

func ptrUnit(u models.Unit) *models.Unit { return &u }
