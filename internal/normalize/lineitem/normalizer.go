package lineitem

import (
	"strings"

	"pantry-assistant/internal/models"
)

// Normalize repairs one extracted item and tags everything that looks off.
// It never fails: problems are reported as warnings on the result. The
// returned item always carries a non-nil unit.
func Normalize(in Item) Result {
	item := in
	item.NameRaw = strings.TrimSpace(item.NameRaw)
	item.Name = strings.TrimSpace(item.Name)
	item.QuantityRaw = strings.TrimSpace(item.QuantityRaw)
	item.UnitRaw = strings.TrimSpace(item.UnitRaw)
	item.Notes = strings.TrimSpace(item.Notes)
	if item.Name == "" {
		item.Name = item.NameRaw
	}
	if item.Confidence < 0 {
		item.Confidence = 0
	}
	if item.Confidence > 1 {
		item.Confidence = 1
	}

	var warnings []string
	warn := func(tag string) { warnings = append(warnings, tag) }

	if item.Quantity != nil && *item.Quantity <= 0 {
		warn(WarnInvalidQuantity)
		item.Quantity = nil
	}

	trailingUnit := ""
	if item.Quantity == nil && item.QuantityRaw != "" {
		if q, rest, ok := ParseQuantity(item.QuantityRaw); ok && q > 0 {
			item.Quantity = ptrFloat(q)
			trailingUnit = rest
			warn(WarnQuantityParsedFromRaw)
		}
	}

	if item.Unit != nil {
		if _, ok := models.ParseUnit(string(*item.Unit)); !ok {
			if item.UnitRaw == "" {
				item.UnitRaw = string(*item.Unit)
			}
			item.Unit = nil
		}
	}
	if item.Unit == nil && item.UnitRaw == "" && trailingUnit != "" {
		item.UnitRaw = trailingUnit
	}
	if item.Unit == nil && item.UnitRaw != "" {
		if u, ok := MapUnit(item.UnitRaw); ok {
			item.Unit = ptrUnit(u)
		} else {
			warn(WarnUnitUnmapped)
		}
	}

	if item.Quantity != nil && item.Unit != nil && !Plausible(*item.Quantity, *item.Unit) {
		warn(WarnSuspiciousQuantity)
	}
	if item.Confidence < ConfidenceThreshold {
		warn(WarnLowConfidence)
	}
	if item.Quantity == nil {
		warn(WarnQuantityMissing)
	}
	if item.Unit == nil {
		item.Unit = ptrUnit(models.UnitPiece)
		warn(WarnUnitDefaulted)
	}

	return Result{
		Item:              item,
		Warnings:          warnings,
		NeedsConfirmation: len(warnings) > 0,
	}
}

// HasBlocking reports whether any of warnings is a blocking tag.
func HasBlocking(warnings []string) bool {
	for _, w := range warnings {
		if Blocking(w) {
			return true
		}
	}
	return false
}
