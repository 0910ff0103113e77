package lineitem

import (
	"regexp"
	"strconv"
	"strings"

	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
)

// unitAliases maps canonical keys of raw unit spellings to canonical units.
var unitAliases = map[string]models.Unit{
	"kg": models.UnitKilo, "kgs": models.UnitKilo, "kilo": models.UnitKilo, "kilos": models.UnitKilo,
	"kilogramme": models.UnitKilo, "kilogrammes": models.UnitKilo, "kilogram": models.UnitKilo, "kilograms": models.UnitKilo,

	"g": models.UnitGram, "gr": models.UnitGram, "grs": models.UnitGram,
	"gramme": models.UnitGram, "grammes": models.UnitGram, "gram": models.UnitGram, "grams": models.UnitGram,

	"l": models.UnitLitre, "lt": models.UnitLitre, "litre": models.UnitLitre, "litres": models.UnitLitre,
	"liter": models.UnitLitre, "liters": models.UnitLitre,

	"ml": models.UnitML, "millilitre": models.UnitML, "millilitres": models.UnitML,
	"milliliter": models.UnitML, "milliliters": models.UnitML,

	"cl": models.UnitCL, "centilitre": models.UnitCL, "centilitres": models.UnitCL,

	"piece": models.UnitPiece, "pieces": models.UnitPiece, "pc": models.UnitPiece, "pcs": models.UnitPiece,
	"unite": models.UnitPiece, "unites": models.UnitPiece, "unit": models.UnitPiece, "units": models.UnitPiece,
	"x": models.UnitPiece,

	"pack": models.UnitPack, "packs": models.UnitPack, "paquet": models.UnitPack, "paquets": models.UnitPack,
	"sachet": models.UnitPack, "sachets": models.UnitPack, "boite": models.UnitPack, "boites": models.UnitPack,

	"tbsp": models.UnitTbsp, "cs": models.UnitTbsp, "cas": models.UnitTbsp, "c-a-s": models.UnitTbsp,
	"c-a-soupe": models.UnitTbsp, "cuillere-a-soupe": models.UnitTbsp, "cuilleres-a-soupe": models.UnitTbsp,
	"tablespoon": models.UnitTbsp, "tablespoons": models.UnitTbsp,

	"tsp": models.UnitTsp, "cc": models.UnitTsp, "cac": models.UnitTsp, "c-a-c": models.UnitTsp,
	"c-a-cafe": models.UnitTsp, "cuillere-a-cafe": models.UnitTsp, "cuilleres-a-cafe": models.UnitTsp,
	"teaspoon": models.UnitTsp, "teaspoons": models.UnitTsp,

	"pincee": models.UnitPinch, "pincees": models.UnitPinch, "pinch": models.UnitPinch, "pinches": models.UnitPinch,
}

// MapUnit maps a raw unit spelling ("Kilos", "c. à soupe") to the canonical
// unit set.
func MapUnit(raw string) (models.Unit, bool) {
	key := namekey.ToKey(raw)
	if key == "" {
		return "", false
	}
	if u, ok := models.ParseUnit(key); ok {
		return u, true
	}
	u, ok := unitAliases[key]
	return u, ok
}

var (
	quantityPattern = regexp.MustCompile(`^x?\s*(\d+(?:[.,]\d+)?)\s*(?:x\b)?\s*(.*)$`)
	fractionPattern = regexp.MustCompile(`^(\d+)\s*/\s*(\d+)\s*(.*)$`)
)

var wordQuantities = map[string]float64{
	"un": 1, "une": 1, "one": 1, "a": 1, "an": 1,
	"deux": 2, "two": 2, "trois": 3, "three": 3,
	"demi": 0.5, "half": 0.5, "douzaine": 12, "dozen": 12,
}

// ParseQuantity extracts a number from a raw quantity string. It accepts
// "x3", "1,5", "1.5", "1/2" and a few number words ("un", "une"). The second
// return value is any trailing text, typically a unit ("500g" -> 500, "g").
func ParseQuantity(raw string) (float64, string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, "", false
	}

	if m := fractionPattern.FindStringSubmatch(s); m != nil {
		num, err1 := strconv.ParseFloat(m[1], 64)
		den, err2 := strconv.ParseFloat(m[2], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den, strings.TrimSpace(m[3]), true
		}
	}

	if m := quantityPattern.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err == nil {
			return v, strings.TrimSpace(m[2]), true
		}
	}

	fields := strings.Fields(s)
	if v, ok := wordQuantities[fields[0]]; ok {
		return v, strings.TrimSpace(strings.TrimPrefix(s, fields[0])), true
	}
	return 0, "", false
}

// Plausible reports whether quantity is believable for unit.
func Plausible(quantity float64, unit models.Unit) bool {
	switch unit {
	case models.UnitKilo, models.UnitLitre:
		return quantity <= 20
	case models.UnitGram, models.UnitML:
		return quantity >= 1
	case models.UnitPiece:
		return quantity <= 50
	}
	return true
}
