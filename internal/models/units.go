package models

// Unit is the canonical unit set accepted for quantities.
type Unit string

const (
	UnitPiece Unit = "piece"
	UnitGram  Unit = "g"
	UnitKilo  Unit = "kg"
	UnitML    Unit = "ml"
	UnitCL    Unit = "cl"
	UnitLitre Unit = "l"
	UnitPack  Unit = "pack"
	UnitTbsp  Unit = "tbsp"
	UnitTsp   Unit = "tsp"
	UnitPinch Unit = "pinch"
)

var Units = []Unit{
	UnitPiece, UnitGram, UnitKilo, UnitML, UnitCL, UnitLitre,
	UnitPack, UnitTbsp, UnitTsp, UnitPinch,
}

// UnitNames returns Units as plain strings, in order.
func UnitNames() []string {
	out := make([]string, len(Units))
	for i, u := range Units {
		out[i] = string(u)
	}
	return out
}

// ParseUnit returns the canonical unit for s when s is exactly one of Units.
func ParseUnit(s string) (Unit, bool) {
	for _, u := range Units {
		if string(u) == s {
			return u, true
		}
	}
	return "", false
}

// unitBase maps measurable units to their family and the factor to the
// family's base unit (g for mass, ml for volume).
var unitBase = map[Unit]struct {
	family string
	factor float64
}{
	UnitGram:  {"mass", 1},
	UnitKilo:  {"mass", 1000},
	UnitML:    {"volume", 1},
	UnitCL:    {"volume", 10},
	UnitLitre: {"volume", 1000},
}

// Convertible reports whether quantities in a and b can be converted into
// one another.
func Convertible(a, b Unit) bool {
	if a == b {
		return true
	}
	ba, okA := unitBase[a]
	bb, okB := unitBase[b]
	return okA && okB && ba.family == bb.family
}

// Convert expresses q, given in from, in to. It fails when the units belong
// to different families.
func Convert(q float64, from, to Unit) (float64, bool) {
	if from == to {
		return q, true
	}
	if !Convertible(from, to) {
		return 0, false
	}
	return q * unitBase[from].factor / unitBase[to].factor, true
}
