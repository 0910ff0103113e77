package lineitem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry-assistant/internal/models"
)

func unit(u models.Unit) *models.Unit { return &u }
func qty(v float64) *float64 { return &v }

func TestNormalize_QuantityParsedFromRaw(t *testing.T) {
	res := Normalize(Item{Name: "farine", QuantityRaw: "1,5", Unit: unit(models.UnitKilo), Confidence: 0.9})

	require.NotNil(t, res.Item.Quantity)
	assert.InDelta(t, 1.5, *res.Item.Quantity, 1e-9)
	assert.Contains(t, res.Warnings, WarnQuantityParsedFromRaw)
	assert.True(t, res.NeedsConfirmation)
}

func TestNormalize_SuspiciousQuantity(t *testing.T) {
	res := Normalize(Item{Name: "pommes", Quantity: qty(25), Unit: unit(models.UnitKilo), Confidence: 0.95})

	assert.Equal(t, []string{WarnSuspiciousQuantity}, res.Warnings)
	assert.True(t, res.NeedsConfirmation)
	assert.False(t, HasBlocking(res.Warnings))
}

func TestNormalize_LowConfidence(t *testing.T) {
	res := Normalize(Item{Name: "lait", Quantity: qty(1), Unit: unit(models.UnitLitre), Confidence: 0.4})

	assert.Equal(t, []string{WarnLowConfidence}, res.Warnings)
	assert.True(t, res.NeedsConfirmation)
}

func TestNormalize_CleanItem(t *testing.T) {
	res := Normalize(Item{Name: "pommes", Quantity: qty(2), Unit: unit(models.UnitKilo), Confidence: 0.95})

	assert.Empty(t, res.Warnings)
	assert.False(t, res.NeedsConfirmation)
	assert.Equal(t, models.UnitKilo, *res.Item.Unit)
}

func TestNormalize_UnitMappedFromRaw(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Unit
	}{
		{"kilos", models.UnitKilo},
		{"Grammes", models.UnitGram},
		{"litre", models.UnitLitre},
		{"pièces", models.UnitPiece},
		{"c. à soupe", models.UnitTbsp},
		{"cc", models.UnitTsp},
		{"pincée", models.UnitPinch},
		{"paquet", models.UnitPack},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			res := Normalize(Item{Name: "x", Quantity: qty(2), UnitRaw: tt.raw, Confidence: 1})
			require.NotNil(t, res.Item.Unit)
			assert.Equal(t, tt.want, *res.Item.Unit)
			assert.NotContains(t, res.Warnings, WarnUnitUnmapped)
		})
	}
}

func TestNormalize_UnitUnmappedBlocks(t *testing.T) {
	res := Normalize(Item{Name: "sel", Quantity: qty(1), UnitRaw: "poignée", Confidence: 1})

	assert.Contains(t, res.Warnings, WarnUnitUnmapped)
	assert.Contains(t, res.Warnings, WarnUnitDefaulted)
	assert.Equal(t, models.UnitPiece, *res.Item.Unit)
	assert.True(t, HasBlocking(res.Warnings))
}

func TestNormalize_NonCanonicalUnitMovesToRaw(t *testing.T) {
	res := Normalize(Item{Name: "beurre", Quantity: qty(250), Unit: unit("grammes"), Confidence: 1})

	assert.Equal(t, models.UnitGram, *res.Item.Unit)
	assert.Equal(t, "grammes", res.Item.UnitRaw)
	assert.Empty(t, res.Warnings)
}

func TestNormalize_InvalidQuantityReset(t *testing.T) {
	res := Normalize(Item{Name: "oeufs", Quantity: qty(-2), Unit: unit(models.UnitPiece), Confidence: 1})

	assert.Nil(t, res.Item.Quantity)
	assert.Contains(t, res.Warnings, WarnInvalidQuantity)
	assert.Contains(t, res.Warnings, WarnQuantityMissing)
	assert.True(t, HasBlocking(res.Warnings))
}

func TestNormalize_UnitDefaultedIsAdvisory(t *testing.T) {
	res := Normalize(Item{Name: "citron", Quantity: qty(3), Confidence: 1})

	assert.Equal(t, []string{WarnUnitDefaulted}, res.Warnings)
	assert.Equal(t, models.UnitPiece, *res.Item.Unit)
	assert.False(t, HasBlocking(res.Warnings))
	assert.True(t, res.NeedsConfirmation)
}

func TestNormalize_TrailingUnitInRawQuantity(t *testing.T) {
	res := Normalize(Item{Name: "beurre", QuantityRaw: "500g", Confidence: 1})

	require.NotNil(t, res.Item.Quantity)
	assert.InDelta(t, 500, *res.Item.Quantity, 1e-9)
	assert.Equal(t, models.UnitGram, *res.Item.Unit)
	assert.Equal(t, []string{WarnQuantityParsedFromRaw}, res.Warnings)
}

func TestNormalize_NameFallsBackToRaw(t *testing.T) {
	res := Normalize(Item{NameRaw: "  des tomates ", Quantity: qty(1), Unit: unit(models.UnitKilo), Confidence: 1})
	assert.Equal(t, "des tomates", res.Item.Name)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := Item{Name: "lait", QuantityRaw: "2", Confidence: 1}
	_ = Normalize(in)
	assert.Nil(t, in.Quantity)
	assert.Nil(t, in.Unit)
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"x3", 3, true},
		{"3x", 3, true},
		{"1,5", 1.5, true},
		{"1.5", 1.5, true},
		{"1/2", 0.5, true},
		{"une", 1, true},
		{"un", 1, true},
		{"one", 1, true},
		{"a", 1, true},
		{"beaucoup", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, _, ok := ParseQuantity(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}

func TestPlausible(t *testing.T) {
	assert.False(t, Plausible(25, models.UnitKilo))
	assert.False(t, Plausible(21, models.UnitLitre))
	assert.False(t, Plausible(0.5, models.UnitGram))
	assert.False(t, Plausible(0.5, models.UnitML))
	assert.False(t, Plausible(51, models.UnitPiece))
	assert.True(t, Plausible(2, models.UnitKilo))
	assert.True(t, Plausible(100, models.UnitPack))
}

func TestBlocking(t *testing.T) {
	assert.True(t, Blocking(WarnQuantityMissing))
	assert.True(t, Blocking(WarnUnitUnmapped))
	assert.False(t, Blocking(WarnLowConfidence))
	assert.False(t, Blocking(WarnUnitDefaulted))
	assert.False(t, Blocking(WarnSuspiciousQuantity))
}
