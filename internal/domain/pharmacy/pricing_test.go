package pharmacy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func stockOf(names ...string) []*StockItem {
	out := make([]*StockItem, len(names))
	for i, n := range names {
		out[i] = &StockItem{Name: n, UnitPrice: decimal.NewFromInt(int64(100 * (i + 1)))}
	}
	return out
}

func TestMatchStock(t *testing.T) {
	stock := stockOf("Paracetamol", "Amoxicillin 500mg", "Artemether/Lumefantrine", "ORS")

	tests := []struct {
		name string
		want string
	}{
		{"paracetamol", "Paracetamol"},
		{"  AMOXICILLIN 500MG ", "Amoxicillin 500mg"},
		{"amoxicillin", "Amoxicillin 500mg"},
		{"Paracetamol 500mg tablets", "Paracetamol"},
		{"artemether", "Artemether/Lumefantrine"},
		{"ors", "ORS"},
		{"Ciprofloxacin", ""},
		{"", ""},
		{"xy", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchStock(tt.name, stock)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want, got.Name)
			}
		})
	}
}

func TestMatchStock_ExactBeatsFuzzy(t *testing.T) {
	stock := stockOf("Vitamin C Syrup", "Vitamin C")
	assert.Equal(t, "Vitamin C", matchStock("vitamin c", stock).Name)
}

func TestMatchStock_UnrelatedNameFallsThrough(t *testing.T) {
	stock := stockOf("Cold and flu medicine", "Multivitamin")
	assert.Nil(t, matchStock("Codeine", stock))
	assert.Nil(t, matchStock("Metronidazole", stock))

	p, ok := priceOf("Codeine", stock)
	assert.False(t, ok)
	assert.True(t, p.IsZero())

	assert.Equal(t, "Cold and flu medicine", matchStock("cold flu", stock).Name)
}

func TestSharesWordPrefix(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"Artemether", "Artemether/Lumefantrine", true},
		{"Paracetamol 500mg tablets", "Paracetamol", true},
		{"amox", "Amoxicillin 500mg", true},
		{"Codeine", "Cold and flu medicine", false},
		{"IV", "IV fluids", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sharesWordPrefix(tt.a, tt.b), "%s / %s", tt.a, tt.b)
	}
}

func TestPriceOf(t *testing.T) {
	stock := stockOf("Paracetamol")
	p, ok := priceOf("Paracetamol", stock)
	assert.True(t, ok)
	assert.True(t, decimal.NewFromInt(100).Equal(p))

	p, ok = priceOf("Insulin", stock)
	assert.False(t, ok)
	assert.True(t, p.IsZero())
}
