package pharmacy

import (
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"
	"github.com/shopspring/decimal"
)

// minFuzzyPattern keeps one- and two-letter names from matching half the
// formulary.
const minFuzzyPattern = 3

// matchStock finds the stock item a prescribed drug name refers to. An exact
// case-insensitive match wins. Otherwise the prescribed name is fuzzy-matched
// against stock names, keeping only hits that share a word prefix, and
// finally each stock name is tried against the prescribed name so
// "Paracetamol" stock prices "Paracetamol 500mg tabs".
func matchStock(name string, stock []*StockItem) *StockItem {
	name = strings.TrimSpace(name)
	if name == "" || len(stock) == 0 {
		return nil
	}
	for _, s := range stock {
		if strings.EqualFold(s.Name, name) {
			return s
		}
	}

	names := make([]string, len(stock))
	for i, s := range stock {
		names[i] = s.Name
	}
	if len(name) >= minFuzzyPattern {
		for _, m := range fuzzy.Find(name, names) {
			if sharesWordPrefix(name, m.Str) {
				return stock[m.Index]
			}
		}
	}

	var best *StockItem
	bestScore := 0
	for i, s := range stock {
		if len(s.Name) < minFuzzyPattern {
			continue
		}
		m := fuzzy.Find(s.Name, []string{name})
		if len(m) == 0 || !sharesWordPrefix(s.Name, name) {
			continue
		}
		if best == nil || m[0].Score > bestScore {
			best, bestScore = stock[i], m[0].Score
		}
	}
	return best
}

// sharesWordPrefix reports whether some word of a starts some word of b, or
// the other way round. Fuzzy matching alone accepts any letters in order, so
// "Codeine" would otherwise match "Cold and flu medicine".
func sharesWordPrefix(a, b string) bool {
	wa, wb := words(a), words(b)
	for _, x := range wa {
		for _, y := range wb {
			short, long := x, y
			if len(short) > len(long) {
				short, long = long, short
			}
			if len(short) >= minFuzzyPattern && strings.HasPrefix(long, short) {
				return true
			}
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func priceOf(name string, stock []*StockItem) (decimal.Decimal, bool) {
	if s := matchStock(name, stock); s != nil {
		return s.UnitPrice, true
	}
	return decimal.Zero, false
}
