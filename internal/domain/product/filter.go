package product

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortMode selects the ordering of filter results.
type SortMode string

const (
	SortFeatured  SortMode = "featured"
	SortPriceAsc  SortMode = "price-asc"
	SortPriceDesc SortMode = "price-desc"
	SortNameAsc   SortMode = "name-asc"
	SortNameDesc  SortMode = "name-desc"
)

// ParseSortMode maps s to a known mode, falling back to SortFeatured.
func ParseSortMode(s string) SortMode {
	switch m := SortMode(strings.ToLower(strings.TrimSpace(s))); m {
	case SortPriceAsc, SortPriceDesc, SortNameAsc, SortNameDesc:
		return m
	default:
		return SortFeatured
	}
}

// CategoryAll disables category filtering.
const CategoryAll = "all"

// Criteria selects and orders products. The zero value matches everything
// in catalog order.
type Criteria struct {
	Query       string
	Category    string
	InStockOnly bool
	MinPrice    decimal.Decimal
	// MaxPrice is unbounded when not Valid.
	MaxPrice decimal.NullDecimal
	Sort     SortMode
}

// RawCriteria carries filter inputs as the presentation layer captured
// them, before any parsing.
type RawCriteria struct {
	Query       string
	Category    string
	InStockOnly string
	MinPrice    string
	MaxPrice    string
	Sort        string
}

// ParseCriteria converts raw inputs into Criteria. It never fails: a bound
// that is empty or not a number is treated as unbounded.
func ParseCriteria(raw RawCriteria) Criteria {
	c := Criteria{
		Query:       raw.Query,
		Category:    strings.TrimSpace(raw.Category),
		InStockOnly: parseFlag(raw.InStockOnly),
		Sort:        ParseSortMode(raw.Sort),
	}
	if v, ok := parseBound(raw.MinPrice); ok {
		c.MinPrice = v
	}
	if v, ok := parseBound(raw.MaxPrice); ok {
		c.MaxPrice = decimal.NewNullDecimal(v)
	}
	return c
}

func parseBound(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Decimal{}, false
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}

func parseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "on", "yes":
		return true
	default:
		return false
	}
}

// Filter returns the products matching c in the order c.Sort requests.
// The input slice is not modified. Sorting is stable, so ties keep their
// catalog order.
func Filter(products []Product, c Criteria) []Product {
	q := strings.ToLower(strings.TrimSpace(c.Query))
	anyCategory := c.Category == "" || c.Category == CategoryAll

	out := make([]Product, 0, len(products))
	for _, p := range products {
		if q != "" &&
			!strings.Contains(strings.ToLower(p.Name), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) {
			continue
		}
		if !anyCategory && p.Category != c.Category {
			continue
		}
		if c.InStockOnly && !p.InStock() {
			continue
		}
		if p.Price.LessThan(c.MinPrice) {
			continue
		}
		if c.MaxPrice.Valid && p.Price.GreaterThan(c.MaxPrice.Decimal) {
			continue
		}
		out = append(out, p)
	}

	switch c.Sort {
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return a.Price.Cmp(b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return b.Price.Cmp(a.Price) })
	case SortNameAsc:
		col := collate.New(language.Und)
		slices.SortStableFunc(out, func(a, b Product) int { return col.CompareString(a.Name, b.Name) })
	case SortNameDesc:
		col := collate.New(language.Und)
		slices.SortStableFunc(out, func(a, b Product) int { return col.CompareString(b.Name, a.Name) })
	}
	return out
}
