package model

import (
	"github.com/shopspring/decimal"
)

// Conventional price field names emitted by the scrapers.
const (
	FieldPrice       = "price"
	FieldInputPrice  = "input_price"
	FieldOutputPrice = "output_price"
)

// Record represents one priced item scraped from an external source.
type Record struct {
	Provider string                     `json:"provider"`
	Item     string                     `json:"item"`
	Region   string                     `json:"region,omitempty"`
	Category string                     `json:"category,omitempty"`
	Prices   map[string]decimal.Decimal `json:"prices"`
	Metadata map[string]string          `json:"metadata,omitempty"`
}

// Key returns the duplicate-comparison identity of the record.
func (r Record) Key() string {
	return r.Provider + "|" + r.Item + "|" + r.Region
}

// Malformed reports whether the record is missing required identifying fields.
func (r Record) Malformed() bool {
	return r.Provider == "" || r.Item == ""
}

// RangeKey resolves the category used for range lookups. Specific items win
// over the broader category so a table can carry both "H100" and "gpu_rental".
func (r Record) RangeKey(table map[string]PriceRange) (PriceRange, bool) {
	if rng, ok := table[r.Item]; ok {
		return rng, true
	}
	if rng, ok := table[r.Category]; ok {
		return rng, true
	}
	return PriceRange{}, false
}

// Clone returns a deep copy so repaired values never mutate the input batch.
func (r Record) Clone() Record {
	out := r
	if r.Prices != nil {
		out.Prices = make(map[string]decimal.Decimal, len(r.Prices))
		for k, v := range r.Prices {
			out.Prices[k] = v
		}
	}
	if r.Metadata != nil {
		out.Metadata = make(map[string]string, len(r.Metadata))
		for k, v := range r.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// PriceRange bounds the plausible value for one item category.
type PriceRange struct {
	Floor   decimal.Decimal `json:"floor"`
	Ceiling decimal.Decimal `json:"ceiling"`
}

// SamePrices reports whether two records carry identical price fields.
func SamePrices(a, b Record) bool {
	if len(a.Prices) != len(b.Prices) {
		return false
	}
	for k, v := range a.Prices {
		other, ok := b.Prices[k]
		if !ok || !v.Equal(other) {
			return false
		}
	}
	return true
}
