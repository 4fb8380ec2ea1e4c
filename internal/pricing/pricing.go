// Package pricing implements the CS-sheet price cascade: resolving a market
// item name from a link cell, quantity parsing, and the derived price
// columns written back on every link or quantity edit.
package pricing

import (
	"errors"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Protected-band column layout on CS sheets.
const (
	ColLink = iota
	ColQuantity
	ColUnitLatest
	ColExtendedLatest
	ColUnitReal
	ColExtendedReal
	ColBuyOrder
)

// DerivedCols lists the columns the cascade overwrites.
var DerivedCols = []int{ColUnitLatest, ColExtendedLatest, ColUnitReal, ColExtendedReal, ColBuyOrder}

var ErrNegativeQuantity = errors.New("quantity must not be negative")

// ItemNameFromLink extracts the market item name from the last path segment
// of a link. A value without any path separator is taken as the name itself.
// Returns false for a blank link.
func ItemNameFromLink(link string) (string, bool) {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return "", false
	}
	if parsed, err := url.Parse(trimmed); err == nil && parsed.Path != "" {
		trimmed = parsed.Path
	}
	trimmed = strings.TrimRight(trimmed, "/")
	segment := trimmed
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		segment = trimmed[idx+1:]
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return "", false
	}
	return segment, true
}

// ParseQuantity interprets a quantity cell. Blank or non-numeric content
// defaults to 1; negative quantities are rejected before any lookup.
func ParseQuantity(content string) (float64, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return 1, nil
	}
	qty, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 1, nil
	}
	if qty < 0 {
		return 0, ErrNegativeQuantity
	}
	return qty, nil
}

// Quote is one row of the market price mirror.
type Quote struct {
	PriceLatest   float64
	PriceReal     float64
	BuyOrderPrice float64
}

// Derived holds the five values the cascade writes into columns 2-6.
type Derived struct {
	UnitLatest     float64
	ExtendedLatest float64
	UnitReal       float64
	ExtendedReal   float64
	BuyOrder       float64
}

// Compute derives the dependent cell values for a quote and quantity.
func Compute(q Quote, quantity float64) Derived {
	return Derived{
		UnitLatest:     q.PriceLatest,
		ExtendedLatest: q.PriceLatest * quantity,
		UnitReal:       q.PriceReal,
		ExtendedReal:   q.PriceReal * quantity,
		BuyOrder:       q.BuyOrderPrice,
	}
}

// Contents returns the derived values as cell content strings, keyed by
// column index, in the protected-band layout.
func (d Derived) Contents() map[int]string {
	return map[int]string{
		ColUnitLatest:     FormatPrice(d.UnitLatest),
		ColExtendedLatest: FormatPrice(d.ExtendedLatest),
		ColUnitReal:       FormatPrice(d.UnitReal),
		ColExtendedReal:   FormatPrice(d.ExtendedReal),
		ColBuyOrder:       FormatPrice(d.BuyOrder),
	}
}

// FormatPrice renders a price rounded to cents with trailing zeros trimmed.
func FormatPrice(v float64) string {
	rounded := math.Round(v*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
