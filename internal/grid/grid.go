// Package grid implements the sheet geometry engine: band insertion and
// deletion math, sparse map renumbering, and the capacity and visibility
// invariants enforced on every mutation.
package grid

import (
	"errors"
	"math"
)

const (
	MaxRows = 65536
	MaxCols = 256

	MinCellSizePx = 20
	MinFontSize   = 8
	MaxFontSize   = 48

	DefaultRowHeight = 25
	DefaultColWidth  = 100

	DefaultRows = 50
	DefaultCols = 26

	// Width of the protected leading column band on CS sheets:
	// link, quantity, and the five derived price columns.
	CSProtectedCols = 7
)

// Axis selects rows or columns for a band operation.
type Axis string

const (
	AxisRow Axis = "row"
	AxisCol Axis = "col"
)

var (
	ErrRangeInvalid     = errors.New("band range invalid")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrExtentExhausted  = errors.New("cannot delete all rows or columns")
	ErrLastVisible      = errors.New("cannot hide the last visible index")
	ErrSizeTooSmall     = errors.New("size below minimum")
	ErrFontSizeRange    = errors.New("font size out of range")
)

// Ceiling returns the hard extent ceiling for the axis.
func Ceiling(axis Axis) int {
	if axis == AxisCol {
		return MaxCols
	}
	return MaxRows
}

// ValidateInsert checks an insertBand request against the current extent.
// start may equal extent (append at the end).
func ValidateInsert(axis Axis, extent, start, count int) error {
	if count < 1 || start < 0 || start > extent {
		return ErrRangeInvalid
	}
	if extent+count > Ceiling(axis) {
		return ErrCapacityExceeded
	}
	return nil
}

// ValidateDelete checks a deleteBand request. The band must lie entirely
// within the extent and must leave at least one index behind.
func ValidateDelete(extent, start, count int) error {
	if count < 1 || start < 0 || start+count > extent {
		return ErrRangeInvalid
	}
	if extent-count < 1 {
		return ErrExtentExhausted
	}
	return nil
}

// ShiftMapInsert renumbers a sparse geometry map for a band insertion:
// every key >= start moves up by count, keys below start are kept.
// Inserted indices stay absent, which means the default value.
func ShiftMapInsert[V any](m map[int]V, start, count int) map[int]V {
	out := make(map[int]V, len(m))
	for k, v := range m {
		if k >= start {
			out[k+count] = v
		} else {
			out[k] = v
		}
	}
	return out
}

// ShiftMapDelete renumbers a sparse geometry map for a band deletion:
// keys inside [start, start+count) are dropped, keys at or above the
// range end move down by count.
func ShiftMapDelete[V any](m map[int]V, start, count int) map[int]V {
	out := make(map[int]V, len(m))
	for k, v := range m {
		switch {
		case k < start:
			out[k] = v
		case k >= start+count:
			out[k-count] = v
		}
	}
	return out
}

// VisibilityItem is one entry of a batch hidden-flag overwrite.
type VisibilityItem struct {
	Index  int
	Hidden bool
}

// ApplyVisibilityBatch applies a batch of hidden-flag overwrites to a copy
// of the sparse map and verifies that at least one index in [0, extent)
// remains visible. The original map is never modified; on violation the
// batch is rejected wholesale.
func ApplyVisibilityBatch(hidden map[int]bool, extent int, items []VisibilityItem) (map[int]bool, error) {
	out := make(map[int]bool, len(hidden)+len(items))
	for k, v := range hidden {
		out[k] = v
	}
	for _, item := range items {
		if item.Index < 0 || item.Index >= extent {
			return nil, ErrRangeInvalid
		}
		if item.Hidden {
			out[item.Index] = true
		} else {
			delete(out, item.Index)
		}
	}
	for i := 0; i < extent; i++ {
		if !out[i] {
			return out, nil
		}
	}
	return nil, ErrLastVisible
}

// ValidateSize checks a resize request against the pixel floor.
func ValidateSize(extent, index, size int) error {
	if index < 0 || index >= extent {
		return ErrRangeInvalid
	}
	if size < MinCellSizePx {
		return ErrSizeTooSmall
	}
	return nil
}

// ValidateFontSize checks the style-edit font size bounds.
func ValidateFontSize(size int) error {
	if size < MinFontSize || size > MaxFontSize {
		return ErrFontSizeRange
	}
	return nil
}

// RequiredRowHeight returns the row height a font size needs: the 1.5
// line-height in whole pixels.
func RequiredRowHeight(fontSize int) int {
	return int(math.Ceil(float64(fontSize) * 1.5))
}

// IsProtected reports whether a cell at the given column carries the
// protected flag. Only CS sheets protect anything.
func IsProtected(csSheet bool, col int) bool {
	return csSheet && col < CSProtectedCols
}

// SizeAt reads a sparse size map with its default.
func SizeAt(m map[int]int, index, def int) int {
	if v, ok := m[index]; ok {
		return v
	}
	return def
}
