// Package sku normalises and validates raw SKU rows. Validation is
// all-or-nothing: one bad row rejects the whole batch.
package sku

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FieldCount is the number of cells in a row: id, length, width, height, weight.
const FieldCount = 5

// Field names used in validation errors.
const (
	FieldID     = "id"
	FieldLength = "length"
	FieldWidth  = "width"
	FieldHeight = "height"
	FieldWeight = "weight"
	FieldRow    = "row"
)

var numericFields = [...]string{FieldLength, FieldWidth, FieldHeight, FieldWeight}

// Row is one raw input row as typed by a user or read from a sheet.
type Row []string

// SKU is a validated product with dimensions in centimetres and weight in kilograms.
type SKU struct {
	ID         string  `json:"id"`
	Length     float64 `json:"length"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	UnitWeight float64 `json:"unitWeight"`
}

// Volume returns the SKU volume in cubic centimetres.
func (s SKU) Volume() float64 {
	return s.Length * s.Width * s.Height
}

// ValidationError describes why a row was rejected.
type ValidationError struct {
	SKUID  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.SKUID == "" {
		return fmt.Sprintf("invalid SKU row: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid SKU %q: %s %s", e.SKUID, e.Field, e.Reason)
}

// Validate converts a raw row into a SKU. Numeric cells are read as their
// absolute value and must then be strictly positive and finite.
func Validate(row Row) (SKU, error) {
	id := ""
	if len(row) > 0 {
		id = strings.TrimSpace(row[0])
	}

	if populated(row) != FieldCount || len(row) != FieldCount {
		return SKU{}, &ValidationError{
			SKUID:  id,
			Field:  FieldRow,
			Reason: fmt.Sprintf("must have exactly %d populated fields", FieldCount),
		}
	}

	var values [len(numericFields)]float64
	for i, field := range numericFields {
		raw := strings.TrimSpace(row[i+1])
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return SKU{}, &ValidationError{SKUID: id, Field: field, Reason: fmt.Sprintf("%q is not a number", raw)}
		}
		v = math.Abs(v)
		if !(v > 0) || math.IsInf(v, 0) {
			return SKU{}, &ValidationError{SKUID: id, Field: field, Reason: "must be a positive number"}
		}
		values[i] = v
	}

	return SKU{
		ID:         id,
		Length:     values[0],
		Width:      values[1],
		Height:     values[2],
		UnitWeight: values[3],
	}, nil
}

// ValidateAll validates rows in order and stops at the first failure, in
// which case no SKUs are returned.
func ValidateAll(rows []Row) ([]SKU, error) {
	out := make([]SKU, 0, len(rows))
	for i, row := range rows {
		s, err := Validate(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// IsBlank reports whether every cell of the row is empty.
func IsBlank(row Row) bool {
	return populated(row) == 0
}

func populated(row Row) int {
	n := 0
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			n++
		}
	}
	return n
}
