package allocation

import "errors"

var (
	// ErrEmptyInput is returned when no SKUs are supplied.
	ErrEmptyInput = errors.New("at least one SKU is required")
	// ErrInvalidBand is returned when the quantity band is empty or negative.
	ErrInvalidBand = errors.New("quantity band requires 0 <= min <= max")
)
