package calculator

import (
	"errors"

	"github.com/eugenenazirov/boxplan/internal/allocation"
	"github.com/eugenenazirov/boxplan/internal/carton"
	"github.com/eugenenazirov/boxplan/internal/channel"
)

var (
	// ErrEmptyInput is returned when the request carries no SKU rows.
	ErrEmptyInput = allocation.ErrEmptyInput
	// ErrInvalidChannel is returned when the channel name is not in the rule table.
	ErrInvalidChannel = channel.ErrInvalidChannel
	// ErrInvalidBox is returned when the carton has non-positive dimensions or negative tare.
	ErrInvalidBox = carton.ErrInvalidBox
	// ErrInvalidPrice is returned when the price per kilogram is negative or not finite.
	ErrInvalidPrice = errors.New("price per kg must be a finite non-negative number")
)
