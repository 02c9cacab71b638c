// Package carton holds the carton geometry shared by the allocation and cost
// stages: box dimensions, volume and girth.
package carton

import (
	"errors"
	"math"
	"sort"
)

// ErrInvalidBox is returned when a box has non-positive dimensions or a negative tare weight.
var ErrInvalidBox = errors.New("box dimensions must be positive and tare weight must be non-negative")

// Box describes the outer carton. Dimensions are in centimetres, tare in kilograms.
type Box struct {
	Length     float64 `json:"length" yaml:"length"`
	Width      float64 `json:"width" yaml:"width"`
	Height     float64 `json:"height" yaml:"height"`
	TareWeight float64 `json:"tareWeight" yaml:"tare_weight"`
}

// Validate reports ErrInvalidBox when the box cannot be used for planning.
func (b Box) Validate() error {
	for _, d := range []float64{b.Length, b.Width, b.Height} {
		if !(d > 0) || math.IsInf(d, 0) {
			return ErrInvalidBox
		}
	}
	if !(b.TareWeight >= 0) || math.IsInf(b.TareWeight, 0) {
		return ErrInvalidBox
	}
	return nil
}

// Volume returns the inner volume in cubic centimetres.
func (b Box) Volume() float64 {
	return b.Length * b.Width * b.Height
}

// Girth returns the box girth using Girth.
func (b Box) Girth() float64 {
	return Girth(b.Length, b.Width, b.Height)
}

// Girth computes 2*(a+b)+c where a <= b <= c are the sorted dimensions.
// The result does not depend on which axis is labelled length.
func Girth(x, y, z float64) float64 {
	dims := []float64{x, y, z}
	sort.Float64s(dims)
	return 2*(dims[0]+dims[1]) + dims[2]
}
