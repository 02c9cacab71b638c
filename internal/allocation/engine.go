// Package allocation decides how many units of each SKU go into a single
// carton under a channel's girth and weight rules and the quantity band.
package allocation

import (
	"fmt"
	"math"

	"github.com/eugenenazirov/boxplan/internal/carton"
	"github.com/eugenenazirov/boxplan/internal/channel"
	"github.com/eugenenazirov/boxplan/internal/sku"
)

// Engine allocates quantities. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	band Band
}

// New creates an Engine applying band to every SKU. An invalid band falls
// back to DefaultBand.
func New(band Band) *Engine {
	if band.Validate() != nil {
		band = DefaultBand()
	}
	return &Engine{band: band}
}

// Band returns the quantity policy in use.
func (e *Engine) Band() Band {
	return e.band
}

// Allocate processes skus in order and then rebalances the carton if the
// running weight still exceeds the channel cap.
func (e *Engine) Allocate(rule channel.Rule, box carton.Box, skus []sku.SKU) (Result, error) {
	if len(skus) == 0 {
		return Result{}, ErrEmptyInput
	}

	boxVolume := box.Volume()
	boxMaxWeight := rule.MaxWeight - box.TareWeight

	res := Result{Records: make([]Record, 0, len(skus))}
	for _, s := range skus {
		rec := e.allocateOne(rule, box, boxVolume, boxMaxWeight, res.TotalWeight, s)
		res.Records = append(res.Records, rec)
		if rec.Accepted() {
			res.TotalQuantity += rec.Quantity
			res.TotalWeight += float64(rec.Quantity) * rec.UnitWeight
		}
	}

	e.rebalance(&res, rule.MaxWeight, box.TareWeight)
	return res, nil
}

func (e *Engine) allocateOne(rule channel.Rule, box carton.Box, boxVolume, boxMaxWeight, runningWeight float64, s sku.SKU) Record {
	reject := func(reason Rejection, note string) Record {
		return Record{SKUID: s.ID, UnitWeight: s.UnitWeight, Note: note, Rejection: reason}
	}

	if carton.Girth(s.Length, s.Width, s.Height) > rule.MaxCircumference {
		return reject(RejectGirth, NoteGirth)
	}
	if s.Length > box.Length || s.Width > box.Width || s.Height > box.Height {
		return reject(RejectBoxFit, NoteBoxFit)
	}

	volume := s.Volume()
	if volume > boxVolume || s.UnitWeight > boxMaxWeight {
		return reject(RejectCapacity, NoteCapacity)
	}

	maxByVolume := math.Floor(boxVolume / volume)
	maxByWeight := math.Floor(boxMaxWeight / s.UnitWeight)
	candidate := e.band.clamp(e.band.capCount(math.Min(maxByVolume, maxByWeight)))

	if runningWeight+float64(candidate)*s.UnitWeight+box.TareWeight > rule.MaxWeight {
		// The recomputed count is below the overflowing candidate, so it
		// stays within the band maximum.
		candidate = e.band.capCount(math.Floor((rule.MaxWeight - runningWeight - box.TareWeight) / s.UnitWeight))
		if candidate < e.band.Min {
			return reject(RejectMinimum, fmt.Sprintf("cannot reach minimum quantity of %d without overweight", e.band.Min))
		}
	}

	return Record{SKUID: s.ID, Quantity: candidate, UnitWeight: s.UnitWeight}
}

// rebalance removes one unit at a time from every record above the band
// minimum, front to back, until the gross weight fits within maxWeight or no
// record can give up more units. The loop is bounded by the number of units
// available for removal.
func (e *Engine) rebalance(res *Result, maxWeight, tare float64) {
	overweight := func() bool { return res.TotalWeight+tare > maxWeight }

	budget := 0
	for _, rec := range res.Records {
		if rec.Accepted() && rec.Quantity > e.band.Min {
			budget += rec.Quantity - e.band.Min
		}
	}

	for budget > 0 && overweight() {
		progressed := false
		for i := range res.Records {
			if !overweight() {
				return
			}
			rec := &res.Records[i]
			if !rec.Accepted() || rec.Quantity <= e.band.Min {
				continue
			}
			rec.Quantity--
			res.TotalWeight -= rec.UnitWeight
			res.TotalQuantity--
			budget--
			progressed = true
		}
		if !progressed {
			return
		}
	}
}
