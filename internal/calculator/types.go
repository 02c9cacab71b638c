package calculator

import (
	"github.com/eugenenazirov/boxplan/internal/allocation"
	"github.com/eugenenazirov/boxplan/internal/carton"
	"github.com/eugenenazirov/boxplan/internal/channel"
	"github.com/eugenenazirov/boxplan/internal/cost"
	"github.com/eugenenazirov/boxplan/internal/sku"
)

// Request is the input of a single planning run.
type Request struct {
	Channel    string
	Rows       []sku.Row
	Box        carton.Box
	PricePerKg float64
}

// Plan is the full outcome for one carton. Records keep the input order.
type Plan struct {
	Channel    channel.Rule        `json:"channel"`
	Box        carton.Box          `json:"box"`
	PricePerKg float64             `json:"pricePerKg"`
	Band       allocation.Band     `json:"band"`
	Records    []allocation.Record `json:"records"`
	Summary    cost.Summary        `json:"summary"`
	Warnings   []cost.Warning      `json:"warnings"`
}

// Accepted returns the number of SKUs that received a quantity.
func (p Plan) Accepted() int {
	n := 0
	for _, rec := range p.Records {
		if rec.Accepted() {
			n++
		}
	}
	return n
}

// Calculator describes the behaviour required from a carton planner.
type Calculator interface {
	Compute(req Request) (Plan, error)
	Channels() channel.Table
}
