package calculator

import (
	"math"

	"github.com/eugenenazirov/boxplan/internal/allocation"
	"github.com/eugenenazirov/boxplan/internal/channel"
	"github.com/eugenenazirov/boxplan/internal/cost"
	"github.com/eugenenazirov/boxplan/internal/sku"
)

type cartonCalculator struct {
	table  channel.Table
	engine *allocation.Engine
}

// Option configures the calculator.
type Option func(*cartonCalculator)

// WithBand overrides the per-SKU quantity band.
func WithBand(band allocation.Band) Option {
	return func(c *cartonCalculator) {
		c.engine = allocation.New(band)
	}
}

// New creates a Calculator over the given channel rules.
func New(table channel.Table, opts ...Option) Calculator {
	c := &cartonCalculator{
		table:  table,
		engine: allocation.New(allocation.DefaultBand()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *cartonCalculator) Channels() channel.Table {
	return c.table
}

func (c *cartonCalculator) Compute(req Request) (Plan, error) {
	if len(req.Rows) == 0 {
		return Plan{}, ErrEmptyInput
	}
	rule, err := c.table.Lookup(req.Channel)
	if err != nil {
		return Plan{}, err
	}
	if err := req.Box.Validate(); err != nil {
		return Plan{}, err
	}
	if !(req.PricePerKg >= 0) || math.IsInf(req.PricePerKg, 0) {
		return Plan{}, ErrInvalidPrice
	}

	skus, err := sku.ValidateAll(req.Rows)
	if err != nil {
		return Plan{}, err
	}

	alloc, err := c.engine.Allocate(rule, req.Box, skus)
	if err != nil {
		return Plan{}, err
	}

	summary, warnings := cost.Estimate(rule, req.Box, alloc.TotalWeight, alloc.TotalQuantity, req.PricePerKg)
	if warnings == nil {
		warnings = []cost.Warning{}
	}

	return Plan{
		Channel:    rule,
		Box:        req.Box,
		PricePerKg: req.PricePerKg,
		Band:       c.engine.Band(),
		Records:    alloc.Records,
		Summary:    summary,
		Warnings:   warnings,
	}, nil
}
