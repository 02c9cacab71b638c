// Package storage keeps computed plans so they can be fetched, re-rendered
// and exported after the request that produced them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eugenenazirov/boxplan/internal/calculator"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Plan sources.
const (
	SourceJSON   = "json"
	SourceUpload = "upload"
	SourceCLI    = "cli"
)

var (
	// ErrNotFound indicates no plan exists for the requested ID.
	ErrNotFound = errors.New("plan not found")
	// ErrInvalidPlan indicates the plan cannot be stored, e.g. it has no ID.
	ErrInvalidPlan = errors.New("plan must have an ID")
	// ErrUnknownDriver indicates an unsupported storage driver name.
	ErrUnknownDriver = errors.New("unknown storage driver")
)

// StoredPlan is a computed plan together with its identity.
type StoredPlan struct {
	ID        string          `json:"id"`
	CreatedAt time.Time       `json:"createdAt"`
	Source    string          `json:"source"`
	Plan      calculator.Plan `json:"plan"`
}

// NewStoredPlan assigns a fresh UUID to plan.
func NewStoredPlan(source string, plan calculator.Plan, createdAt time.Time) StoredPlan {
	return StoredPlan{
		ID:        uuid.NewString(),
		CreatedAt: createdAt.UTC(),
		Source:    source,
		Plan:      plan,
	}
}

// Storage persists plans. Implementations are safe for concurrent use.
type Storage interface {
	SavePlan(ctx context.Context, plan StoredPlan) error
	GetPlan(ctx context.Context, id string) (StoredPlan, error)
	// ListPlans returns up to limit plans, newest first.
	ListPlans(ctx context.Context, limit int) ([]StoredPlan, error)
	Close() error
}

// Open creates a Storage for the named driver. path is only used by SQLite.
func Open(ctx context.Context, driver, path string) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", DriverMemory:
		return NewMemoryStorage(), nil
	case DriverSQLite:
		store, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func clonePlan(src StoredPlan) StoredPlan {
	out := src
	out.Plan.Channel.Aliases = cloneSlice(src.Plan.Channel.Aliases)
	out.Plan.Records = cloneSlice(src.Plan.Records)
	out.Plan.Warnings = cloneSlice(src.Plan.Warnings)
	return out
}

func cloneSlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	out := make([]T, len(src))
	copy(out, src)
	return out
}
