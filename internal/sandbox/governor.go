// Package sandbox implements the sandboxed extractor pool (C1): bounded
// instances with memory, fuel, and wall-clock (epoch) limits, grounded
// on the teacher's internal/utils.PythonPool channel-pool shape and
// flaresolverr-go's browser.Pool pre-warm/health-check pattern.
//
// No library in the retrieval pack embeds an actual WASM runtime, so the
// memory/fuel/epoch enforcement below is an in-process governor rather
// than a wired host-call interceptor; see DESIGN.md for why this one
// piece has no third-party dependency to ground on.
package sandbox

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/riptide-dev/riptide/internal/apperr"
)

// Governor enforces a single instance's memory, fuel, and wall-clock
// budget across its lifetime, the three axes spec §4.1 requires every
// extraction to respect.
type Governor struct {
	memoryLimitPages int64
	fuelUnits        int64
	epochDeadline    time.Duration

	memoryUsedPages atomic.Int64
	fuelRemaining   atomic.Int64
}

// NewGovernor builds a Governor with a full fuel tank and no memory used.
func NewGovernor(memoryLimitPages int, fuelUnits int64, epochDeadline time.Duration) *Governor {
	g := &Governor{
		memoryLimitPages: int64(memoryLimitPages),
		fuelUnits:        fuelUnits,
		epochDeadline:    epochDeadline,
	}
	g.fuelRemaining.Store(fuelUnits)
	return g
}

// ChargeMemory accounts for a memory grow request in wasm pages (64KiB
// each), rejecting growth past the configured limit.
func (g *Governor) ChargeMemory(deltaPages int64) error {
	newTotal := g.memoryUsedPages.Add(deltaPages)
	if newTotal > g.memoryLimitPages {
		g.memoryUsedPages.Add(-deltaPages)
		return apperr.ResourceLimit("memory")
	}
	return nil
}

// ReleaseMemory gives back pages charged by ChargeMemory, e.g. on
// instance reset between uses.
func (g *Governor) ReleaseMemory(deltaPages int64) {
	if g.memoryUsedPages.Add(-deltaPages) < 0 {
		g.memoryUsedPages.Store(0)
	}
}

// ChargeFuel deducts fuel units for a unit of work, rejecting the charge
// once the tank is empty. Fuel models the WASM "fuel" construct spec §4.1
// names for bounding CPU-bound host-call loops deterministically.
func (g *Governor) ChargeFuel(units int64) error {
	remaining := g.fuelRemaining.Add(-units)
	if remaining < 0 {
		g.fuelRemaining.Add(units)
		return apperr.ResourceLimit("fuel")
	}
	return nil
}

// Refuel resets the fuel tank to full and the memory usage to zero, done
// each time an instance is reset on Release back into the pool.
func (g *Governor) Refuel() {
	g.fuelRemaining.Store(g.fuelUnits)
	g.memoryUsedPages.Store(0)
}

// WithEpochDeadline derives a context bounded by the governor's
// configured wall-clock deadline, the "epoch" axis of the budget.
func (g *Governor) WithEpochDeadline(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, g.epochDeadline)
}

// MemoryUsedPages reports the memory pages charged since the last Refuel.
func (g *Governor) MemoryUsedPages() int64 {
	return g.memoryUsedPages.Load()
}

// FuelRemaining reports the current fuel tank level.
func (g *Governor) FuelRemaining() int64 {
	return g.fuelRemaining.Load()
}
