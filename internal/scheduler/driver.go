package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Engine is the slice of the monitoring engine the driver calls.
type Engine interface {
	RunCycle(ctx context.Context) error
	Sweep(ctx context.Context) (int64, error)
}

// Driver invokes the monitoring cycle and the retention sweep on fixed
// intervals. Both run on one goroutine, so a cycle can never overlap a
// sweep or another cycle; a slow tick simply delays the next one.
type Driver struct {
	Logger        *zap.Logger
	Engine        Engine
	CycleInterval time.Duration
	SweepInterval time.Duration
}

func NewDriver(log *zap.Logger, engine Engine, cycleInterval, sweepInterval time.Duration) *Driver {
	if sweepInterval <= 0 {
		sweepInterval = 24 * time.Hour
	}
	return &Driver{
		Logger:        log,
		Engine:        engine,
		CycleInterval: cycleInterval,
		SweepInterval: sweepInterval,
	}
}

// Run starts the loop. It does an immediate cycle, then runs each tick.
// Stops when ctx is cancelled. Cycle and sweep errors are already logged by
// the engine and never propagate: a failed tick degrades one interval, not
// the process.
func (d *Driver) Run(ctx context.Context) {
	if d.CycleInterval <= 0 {
		d.Logger.Info("driver_disabled")
		return
	}

	cycle := time.NewTicker(d.CycleInterval)
	defer cycle.Stop()
	sweep := time.NewTicker(d.SweepInterval)
	defer sweep.Stop()

	// immediate pass
	_ = d.Engine.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			d.Logger.Info("driver_stopped")
			return
		case <-cycle.C:
			_ = d.Engine.RunCycle(ctx)
		case <-sweep.C:
			_, _ = d.Engine.Sweep(ctx)
		}
	}
}
