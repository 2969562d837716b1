package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/statuskeep/statusd/internal/domain"
	"github.com/statuskeep/statusd/internal/metrics"
	"github.com/statuskeep/statusd/internal/probe"
	"github.com/statuskeep/statusd/internal/repo"
)

// Store is what the engine needs from persistence.
type Store interface {
	repo.TxBeginner
	ListEnabledServices(ctx context.Context) ([]domain.Service, error)
}

// Engine runs the monitoring cycle and the retention sweep. It holds no
// scheduling state of its own; a driver is expected to call RunCycle and
// Sweep periodically.
type Engine struct {
	log       *zap.Logger
	store     Store
	probes    *probe.Registry
	timeout   time.Duration
	retention time.Duration

	now func() time.Time // stubbed in tests
}

func NewEngine(log *zap.Logger, store Store, probes *probe.Registry, timeout, retention time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Engine{
		log:       log,
		store:     store,
		probes:    probes,
		timeout:   timeout,
		retention: retention,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle probes every enabled service, records an outcome and applies the
// incident transition for each, all inside a single transaction. Any failure
// rolls the whole cycle back: a failing write must not leave a partial set
// of outcomes for this tick.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()

	services, err := e.store.ListEnabledServices(ctx)
	if err != nil {
		metrics.ObserveCycle(time.Since(start), metrics.OutcomeError)
		e.log.Error("cycle_list_services_failed", zap.Error(err))
		return fmt.Errorf("list enabled services: %w", err)
	}
	if len(services) == 0 {
		metrics.ObserveCycle(time.Since(start), metrics.OutcomeSuccess)
		return nil
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		metrics.ObserveCycle(time.Since(start), metrics.OutcomeError)
		e.log.Error("cycle_begin_failed", zap.Error(err))
		return fmt.Errorf("begin cycle: %w", err)
	}

	for _, svc := range services {
		out := e.probeService(ctx, svc)
		if err := tx.InsertOutcome(ctx, out); err != nil {
			return e.abortCycle(start, tx, fmt.Errorf("record outcome for %s: %w", svc.Name, err))
		}
		if err := e.trackIncident(ctx, tx, svc, out.Status); err != nil {
			return e.abortCycle(start, tx, fmt.Errorf("track incident for %s: %w", svc.Name, err))
		}

		fields := []zap.Field{
			zap.String("service", svc.Name),
			zap.String("status", string(out.Status)),
		}
		if out.LatencyMS != nil {
			fields = append(fields, zap.Float64("latency_ms", *out.LatencyMS))
		}
		if out.Error != "" {
			fields = append(fields, zap.String("error", out.Error))
		}
		e.log.Info("health_check", fields...)
	}

	if err := tx.Commit(); err != nil {
		metrics.ObserveCycle(time.Since(start), metrics.OutcomeError)
		e.log.Error("cycle_commit_failed", zap.Error(err))
		return fmt.Errorf("commit cycle: %w", err)
	}

	metrics.ObserveCycle(time.Since(start), metrics.OutcomeSuccess)
	e.log.Debug("cycle_complete",
		zap.Int("services", len(services)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func (e *Engine) abortCycle(start time.Time, tx repo.Tx, err error) error {
	metrics.ObserveCycle(time.Since(start), metrics.OutcomeError)
	err = multierr.Append(err, tx.Rollback())
	e.log.Error("cycle_failed", zap.Error(err))
	return err
}

// probeService runs the checker registered for the service's check type and
// shapes the result into an outcome row. The probe itself never errors;
// failures arrive classified as down/degraded.
func (e *Engine) probeService(ctx context.Context, svc domain.Service) *domain.Outcome {
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	res := e.probes.ForType(svc.CheckType).Check(cctx, svc.URL)
	metrics.ObserveProbe(string(res.Status))

	return &domain.Outcome{
		ServiceID: svc.ID,
		Timestamp: e.now(),
		Status:    res.Status,
		LatencyMS: res.LatencyMS,
		Code:      res.Code,
		Error:     res.Error,
	}
}

// Sweep deletes outcomes older than the retention window in one transaction
// and returns how many rows were removed.
func (e *Engine) Sweep(ctx context.Context) (int64, error) {
	cutoff := e.now().Add(-e.retention)

	tx, err := e.store.Begin(ctx)
	if err != nil {
		e.log.Error("sweep_begin_failed", zap.Error(err))
		return 0, fmt.Errorf("begin sweep: %w", err)
	}

	n, err := tx.DeleteOutcomesBefore(ctx, cutoff)
	if err != nil {
		err = multierr.Append(fmt.Errorf("delete outcomes: %w", err), tx.Rollback())
		e.log.Error("sweep_failed", zap.Error(err))
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		e.log.Error("sweep_commit_failed", zap.Error(err))
		return 0, fmt.Errorf("commit sweep: %w", err)
	}

	metrics.AddSwept(n)
	e.log.Info("sweep_complete", zap.Int64("deleted", n), zap.Time("cutoff", cutoff))
	return n, nil
}
