package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type countingEngine struct {
	cycles int32
	sweeps int32
}

func (c *countingEngine) RunCycle(ctx context.Context) error {
	atomic.AddInt32(&c.cycles, 1)
	return nil
}

func (c *countingEngine) Sweep(ctx context.Context) (int64, error) {
	atomic.AddInt32(&c.sweeps, 1)
	return 0, nil
}

func TestDriver_RunsImmediateCycleAndTicks(t *testing.T) {
	eng := &countingEngine{}
	d := NewDriver(zap.NewNop(), eng, 20*time.Millisecond, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(110 * time.Millisecond)
	cancel()
	<-done

	got := atomic.LoadInt32(&eng.cycles)
	// immediate pass plus a few ticks; exact count depends on scheduling
	if got < 3 {
		t.Fatalf("want at least 3 cycles, got %d", got)
	}
	if atomic.LoadInt32(&eng.sweeps) != 0 {
		t.Fatalf("sweep should not have ticked yet")
	}
}

func TestDriver_SweepTicks(t *testing.T) {
	eng := &countingEngine{}
	d := NewDriver(zap.NewNop(), eng, time.Hour, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx)
		close(done)
	}()

	time.Sleep(110 * time.Millisecond)
	cancel()
	<-done

	if atomic.LoadInt32(&eng.sweeps) < 3 {
		t.Fatalf("want at least 3 sweeps, got %d", eng.sweeps)
	}
}

func TestDriver_DisabledWithoutInterval(t *testing.T) {
	eng := &countingEngine{}
	d := NewDriver(zap.NewNop(), eng, 0, time.Hour)

	done := make(chan struct{})
	go func() {
		d.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("driver with zero interval should return immediately")
	}
	if atomic.LoadInt32(&eng.cycles) != 0 {
		t.Fatalf("disabled driver must not run cycles")
	}
}
