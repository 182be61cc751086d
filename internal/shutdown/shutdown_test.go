package shutdown

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestShutdownRunsAllComponents(t *testing.T) {
	c := NewCoordinator(WithTimeout(time.Second))

	var calls atomic.Int32
	for _, name := range []string{"a", "b", "c"} {
		c.Register(NewFuncComponent(name, func(ctx context.Context) error {
			calls.Add(1)
			return nil
		}))
	}

	c.Shutdown()
	c.Wait()

	if calls.Load() != 3 {
		t.Errorf("ran %d components, want 3", calls.Load())
	}
	if c.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", c.ExitCode())
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	c := NewCoordinator(WithTimeout(time.Second))

	var calls atomic.Int32
	c.Register(NewFuncComponent("once", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	}))

	c.Shutdown()
	c.Shutdown()
	c.Wait()

	if calls.Load() != 1 {
		t.Errorf("component ran %d times, want 1", calls.Load())
	}
}

func TestShutdownTimeoutForcesTermination(t *testing.T) {
	c := NewCoordinator(WithTimeout(50 * time.Millisecond))

	c.Register(NewFuncComponent("stuck", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(200 * time.Millisecond)
		return ctx.Err()
	}))

	c.Shutdown()
	c.Wait()

	if c.ExitCode() != 1 {
		t.Errorf("exit code = %d, want 1 after timeout", c.ExitCode())
	}
}

func TestComponentErrorDoesNotBlockOthers(t *testing.T) {
	c := NewCoordinator(WithTimeout(time.Second))

	var ran atomic.Bool
	c.Register(NewFuncComponent("ok", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	}))
	c.Register(NewFuncComponent("failing", func(ctx context.Context) error {
		return errors.New("close failed")
	}))

	c.Shutdown()
	c.Wait()

	if !ran.Load() {
		t.Error("healthy component should still run when a sibling fails")
	}
	if c.ExitCode() != 0 {
		t.Errorf("exit code = %d, want 0", c.ExitCode())
	}
}
