package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/voxdoc/voxdoc/internal/resilience"
)

var errBoom = errors.New("boom")

func failing() error { return errBoom }
func succeeding() error { return nil }

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:         "test",
		MaxFailures:  3,
		ResetTimeout: time.Hour,
	})

	for i := 0; i < 3; i++ {
		if cb.State() != resilience.StateClosed {
			t.Fatalf("breaker opened early after %d failures", i)
		}
		if err := cb.Execute(failing); !errors.Is(err, errBoom) {
			t.Fatalf("want errBoom, got %v", err)
		}
	}

	if cb.State() != resilience.StateOpen {
		t.Fatalf("want open after 3 failures, got %v", cb.State())
	}

	called := false
	err := cb.Execute(func() error { called = true; return nil })
	if !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("want ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("open breaker must not invoke the function")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 2})

	cb.Execute(failing)
	cb.Execute(succeeding)
	cb.Execute(failing)

	if cb.State() != resilience.StateClosed {
		t.Fatalf("interleaved success should reset the count, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
		HalfOpenMax:  2,
	})

	cb.Execute(failing)
	if cb.State() != resilience.StateOpen {
		t.Fatalf("want open, got %v", cb.State())
	}

	time.Sleep(20 * time.Millisecond)
	if cb.State() != resilience.StateHalfOpen {
		t.Fatalf("want half-open after the reset timeout, got %v", cb.State())
	}

	// Two successful probes close the breaker.
	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("probe 1: %v", err)
	}
	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("probe 2: %v", err)
	}
	if cb.State() != resilience.StateClosed {
		t.Fatalf("want closed after successful probes, got %v", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: 10 * time.Millisecond,
	})

	cb.Execute(failing)
	time.Sleep(20 * time.Millisecond)

	if err := cb.Execute(failing); !errors.Is(err, errBoom) {
		t.Fatalf("probe should run and fail, got %v", err)
	}
	if cb.State() != resilience.StateOpen {
		t.Fatalf("failed probe should re-open, got %v", cb.State())
	}
}

func TestCircuitBreaker_Reset(t *testing.T) {
	t.Parallel()

	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	cb.Execute(failing)
	if cb.State() != resilience.StateOpen {
		t.Fatalf("want open, got %v", cb.State())
	}

	cb.Reset()
	if cb.State() != resilience.StateClosed {
		t.Fatalf("want closed after Reset, got %v", cb.State())
	}
	if err := cb.Execute(succeeding); err != nil {
		t.Fatalf("call after Reset: %v", err)
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state resilience.State
		want  string
	}{
		{resilience.StateClosed, "closed"},
		{resilience.StateOpen, "open"},
		{resilience.StateHalfOpen, "half-open"},
	}
	for _, tc := range tests {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("State(%d).String() = %q, want %q", tc.state, got, tc.want)
		}
	}
}
