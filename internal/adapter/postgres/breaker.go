package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jackc/pgx/v5"
	"github.com/jeremyandrews/tag1bot/internal/adapter/metrics"
)

// breaker guards store queries: 60% failures over at least 5 calls in 10s
// opens it for 30s, one success in half-open closes it again.
type breaker struct {
	cb circuitbreaker.CircuitBreaker[any]
}

func newBreaker(m *metrics.StoreMetrics, delay time.Duration) *breaker {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", backendName,
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			m.ObserveBreaker(backendName, e.NewState.String(), stateValue(e.NewState))
		}).
		Build()
	return &breaker{cb: cb}
}

func stateValue(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// run executes fn unless the breaker is open. pgx.ErrNoRows counts as success.
func (b *breaker) run(fn func() error) error {
	if !b.cb.TryAcquirePermit() {
		return fmt.Errorf("postgres circuit breaker: %w", circuitbreaker.ErrOpen)
	}

	err := fn()
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		b.cb.RecordError(err)
		return err
	}
	b.cb.RecordSuccess()
	return err
}

func (b *breaker) state() circuitbreaker.State {
	return b.cb.State()
}
