package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// BreakerStore guards a RunStore with a circuit breaker so a failing
// database stops being called for a cool-down period.
type BreakerStore struct {
	next RunStore
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next. The breaker opens after three consecutive
// failures, or when more than 5% of at least 20 requests in an interval
// fail.
func NewBreakerStore(name string, next RunStore) *BreakerStore {
	st := gobreaker.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts gobreaker.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.IsSuccessful = func(err error) bool {
		// a missing run is an answer, not an outage
		return err == nil || errors.Is(err, ErrNotFound)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn().
			Str("breaker", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Run store circuit breaker state change")
	}
	return &BreakerStore{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

// State reports the breaker state
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func (b *BreakerStore) Save(ctx context.Context, run Run) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Save(ctx, run)
	})
	return err
}

func (b *BreakerStore) Get(ctx context.Context, id string) (*Run, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Run), nil
}

func (b *BreakerStore) List(ctx context.Context, limit int) ([]Run, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.List(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	return v.([]Run), nil
}
