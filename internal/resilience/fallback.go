package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sayright/sayright/internal/observe"
)

// ErrAllFailed is returned when every entry in a [FallbackGroup] fails or has an
// open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FallbackConfig configures a [FallbackGroup].
type FallbackConfig struct {
	// Kind labels metrics and logs, e.g. "stt" or "tts".
	Kind string

	// CircuitBreaker is the template for each entry's breaker. Its Name is
	// replaced with the entry name.
	CircuitBreaker CircuitBreakerConfig

	// Metrics, if set, receives a provider error per failed attempt and a
	// failover record whenever a fallback serves the call.
	Metrics *observe.Metrics
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup holds a primary and zero or more fallback instances of the same
// provider type. Calls go to the first entry whose breaker admits them and
// move down the list on failure. Entries must be added before the group is
// used concurrently.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a [FallbackGroup] with primary as the first entry.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a fallback tried after every earlier entry.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   fallback,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the entry names in the order they are tried.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// Execute tries fn against each entry in order until one succeeds.
func (fg *FallbackGroup[T]) Execute(ctx context.Context, fn func(T) error) error {
	_, err := ExecuteWithResult(ctx, fg, func(v T) (struct{}, error) {
		return struct{}{}, fn(v)
	})
	return err
}

// ExecuteWithResult tries fn against each entry in the group until one
// succeeds and returns its result. Entries with an open breaker are skipped.
// When ctx is done the remaining entries are not tried and the context error
// is returned. Otherwise, if every entry fails, the error wraps [ErrAllFailed]
// and every entry's error.
func ExecuteWithResult[T any, R any](ctx context.Context, fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		errs []error
		zero R
	)
	for i := range fg.entries {
		entry := &fg.entries[i]
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		var result R
		err := entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping provider, circuit open", "kind", fg.cfg.Kind, "provider", entry.name)
			errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
			continue
		}
		if err == nil {
			if i > 0 {
				slog.Info("using fallback provider", "kind", fg.cfg.Kind, "provider", entry.name)
				if fg.cfg.Metrics != nil {
					fg.cfg.Metrics.RecordFailover(ctx, entry.name, fg.cfg.Kind)
				}
			}
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, err
		}
		if fg.cfg.Metrics != nil {
			fg.cfg.Metrics.RecordProviderError(ctx, entry.name, fg.cfg.Kind)
		}
		slog.Warn("provider failed, trying next",
			"kind", fg.cfg.Kind, "provider", entry.name, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", entry.name, err))
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, errors.Join(errs...))
}
