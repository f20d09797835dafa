// ABOUTME: Periodic sampling of the live connection count into the history store
// ABOUTME: Owns the single writer goroutine and the read-side freshness synthesis

package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/relay-gateway/internal/store"
)

// ConnectionCounter reports the number of currently connected clients.
// Implemented by client.Registry.
type ConnectionCounter interface {
	Count() int
}

// Sampler periodically snapshots the connection count into a HistoryStore and
// prunes samples that have aged out of the retention window. All writes go
// through the single Run goroutine, so samples are strictly time-ordered.
type Sampler struct {
	counter   ConnectionCounter
	store     store.HistoryStore
	interval  time.Duration
	retention time.Duration
	logger    *slog.Logger

	// onSample, when set, is invoked after each successful tick. Used for
	// the samples-written metric.
	onSample func()

	// now is swappable for tests.
	now func() time.Time
}

// NewSampler creates a Sampler over the given counter and store.
func NewSampler(counter ConnectionCounter, hs store.HistoryStore, interval, retention time.Duration, logger *slog.Logger) *Sampler {
	return &Sampler{
		counter:   counter,
		store:     hs,
		interval:  interval,
		retention: retention,
		logger:    logger.With("component", "history"),
		now:       time.Now,
	}
}

// OnSample registers a callback invoked after every successful sampling tick.
func (s *Sampler) OnSample(fn func()) {
	s.onSample = fn
}

// Run executes the sampling loop until ctx is cancelled. One sample is written
// immediately on start so a fresh process has a data point before the first
// full interval elapses.
func (s *Sampler) Run(ctx context.Context) {
	s.logger.Info("history sampler started", "interval", s.interval, "retention", s.retention)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("history sampler stopped")
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

// sampleOnce appends one sample and prunes aged-out history. A cancelled
// context skips the write entirely so shutdown never leaves a partial sample.
func (s *Sampler) sampleOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	now := s.now().UTC()
	sample := store.Sample{Timestamp: now, Connections: s.counter.Count()}

	if err := s.store.AppendSample(ctx, sample); err != nil {
		s.logger.Error("appending history sample", "error", err)
		return
	}

	if err := s.store.PruneBefore(ctx, now.Add(-s.retention)); err != nil {
		s.logger.Error("pruning history samples", "error", err)
	}

	if s.onSample != nil {
		s.onSample()
	}
}

// GetHistory returns all samples within the given window, ascending by time.
//
// If the stored result is empty, or its newest sample is older than the
// sampling interval (the series has gone stale between ticks), exactly one
// synthesized sample at the current count and time is appended so a status
// query never sees an empty or stale series while clients are connected.
func (s *Sampler) GetHistory(ctx context.Context, window time.Duration) ([]store.Sample, error) {
	now := s.now().UTC()

	samples, err := s.store.SamplesSince(ctx, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	if s.needsSynthesis(samples, now) {
		samples = append(samples, store.Sample{Timestamp: now, Connections: s.counter.Count()})
	}

	return samples, nil
}

func (s *Sampler) needsSynthesis(samples []store.Sample, now time.Time) bool {
	if len(samples) == 0 {
		return true
	}
	newest := samples[len(samples)-1].Timestamp
	return now.Sub(newest) > s.interval
}
