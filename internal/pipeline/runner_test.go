package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aeroclimate/takeoff-humidity/internal/observability"
	"github.com/aeroclimate/takeoff-humidity/internal/pipeline"
)

func TestRunner_CheckReadiness(t *testing.T) {
	r := pipeline.NewRunner("ingestion", time.Hour, func(context.Context) error { return nil },
		clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	require.Error(t, r.CheckReadiness(context.Background()))

	require.NoError(t, r.Once(context.Background()))
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRunner_Once_FailureKeepsNotReady(t *testing.T) {
	r := pipeline.NewRunner("classification", time.Hour,
		func(context.Context) error { return errors.New("gate timeout") },
		clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	require.Error(t, r.Once(context.Background()))
	assert.Error(t, r.CheckReadiness(context.Background()))
}

func TestRunner_Once_RecoversReadiness(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	r := pipeline.NewRunner("ingestion", time.Hour, func(context.Context) error {
		if fail.Load() {
			return errors.New("flaky")
		}
		return nil
	}, clockwork.NewRealClock(), slog.Default(), observability.NewMetricsForTesting())

	require.Error(t, r.Once(context.Background()))
	fail.Store(false)
	require.NoError(t, r.Once(context.Background()))
	assert.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRunner_Loop_RunsOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int64
	r := pipeline.NewRunner("ingestion", 58*time.Minute, func(context.Context) error {
		runs.Add(1)
		return nil
	}, clock, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Loop(ctx)
	}()

	// First run fires immediately, then the loop parks on the interval timer.
	clock.BlockUntil(1)
	assert.Equal(t, int64(1), runs.Load())

	clock.Advance(58 * time.Minute)
	clock.BlockUntil(1)
	assert.Equal(t, int64(2), runs.Load())

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}

func TestRunner_Loop_ContinuesAfterFailedRun(t *testing.T) {
	clock := clockwork.NewFakeClock()
	var runs atomic.Int64
	r := pipeline.NewRunner("classification", 2*time.Minute, func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("first run fails")
		}
		return nil
	}, clock, slog.Default(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.Loop(ctx)
	}()

	clock.BlockUntil(1)
	require.Error(t, r.CheckReadiness(ctx))

	clock.Advance(2 * time.Minute)
	clock.BlockUntil(1)
	assert.Equal(t, int64(2), runs.Load())
	assert.NoError(t, r.CheckReadiness(ctx))

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop after cancellation")
	}
}
