package sweeper

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rassdread/homecheff-deliverywatch/internal/countdown"
)

type stubRunner struct {
	calls   atomic.Int64
	inRun   atomic.Int64
	overlap atomic.Bool
	block   time.Duration
}

func (s *stubRunner) Sweep(ctx context.Context, now time.Time) countdown.SweepResult {
	if s.inRun.Add(1) > 1 {
		s.overlap.Store(true)
	}
	defer s.inRun.Add(-1)

	s.calls.Add(1)
	if s.block > 0 {
		time.Sleep(s.block)
	}
	return countdown.SweepResult{Scanned: 3, Dispatched: 1, Skipped: 2}
}

func TestRunOnce(t *testing.T) {
	runner := &stubRunner{}
	result := RunOnce(context.Background(), runner, time.Now())

	require.Equal(t, int64(1), runner.calls.Load())
	require.Equal(t, 1, result.Dispatched)
}

func TestStartSweepsOnInterval(t *testing.T) {
	runner := &stubRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Start(ctx, runner, 10*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	require.Eventually(t, func() bool {
		return runner.calls.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestStartSkipsOverlappingTicks(t *testing.T) {
	// Each sweep outlasts several ticks; the loop must never run two at once.
	runner := &stubRunner{block: 50 * time.Millisecond}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Start(ctx, runner, 5*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))
		close(done)
	}()

	require.Eventually(t, func() bool {
		return runner.calls.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	<-done
	require.False(t, runner.overlap.Load(), "sweeps must not overlap")
}
