package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func makeBatches(n int) []Batch {
	out := make([]Batch, n)
	for i := range out {
		out[i] = Batch{Index: i, Images: []int{i}}
	}
	return out
}

func TestRunnerRespectsConcurrency(t *testing.T) {
	for _, limit := range []int{1, 2} {
		t.Run(fmt.Sprintf("limit %d", limit), func(t *testing.T) {
			var active, peak int32
			render := func(ctx context.Context, b Batch) (string, error) {
				n := atomic.AddInt32(&active, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return fmt.Sprintf("seg-%d.mp4", b.Index), nil
			}

			paths, err := NewRunner(limit, nil).Run(context.Background(), makeBatches(6), render)
			if err != nil {
				t.Fatalf("Run() error: %v", err)
			}
			if int(peak) > limit {
				t.Errorf("peak concurrency %d exceeds %d", peak, limit)
			}
			for i, p := range paths {
				if want := fmt.Sprintf("seg-%d.mp4", i); p != want {
					t.Errorf("paths[%d] = %s, want %s", i, p, want)
				}
			}
		})
	}
}

func TestRunnerStopsOnFirstError(t *testing.T) {
	boom := errors.New("encoder crashed")
	var started int32
	render := func(ctx context.Context, b Batch) (string, error) {
		atomic.AddInt32(&started, 1)
		if b.Index == 1 {
			return "", boom
		}
		return "ok.mp4", nil
	}

	paths, err := NewRunner(1, nil).Run(context.Background(), makeBatches(5), render)
	if !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if paths != nil {
		t.Errorf("paths = %v, want nil on failure", paths)
	}
	if n := atomic.LoadInt32(&started); n != 2 {
		t.Errorf("started %d renders, want 2", n)
	}
}

func TestRunnerHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err := NewRunner(2, nil).Run(ctx, makeBatches(3), func(ctx context.Context, b Batch) (string, error) {
		called = true
		return "", nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
	if called {
		t.Error("render called after cancellation")
	}
}
