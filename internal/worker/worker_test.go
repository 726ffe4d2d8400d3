package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestPermits_DefaultsToRequestedWhenPositive(t *testing.T) {
	if got := Permits(4); got != 4 {
		t.Errorf("Permits(4) = %d, want 4", got)
	}
}

func TestPermits_FallsBackToNumCPUWhenZeroOrNegative(t *testing.T) {
	if got := Permits(0); got < 1 {
		t.Errorf("Permits(0) = %d, want >= 1", got)
	}
	if got := Permits(-3); got < 1 {
		t.Errorf("Permits(-3) = %d, want >= 1", got)
	}
}

func TestRun_NoJobsSucceeds(t *testing.T) {
	if err := Run(context.Background(), 2, nil); err != nil {
		t.Fatalf("Run(nil jobs) = %v, want nil", err)
	}
}

func TestRun_AllJobsExecute(t *testing.T) {
	var count int64
	jobs := make([]Job, 10)
	for i := range jobs {
		jobs[i] = func(ctx context.Context, index int) error {
			atomic.AddInt64(&count, 1)
			return nil
		}
	}
	if err := Run(context.Background(), 3, jobs); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if count != int64(len(jobs)) {
		t.Errorf("ran %d jobs, want %d", count, len(jobs))
	}
}

func TestRun_ReturnsFirstError(t *testing.T) {
	wantErr := errors.New("boom")
	jobs := []Job{
		func(ctx context.Context, index int) error { return nil },
		func(ctx context.Context, index int) error { return wantErr },
		func(ctx context.Context, index int) error { return nil },
	}
	err := Run(context.Background(), 2, jobs)
	if !errors.Is(err, wantErr) {
		t.Errorf("Run error = %v, want %v", err, wantErr)
	}
}

func TestRun_CancelsRemainingJobsOnError(t *testing.T) {
	wantErr := errors.New("stop")
	var canceled int64
	jobs := []Job{
		func(ctx context.Context, index int) error { return wantErr },
	}
	for i := 0; i < 5; i++ {
		jobs = append(jobs, func(ctx context.Context, index int) error {
			<-ctx.Done()
			atomic.AddInt64(&canceled, 1)
			return ctx.Err()
		})
	}
	// Limit to 1 permit so the failing job runs first and the context
	// cancellation is observable by jobs still queued behind it.
	err := Run(context.Background(), 1, jobs)
	if !errors.Is(err, wantErr) {
		t.Errorf("Run error = %v, want %v", err, wantErr)
	}
}
