package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestMain verifies that Stop leaves no worker, dispatcher, or cleanup
// goroutine running once the package's tests finish.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubmitRunsJobToCompletion(t *testing.T) {
	p := NewProcessor(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	done := make(chan struct{})
	id := p.Submit("noop", PriorityNormal, DefaultPolicy, func(ctx context.Context) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	require.Eventually(t, func() bool {
		r, err := p.Status(id)
		return err == nil && r.Status == StatusCompleted
	}, time.Second, 10*time.Millisecond)
}

func TestJobRetriesUntilExhaustion(t *testing.T) {
	p := NewProcessor(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2}
	attempts := 0
	id := p.Submit("always-fails", PriorityNormal, policy, func(ctx context.Context) error {
		attempts++
		return errors.New("boom")
	})

	require.Eventually(t, func() bool {
		r, err := p.Status(id)
		return err == nil && r.Status == StatusFailed
	}, 2*time.Second, 10*time.Millisecond)

	require.Equal(t, 3, attempts)
}

func TestJobSucceedsAfterTransientFailure(t *testing.T) {
	p := NewProcessor(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffMultiplier: 2}
	attempts := 0
	id := p.Submit("eventually-succeeds", PriorityNormal, policy, func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})

	require.Eventually(t, func() bool {
		r, err := p.Status(id)
		return err == nil && r.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, 2, attempts)
}

func TestCancelPendingJob(t *testing.T) {
	p := NewProcessor(1) // Start is never called, so nothing drains the queue

	id := p.Submit("never-runs", PriorityLow, DefaultPolicy, func(ctx context.Context) error { return nil })
	require.NoError(t, p.Cancel(id))

	r, err := p.Status(id)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, r.Status)

	err = p.Cancel(id)
	require.Error(t, err)
}

func TestHistoryOrderedMostRecentFirst(t *testing.T) {
	p := NewProcessor(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	for i := 0; i < 3; i++ {
		id := p.Submit("seq", PriorityNormal, DefaultPolicy, func(ctx context.Context) error { return nil })
		require.Eventually(t, func() bool {
			r, err := p.Status(id)
			return err == nil && r.Status == StatusCompleted
		}, time.Second, 10*time.Millisecond)
	}

	hist := p.History(10)
	require.Len(t, hist, 3)
	require.True(t, hist[0].SubmittedAt.After(hist[2].SubmittedAt) || hist[0].SubmittedAt.Equal(hist[2].SubmittedAt))
}
