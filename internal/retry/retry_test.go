package retry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediawatch/internal/retry"
	"mediawatch/internal/services"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	return ctx.Err()
}

type recordingObserver struct {
	attempts []retry.Attempt
	outcomes []retry.Outcome
}

func (o *recordingObserver) OnAttempt(_ context.Context, a retry.Attempt) {
	o.attempts = append(o.attempts, a)
}

func (o *recordingObserver) OnOutcome(_ context.Context, out retry.Outcome) {
	o.outcomes = append(o.outcomes, out)
}

func newExecutor(policy retry.Policy) (*retry.Executor, *sleepRecorder, *recordingObserver) {
	rec := &sleepRecorder{}
	obs := &recordingObserver{}
	return retry.New(policy, retry.WithSleep(rec.sleep), retry.WithObserver(obs)), rec, obs
}

func TestDoSucceedsOnThirdAttempt(t *testing.T) {
	exec, rec, obs := newExecutor(retry.Policy{MaxAttempts: 3, InitialDelay: 2 * time.Second, BackoffFactor: 2})

	calls := 0
	got, err := retry.Do(context.Background(), exec, "list", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("connection reset")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, rec.delays)
	require.Len(t, obs.attempts, 3)
	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, retry.StatusSuccess, obs.outcomes[0].Status)
	assert.Equal(t, 3, obs.outcomes[0].Attempts)
}

func TestDoExhaustsAndReportsWaitSequence(t *testing.T) {
	policy := retry.Policy{MaxAttempts: 4, InitialDelay: time.Second, BackoffFactor: 3}
	exec, rec, obs := newExecutor(policy)
	cause := services.Wrap(services.ErrTransient, "fetch", "tmdb", "502", nil)

	calls := 0
	_, err := retry.Do(context.Background(), exec, "tmdb", func(context.Context) (int, error) {
		calls++
		return 0, cause
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrExhausted)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, services.ErrTransient)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []time.Duration{time.Second, 3 * time.Second, 9 * time.Second}, rec.delays)
	assert.Equal(t, policy.Delays(), rec.delays)
	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, retry.StatusExhausted, obs.outcomes[0].Status)
	assert.Equal(t, time.Duration(0), obs.attempts[len(obs.attempts)-1].NextDelay)
}

func TestDoStopsOnFatal(t *testing.T) {
	exec, rec, obs := newExecutor(retry.DefaultPolicy())
	fatal := services.Wrap(services.ErrFatal, "fetch_library", "jellyfin", "401 unauthorized", nil)

	calls := 0
	err := exec.Run(context.Background(), "jellyfin", func(context.Context) error {
		calls++
		return fatal
	})

	require.ErrorIs(t, err, services.ErrFatal)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.delays)
	require.Len(t, obs.outcomes, 1)
	assert.Equal(t, retry.StatusAborted, obs.outcomes[0].Status)
}

func TestDoHonorsCancellationDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	exec := retry.New(retry.DefaultPolicy(), retry.WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	calls := 0
	err := exec.Run(ctx, "op", func(context.Context) error {
		calls++
		return errors.New("flaky")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, retry.ErrExhausted)
	assert.Equal(t, 1, calls)
}

func TestPolicyDelayCapsAndDefaults(t *testing.T) {
	p := retry.Policy{MaxAttempts: 5, InitialDelay: time.Second, BackoffFactor: 10, MaxDelay: 30 * time.Second}
	assert.Equal(t, []time.Duration{time.Second, 10 * time.Second, 30 * time.Second, 30 * time.Second}, p.Delays())
	assert.Equal(t, 71*time.Second, p.Budget())

	def := retry.DefaultPolicy()
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, def.Delays())

	zero := retry.Policy{}
	assert.Empty(t, zero.Delays())
}

func TestSleepReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, retry.Sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, retry.Sleep(context.Background(), 0))
}

func TestMultiObserverFansOut(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}
	exec := retry.New(retry.Policy{MaxAttempts: 1}, retry.WithObserver(retry.MultiObserver{a, nil, b}))

	_, err := retry.Do(context.Background(), exec, "op", func(context.Context) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.Len(t, a.outcomes, 1)
	assert.Len(t, b.outcomes, 1)
}
