package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/services"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticConn bool

func (c staticConn) Online() bool { return bool(c) }

// scriptedRunner returns reports from script in order, repeating the last.
type scriptedRunner struct {
	mu     sync.Mutex
	script []services.RunReport
	err    error
	calls  int
	block  chan struct{}
}

func (r *scriptedRunner) Run(ctx context.Context) (services.RunReport, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.calls
	r.calls++
	if r.err != nil {
		return services.RunReport{Outcome: services.OutcomeRetry}, r.err
	}
	if i >= len(r.script) {
		i = len(r.script) - 1
	}
	return r.script[i], nil
}

func (r *scriptedRunner) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

var (
	success = services.RunReport{Outcome: services.OutcomeSuccess, Pending: 1, Synced: 1}
	retryR  = services.RunReport{Outcome: services.OutcomeRetry, Pending: 1, Retryable: 1}
	offline = services.RunReport{Outcome: services.OutcomeRetry, Offline: true}
)

func fastConfig() Config {
	return Config{Interval: time.Hour, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxRetries: 3}
}

func recordingHook(name string, log *[]string, mu *sync.Mutex) Hook {
	return Hook{Name: name, Fn: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		*log = append(*log, name)
		return nil
	}}
}

func TestWorker_RunOnce_SuccessRunsHooksInOrder(t *testing.T) {
	r := &scriptedRunner{script: []services.RunReport{success}}
	var mu sync.Mutex
	var calls []string
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard(),
		recordingHook("promote", &calls, &mu), recordingHook("cleanup", &calls, &mu))

	rep, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeSuccess, rep.Outcome)
	assert.Equal(t, 1, r.count())
	assert.Equal(t, []string{"promote", "cleanup"}, calls)
}

func TestWorker_RunOnce_RetriesUntilSuccess(t *testing.T) {
	r := &scriptedRunner{script: []services.RunReport{retryR, retryR, success}}
	var mu sync.Mutex
	var calls []string
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard(), recordingHook("cleanup", &calls, &mu))

	rep, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeSuccess, rep.Outcome)
	assert.Equal(t, 3, r.count())
	assert.Equal(t, []string{"cleanup"}, calls)
}

func TestWorker_RunOnce_RetriesExhausted(t *testing.T) {
	r := &scriptedRunner{script: []services.RunReport{retryR}}
	var mu sync.Mutex
	var calls []string
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard(), recordingHook("cleanup", &calls, &mu))

	rep, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeRetry, rep.Outcome)
	// first attempt plus MaxRetries
	assert.Equal(t, 4, r.count())
	assert.Empty(t, calls, "hooks must not run after a failed run")
}

func TestWorker_RunOnce_OfflineIsNotRetried(t *testing.T) {
	r := &scriptedRunner{script: []services.RunReport{offline}}
	w := NewWorker(r, staticConn(false), fastConfig(), logging.Discard())

	rep, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, rep.Offline)
	assert.Equal(t, 1, r.count())
}

func TestWorker_RunOnce_LocalErrorSurfaces(t *testing.T) {
	boom := errors.New("disk I/O error")
	r := &scriptedRunner{err: boom}
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard())

	_, err := w.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, r.count())
}

func TestWorker_RunOnce_HookErrorDoesNotFailRun(t *testing.T) {
	r := &scriptedRunner{script: []services.RunReport{success}}
	var ran atomic.Bool
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard(),
		Hook{Name: "promote", Fn: func(context.Context) error { return errors.New("nope") }},
		Hook{Name: "cleanup", Fn: func(context.Context) error { ran.Store(true); return nil }},
	)

	_, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, ran.Load())
}

func TestWorker_RunOnce_ConcurrentCallersShareRun(t *testing.T) {
	r := &scriptedRunner{script: []services.RunReport{success}, block: make(chan struct{})}
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard())

	var wg sync.WaitGroup
	results := make([]services.RunReport, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rep, err := w.RunOnce(context.Background())
			assert.NoError(t, err)
			results[i] = rep
		}(i)
	}

	// let all callers reach singleflight before releasing the run
	time.Sleep(50 * time.Millisecond)
	close(r.block)
	wg.Wait()

	assert.Equal(t, 1, r.count())
	for _, rep := range results {
		assert.Equal(t, services.OutcomeSuccess, rep.Outcome)
	}
}

func TestWorker_TriggerNowCoalesces(t *testing.T) {
	r := &scriptedRunner{script: []services.RunReport{success}}
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard())

	w.TriggerNow()
	w.TriggerNow()
	w.TriggerNow()
	assert.Len(t, w.trigger, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return r.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
	assert.Equal(t, 1, r.count())
}

func TestWorker_PeriodicTickGatedOnConnectivity(t *testing.T) {
	cfg := fastConfig()
	cfg.Interval = 5 * time.Millisecond

	offlineRunner := &scriptedRunner{script: []services.RunReport{success}}
	w := NewWorker(offlineRunner, staticConn(false), cfg, logging.Discard())
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	w.Start(ctx)
	assert.Equal(t, 0, offlineRunner.count())

	onlineRunner := &scriptedRunner{script: []services.RunReport{success}}
	w = NewWorker(onlineRunner, staticConn(true), cfg, logging.Discard())
	ctx2, cancel2 := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel2()
	w.Start(ctx2)
	assert.GreaterOrEqual(t, onlineRunner.count(), 1)
}

func TestConfig_Defaults(t *testing.T) {
	c := Config{}.withDefaults()
	assert.Equal(t, DefaultInterval, c.Interval)
	assert.Equal(t, DefaultBaseDelay, c.BaseDelay)
	assert.Equal(t, DefaultMaxDelay, c.MaxDelay)
	assert.Equal(t, uint64(DefaultMaxRetries), c.MaxRetries)
}

func TestWorker_RunOnce_SettledHooksRunAfterTerminalRejections(t *testing.T) {
	rejected := services.RunReport{Outcome: services.OutcomeRetry, Pending: 2, Synced: 1, Terminal: 1}
	r := &scriptedRunner{script: []services.RunReport{rejected}}
	var mu sync.Mutex
	var calls []string
	settled := recordingHook("cleanup", &calls, &mu)
	settled.When = AfterSettled
	w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard(),
		recordingHook("promote", &calls, &mu), settled)

	rep, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, services.OutcomeRetry, rep.Outcome)
	assert.Equal(t, 4, r.count())
	assert.Equal(t, []string{"cleanup"}, calls)
}

func TestWorker_RunOnce_SettledHooksSkippedOnTransientFailure(t *testing.T) {
	for _, rep := range []services.RunReport{retryR, offline} {
		r := &scriptedRunner{script: []services.RunReport{rep}}
		var mu sync.Mutex
		var calls []string
		settled := recordingHook("cleanup", &calls, &mu)
		settled.When = AfterSettled
		w := NewWorker(r, staticConn(true), fastConfig(), logging.Discard(), settled)

		_, err := w.RunOnce(context.Background())
		require.NoError(t, err)
		assert.Empty(t, calls)
	}
}
