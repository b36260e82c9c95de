package fetch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakeFetcher scripts per-URL outcomes: the first len(failures[url]) calls
// return those errors, then every call succeeds.
type fakeFetcher struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string][]error
	closed   *int
}

func newFakeFetcher(failures map[string][]error, closed *int) *fakeFetcher {
	return &fakeFetcher{
		calls:    make(map[string]int),
		failures: failures,
		closed:   closed,
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, t Target) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.calls[t.URL]
	f.calls[t.URL] = n + 1
	if errs := f.failures[t.URL]; n < len(errs) {
		return "", errs[n]
	}
	return "payload for " + t.URL, nil
}

func (f *fakeFetcher) Close() error {
	if f.closed != nil {
		*f.closed++
	}
	return nil
}

func fastConfig() Config {
	return Config{
		Concurrency:    2,
		BatchSize:      10,
		MaxAttempts:    3,
		BackoffBase:    time.Millisecond,
		FetchTimeout:   time.Second,
		SecondPassWait: time.Millisecond,
		RateLimit:      rate.Inf,
	}
}

func TestOrchestratorRetriesTransientFailures(t *testing.T) {
	url := "https://goduke.com/schedule"
	fetcher := newFakeFetcher(map[string][]error{
		url: {errors.New("timeout"), errors.New("timeout")},
	}, nil)

	orch := NewOrchestrator(fastConfig(), func() (Fetcher, error) { return fetcher, nil }, nil, nil)
	results, report, err := orch.Run(context.Background(), []Target{{Kind: KindSchedule, URL: url, Team: "Duke"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].OK())
	assert.Equal(t, 3, results[0].Attempts)
	assert.Equal(t, "payload for "+url, results[0].Payload)
	assert.Equal(t, Report{Attempted: 1, Succeeded: 1}, report)
}

func TestOrchestratorStopsOnPermanentFailure(t *testing.T) {
	url := "https://goduke.com/schedule"
	fetcher := newFakeFetcher(map[string][]error{
		url: {Permanent(errors.New("404")), Permanent(errors.New("404")), Permanent(errors.New("404"))},
	}, nil)

	orch := NewOrchestrator(fastConfig(), func() (Fetcher, error) { return fetcher, nil }, nil, nil)
	results, report, err := orch.Run(context.Background(), []Target{{Kind: KindSchedule, URL: url, Team: "Duke"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].OK())
	assert.Equal(t, 1, results[0].Attempts, "permanent failures are not retried")
	assert.Equal(t, Report{Attempted: 1, Failed: 1}, report)

	fetcher.mu.Lock()
	defer fetcher.mu.Unlock()
	assert.Equal(t, 1, fetcher.calls[url])
}

func TestOrchestratorSecondPassRescuesSlowTargets(t *testing.T) {
	url := "https://goduke.com/slow"
	// Three transient failures exhaust the first pass; the slow pass lands it.
	fetcher := newFakeFetcher(map[string][]error{
		url: {errors.New("timeout"), errors.New("timeout"), errors.New("timeout")},
	}, nil)

	orch := NewOrchestrator(fastConfig(), func() (Fetcher, error) { return fetcher, nil }, nil, nil)
	results, report, err := orch.Run(context.Background(), []Target{{Kind: KindBoxscore, URL: url, Team: "Duke"}})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.True(t, results[0].OK())
	assert.Equal(t, 4, results[0].Attempts)
	assert.Equal(t, Report{Attempted: 1, Succeeded: 1}, report)
}

func TestOrchestratorRecyclesFetcherPerBatch(t *testing.T) {
	var created, closed int

	cfg := fastConfig()
	cfg.BatchSize = 2
	factory := func() (Fetcher, error) {
		created++
		return newFakeFetcher(nil, &closed), nil
	}

	targets := make([]Target, 5)
	for i := range targets {
		targets[i] = Target{Kind: KindSchedule, URL: "https://school.example/" + string(rune('a'+i)), Team: "Team"}
	}

	orch := NewOrchestrator(cfg, factory, nil, nil)
	results, report, err := orch.Run(context.Background(), targets)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 5, report.Succeeded)
	assert.Equal(t, 3, created, "5 targets in batches of 2")
	assert.Equal(t, 3, closed, "every batch fetcher is closed")
}

func TestOrchestratorFactoryErrorAbortsRun(t *testing.T) {
	boom := errors.New("chrome did not start")
	orch := NewOrchestrator(fastConfig(), func() (Fetcher, error) { return nil, boom }, nil, nil)

	_, _, err := orch.Run(context.Background(), []Target{{Kind: KindSchedule, URL: "https://x.example/", Team: "X"}})
	assert.ErrorIs(t, err, boom)
}

func TestOrchestratorWritesFailureLog(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "failures.log")
	url := "https://goduke.com/gone"

	fetcher := newFakeFetcher(map[string][]error{
		url: {Permanent(errors.New("404 not found"))},
	}, nil)

	orch := NewOrchestrator(fastConfig(), func() (Fetcher, error) { return fetcher, nil }, nil, NewFailureLog(logPath))
	_, report, err := orch.Run(context.Background(), []Target{{Kind: KindBoxscore, URL: url, Team: "Duke", Date: "2024-10-15"}})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	line := string(data)
	assert.Contains(t, line, url)
	assert.Contains(t, line, "Duke")
	assert.Contains(t, line, "2024-10-15")
	assert.Contains(t, line, "boxscore")
}

func TestOrchestratorArchivesSuccesses(t *testing.T) {
	dir := t.TempDir()
	archiver, err := NewArchiver(dir)
	require.NoError(t, err)

	url := "https://goduke.com/schedule"
	fetcher := newFakeFetcher(nil, nil)

	orch := NewOrchestrator(fastConfig(), func() (Fetcher, error) { return fetcher, nil }, archiver, nil)
	_, _, err = orch.Run(context.Background(), []Target{{Kind: KindSchedule, URL: url, Team: "Duke"}})
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Name(), "duke")
	assert.Contains(t, entries[0].Name(), "schedule")

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Equal(t, "payload for "+url, string(data))
}

func TestArchiverSeparatesSameTeamPayloads(t *testing.T) {
	dir := t.TempDir()
	archiver, err := NewArchiver(dir)
	require.NoError(t, err)

	archiver.Save(Target{Kind: KindBoxscore, URL: "https://goduke.com/boxscore/7", Team: "Duke"}, "one")
	archiver.Save(Target{Kind: KindBoxscore, URL: "https://goduke.com/boxscore/8", Team: "Duke"}, "two")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "same team and kind in the same second must not collide")
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(errors.New("timeout")))
	assert.False(t, IsTransient(Permanent(errors.New("404"))))
}
