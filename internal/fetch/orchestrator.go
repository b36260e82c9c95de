package fetch

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher retrieves one target. Implementations: BrowserFetcher for rendered
// pages, FeedClient for the JSON feed, fakes in tests.
type Fetcher interface {
	Fetch(ctx context.Context, t Target) (string, error)
}

// FetcherFactory builds the retrieval resource for one batch. The
// orchestrator closes the fetcher (when it is closeable) after the batch, so
// a browser-backed factory gets its Chrome process recycled every BatchSize
// targets.
type FetcherFactory func() (Fetcher, error)

// Config bounds the orchestrator.
type Config struct {
	Concurrency    int           // max in-flight retrievals within a batch
	BatchSize      int           // targets per retrieval-resource lifetime
	MaxAttempts    int           // attempts per target, first pass
	BackoffBase    time.Duration // delay is base * 2^(attempt-1)
	FetchTimeout   time.Duration // per-attempt timeout
	SecondPassWait time.Duration // pre-attempt wait in the slow retry pass
	RateLimit      rate.Limit    // requests per second across all workers
}

// DefaultConfig is tuned for the politeness these sites require: low
// concurrency, generous timeouts.
func DefaultConfig() Config {
	return Config{
		Concurrency:    4,
		BatchSize:      25,
		MaxAttempts:    3,
		BackoffBase:    2 * time.Second,
		FetchTimeout:   45 * time.Second,
		SecondPassWait: 10 * time.Second,
		RateLimit:      rate.Limit(2),
	}
}

// Report is the run summary surfaced to callers and the logs.
type Report struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Orchestrator coordinates batched, bounded-concurrency retrieval with
// retry, backoff, failure classification and an optional raw archive.
type Orchestrator struct {
	cfg        Config
	factory    FetcherFactory
	limiter    *rate.Limiter
	archiver   *Archiver   // optional
	failureLog *FailureLog // optional
}

// NewOrchestrator wires an orchestrator; archiver and failureLog may be nil.
func NewOrchestrator(cfg Config, factory FetcherFactory, archiver *Archiver, failureLog *FailureLog) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Concurrency
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = rate.Inf
	}
	return &Orchestrator{
		cfg:        cfg,
		factory:    factory,
		limiter:    rate.NewLimiter(limit, 1),
		archiver:   archiver,
		failureLog: failureLog,
	}
}

// Run processes every target and returns one Result per target. A target
// that exhausts its retries is recorded as failed and never aborts the
// batch; only a factory error (the retrieval resource itself cannot start)
// stops the run early.
func (o *Orchestrator) Run(ctx context.Context, targets []Target) ([]Result, Report, error) {
	results := make([]Result, 0, len(targets))
	report := Report{}

	for start := 0; start < len(targets); start += o.cfg.BatchSize {
		end := start + o.cfg.BatchSize
		if end > len(targets) {
			end = len(targets)
		}
		batch := targets[start:end]

		fetcher, err := o.factory()
		if err != nil {
			return results, report, err
		}

		batchResults := o.runBatch(ctx, fetcher, batch)
		if closer, ok := fetcher.(io.Closer); ok {
			closer.Close() // recycle the heavyweight resource between batches
		}

		for i := range batchResults {
			r := &batchResults[i]
			report.Attempted++
			if r.OK() {
				report.Succeeded++
			} else {
				report.Failed++
				if o.failureLog != nil {
					o.failureLog.Append(r.Target, r.Err)
				}
			}
		}
		results = append(results, batchResults...)
	}

	log.Printf("[fetch] run complete: %d attempted, %d succeeded, %d failed",
		report.Attempted, report.Succeeded, report.Failed)
	return results, report, ctx.Err()
}

// runBatch dispatches the batch in concurrency-sized groups, waiting for
// each group before starting the next, then makes one slower pass over the
// group's transient failures.
func (o *Orchestrator) runBatch(ctx context.Context, fetcher Fetcher, batch []Target) []Result {
	results := make([]Result, len(batch))

	for start := 0; start < len(batch); start += o.cfg.Concurrency {
		end := start + o.cfg.Concurrency
		if end > len(batch) {
			end = len(batch)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = o.fetchWithRetry(ctx, fetcher, batch[i])
			}(i)
		}
		wg.Wait()
	}

	// Second pass: borderline-slow pages often succeed given a longer wait.
	// Sequential and unhurried, trading latency for yield.
	for i := range results {
		if results[i].OK() || !IsTransient(results[i].Err) {
			continue
		}
		if !sleepCtx(ctx, o.cfg.SecondPassWait) {
			break
		}
		log.Printf("[fetch] slow retry for %s", results[i].Target.URL)
		retried := o.fetchOnce(ctx, fetcher, results[i].Target)
		retried.Attempts = results[i].Attempts + 1
		results[i] = retried
	}
	return results
}

// fetchWithRetry applies the per-target policy: up to MaxAttempts with
// exponential backoff for transient failures, immediate stop on permanent
// ones.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, fetcher Fetcher, t Target) Result {
	var result Result
	for attempt := 1; attempt <= o.cfg.MaxAttempts; attempt++ {
		result = o.fetchOnce(ctx, fetcher, t)
		result.Attempts = attempt
		if result.OK() || !IsTransient(result.Err) {
			return result
		}
		if attempt < o.cfg.MaxAttempts {
			delay := o.cfg.BackoffBase * (1 << (attempt - 1))
			log.Printf("[fetch] attempt %d/%d failed for %s: %v (retrying in %v)",
				attempt, o.cfg.MaxAttempts, t.URL, result.Err, delay)
			if !sleepCtx(ctx, delay) {
				return result
			}
		}
	}
	return result
}

func (o *Orchestrator) fetchOnce(ctx context.Context, fetcher Fetcher, t Target) Result {
	if err := o.limiter.Wait(ctx); err != nil {
		return Result{Target: t, Err: err}
	}

	fetchCtx := ctx
	if o.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
	}

	payload, err := fetcher.Fetch(fetchCtx, t)
	if err != nil {
		return Result{Target: t, Err: err}
	}
	if o.archiver != nil {
		o.archiver.Save(t, payload)
	}
	return Result{Target: t, Payload: payload}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
