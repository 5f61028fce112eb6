// Package pipeline drives fetches over a URL list with bounded concurrency
// and persists the resulting records.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aluiziolira/go-scrape-venues/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"
)

// FetchFunc retrieves one record. A nil record with a nil error means the
// page yielded nothing and the item is omitted.
type FetchFunc[T models.Record] func(ctx context.Context, url string) (T, error)

// IdentifyFunc derives the cache identifier of a URL, "" when none.
type IdentifyFunc func(url string) string

// CacheObserver is notified for every item served from the cache.
type CacheObserver interface {
	IncCached(entity string)
}

// Options configures a Scheduler. Delay and Concurrency are alternative
// throttles: a positive Delay forces sequential dispatch.
type Options struct {
	Entity        string
	Concurrency   int
	Delay         time.Duration
	DedupeMaxSize int
	Identify      IdentifyFunc
	Observer      CacheObserver
}

// Result is the ResultSet of one run plus its summary.
type Result[T models.Record] struct {
	Records []T
	Summary models.RunSummary
}

// Scheduler runs a FetchFunc over URLs, reusing cached records.
type Scheduler[T models.Record] struct {
	opts   Options
	cached map[string]T
}

// NewScheduler builds a scheduler. cached may be nil; it is only read.
func NewScheduler[T models.Record](opts Options, cached map[string]T) *Scheduler[T] {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Delay > 0 {
		opts.Concurrency = 1
	}
	if opts.DedupeMaxSize <= 0 {
		opts.DedupeMaxSize = 100000
	}
	return &Scheduler[T]{opts: opts, cached: cached}
}

// Run dispatches fetch for every URL not served from the cache and waits for
// all dispatched work. Per-item failures, including panics, are logged and the
// item is omitted. Cancelling ctx stops dispatch; in-flight items still finish.
func (s *Scheduler[T]) Run(ctx context.Context, urls []string, fetch FetchFunc[T]) *Result[T] {
	if ctx == nil {
		ctx = context.Background()
	}

	acc := newAccumulator[T](s.opts.DedupeMaxSize, len(urls))

	summary := models.RunSummary{
		Entity:    s.opts.Entity,
		StartTime: time.Now(),
		TotalURLs: len(urls),
	}

	pending := make([]string, 0, len(urls))
	for _, url := range urls {
		if s.opts.Identify != nil {
			if id := s.opts.Identify(url); id != "" {
				if record, ok := s.cached[id]; ok {
					acc.add(url, record, true)
					summary.Skipped++
					if s.opts.Observer != nil {
						s.opts.Observer.IncCached(s.opts.Entity)
					}
					continue
				}
			}
		}
		pending = append(pending, url)
	}

	slog.Info("scheduling fetches",
		slog.String("entity", s.opts.Entity),
		slog.Int("total", len(urls)),
		slog.Int("cached", summary.Skipped),
		slog.Int("pending", len(pending)),
		slog.Int("concurrency", s.opts.Concurrency),
		slog.Duration("delay", s.opts.Delay),
	)

	var interrupted bool
	if s.opts.Delay > 0 {
		interrupted = s.runSequential(ctx, pending, fetch, acc)
	} else {
		interrupted = s.runConcurrent(ctx, pending, fetch, acc)
	}

	records, failed, duplicates := acc.snapshot()
	summary.EndTime = time.Now()
	summary.Attempted = int(atomic.LoadInt64(&acc.attempted))
	summary.Failed = len(failed)
	summary.FailedURLs = failed
	summary.Duplicates = duplicates
	summary.Succeeded = int(atomic.LoadInt64(&acc.succeeded))
	summary.Interrupted = interrupted

	return &Result[T]{Records: records, Summary: summary}
}

func (s *Scheduler[T]) runConcurrent(ctx context.Context, urls []string, fetch FetchFunc[T], acc *accumulator[T]) bool {
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)

	interrupted := false
	for i, url := range urls {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		g.Go(func() error {
			s.runOne(ctx, i+1, len(urls), url, fetch, acc)
			return nil
		})
	}
	_ = g.Wait()
	return interrupted
}

func (s *Scheduler[T]) runSequential(ctx context.Context, urls []string, fetch FetchFunc[T], acc *accumulator[T]) bool {
	for i, url := range urls {
		if i > 0 {
			timer := time.NewTimer(s.opts.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return true
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return true
		}
		s.runOne(ctx, i+1, len(urls), url, fetch, acc)
	}
	return false
}

func (s *Scheduler[T]) runOne(ctx context.Context, index, total int, url string, fetch FetchFunc[T], acc *accumulator[T]) {
	atomic.AddInt64(&acc.attempted, 1)
	defer func() {
		if r := recover(); r != nil {
			slog.Error("fetch panicked",
				slog.String("entity", s.opts.Entity),
				slog.String("url", url),
				slog.Any("error", fmt.Errorf("panic: %v", r)),
			)
			acc.fail(url)
		}
	}()

	slog.Info(fmt.Sprintf("[%d/%d] scraping", index, total), slog.String("url", url))

	record, err := fetch(ctx, url)
	if err != nil {
		slog.Warn("fetch failed",
			slog.String("entity", s.opts.Entity),
			slog.String("url", url),
			slog.Any("error", err),
		)
		acc.fail(url)
		return
	}
	if isNil(record) {
		slog.Warn("fetch returned no record", slog.String("url", url))
		acc.fail(url)
		return
	}
	acc.add(url, record, false)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// accumulator is the single serialized append point of the ResultSet.
type accumulator[T models.Record] struct {
	attempted int64
	succeeded int64

	mu         sync.Mutex
	records    []T
	failed     []string
	duplicates int
	seen       *lru.Cache[string, struct{}]
}

func newAccumulator[T models.Record](dedupeSize, capacity int) *accumulator[T] {
	if dedupeSize <= 0 {
		dedupeSize = 1
	}
	// lru.New only fails for a non-positive size.
	seen, _ := lru.New[string, struct{}](dedupeSize)
	return &accumulator[T]{
		records: make([]T, 0, capacity),
		seen:    seen,
	}
}

func (a *accumulator[T]) add(url string, record T, cached bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if found, _ := a.seen.ContainsOrAdd(url, struct{}{}); found {
		a.duplicates++
		slog.Debug("dropping duplicate record", slog.String("url", url))
		return
	}
	a.records = append(a.records, record)
	if !cached {
		atomic.AddInt64(&a.succeeded, 1)
	}
}

func (a *accumulator[T]) fail(url string) {
	a.mu.Lock()
	a.failed = append(a.failed, url)
	a.mu.Unlock()
}

func (a *accumulator[T]) snapshot() ([]T, []string, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	records := make([]T, len(a.records))
	copy(records, a.records)
	failed := make([]string, len(a.failed))
	copy(failed, a.failed)
	return records, failed, a.duplicates
}
