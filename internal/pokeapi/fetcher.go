package pokeapi

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/pokelab/internal/metrics"
	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

// DefaultBatchSize is the number of detail requests issued concurrently.
const DefaultBatchSize = 50

// Source is the API surface the fetcher needs. *Client implements it.
type Source interface {
	List(ctx context.Context) (*ListResponse, error)
	Detail(ctx context.Context, nameOrID string) (*DetailResponse, error)
}

// ProgressObserver receives (records accumulated, catalog size) after
// every batch. Failed entries do not count toward the first figure.
type ProgressObserver interface {
	OnProgress(completed, total int)
}

// ProgressFunc adapts a function to ProgressObserver.
type ProgressFunc func(completed, total int)

func (f ProgressFunc) OnProgress(completed, total int) { f(completed, total) }

// FailedEntry is a catalog entry whose details could not be retrieved.
type FailedEntry struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// FetchResult is the outcome of a full catalog fetch.
type FetchResult struct {
	Records  []pokemon.Record `json:"-"`
	Total    int              `json:"total"`
	Fetched  int              `json:"fetched"`
	Failed   []FailedEntry    `json:"failed,omitempty"`
	Duration time.Duration    `json:"-"`
}

// Complete reports whether every listed entry was retrieved.
func (r *FetchResult) Complete() bool {
	return len(r.Failed) == 0
}

// Fetcher retrieves the catalog in bounded concurrent batches.
type Fetcher struct {
	source    Source
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Manager
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithBatchSize sets how many detail requests run at once.
func WithBatchSize(n int) FetcherOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithLogger sets the logger used for per-entry failures.
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithMetrics attaches a metrics manager.
func WithMetrics(m *metrics.Manager) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// NewFetcher creates a fetcher over source.
func NewFetcher(source Source, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:    source,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll lists the catalog and retrieves every entry's details, batch by
// batch. A failed listing aborts with no partial result. Failed detail
// requests are logged and left out of the result. Records are returned in
// ascending ID order. observer may be nil.
func (f *Fetcher) FetchAll(ctx context.Context, observer ProgressObserver) (*FetchResult, error) {
	start := time.Now()

	list, err := f.source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog: %w", err)
	}

	entries := list.Results
	total := len(entries)
	result := &FetchResult{
		Records: make([]pokemon.Record, 0, total),
		Total:   total,
	}

	for offset := 0; offset < total; offset += f.batchSize {
		end := min(offset+f.batchSize, total)

		records, failed, err := f.fetchBatch(ctx, entries[offset:end])
		if err != nil {
			return nil, err
		}
		result.Records = append(result.Records, records...)
		result.Failed = append(result.Failed, failed...)

		if observer != nil {
			observer.OnProgress(len(result.Records), total)
		}
	}

	sort.SliceStable(result.Records, func(i, j int) bool {
		return result.Records[i].ID < result.Records[j].ID
	})

	result.Fetched = len(result.Records)
	result.Duration = time.Since(start)
	f.metrics.ObserveFetch(result.Duration, result.Fetched)

	if len(result.Failed) > 0 {
		f.logger.Warn("fetch completed with failures",
			"total", total,
			"fetched", result.Fetched,
			"failed", len(result.Failed),
		)
	}
	return result, nil
}

// fetchBatch requests every entry concurrently and waits for all of them.
// Only cancellation of ctx is returned as an error.
func (f *Fetcher) fetchBatch(ctx context.Context, entries []Entry) ([]pokemon.Record, []FailedEntry, error) {
	details := make([]*DetailResponse, len(entries))
	errs := make([]error, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	for i, entry := range entries {
		g.Go(func() error {
			d, err := f.source.Detail(gctx, entry.Ref())
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				errs[i] = err
				return nil
			}
			details[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	records := make([]pokemon.Record, 0, len(entries))
	var failed []FailedEntry
	for i, entry := range entries {
		if errs[i] != nil {
			f.metrics.RecordDetail(false)
			f.logger.Warn("detail request failed", "pokemon", entry.Ref(), "error", errs[i])
			failed = append(failed, FailedEntry{Name: entry.Ref(), Error: errs[i].Error()})
			continue
		}
		f.metrics.RecordDetail(true)
		records = append(records, Transform(*details[i]))
	}
	return records, failed, nil
}
