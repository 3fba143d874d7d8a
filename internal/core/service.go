package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/metrics"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
	"github.com/JonMunkholm/pokelab/internal/pokemon"
	"github.com/JonMunkholm/pokelab/internal/store"
)

// Defaults for service options.
const (
	DefaultJobTimeout   = 10 * time.Minute
	DefaultJobRetention = 5 * time.Minute
)

var (
	// ErrRecordNotFound is returned when an edit targets an absent record ID.
	ErrRecordNotFound = errors.New("record not found")

	// ErrColumnNotFound is returned when removing an absent column.
	ErrColumnNotFound = errors.New("column not found")

	// ErrInvalidRequest wraps malformed client input such as a bad JSON body.
	ErrInvalidRequest = errors.New("invalid request")
)

// Fetcher retrieves the full remote catalog. *pokeapi.Fetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, observer pokeapi.ProgressObserver) (*pokeapi.FetchResult, error)
}

// Service coordinates the store with the fetcher and the CSV pipeline.
type Service struct {
	store   *store.Store
	fetcher Fetcher
	limiter *JobLimiter
	metrics *metrics.Manager
	logger  *slog.Logger

	chunkSize    int
	jobTimeout   time.Duration
	jobRetention time.Duration

	mu   sync.RWMutex
	jobs map[string]*activeJob
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches a metrics manager.
func WithMetrics(m *metrics.Manager) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithChunkSize sets the import progress granularity in rows.
func WithChunkSize(n int) Option {
	return func(s *Service) { s.chunkSize = n }
}

// WithJobTimeout bounds how long a background job may run.
func WithJobTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobTimeout = d
		}
	}
}

// WithJobRetention sets how long finished jobs stay queryable.
func WithJobRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.jobRetention = d
		}
	}
}

// NewService creates a service over st. fetcher may be nil when only the
// CSV pipeline is used.
func NewService(st *store.Store, fetcher Fetcher, opts ...Option) *Service {
	s := &Service{
		store:        st,
		fetcher:      fetcher,
		limiter:      NewJobLimiter(1),
		logger:       slog.Default(),
		chunkSize:    csvio.DefaultChunkSize,
		jobTimeout:   DefaultJobTimeout,
		jobRetention: DefaultJobRetention,
		jobs:         make(map[string]*activeJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying record store.
func (s *Service) Store() *store.Store {
	return s.store
}

// Status is the lifecycle summary served to the UI.
type Status struct {
	store.State
	Jobs   LimiterStatus `json:"jobs"`
	Active []JobProgress `json:"active,omitempty"`
}

// Status returns the store state together with running jobs.
func (s *Service) Status() Status {
	return Status{
		State:  s.store.State(),
		Jobs:   s.limiter.Status(),
		Active: s.ActiveJobs(),
	}
}

// StartFetch begins a background catalog fetch and returns its job ID.
// It fails with ErrBusy while another fetch or import runs.
func (s *Service) StartFetch(ctx context.Context) (string, error) {
	if s.fetcher == nil {
		return "", errors.New("no fetcher configured")
	}
	return s.startJob(ctx, JobFetch, "", func(ctx context.Context, job *activeJob) (*JobResult, error) {
		job.update(func(p *JobProgress) { p.Phase = PhaseFetching })

		res, err := s.fetch(ctx, pokeapi.ProgressFunc(func(completed, total int) {
			job.update(func(p *JobProgress) {
				p.Current = completed
				p.Total = total
			})
		}))

		result := &JobResult{JobID: job.id, Kind: JobFetch}
		if res != nil {
			result.Records = res.Fetched
			result.Total = res.Total
			result.Failed = res.Failed
			result.Duration = res.Duration
		}
		return result, err
	})
}

// Fetch retrieves the catalog and replaces the collection, blocking until
// done. observer may be nil. It fails with ErrBusy while another fetch or
// import runs.
func (s *Service) Fetch(ctx context.Context, observer pokeapi.ProgressObserver) (*pokeapi.FetchResult, error) {
	if s.fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	if err := s.limiter.TryAcquire(); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	return s.fetch(ctx, observer)
}

// fetch runs a fetch with the limiter slot already held.
func (s *Service) fetch(ctx context.Context, observer pokeapi.ProgressObserver) (*pokeapi.FetchResult, error) {
	s.store.SetBusy(true)
	defer s.store.SetBusy(false)

	res, err := s.fetcher.FetchAll(ctx, observer)
	if err != nil {
		s.recordFailure("fetch", err)
		return nil, err
	}

	s.store.ReplaceAll(res.Records)
	s.metrics.SetStoreRecords(len(res.Records))

	s.logger.Info("fetch applied",
		"records", res.Fetched,
		"failed", len(res.Failed),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// StartImport begins a background import of src and returns its job ID.
// size is the input length in bytes, or 0 when unknown. On success the
// service owns src and closes it when the job ends if it is an io.Closer.
// It fails with ErrBusy while another fetch or import runs.
func (s *Service) StartImport(ctx context.Context, fileName string, src io.Reader, size int64, mappings []csvio.Mapping) (string, error) {
	return s.startJob(ctx, JobImport, fileName, func(ctx context.Context, job *activeJob) (*JobResult, error) {
		if c, ok := src.(io.Closer); ok {
			defer c.Close()
		}

		job.update(func(p *JobProgress) {
			p.Phase = PhaseReading
			p.BytesTotal = size
		})

		counter := csvio.NewCountingReader(src, size)
		res, err := s.importRecords(ctx, counter, mappings, func(n int) {
			job.update(func(p *JobProgress) {
				p.Current = n
				p.BytesRead = counter.Count()
			})
		})

		result := &JobResult{JobID: job.id, Kind: JobImport, FileName: fileName}
		if res != nil {
			result.Records = res.Records
			result.AddedColumns = res.AddedColumns
			result.Duration = res.Duration
		}
		return result, err
	})
}

// Import converts r with mappings and replaces the collection, blocking
// until done. onProgress may be nil. It fails with ErrBusy while another
// fetch or import runs.
func (s *Service) Import(ctx context.Context, r io.Reader, mappings []csvio.Mapping, onProgress csvio.ProgressFunc) (*ImportResult, error) {
	if err := s.limiter.TryAcquire(); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	return s.importRecords(ctx, r, mappings, onProgress)
}

// importRecords runs an import with the limiter slot already held. Mapping
// targets that are neither base fields nor schema columns become new
// columns, registered only once the whole file converted successfully.
func (s *Service) importRecords(ctx context.Context, r io.Reader, mappings []csvio.Mapping, onProgress csvio.ProgressFunc) (*ImportResult, error) {
	start := time.Now()

	s.store.SetBusy(true)
	defer s.store.SetBusy(false)

	resolved, newColumns, err := s.resolveMappings(mappings)
	if err != nil {
		s.recordFailure("import", err)
		return nil, err
	}

	records, err := csvio.Import(ctx, r, resolved, csvio.Options{ChunkSize: s.chunkSize}, onProgress)
	if err != nil {
		s.recordFailure("import", err)
		return nil, err
	}

	added := make([]string, 0, len(newColumns))
	for _, col := range newColumns {
		if err := s.store.AddColumn(col); err != nil {
			// Added concurrently by an edit; the existing column wins.
			if errors.Is(err, store.ErrColumnExists) {
				continue
			}
			s.recordFailure("import", err)
			return nil, err
		}
		added = append(added, col.ID)
	}

	s.store.ReplaceAll(records)

	res := &ImportResult{
		Records:      len(records),
		AddedColumns: added,
		Duration:     time.Since(start),
	}
	s.metrics.ObserveImport(res.Duration, res.Records)
	s.metrics.SetStoreRecords(res.Records)

	s.logger.Info("import applied",
		"records", res.Records,
		"added_columns", added,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// resolveMappings normalises mapping targets. Base fields and existing
// columns pass through; any other target is turned into a column whose ID
// replaces the target. Mappings without a target are dropped.
func (s *Service) resolveMappings(mappings []csvio.Mapping) ([]csvio.Mapping, []pokemon.Column, error) {
	resolved := make([]csvio.Mapping, 0, len(mappings))
	var newColumns []pokemon.Column
	pending := make(map[string]bool)

	for _, m := range mappings {
		m.Field = strings.TrimSpace(m.Field)
		if m.Field == "" {
			continue
		}
		t, err := pokemon.ParseCoercionType(string(m.Type))
		if err != nil {
			return nil, nil, fmt.Errorf("mapping %q: %w", m.Header, err)
		}
		m.Type = t

		if pokemon.IsBaseField(m.Field) {
			resolved = append(resolved, m)
			continue
		}
		if _, ok := s.store.Column(m.Field); ok {
			resolved = append(resolved, m)
			continue
		}

		col, err := pokemon.NewColumn(m.Field, pokemon.ColumnTypeFor(t))
		if err != nil {
			return nil, nil, fmt.Errorf("mapping %q: %w", m.Header, err)
		}
		m.Field = col.ID

		_, exists := s.store.Column(col.ID)
		if !exists && !pending[col.ID] && !pokemon.IsBaseField(col.ID) {
			pending[col.ID] = true
			newColumns = append(newColumns, col)
		}
		resolved = append(resolved, m)
	}
	return resolved, newColumns, nil
}

// recordFailure logs a failed fetch or import and surfaces it on the
// store. Cancellation is logged only.
func (s *Service) recordFailure(op string, err error) {
	if errors.Is(err, context.Canceled) {
		s.logger.Info(op + " cancelled")
		return
	}
	s.logger.Error(op+" failed", "error", err)
	s.store.SetError(FormatUserError(err))
}

// ReadHeaders returns the header row of a CSV source.
func (s *Service) ReadHeaders(r io.Reader) ([]string, error) {
	return csvio.ReadHeaders(r)
}

// Export writes the collection as CSV. It fails with csvio.ErrNoData when
// the store is empty.
func (s *Service) Export(w io.Writer) error {
	records, columns := s.store.Snapshot()
	return csvio.Export(w, records, columns)
}

// Records returns one page of the collection.
func (s *Service) Records(opts store.QueryOptions) store.Page {
	return s.store.Query(opts)
}

// InsertRecord appends r to the collection and returns the stored copy.
func (s *Service) InsertRecord(r pokemon.Record) pokemon.Record {
	stored := s.store.Insert(r)
	s.metrics.SetStoreRecords(s.store.Len())
	return stored
}

// UpdateRecord merges patch into the first record with id.
func (s *Service) UpdateRecord(id int, patch store.Patch) error {
	found, err := s.store.Update(id, patch)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	return nil
}

// RemoveRecord deletes every record with id and returns how many went.
func (s *Service) RemoveRecord(id int) (int, error) {
	n := s.store.Remove(id)
	if n == 0 {
		return 0, fmt.Errorf("%w: %d", ErrRecordNotFound, id)
	}
	s.metrics.SetStoreRecords(s.store.Len())
	return n, nil
}

// BulkUpdate applies patch to every record matching all filters.
func (s *Service) BulkUpdate(filters []store.Filter, patch store.Patch) (int, error) {
	pred, err := store.Match(filters...)
	if err != nil {
		return 0, err
	}
	return s.store.BulkUpdate(pred, patch)
}

// AddColumn creates a column from a display name and type name and adds
// it to the schema.
func (s *Service) AddColumn(name, typeName string) (pokemon.Column, error) {
	t, err := pokemon.ParseColumnType(typeName)
	if err != nil {
		return pokemon.Column{}, err
	}
	col, err := pokemon.NewColumn(name, t)
	if err != nil {
		return pokemon.Column{}, err
	}
	if err := s.store.AddColumn(col); err != nil {
		return pokemon.Column{}, err
	}
	return col, nil
}

// RemoveColumn drops a column and its values.
func (s *Service) RemoveColumn(id string) error {
	if !s.store.RemoveColumn(id) {
		return fmt.Errorf("%w: %s", ErrColumnNotFound, id)
	}
	return nil
}

// Reset empties the collection and schema.
func (s *Service) Reset() {
	s.store.Clear()
	s.metrics.SetStoreRecords(0)
	s.logger.Info("store reset")
}

// Shutdown cancels running jobs and waits for them to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	for _, job := range s.jobs {
		job.cancel()
	}
	s.mu.RUnlock()

	return s.limiter.WaitForDrain(ctx)
}
