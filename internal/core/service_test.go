package core

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
	"github.com/JonMunkholm/pokelab/internal/pokemon"
	"github.com/JonMunkholm/pokelab/internal/store"
)

// stubFetcher returns canned records. When block is set, FetchAll waits
// for it to close or for ctx to end.
type stubFetcher struct {
	records []pokemon.Record
	err     error
	block   chan struct{}
	calls   atomic.Int32
}

func (f *stubFetcher) FetchAll(ctx context.Context, observer pokeapi.ProgressObserver) (*pokeapi.FetchResult, error) {
	f.calls.Add(1)
	if observer != nil {
		observer.OnProgress(0, len(f.records))
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	if observer != nil {
		observer.OnProgress(len(f.records), len(f.records))
	}
	return &pokeapi.FetchResult{
		Records: f.records,
		Total:   len(f.records),
		Fetched: len(f.records),
	}, nil
}

func testRecords(names ...string) []pokemon.Record {
	out := make([]pokemon.Record, len(names))
	for i, n := range names {
		r := pokemon.NewRecord(i + 1)
		r.Name = n
		out[i] = r
	}
	return out
}

func newTestService(t *testing.T, f Fetcher) *Service {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store.New(), f, WithLogger(logger), WithJobRetention(time.Minute))
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestFetchReplacesCollection(t *testing.T) {
	f := &stubFetcher{records: testRecords("Bulbasaur", "Ivysaur")}
	svc := newTestService(t, f)
	svc.Store().ReplaceAll(testRecords("Stale"))

	res, err := svc.Fetch(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Fetched)

	records := svc.Store().Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Bulbasaur", records[0].Name)
	assert.False(t, svc.Store().Busy())
	assert.Empty(t, svc.Store().Err())
}

func TestFetchFailureKeepsCollection(t *testing.T) {
	f := &stubFetcher{err: &pokeapi.NetworkError{URL: "https://pokeapi.co/api/v2/pokemon", StatusCode: 503}}
	svc := newTestService(t, f)
	svc.Store().ReplaceAll(testRecords("Pikachu"))

	_, err := svc.Fetch(context.Background(), nil)
	require.ErrorIs(t, err, pokeapi.ErrNetwork)

	assert.Equal(t, 1, svc.Store().Len())
	assert.Contains(t, svc.Store().Err(), "NET001")
	assert.False(t, svc.Store().Busy())
}

func TestStartFetchRejectsConcurrentWork(t *testing.T) {
	f := &stubFetcher{records: testRecords("Mew"), block: make(chan struct{})}
	svc := newTestService(t, f)

	id, err := svc.StartFetch(context.Background())
	require.NoError(t, err)

	_, err = svc.StartFetch(context.Background())
	assert.ErrorIs(t, err, ErrBusy)

	_, err = svc.Import(context.Background(), strings.NewReader("name\nMew\n"), nil, nil)
	assert.ErrorIs(t, err, ErrBusy)

	_, err = svc.StartImport(context.Background(), "a.csv", strings.NewReader("name\nMew\n"), 0, nil)
	assert.ErrorIs(t, err, ErrBusy)

	require.Eventually(t, svc.Store().Busy, time.Second, 5*time.Millisecond)
	assert.Len(t, svc.Status().Active, 1)

	close(f.block)
	res, err := svc.WaitJob(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Records)
	assert.Empty(t, res.Code)

	// The slot is free once the job reports.
	id2, err := svc.StartFetch(context.Background())
	require.NoError(t, err)
	_, err = svc.WaitJob(waitCtx(t), id2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestCancelJob(t *testing.T) {
	f := &stubFetcher{records: testRecords("Mew"), block: make(chan struct{})}
	svc := newTestService(t, f)
	svc.Store().ReplaceAll(testRecords("Ditto"))

	id, err := svc.StartFetch(context.Background())
	require.NoError(t, err)
	require.NoError(t, svc.CancelJob(id))

	res, err := svc.WaitJob(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, "JOB002", res.Code)

	progress, _, err := svc.JobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, PhaseCancelled, progress.Phase)

	// Cancellation is not an error state and keeps the previous collection.
	assert.Empty(t, svc.Store().Err())
	assert.Equal(t, "Ditto", svc.Store().Records()[0].Name)
	assert.False(t, svc.Store().Busy())
}

func TestSubscribeProgressEndsWithTerminalPhase(t *testing.T) {
	f := &stubFetcher{records: testRecords("Eevee", "Vaporeon", "Jolteon"), block: make(chan struct{})}
	svc := newTestService(t, f)

	id, err := svc.StartFetch(context.Background())
	require.NoError(t, err)

	ch, err := svc.SubscribeProgress(id)
	require.NoError(t, err)
	close(f.block)

	var last JobProgress
	timeout := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case p, ok := <-ch:
			if !ok {
				done = true
				break
			}
			last = p
		case <-timeout:
			t.Fatal("progress channel never closed")
		}
	}

	assert.Equal(t, PhaseComplete, last.Phase)
	assert.Equal(t, JobFetch, last.Kind)
	assert.Equal(t, id, last.JobID)

	// Subscribing after the end yields the final state and a closed channel.
	late, err := svc.SubscribeProgress(id)
	require.NoError(t, err)
	p, ok := <-late
	require.True(t, ok)
	assert.Equal(t, PhaseComplete, p.Phase)
	_, ok = <-late
	assert.False(t, ok)
}

func TestUnknownJob(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.SubscribeProgress("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, svc.CancelJob("nope"), ErrJobNotFound)
	_, _, err = svc.JobStatus("nope")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestStartFetchWithoutFetcher(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.StartFetch(context.Background())
	assert.Error(t, err)
}

const labCSV = "Name,HP,Legendary Status,Region\n" +
	"Pikachu,35,true,Kanto\n" +
	"Mewtwo,106,no,Kanto\n"

func labMappings() []csvio.Mapping {
	return []csvio.Mapping{
		{Header: "Name", Field: pokemon.FieldName, Type: pokemon.CoerceString},
		{Header: "HP", Field: pokemon.FieldHP, Type: pokemon.CoerceNumber},
		{Header: "Legendary Status", Field: "Legendary Status", Type: pokemon.CoerceBoolean},
		{Header: "Region", Field: ""},
	}
}

func TestImportRegistersColumns(t *testing.T) {
	svc := newTestService(t, nil)

	res, err := svc.Import(context.Background(), strings.NewReader(labCSV), labMappings(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, []string{"legendary_status"}, res.AddedColumns)

	col, ok := svc.Store().Column("legendary_status")
	require.True(t, ok)
	assert.Equal(t, pokemon.ColumnBoolean, col.Type)
	assert.Equal(t, "Legendary Status", col.Name)

	records := svc.Store().Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Pikachu", records[0].Name)
	assert.Equal(t, 35, records[0].HP)
	assert.Equal(t, true, records[0].Extra["legendary_status"])
	assert.Equal(t, false, records[1].Extra["legendary_status"])
	_, hasRegion := records[0].Extra["region"]
	assert.False(t, hasRegion)
}

func TestImportIntoExistingColumn(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.AddColumn("Legendary Status", "boolean")
	require.NoError(t, err)

	res, err := svc.Import(context.Background(), strings.NewReader(labCSV), []csvio.Mapping{
		{Header: "Legendary Status", Field: "legendary_status", Type: pokemon.CoerceBoolean},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.AddedColumns)
	assert.Len(t, svc.Store().Columns(), 1)
}

func TestImportFailureLeavesStoreUntouched(t *testing.T) {
	svc := newTestService(t, nil)
	svc.Store().ReplaceAll(testRecords("Snorlax"))

	bad := "Name,HP,Legendary Status\nRaichu,6\"0,false\n"
	_, err := svc.Import(context.Background(), strings.NewReader(bad), labMappings(), nil)
	require.ErrorIs(t, err, csvio.ErrFormat)

	assert.Empty(t, svc.Store().Columns())
	assert.Equal(t, "Snorlax", svc.Store().Records()[0].Name)
	assert.Contains(t, svc.Store().Err(), "FMT001")
}

func TestImportRejectsUnknownType(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.Import(context.Background(), strings.NewReader(labCSV), []csvio.Mapping{
		{Header: "HP", Field: "hp", Type: "date"},
	}, nil)
	assert.ErrorIs(t, err, pokemon.ErrUnknownType)
}

type closeTracker struct {
	io.Reader
	closed atomic.Bool
}

func (c *closeTracker) Close() error {
	c.closed.Store(true)
	return nil
}

func TestStartImportReportsAndCloses(t *testing.T) {
	svc := newTestService(t, nil)
	src := &closeTracker{Reader: strings.NewReader(labCSV)}

	id, err := svc.StartImport(context.Background(), "lab.csv", src, int64(len(labCSV)), labMappings())
	require.NoError(t, err)

	res, err := svc.WaitJob(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, "lab.csv", res.FileName)
	assert.Equal(t, 2, res.Records)
	assert.True(t, src.closed.Load())

	progress, _, err := svc.JobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, PhaseComplete, progress.Phase)
	assert.Equal(t, int64(len(labCSV)), progress.BytesTotal)
}

func TestStartImportFailure(t *testing.T) {
	svc := newTestService(t, nil)

	id, err := svc.StartImport(context.Background(), "empty.csv", strings.NewReader(""), 0, nil)
	require.NoError(t, err)

	res, err := svc.WaitJob(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, "FMT001", res.Code)
	assert.Contains(t, res.Error, "Code: FMT001")

	progress, _, err := svc.JobStatus(id)
	require.NoError(t, err)
	assert.Equal(t, PhaseFailed, progress.Phase)
}

func TestRecordEdits(t *testing.T) {
	svc := newTestService(t, nil)
	svc.Store().ReplaceAll(testRecords("Bulbasaur", "Charmander", "Squirtle"))

	require.NoError(t, svc.UpdateRecord(2, store.Patch{pokemon.FieldHP: 39}))
	assert.Equal(t, 39, svc.Store().Records()[1].HP)

	assert.ErrorIs(t, svc.UpdateRecord(99, store.Patch{pokemon.FieldHP: 1}), ErrRecordNotFound)
	assert.ErrorIs(t, svc.UpdateRecord(1, store.Patch{"nickname": "x"}), store.ErrUnknownField)

	n, err := svc.RemoveRecord(3)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	_, err = svc.RemoveRecord(3)
	assert.ErrorIs(t, err, ErrRecordNotFound)

	svc.InsertRecord(pokemon.NewRecord(7))
	assert.Equal(t, 3, svc.Store().Len())
}

func TestBulkUpdate(t *testing.T) {
	svc := newTestService(t, nil)
	svc.Store().ReplaceAll(testRecords("Bulbasaur", "Charmander", "Squirtle"))

	n, err := svc.BulkUpdate([]store.Filter{
		{Field: pokemon.FieldID, Operator: store.OpGreaterEq, Value: 2},
	}, store.Patch{pokemon.FieldSpeed: 65})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, svc.Store().Records()[0].Speed)
	assert.Equal(t, 65, svc.Store().Records()[2].Speed)

	_, err = svc.BulkUpdate([]store.Filter{{Field: "id", Operator: "like"}}, store.Patch{})
	assert.ErrorIs(t, err, store.ErrInvalidFilter)
}

func TestColumns(t *testing.T) {
	svc := newTestService(t, nil)
	svc.Store().ReplaceAll(testRecords("Onix"))

	col, err := svc.AddColumn("Gen #", "number")
	require.NoError(t, err)
	assert.Equal(t, "gen_", col.ID)
	assert.Equal(t, float64(0), svc.Store().Records()[0].Extra["gen_"])

	_, err = svc.AddColumn("gen  #", "text")
	assert.ErrorIs(t, err, store.ErrColumnExists)
	_, err = svc.AddColumn("Nature", "date")
	assert.ErrorIs(t, err, pokemon.ErrUnknownType)
	_, err = svc.AddColumn("###", "text")
	assert.ErrorIs(t, err, pokemon.ErrInvalidColumn)

	require.NoError(t, svc.RemoveColumn("gen_"))
	assert.ErrorIs(t, svc.RemoveColumn("gen_"), ErrColumnNotFound)
	_, has := svc.Store().Records()[0].Extra["gen_"]
	assert.False(t, has)
}

func TestExport(t *testing.T) {
	svc := newTestService(t, nil)

	var buf bytes.Buffer
	assert.ErrorIs(t, svc.Export(&buf), csvio.ErrNoData)

	svc.Store().ReplaceAll(testRecords("Psyduck"))
	require.NoError(t, svc.Export(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), "id,name,"))
	assert.Contains(t, buf.String(), "Psyduck")
}

func TestReset(t *testing.T) {
	svc := newTestService(t, nil)
	svc.Store().ReplaceAll(testRecords("Magikarp"))
	_, err := svc.AddColumn("Shiny", "boolean")
	require.NoError(t, err)

	svc.Reset()
	st := svc.Status()
	assert.Zero(t, st.Records)
	assert.Empty(t, st.Columns)
}

func TestShutdownCancelsJobs(t *testing.T) {
	f := &stubFetcher{records: testRecords("Mew"), block: make(chan struct{})}
	svc := newTestService(t, f)

	id, err := svc.StartFetch(context.Background())
	require.NoError(t, err)

	require.NoError(t, svc.Shutdown(waitCtx(t)))

	res, err := svc.WaitJob(waitCtx(t), id)
	require.NoError(t, err)
	assert.Equal(t, "JOB002", res.Code)
}
