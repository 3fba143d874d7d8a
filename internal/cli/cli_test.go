package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/pokelab/internal/core"
	"github.com/JonMunkholm/pokelab/internal/csvio"
	"github.com/JonMunkholm/pokelab/internal/pokeapi"
	"github.com/JonMunkholm/pokelab/internal/pokemon"
)

type stubFetcher struct {
	records []pokemon.Record
	failed  []pokeapi.FailedEntry
	err     error
}

func (f *stubFetcher) FetchAll(ctx context.Context, observer pokeapi.ProgressObserver) (*pokeapi.FetchResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	total := len(f.records) + len(f.failed)
	if observer != nil {
		observer.OnProgress(total, total)
	}
	return &pokeapi.FetchResult{
		Records: f.records,
		Total:   total,
		Fetched: len(f.records),
		Failed:  f.failed,
	}, nil
}

func stubRecords(names ...string) []pokemon.Record {
	out := make([]pokemon.Record, len(names))
	for i, n := range names {
		r := pokemon.NewRecord(i + 1)
		r.Name = n
		out[i] = r
	}
	return out
}

// run executes pokectl with args and returns stdout, stderr and the error.
func run(t *testing.T, f core.Fetcher, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&app{fetcher: f})
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestFetchCommand(t *testing.T) {
	f := &stubFetcher{
		records: stubRecords("Bulbasaur", "Ivysaur"),
		failed:  []pokeapi.FailedEntry{{Name: "missingno", Error: "status 404"}},
	}
	out := filepath.Join(t.TempDir(), "table.csv")

	stdout, stderr, err := run(t, f, "fetch", "--out", out)
	require.NoError(t, err)

	assert.Contains(t, stdout, "fetched 2 of 3 entries into "+out)
	assert.Contains(t, stdout, "skipped missingno: status 404")
	assert.Contains(t, stderr, "fetched 3/3")

	csv := readFile(t, out)
	assert.True(t, strings.HasPrefix(csv, "id,name,"))
	assert.Contains(t, csv, "Ivysaur")
}

func TestFetchCommandJSON(t *testing.T) {
	f := &stubFetcher{records: stubRecords("Pidgey")}
	out := filepath.Join(t.TempDir(), "table.csv")

	stdout, _, err := run(t, f, "fetch", "--json", "-o", out)
	require.NoError(t, err)

	var summary fetchSummary
	require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
	assert.Equal(t, out, summary.File)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Fetched)
	assert.Empty(t, summary.Failed)
}

func TestFetchCommandFailure(t *testing.T) {
	f := &stubFetcher{err: fmt.Errorf("list entries: %w", pokeapi.ErrNetwork)}
	out := filepath.Join(t.TempDir(), "table.csv")

	_, _, err := run(t, f, "fetch", "-o", out)
	require.Error(t, err)
	assert.ErrorIs(t, err, pokeapi.ErrNetwork)
	assert.NoFileExists(t, out)

	var buf bytes.Buffer
	assert.Equal(t, exitUserError, reportError(&buf, err))
	assert.Contains(t, buf.String(), "NET001")
}

func TestHeadersCommand(t *testing.T) {
	path := writeFile(t, "lab.csv", "\ufeffName,HP,Legendary Status\nPikachu,35,true\n")

	stdout, _, err := run(t, nil, "headers", path)
	require.NoError(t, err)
	assert.Equal(t, "Name\nHP\nLegendary Status\n", stdout)

	stdout, _, err = run(t, nil, "headers", "--json", path)
	require.NoError(t, err)
	var headers []string
	require.NoError(t, json.Unmarshal([]byte(stdout), &headers))
	assert.Equal(t, []string{"Name", "HP", "Legendary Status"}, headers)
}

func TestHeadersCommandErrors(t *testing.T) {
	_, _, err := run(t, nil, "headers")
	assert.Error(t, err)

	_, _, err = run(t, nil, "headers", filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)

	empty := writeFile(t, "empty.csv", "")
	_, _, err = run(t, nil, "headers", empty)
	assert.ErrorIs(t, err, csvio.ErrFormat)
}

func TestConvertCommandWithMappings(t *testing.T) {
	path := writeFile(t, "lab.csv", "Name,HP,Legendary Status\nPikachu,35,true\nMewtwo,106,no\n")
	out := filepath.Join(t.TempDir(), "table.csv")

	stdout, _, err := run(t, nil, "convert", path,
		"--map", "Name=name",
		"--map", "HP=hp:number",
		"--map", "Legendary Status=Legendary Status:boolean",
		"--out", out,
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, "converted 2 records into "+out)
	assert.Contains(t, stdout, "added column legendary_status")

	csv := readFile(t, out)
	lines := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[0], ",legendary_status"))
	assert.Contains(t, lines[1], "Pikachu")
	assert.True(t, strings.HasSuffix(lines[1], ",true"))
	assert.True(t, strings.HasSuffix(lines[2], ",false"))
}

func TestConvertCommandIdentityToStdout(t *testing.T) {
	path := writeFile(t, "table.csv", "name,hp\nEevee,55\n")

	stdout, _, err := run(t, nil, "convert", path, "--out", "-")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Eevee")
	assert.Contains(t, stdout, "converted 1 records into -")
}

func TestConvertCommandErrors(t *testing.T) {
	path := writeFile(t, "lab.csv", "Name\nPikachu\n")

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"bad mapping", []string{"convert", path, "--map", "Name"}, nil},
		{"unknown type", []string{"convert", path, "--map", "Name=name:date"}, nil},
		{"malformed csv", []string{"convert", writeFile(t, "bad.csv", "name,hp\nRaichu,6\"0\n"), "-o", "-"}, csvio.ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, nil, tt.args...)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, exitSysError, reportError(&buf, errors.New("disk full")))
	assert.Equal(t, "Error: disk full\n", buf.String())

	buf.Reset()
	assert.Equal(t, exitUserError, reportError(&buf, core.ErrBusy))
	assert.Contains(t, buf.String(), "BUSY001")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := run(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "pokectl ")
	assert.Contains(t, stdout, modulePath)
}
