package crawler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
	"github.com/cristian081496/ontario-directory-scraper/internal/browser/memory"
	"github.com/cristian081496/ontario-directory-scraper/internal/export"
	"github.com/cristian081496/ontario-directory-scraper/internal/extract"
	"github.com/cristian081496/ontario-directory-scraper/internal/member"
	"github.com/cristian081496/ontario-directory-scraper/internal/metrics"
	pubmemory "github.com/cristian081496/ontario-directory-scraper/internal/publisher/memory"
	"github.com/cristian081496/ontario-directory-scraper/internal/storage/local"
	storememory "github.com/cristian081496/ontario-directory-scraper/internal/storage/memory"
)

func fixedRunID() (string, error) { return "run-1", nil }

func newTestEngine(t *testing.T, b browser.Browser, concurrency int, opts ...Option) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	enricher := NewEnricher(EnricherConfig{
		NavigationTimeout: time.Second,
		SelectorTimeout:   10 * time.Millisecond,
	}, b, extract.NewProfile(extract.DefaultProfileSelectors()), nil, nil)
	opts = append([]Option{WithRunID(fixedRunID)}, opts...)
	return NewEngine(b, testPaginator(0), enricher, export.NewCSVExporter(dir, "members.csv", nil), concurrency, opts...), dir
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestEngineRunTwoPageDirectory(t *testing.T) {
	t.Parallel()

	b := memory.New()
	b.SetPage(pageURL(1), listingHTML(true,
		testCard{id: 1, company: "Acme Signs", city: "Toronto"},
		testCard{id: 2, company: "Beta Graphics", city: "Ottawa"},
		testCard{id: 3, company: "Gamma Displays", city: "London"},
	))
	b.SetPage(pageURL(2), listingHTML(false))
	b.SetPage(profileURL(1), profileHTML("Jane", "Doe", "jane@acme.ca"))
	b.Fail(profileURL(2), errors.New("navigation timeout"))
	b.SetPage(profileURL(3), profileHTML("Sam", "Lee", "sam@gamma.ca"))

	reg := prometheus.NewRegistry()
	store := storememory.NewMemberStore()
	blobs := storememory.NewBlobStore()
	pub := pubmemory.New()
	engine, dir := newTestEngine(t, b, 5,
		WithMetrics(metrics.New(reg)),
		WithMemberStore(store),
		WithBlobStore(blobs, "exports"),
		WithPublisher(pub, "member-runs"),
	)

	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{
		RunID:     "run-1",
		Path:      filepath.Join(dir, "members.csv"),
		ObjectURI: "memory://exports/run-1/members.csv",
		Pages:     2,
		Cards:     3,
		Unique:    3,
		Enriched:  2,
		Degraded:  1,
		Exported:  3,
	}, res)

	rows := readRows(t, res.Path)
	require.Len(t, rows, 4)
	assert.Equal(t, export.Header, rows[0])
	assert.Equal(t, []string{"Acme Signs", "Jane Doe", "416-555-0100", "jane@acme.ca", "Toronto", "ON", "", "Supplier Member"}, rows[1])
	assert.Equal(t, []string{"Beta Graphics", "", "", "", "Ottawa", "ON", "", ""}, rows[2])
	assert.Equal(t, "Sam Lee", rows[3][1])

	assert.Len(t, store.Members("run-1"), 3)
	_, ok := blobs.Object("exports/run-1/members.csv")
	assert.True(t, ok)
	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "member-runs", msgs[0].Topic)
	summary, ok := msgs[0].Payload.(RunSummary)
	require.True(t, ok)
	assert.Equal(t, 3, summary.Exported)

	assert.Equal(t, 0, b.OpenPages())
}

func TestEngineRunArchivesExport(t *testing.T) {
	t.Parallel()

	b := memory.New()
	b.SetPage(pageURL(1), listingHTML(false, testCard{company: "Walk-in Member"}))

	archiveDir := t.TempDir()
	archive, err := local.New(local.Config{BaseDir: archiveDir})
	require.NoError(t, err)

	engine, _ := newTestEngine(t, b, 2, WithArchive(archive))
	res, err := engine.Run(context.Background())
	require.NoError(t, err)

	archived := filepath.Join(archiveDir, "run-1", "members.csv")
	assert.Equal(t, "file://"+archived, res.ArchiveURI)
	want, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	got, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestEngineRunDedupesAcrossPages(t *testing.T) {
	t.Parallel()

	b := memory.New()
	b.SetPage(pageURL(1), listingHTML(true,
		testCard{id: 1, company: "Acme Signs", city: "Toronto"},
		testCard{company: "Walk-in Member"},
	))
	b.SetPage(pageURL(2), listingHTML(false,
		testCard{id: 1, company: "Acme Signs", city: "Toronto"},
		testCard{company: "Walk-in Member"},
	))
	b.SetPage(profileURL(1), profileHTML("Jane", "Doe", "jane@acme.ca"))

	engine, _ := newTestEngine(t, b, 2)
	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Cards)
	assert.Equal(t, 2, res.Unique)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Enriched)

	rows := readRows(t, res.Path)
	require.Len(t, rows, 3)
	assert.Equal(t, "Walk-in Member", rows[2][0])
}

func TestEngineRunBoundsOpenPages(t *testing.T) {
	t.Parallel()

	b := memory.New()
	cards := make([]testCard, 0, 7)
	for id := 1; id <= 7; id++ {
		cards = append(cards, testCard{id: id, company: fmt.Sprintf("Member %d", id), city: "Toronto"})
		b.SetPage(profileURL(id), profileHTML("First", "Last", "m@example.com"))
	}
	b.SetPage(pageURL(1), listingHTML(false, cards...))
	b.SetDelay(5 * time.Millisecond)

	engine, _ := newTestEngine(t, b, 3)
	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, res.Enriched)
	assert.LessOrEqual(t, b.PeakPages(), 3)
	assert.Equal(t, 8, b.ClosedPages())
}

func TestEngineRunNoValidRecords(t *testing.T) {
	t.Parallel()

	b := memory.New()
	b.SetPage(pageURL(1), listingHTML(false, testCard{company: ""}))

	engine, dir := newTestEngine(t, b, 5)
	res, err := engine.Run(context.Background())
	require.ErrorIs(t, err, ErrNoValidRecords)
	assert.Empty(t, res.Path)
	assert.Equal(t, 1, res.Unique)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type emptyExporter struct{ err error }

func (e emptyExporter) Export([]member.Record) (string, error) { return "", e.err }

func TestEngineRunExporterSavedNothing(t *testing.T) {
	t.Parallel()

	for name, exportErr := range map[string]error{
		"empty path":       nil,
		"no valid records": export.ErrNoValidRecords,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			b := memory.New()
			b.SetPage(pageURL(1), listingHTML(false, testCard{company: "Walk-in Member"}))
			enricher := NewEnricher(EnricherConfig{NavigationTimeout: time.Second, SelectorTimeout: 10 * time.Millisecond},
				b, extract.NewProfile(extract.DefaultProfileSelectors()), nil, nil)
			blobs := storememory.NewBlobStore()
			engine := NewEngine(b, testPaginator(0), enricher, emptyExporter{err: exportErr}, 2,
				WithRunID(fixedRunID), WithBlobStore(blobs, ""))

			res, err := engine.Run(context.Background())
			require.NoError(t, err)
			assert.Empty(t, res.Path)
			assert.Zero(t, res.Exported)
			assert.Zero(t, blobs.Len())
		})
	}
}

func TestEngineRunFiveMembersOneProfileFails(t *testing.T) {
	t.Parallel()

	b := memory.New()
	cards := make([]testCard, 0, 5)
	for id := 1; id <= 5; id++ {
		cards = append(cards, testCard{id: id, company: fmt.Sprintf("Member %d", id), city: "Toronto"})
		b.SetPage(profileURL(id), profileHTML("First", fmt.Sprintf("Last%d", id), "m@example.com"))
	}
	b.Fail(profileURL(3), errors.New("navigation timeout"))
	b.SetPage(pageURL(1), listingHTML(false, cards...))

	engine, _ := newTestEngine(t, b, 5)
	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Unique)
	assert.Equal(t, 4, res.Enriched)
	assert.Equal(t, 1, res.Degraded)
	assert.Equal(t, 5, res.Exported)

	rows := readRows(t, res.Path)
	require.Len(t, rows, 6)
	for i, row := range rows[1:] {
		assert.Equal(t, fmt.Sprintf("Member %d", i+1), row[0])
	}
	assert.Empty(t, rows[3][1], "failed profile keeps listing-only fields")
	assert.Equal(t, "First Last1", rows[1][1])
	assert.LessOrEqual(t, b.PeakPages(), 5)
	assert.Equal(t, 0, b.OpenPages())
}

func TestEngineRunNavigationFailureAborts(t *testing.T) {
	t.Parallel()

	b := memory.New()
	b.Fail(pageURL(1), errors.New("dns failure"))

	engine, _ := newTestEngine(t, b, 5)
	_, err := engine.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listing page 1")
	assert.Equal(t, 0, b.OpenPages())
}

func TestEngineRunSinkFailuresAreNotFatal(t *testing.T) {
	t.Parallel()

	b := memory.New()
	b.SetPage(pageURL(1), listingHTML(false, testCard{company: "Walk-in Member"}))

	boom := errors.New("unavailable")
	store := storememory.NewMemberStore()
	store.Fail(boom)
	blobs := storememory.NewBlobStore()
	blobs.Fail(boom)
	pub := pubmemory.New()
	pub.Fail(boom)

	engine, _ := newTestEngine(t, b, 5,
		WithMemberStore(store),
		WithBlobStore(blobs, ""),
		WithPublisher(pub, "runs"),
	)
	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.SinkErrors)
	assert.FileExists(t, res.Path)
	assert.Empty(t, res.ObjectURI)
}

func TestEngineRunStaticBrowser(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/member-directory", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Query().Get("page") == "2" {
			_, _ = w.Write([]byte(listingHTML(false)))
			return
		}
		_, _ = w.Write([]byte(listingHTML(true,
			testCard{id: 1, company: "Acme Signs", city: "Toronto"},
			testCard{id: 2, company: "Beta Graphics", city: "Ottawa"},
		)))
	})
	mux.HandleFunc("/Sys/PublicProfile/1", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(profileHTML("Jane", "Doe", "jane@acme.ca")))
	})
	mux.HandleFunc("/Sys/PublicProfile/2", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	b := browser.NewStatic(browser.Config{NavigationTimeout: 5 * time.Second})
	dir := t.TempDir()
	paginator := NewPaginator(PaginatorConfig{
		BaseURL:         srv.URL + "/member-directory",
		SelectorTimeout: time.Millisecond,
	}, extract.NewListing(extract.DefaultListingSelectors()), nil, nil)
	enricher := NewEnricher(EnricherConfig{}, b, extract.NewProfile(extract.DefaultProfileSelectors()), nil, nil)
	engine := NewEngine(b, paginator, enricher, export.NewCSVExporter(dir, "members.csv", nil), 2)

	res, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, 1, res.Enriched)
	assert.Equal(t, 1, res.Degraded)
	assert.NotEmpty(t, res.RunID)

	rows := readRows(t, res.Path)
	require.Len(t, rows, 3)
	assert.Equal(t, "Jane Doe", rows[1][1])
	assert.Equal(t, "Ottawa", rows[2][4])
}
