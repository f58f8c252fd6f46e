package crawler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cristian081496/ontario-directory-scraper/internal/browser"
	"github.com/cristian081496/ontario-directory-scraper/internal/export"
	"github.com/cristian081496/ontario-directory-scraper/internal/member"
	"github.com/cristian081496/ontario-directory-scraper/internal/metrics"
)

// ErrNoValidRecords is returned when a run produced no record with a company
// name. Nothing is exported in that case.
var ErrNoValidRecords = errors.New("no valid member data found")

// Exporter writes the valid records and returns the path it wrote. An empty
// path or export.ErrNoValidRecords means nothing was saved.
type Exporter interface {
	Export(records []member.Record) (string, error)
}

// Result summarizes one run.
type Result struct {
	RunID      string `json:"runId"`
	Path       string `json:"path"`
	ObjectURI  string `json:"objectUri,omitempty"`
	ArchiveURI string `json:"archiveUri,omitempty"`
	Pages      int    `json:"pages"`
	Cards      int    `json:"cards"`
	Unique     int    `json:"unique"`
	Enriched   int    `json:"enriched"`
	Degraded   int    `json:"degraded"`
	Skipped    int    `json:"skipped"`
	Exported   int    `json:"exported"`
	SinkErrors int    `json:"sinkErrors"`
}

// RunSummary is the payload published when a run completes.
type RunSummary struct {
	Result
	FinishedAt time.Time `json:"finishedAt"`
}

// Engine runs the whole pipeline against one browser.
type Engine struct {
	browser     browser.Browser
	paginator   *Paginator
	enricher    *Enricher
	exporter    Exporter
	concurrency int

	store      MemberStore
	blobs      BlobStore
	blobPrefix string
	archive    BlobStore
	publisher  Publisher
	topic      string
	metrics    *metrics.Metrics
	logger     *zap.Logger
	newRunID   func() (string, error)
}

// Option configures optional Engine collaborators.
type Option func(*Engine)

// WithMemberStore saves exported records after each run.
func WithMemberStore(store MemberStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithBlobStore uploads the CSV under prefix/<run id>/<file name>.
func WithBlobStore(store BlobStore, prefix string) Option {
	return func(e *Engine) {
		e.blobs = store
		e.blobPrefix = prefix
	}
}

// WithArchive copies the CSV to a second blob store under <run id>/<file name>.
func WithArchive(store BlobStore) Option {
	return func(e *Engine) { e.archive = store }
}

// WithPublisher publishes a RunSummary to topic after each run.
func WithPublisher(pub Publisher, topic string) Option {
	return func(e *Engine) {
		e.publisher = pub
		e.topic = topic
	}
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRunID overrides run ID generation.
func WithRunID(fn func() (string, error)) Option {
	return func(e *Engine) { e.newRunID = fn }
}

// NewEngine wires the pipeline stages. Concurrency below 1 is treated as 1.
func NewEngine(
	b browser.Browser,
	paginator *Paginator,
	enricher *Enricher,
	exporter Exporter,
	concurrency int,
	opts ...Option,
) *Engine {
	e := &Engine{
		browser:     b,
		paginator:   paginator,
		enricher:    enricher,
		exporter:    exporter,
		concurrency: max(concurrency, 1),
		logger:      zap.NewNop(),
		newRunID:    newRunID,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// Run crawls the listing, enriches every unique member, exports the valid
// ones and notifies the configured sinks. Sink failures are logged and counted
// but do not fail a run whose CSV was written.
func (e *Engine) Run(ctx context.Context) (res Result, err error) {
	defer func() {
		status := "success"
		if err != nil {
			status = "failed"
		}
		e.metrics.ObserveRun(status)
	}()

	res.RunID, err = e.newRunID()
	if err != nil {
		return res, err
	}
	logger := e.logger.With(zap.String("run_id", res.RunID))

	cards, pages, err := e.crawlListing(ctx)
	res.Pages, res.Cards = pages, len(cards)
	if err != nil {
		return res, err
	}
	logger.Info("listing crawl finished", zap.Int("page", pages), zap.Int("count", len(cards)))

	unique := member.Records(member.Dedupe(cards))
	res.Unique = len(unique)
	for _, r := range unique {
		if r.ProfileURL == "" {
			res.Skipped++
		}
	}
	logger.Info("total unique members found", zap.Int("count", res.Unique))

	enriched, degraded, err := EnrichBatches(ctx, unique, e.concurrency, e.enricher.Enrich, logger)
	res.Degraded = degraded
	res.Enriched = res.Unique - res.Skipped - degraded
	if err != nil {
		return res, fmt.Errorf("enrich profiles: %w", err)
	}
	logger.Info("total members before filtering", zap.Int("count", len(enriched)))

	valid := member.FilterValid(enriched)
	logger.Info("total valid members", zap.Int("count", len(valid)))
	if len(valid) == 0 {
		logger.Error("no valid member data found", zap.Any("records", enriched))
		return res, ErrNoValidRecords
	}

	res.Path, err = e.exporter.Export(valid)
	if errors.Is(err, export.ErrNoValidRecords) || (err == nil && res.Path == "") {
		res.Path = ""
		logger.Warn("exporter saved no data", zap.Int("count", len(valid)))
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("export csv: %w", err)
	}
	res.Exported = len(valid)
	e.metrics.ObserveExport(len(valid))
	logger.Info("export written", zap.String("path", res.Path), zap.Int("count", len(valid)))

	e.runSinks(ctx, logger, valid, &res)
	return res, nil
}

func (e *Engine) crawlListing(ctx context.Context) ([]member.Card, int, error) {
	page, err := e.browser.NewPage(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("open listing page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			e.logger.Debug("close listing page", zap.Error(cerr))
		}
	}()
	return e.paginator.Crawl(ctx, page)
}

func (e *Engine) runSinks(ctx context.Context, logger *zap.Logger, valid []member.Record, res *Result) {
	if e.store != nil {
		if err := e.store.SaveMembers(ctx, res.RunID, valid); err != nil {
			e.sinkFailed(logger, "postgres", err, res)
		}
	}
	if e.blobs != nil {
		object := path.Join(e.blobPrefix, res.RunID, filepath.Base(res.Path))
		uri, err := e.copyExport(ctx, e.blobs, object, res.Path)
		if err != nil {
			e.sinkFailed(logger, "gcs", err, res)
		} else {
			res.ObjectURI = uri
			logger.Info("export uploaded", zap.String("uri", uri))
		}
	}
	if e.archive != nil {
		uri, err := e.copyExport(ctx, e.archive, path.Join(res.RunID, filepath.Base(res.Path)), res.Path)
		if err != nil {
			e.sinkFailed(logger, "archive", err, res)
		} else {
			res.ArchiveURI = uri
			logger.Info("export archived", zap.String("uri", uri))
		}
	}
	if e.publisher != nil {
		summary := RunSummary{Result: *res, FinishedAt: time.Now().UTC()}
		if _, err := e.publisher.Publish(ctx, e.topic, summary); err != nil {
			e.sinkFailed(logger, "pubsub", err, res)
		}
	}
}

func (e *Engine) copyExport(ctx context.Context, store BlobStore, object, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return store.PutObject(ctx, object, "text/csv", f)
}

func (e *Engine) sinkFailed(logger *zap.Logger, sink string, err error, res *Result) {
	res.SinkErrors++
	e.metrics.ObserveSinkError(sink)
	logger.Warn("result sink failed", zap.String("sink", sink), zap.Error(err))
}
