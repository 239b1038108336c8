package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethpandaops/tlareport/pkg/aggregate"
	"github.com/ethpandaops/tlareport/pkg/cache"
	"github.com/ethpandaops/tlareport/pkg/ingest"
	"github.com/ethpandaops/tlareport/pkg/lists"
	"github.com/ethpandaops/tlareport/pkg/notify"
	"github.com/ethpandaops/tlareport/pkg/observability"
	"github.com/ethpandaops/tlareport/pkg/query"
	"github.com/ethpandaops/tlareport/pkg/records"
	"github.com/ethpandaops/tlareport/pkg/reference"
	"github.com/ethpandaops/tlareport/pkg/rendering"
	"github.com/ethpandaops/tlareport/pkg/shift"
	"github.com/ethpandaops/tlareport/pkg/sources"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Load paths
const (
	PathQuery  = "query"
	PathIngest = "ingest"
)

// Run outcomes
const (
	OutcomeOK     = "ok"
	OutcomeNoData = "no_data"
	OutcomeError  = "error"
)

var (
	// ErrNoSources is returned when discovery finds no source with dated records
	ErrNoSources = errors.New("no source files with date data found")
)

// Request selects what one run reports on
type Request struct {
	Window records.Window
	// Trend, when set, adds daily and weekly trends over this window
	Trend *records.Window
	// Notify sends the summary to the recipient list
	Notify bool
}

// Result is the outcome of one run. Report is nil when the window held no data.
type Result struct {
	RunID    string
	Report   *rendering.Report
	Summary  string
	Duration time.Duration
}

// NoData reports whether the run found no records in its window
func (r *Result) NoData() bool {
	return r.Report == nil
}

// Option customises a Service
type Option func(*Service)

// WithNotifier replaces the default log notifier
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service runs reports
type Service struct {
	log logrus.FieldLogger
	cfg *Config

	store      sources.ExtentStore
	catalog    *sources.Catalog
	cache      *cache.Manager
	ingestor   *ingest.Ingestor
	query      *query.Engine
	classifier *shift.Classifier
	reference  *reference.DB
	templates  *rendering.TemplateEngine
	renderers  []rendering.Renderer
	notifier   notify.Notifier
	now        func() time.Time
}

// NewService wires every component from the configuration
func NewService(log logrus.FieldLogger, cfg *Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Service{
		log:       log.WithField("component", "report"),
		cfg:       cfg,
		reference: reference.New(&cfg.Reference),
		notifier:  notify.NewLogNotifier(log),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if cfg.Sources.Extents.Redis.Enabled() {
		store, err := sources.NewRedisExtentStoreFromConfig(cfg.Sources.Extents.Redis)
		if err != nil {
			return nil, err
		}

		s.store = store
	}

	catalog, err := sources.NewCatalog(log, &cfg.Sources, s.store)
	if err != nil {
		return nil, err
	}

	s.catalog = catalog

	s.cache, err = cache.NewManager(log, &cfg.Cache, catalog)
	if err != nil {
		return nil, err
	}

	if s.cache.Enabled() {
		catalog.SetHinter(s.cache)
	}

	s.ingestor = ingest.New(log, &cfg.Ingest, catalog, s.cache)
	s.query = query.NewEngine(log, s.cache, catalog, cfg.Ingest.Config)

	boundary, err := cfg.ShiftBoundary()
	if err != nil {
		return nil, err
	}

	s.classifier, err = shift.NewClassifier(boundary)
	if err != nil {
		return nil, err
	}

	s.templates, err = rendering.NewTemplateEngine(cfg.Output.SummaryTemplate)
	if err != nil {
		return nil, err
	}

	if cfg.Output.Workbook != "" {
		s.renderers = append(s.renderers, rendering.NewWorkbookWriter(log, cfg.Output.Workbook))
	}

	if cfg.Output.Artifact != "" {
		artifact, err := rendering.NewArtifactWriter(log, cfg.Output.Artifact, cfg.Output.Format)
		if err != nil {
			return nil, err
		}

		s.renderers = append(s.renderers, artifact)
	}

	return s, nil
}

// Close releases the extents store connection, if any
func (s *Service) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}

	return nil
}

// Catalog returns the source catalog
func (s *Service) Catalog() *sources.Catalog {
	return s.catalog
}

// Cache returns the cache manager
func (s *Service) Cache() *cache.Manager {
	return s.cache
}

// Discover lists the candidate sources
func (s *Service) Discover() ([]sources.File, error) {
	files, err := s.catalog.Discover()
	if err != nil {
		return nil, fmt.Errorf("failed to discover sources: %w", err)
	}

	return files, nil
}

// Refresh brings the cache up to date with every discovered source
func (s *Service) Refresh(ctx context.Context) (*cache.RefreshReport, error) {
	files, err := s.Discover()
	if err != nil {
		return nil, err
	}

	return s.cache.EnsureFresh(ctx, files)
}

// Extents refreshes the cache, then returns the date range of every source
// holding records. Unreadable sources are logged and skipped.
func (s *Service) Extents(ctx context.Context) ([]sources.Extent, error) {
	files, err := s.Discover()
	if err != nil {
		return nil, err
	}

	if _, err := s.cache.EnsureFresh(ctx, files); err != nil {
		return nil, err
	}

	extents, errs := s.catalog.Extents(ctx, files)
	for range errs {
		observability.RecordSourceWarning("extents")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(extents) == 0 {
		return nil, ErrNoSources
	}

	s.log.WithFields(sources.Fields(extents)).Debug("Discovered sources")

	return extents, nil
}

// Run produces one report for the requested window
func (s *Service) Run(ctx context.Context, req Request) (*Result, error) {
	start := s.now()
	result := &Result{RunID: uuid.New().String()}
	log := s.log.WithField("run_id", result.RunID)

	outcome := OutcomeError
	defer func() {
		result.Duration = s.now().Sub(start)
		observability.RecordRun(outcome, result.Duration)
	}()

	extents, err := s.Extents(ctx)
	if err != nil {
		return result, err
	}

	log.WithField("window", req.Window.String()).Info("Generating report")

	loaded, err := s.Load(ctx, req.Window, extents)
	if err != nil {
		return result, err
	}

	if loaded == nil {
		log.WithField("window", req.Window.String()).Warn("No data found for the selected date range")
		outcome = OutcomeNoData

		return result, nil
	}

	log.WithFields(logrus.Fields{"records": len(loaded.Records), "path": loaded.Path}).Info("Total records loaded")

	engine, err := s.aggregator()
	if err != nil {
		return result, err
	}

	agg := engine.Aggregate(loaded.Records)

	report := &rendering.Report{
		RunID:       result.RunID,
		GeneratedAt: start.UTC(),
		Window:      req.Window,
		Path:        loaded.Path,
		Sources:     loaded.Sources,
		Warnings:    loaded.Warnings,
		Result:      agg,
	}

	if req.Trend != nil {
		trend, err := s.Load(ctx, *req.Trend, extents)
		if err != nil {
			return result, err
		}

		if trend == nil {
			log.WithField("trend_window", req.Trend.String()).Warn("No data found for the trend window")
		} else {
			engine.AddTrends(agg, trend.Records)
			report.TrendWindow = req.Trend
			report.Warnings = append(report.Warnings, trend.Warnings...)
		}
	}

	report.References, err = s.reference.LookupAll(agg.Categories())
	if err != nil {
		for _, rerr := range unwrapAll(err) {
			log.WithError(rerr).Warn("Failed to read reference entry")
		}
	}

	result.Report = report

	result.Summary, err = s.templates.Summary(report)
	if err != nil {
		return result, err
	}

	if err := rendering.RenderAll(ctx, report, s.renderers...); err != nil {
		return result, fmt.Errorf("failed to render report: %w", err)
	}

	if req.Notify {
		if err := s.notify(ctx, log, report, result.Summary); err != nil {
			return result, err
		}
	}

	outcome = OutcomeOK

	return result, nil
}

// Loaded is the record set of one window
type Loaded struct {
	Path     string
	Records  []records.Record
	Sources  []string
	Warnings []string
}

// Load reads every record of w from the sources whose extents overlap it.
// The cache query path is used when caching is enabled and more than one
// source participates; the direct ingestion path otherwise. nil means no data.
func (s *Service) Load(ctx context.Context, w records.Window, extents []sources.Extent) (*Loaded, error) {
	files := sources.InWindow(extents, w)
	if len(files) == 0 {
		return nil, nil
	}

	if s.cache.Enabled() && len(files) > 1 {
		res, err := s.query.Query(ctx, w, files)
		if err != nil || res == nil {
			return nil, err
		}

		return &Loaded{
			Path:     PathQuery,
			Records:  res.Records,
			Sources:  append(res.Scanned, res.Parsed...),
			Warnings: ingest.Warnings(res.Warnings),
		}, nil
	}

	res, err := s.ingestor.Ingest(ctx, files, w)
	if err != nil {
		return nil, err
	}

	if len(res.Records) == 0 {
		return nil, nil
	}

	return &Loaded{
		Path:     PathIngest,
		Records:  res.Records,
		Sources:  res.Loaded,
		Warnings: ingest.Warnings(res.Warnings),
	}, nil
}

// aggregator builds an engine with the current exclusion list, read per run
// so edits apply without a restart
func (s *Service) aggregator() (*aggregate.Engine, error) {
	exclude, err := lists.LoadExclusions(s.cfg.Aggregation.ExcludeFile)
	if err != nil {
		return nil, err
	}

	return aggregate.NewEngine(s.log, &s.cfg.Aggregation, s.classifier, exclude)
}

func (s *Service) notify(ctx context.Context, log logrus.FieldLogger, report *rendering.Report, summary string) error {
	recipients, rejected, err := lists.LoadRecipients(s.cfg.Notify.RecipientsFile)
	if err != nil {
		return err
	}

	for _, r := range rejected {
		log.WithField("entry", r).Warn("Ignoring recipient without an address")
	}

	if len(recipients) == 0 {
		log.WithField("file", s.cfg.Notify.RecipientsFile).Warn("No recipients found, no notification will be sent")

		return nil
	}

	var attachments []string
	if s.cfg.Output.Workbook != "" {
		attachments = append(attachments, s.cfg.Output.Workbook)
	}

	return s.notifier.Notify(ctx, &notify.Message{
		Recipients:  recipients,
		Subject:     fmt.Sprintf("%s %s", s.cfg.Notify.Subject, report.Window.String()),
		Body:        summary,
		Attachments: attachments,
	})
}

// unwrapAll splits a joined error into its parts
func unwrapAll(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}

	return []error{err}
}
