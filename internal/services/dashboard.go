package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"advisor-dashboard/internal/analysis"
	apperrors "advisor-dashboard/internal/errors"
	"advisor-dashboard/internal/ingest"
	"advisor-dashboard/internal/models"
	"advisor-dashboard/internal/observability"
	"advisor-dashboard/internal/store"
)

const maxParseWorkers = 3

// Precomputed holds the unfiltered views, rebuilt whenever a dataset
// changes. A nil view is recomputed on demand.
type Precomputed struct {
	Overview   *models.Overview
	Orders     *models.OrderStatusReport
	Portfolio  *models.CustomerPortfolio
	Filters    models.FilterOptions
	ComputedAt time.Time
}

// SeedFiles names the files loaded at startup. Empty paths are skipped.
type SeedFiles struct {
	Transactions string
	Customers    string
	Strategies   string
}

func (s SeedFiles) byKind() map[models.DatasetKind]string {
	return map[models.DatasetKind]string{
		models.KindTransactions: s.Transactions,
		models.KindCustomers:    s.Customers,
		models.KindStrategies:   s.Strategies,
	}
}

type UploadResult struct {
	Dataset models.DatasetInfo `json:"dataset"`
	Report  ingest.Report      `json:"report"`
}

// Dashboard serves the analysis views over the uploaded datasets.
type Dashboard struct {
	mu          sync.RWMutex
	precomputed *Precomputed

	// writeMu orders dataset changes. A change, the rebuild of the cached
	// views and the snapshot save all happen under it, so the cache and the
	// snapshot always reflect the latest change.
	writeMu sync.Mutex

	store       *store.Store
	snapshotter store.Snapshotter
	opts        analysis.Options
	logger      *slog.Logger
	now         func() time.Time

	passes   atomic.Int64
	failures atomic.Int64
}

func NewDashboard(st *store.Store, snap store.Snapshotter, opts analysis.Options, logger *slog.Logger) *Dashboard {
	if st == nil {
		st = store.New()
	}
	if snap == nil {
		snap = store.NopSnapshotter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dashboard{
		precomputed: &Precomputed{},
		store:       st,
		snapshotter: snap,
		opts:        opts,
		logger:      logger,
		now:         time.Now,
	}
}

// SetData installs ds directly, bypassing ingest and persistence.
func (d *Dashboard) SetData(ds models.Datasets) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.store.Restore(ds, "memory")
	d.recompute(context.Background())
}

// Restore loads the last snapshot, if there is one.
func (d *Dashboard) Restore(ctx context.Context) error {
	ds, err := d.snapshotter.Load(ctx)
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	d.writeMu.Lock()
	d.store.Restore(ds, "snapshot")
	d.recompute(ctx)
	d.writeMu.Unlock()
	d.logger.Info("restored datasets from snapshot",
		"transactions", len(ds.Transactions),
		"customers", len(ds.Customers),
		"strategies", len(ds.Strategies))
	return nil
}

// LoadFromFiles parses the seed files concurrently and installs them only
// if every file parsed. A kind that already holds records, restored from a
// snapshot or uploaded, keeps them and its seed file is ignored.
func (d *Dashboard) LoadFromFiles(ctx context.Context, files SeedFiles) error {
	start := time.Now()

	var mu sync.Mutex
	results := make(map[models.DatasetKind]*ingest.Result)
	held := d.heldKinds()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParseWorkers)
	for kind, path := range files.byKind() {
		if path == "" {
			continue
		}
		if held[kind] {
			d.logger.Info("keeping existing dataset, seed file ignored", "kind", kind, "file", path)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := ingest.ParseFile(kind, path)
			if err != nil {
				return fmt.Errorf("load %s: %w", kind, err)
			}
			mu.Lock()
			results[kind] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if len(results) == 0 {
		return nil
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	paths := files.byKind()
	for kind, res := range results {
		info := d.install(res, paths[kind])
		d.logger.Info("loaded dataset",
			"kind", kind,
			"records", info.Records,
			"skipped", res.Report.Skipped,
			"date_errors", res.Report.DateErrors,
			"file", paths[kind])
	}
	d.recompute(ctx)
	d.persist(ctx)

	d.logger.Info("seed files loaded", "files", len(results), "duration", time.Since(start))
	return nil
}

// Upload parses r as a dataset of kind and replaces the current one. The
// previous dataset stays in place when parsing fails.
func (d *Dashboard) Upload(ctx context.Context, kind models.DatasetKind, filename string, r io.Reader) (*UploadResult, error) {
	if !kind.Valid() {
		return nil, apperrors.NotFound(fmt.Sprintf("unknown dataset %q", kind))
	}

	res, err := ingest.Parse(kind, filename, r)
	if err != nil {
		return nil, uploadError(err)
	}
	if res.Len() == 0 {
		return nil, apperrors.Validation("file contains no data rows")
	}

	d.writeMu.Lock()
	info := d.install(res, filename)
	d.recompute(ctx)
	d.persist(ctx)
	d.writeMu.Unlock()

	observability.LoggerFrom(ctx, d.logger).Info("dataset uploaded",
		"kind", kind,
		"records", info.Records,
		"version", info.Version,
		"skipped", res.Report.Skipped,
		"date_errors", res.Report.DateErrors,
		"negative_amounts", res.Report.NegativeAmounts)

	return &UploadResult{Dataset: info, Report: res.Report}, nil
}

func uploadError(err error) error {
	var missing *ingest.MissingColumnsError
	switch {
	case errors.As(err, &missing):
		return apperrors.ValidationWrap(err, "missing required columns").WithDetails(err.Error())
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		appErr := apperrors.UnsupportedMedia("only .xlsx and .csv files are accepted")
		appErr.Cause = err
		return appErr
	case errors.Is(err, ingest.ErrEmptyFile):
		return apperrors.ValidationWrap(err, "file is empty")
	default:
		return apperrors.BadRequestWrap(err, "could not read file")
	}
}

func (d *Dashboard) heldKinds() map[models.DatasetKind]bool {
	held := make(map[models.DatasetKind]bool)
	for _, info := range d.store.Info() {
		held[info.Kind] = info.Records > 0
	}
	return held
}

func (d *Dashboard) install(res *ingest.Result, source string) models.DatasetInfo {
	switch res.Kind {
	case models.KindTransactions:
		return d.store.ReplaceTransactions(res.Transactions, source)
	case models.KindCustomers:
		return d.store.ReplaceCustomers(res.Customers, source)
	default:
		return d.store.ReplaceStrategies(res.Strategies, source)
	}
}

func (d *Dashboard) Clear(ctx context.Context, kind models.DatasetKind) error {
	if !kind.Valid() {
		return apperrors.NotFound(fmt.Sprintf("unknown dataset %q", kind))
	}
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.store.Clear(kind)
	d.recompute(ctx)
	d.persist(ctx)
	return nil
}

func (d *Dashboard) Reset(ctx context.Context) {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	d.store.Reset()
	d.recompute(ctx)
	d.persist(ctx)
}

// FlushSnapshot writes the current datasets through the snapshotter.
func (d *Dashboard) FlushSnapshot(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.snapshotter.Save(ctx, d.store.Snapshot())
}

// persist saves the current datasets. Callers hold writeMu.
func (d *Dashboard) persist(ctx context.Context) {
	if err := d.snapshotter.Save(ctx, d.store.Snapshot()); err != nil {
		d.logger.Warn("failed to save snapshot", "error", err)
	}
}

// recompute rebuilds the unfiltered views concurrently. A view whose pass
// fails is left nil and retried on the next request. Callers hold writeMu.
func (d *Dashboard) recompute(ctx context.Context) {
	ds := d.store.Snapshot()
	next := &Precomputed{ComputedAt: d.now()}

	var g errgroup.Group
	g.Go(func() error {
		next.Overview, _ = guarded(ctx, d, "overview", func() *models.Overview {
			return analysis.BuildOverview(ds.Transactions, d.opts.TierRank)
		})
		return nil
	})
	g.Go(func() error {
		next.Orders, _ = guarded(ctx, d, "order_status", func() *models.OrderStatusReport {
			return analysis.OrderStatus(ds, d.opts)
		})
		return nil
	})
	g.Go(func() error {
		next.Portfolio, _ = guarded(ctx, d, "customer_portfolio", func() *models.CustomerPortfolio {
			return analysis.CustomerPortfolio(ds.Customers, d.opts)
		})
		return nil
	})
	g.Go(func() error {
		next.Filters = analysis.FilterOptionsOf(ds.Transactions)
		return nil
	})
	g.Wait()

	d.mu.Lock()
	d.precomputed = next
	d.mu.Unlock()
}

func (d *Dashboard) cached() *Precomputed {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.precomputed
}

// guarded runs one analysis pass inside a span. A panic is logged and
// reported as an analysis failure; a nil report means the datasets the
// pass needs are missing.
func guarded[T any](ctx context.Context, d *Dashboard, op string, pass func() *T) (result *T, err error) {
	ctx, span := observability.StartSpan(ctx, "analysis."+op)
	d.passes.Add(1)

	defer func() {
		if r := recover(); r != nil {
			d.failures.Add(1)
			result = nil
			err = apperrors.AnalysisFailed(fmt.Errorf("panic in %s: %v", op, r), "analysis failed")
			observability.LoggerFrom(ctx, d.logger).Error("analysis pass panicked",
				"operation", op, "panic", r, "stack", string(debug.Stack()))
		}
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
		observability.LoggerFrom(ctx, d.logger).Debug("analysis pass", span.LogAttrs()...)
	}()

	result = pass()
	if result == nil {
		err = apperrors.InsufficientData(op + " needs data that has not been uploaded")
	}
	return result, err
}

// Overview returns the transaction dashboard, narrowed by filter when it
// is set.
func (d *Dashboard) Overview(ctx context.Context, filter analysis.TransactionFilter) (*models.Overview, error) {
	if filter.IsZero() {
		if p := d.cached().Overview; p != nil {
			return p, nil
		}
	}
	txs := d.store.Snapshot().Transactions
	return guarded(ctx, d, "overview", func() *models.Overview {
		return analysis.BuildOverview(filter.Apply(txs), d.opts.TierRank)
	})
}

func (d *Dashboard) OrderStatus(ctx context.Context) (*models.OrderStatusReport, error) {
	if p := d.cached().Orders; p != nil {
		return p, nil
	}
	ds := d.store.Snapshot()
	return guarded(ctx, d, "order_status", func() *models.OrderStatusReport {
		return analysis.OrderStatus(ds, d.opts)
	})
}

func (d *Dashboard) AdvisorDetail(ctx context.Context, name string) (*models.AdvisorDetailReport, error) {
	ds := d.store.Snapshot()
	return guarded(ctx, d, "advisor_detail", func() *models.AdvisorDetailReport {
		return analysis.AdvisorDetail(ds, name, d.opts)
	})
}

func (d *Dashboard) CustomerPortfolio(ctx context.Context) (*models.CustomerPortfolio, error) {
	if p := d.cached().Portfolio; p != nil {
		return p, nil
	}
	customers := d.store.Snapshot().Customers
	return guarded(ctx, d, "customer_portfolio", func() *models.CustomerPortfolio {
		return analysis.CustomerPortfolio(customers, d.opts)
	})
}

// StrategyDistribution groups the transactions of year by strategy; year 0
// covers every year.
func (d *Dashboard) StrategyDistribution(ctx context.Context, year int) (*models.StrategyReport, error) {
	ds := d.store.Snapshot()
	return guarded(ctx, d, "strategy_distribution", func() *models.StrategyReport {
		return analysis.StrategyDistribution(ds.Transactions, ds.Strategies, year)
	})
}

func (d *Dashboard) FilterOptions() models.FilterOptions {
	return d.cached().Filters
}

func (d *Dashboard) Datasets() []models.DatasetInfo {
	return d.store.Info()
}

func (d *Dashboard) Options() analysis.Options {
	return d.opts
}

// Stats is the monitoring summary served by the admin endpoint.
func (d *Dashboard) Stats() map[string]any {
	p := d.cached()
	ds := d.store.Snapshot()

	return map[string]any{
		"transactions":    len(ds.Transactions),
		"customers":       len(ds.Customers),
		"strategies":      len(ds.Strategies),
		"last_computed":   p.ComputedAt,
		"analysis_passes": d.passes.Load(),
		"analysis_failed": d.failures.Load(),
		"datasets":        d.store.Info(),
	}
}
