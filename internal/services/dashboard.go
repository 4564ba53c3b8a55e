package services

import (
	"context"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"superstore-dashboard/internal/models"
)

// RecordPage is a window over the filtered records.
type RecordPage struct {
	Total   int                 `json:"total"`
	Offset  int                 `json:"offset"`
	Limit   int                 `json:"limit"`
	Records []models.RecordView `json:"records"`
}

// Dashboard serves one dataset file to the transport layer. It holds no
// per-request state: every call filters and aggregates from scratch.
type Dashboard struct {
	cache    *Cache
	path     string
	logger   *slog.Logger
	observer Observer
}

func NewDashboard(cache *Cache, path string, logger *slog.Logger, observer Observer) *Dashboard {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dashboard{
		cache:    cache,
		path:     path,
		logger:   logger.With("component", "dashboard"),
		observer: observer,
	}
}

func (d *Dashboard) Path() string {
	return d.path
}

func (d *Dashboard) Dataset(ctx context.Context) (*Dataset, error) {
	return d.cache.Get(ctx, d.path)
}

func (d *Dashboard) Options(ctx context.Context) (models.FilterOptions, error) {
	ds, err := d.Dataset(ctx)
	if err != nil {
		return models.FilterOptions{}, err
	}
	return ds.Options(), nil
}

// DefaultSelection selects every observed value.
func (d *Dashboard) DefaultSelection(ctx context.Context) (models.FilterSelection, error) {
	opts, err := d.Options(ctx)
	if err != nil {
		return models.FilterSelection{}, err
	}
	return opts.Selection(), nil
}

func (d *Dashboard) Snapshot(ctx context.Context, sel models.FilterSelection) (models.MetricsSnapshot, error) {
	ds, err := d.Dataset(ctx)
	if err != nil {
		return models.MetricsSnapshot{}, err
	}

	_, span := otel.Tracer(tracerName).Start(ctx, "metrics.compute")
	defer span.End()

	start := time.Now()
	filtered := Filter(ds, sel)
	snapshot := ComputeMetrics(filtered)
	d.observer.SnapshotComputed(filtered.Len(), time.Since(start))

	span.SetAttributes(
		attribute.Int("dataset.records", ds.Len()),
		attribute.Int("filter.records", filtered.Len()),
	)
	return snapshot, nil
}

func (d *Dashboard) Records(ctx context.Context, sel models.FilterSelection, offset, limit int) (RecordPage, error) {
	ds, err := d.Dataset(ctx)
	if err != nil {
		return RecordPage{}, err
	}
	filtered := Filter(ds, sel)

	page := RecordPage{
		Total:   filtered.Len(),
		Offset:  offset,
		Limit:   limit,
		Records: []models.RecordView{},
	}
	if offset >= filtered.Len() {
		return page, nil
	}
	end := min(offset+limit, filtered.Len())
	for _, rec := range filtered.Records[offset:end] {
		page.Records = append(page.Records, rec.View())
	}
	return page, nil
}

// ExportCSV writes the full, unfiltered dataset.
func (d *Dashboard) ExportCSV(ctx context.Context, w io.Writer) error {
	ds, err := d.Dataset(ctx)
	if err != nil {
		return err
	}
	return ExportCSV(ds, w)
}

func (d *Dashboard) ExportXLSX(ctx context.Context, w io.Writer) error {
	ds, err := d.Dataset(ctx)
	if err != nil {
		return err
	}
	return ExportXLSX(ds, w)
}

// Stats is used for monitoring.
func (d *Dashboard) Stats(ctx context.Context) map[string]any {
	stats := map[string]any{
		"path":  d.path,
		"cache": d.cache.Stats(),
	}

	ds, err := d.Dataset(ctx)
	if err != nil {
		stats["error"] = err.Error()
		return stats
	}
	opts := ds.Options()
	stats["record_count"] = ds.Len()
	stats["skipped_rows"] = ds.SkippedRows
	stats["checksum"] = ds.Checksum
	stats["last_loaded"] = ds.LoadedAt
	stats["regions"] = len(opts.Regions)
	stats["segments"] = len(opts.Segments)
	stats["categories"] = len(opts.Categories)
	return stats
}
