package handlers

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"superstore-dashboard/internal/charts"
	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/services"
)

const (
	cacheControl = "public, max-age=300"
	noStore      = "no-store"
	appVersion   = "1.0.0"
)

type APIHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
	validate  *validator.Validate
}

func NewAPIHandlers(dashboard *services.Dashboard, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		dashboard: dashboard,
		logger:    logger,
		validate:  newValidator(),
	}
}

func (h *APIHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if services.IsDatasetError(err) {
		err = errors.DatasetUnavailable(err)
	}
	errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
}

func (h *APIHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := h.dashboard.Options(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, opts, map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	defaults, err := h.dashboard.DefaultSelection(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	snapshot, err := h.dashboard.Snapshot(r.Context(), parseSelection(r, defaults))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, snapshot, map[string]string{
		"Cache-Control": cacheControl,
	})
}

func (h *APIHandlers) HandleRecords(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(h.validate, r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	defaults, err := h.dashboard.DefaultSelection(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	records, err := h.dashboard.Records(r.Context(), parseSelection(r, defaults), page.Offset, page.Limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	errors.WriteSuccessWithHeaders(w, records, map[string]string{
		"Cache-Control": cacheControl,
	})
}

// HandleExport downloads the full, unfiltered dataset. The body is built
// in memory so that a failure still produces an error envelope.
func (h *APIHandlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	exp, err := parseExport(h.validate, r.URL.Query())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var (
		buf         bytes.Buffer
		contentType string
	)
	switch exp.Format {
	case "xlsx":
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		err = h.dashboard.ExportXLSX(r.Context(), &buf)
	default:
		contentType = "text/csv; charset=utf-8"
		err = h.dashboard.ExportCSV(r.Context(), &buf)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	name := strings.TrimSuffix(filepath.Base(h.dashboard.Path()), filepath.Ext(h.dashboard.Path()))
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"."+exp.Format))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", noStore)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.Warn("export write failed",
			"format", exp.Format,
			"error", err,
			"request_id", observability.GetRequestID(r.Context()),
		)
	}
}

func (h *APIHandlers) HandleChart(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	defaults, err := h.dashboard.DefaultSelection(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snapshot, err := h.dashboard.Snapshot(r.Context(), parseSelection(r, defaults))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	var buf bytes.Buffer
	err = charts.Render(&buf, name, snapshot)
	switch {
	case stderrors.Is(err, charts.ErrUnknownChart):
		h.fail(w, r, errors.NotFound(fmt.Sprintf("chart %q not found", name)))
		return
	case stderrors.Is(err, charts.ErrNoData):
		w.Header().Set("Cache-Control", noStore)
		w.WriteHeader(http.StatusNoContent)
		return
	case err != nil:
		h.fail(w, r, errors.InternalWrap(err, "failed to render chart"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("Cache-Control", cacheControl)
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"version":   appVersion,
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats := h.dashboard.Stats(r.Context())

	errors.WriteSuccess(w, stats)
}
