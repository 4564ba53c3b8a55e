package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"superstore-dashboard/internal/charts"
	"superstore-dashboard/internal/errors"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/services"
	"superstore-dashboard/internal/ui/format"
	"superstore-dashboard/internal/ui/templates"
)

const renderTimeout = 10 * time.Second

// PageHandler serves the dashboard shell with every filter value selected.
type PageHandler struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
	format    *format.Formatter
	title     string
	tableRows int
}

func NewPageHandler(dashboard *services.Dashboard, logger *slog.Logger, f *format.Formatter, title string, tableRows int) *PageHandler {
	if tableRows <= 0 {
		tableRows = defaultTableRows
	}
	return &PageHandler{
		dashboard: dashboard,
		logger:    logger,
		format:    f,
		title:     title,
		tableRows: tableRows,
	}
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), renderTimeout)
	defer cancel()
	requestID := observability.GetRequestID(ctx)

	opts, err := h.dashboard.Options(ctx)
	if err != nil {
		errors.WriteError(w, h.logger, errors.DatasetUnavailable(err), requestID)
		return
	}
	sel := opts.Selection()

	snapshot, err := h.dashboard.Snapshot(ctx, sel)
	if err != nil {
		errors.WriteError(w, h.logger, errors.DatasetUnavailable(err), requestID)
		return
	}
	page, err := h.dashboard.Records(ctx, sel, 0, h.tableRows)
	if err != nil {
		errors.WriteError(w, h.logger, errors.DatasetUnavailable(err), requestID)
		return
	}

	component := templates.Dashboard(templates.Page{
		Title:      h.title,
		Options:    opts,
		Snapshot:   snapshot,
		Records:    page.Records,
		Total:      page.Total,
		ChartNames: charts.Names(),
		ChartQuery: encodeSelection(sel),
		Format:     h.format,
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	if err := component.Render(ctx, w); err != nil {
		h.logger.Error("render dashboard", "error", err, "request_id", requestID)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
