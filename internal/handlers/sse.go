package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/observability"
	"superstore-dashboard/internal/services"
	"superstore-dashboard/internal/ui/format"
	"superstore-dashboard/internal/ui/templates"
)

const defaultTableRows = 50

// dashboardSignals is the client state sent with every datastar request.
// A nil slice means the signal was absent, so the component selects every
// observed value; an empty slice selects nothing.
type dashboardSignals struct {
	Regions    []string `json:"regions"`
	Segments   []string `json:"segments"`
	Categories []string `json:"categories"`
}

func (s dashboardSignals) selection(defaults models.FilterSelection) models.FilterSelection {
	sel := defaults
	if s.Regions != nil {
		sel.Regions = s.Regions
	}
	if s.Segments != nil {
		sel.Segments = s.Segments
	}
	if s.Categories != nil {
		sel.Categories = s.Categories
	}
	return sel
}

type SSEHandlers struct {
	dashboard *services.Dashboard
	logger    *slog.Logger
	format    *format.Formatter
	tableRows int
}

func NewSSEHandlers(dashboard *services.Dashboard, logger *slog.Logger, f *format.Formatter, tableRows int) *SSEHandlers {
	if tableRows <= 0 {
		tableRows = defaultTableRows
	}
	return &SSEHandlers{
		dashboard: dashboard,
		logger:    logger,
		format:    f,
		tableRows: tableRows,
	}
}

// HandleDashboard recomputes the dashboard for the client's selection and
// patches metric cards, chart signals and the record table.
func (h *SSEHandlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := observability.GetRequestID(ctx)

	var signals dashboardSignals
	if err := datastar.ReadSignals(r, &signals); err != nil {
		h.logger.Warn("read signals", "error", err, "request_id", requestID)
	}

	sse := datastar.NewSSE(w, r)

	defaults, err := h.dashboard.DefaultSelection(ctx)
	if err != nil {
		h.patchDatasetError(ctx, sse, err, requestID)
		return
	}
	sel := signals.selection(defaults)

	snapshot, err := h.dashboard.Snapshot(ctx, sel)
	if err != nil {
		h.patchDatasetError(ctx, sse, err, requestID)
		return
	}
	page, err := h.dashboard.Records(ctx, sel, 0, h.tableRows)
	if err != nil {
		h.patchDatasetError(ctx, sse, err, requestID)
		return
	}

	metricsHTML, err := templates.RenderString(ctx, templates.MetricCards(snapshot, h.format))
	if err != nil {
		h.logger.Error("render metric cards", "error", err, "request_id", requestID)
		return
	}
	tableHTML, err := templates.RenderString(ctx, templates.RecordTable(page.Records, page.Total, h.format))
	if err != nil {
		h.logger.Error("render record table", "error", err, "request_id", requestID)
		return
	}

	sse.PatchElements(metricsHTML)

	chartSignals, err := json.Marshal(map[string]any{
		"chartQuery":         encodeSelection(sel),
		"salesByPeriod":      snapshot.SalesByPeriod,
		"salesBySubCategory": snapshot.SalesBySubCategory,
		"salesByState":       snapshot.SalesByState,
		"salesBySegment":     snapshot.SalesBySegment,
	})
	if err != nil {
		h.logger.Error("marshal chart signals", "error", err, "request_id", requestID)
		return
	}
	sse.PatchSignals(chartSignals)

	sse.PatchElements(tableHTML)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleFilters patches the observed filter values.
func (h *SSEHandlers) HandleFilters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := observability.GetRequestID(ctx)
	sse := datastar.NewSSE(w, r)

	opts, err := h.dashboard.Options(ctx)
	if err != nil {
		h.patchDatasetError(ctx, sse, err, requestID)
		return
	}

	optionSignals, err := json.Marshal(map[string]any{
		"options": opts,
	})
	if err != nil {
		h.logger.Error("marshal filter options", "error", err, "request_id", requestID)
		return
	}
	sse.PatchSignals(optionSignals)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// patchDatasetError replaces the metric cards with the error state. No
// partial metrics are sent once the dataset has failed.
func (h *SSEHandlers) patchDatasetError(ctx context.Context, sse *datastar.ServerSentEventGenerator, err error, requestID string) {
	h.logger.Error("dashboard unavailable", "error", err, "request_id", requestID)

	html, renderErr := templates.RenderString(ctx, templates.DatasetError(err))
	if renderErr != nil {
		h.logger.Error("render dataset error", "error", renderErr, "request_id", requestID)
		return
	}
	sse.PatchElements(html)
}
