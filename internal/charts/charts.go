package charts

import (
	"errors"
	"fmt"
	"io"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"

	"superstore-dashboard/internal/models"
)

var (
	// ErrNoData is returned when a chart has nothing to plot.
	ErrNoData = errors.New("charts: no data to plot")
	// ErrUnknownChart is returned for a name Render does not know.
	ErrUnknownChart = errors.New("charts: unknown chart")
)

// Chart names accepted by Render.
const (
	Period      = "period"
	SubCategory = "subcategory"
	State       = "state"
	Segment     = "segment"
)

const (
	defaultHeight = 420
	minBarWidth   = 640
	pxPerBar      = 28
	maxBarWidth   = 2400
)

// Names lists the charts in the order the dashboard shows them.
func Names() []string {
	return []string{Period, SubCategory, State, Segment}
}

// Render writes the named chart of snapshot as a PNG.
func Render(w io.Writer, name string, snapshot models.MetricsSnapshot) error {
	switch name {
	case Period:
		return RenderBar(w, "Sales by period", snapshot.SalesByPeriod)
	case SubCategory:
		return RenderBar(w, "Sales by sub-category", snapshot.SalesBySubCategory)
	case State:
		return RenderBar(w, "Sales by state", snapshot.SalesByState)
	case Segment:
		return RenderPie(w, "Sales by segment", snapshot.SalesBySegment)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownChart, name)
	}
}

// RenderBar draws one bar per group, in the order given.
func RenderBar(w io.Writer, title string, groups []models.GroupTotal) error {
	if len(groups) == 0 {
		return ErrNoData
	}

	bars := make([]chart.Value, 0, len(groups))
	lo, hi := 0.0, 0.0
	for _, g := range groups {
		bars = append(bars, chart.Value{Label: g.Key, Value: g.Sales})
		lo = math.Min(lo, g.Sales)
		hi = math.Max(hi, g.Sales)
	}
	// go-chart refuses a zero-height range, so the axis is pinned to
	// include 0 and an all-zero series has nothing to draw.
	if lo == hi {
		return ErrNoData
	}

	graph := chart.BarChart{
		Title:  title,
		Width:  barChartWidth(len(bars)),
		Height: defaultHeight,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 80},
		},
		BarWidth:   18,
		BarSpacing: 8,
		XAxis: chart.Style{
			TextRotationDegrees: 60,
		},
		YAxis: chart.YAxis{
			Range:          &chart.ContinuousRange{Min: lo, Max: hi},
			ValueFormatter: compactFormatter,
		},
		Bars: bars,
	}
	return graph.Render(chart.PNG, w)
}

// RenderPie draws each group's share of the total as a donut.
func RenderPie(w io.Writer, title string, groups []models.GroupTotal) error {
	values := make([]chart.Value, 0, len(groups))
	total := 0.0
	for _, g := range groups {
		if g.Sales <= 0 {
			continue
		}
		total += g.Sales
		values = append(values, chart.Value{Label: g.Key, Value: g.Sales})
	}
	if total <= 0 {
		return ErrNoData
	}
	for i := range values {
		values[i].Label = fmt.Sprintf("%s %.1f%%", values[i].Label, values[i].Value/total*100)
	}

	graph := chart.DonutChart{
		Title:  title,
		Width:  defaultHeight,
		Height: defaultHeight,
		Values: values,
	}
	return graph.Render(chart.PNG, w)
}

func barChartWidth(bars int) int {
	return min(max(bars*pxPerBar+120, minBarWidth), maxBarWidth)
}

func compactFormatter(v any) string {
	f, ok := v.(float64)
	if !ok {
		return fmt.Sprint(v)
	}
	switch abs := math.Abs(f); {
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", f/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.0fk", f/1e3)
	default:
		return fmt.Sprintf("%.0f", f)
	}
}
