package templates

import (
	"context"
	"encoding/json"
	"html"
	"html/template"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"superstore-dashboard/internal/models"
	"superstore-dashboard/internal/ui/format"
)

// Element ids patched over SSE.
const (
	MetricsID = "metrics-content"
	TableID   = "table-content"
)

// DatastarScript is the client bundle the page loads.
const DatastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0/bundles/datastar.js"

// Page is everything the dashboard shell needs for its first paint.
type Page struct {
	Title      string
	Options    models.FilterOptions
	Snapshot   models.MetricsSnapshot
	Records    []models.RecordView
	Total      int
	ChartNames []string
	ChartQuery string // encoded selection appended to chart URLs
	Format     *format.Formatter
}

// Metric is one formatted card.
type Metric struct {
	Label  string
	Value  string
	Detail string
}

// Metrics turns a snapshot into the three cards the dashboard shows.
func Metrics(s models.MetricsSnapshot, f *format.Formatter) []Metric {
	return []Metric{
		{
			Label:  "Total sales",
			Value:  f.Currency(s.TotalSales),
			Detail: "Monthly average: " + f.Currency(s.AverageMonthlySales),
		},
		{
			Label:  "Total orders",
			Value:  f.Integer(s.TotalOrders),
			Detail: "Sales per order: " + f.Currency(s.SalesPerOrder),
		},
		{
			Label:  "Customers served",
			Value:  f.Integer(s.TotalCustomers),
			Detail: "Orders per customer: " + f.Decimal(s.OrdersPerCustomer),
		},
	}
}

var funcs = template.FuncMap{
	"money": func(f *format.Formatter, v float64) string { return f.Currency(v) },
	"count": func(f *format.Formatter, n int) string { return f.Integer(n) },
	"signals": signalsAttr,
}

var metricsTemplate = template.Must(template.New("metrics").Funcs(funcs).Parse(`<div id="` + MetricsID + `" class="metrics">
{{if .Empty}}<p class="empty">No records match the current filters.</p>{{end}}
{{range .Cards}}<div class="metric-card">
<span class="metric-label">{{.Label}}</span>
<strong class="metric-value">{{.Value}}</strong>
<small class="metric-detail">{{.Detail}}</small>
</div>{{end}}
</div>`))

var datasetErrorTemplate = template.Must(template.New("datasetError").Parse(`<div id="` + MetricsID + `" class="metrics">
<p class="empty">Dataset unavailable: {{.}}</p>
</div>`))

var tableTemplate = template.Must(template.New("table").Funcs(funcs).Parse(`<div id="` + TableID + `">
<p class="table-caption">Showing {{len .Records}} of {{count .Format .Total}} records</p>
<table class="modern-table">
<thead><tr><th>Order</th><th>Date</th><th>Customer</th><th>Segment</th><th>Region</th><th>State</th><th>Category</th><th>Sub-category</th><th>Product</th><th>Sales</th></tr></thead>
<tbody>
{{range .Records}}<tr>
<td>{{.OrderID}}</td>
<td>{{.OrderDate}}</td>
<td>{{.CustomerName}}</td>
<td>{{.Segment}}</td>
<td>{{.Region}}</td>
<td>{{.State}}</td>
<td><span class="category-badge">{{.Category}}</span></td>
<td>{{.SubCategory}}</td>
<td>{{.ProductName}}</td>
<td><strong>{{money $.Format .Sales}}</strong></td>
</tr>{{end}}
</tbody>
</table>
</div>`))

var pageTemplate = template.Must(template.New("page").Funcs(funcs).Parse(`<!DOCTYPE html>
<html lang="{{.Format.Locale}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<script type="module" src="` + DatastarScript + `"></script>
<style>
body{font-family:system-ui,sans-serif;margin:0;display:flex;color:#1f2933}
aside{width:240px;padding:1rem;background:#f4f6f8;min-height:100vh}
main{flex:1;padding:1rem 2rem}
fieldset{border:0;padding:0;margin:0 0 1rem}
.metrics{display:flex;gap:1rem;margin:1rem 0}
.metric-card{flex:1;padding:1rem;border-radius:8px;background:#fff;box-shadow:0 1px 3px rgba(0,0,0,.15);display:flex;flex-direction:column}
.metric-value{font-size:1.6rem;color:#0083b8}
.charts{display:flex;flex-wrap:wrap;gap:1rem}
.charts img{max-width:100%}
.modern-table{border-collapse:collapse;width:100%;font-size:.85rem}
.modern-table th,.modern-table td{padding:.3rem .5rem;border-bottom:1px solid #e4e7eb;text-align:left}
.category-badge{background:#e0f2fe;border-radius:4px;padding:0 .3rem}
.empty{color:#b42318}
</style>
</head>
<body {{signals .Options .ChartQuery}} data-on:change="@get('/sse/dashboard')">
<aside>
<h2>Filters</h2>
<fieldset><legend>Region</legend>
{{range .Options.Regions}}<label><input type="checkbox" value="{{.}}" data-bind:regions> {{.}}</label><br>{{end}}
</fieldset>
<fieldset><legend>Segment</legend>
{{range .Options.Segments}}<label><input type="checkbox" value="{{.}}" data-bind:segments> {{.}}</label><br>{{end}}
</fieldset>
<fieldset><legend>Category</legend>
{{range .Options.Categories}}<label><input type="checkbox" value="{{.}}" data-bind:categories> {{.}}</label><br>{{end}}
</fieldset>
<p>
<a href="/api/export?format=csv">Download CSV</a> |
<a href="/api/export?format=xlsx">Download XLSX</a>
</p>
</aside>
<main>
<h1>{{.Title}}</h1>
{{.MetricsHTML}}
<section class="charts">
{{range .Charts}}<img alt="{{.Name}} chart" src="{{.Src}}" data-attr:src="'/charts/{{.Name}}?' + $chartQuery">{{end}}
</section>
{{.TableHTML}}
</main>
</body>
</html>`))

// Dashboard renders the full page.
func Dashboard(p Page) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		metrics, err := RenderString(ctx, MetricCards(p.Snapshot, p.Format))
		if err != nil {
			return err
		}
		table, err := RenderString(ctx, RecordTable(p.Records, p.Total, p.Format))
		if err != nil {
			return err
		}

		charts := make([]chartImage, 0, len(p.ChartNames))
		for _, name := range p.ChartNames {
			charts = append(charts, chartImage{
				Name: name,
				Src:  template.URL("/charts/" + url.PathEscape(name) + "?" + p.ChartQuery),
			})
		}
		return pageTemplate.Execute(w, struct {
			Page
			Charts      []chartImage
			MetricsHTML template.HTML
			TableHTML   template.HTML
		}{
			Page:        p,
			Charts:      charts,
			MetricsHTML: template.HTML(metrics),
			TableHTML:   template.HTML(table),
		})
	})
}

// MetricCards renders the element with id MetricsID.
func MetricCards(s models.MetricsSnapshot, f *format.Formatter) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return metricsTemplate.Execute(w, struct {
			Empty bool
			Cards []Metric
		}{
			Empty: s.Empty,
			Cards: Metrics(s, f),
		})
	})
}

// DatasetError renders the metrics element in its error state.
func DatasetError(err error) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return datasetErrorTemplate.Execute(w, err.Error())
	})
}

// RecordTable renders the element with id TableID.
func RecordTable(records []models.RecordView, total int, f *format.Formatter) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return tableTemplate.Execute(w, struct {
			Records []models.RecordView
			Total   int
			Format  *format.Formatter
		}{
			Records: records,
			Total:   total,
			Format:  f,
		})
	})
}

// RenderString renders c into a string, for SSE element patches.
func RenderString(ctx context.Context, c templ.Component) (string, error) {
	var sb strings.Builder
	if err := c.Render(ctx, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

type chartImage struct {
	Name string
	Src  template.URL
}

// Signals is the datastar signal set the page starts with.
type Signals struct {
	Regions    []string `json:"regions"`
	Segments   []string `json:"segments"`
	Categories []string `json:"categories"`
	ChartQuery string   `json:"chartQuery"`
}

func signalsAttr(o models.FilterOptions, chartQuery string) (template.HTMLAttr, error) {
	sel := o.Selection()
	b, err := json.Marshal(Signals{
		Regions:    nonNil(sel.Regions),
		Segments:   nonNil(sel.Segments),
		Categories: nonNil(sel.Categories),
		ChartQuery: chartQuery,
	})
	if err != nil {
		return "", err
	}
	return template.HTMLAttr(`data-signals="` + html.EscapeString(string(b)) + `"`), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
