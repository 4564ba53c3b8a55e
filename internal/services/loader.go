package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"superstore-dashboard/internal/models"
)

const tracerName = "superstore-dashboard/internal/services"

// Source column names. The header text is a compatibility contract with
// the Superstore sales dataset.
const (
	ColRowID        = "Row ID"
	ColOrderID      = "Order ID"
	ColOrderDate    = "Order Date"
	ColShipDate     = "Ship Date"
	ColShipMode     = "Ship Mode"
	ColCustomerID   = "Customer ID"
	ColCustomerName = "Customer Name"
	ColSegment      = "Segment"
	ColCountry      = "Country"
	ColCity         = "City"
	ColState        = "State"
	ColPostalCode   = "Postal Code"
	ColRegion       = "Region"
	ColProductID    = "Product ID"
	ColCategory     = "Category"
	ColSubCategory  = "Sub-Category"
	ColProductName  = "Product Name"
	ColSales        = "Sales"
)

var requiredColumns = []string{
	ColRowID, ColOrderID, ColOrderDate, ColShipDate, ColCustomerID,
	ColSegment, ColCity, ColState, ColPostalCode, ColRegion,
	ColCategory, ColSubCategory, ColSales,
}

var (
	utf8BOM      = []byte{0xEF, 0xBB, 0xBF}
	errNotFinite = errors.New("not a finite number")
)

// Dataset is the loaded, immutable table. It is safe for concurrent reads.
type Dataset struct {
	Header      []string
	Records     []models.Record
	Source      string
	Checksum    string
	LoadedAt    time.Time
	SkippedRows int

	optionsOnce sync.Once
	options     models.FilterOptions
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Options returns the observed Region, Segment and Category values.
func (d *Dataset) Options() models.FilterOptions {
	d.optionsOnce.Do(func() {
		d.options = observedOptions(d.Records)
	})
	return d.options
}

type LoadOptions struct {
	// DateLayouts are tried in order; the first that parses wins.
	DateLayouts []string
	// SkipInvalidRows drops rows with unparseable fields instead of
	// aborting the load.
	SkipInvalidRows bool
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		DateLayouts: []string{"02/01/2006", time.DateOnly},
	}
}

type Loader struct {
	opts   LoadOptions
	logger *slog.Logger
}

func NewLoader(opts LoadOptions, logger *slog.Logger) *Loader {
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = DefaultLoadOptions().DateLayouts
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		opts:   opts,
		logger: logger.With("component", "loader"),
	}
}

// Load reads the CSV file at path. It never writes to the file.
func (l *Loader) Load(ctx context.Context, path string) (*Dataset, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataset.load")
	defer span.End()
	span.SetAttributes(attribute.String("dataset.path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		lerr := &LoadError{Path: path, Reason: "read file", Err: err}
		span.RecordError(lerr)
		span.SetStatus(codes.Error, "read file")
		return nil, lerr
	}

	ds, err := l.Parse(ctx, bytes.NewReader(data), path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse")
		return nil, err
	}

	sum := sha256.Sum256(data)
	ds.Checksum = hex.EncodeToString(sum[:])
	span.SetAttributes(
		attribute.Int("dataset.records", ds.Len()),
		attribute.Int("dataset.skipped_rows", ds.SkippedRows),
	)
	return ds, nil
}

// Parse builds a Dataset from CSV content; source is used in errors.
func (l *Loader) Parse(ctx context.Context, r io.Reader, source string) (*Dataset, error) {
	reader := csv.NewReader(newBOMSkipper(r))

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LoadError{Path: source, Reason: "empty file"}
	}
	if err != nil {
		return nil, &LoadError{Path: source, Reason: "read header", Err: err}
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &LoadError{
			Path:   source,
			Reason: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", ")),
		}
	}

	ds := &Dataset{
		Header:   header,
		Records:  make([]models.Record, 0, 1024),
		Source:   source,
		LoadedAt: time.Now(),
	}

	for row := 1; ; row++ {
		select {
		case <-ctx.Done():
			return nil, &LoadError{Path: source, Reason: "cancelled", Err: ctx.Err()}
		default:
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			perr := &ParseError{Row: row, Err: err}
			if !l.opts.SkipInvalidRows {
				return nil, perr
			}
			l.skip(ds, perr)
			continue
		}

		rec, perr := l.parseRecord(row, fields, index)
		if perr != nil {
			if !l.opts.SkipInvalidRows {
				return nil, perr
			}
			l.skip(ds, perr)
			continue
		}
		ds.Records = append(ds.Records, rec)
	}

	l.logger.Debug("dataset parsed",
		"source", source,
		"records", len(ds.Records),
		"skipped", ds.SkippedRows,
	)
	return ds, nil
}

func (l *Loader) skip(ds *Dataset, err *ParseError) {
	ds.SkippedRows++
	l.logger.Warn("skipping invalid row", "row", err.Row, "error", err)
}

func (l *Loader) parseRecord(row int, fields []string, index map[string]int) (models.Record, *ParseError) {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	orderDate, err := l.parseDate(get(ColOrderDate))
	if err != nil {
		return models.Record{}, &ParseError{Row: row, Column: ColOrderDate, Value: get(ColOrderDate), Err: err}
	}
	shipDate, err := l.parseDate(get(ColShipDate))
	if err != nil {
		return models.Record{}, &ParseError{Row: row, Column: ColShipDate, Value: get(ColShipDate), Err: err}
	}
	sales, err := parseSales(get(ColSales))
	if err != nil {
		return models.Record{}, &ParseError{Row: row, Column: ColSales, Value: get(ColSales), Err: err}
	}

	year, month, yearMonth := PeriodKey(orderDate)

	return models.Record{
		RowID:        get(ColRowID),
		OrderID:      get(ColOrderID),
		OrderDate:    orderDate,
		ShipDate:     shipDate,
		ShipMode:     get(ColShipMode),
		CustomerID:   get(ColCustomerID),
		CustomerName: get(ColCustomerName),
		Segment:      get(ColSegment),
		Country:      get(ColCountry),
		City:         get(ColCity),
		State:        get(ColState),
		PostalCode:   get(ColPostalCode),
		Region:       get(ColRegion),
		ProductID:    get(ColProductID),
		Category:     get(ColCategory),
		SubCategory:  get(ColSubCategory),
		ProductName:  get(ColProductName),
		Sales:        sales,
		Year:         year,
		Month:        month,
		YearMonth:    yearMonth,
		Raw:          fields,
	}, nil
}

func (l *Loader) parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty date")
	}
	for _, layout := range l.opts.DateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("no matching layout in %v", l.opts.DateLayouts)
}

// parseSales accepts finite decimal amounts only; ParseFloat alone also
// takes NaN and Inf spellings.
func parseSales(value string) (float64, error) {
	sales, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(sales) || math.IsInf(sales, 0) {
		return 0, errNotFinite
	}
	return sales, nil
}

// PeriodKey derives Year, zero-padded Month and "Year-Month" from an order
// date.
func PeriodKey(t time.Time) (year, month, yearMonth string) {
	year = fmt.Sprintf("%04d", t.Year())
	month = fmt.Sprintf("%02d", int(t.Month()))
	return year, month, year + "-" + month
}

func observedOptions(records []models.Record) models.FilterOptions {
	return models.FilterOptions{
		Regions:    distinct(records, func(r *models.Record) string { return r.Region }),
		Segments:   distinct(records, func(r *models.Record) string { return r.Segment }),
		Categories: distinct(records, func(r *models.Record) string { return r.Category }),
	}
}

func distinct(records []models.Record, key func(*models.Record) string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for i := range records {
		k := key(&records[i])
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// bomSkipper drops a leading UTF-8 byte order mark.
type bomSkipper struct {
	r       io.Reader
	checked bool
	pending []byte
}

func newBOMSkipper(r io.Reader) io.Reader {
	return &bomSkipper{r: r}
}

func (b *bomSkipper) Read(p []byte) (int, error) {
	if !b.checked {
		b.checked = true
		head := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(b.r, head)
		head = head[:n]
		if !bytes.Equal(head, utf8BOM) {
			b.pending = head
		}
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return 0, err
		}
	}
	if len(b.pending) > 0 {
		n := copy(p, b.pending)
		b.pending = b.pending[n:]
		return n, nil
	}
	return b.r.Read(p)
}
