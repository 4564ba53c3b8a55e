package services

import (
	"cmp"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"superstore-dashboard/internal/models"
)

// ComputeMetrics derives the scalar metrics and grouped sales of a
// (filtered) dataset. Ratios with a zero denominator are reported as 0.
func ComputeMetrics(ds *Dataset) models.MetricsSnapshot {
	records := ds.Records

	var sum float64
	orders := make(map[string]struct{})
	customers := make(map[string]struct{})
	months := make(map[string]struct{})
	for i := range records {
		rec := &records[i]
		sum += rec.Sales
		orders[rec.OrderID] = struct{}{}
		customers[rec.CustomerID] = struct{}{}
		months[rec.YearMonth] = struct{}{}
	}

	total := round2(sum)
	snapshot := models.MetricsSnapshot{
		TotalSales:          total,
		TotalOrders:         len(orders),
		TotalCustomers:      len(customers),
		OrdersPerCustomer:   ratioOrZero(float64(len(orders)), float64(len(customers))),
		SalesPerOrder:       ratioOrZero(total, float64(len(orders))),
		AverageMonthlySales: ratioOrZero(total, float64(len(months))),
		RecordCount:         len(records),
		Empty:               len(records) == 0,
	}

	// Groupings only read the immutable record slice.
	var g errgroup.Group
	g.Go(func() error {
		snapshot.SalesByPeriod = sortGroups(
			groupSales(records, func(r *models.Record) string { return r.YearMonth }),
			byKeyAsc,
		)
		return nil
	})
	g.Go(func() error {
		snapshot.SalesBySubCategory = sortGroups(
			groupSales(records, func(r *models.Record) string { return r.SubCategory }),
			bySalesAsc,
		)
		return nil
	})
	g.Go(func() error {
		snapshot.SalesByState = sortGroups(
			groupSales(records, func(r *models.Record) string { return r.State }),
			bySalesDesc,
		)
		return nil
	})
	g.Go(func() error {
		snapshot.SalesBySegment = sortGroups(
			groupSales(records, func(r *models.Record) string { return r.Segment }),
			bySalesDesc,
		)
		return nil
	})
	_ = g.Wait()

	return snapshot
}

func groupSales(records []models.Record, key func(*models.Record) string) map[string]float64 {
	groups := make(map[string]float64)
	for i := range records {
		groups[key(&records[i])] += records[i].Sales
	}
	return groups
}

func sortGroups(groups map[string]float64, order func(a, b models.GroupTotal) int) []models.GroupTotal {
	result := make([]models.GroupTotal, 0, len(groups))
	for key, sales := range groups {
		result = append(result, models.GroupTotal{Key: key, Sales: sales})
	}
	slices.SortFunc(result, order)
	return result
}

func byKeyAsc(a, b models.GroupTotal) int {
	return cmp.Compare(a.Key, b.Key)
}

func bySalesAsc(a, b models.GroupTotal) int {
	if c := cmp.Compare(a.Sales, b.Sales); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}

func bySalesDesc(a, b models.GroupTotal) int {
	if c := cmp.Compare(b.Sales, a.Sales); c != 0 {
		return c
	}
	return cmp.Compare(a.Key, b.Key)
}

func ratio(num, den float64) (float64, error) {
	if den == 0 {
		return 0, ErrDivisionByZero
	}
	return round2(num / den), nil
}

func ratioOrZero(num, den float64) float64 {
	v, err := ratio(num, den)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
