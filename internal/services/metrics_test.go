package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"superstore-dashboard/internal/models"
)

func record(orderID, customerID string, date time.Time, sales float64) models.Record {
	year, month, ym := PeriodKey(date)
	return models.Record{
		OrderID:     orderID,
		CustomerID:  customerID,
		OrderDate:   date,
		Region:      "West",
		Segment:     "Consumer",
		Category:    "Furniture",
		SubCategory: "Chairs",
		State:       "California",
		Sales:       sales,
		Year:        year,
		Month:       month,
		YearMonth:   ym,
	}
}

func TestComputeMetrics_Scalars(t *testing.T) {
	jan := time.Date(2017, time.January, 10, 0, 0, 0, 0, time.UTC)
	ds := &Dataset{Records: []models.Record{
		record("O-1", "C-1", jan, 100),
		record("O-2", "C-1", jan.AddDate(0, 0, 5), 50),
	}}

	got := ComputeMetrics(ds)

	assert.Equal(t, 150.00, got.TotalSales)
	assert.Equal(t, 2, got.TotalOrders)
	assert.Equal(t, 1, got.TotalCustomers)
	assert.Equal(t, 2.00, got.OrdersPerCustomer)
	assert.Equal(t, 75.00, got.SalesPerOrder)
	assert.Equal(t, 150.00, got.AverageMonthlySales)
	assert.Equal(t, 2, got.RecordCount)
	assert.False(t, got.Empty)
}

func TestComputeMetrics_DistinctCounts(t *testing.T) {
	jan := time.Date(2017, time.January, 10, 0, 0, 0, 0, time.UTC)
	ds := &Dataset{Records: []models.Record{
		record("O-1", "C-1", jan, 10),
		record("O-1", "C-1", jan, 20),
		record("O-2", "C-2", jan.AddDate(0, 1, 0), 30),
		record("O-3", "C-2", jan.AddDate(0, 2, 0), 40),
	}}

	got := ComputeMetrics(ds)

	assert.Equal(t, 100.00, got.TotalSales)
	assert.Equal(t, 3, got.TotalOrders)
	assert.Equal(t, 2, got.TotalCustomers)
	assert.Equal(t, 1.5, got.OrdersPerCustomer)
	assert.Equal(t, 33.33, got.SalesPerOrder)
	assert.Equal(t, 33.33, got.AverageMonthlySales)
}

func TestComputeMetrics_Rounding(t *testing.T) {
	jan := time.Date(2017, time.January, 10, 0, 0, 0, 0, time.UTC)
	ds := &Dataset{Records: []models.Record{
		record("O-1", "C-1", jan, 0.105),
		record("O-2", "C-1", jan, 10.004),
	}}

	got := ComputeMetrics(ds)

	assert.Equal(t, 10.11, got.TotalSales)
	assert.Equal(t, 1, got.TotalCustomers)
}

func TestComputeMetrics_Empty(t *testing.T) {
	got := ComputeMetrics(&Dataset{Records: []models.Record{}})

	assert.True(t, got.Empty)
	assert.Zero(t, got.TotalSales)
	assert.Zero(t, got.TotalOrders)
	assert.Zero(t, got.TotalCustomers)
	assert.Zero(t, got.OrdersPerCustomer)
	assert.Zero(t, got.SalesPerOrder)
	assert.Zero(t, got.AverageMonthlySales)
	assert.NotNil(t, got.SalesByPeriod)
	assert.Empty(t, got.SalesByPeriod)
	assert.Empty(t, got.SalesBySubCategory)
	assert.Empty(t, got.SalesByState)
	assert.Empty(t, got.SalesBySegment)
}

func TestComputeMetrics_GroupsPartitionTotal(t *testing.T) {
	ds := loadTestDataset(t)
	got := ComputeMetrics(ds)

	var raw float64
	for _, rec := range ds.Records {
		raw += rec.Sales
	}

	for name, groups := range map[string][]models.GroupTotal{
		"period":      got.SalesByPeriod,
		"subcategory": got.SalesBySubCategory,
		"state":       got.SalesByState,
		"segment":     got.SalesBySegment,
	} {
		var sum float64
		for _, g := range groups {
			sum += g.Sales
		}
		assert.InDelta(t, raw, sum, 1e-6, name)
		assert.InDelta(t, got.TotalSales, sum, 0.005, name)
	}
}

func TestComputeMetrics_GroupOrdering(t *testing.T) {
	got := ComputeMetrics(loadTestDataset(t))

	keys := func(groups []models.GroupTotal) []string {
		out := make([]string, 0, len(groups))
		for _, g := range groups {
			out = append(out, g.Key)
		}
		return out
	}

	assert.Equal(t,
		[]string{"2015-06", "2015-11", "2016-10", "2016-11", "2017-06", "2017-08", "2017-11"},
		keys(got.SalesByPeriod))
	assert.Equal(t,
		[]string{"Labels", "Binders", "Appliances", "Bookcases", "Storage", "Chairs", "Tables", "Phones"},
		keys(got.SalesBySubCategory))
	assert.Equal(t,
		[]string{"Kentucky", "Florida", "Vermont", "Wisconsin", "California", "Texas"},
		keys(got.SalesByState))
	assert.Equal(t,
		[]string{"Consumer", "Home Office", "Corporate"},
		keys(got.SalesBySegment))
}

func TestGroupOrderingTieBreak(t *testing.T) {
	groups := map[string]float64{"b": 5, "a": 5, "c": 9}

	assert.Equal(t, []models.GroupTotal{{Key: "c", Sales: 9}, {Key: "a", Sales: 5}, {Key: "b", Sales: 5}},
		sortGroups(groups, bySalesDesc))
	assert.Equal(t, []models.GroupTotal{{Key: "a", Sales: 5}, {Key: "b", Sales: 5}, {Key: "c", Sales: 9}},
		sortGroups(groups, bySalesAsc))
}

func TestRatio(t *testing.T) {
	v, err := ratio(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 3.33, v)

	_, err = ratio(10, 0)
	assert.ErrorIs(t, err, ErrDivisionByZero)
	assert.Zero(t, ratioOrZero(10, 0))
}
