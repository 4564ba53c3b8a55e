package models

// FilterSelection holds the allowed values per filter column. An empty
// component excludes every record.
type FilterSelection struct {
	Regions    []string `json:"regions"`
	Segments   []string `json:"segments"`
	Categories []string `json:"categories"`
}

// FilterOptions lists the observed values of each filter column in
// first-seen order.
type FilterOptions struct {
	Regions    []string `json:"regions"`
	Segments   []string `json:"segments"`
	Categories []string `json:"categories"`
}

// Selection returns the selection that keeps every observed value.
func (o FilterOptions) Selection() FilterSelection {
	return FilterSelection{
		Regions:    append([]string(nil), o.Regions...),
		Segments:   append([]string(nil), o.Segments...),
		Categories: append([]string(nil), o.Categories...),
	}
}

type GroupTotal struct {
	Key   string  `json:"key"`
	Sales float64 `json:"sales"`
}

type MetricsSnapshot struct {
	TotalSales          float64 `json:"total_sales"`
	TotalOrders         int     `json:"total_orders"`
	TotalCustomers      int     `json:"total_customers"`
	OrdersPerCustomer   float64 `json:"orders_per_customer"`
	SalesPerOrder       float64 `json:"sales_per_order"`
	AverageMonthlySales float64 `json:"average_monthly_sales"`

	SalesByPeriod      []GroupTotal `json:"sales_by_period"`
	SalesBySubCategory []GroupTotal `json:"sales_by_sub_category"`
	SalesByState       []GroupTotal `json:"sales_by_state"`
	SalesBySegment     []GroupTotal `json:"sales_by_segment"`

	RecordCount int  `json:"record_count"`
	Empty       bool `json:"empty"`
}
