package models

import "time"

// Record is one sales transaction row. Raw holds the original field text in
// header order and is what gets exported.
type Record struct {
	RowID        string
	OrderID      string
	OrderDate    time.Time
	ShipDate     time.Time
	ShipMode     string
	CustomerID   string
	CustomerName string
	Segment      string
	Country      string
	City         string
	State        string
	PostalCode   string
	Region       string
	ProductID    string
	Category     string
	SubCategory  string
	ProductName  string
	Sales        float64

	Year      string
	Month     string
	YearMonth string

	Raw []string
}

// RecordView is the JSON shape of a record in the raw data table. It carries
// every source column plus the derived period key.
type RecordView struct {
	RowID        string  `json:"row_id"`
	OrderID      string  `json:"order_id"`
	OrderDate    string  `json:"order_date"`
	ShipDate     string  `json:"ship_date"`
	ShipMode     string  `json:"ship_mode"`
	CustomerID   string  `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	Segment      string  `json:"segment"`
	Country      string  `json:"country"`
	Region       string  `json:"region"`
	State        string  `json:"state"`
	City         string  `json:"city"`
	PostalCode   string  `json:"postal_code"`
	ProductID    string  `json:"product_id"`
	Category     string  `json:"category"`
	SubCategory  string  `json:"sub_category"`
	ProductName  string  `json:"product_name"`
	Sales        float64 `json:"sales"`
	YearMonth    string  `json:"year_month"`
}

func (r Record) View() RecordView {
	return RecordView{
		RowID:        r.RowID,
		OrderID:      r.OrderID,
		OrderDate:    r.OrderDate.Format(time.DateOnly),
		ShipDate:     r.ShipDate.Format(time.DateOnly),
		ShipMode:     r.ShipMode,
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		Segment:      r.Segment,
		Country:      r.Country,
		Region:       r.Region,
		State:        r.State,
		City:         r.City,
		PostalCode:   r.PostalCode,
		ProductID:    r.ProductID,
		Category:     r.Category,
		SubCategory:  r.SubCategory,
		ProductName:  r.ProductName,
		Sales:        r.Sales,
		YearMonth:    r.YearMonth,
	}
}
