package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// --- Receipt Document ---

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypeCarryout OrderType = "carryout"
)

// ReceiptDocument is the pre-rendered receipt a producer stores with each
// print job. Treat it as immutable once built.
type ReceiptDocument struct {
	RestaurantName      string          `json:"restaurantName,omitempty"`
	OrderNumber         string          `json:"orderNumber"`
	OrderDate           string          `json:"orderDate"`
	OrderTime           string          `json:"orderTime"`
	OrderType           OrderType       `json:"orderType"`
	CustomerName        string          `json:"customerName"`
	CustomerPhone       string          `json:"customerPhone"`
	Items               []ReceiptItem   `json:"items"`
	Currency            string          `json:"currency,omitempty"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	Tax                 decimal.Decimal `json:"tax"`
	DeliveryFee         decimal.Decimal `json:"deliveryFee"`
	Discount            decimal.Decimal `json:"discount"`
	Total               decimal.Decimal `json:"total"`
	PaymentStatus       string          `json:"paymentStatus"`
	PaymentMethod       string          `json:"paymentMethod"`
	SpecialInstructions []string        `json:"specialInstructions"`
	Test                bool            `json:"test,omitempty"`
}

type ReceiptItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Addons   []string        `json:"addons"`
}

// LineTotal is quantity times unit price.
func (i ReceiptItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// --- Print Jobs ---

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusPrinted    JobStatus = "printed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the job can never be attempted again.
func (s JobStatus) Terminal() bool {
	return s == JobStatusPrinted || s == JobStatusFailed
}

type PrintJob struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	Document     ReceiptDocument `json:"print_data"`
	Status       JobStatus       `json:"status"`
	Attempts     int             `json:"attempts"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	ClaimedBy    string          `json:"claimed_by,omitempty"`
	ClaimedAt    *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ProcessedAt  *time.Time      `json:"processed_at,omitempty"`

	// DataError is set when the stored print_data could not be decoded.
	DataError error `json:"-"`
}

// NewJobRequest is the producer's queue entry.
type NewJobRequest struct {
	OrderID  string          `json:"order_id"`
	Document json.RawMessage `json:"print_data"`
}

// --- Printer Status ---

// PrinterStatus is a point-in-time health reading. Nil flags are unknown.
type PrinterStatus struct {
	Connected     bool   `json:"connected"`
	Online        *bool  `json:"online,omitempty"`
	CoverClosed   *bool  `json:"coverClosed,omitempty"`
	PaperPresent  *bool  `json:"paperPresent,omitempty"`
	PaperNearEnd  *bool  `json:"paperNearEnd,omitempty"`
	RawStatusByte *byte  `json:"rawStatusByte,omitempty"`
	RawPaperByte  *byte  `json:"rawPaperByte,omitempty"`
	Error         string `json:"error,omitempty"`
}

// Ready treats unknown flags as healthy.
func (s PrinterStatus) Ready() bool {
	return s.Connected &&
		(s.Online == nil || *s.Online) &&
		(s.CoverClosed == nil || *s.CoverClosed) &&
		(s.PaperPresent == nil || *s.PaperPresent)
}

// --- Batch Result ---

type BatchResult struct {
	Processed int      `json:"processed"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Skipped   int      `json:"skipped"`
	Errors    []string `json:"errors"`
}
