// Package receipt turns order records into printable receipt documents.
package receipt

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

// Defaults substituted for missing optional order fields.
const (
	DefaultCustomerName  = "Guest"
	DefaultPaymentStatus = "unpaid"
	DefaultOrderType     = model.OrderTypeCarryout

	DateLayout = "02/01/2006"
	TimeLayout = "15:04"
)

// Formatter is a pure order -> ReceiptDocument transform.
type Formatter struct {
	RestaurantName string
	Currency       string
	Location       *time.Location
}

func NewFormatter(restaurantName, currency string, loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{RestaurantName: restaurantName, Currency: currency, Location: loc}
}

// Format never fails; missing optional fields get the package defaults.
func (f *Formatter) Format(order model.Order) model.ReceiptDocument {
	doc := model.ReceiptDocument{
		RestaurantName:      f.restaurantName(order),
		OrderNumber:         orderNumber(order),
		OrderType:           order.Type,
		CustomerName:        strings.TrimSpace(order.Customer.Name),
		CustomerPhone:       strings.TrimSpace(order.Customer.Phone),
		Currency:            f.Currency,
		Tax:                 nonNegative(order.Tax),
		DeliveryFee:         nonNegative(order.DeliveryFee),
		Discount:            nonNegative(order.Discount),
		PaymentStatus:       strings.TrimSpace(order.PaymentStatus),
		PaymentMethod:       strings.TrimSpace(order.PaymentMethod),
		SpecialInstructions: instructions(order.Notes),
		Items:               make([]model.ReceiptItem, 0, len(order.Items)),
	}

	if doc.OrderType != model.OrderTypeDelivery && doc.OrderType != model.OrderTypeCarryout {
		doc.OrderType = DefaultOrderType
	}
	if doc.CustomerName == "" {
		doc.CustomerName = DefaultCustomerName
	}
	if doc.PaymentStatus == "" {
		doc.PaymentStatus = DefaultPaymentStatus
	}
	if !order.CreatedAt.IsZero() {
		created := order.CreatedAt.In(f.Location)
		doc.OrderDate = created.Format(DateLayout)
		doc.OrderTime = created.Format(TimeLayout)
	}

	lines := decimal.Zero
	for _, it := range order.Items {
		item := model.ReceiptItem{
			Name:     strings.TrimSpace(it.Name),
			Quantity: it.Quantity,
			Price:    nonNegative(it.Price),
			Addons:   addons(it.Addons),
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		lines = lines.Add(item.LineTotal())
		doc.Items = append(doc.Items, item)
	}

	doc.Subtotal = nonNegative(order.Subtotal)
	if doc.Subtotal.IsZero() {
		doc.Subtotal = lines
	}
	doc.Total = Total(doc.Subtotal, doc.Tax, doc.DeliveryFee, doc.Discount)
	return doc
}

// Total is subtotal + tax + fee - discount, clamped at zero.
func Total(subtotal, tax, fee, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(tax).Add(fee).Sub(discount)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

// TestDocument is the synthetic receipt used to check a printer end to end.
func (f *Formatter) TestDocument(now time.Time) model.ReceiptDocument {
	now = now.In(f.Location)
	price := decimal.NewFromInt(0)
	return model.ReceiptDocument{
		RestaurantName: f.RestaurantName,
		OrderNumber:    "TEST-" + now.Format("150405"),
		OrderDate:      now.Format(DateLayout),
		OrderTime:      now.Format(TimeLayout),
		OrderType:      model.OrderTypeCarryout,
		CustomerName:   "Printer Test",
		Items: []model.ReceiptItem{
			{Name: "Test line", Quantity: 1, Price: price, Addons: []string{}},
		},
		Currency:            f.Currency,
		PaymentStatus:       "n/a",
		SpecialInstructions: []string{"If you can read this, printing works."},
		Test:                true,
	}
}

func (f *Formatter) restaurantName(order model.Order) string {
	if name := strings.TrimSpace(order.Restaurant.Name); name != "" {
		return name
	}
	return f.RestaurantName
}

func orderNumber(order model.Order) string {
	if n := strings.TrimSpace(order.OrderNumber); n != "" {
		return n
	}
	if order.ID != 0 {
		return strconv.Itoa(order.ID)
	}
	return ""
}

func addons(in []model.Addon) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		name := strings.TrimSpace(a.Name)
		if name == "" {
			continue
		}
		if a.Quantity > 1 {
			name = fmt.Sprintf("%dx %s", a.Quantity, name)
		}
		if a.Price.IsPositive() {
			name = fmt.Sprintf("%s (+%s)", name, a.Price.StringFixed(2))
		}
		out = append(out, name)
	}
	return out
}

func instructions(notes string) []string {
	out := []string{}
	for _, line := range strings.Split(notes, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
