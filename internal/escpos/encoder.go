package escpos

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

const (
	// DefaultColumns is Font A on 80mm paper as most kitchen printers ship.
	DefaultColumns = 42
	// DefaultFeedLines clears the cutter on common 80mm mechanisms.
	DefaultFeedLines = 4

	priceColumn = 10 // "999,999.99"
	minColumns  = 24
)

// EncodingError means the document can never be printed as-is.
type EncodingError struct {
	OrderNumber string
	Reason      string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("cannot encode receipt %q: %s", e.OrderNumber, e.Reason)
}

// Encoder renders ReceiptDocuments as ESC/POS text receipts.
type Encoder struct {
	Columns   int
	FeedLines byte
	Footer    string
}

func NewEncoder(columns int) *Encoder {
	if columns < minColumns {
		columns = DefaultColumns
	}
	return &Encoder{Columns: columns, FeedLines: DefaultFeedLines, Footer: "Thank you!"}
}

// Validate rejects documents no renderer can turn into a receipt.
func Validate(doc model.ReceiptDocument) error {
	if len(doc.Items) == 0 && !doc.Test {
		return &EncodingError{OrderNumber: doc.OrderNumber, Reason: "receipt has no items"}
	}
	return nil
}

// Encode is deterministic: the same document always yields the same bytes.
func (e *Encoder) Encode(doc model.ReceiptDocument) ([]byte, error) {
	if err := Validate(doc); err != nil {
		return nil, err
	}

	w := &writer{width: e.Columns}
	if w.width < minColumns {
		w.width = DefaultColumns
	}

	w.raw(CmdInit)
	w.raw(SelectCodePage(CodePagePC437))

	e.header(w, doc)
	e.items(w, doc)
	e.totals(w, doc)
	e.footer(w, doc)

	w.raw(Feed(e.FeedLines))
	w.raw(Cut(0))
	return w.buf.Bytes(), nil
}

func (e *Encoder) header(w *writer, doc model.ReceiptDocument) {
	w.raw(Align(AlignCenter))
	if doc.RestaurantName != "" {
		w.raw(Bold(true))
		w.raw(Size(SizeDouble))
		for _, l := range Wrap(Sanitize(doc.RestaurantName), w.width/2) {
			w.line(l)
		}
		w.raw(Size(SizeNormal))
		w.raw(Bold(false))
	}
	if doc.Test {
		w.line("*** TEST PRINT ***")
	}
	w.raw(Bold(true))
	w.line(Sanitize("ORDER #" + doc.OrderNumber))
	w.raw(Bold(false))
	if doc.OrderType != "" {
		w.line(Sanitize(strings.ToUpper(string(doc.OrderType))))
	}
	if when := strings.TrimSpace(doc.OrderDate + " " + doc.OrderTime); when != "" {
		w.line(Sanitize(when))
	}
	w.raw(Align(AlignLeft))
	w.rule()

	w.wrapped("Customer: " + doc.CustomerName)
	if doc.CustomerPhone != "" {
		w.wrapped("Phone: " + doc.CustomerPhone)
	}
	w.rule()
}

func (e *Encoder) items(w *writer, doc model.ReceiptDocument) {
	for _, it := range doc.Items {
		amount := FormatMoney(it.LineTotal())
		prefix := fmt.Sprintf("%dx ", it.Quantity)
		indent := strings.Repeat(" ", len(prefix))

		col := priceColumn
		if len(amount) > col {
			col = len(amount)
		}
		nameWidth := w.width - col - 1 - len(prefix)
		lines := Wrap(Sanitize(it.Name), nameWidth)
		w.line(Columns(prefix+lines[0], amount, w.width))
		for _, l := range lines[1:] {
			w.line(indent + l)
		}

		for _, addon := range it.Addons {
			sub := Wrap(Sanitize(addon), w.width-len(prefix)-2)
			w.line(indent + "+ " + sub[0])
			for _, l := range sub[1:] {
				w.line(indent + "  " + l)
			}
		}
	}
	w.rule()
}

func (e *Encoder) totals(w *writer, doc model.ReceiptDocument) {
	w.line(Columns("Subtotal", FormatMoney(doc.Subtotal), w.width))
	if !doc.Tax.IsZero() {
		w.line(Columns("Tax", FormatMoney(doc.Tax), w.width))
	}
	if doc.OrderType == model.OrderTypeDelivery || !doc.DeliveryFee.IsZero() {
		w.line(Columns("Delivery Fee", FormatMoney(doc.DeliveryFee), w.width))
	}
	if !doc.Discount.IsZero() {
		w.line(Columns("Discount", "-"+FormatMoney(doc.Discount), w.width))
	}

	total := doc.Total
	if total.IsNegative() {
		total = decimal.Zero
	}
	w.raw(Bold(true))
	w.line(Columns("TOTAL", CurrencyPrefix(doc.Currency)+FormatMoney(total), w.width))
	w.raw(Bold(false))
	w.rule()
}

func (e *Encoder) footer(w *writer, doc model.ReceiptDocument) {
	if doc.PaymentStatus != "" || doc.PaymentMethod != "" {
		payment := "Payment: " + strings.ToUpper(doc.PaymentStatus)
		if doc.PaymentMethod != "" {
			payment += " (" + doc.PaymentMethod + ")"
		}
		w.wrapped(payment)
	}

	if len(doc.SpecialInstructions) > 0 {
		w.raw(Bold(true))
		w.line("Special instructions:")
		w.raw(Bold(false))
		for _, in := range doc.SpecialInstructions {
			lines := Wrap(Sanitize(in), w.width-2)
			w.line("* " + lines[0])
			for _, l := range lines[1:] {
				w.line("  " + l)
			}
		}
	}

	if e.Footer != "" {
		w.raw([]byte{LF})
		w.raw(Align(AlignCenter))
		w.line(Sanitize(e.Footer))
		w.raw(Align(AlignLeft))
	}
}

// FormatMoney renders d with two decimals and thousands separators.
func FormatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s[:len(s)-3], s[len(s)-3:]

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return sign + b.String() + frac
}

type writer struct {
	buf   bytes.Buffer
	width int
}

func (w *writer) raw(b []byte) { w.buf.Write(b) }

func (w *writer) line(s string) {
	w.buf.WriteString(s)
	w.buf.WriteByte(LF)
}

func (w *writer) wrapped(s string) {
	for _, l := range Wrap(Sanitize(s), w.width) {
		w.line(l)
	}
}

func (w *writer) rule() { w.line(strings.Repeat("-", w.width)) }
