package escpos

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

func jollofReceipt() model.ReceiptDocument {
	return model.ReceiptDocument{
		RestaurantName: "Mama's Kitchen",
		OrderNumber:    "1001",
		OrderDate:      "05/03/2026",
		OrderTime:      "19:30",
		OrderType:      model.OrderTypeDelivery,
		CustomerName:   "Ada",
		CustomerPhone:  "08030000000",
		Items: []model.ReceiptItem{
			{Name: "Jollof Rice", Quantity: 2, Price: decimal.RequireFromString("1500.00"), Addons: []string{}},
		},
		Currency:            "₦",
		Subtotal:            decimal.RequireFromString("3000.00"),
		DeliveryFee:         decimal.RequireFromString("500.00"),
		Discount:            decimal.Zero,
		Total:               decimal.RequireFromString("3500.00"),
		PaymentStatus:       "paid",
		PaymentMethod:       "card",
		SpecialInstructions: []string{},
	}
}

// printedLines strips the command bytes and returns the text lines.
func printedLines(t *testing.T, data []byte) []string {
	t.Helper()
	var text bytes.Buffer
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ESC:
			if data[i+1] == '@' {
				i++
			} else {
				i += 2
			}
		case GS:
			if data[i+1] == 'V' {
				i += 3
			} else {
				i += 2
			}
		default:
			text.WriteByte(data[i])
		}
	}
	return strings.Split(strings.TrimRight(text.String(), "\n"), "\n")
}

func TestEncode_JollofScenario(t *testing.T) {
	data, err := NewEncoder(DefaultColumns).Encode(jollofReceipt())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, CmdInit), "initialize must come first")
	assert.True(t, bytes.HasSuffix(data, Cut(0)), "cut must come last")
	assert.Equal(t, 1, bytes.Count(data, []byte("3,500.00")))
	assert.Contains(t, string(data), "NGN 3,500.00")
	assert.NotContains(t, string(data), "₦")

	for _, b := range data {
		if b >= 0x80 {
			t.Fatalf("non-ASCII byte 0x%02x in output", b)
		}
	}
}

func TestEncode_Layout(t *testing.T) {
	doc := jollofReceipt()
	doc.Items = append(doc.Items, model.ReceiptItem{
		Name:     "Asun peppered goat meat with extra onions and a side of yam",
		Quantity: 1,
		Price:    decimal.RequireFromString("12500"),
		Addons:   []string{"Plantain (+200.00)"},
	})
	doc.Discount = decimal.RequireFromString("100")
	doc.SpecialInstructions = []string{"Ring the bell twice"}

	data, err := NewEncoder(32).Encode(doc)
	require.NoError(t, err)

	lines := printedLines(t, data)
	for _, l := range lines {
		assert.LessOrEqual(t, len(l), 32, "line overflows paper: %q", l)
	}
	assert.Contains(t, lines, Columns("2x Jollof Rice", "3,000.00", 32))
	assert.Contains(t, lines, Columns("1x Asun peppered goat", "12,500.00", 32))
	assert.Contains(t, lines, "   + Plantain (+200.00)")
	assert.Contains(t, lines, Columns("Discount", "-100.00", 32))
	assert.Contains(t, lines, "* Ring the bell twice")

	var priceEnds []int
	for _, l := range lines {
		if strings.HasSuffix(l, "3,000.00") || strings.HasSuffix(l, "12,500.00") {
			priceEnds = append(priceEnds, len(l))
		}
	}
	require.NotEmpty(t, priceEnds)
	for _, end := range priceEnds {
		assert.Equal(t, 32, end, "price column drifted")
	}
}

func TestEncode_Idempotent(t *testing.T) {
	enc := NewEncoder(DefaultColumns)
	doc := jollofReceipt()

	first, err := enc.Encode(doc)
	require.NoError(t, err)
	second, err := enc.Encode(doc)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEncode_EmptyItems(t *testing.T) {
	doc := jollofReceipt()
	doc.Items = nil

	_, err := NewEncoder(DefaultColumns).Encode(doc)

	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.Equal(t, "1001", encErr.OrderNumber)

	doc.Test = true
	data, err := NewEncoder(DefaultColumns).Encode(doc)
	require.NoError(t, err)
	assert.Contains(t, string(data), "*** TEST PRINT ***")
}

func TestEncode_OrderTypeIsSanitized(t *testing.T) {
	doc := jollofReceipt()
	doc.OrderType = "delivery\x1bp café"

	data, err := NewEncoder(DefaultColumns).Encode(doc)
	require.NoError(t, err)

	lines := printedLines(t, data)
	assert.Contains(t, lines, "DELIVERY?P CAFE")
	for _, l := range lines {
		for i := 0; i < len(l); i++ {
			assert.True(t, l[i] >= 0x20 && l[i] <= 0x7E, "byte %#x in %q", l[i], l)
		}
	}
}

func TestEncode_NegativeTotalClamped(t *testing.T) {
	doc := jollofReceipt()
	doc.Currency = ""
	doc.Total = decimal.RequireFromString("-20")

	data, err := NewEncoder(DefaultColumns).Encode(doc)
	require.NoError(t, err)

	assert.Contains(t, printedLines(t, data), Columns("TOTAL", "0.00", DefaultColumns))
}

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"5.5", "5.50"},
		{"999.999", "1,000.00"},
		{"3500", "3,500.00"},
		{"1234567.891", "1,234,567.89"},
		{"-42000.1", "-42,000.10"},
		{"100000", "100,000.00"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(decimal.RequireFromString(tt.in)))
		})
	}
}
