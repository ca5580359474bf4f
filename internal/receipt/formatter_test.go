package receipt

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFormat(t *testing.T) {
	lagos := time.FixedZone("WAT", 3600)
	f := NewFormatter("Mama's Kitchen", "₦", lagos)

	t.Run("maps a delivery order", func(t *testing.T) {
		order := model.Order{
			ID:          42,
			OrderNumber: "A-1001",
			Type:        model.OrderTypeDelivery,
			CreatedAt:   time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC),
			Customer:    model.Customer{Name: " Ada ", Phone: "0803 000 0000"},
			Items: []model.OrderItem{
				{Name: "Jollof Rice", Quantity: 2, Price: dec("1500"), Addons: []model.Addon{
					{Name: "Plantain", Quantity: 1, Price: dec("200")},
					{Name: "Extra pepper"},
				}},
			},
			DeliveryFee:   dec("500"),
			Notes:         "Ring twice\n\n  leave at gate ",
			PaymentStatus: "paid",
			PaymentMethod: "card",
		}

		doc := f.Format(order)

		assert.Equal(t, "A-1001", doc.OrderNumber)
		assert.Equal(t, "05/03/2026", doc.OrderDate)
		assert.Equal(t, "19:30", doc.OrderTime)
		assert.Equal(t, model.OrderTypeDelivery, doc.OrderType)
		assert.Equal(t, "Ada", doc.CustomerName)
		assert.Equal(t, "Mama's Kitchen", doc.RestaurantName)
		assert.Equal(t, "₦", doc.Currency)
		require.Len(t, doc.Items, 1)
		assert.Equal(t, []string{"Plantain (+200.00)", "Extra pepper"}, doc.Items[0].Addons)
		assert.Equal(t, "3000.00", doc.Subtotal.StringFixed(2))
		assert.Equal(t, "3500.00", doc.Total.StringFixed(2))
		assert.Equal(t, []string{"Ring twice", "leave at gate"}, doc.SpecialInstructions)
	})

	t.Run("substitutes defaults for missing fields", func(t *testing.T) {
		doc := f.Format(model.Order{ID: 7, Items: []model.OrderItem{{Name: "Chapman", Price: dec("800")}}})

		assert.Equal(t, "7", doc.OrderNumber)
		assert.Equal(t, DefaultCustomerName, doc.CustomerName)
		assert.Equal(t, DefaultOrderType, doc.OrderType)
		assert.Equal(t, DefaultPaymentStatus, doc.PaymentStatus)
		assert.Equal(t, 1, doc.Items[0].Quantity)
		assert.NotNil(t, doc.Items[0].Addons)
		assert.Empty(t, doc.Items[0].Addons)
		assert.NotNil(t, doc.SpecialInstructions)
		assert.Empty(t, doc.OrderDate)
	})

	t.Run("keeps the order subtotal when given", func(t *testing.T) {
		doc := f.Format(model.Order{
			Items:    []model.OrderItem{{Name: "Suya", Quantity: 1, Price: dec("1000")}},
			Subtotal: dec("950"),
			Tax:      dec("71.25"),
		})
		assert.Equal(t, "950.00", doc.Subtotal.StringFixed(2))
		assert.Equal(t, "1021.25", doc.Total.StringFixed(2))
	})

	t.Run("clamps total at zero", func(t *testing.T) {
		doc := f.Format(model.Order{
			Items:    []model.OrderItem{{Name: "Water", Quantity: 1, Price: dec("100")}},
			Discount: dec("250"),
		})
		assert.True(t, doc.Total.IsZero())
	})

	t.Run("is pure", func(t *testing.T) {
		order := model.Order{ID: 1, Items: []model.OrderItem{{Name: "Puff puff", Quantity: 3, Price: dec("50")}}}
		assert.Equal(t, f.Format(order), f.Format(order))
	})
}

func TestTotal(t *testing.T) {
	tests := []struct {
		name                          string
		subtotal, tax, fee, discount string
		want                          string
	}{
		{"plain", "10", "0", "0", "0", "10.00"},
		{"all parts", "100.10", "7.50", "5", "2.60", "110.00"},
		{"discount larger than bill", "5", "0", "0", "9", "0.00"},
		{"sub-cent precision kept", "0.015", "0", "0", "0", "0.02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Total(dec(tt.subtotal), dec(tt.tax), dec(tt.fee), dec(tt.discount))
			assert.Equal(t, tt.want, got.StringFixed(2))
		})
	}
}

func TestTestDocument(t *testing.T) {
	f := NewFormatter("Test Bistro", "$", nil)
	doc := f.TestDocument(time.Date(2026, 1, 2, 9, 8, 7, 0, time.UTC))

	assert.True(t, doc.Test)
	assert.Equal(t, "TEST-090807", doc.OrderNumber)
	require.Len(t, doc.Items, 1)
	assert.Equal(t, "Test Bistro", doc.RestaurantName)
}
