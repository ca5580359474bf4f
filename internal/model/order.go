package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// --- Order Structures (as sent by the ordering backend) ---

type OrderPayload struct {
	Success bool `json:"success"`
	Data    struct {
		Orders []Order `json:"orders"`
	} `json:"data"`
}

type Order struct {
	ID            int             `json:"id"`
	OrderNumber   string          `json:"orderNumber"`
	Type          OrderType       `json:"type"`
	Notes         string          `json:"notes"`
	CreatedAt     time.Time       `json:"createdAt"`
	Restaurant    Restaurant      `json:"restaurant"`
	Customer      Customer        `json:"customer"`
	Items         []OrderItem     `json:"orderItems"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	DeliveryFee   decimal.Decimal `json:"deliveryFee"`
	Discount      decimal.Decimal `json:"discount"`
	PaymentStatus string          `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod"`
}

type Restaurant struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Customer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type OrderItem struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Addons   []Addon         `json:"addons"`
}

type Addon struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// --- WebSocket Messages ---

type MessageType string

const (
	MessageTypeRegister    MessageType = "register"
	MessageTypeRegistered  MessageType = "registered"
	MessageTypeUnregister  MessageType = "unregister"
	MessageTypePing        MessageType = "ping"
	MessageTypePong        MessageType = "pong"
	MessageTypeNewOrder    MessageType = "print_order"
	MessageTypeQueued      MessageType = "queued"
	MessageTypePrintFailed MessageType = "print_failed"
)

type WSMessage struct {
	Type     MessageType     `json:"type"`
	AgentKey string          `json:"agent_key,omitempty"`
	Order    json.RawMessage `json:"order,omitempty"` // Keep raw to parse into specific structs
	JobIDs   []string        `json:"job_ids,omitempty"`
	Error    string          `json:"error,omitempty"`
}
