package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/receipt"
)

const orderPayload = `{
	"success": true,
	"data": {"orders": [{
		"id": 77,
		"orderNumber": "1042",
		"type": "delivery",
		"notes": "Extra pepper",
		"createdAt": "2026-10-15T12:30:00Z",
		"customer": {"name": "Ada", "phone": "0803"},
		"orderItems": [{"name": "Jollof Rice", "quantity": 2, "price": "1500"}],
		"deliveryFee": "500"
	}]}
}`

type memoryJobs struct {
	mu   sync.Mutex
	docs map[string]model.ReceiptDocument
	err  error
}

func (m *memoryJobs) Enqueue(ctx context.Context, orderID string, doc model.ReceiptDocument) (*model.PrintJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.docs == nil {
		m.docs = map[string]model.ReceiptDocument{}
	}
	m.docs[orderID] = doc
	return &model.PrintJob{ID: "job-" + orderID, OrderID: orderID, Document: doc, Status: model.JobStatusPending}, nil
}

// backend plays the ordering server side of the agent protocol and hands
// every message the agent sends to received.
func backend(t *testing.T, script func(conn *websocket.Conn)) (*httptest.Server, chan model.WSMessage) {
	t.Helper()
	received := make(chan model.WSMessage, 16)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "api-key" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		go func() {
			for {
				var msg model.WSMessage
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				received <- msg
			}
		}()
		script(conn)
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func next(t *testing.T, ch chan model.WSMessage) model.WSMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(3 * time.Second):
		t.Fatal("no message from agent")
		return model.WSMessage{}
	}
}

func newTestAgent(srv *httptest.Server, jobs Enqueuer) *Agent {
	return &Agent{
		WSURL:          "ws" + strings.TrimPrefix(srv.URL, "http"),
		APIKey:         "api-key",
		Printer:        model.Printer{Name: "Kitchen", AgentKey: "agent-1"},
		Jobs:           jobs,
		Formatter:      receipt.NewFormatter("Mama Put", "₦", time.UTC),
		ReconnectDelay: 10 * time.Millisecond,
	}
}

func TestAgent_QueuesPrintOrders(t *testing.T) {
	done := make(chan struct{})
	srv, received := backend(t, func(conn *websocket.Conn) {
		conn.WriteJSON(model.WSMessage{Type: model.MessageTypeRegistered})
		conn.WriteJSON(model.WSMessage{Type: model.MessageTypePing})
		conn.WriteJSON(model.WSMessage{Type: model.MessageTypeNewOrder, Order: json.RawMessage(orderPayload)})
		<-done
	})
	defer close(done)

	jobs := &memoryJobs{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- newTestAgent(srv, jobs).Run(ctx) }()

	reg := next(t, received)
	assert.Equal(t, model.MessageTypeRegister, reg.Type)
	assert.Equal(t, "agent-1", reg.AgentKey)

	assert.Equal(t, model.MessageTypePong, next(t, received).Type)

	queued := next(t, received)
	assert.Equal(t, model.MessageTypeQueued, queued.Type)
	assert.Equal(t, []string{"job-77"}, queued.JobIDs)

	jobs.mu.Lock()
	doc := jobs.docs["77"]
	jobs.mu.Unlock()
	assert.Equal(t, "1042", doc.OrderNumber)
	assert.Equal(t, model.OrderTypeDelivery, doc.OrderType)
	assert.Equal(t, "15/10/2026", doc.OrderDate)
	assert.Equal(t, []string{"Extra pepper"}, doc.SpecialInstructions)
	assert.Equal(t, "3500", doc.Total.String())

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestAgent_ReportsFailures(t *testing.T) {
	done := make(chan struct{})
	srv, received := backend(t, func(conn *websocket.Conn) {
		conn.WriteJSON(model.WSMessage{Type: model.MessageTypeNewOrder, Order: json.RawMessage(`{"success":false}`)})
		conn.WriteJSON(model.WSMessage{Type: model.MessageTypeNewOrder, Order: json.RawMessage(orderPayload)})
		<-done
	})
	defer close(done)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestAgent(srv, &memoryJobs{err: errors.New("disk full")}).Run(ctx)

	next(t, received) // register

	invalid := next(t, received)
	assert.Equal(t, model.MessageTypePrintFailed, invalid.Type)
	assert.Contains(t, invalid.Error, "no valid orders")

	storeDown := next(t, received)
	assert.Equal(t, model.MessageTypePrintFailed, storeDown.Type)
	assert.Contains(t, storeDown.Error, "disk full")
}

func TestAgent_Reconnects(t *testing.T) {
	srv, received := backend(t, func(conn *websocket.Conn) {
		conn.WriteJSON(model.WSMessage{Type: model.MessageTypeUnregister})
		time.Sleep(50 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go newTestAgent(srv, &memoryJobs{}).Run(ctx)

	assert.Equal(t, model.MessageTypeRegister, next(t, received).Type)
	assert.Equal(t, model.MessageTypeRegister, next(t, received).Type, "agent registers again after unregister")
}

func TestAgent_StopsWhileBackendDown(t *testing.T) {
	agent := &Agent{WSURL: "ws://127.0.0.1:1/agent", ReconnectDelay: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- agent.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestRegisterPrinter(t *testing.T) {
	var got printerRegistration
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/printers", r.URL.Path)
		assert.Equal(t, "api-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":{"agent_key":"agent-xyz"}}`))
	}))
	defer srv.Close()

	p := model.Printer{Name: "Kitchen", IP: "192.168.1.50", Port: 9100}
	cfg := model.AgentConfig{APIURL: srv.URL, APIKey: "api-key", TenantID: 3, RestaurantID: 9}

	require.NoError(t, RegisterPrinter(context.Background(), srv.Client(), cfg, &p))
	assert.Equal(t, "agent-xyz", p.AgentKey)
	assert.Equal(t, 3, got.TenantID)
	assert.Equal(t, 9, got.RestaurantID)
	assert.True(t, got.IsEnabled)
}

func TestRegisterPrinter_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-Key") != "api-key" {
			http.Error(w, "bad key", http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	p := model.Printer{Name: "Kitchen"}
	err := RegisterPrinter(context.Background(), nil, model.AgentConfig{APIURL: srv.URL, APIKey: "wrong"}, &p)
	assert.ErrorContains(t, err, "API Error 401")

	err = RegisterPrinter(context.Background(), nil, model.AgentConfig{APIURL: srv.URL, APIKey: "api-key"}, &p)
	assert.ErrorContains(t, err, "no agent_key")
}
