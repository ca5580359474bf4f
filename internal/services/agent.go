package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/model"
	"github.com/Riboost-Studio/perfect-menu-print-queue/internal/receipt"
)

// --- WebSocket Agent Logic ---

const DefaultReconnectDelay = 5 * time.Second

type Enqueuer interface {
	Enqueue(ctx context.Context, orderID string, doc model.ReceiptDocument) (*model.PrintJob, error)
}

// Agent keeps a websocket open to the ordering backend and turns every
// print_order it receives into queued print jobs.
type Agent struct {
	WSURL          string
	APIKey         string
	Printer        model.Printer
	Jobs           Enqueuer
	Formatter      *receipt.Formatter
	Logger         *zap.SugaredLogger
	Dialer         *websocket.Dialer
	ReconnectDelay time.Duration
}

// Run connects, serves and reconnects until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	if a.Logger == nil {
		a.Logger = zap.NewNop().Sugar()
	}
	log := a.Logger.With("printer", a.Printer.Name)
	dialer := a.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	delay := a.ReconnectDelay
	if delay <= 0 {
		delay = DefaultReconnectDelay
	}
	header := http.Header{}
	header.Add("X-Api-Key", a.APIKey)

	log.Infow("Connecting to WebSocket...", "url", a.WSURL)
	for {
		conn, _, err := dialer.DialContext(ctx, a.WSURL, header)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warnw("Connection failed, retrying", "error", err, "in", delay)
		} else {
			log.Infow("Connected")
			a.handleConnection(ctx, conn, log)
			conn.Close()
			if ctx.Err() != nil {
				return nil
			}
			log.Warnw("Disconnected, reconnecting", "in", delay)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

func (a *Agent) handleConnection(ctx context.Context, conn *websocket.Conn, log *zap.SugaredLogger) {
	stop := context.AfterFunc(ctx, func() {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "agent stopping"),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	if err := conn.WriteJSON(model.WSMessage{Type: model.MessageTypeRegister, AgentKey: a.Printer.AgentKey}); err != nil {
		log.Errorw("Failed to send register", "error", err)
		return
	}

	for {
		var msg model.WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				log.Warnw("Read error", "error", err)
			}
			return
		}

		switch msg.Type {
		case model.MessageTypeRegistered:
			log.Infow("Successfully registered with server")

		case model.MessageTypePing:
			log.Debugw("Received ping, sending pong")
			if err := conn.WriteJSON(model.WSMessage{Type: model.MessageTypePong, AgentKey: a.Printer.AgentKey}); err != nil {
				log.Errorw("Failed to send pong", "error", err)
				return
			}

		case model.MessageTypeNewOrder:
			reply := a.queueOrders(ctx, msg.Order, log)
			if err := conn.WriteJSON(reply); err != nil {
				log.Errorw("Failed to send reply", "type", reply.Type, "error", err)
				return
			}

		case model.MessageTypeUnregister:
			log.Infow("Server requested unregister")
			return

		default:
			log.Warnw("Unknown message type", "type", msg.Type)
		}
	}
}

// queueOrders formats and enqueues every order in the payload. Printing
// happens later in the queue worker.
func (a *Agent) queueOrders(ctx context.Context, raw json.RawMessage, log *zap.SugaredLogger) model.WSMessage {
	failed := func(err error) model.WSMessage {
		log.Errorw("Print order rejected", "error", err)
		return model.WSMessage{Type: model.MessageTypePrintFailed, AgentKey: a.Printer.AgentKey, Error: err.Error()}
	}

	var payload model.OrderPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return failed(fmt.Errorf("error parsing order JSON: %w", err))
	}
	if !payload.Success || len(payload.Data.Orders) == 0 {
		return failed(fmt.Errorf("no valid orders in payload"))
	}

	reply := model.WSMessage{Type: model.MessageTypeQueued, AgentKey: a.Printer.AgentKey}
	for _, order := range payload.Data.Orders {
		doc := a.Formatter.Format(order)
		job, err := a.Jobs.Enqueue(ctx, orderID(order), doc)
		if err != nil {
			msg := failed(fmt.Errorf("order %s: %w", doc.OrderNumber, err))
			msg.JobIDs = reply.JobIDs
			return msg
		}
		log.Infow("Order queued", "order", doc.OrderNumber, "job", job.ID)
		reply.JobIDs = append(reply.JobIDs, job.ID)
	}
	return reply
}

func orderID(order model.Order) string {
	if order.ID != 0 {
		return strconv.Itoa(order.ID)
	}
	return order.OrderNumber
}

// --- API Registration ---

type printerRegistration struct {
	Name         string `json:"name"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	Description  string `json:"description,omitempty"`
	IsEnabled    bool   `json:"is_enabled"`
	TenantID     int    `json:"tenant_id"`
	RestaurantID int    `json:"restaurant_id"`
}

// RegisterPrinter announces the printer to the backend and stores the
// agent key it hands back in p.
func RegisterPrinter(ctx context.Context, client *http.Client, agent model.AgentConfig, p *model.Printer) error {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	jsonData, err := json.Marshal(printerRegistration{
		Name:         p.Name,
		IP:           p.IP,
		Port:         p.Port,
		Description:  p.Description,
		IsEnabled:    true,
		TenantID:     agent.TenantID,
		RestaurantID: agent.RestaurantID,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, agent.APIURL+"/api/printers", bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", agent.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API Error %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Data struct {
			AgentKey string `json:"agent_key"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return fmt.Errorf("failed to decode registration response: %w", err)
	}
	if response.Data.AgentKey == "" {
		return fmt.Errorf("no agent_key found in response")
	}
	p.AgentKey = response.Data.AgentKey
	return nil
}
