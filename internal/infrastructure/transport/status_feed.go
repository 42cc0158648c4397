package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// ControlPath is the HTTP path of the control socket
const ControlPath = "/control"

// DefaultWriteTimeout bounds every write to a control client
const DefaultWriteTimeout = 5 * time.Second

// Controller receives the intents sent by feed clients
type Controller interface {
	StartStop(name string) error
	Disconnect()
	TriggerReconcile(ctx context.Context, onDone func(*model.PassReport))
	Snapshot() model.SnapshotPayload
}

type feedClient struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	timeout time.Duration
}

// write sends one message; a client that does not take it within the timeout fails
func (c *feedClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// StatusFeed is the websocket hub of the control surface. Every client gets a
// snapshot on connect, then every published event; clients send intents back.
type StatusFeed struct {
	ctx        context.Context
	upgrader   websocket.Upgrader
	controller Controller
	logger     port.Logger
	// writeTimeout must be set before the feed serves its first client
	writeTimeout time.Duration

	mu      sync.RWMutex
	clients map[*websocket.Conn]*feedClient
}

// NewStatusFeed creates a hub. Reload intents run their pass under ctx.
func NewStatusFeed(ctx context.Context, controller Controller, logger port.Logger) *StatusFeed {
	return &StatusFeed{
		ctx: ctx,
		upgrader: websocket.Upgrader{
			// the socket only listens on loopback
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		controller:   controller,
		logger:       logger,
		writeTimeout: DefaultWriteTimeout,
		clients:      make(map[*websocket.Conn]*feedClient),
	}
}

// ServeHTTP upgrades the request and registers the client
func (f *StatusFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Warn("Control socket upgrade failed: %v", err)
		return
	}
	client := &feedClient{conn: conn, timeout: f.writeTimeout}

	f.mu.Lock()
	f.clients[conn] = client
	count := len(f.clients)
	f.mu.Unlock()
	f.logger.Info("Control client connected from %s (%d connected)", r.RemoteAddr, count)

	f.sendTo(client, model.MessageTypeSnapshot, f.controller.Snapshot())
	go f.readLoop(client)
}

// Publish broadcasts one event to every connected client
func (f *StatusFeed) Publish(msgType model.MessageType, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		f.logger.Error("Failed to encode %s event: %v", msgType, err)
		return
	}

	f.mu.RLock()
	clients := make([]*feedClient, 0, len(f.clients))
	for _, c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			f.logger.Debug("Dropping control client: %v", err)
			f.remove(c)
		}
	}
}

// Alert broadcasts err as an alert event
func (f *StatusFeed) Alert(err error) {
	if err == nil {
		return
	}
	f.Publish(model.MessageTypeAlert, model.AlertPayload{Message: err.Error()})
}

// ClientCount returns the number of connected clients
func (f *StatusFeed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close disconnects every client
func (f *StatusFeed) Close() {
	f.mu.Lock()
	clients := f.clients
	f.clients = make(map[*websocket.Conn]*feedClient)
	f.mu.Unlock()

	for conn := range clients {
		conn.Close()
	}
}

func (f *StatusFeed) readLoop(client *feedClient) {
	defer f.remove(client)

	for {
		_, data, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				f.logger.Debug("Control client read failed: %v", err)
			}
			return
		}

		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			f.sendError(client, "bad_message", err)
			continue
		}
		f.handle(client, &msg)
	}
}

func (f *StatusFeed) handle(client *feedClient, msg *model.Message) {
	switch msg.Type {
	case model.MessageTypeToggle:
		var payload model.TogglePayload
		if err := msg.ParsePayload(&payload); err != nil || payload.Name == "" {
			f.sendError(client, "bad_message", errors.New("toggle requires a tunnel name"))
			return
		}
		if err := f.controller.StartStop(payload.Name); err != nil {
			code := "toggle_failed"
			if errors.Is(err, model.ErrTunnelNotFound) {
				code = "not_found"
			}
			f.sendError(client, code, err)
			return
		}
		f.sendTo(client, model.MessageTypeSnapshot, f.controller.Snapshot())
	case model.MessageTypeDisconnect:
		f.controller.Disconnect()
		f.sendTo(client, model.MessageTypeSnapshot, f.controller.Snapshot())
	case model.MessageTypeReload:
		var payload model.ReloadPayload
		if err := msg.ParsePayload(&payload); err != nil {
			f.sendError(client, "bad_message", err)
			return
		}
		f.logger.Info("Reload requested over control socket")
		f.controller.TriggerReconcile(f.ctx, func(report *model.PassReport) {
			reply := model.NewReportPayload(report)
			reply.RequestID = payload.RequestID
			f.sendTo(client, model.MessageTypeReport, reply)
		})
	default:
		f.sendError(client, "unsupported", errors.New("unsupported message type: "+string(msg.Type)))
	}
}

func (f *StatusFeed) sendTo(client *feedClient, msgType model.MessageType, payload interface{}) {
	data, err := encode(msgType, payload)
	if err != nil {
		f.logger.Error("Failed to encode %s event: %v", msgType, err)
		return
	}
	if err := client.write(data); err != nil {
		f.logger.Debug("Dropping control client: %v", err)
		f.remove(client)
	}
}

func (f *StatusFeed) sendError(client *feedClient, code string, err error) {
	f.sendTo(client, model.MessageTypeError, model.ErrorPayload{Code: code, Message: err.Error()})
}

func (f *StatusFeed) remove(client *feedClient) {
	f.mu.Lock()
	_, ok := f.clients[client.conn]
	delete(f.clients, client.conn)
	f.mu.Unlock()
	if ok {
		client.conn.Close()
	}
}

func encode(msgType model.MessageType, payload interface{}) ([]byte, error) {
	msg, err := model.NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(msg)
}

var (
	_ port.EventPublisher = (*StatusFeed)(nil)
	_ port.Alerter        = (*StatusFeed)(nil)
	_ http.Handler        = (*StatusFeed)(nil)
)
