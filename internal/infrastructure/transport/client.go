package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/specht/specht-client/internal/domain/model"
	"github.com/specht/specht-client/internal/domain/port"
)

// ErrNotConnected is returned when the client has no open control socket
var ErrNotConnected = errors.New("not connected to control socket")

// Client talks to the control socket of a running serve process
type Client struct {
	address     string
	conn        *websocket.Conn
	isConnected bool
	mutex       sync.Mutex
	logger      port.Logger
	handlers    map[model.MessageType]func(*model.Message) error
}

// NewClient creates a client for the control socket listening on address (host:port)
func NewClient(address string, logger port.Logger) *Client {
	return &Client{
		address:  address,
		logger:   logger,
		handlers: make(map[model.MessageType]func(*model.Message) error),
	}
}

// Connect dials the control socket
func (c *Client) Connect() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.isConnected {
		return nil
	}

	u := url.URL{Scheme: "ws", Host: c.address, Path: ControlPath}
	c.logger.Debug("Connecting to control socket: %s", u.String())

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s (is `specht serve` running?): %w", u.String(), err)
	}

	c.conn = conn
	c.isConnected = true
	return nil
}

// Close closes the client connection
func (c *Client) Close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.isConnected {
		return
	}
	if c.conn != nil {
		_ = c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
		c.conn = nil
	}
	c.isConnected = false
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.isConnected
}

// RegisterHandler registers a message handler used by Listen
func (c *Client) RegisterHandler(msgType model.MessageType, handler func(*model.Message) error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.handlers[msgType] = handler
}

// Send sends one intent
func (c *Client) Send(msgType model.MessageType, payload interface{}) error {
	msg, err := model.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to convert message to JSON: %w", err)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()
	if !c.isConnected || c.conn == nil {
		return ErrNotConnected
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.isConnected = false
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// Receive reads the next message, waiting at most timeout
func (c *Client) Receive(timeout time.Duration) (*model.Message, error) {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	if timeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))
		defer conn.SetReadDeadline(time.Time{})
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("failed to read message: %w", err)
	}

	var msg model.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	return &msg, nil
}

// Expect reads until a message of one of the given types arrives. An error
// message from the server is returned as an error.
func (c *Client) Expect(timeout time.Duration, types ...model.MessageType) (*model.Message, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("timeout waiting for %v", types)
		}
		msg, err := c.Receive(remaining)
		if err != nil {
			return nil, err
		}
		if msg.Type == model.MessageTypeError {
			var payload model.ErrorPayload
			if err := msg.ParsePayload(&payload); err != nil {
				return nil, fmt.Errorf("failed to parse error message: %w", err)
			}
			return nil, fmt.Errorf("error from server: %s - %s", payload.Code, payload.Message)
		}
		for _, t := range types {
			if msg.Type == t {
				return msg, nil
			}
		}
	}
}

// Listen dispatches incoming messages to the registered handlers until ctx is
// done or the connection drops
func (c *Client) Listen(ctx context.Context) error {
	c.mutex.Lock()
	conn := c.conn
	c.mutex.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	stop := context.AfterFunc(ctx, c.Close)
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("control socket closed: %w", err)
		}

		var msg model.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Error("Failed to parse message: %v", err)
			continue
		}

		c.mutex.Lock()
		handler, exists := c.handlers[msg.Type]
		c.mutex.Unlock()

		if !exists {
			c.logger.Debug("No handler for message type: %s", msg.Type)
			continue
		}
		if err := handler(&msg); err != nil {
			c.logger.Error("Error handling message %s: %v", msg.Type, err)
		}
	}
}

// FetchSnapshot returns the snapshot every client receives on connect
func (c *Client) FetchSnapshot(timeout time.Duration) (*model.SnapshotPayload, error) {
	msg, err := c.Expect(timeout, model.MessageTypeSnapshot)
	if err != nil {
		return nil, err
	}
	var snap model.SnapshotPayload
	if err := msg.ParsePayload(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return &snap, nil
}

// Toggle asks the server to start or stop a tunnel and returns the resulting snapshot
func (c *Client) Toggle(name string, timeout time.Duration) (*model.SnapshotPayload, error) {
	if _, err := c.FetchSnapshot(timeout); err != nil {
		return nil, err
	}
	if err := c.Send(model.MessageTypeToggle, model.TogglePayload{Name: name}); err != nil {
		return nil, err
	}
	return c.FetchSnapshot(timeout)
}

// Disconnect asks the server to stop every active tunnel
func (c *Client) Disconnect(timeout time.Duration) (*model.SnapshotPayload, error) {
	if _, err := c.FetchSnapshot(timeout); err != nil {
		return nil, err
	}
	if err := c.Send(model.MessageTypeDisconnect, nil); err != nil {
		return nil, err
	}
	return c.FetchSnapshot(timeout)
}

// Reload asks the server for a reconcile pass and waits for the report of the
// pass that served this request. Reports broadcast for other passes are skipped.
func (c *Client) Reload(timeout time.Duration) (*model.ReportPayload, error) {
	requestID := uuid.NewString()
	if err := c.Send(model.MessageTypeReload, model.ReloadPayload{RequestID: requestID}); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		msg, err := c.Expect(time.Until(deadline), model.MessageTypeReport)
		if err != nil {
			return nil, err
		}
		var report model.ReportPayload
		if err := msg.ParsePayload(&report); err != nil {
			return nil, fmt.Errorf("failed to parse report: %w", err)
		}
		if report.RequestID == requestID {
			return &report, nil
		}
		c.logger.Debug("Skipping report of pass %s", report.PassID)
	}
}
