package remote

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shashiranjanraj/delegate/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024 // 512 KB
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins by default; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SetCheckOrigin replaces the default (allow-all) origin checker.
func SetCheckOrigin(fn func(r *http.Request) bool) {
	upgrader.CheckOrigin = fn
}

// WebSocketTransport carries remote calls as binary frames on one connection.
type WebSocketTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

// Upgrade upgrades an HTTP request to a WebSocket transport.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocketTransport, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("remote/ws: upgrade: %w", err)
	}
	return newWebSocketTransport(conn), nil
}

// DialWebSocket connects to a remote endpoint such as ws://host:9090/remote.
func DialWebSocket(ctx context.Context, url string) (*WebSocketTransport, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("remote/ws: dial %s: %w", url, err)
	}
	return newWebSocketTransport(conn), nil
}

func newWebSocketTransport(conn *websocket.Conn) *WebSocketTransport {
	t := &WebSocketTransport{
		conn:    conn,
		inbound: make(chan []byte, 256),
		closed:  make(chan struct{}),
	}
	go t.readPump()
	go t.pingPump()
	return t
}

func (t *WebSocketTransport) Send(ctx context.Context, payload []byte) error {
	select {
	case <-t.closed:
		return ErrTransportClosed
	default:
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.conn.SetWriteDeadline(deadline) //nolint:errcheck
	if err := t.conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		return fmt.Errorf("remote/ws: write: %w", err)
	}
	return nil
}

func (t *WebSocketTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-t.inbound:
		return payload, nil
	case <-t.closed:
		// Drain what arrived before the connection ended.
		select {
		case payload := <-t.inbound:
			return payload, nil
		default:
			return nil, ErrTransportClosed
		}
	}
}

// Close sends a close frame and tears the connection down.
func (t *WebSocketTransport) Close() error {
	t.writeMu.Lock()
	t.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	t.conn.WriteMessage(websocket.CloseMessage, //nolint:errcheck
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	t.shutdown()
	return t.conn.Close()
}

func (t *WebSocketTransport) shutdown() {
	t.once.Do(func() { close(t.closed) })
}

// readPump pumps frames from the connection to Receive.
func (t *WebSocketTransport) readPump() {
	defer t.shutdown()

	t.conn.SetReadLimit(maxMessageSize)
	t.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
	t.conn.SetPongHandler(func(string) error {
		t.conn.SetReadDeadline(time.Now().Add(pongWait)) //nolint:errcheck
		return nil
	})

	for {
		_, msg, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Warn("remote/ws: unexpected close", "error", err)
			}
			return
		}
		select {
		case t.inbound <- msg:
		case <-t.closed:
			return
		}
	}
}

// pingPump keeps the peer's read deadline alive.
func (t *WebSocketTransport) pingPump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-t.closed:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			t.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
			err := t.conn.WriteMessage(websocket.PingMessage, nil)
			t.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
