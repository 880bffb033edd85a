package testutil

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTestClient provides a test client for WebSocket connections.
// Frames are surfaced raw so tests can assert on both JSON objects and the
// literal ping/pong strings the hub speaks.
type WebSocketTestClient struct {
	conn      *websocket.Conn
	frames    chan []byte
	errors    chan error
	closeInfo chan CloseInfo
	closed    bool
	mutex     sync.Mutex
}

// CloseInfo records the close code and reason sent by the server
type CloseInfo struct {
	Code   int
	Reason string
}

// DialWebSocket connects to the server and starts reading frames
func DialWebSocket(serverURL string) (*WebSocketTestClient, error) {
	conn, resp, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if resp != nil {
		defer func() {
			_ = resp.Body.Close()
		}()
	}
	if err != nil {
		return nil, err
	}

	client := &WebSocketTestClient{
		conn:      conn,
		frames:    make(chan []byte, 32),
		errors:    make(chan error, 1),
		closeInfo: make(chan CloseInfo, 1),
	}

	go client.readPump()

	return client, nil
}

// SendText sends a text frame to the server
func (c *WebSocketTestClient) SendText(payload string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	return c.conn.WriteMessage(websocket.TextMessage, []byte(payload))
}

// ReadFrame reads one raw text frame with a timeout. Frames buffered before
// a read error surface first; the error is re-queued until they are drained.
func (c *WebSocketTestClient) ReadFrame(timeout time.Duration) ([]byte, error) {
	select {
	case frame := <-c.frames:
		return frame, nil
	case err := <-c.errors:
		select {
		case frame := <-c.frames:
			select {
			case c.errors <- err:
			default:
			}
			return frame, nil
		default:
			return nil, err
		}
	case <-time.After(timeout):
		return nil, context.DeadlineExceeded
	}
}

// ReadJSON reads frames until one decodes as a JSON object, skipping the
// hub's heartbeat pings
func (c *WebSocketTestClient) ReadJSON(timeout time.Duration) (map[string]interface{}, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		frame, err := c.ReadFrame(remaining)
		if err != nil {
			return nil, err
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(frame, &obj); err != nil {
			continue
		}
		if t, ok := obj["type"].(string); ok && t == "ping" {
			continue
		}
		return obj, nil
	}
}

// AwaitClose waits for the server to close the connection and returns the
// close code and reason
func (c *WebSocketTestClient) AwaitClose(timeout time.Duration) (CloseInfo, error) {
	select {
	case info := <-c.closeInfo:
		return info, nil
	case <-time.After(timeout):
		return CloseInfo{}, context.DeadlineExceeded
	}
}

// Close closes the client connection
func (c *WebSocketTestClient) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.closed {
		c.closed = true
		return c.conn.Close()
	}

	return nil
}

// KillUnderlyingConn closes the TCP connection without a WebSocket close
// handshake, leaving the server with a dead socket
func (c *WebSocketTestClient) KillUnderlyingConn() {
	_ = c.conn.UnderlyingConn().Close()
}

func (c *WebSocketTestClient) readPump() {
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				select {
				case c.closeInfo <- CloseInfo{Code: closeErr.Code, Reason: closeErr.Text}:
				default:
				}
			}
			select {
			case c.errors <- err:
			default:
			}
			return
		}

		select {
		case c.frames <- frame:
		default:
			// Channel full, drop frame
		}
	}
}
