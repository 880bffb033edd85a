package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer
	writeWait = 10 * time.Second

	// Maximum frame size accepted from peers; inbound content is control
	// traffic only, publishers use the HTTP endpoint
	maxInboundFrameSize = 4096
)

// Subscriber is one WebSocket connection registered against exactly one
// channel. The connection manager owns every subscriber record; nothing else
// mutates them after creation.
type Subscriber struct {
	Channel       string
	UserID        *string
	WalletAddress *string
	ConnectedAt   time.Time

	conn *websocket.Conn

	// gorilla permits one concurrent writer per connection; the broadcast
	// path, the read-loop pong reply and the heartbeat ticker all serialize
	// through this mutex.
	writeMu sync.Mutex
}

func newSubscriber(conn *websocket.Conn, channelName string, userID, walletAddress *string) *Subscriber {
	return &Subscriber{
		Channel:       channelName,
		UserID:        userID,
		WalletAddress: walletAddress,
		ConnectedAt:   time.Now().UTC(),
		conn:          conn,
	}
}

// Conn exposes the underlying connection; used as the registry key
func (s *Subscriber) Conn() *websocket.Conn {
	return s.conn
}

// WriteText sends a text frame with a bounded write deadline
func (s *Subscriber) WriteText(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

// WriteJSON marshals v and sends it as a text frame
func (s *Subscriber) WriteJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(v)
}

// CloseWithCode sends a close frame with the given status code and reason,
// then closes the socket. Best effort; the peer may already be gone.
func (s *Subscriber) CloseWithCode(code int, reason string) {
	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	s.writeMu.Unlock()
	_ = s.conn.Close()
}
