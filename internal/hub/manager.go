package hub

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"courier/internal/channel"
)

// ErrChannelFull is returned by AddClient when a per-channel capacity limit
// is configured and reached
var ErrChannelFull = errors.New("channel has reached its client limit")

// Manager is the thread-safe connection registry. It maintains the channel
// to subscriber-set multimap and the inverse index from connection handle to
// subscriber record; every handle in the former has exactly one record in
// the latter and vice versa.
type Manager struct {
	mu sync.RWMutex

	// channel name -> subscribers in insertion order. Broadcasts rely on
	// this order being stable within a single snapshot, not across calls.
	channels map[string][]*Subscriber

	// connection handle -> subscriber record
	subscribers map[*websocket.Conn]*Subscriber

	// 0 means unlimited
	maxClientsPerChannel int
}

// NewManager creates an empty registry
func NewManager(maxClientsPerChannel int) *Manager {
	return &Manager{
		channels:             make(map[string][]*Subscriber),
		subscribers:          make(map[*websocket.Conn]*Subscriber),
		maxClientsPerChannel: maxClientsPerChannel,
	}
}

// AddClient registers a connection on a channel, creating the channel entry
// if this is its first subscriber
func (m *Manager) AddClient(conn *websocket.Conn, ch channel.Name, userID, walletAddress *string) (*Subscriber, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := ch.String()
	if m.maxClientsPerChannel > 0 && len(m.channels[name]) >= m.maxClientsPerChannel {
		return nil, ErrChannelFull
	}

	sub := newSubscriber(conn, name, userID, walletAddress)
	m.channels[name] = append(m.channels[name], sub)
	m.subscribers[conn] = sub
	return sub, nil
}

// RemoveClient drops a connection from a channel and reports whether it was
// registered. Idempotent: removing an unknown handle is a no-op. Ephemeral
// channels are deleted from the registry when their last subscriber leaves.
func (m *Manager) RemoveClient(conn *websocket.Conn, channelName string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, registered := m.subscribers[conn]

	subs, ok := m.channels[channelName]
	if ok {
		for i, sub := range subs {
			if sub.conn == conn {
				m.channels[channelName] = append(subs[:i], subs[i+1:]...)
				break
			}
		}
		if len(m.channels[channelName]) == 0 {
			if ch, err := channel.Parse(channelName); err == nil && ch.IsEphemeral() {
				delete(m.channels, channelName)
			}
		}
	}
	delete(m.subscribers, conn)
	return registered
}

// ChannelSubscribers returns a point-in-time copy of a channel's subscribers
// in insertion order. The channel entry is created if absent so a
// late-arriving subscriber to a just-used channel finds it.
func (m *Manager) ChannelSubscribers(channelName string) []*Subscriber {
	m.mu.Lock()
	defer m.mu.Unlock()

	subs, ok := m.channels[channelName]
	if !ok {
		m.channels[channelName] = nil
		return nil
	}
	snapshot := make([]*Subscriber, len(subs))
	copy(snapshot, subs)
	return snapshot
}

// Client looks up the subscriber record for a connection handle
func (m *Manager) Client(conn *websocket.Conn) (*Subscriber, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subscribers[conn]
	return sub, ok
}

// TotalConnections returns the number of registered subscribers
func (m *Manager) TotalConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.subscribers)
}

// AllChannels returns a snapshot mapping channel name to subscriber count
func (m *Manager) AllChannels() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int, len(m.channels))
	for name, subs := range m.channels {
		counts[name] = len(subs)
	}
	return counts
}

// AllSubscribers returns a point-in-time copy of every subscriber across all
// channels; used by the heartbeat sweep and the shutdown broadcast
func (m *Manager) AllSubscribers() []*Subscriber {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make([]*Subscriber, 0, len(m.subscribers))
	for _, subs := range m.channels {
		snapshot = append(snapshot, subs...)
	}
	return snapshot
}

// CleanupEmptyChannels drops every channel entry with no subscribers and
// returns the removed names
func (m *Manager) CleanupEmptyChannels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for name, subs := range m.channels {
		if len(subs) == 0 {
			delete(m.channels, name)
			removed = append(removed, name)
		}
	}
	return removed
}
