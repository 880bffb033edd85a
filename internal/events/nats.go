package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"courier/internal/channel"
	"courier/internal/hub"
	"courier/pkg/logging"
	"courier/pkg/validation"
)

// SubjectPrefix is the NATS subject tree the bridge consumes. The subject
// suffix is the channel name with dots preserved: courier.publish.global,
// courier.publish.forge.job.xyz.
const SubjectPrefix = "courier.publish."

// Bridge consumes broker-published events and injects them into the hub,
// giving backend producers a non-HTTP publish path.
type Bridge struct {
	conn   *nats.Conn
	sub    *nats.Subscription
	hub    *hub.Hub
	limits validation.Limits
	logger logging.Logger
}

// Connect dials NATS and subscribes to the publish subject tree
func Connect(url string, h *hub.Hub, limits validation.Limits, logger logging.Logger) (*Bridge, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.WithField("url", c.ConnectedUrl()).Info("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, err
	}

	b := &Bridge{
		conn:   conn,
		hub:    h,
		limits: limits,
		logger: logger,
	}

	sub, err := conn.Subscribe(SubjectPrefix+">", b.handleMessage)
	if err != nil {
		conn.Close()
		return nil, err
	}
	b.sub = sub

	logger.WithField("subject", SubjectPrefix+">").Info("NATS publish bridge connected")
	return b, nil
}

// Conn exposes the connection for health checks
func (b *Bridge) Conn() *nats.Conn {
	return b.conn
}

// Close drains the subscription and closes the connection
func (b *Bridge) Close() {
	if b.sub != nil {
		_ = b.sub.Drain()
	}
	b.conn.Close()
}

func (b *Bridge) handleMessage(msg *nats.Msg) {
	if !b.hub.IsRunning() {
		return
	}

	rawChannel := strings.TrimPrefix(msg.Subject, SubjectPrefix)
	ch, err := channel.Parse(rawChannel)
	if err != nil {
		b.logger.WithError(err).WithField("subject", msg.Subject).Warn("Dropping broker event with invalid channel")
		return
	}

	var data map[string]interface{}
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		b.logger.WithError(err).WithField("channel", ch.String()).Warn("Dropping broker event with non-object payload")
		return
	}

	if errs := b.limits.ValidateMessage(data); len(errs) > 0 {
		b.logger.WithFields(logging.Fields{
			"channel": ch.String(),
			"errors":  errs,
		}).Warn("Dropping broker event that failed validation")
		return
	}

	if _, err := b.hub.Publish(ch, data); err != nil {
		b.logger.WithError(err).WithField("channel", ch.String()).Error("Broker event broadcast failed")
	}
}
