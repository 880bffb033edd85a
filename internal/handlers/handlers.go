package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"courier/internal/channel"
	"courier/internal/hub"
	"courier/internal/metrics"
	"courier/internal/ratelimit"
	"courier/pkg/auth"
	"courier/pkg/logging"
	"courier/pkg/validation"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PublishRequest is the preferred publish body
type PublishRequest struct {
	Channel string                 `json:"channel" binding:"required"`
	Data    map[string]interface{} `json:"data" binding:"required"`
}

// PublishResponse reports the outcome of a fan-out
type PublishResponse struct {
	Status         string `json:"status"`
	Channel        string `json:"channel"`
	ClientsReached int    `json:"clients_reached"`
	Timestamp      string `json:"timestamp"`
}

// CourierHandlers contains the HTTP handlers for the service
type CourierHandlers struct {
	hub        *hub.Hub
	verifier   *auth.Verifier
	authorizer *channel.Authorizer
	limits     validation.Limits
	logger     logging.Logger
	metrics    *metrics.Metrics

	requireAuth      bool
	rateLimitEnabled bool
	publishLimiter   *ratelimit.Limiter
	connectLimiter   *ratelimit.Limiter

	// Invoked by the admin shutdown endpoint; wired to the process signal
	// path by the bootstrapper
	shutdownTrigger func()
}

// Options configures a handlers instance
type Options struct {
	Hub        *hub.Hub
	Verifier   *auth.Verifier
	Authorizer *channel.Authorizer
	Limits     validation.Limits
	Logger     logging.Logger
	Metrics    *metrics.Metrics

	RequireAuth      bool
	RateLimitEnabled bool
	PublishLimiter   *ratelimit.Limiter
	ConnectLimiter   *ratelimit.Limiter

	ShutdownTrigger func()
}

// NewCourierHandlers creates a new handlers instance
func NewCourierHandlers(opts Options) *CourierHandlers {
	return &CourierHandlers{
		hub:              opts.Hub,
		verifier:         opts.Verifier,
		authorizer:       opts.Authorizer,
		limits:           opts.Limits,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		requireAuth:      opts.RequireAuth,
		rateLimitEnabled: opts.RateLimitEnabled,
		publishLimiter:   opts.PublishLimiter,
		connectLimiter:   opts.ConnectLimiter,
		shutdownTrigger:  opts.ShutdownTrigger,
	}
}

// HandlePublish accepts the preferred publish body { channel, data }
func (h *CourierHandlers) HandlePublish(c *gin.Context) {
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Body must be a JSON object with channel and data fields",
		})
		return
	}
	h.publish(c, req.Channel, req.Data)
}

// HandlePublishLegacy accepts the channel in the path with the body as the
// payload directly. Strictly a thin adapter over the same publish path.
func (h *CourierHandlers) HandlePublishLegacy(c *gin.Context) {
	var data map[string]interface{}
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Body must be a JSON object",
		})
		return
	}
	h.publish(c, c.Param("channel"), data)
}

func (h *CourierHandlers) publish(c *gin.Context, rawChannel string, data map[string]interface{}) {
	if !h.hub.IsRunning() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "shutting_down",
			"message": "Server is shutting down",
		})
		return
	}

	// Rate limit on caller identity, keyed per message type when present
	if h.rateLimitEnabled && h.publishLimiter != nil {
		msgType, _ := data["type"].(string)
		result := h.publishLimiter.Check(h.callerIdentity(c), msgType)
		if !result.Allowed {
			retryAfter := int(math.Ceil(result.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			if h.metrics != nil {
				h.metrics.RateLimited.WithLabelValues("publish").Inc()
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               "rate_limited",
				"message":             "Publish rate limit exceeded",
				"retry_after_seconds": retryAfter,
			})
			return
		}
	}

	ch, err := channel.Parse(rawChannel)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_channel",
			"message": err.Error(),
		})
		return
	}

	if errs := h.limits.ValidateMessage(data); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_message",
			"errors":  errs,
			"message": "Message failed validation",
		})
		return
	}

	reached, err := h.hub.Publish(ch, data)
	if err != nil {
		h.logger.WithError(err).WithField("channel", ch.String()).Error("Broadcast failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "broadcast_failed"})
		return
	}

	c.JSON(http.StatusOK, PublishResponse{
		Status:         "published",
		Channel:        ch.String(),
		ClientsReached: reached,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	})
}

// callerIdentity keys the publish rate limit: the service token when one is
// presented, the client IP otherwise
func (h *CourierHandlers) callerIdentity(c *gin.Context) string {
	if token := bearerToken(c); token != "" {
		return "svc:" + token
	}
	return "ip:" + c.ClientIP()
}

func bearerToken(c *gin.Context) string {
	const prefix = "Bearer "
	header := c.GetHeader("Authorization")
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

// HandleWebSocket serves the subscribe endpoint /ws/:channel
func (h *CourierHandlers) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}

	if !h.hub.IsRunning() {
		h.refuse(conn, websocket.CloseGoingAway, "Server is shutting down")
		return
	}

	var userID, walletAddress *string
	if h.requireAuth {
		claims, ok := h.authenticate(c, conn)
		if !ok {
			return
		}
		userID = &claims.UserID
		if claims.WalletAddress != "" {
			walletAddress = &claims.WalletAddress
		}
	}

	ch, err := channel.Parse(c.Param("channel"))
	if err != nil {
		h.refuse(conn, websocket.ClosePolicyViolation, err.Error())
		return
	}

	if h.rateLimitEnabled && h.connectLimiter != nil {
		// Keyed by user when authenticated, by client IP on open deployments
		key := "ws:ip:" + c.ClientIP()
		if userID != nil {
			key = "ws:" + *userID
		}
		if result := h.connectLimiter.Check(key, ""); !result.Allowed {
			if h.metrics != nil {
				h.metrics.RateLimited.WithLabelValues("websocket").Inc()
			}
			h.refuse(conn, websocket.ClosePolicyViolation, "Connection rate limit exceeded")
			return
		}
	}

	if h.requireAuth && !h.authorizer.Authorize(*userID, ch) {
		if h.metrics != nil {
			h.metrics.AuthFailures.WithLabelValues("unauthorized").Inc()
		}
		h.refuse(conn, websocket.ClosePolicyViolation, "Unauthorized access to channel: "+ch.String())
		return
	}

	sub, err := h.hub.Register(conn, ch, userID, walletAddress)
	if err != nil {
		h.refuse(conn, websocket.ClosePolicyViolation, "Channel is full")
		return
	}

	h.hub.RunConnection(sub)
}

// authenticate verifies the token on a fresh connection; on failure it
// closes with 1008 and reports false
func (h *CourierHandlers) authenticate(c *gin.Context, conn *websocket.Conn) (*auth.Claims, bool) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c)
	}

	claims, err := h.verifier.Verify(token)
	if err == nil {
		return claims, true
	}

	reason := "Invalid token"
	metric := "invalid"
	switch err {
	case auth.ErrExpiredToken:
		reason = "Token expired"
		metric = "expired"
	case auth.ErrMissingClaims:
		reason = "Token missing required claims"
		metric = "missing_claims"
	}
	if h.metrics != nil {
		h.metrics.AuthFailures.WithLabelValues(metric).Inc()
	}
	h.refuse(conn, websocket.ClosePolicyViolation, reason)
	return nil, false
}

// refuse completes the close handshake on a connection that never made it
// into the registry
func (h *CourierHandlers) refuse(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(5 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}

// HandleStats reports current totals and per-channel subscriber counts
func (h *CourierHandlers) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.hub.Stats())
}

// HandleAdminShutdown triggers the graceful shutdown sequence
func (h *CourierHandlers) HandleAdminShutdown(c *gin.Context) {
	if h.shutdownTrigger == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "shutdown trigger not configured"})
		return
	}
	h.logger.Warn("Administrative shutdown requested")
	h.shutdownTrigger()
	c.JSON(http.StatusAccepted, gin.H{"status": "shutting_down"})
}

// HandleNotFound provides a custom 404 handler
func (h *CourierHandlers) HandleNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"service": "courier",
		"message": "Endpoint not found",
	})
}
