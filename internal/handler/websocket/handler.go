package websocket

import (
	"errors"
	"net/http"

	"chat-hub/internal/hub"
	"chat-hub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WebSocketHandler upgrades authenticated HTTP requests and hands the
// resulting connection to the hub. Room subscription happens later over the
// socket itself via join events, so no room is validated here.
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	hub         *hub.Hub
	authService *service.AuthService
}

// NewWebSocketHandler creates a WebSocketHandler instance.
func NewWebSocketHandler(h *hub.Hub, authService *service.AuthService) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	if authService == nil {
		panic("AuthService cannot be nil for WebSocketHandler")
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// TODO: Implement proper origin checking for production
			return true
		},
	}

	return &WebSocketHandler{
		upgrader:    upgrader,
		hub:         h,
		authService: authService,
	}
}

// HandleConnection handles a WebSocket upgrade request on GET /ws.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	userIDAny, exists := c.Get("user_id")
	if !exists {
		logrus.Warn("WS Handler: User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	userID, ok := userIDAny.(uint)
	if !ok {
		logrus.Error("WS Handler: User ID in context is not uint")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	logCtx := logrus.WithField("user_id", userID)

	// Resolve the full identity before upgrading so broadcasts can carry the
	// username and verification code without further lookups.
	user, err := h.authService.Identity(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			logCtx.Warn("WS Handler: User not found")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		} else {
			logCtx.WithError(err).Error("WS Handler: Failed to resolve user identity")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve identity"})
		}
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logCtx.WithError(err).Error("WS Handler: Failed to upgrade connection")
		return
	}
	logCtx.Info("WS Handler: Connection upgraded to WebSocket")

	client := hub.NewClient(h.hub, conn, hub.Identity{
		UserID:           user.ID,
		Name:             user.Name,
		VerificationCode: user.VerificationCode,
	})

	if err := h.hub.Register(client); err != nil {
		logCtx.WithError(err).Error("WS Handler: Failed to register client with hub")
		client.CloseConn()
		return
	}
	logCtx = logCtx.WithField("conn_id", client.ID())
	logCtx.Info("WS Handler: Client registered with hub")

	go client.Run()
}
