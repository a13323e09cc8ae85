package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tripjournal/service-trips/internal/application"
	"github.com/tripjournal/service-trips/internal/common/auth"
	"github.com/tripjournal/service-trips/internal/common/response"
	"github.com/tripjournal/service-trips/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Browsers cannot set headers on the upgrade; the token query parameter is the gate.
		return true
	},
}

// LiveHandler streams auto-saved waypoints of a trip over WebSocket.
type LiveHandler struct {
	trips      *application.TripService
	hub        *ws.Hub
	jwtManager *auth.JWTManager
	logger     *zap.Logger
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(
	trips *application.TripService,
	hub *ws.Hub,
	jwtManager *auth.JWTManager,
	logger *zap.Logger,
) *LiveHandler {
	return &LiveHandler{
		trips:      trips,
		hub:        hub,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// RegisterWSRoute registers the WebSocket route on the engine.
func (h *LiveHandler) RegisterWSRoute(r gin.IRoutes) {
	r.GET("/ws/trips/:tripId", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and subscribes it to the trip's updates.
// Only the trip owner may watch.
func (h *LiveHandler) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Unauthorized(c, "token query parameter is required")
		return
	}

	claims, err := h.jwtManager.ValidateAccessToken(token)
	if err != nil {
		response.Unauthorized(c, "invalid or expired token")
		return
	}

	tripID, err := uuid.Parse(c.Param("tripId"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID format")
		return
	}

	if _, err := h.trips.GetTrip(c.Request.Context(), claims.UserID, tripID); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade to websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(conn, tripID)
	if !h.hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump(h.hub)

	h.logger.Info("live viewer connected",
		zap.String("trip_id", tripID.String()),
		zap.String("user_id", claims.UserID.String()),
		zap.Int("viewers", h.hub.Viewers(tripID)),
	)
}
