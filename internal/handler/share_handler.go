package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripjournal/service-trips/internal/application"
	"github.com/tripjournal/service-trips/internal/common/auth"
	"github.com/tripjournal/service-trips/internal/common/middleware"
	"github.com/tripjournal/service-trips/internal/common/response"
)

// ShareHandler handles HTTP requests for trip sharing.
type ShareHandler struct {
	service *application.ShareService
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(service *application.ShareService) *ShareHandler {
	return &ShareHandler{service: service}
}

// RegisterRoutes registers the share routes. Only link creation needs auth.
func (h *ShareHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)

	trips := r.Group("/trips")
	trips.POST("/:tripId/share", authMW, h.CreateShareLink)
	trips.DELETE("/:tripId/share", authMW, h.RevokeShareLink)

	// Public route, no auth required.
	trips.GET("/shared/:token", h.GetSharedTrip)
}

// CreateShareLink handles POST /api/v1/trips/:tripId/share.
func (h *ShareHandler) CreateShareLink(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	result, err := h.service.CreateShareLink(c.Request.Context(), ownerID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// RevokeShareLink handles DELETE /api/v1/trips/:tripId/share.
func (h *ShareHandler) RevokeShareLink(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	if err := h.service.RevokeShareLink(c.Request.Context(), ownerID, tripID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GetSharedTrip handles GET /api/v1/trips/shared/:token (public, no auth).
func (h *ShareHandler) GetSharedTrip(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		response.BadRequest(c, "token is required")
		return
	}

	result, err := h.service.GetSharedTrip(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
