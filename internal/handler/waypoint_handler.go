package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/application"
	"github.com/tripjournal/service-trips/internal/common/auth"
	"github.com/tripjournal/service-trips/internal/common/middleware"
	"github.com/tripjournal/service-trips/internal/common/response"
)

// WaypointHandler handles HTTP requests for single waypoints.
type WaypointHandler struct {
	trips *application.TripService
}

// NewWaypointHandler creates a new WaypointHandler.
func NewWaypointHandler(trips *application.TripService) *WaypointHandler {
	return &WaypointHandler{trips: trips}
}

// RegisterRoutes registers waypoint routes on the given router group.
func (h *WaypointHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	waypoints := r.Group("/waypoints")
	waypoints.Use(middleware.AuthMiddleware(jwtManager))
	{
		waypoints.PATCH("/:waypointId", h.UpdateWaypoint)
		waypoints.DELETE("/:waypointId", h.DeleteWaypoint)
	}
}

// UpdateWaypoint handles PATCH /api/v1/waypoints/:waypointId.
func (h *WaypointHandler) UpdateWaypoint(c *gin.Context) {
	ownerID, waypointID, ok := userAndWaypoint(c)
	if !ok {
		return
	}

	var req application.UpdateWaypointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	wp, err := h.trips.UpdateWaypoint(c.Request.Context(), ownerID, waypointID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, wp)
}

// DeleteWaypoint handles DELETE /api/v1/waypoints/:waypointId.
func (h *WaypointHandler) DeleteWaypoint(c *gin.Context) {
	ownerID, waypointID, ok := userAndWaypoint(c)
	if !ok {
		return
	}

	if err := h.trips.DeleteWaypoint(c.Request.Context(), ownerID, waypointID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

func userAndWaypoint(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := requireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	waypointID, err := uuid.Parse(c.Param("waypointId"))
	if err != nil {
		response.BadRequest(c, "invalid waypoint ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, waypointID, true
}
