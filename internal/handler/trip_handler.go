package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tripjournal/service-trips/internal/application"
	"github.com/tripjournal/service-trips/internal/common/auth"
	"github.com/tripjournal/service-trips/internal/common/middleware"
	"github.com/tripjournal/service-trips/internal/common/response"
	"github.com/tripjournal/service-trips/internal/domain/autosave"
)

// TripHandler handles HTTP requests for trips and live samples.
type TripHandler struct {
	trips    *application.TripService
	autosave *application.AutoSaveService
	limiter  *middleware.UserRateLimiter
}

// NewTripHandler creates a new TripHandler. Sample posts are throttled by limiter.
func NewTripHandler(
	trips *application.TripService,
	autoSave *application.AutoSaveService,
	limiter *middleware.UserRateLimiter,
) *TripHandler {
	return &TripHandler{trips: trips, autosave: autoSave, limiter: limiter}
}

// RegisterRoutes registers the trip routes on the given router group.
func (h *TripHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	trips := r.Group("/trips")
	trips.Use(middleware.AuthMiddleware(jwtManager))
	{
		trips.POST("", h.StartTrip)
		trips.GET("", h.ListTrips)
		trips.GET("/active", h.GetActiveTrip)
		trips.POST("/active/samples", h.limiter.Middleware(), h.SubmitSample)
		trips.GET("/autosave/stats", h.GetAutoSaveStats)
		trips.GET("/autosave/presets", h.ListPresets)
		trips.GET("/:tripId", h.GetTrip)
		trips.PATCH("/:tripId", h.UpdateTrip)
		trips.POST("/:tripId/end", h.EndTrip)
		trips.PUT("/:tripId/autosave", h.UpdateAutoSaveConfig)
		trips.POST("/:tripId/autosave/preset/:type", h.ApplyPreset)
		trips.GET("/:tripId/route", h.GetRouteGeoJSON)
		trips.GET("/:tripId/export", h.ExportBackup)
	}
}

// StartTrip handles POST /api/v1/trips.
func (h *TripHandler) StartTrip(c *gin.Context) {
	ownerID, ok := requireUser(c)
	if !ok {
		return
	}

	var req application.StartTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trip, err := h.trips.StartTrip(c.Request.Context(), ownerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, trip)
}

// ListTrips handles GET /api/v1/trips.
func (h *TripHandler) ListTrips(c *gin.Context) {
	ownerID, ok := requireUser(c)
	if !ok {
		return
	}

	trips, err := h.trips.ListTrips(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trips)
}

// GetActiveTrip handles GET /api/v1/trips/active.
func (h *TripHandler) GetActiveTrip(c *gin.Context) {
	ownerID, ok := requireUser(c)
	if !ok {
		return
	}

	trip, err := h.trips.GetActiveTrip(c.Request.Context(), ownerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// GetTrip handles GET /api/v1/trips/:tripId.
func (h *TripHandler) GetTrip(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	trip, err := h.trips.GetTrip(c.Request.Context(), ownerID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// UpdateTrip handles PATCH /api/v1/trips/:tripId.
func (h *TripHandler) UpdateTrip(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	var req application.UpdateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trip, err := h.trips.UpdateTrip(c.Request.Context(), ownerID, tripID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// EndTrip handles POST /api/v1/trips/:tripId/end.
func (h *TripHandler) EndTrip(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	trip, err := h.trips.EndTrip(c.Request.Context(), ownerID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// UpdateAutoSaveConfig handles PUT /api/v1/trips/:tripId/autosave.
func (h *TripHandler) UpdateAutoSaveConfig(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	var cfg autosave.Configuration
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	trip, err := h.trips.UpdateAutoSaveConfig(c.Request.Context(), ownerID, tripID, cfg)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// ApplyPreset handles POST /api/v1/trips/:tripId/autosave/preset/:type.
func (h *TripHandler) ApplyPreset(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	trip, err := h.trips.ApplyPreset(c.Request.Context(), ownerID, tripID, c.Param("type"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, trip)
}

// ListPresets handles GET /api/v1/trips/autosave/presets.
func (h *TripHandler) ListPresets(c *gin.Context) {
	response.Success(c, autosave.Presets())
}

// SubmitSample handles POST /api/v1/trips/active/samples.
func (h *TripHandler) SubmitSample(c *gin.Context) {
	ownerID, ok := requireUser(c)
	if !ok {
		return
	}

	var req application.SampleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.autosave.HandleSample(c.Request.Context(), ownerID, req.ToSample())
	if err != nil {
		response.Error(c, err)
		return
	}

	if result.Accepted {
		response.Created(c, result)
		return
	}
	response.Success(c, result)
}

// GetAutoSaveStats handles GET /api/v1/trips/autosave/stats.
func (h *TripHandler) GetAutoSaveStats(c *gin.Context) {
	response.Success(c, h.autosave.Stats())
}

// GetRouteGeoJSON handles GET /api/v1/trips/:tripId/route.
func (h *TripHandler) GetRouteGeoJSON(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	geoJSON, err := h.trips.GetRouteGeoJSON(c.Request.Context(), ownerID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Data(http.StatusOK, "application/geo+json", geoJSON)
}

// ExportBackup handles GET /api/v1/trips/:tripId/export.
func (h *TripHandler) ExportBackup(c *gin.Context) {
	ownerID, tripID, ok := userAndTrip(c)
	if !ok {
		return
	}

	backup, err := h.trips.ExportBackup(c.Request.Context(), ownerID, tripID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="trip-`+tripID.String()+`.json"`)
	c.JSON(http.StatusOK, backup)
}

func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
	}
	return userID, ok
}

func userAndTrip(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	ownerID, ok := requireUser(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	tripID, err := uuid.Parse(c.Param("tripId"))
	if err != nil {
		response.BadRequest(c, "invalid trip ID format")
		return uuid.Nil, uuid.Nil, false
	}
	return ownerID, tripID, true
}
