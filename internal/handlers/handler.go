package handlers

import (
	"github.com/yvesHakizimana/Parking-Management-System/internal/logger"
	"github.com/yvesHakizimana/Parking-Management-System/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Live dashboard stream (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerEntryRoutes(api)
		h.registerObserverRoutes(api)
	}
}

func (h *Handler) registerEntryRoutes(api *gin.RouterGroup) {
	entries := api.Group("/entries")
	{
		// ?plate=RAB123C
		entries.GET("", h.listEntries)
		entries.GET("/unpaid", h.unpaidEntries)
	}
}

func (h *Handler) registerObserverRoutes(api *gin.RouterGroup) {
	api.GET("/logs", h.recentLogs)
	api.GET("/alerts", h.recentAlerts)
	api.GET("/stats", h.statistics)
	api.GET("/peripherals", h.peripherals)
}
