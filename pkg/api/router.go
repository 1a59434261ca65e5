package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/puchupala/hass-nature-remo/pkg/api/handlers"
	"github.com/puchupala/hass-nature-remo/pkg/device"
	"github.com/puchupala/hass-nature-remo/pkg/device/schema"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine         *gin.Engine
	controller     device.Controller
	subscriber     device.EventSubscriber
	validator      *schema.Validator
	originPatterns []string
}

// Option configures a Router
type Option func(*Router)

// WithOriginPatterns sets the origins accepted for WebSocket upgrades.
// The default only accepts same-origin requests.
func WithOriginPatterns(patterns ...string) Option {
	return func(r *Router) {
		r.originPatterns = patterns
	}
}

// NewRouter creates a new API router
func NewRouter(controller device.Controller, subscriber device.EventSubscriber, validator *schema.Validator, opts ...Option) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:     engine,
		controller: controller,
		subscriber: subscriber,
		validator:  validator,
	}
	for _, opt := range opts {
		opt(router)
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Swagger UI
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})

	healthHandler := handlers.NewHealthHandler(r.controller)
	r.engine.GET("/health", healthHandler.Health)

	v1 := r.engine.Group("/api/v1")
	{
		v1.GET("/health", healthHandler.Health)

		// State events
		eventsHandler := handlers.NewEventsHandler(r.subscriber, r.originPatterns)
		v1.GET("/events", eventsHandler.Events)
		v1.GET("/ws", eventsHandler.WebSocket)

		// Devices
		devicesHandler := handlers.NewDevicesHandler(r.controller)
		controlHandler := handlers.NewControlHandler(r.controller, r.validator)
		devices := v1.Group("/devices")
		{
			devices.GET("", devicesHandler.ListDevices)
			devices.POST("/refresh", devicesHandler.Refresh)
			devices.GET("/:id", devicesHandler.GetDevice)

			// Device state control
			devices.GET("/:id/state", controlHandler.GetState)
			devices.POST("/:id/state", controlHandler.SetState)
		}
	}
}

// Handler returns the underlying http.Handler
func (r *Router) Handler() http.Handler {
	return r.engine
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}
