package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"carhire/internal/infra/config"
	"carhire/internal/infra/obs"
)

type CarHTTP interface {
	List(c *gin.Context)
	Get(c *gin.Context)
	Availability(c *gin.Context)
	Search(c *gin.Context)
	Quote(c *gin.Context)
}

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
}

// PricingBackendHTTP serves the endpoints other instances consume as their
// remote pricing source.
type PricingBackendHTTP interface {
	Exact(c *gin.Context)
	Calculate(c *gin.Context)
	Config(c *gin.Context)
	Snapshot(c *gin.Context)
}

type AdminHTTP interface {
	ListBookings(c *gin.Context)
	UpdateBookingStatus(c *gin.Context)
	DeleteBooking(c *gin.Context)
	UpdateMonthlyPricing(c *gin.Context)
	SetCarStatus(c *gin.Context)
	AddBlock(c *gin.Context)
	RemoveBlock(c *gin.Context)
	UploadPhoto(c *gin.Context)
	UpdatePricingConfig(c *gin.Context)
	UpsertPriceTable(c *gin.Context)
	InvalidatePriceCache(c *gin.Context)
}

type Handlers struct {
	Cars       CarHTTP
	Bookings   BookingHTTP
	Backend    PricingBackendHTTP
	Admin      AdminHTTP
	AdminGuard gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg.CORSOrigins, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(origins []string, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(corsConfig(origins)))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Cars != nil {
		api.GET("/cars", h.Cars.List)
		api.GET("/cars/search", h.Cars.Search)
		api.GET("/cars/:id", h.Cars.Get)
		api.GET("/cars/:id/availability", h.Cars.Availability)
		api.POST("/quotes", h.Cars.Quote)
	}
	if h.Bookings != nil {
		api.POST("/bookings", h.Bookings.Create)
		api.GET("/bookings/:ref", h.Bookings.Get)
	}
	if h.Backend != nil {
		api.GET("/pricing/exact", h.Backend.Exact)
		api.POST("/pricing/calculate", h.Backend.Calculate)
		api.GET("/pricing/config", h.Backend.Config)
		api.GET("/cars/availability", h.Backend.Snapshot)
	}
	if h.Admin != nil {
		guard := h.AdminGuard
		if guard == nil {
			guard = denyAll
		}
		admin := api.Group("/admin", guard)
		admin.GET("/bookings", h.Admin.ListBookings)
		admin.PATCH("/bookings/:id/status", h.Admin.UpdateBookingStatus)
		admin.DELETE("/bookings/:id", h.Admin.DeleteBooking)
		admin.PUT("/cars/:id/pricing", h.Admin.UpdateMonthlyPricing)
		admin.PUT("/cars/:id/status", h.Admin.SetCarStatus)
		admin.POST("/cars/:id/blocks", h.Admin.AddBlock)
		admin.DELETE("/cars/:id/blocks/:blockId", h.Admin.RemoveBlock)
		admin.POST("/cars/:id/photo", h.Admin.UploadPhoto)
		admin.PUT("/pricing/config", h.Admin.UpdatePricingConfig)
		admin.PUT("/pricing/table", h.Admin.UpsertPriceTable)
		admin.POST("/pricing/cache/invalidate", h.Admin.InvalidatePriceCache)
	}
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Idempotency-Key", adminKeyHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
