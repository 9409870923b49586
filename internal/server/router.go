package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"clinicbook/internal/logging"
	"clinicbook/internal/middleware"
	"clinicbook/internal/modules/admin"
	"clinicbook/internal/modules/booking"
	"clinicbook/internal/pkg/jwt"
	"clinicbook/internal/pkg/response"
)

const healthTimeout = 2 * time.Second

// Pinger reports whether the reservation store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger             *zap.Logger
	ProdLike           bool
	CORSOrigins        []string
	RateLimitPerMinute int
	Store              Pinger
	Gatherer           prometheus.Gatherer
	JWT                *jwt.Service
	Booking            *booking.Handler
	Admin              *admin.Handler
}

func NewRouter(d Deps) *gin.Engine {
	log := logging.OrNop(d.Logger)
	if d.ProdLike {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger(log.Named("http")))
	r.Use(middleware.CORS(d.CORSOrigins, d.ProdLike))

	r.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			log.Warn("health check failed", zap.Error(err))
			response.Error(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Reservation store is not reachable")
			return
		}
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(d.RateLimitPerMinute, log.Named("ratelimit")))
	{
		d.Booking.RegisterRoutes(v1)

		public := v1.Group("/admin")
		protected := v1.Group("/admin", middleware.JWTAuth(d.JWT), middleware.AdminOnly())
		d.Admin.RegisterRoutes(public, protected)
	}

	return r
}
