package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clinicbook/internal/cache"
	"clinicbook/internal/config"
	"clinicbook/internal/logging"
	"clinicbook/internal/metrics"
	"clinicbook/internal/modules/admin"
	"clinicbook/internal/modules/booking"
	"clinicbook/internal/pkg/jwt"
	"clinicbook/internal/realtime"
	"clinicbook/internal/repository"
	"clinicbook/internal/resilience"
)

// App holds the wired service. Router is ready to serve once New returns.
type App struct {
	Router   *gin.Engine
	Sessions *booking.SessionRegistry
	Hub      *realtime.Hub

	sweepEvery time.Duration
	log        *zap.Logger
}

// New wires every component on top of an open, migrated db. rdb may be nil,
// in which case availability is never cached.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, log *zap.Logger) (*App, error) {
	log = logging.OrNop(log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	bookingMetrics := metrics.NewBookingMetrics(reg)

	hub := realtime.NewHub(log.Named("realtime"))
	if err := repository.RegisterChangeFeed(db, hub); err != nil {
		return nil, fmt.Errorf("register change feed: %w", err)
	}
	repo := repository.NewReservationRepository(db)

	var availabilityCache interface {
		booking.AvailabilityCache
		admin.AvailabilityInvalidator
	} = cache.Noop{}
	if rdb != nil {
		availabilityCache = cache.NewAvailability(rdb, cfg.CacheTTL)
	}

	fallback, err := booking.FallbackFor(cfg.AvailabilityMode)
	if err != nil {
		return nil, err
	}
	policy := resilience.Policy{
		Timeout:   cfg.StoreTimeout,
		Attempts:  cfg.StoreAttempts,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
	}
	window := booking.Window{
		Location:    cfg.Location,
		HorizonDays: cfg.HorizonDays,
		WorkingDays: cfg.WorkingDays,
	}

	bookingLog := log.Named("booking")
	resolver := booking.NewResolver(repo, booking.ResolverConfig{
		Catalog:  cfg.TimeSlots,
		Location: cfg.Location,
		Policy:   policy,
		Fallback: fallback,
		Cache:    availabilityCache,
		Metrics:  bookingMetrics,
		Logger:   bookingLog,
	})
	writerCfg := booking.WriterConfig{
		Catalog:       cfg.TimeSlots,
		Window:        window,
		DefaultStatus: cfg.DefaultStatus,
		Policy:        policy,
		Cache:         availabilityCache,
		Metrics:       bookingMetrics,
		Logger:        bookingLog,
	}
	if cfg.DegradedReserve {
		log.Warn("degraded reservations enabled: store outages return unpersisted local records")
		writerCfg.Fallback = booking.LocalReservations{}
	}
	writer := booking.NewWriter(repo, writerCfg)
	sessions := booking.NewSessionRegistry(resolver, writer, booking.SessionConfig{
		Window:     window,
		ResetDelay: cfg.SuccessResetDelay,
	}, cfg.SessionIdleTTL, bookingLog)

	bookingHandler := booking.NewHandler(resolver, writer, sessions, booking.ClinicInfo{
		ConsultationFee: cfg.ConsultationFee,
		Currency:        cfg.Currency,
		HorizonDays:     cfg.HorizonDays,
		WorkingDays:     cfg.WorkingDays.Names(),
		TimeSlots:       cfg.TimeSlots.Slots(),
		Timezone:        cfg.Location.String(),
	}, bookingLog)

	jwtService := jwt.New(cfg.JWTSecret, cfg.JWTTTL)
	adminLog := log.Named("admin")
	adminService := admin.NewService(repo, availabilityCache, hub, jwtService, admin.Config{
		AdminEmail:        cfg.AdminEmail,
		AdminPasswordHash: cfg.AdminPasswordHash,
		Location:          cfg.Location,
	}, adminLog)
	adminHandler := admin.NewHandler(adminService, jwtService, hub, cfg.CORSOrigins, adminLog)

	router := NewRouter(Deps{
		Logger:             log,
		ProdLike:           cfg.IsProdLike(),
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Store:              repo,
		Gatherer:           reg,
		JWT:                jwtService,
		Booking:            bookingHandler,
		Admin:              adminHandler,
	})

	return &App{
		Router:     router,
		Sessions:   sessions,
		Hub:        hub,
		sweepEvery: sweepInterval(cfg.SessionIdleTTL),
		log:        log,
	}, nil
}

// Run sweeps idle booking sessions until ctx is done, then closes every
// session and dashboard connection.
func (a *App) Run(ctx context.Context) {
	a.Sessions.Run(ctx, a.sweepEvery)
	a.Hub.Close()
	a.log.Info("booking sessions and dashboards closed")
}

func sweepInterval(idle time.Duration) time.Duration {
	d := idle / 2
	if d > time.Minute {
		d = time.Minute
	}
	if d < time.Second {
		d = time.Second
	}
	return d
}
