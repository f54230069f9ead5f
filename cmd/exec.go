package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"guestlist/config"
	"guestlist/internal/clock"
	"guestlist/internal/handlers"
	"guestlist/internal/i18n"
	"guestlist/internal/services"
	"guestlist/internal/storage"
	_ "guestlist/migrations"
	"guestlist/monitoring"
	"guestlist/security"
	"guestlist/utils"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// wiring holds the guest list components built on top of one app.
type wiring struct {
	capacity  *services.CapacityGuard
	guestList *services.GuestListService
	checkIn   *services.CheckInProcessor
}

func newWiring(app core.App, cfg *config.Config, redisClient redis.Cmdable, log logrus.FieldLogger, metrics *monitoring.Metrics) *wiring {
	registry := storage.NewDefaultRegistry(app, redisClient)
	hasher := utils.NewPhoneHasher(cfg.PhoneHashKey)
	clk := clock.NewSystem()

	counters := make([]services.Counter, 0, len(registry.Stores()))
	for _, s := range registry.Stores() {
		counters = append(counters, s)
	}
	capacity := services.NewCapacityGuard(counters, redisClient, cfg.CapacityReservationTTL, log)

	writer := services.NewEnrollmentWriter(registry.Targets(), log,
		services.WithAttemptTimeout(cfg.StorageAttemptTimeout),
		services.WithWriterMetrics(metrics),
		services.WithPhoneHasher(hasher),
	)

	issuer := services.NewCredentialIssuer(
		services.NewQRRenderer(cfg.QRSize),
		services.NewExternalRenderer(cfg.QRFallbackURL, cfg.QRSize),
		log, metrics,
	)

	// A nil *PubNubPublisher must not end up inside the interface.
	var publisher services.Publisher
	if p := services.NewPubNubPublisher(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubSecretKey, cfg.PubNubUserID); p != nil {
		publisher = p
	} else {
		log.Info("pubnub publish key not set, check-in notifications disabled")
	}

	return &wiring{
		capacity: capacity,
		guestList: services.NewGuestListService(services.GuestListDeps{
			Events:   storage.NewEventStore(app),
			Stores:   registry.Stores(),
			Capacity: capacity,
			Writer:   writer,
			Issuer:   issuer,
			Clock:    clk,
			Hasher:   hasher,
			Log:      log,
			Metrics:  metrics,
		}),
		checkIn: services.NewCheckInProcessor(
			registry.Stores(), clk,
			services.NewRealtimeNotifier(publisher, log),
			log, metrics,
		),
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsDevelopment() {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := newLogger(cfg)
	i18n.SetDefault(cfg.DefaultLanguage)

	// Initialize Redis
	redisClient, err := utils.NewRedisClient(cfg.RedisURL, log)
	if err != nil {
		log.WithError(err).Warn("starting without redis, fallback store and reservations will fail over")
	}
	defer redisClient.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewMetrics(registry)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := newWiring(app, cfg, redisClient, log, metrics)
	limiter := security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute, log)
	handler := handlers.NewGuestListHandler(w.guestList, w.checkIn, log)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.RootCmd.AddCommand(windowCommand(w))

	if cfg.EnableMetrics {
		go monitoring.NewMonitor(redisClient, metrics, log).Run(ctx, 30*time.Second)
	}

	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		handlers.RegisterRoutes(se.Router, handler,
			handlers.RequestLogger(log),
			limiter.AntiBot(),
			limiter.Middleware("enroll"),
		)

		if cfg.EnableMetrics {
			se.Router.GET("/metrics", apis.WrapStdHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
		}

		// Health check
		se.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(e.Request.Context(), redisClient); err != nil {
				return e.JSON(http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(http.StatusOK, map[string]string{"status": "healthy"})
		})

		log.Info("guest list routes registered")
		return se.Next()
	})

	setupEventHooks(app, w.capacity, log)

	app.OnTerminate().BindFunc(func(e *core.TerminateEvent) error {
		cancel()
		return e.Next()
	})

	return app.Start()
}

// setupEventHooks keeps the capacity reservation counter in step with edits
// to an event's guest list.
func setupEventHooks(app core.App, capacity *services.CapacityGuard, log logrus.FieldLogger) {
	reset := func(e *core.RecordEvent) error {
		if err := capacity.Reset(e.Context, e.Record.Id); err != nil {
			log.WithError(err).WithField("event_id", e.Record.Id).Warn("failed to reset capacity reservation")
		}
		return e.Next()
	}

	app.OnRecordAfterUpdateSuccess(storage.EventsCollection).BindFunc(func(e *core.RecordEvent) error {
		if e.Record.GetInt("guest_list_capacity") == e.Record.Original().GetInt("guest_list_capacity") {
			return e.Next()
		}
		return reset(e)
	})
	app.OnRecordAfterDeleteSuccess(storage.EventsCollection).BindFunc(reset)
}

func windowCommand(w *wiring) *cobra.Command {
	return &cobra.Command{
		Use:   "window <eventId>",
		Short: "Print the guest list admission state of an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := w.guestList.Window(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			cmd.Println(string(out))
			return nil
		},
	}
}
