package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightbooking/api"
	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/retry"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/company"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Format)
	if cfg.Auth.TokenSecret == "" {
		log.Fatal("auth token secret is not set")
	}

	loc, err := cfg.Booking.Location()
	if err != nil {
		log.Fatalf("booking timezone: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := bootstrap.OpenStorage(ctx, cfg.Database, loc, log)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer storage.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	policy := retry.Policy{
		Attempts:       cfg.Booking.RetryAttempts,
		InitialBackoff: time.Duration(cfg.Booking.RetryInitialBackoffMS) * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
	checks := map[string]api.HealthCheck{"database": storage.Ping}

	var flightCache flights.FlightCache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
		defer redisCache.Close()
		flightCache = redisCache
		checks["redis"] = redisCache.Ping
	}

	var producer booking.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer kafkaProducer.Close()
		producer = kafkaProducer
		checks["kafka"] = kafkaProducer.CheckConnection
	}

	flightService := flights.NewFlightService(storage.Flights, storage.References, flightCache,
		flights.WithLogger(log.WithField("service", "flights")),
		flights.WithRetryPolicy(policy),
	)
	bookingService := booking.NewBookingService(
		storage.Bookings,
		storage.Tickets,
		flightService,
		producer,
		cfg.Kafka.BookingEventsTopic,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithPublishAttempts(cfg.Kafka.PublishAttempts),
		booking.WithLogger(log.WithField("service", "booking")),
		booking.WithMetrics(m),
		booking.WithRetryPolicy(policy),
		booking.WithLocation(loc),
	)

	router := api.NewRouter(api.RouterConfig{
		Bookings:       api.NewBookingHandler(bookingService, loc, log),
		Flights:        api.NewFlightHandler(flightService, log),
		Company:        api.NewCompanyHandler(company.NewCompanyService(storage.Company, log.WithField("service", "company"), policy), log),
		Auth:           api.NewAuthenticator(cfg.Auth.TokenSecret, cfg.Auth.Header),
		Metrics:        m,
		Gatherer:       reg,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Checks:         checks,
		Log:            log,
	})

	if err := bootstrap.NewServer(cfg.HTTP, router, log).Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
