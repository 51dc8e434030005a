package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/bootstrap"
	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/email"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/retry"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"
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
	log := logging.New(cfg.Log.Level, cfg.Log.Format).WithField("component", "worker")

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

	policy := retry.Policy{
		Attempts:       cfg.Booking.RetryAttempts,
		InitialBackoff: time.Duration(cfg.Booking.RetryInitialBackoffMS) * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}

	var flightCache flights.FlightCache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
		defer redisCache.Close()
		flightCache = redisCache
	}

	flightService := flights.NewFlightService(storage.Flights, storage.References, flightCache,
		flights.WithLogger(log),
		flights.WithRetryPolicy(policy),
	)
	bookingService := booking.NewBookingService(storage.Bookings, storage.Tickets, flightService, nil, "",
		booking.WithLogger(log),
		booking.WithRetryPolicy(policy),
		booking.WithLocation(loc),
	)

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
		defer consumer.Close()
		sender := email.NewSender(log)

		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				event, err := kafka.Decode(msg)
				if err != nil {
					log.WithError(err).Warn("Dropping undecodable notification")
					return nil
				}
				if err := sender.Send(ctx, event); err != nil {
					log.WithError(err).WithField("booking_id", event.BookingID).Warn("Notification not sent")
				}
				return nil
			})
			if err != nil {
				log.WithError(err).Error("Notification consumer stopped")
			}
		}()
	}

	var reconcile, purge <-chan time.Time
	schedule := sweepSchedule(*cfg)
	if schedule.Reconcile == 0 {
		log.Warn("Memory storage is private to the API process; reconcile and purge sweeps are disabled")
	} else {
		reconcileTicker := time.NewTicker(schedule.Reconcile)
		defer reconcileTicker.Stop()
		reconcile = reconcileTicker.C
	}
	if schedule.Purge > 0 {
		purgeTicker := time.NewTicker(schedule.Purge)
		defer purgeTicker.Stop()
		purge = purgeTicker.C
	}

	log.Info("Worker started")
	for {
		select {
		case <-reconcile:
			n, err := bookingService.ReconcileCheckIns(ctx, cfg.Worker.ReconcileBatchSize)
			if err != nil {
				log.WithError(err).Error("Check-in reconciliation failed")
				continue
			}
			if n > 0 {
				log.WithField("tickets", n).Info("Check-ins reconciled")
			}
		case <-purge:
			if _, err := flightService.PurgeCancelled(ctx, schedule.Retention); err != nil {
				log.WithError(err).Error("Cancelled flight purge failed")
			}
		case <-ctx.Done():
			log.Info("Shutting down worker")
			return
		}
	}
}
