package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/config"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// seedAirports mirrors the airports migration for the memory driver.
var seedAirports = []domain.Airport{
	{Code: "LHR", Name: "Heathrow", City: "London", Country: "United Kingdom"},
	{Code: "CDG", Name: "Charles de Gaulle", City: "Paris", Country: "France"},
	{Code: "FRA", Name: "Frankfurt am Main", City: "Frankfurt", Country: "Germany"},
	{Code: "JFK", Name: "John F. Kennedy", City: "New York", Country: "United States"},
	{Code: "DXB", Name: "Dubai International", City: "Dubai", Country: "United Arab Emirates"},
	{Code: "CMB", Name: "Bandaranaike International", City: "Colombo", Country: "Sri Lanka"},
}

type Storage struct {
	*repository.Store
	pool *pgxpool.Pool
}

// OpenStorage connects the configured driver, running migrations first when asked to.
func OpenStorage(ctx context.Context, cfg config.DatabaseConfig, loc *time.Location, log logrus.FieldLogger) (*Storage, error) {
	switch cfg.Driver {
	case "memory":
		log.Warn("Using in-memory storage; data is lost on restart")
		return &Storage{Store: repository.NewMemoryStore(loc, seedAirports...)}, nil
	case "postgres":
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	if cfg.Migrate {
		if err := repository.Migrate(cfg.URL(), log); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.WithFields(logrus.Fields{"host": cfg.Host, "database": cfg.Name}).Info("Connected to PostgreSQL")
	return &Storage{Store: repository.NewPostgresStore(pool, loc), pool: pool}, nil
}

func (s *Storage) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
