package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
http:
  address: ":9090"
database:
  host: db
  port: 5432
  user: booking
  password: secret
  name: flights
kafka:
  brokers: ["kafka:9092"]
  booking_events_topic: booking-events
booking:
  timezone: Europe/Copenhagen
  retry_attempts: 5
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTP.Address)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "host=db port=5432 user=booking password=secret dbname=flights sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, "pgx5://booking:secret@db:5432/flights?sslmode=disable", cfg.Database.URL())
	assert.Equal(t, []string{"kafka:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Kafka.PublishAttempts)
	assert.Equal(t, 5, cfg.Booking.RetryAttempts)
	assert.Equal(t, 100, cfg.Booking.RetryInitialBackoffMS)
	assert.Equal(t, "auth-token", cfg.Auth.Header)
	assert.Equal(t, "json", cfg.Log.Format)

	loc, err := cfg.Booking.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Copenhagen", loc.String())
}

func TestLoadConfig_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("AUTH_TOKEN_SECRET", "from-env")
	t.Setenv("DATABASE_PASSWORD", "db-from-env")

	cfg, err := LoadConfig(writeConfig(t, "auth:\n  token_secret: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.TokenSecret)
	assert.Equal(t, "db-from-env", cfg.Database.Password)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	_, err = LoadConfig(writeConfig(t, "http: [unterminated"))
	assert.ErrorContains(t, err, "failed to parse config")

	_, err = LoadConfig(writeConfig(t, "booking:\n  timezone: Mars/Olympus\n"))
	assert.ErrorContains(t, err, "invalid booking timezone")
}

func TestBookingConfig_DefaultLocation(t *testing.T) {
	loc, err := BookingConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
