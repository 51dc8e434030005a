//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "booking",
				"POSTGRES_PASSWORD": "booking",
				"POSTGRES_DB":       "booking",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	url := fmt.Sprintf("booking:booking@%s:%s/booking?sslmode=disable", host, port.Port())
	require.NoError(t, Migrate("pgx5://"+url, logging.Discard()))

	pool, err := pgxpool.New(ctx, "postgres://"+url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestPostgres_BookingLifecycle(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := NewPostgresStore(pool, time.UTC)

	flight := &domain.Flight{
		FlightNumber:    "FB100",
		DepartureDay:    "Sunday",
		DepartureTime:   "09:30",
		ArrivalTime:     "10:45",
		OperatingPeriod: domain.OperatingPeriod{StartDate: testDate.AddDate(0, -1, 0), EndDate: testDate.AddDate(0, 1, 0)},
		Status:          domain.FlightStatusScheduled,
		Route:           &domain.RouteSnapshot{DepartureAirport: "LHR", ArrivalAirport: "CDG", Duration: "01:15"},
		TotalSeats:      domain.DefaultTotalSeats,
	}
	require.NoError(t, store.Flights.Create(ctx, flight))

	got, err := store.Flights.GetByID(ctx, flight.ID)
	require.NoError(t, err)
	assert.Equal(t, *flight.Route, *got.Route)

	dup := *flight
	dup.FlightNumber = "FB101"
	assert.ErrorIs(t, store.Flights.Create(ctx, &dup), domain.ErrDuplicateFlight)

	const workers = 10
	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok []*domain.Booking
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := newTestBooking("u", flight.ID, testDate, "7A", "7B")
			err := store.Bookings.Create(ctx, b)
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrSeatsAlreadyBooked)
				return
			}
			mu.Lock()
			ok = append(ok, b)
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, ok, 1)
	winner := ok[0]

	seats, err := store.Bookings.BookedSeats(ctx, flight.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"7A", "7B"}, seats)

	loaded, err := store.Bookings.GetByID(ctx, winner.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Tickets, 2)
	assert.Equal(t, domain.BookingStatusConfirmed, loaded.Status)

	now := time.Now().UTC().Truncate(time.Second)
	ticketID := winner.Tickets[0].ID
	ticket, err := store.Tickets.CheckIn(ctx, ticketID, domain.CheckIn{PassportNumber: "P1", CheckedInAt: &now})
	require.NoError(t, err)
	assert.True(t, ticket.CheckIn.CheckedIn)
	_, err = store.Tickets.CheckIn(ctx, ticketID, domain.CheckIn{PassportNumber: "P2", CheckedInAt: &now})
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)

	unsynced, err := store.Tickets.ListUnsyncedCheckIns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unsynced, 1)
	require.NoError(t, store.Bookings.SyncTicketCheckIn(ctx, &unsynced[0]))

	loaded, err = store.Bookings.GetByID(ctx, winner.ID)
	require.NoError(t, err)
	for _, tk := range loaded.Tickets {
		if tk.ID == ticketID {
			assert.Equal(t, "P1", tk.CheckIn.PassportNumber)
		}
	}

	_, err = store.Bookings.Cancel(ctx, winner.ID, now)
	require.NoError(t, err)
	seats, err = store.Bookings.BookedSeats(ctx, flight.ID, "2025-06-01")
	require.NoError(t, err)
	assert.Empty(t, seats)

	require.NoError(t, store.Bookings.Create(ctx, newTestBooking("u2", flight.ID, testDate, "7A")))

	_, err = store.Bookings.GetByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestPostgres_References(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := NewPostgresStore(pool, time.UTC)

	exists, err := store.References.AirportExists(ctx, "LHR")
	require.NoError(t, err)
	assert.True(t, exists)

	r := &domain.Route{DepartureAirport: "LHR", ArrivalAirport: "JFK", Duration: "08:00"}
	require.NoError(t, store.References.CreateRoute(ctx, r))
	again := &domain.Route{DepartureAirport: "LHR", ArrivalAirport: "JFK", Duration: "08:00"}
	require.NoError(t, store.References.CreateRoute(ctx, again))
	assert.Equal(t, r.ID, again.ID)

	found, err := store.References.FindRoute(ctx, "LHR", "JFK")
	require.NoError(t, err)
	assert.Equal(t, r.ID, found.ID)

	_, err = store.References.GetRoute(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestPostgres_SearchCompanyAndDuplicateBooking(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	store := NewPostgresStore(pool, time.UTC)

	period := domain.OperatingPeriod{StartDate: testDate.AddDate(0, -1, 0), EndDate: testDate.AddDate(0, 1, 0)}
	require.NoError(t, store.Flights.Create(ctx,
		&domain.Flight{FlightNumber: "FB_1", DepartureDay: "Monday", DepartureTime: "08:00", OperatingPeriod: period,
			Status: domain.FlightStatusScheduled, TotalSeats: 10,
			Route: &domain.RouteSnapshot{DepartureAirport: "LHR", ArrivalAirport: "CDG", Duration: "01:15"}},
		&domain.Flight{FlightNumber: "FBX1", DepartureDay: "Monday", DepartureTime: "09:00", OperatingPeriod: period,
			Status: domain.FlightStatusScheduled, TotalSeats: 10},
	))

	got, err := store.Flights.Search(ctx, "flight_number", "fb_")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "FB_1", got[0].FlightNumber)

	got, err = store.Flights.Search(ctx, "arrival_airport", "cd")
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = store.Flights.Search(ctx, "id; DROP TABLE flights", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = store.Company.Get(ctx)
	assert.ErrorIs(t, err, domain.ErrCompanyNotFound)
	info := &domain.CompanyInfo{Name: "Fly", Description: "d", Address: "a", Phone: "1", Email: "e@x"}
	require.NoError(t, store.Company.Save(ctx, info))
	info.Phone = "2"
	require.NoError(t, store.Company.Save(ctx, info))
	company, err := store.Company.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2", company.Phone)

	b := newTestBooking("u", got[0].ID, testDate, "1A")
	require.NoError(t, store.Bookings.Create(ctx, b))
	b.Tickets[0].ID = "00000000-0000-0000-0000-000000000001"
	b.Tickets[0].SeatLabel = "1B"
	assert.ErrorIs(t, store.Bookings.Create(ctx, b), domain.ErrBookingExists)
}
