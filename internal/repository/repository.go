package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	// Create inserts all flights in one transaction and fills their IDs.
	Create(ctx context.Context, flights ...*domain.Flight) error
	Update(ctx context.Context, flight *domain.Flight) error
	Delete(ctx context.Context, id int64) error
	// FindDuplicate reports whether another flight flies the same airports at the same
	// departure time and weekday. excludeID is ignored when zero.
	FindDuplicate(ctx context.Context, route domain.RouteSnapshot, departureTime, departureDay string, excludeID int64) (bool, error)
	// PurgeCancelled deletes flights cancelled before the given instant.
	PurgeCancelled(ctx context.Context, before time.Time) (int64, error)
	// Search returns flights whose field contains value, ignoring case. field must be
	// one of domain.SearchFields.
	Search(ctx context.Context, field, value string) ([]domain.Flight, error)
}

type ReferenceRepository interface {
	GetRoute(ctx context.Context, id int64) (*domain.Route, error)
	FindRoute(ctx context.Context, departure, arrival string) (*domain.Route, error)
	CreateRoute(ctx context.Context, route *domain.Route) error
	AirportExists(ctx context.Context, code string) (bool, error)
}

type BookingRepository interface {
	// Create persists the booking, its tickets and its seat claims atomically. It fails
	// with a *domain.SeatError of kind ErrSeatsAlreadyBooked if any claim is held by a
	// non-cancelled booking.
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	List(ctx context.Context) ([]domain.Booking, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Booking, error)
	// Cancel moves the booking to CANCELLED and releases its seats. Cancelling a
	// cancelled booking returns it unchanged.
	Cancel(ctx context.Context, id string, at time.Time) (*domain.Booking, error)
	// BookedSeats lists the seats held on the flight for the calendar day (YYYY-MM-DD).
	BookedSeats(ctx context.Context, flightID int64, day string) ([]string, error)
	// SyncTicketCheckIn copies the ticket's check-in record into the booking's embedded
	// ticket and marks the canonical ticket synced.
	SyncTicketCheckIn(ctx context.Context, ticket *domain.Ticket) error
}

type CompanyRepository interface {
	Get(ctx context.Context) (*domain.CompanyInfo, error)
	// Save creates the company record or replaces the existing one.
	Save(ctx context.Context, info *domain.CompanyInfo) error
}

type TicketRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	// CheckIn stores the check-in record only if the ticket is not checked in yet and
	// flags the ticket as not synced into its booking.
	CheckIn(ctx context.Context, id string, checkIn domain.CheckIn) (*domain.Ticket, error)
	ListUnsyncedCheckIns(ctx context.Context, limit int) ([]domain.Ticket, error)
}

// Store bundles the repositories of one backing store.
type Store struct {
	Flights    FlightRepository
	References ReferenceRepository
	Bookings   BookingRepository
	Tickets    TicketRepository
	Company    CompanyRepository
}

// NewPostgresStore builds the PostgreSQL repositories. loc is the zone in which
// departure dates are reduced to calendar days.
func NewPostgresStore(db *pgxpool.Pool, loc *time.Location) *Store {
	return &Store{
		Flights:    NewFlightRepository(db),
		References: NewReferenceRepository(db),
		Bookings:   NewBookingRepository(db, loc),
		Tickets:    NewTicketRepository(db),
		Company:    NewCompanyRepository(db),
	}
}
