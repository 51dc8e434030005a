package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, user_id, email, total_price_cents, booking_date, number_of_tickets, status,
	tickets, cancelled_at, created_at, updated_at`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type PGBookingRepository struct {
	db  *pgxpool.Pool
	loc *time.Location
}

func NewBookingRepository(db *pgxpool.Pool, loc *time.Location) BookingRepository {
	return &PGBookingRepository{db: db, loc: loc}
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.Email, &b.TotalPriceCents, &b.BookingDate, &b.NumberOfTickets,
		&b.Status, &b.Tickets, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// claimGroup is the set of seats a booking claims on one flight and day.
type claimGroup struct {
	flightID int64
	day      string
	seats    []string
}

func (g claimGroup) lockKey() string {
	return fmt.Sprintf("flight:%d:%s", g.flightID, g.day)
}

// groupClaims folds claims sorted by (flight, day, seat) into per-day groups in the
// same order, which is also the advisory lock order.
func groupClaims(claims []domain.SeatClaim) []claimGroup {
	var groups []claimGroup
	for _, c := range claims {
		n := len(groups)
		if n == 0 || groups[n-1].flightID != c.FlightID || groups[n-1].day != c.Day {
			groups = append(groups, claimGroup{flightID: c.FlightID, day: c.Day})
			n++
		}
		groups[n-1].seats = append(groups[n-1].seats, c.SeatLabel)
	}
	return groups
}

func (r *PGBookingRepository) conflicts(ctx context.Context, q querier, groups []claimGroup) error {
	var (
		taken  []string
		days   []string
		flight int64
	)
	for _, g := range groups {
		rows, err := q.Query(ctx, `SELECT s.seat_label FROM booked_seats s
			JOIN bookings b ON b.id = s.booking_id
			WHERE s.flight_id=$1 AND s.departure_day=$2 AND b.status <> $3 AND s.seat_label = ANY($4)
			ORDER BY s.seat_label`, g.flightID, g.day, domain.BookingStatusCancelled, g.seats)
		if err != nil {
			return classify(err)
		}
		seats, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return classify(err)
		}
		if len(seats) > 0 {
			taken = append(taken, seats...)
			days = append(days, g.day)
			flight = g.flightID
		}
	}
	if len(taken) == 0 {
		return nil
	}
	day := ""
	if len(days) == 1 {
		day = days[0]
	}
	return domain.NewSeatConflict(flight, day, taken)
}

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	groups := groupClaims(b.Claims(r.loc))

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	for _, g := range groups {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, g.lockKey()); err != nil {
			return classify(err)
		}
	}
	if err := r.conflicts(ctx, tx, groups); err != nil {
		return err
	}

	if err := tx.QueryRow(ctx, `INSERT INTO bookings (id, user_id, email, total_price_cents, booking_date,
		number_of_tickets, status, tickets)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		b.ID, b.UserID, b.Email, b.TotalPriceCents, b.BookingDate, b.NumberOfTickets, b.Status, b.Tickets).
		Scan(&b.CreatedAt, &b.UpdatedAt); err != nil {
		if isUniqueViolation(err, bookingsPKey) {
			return fmt.Errorf("%w: %s", domain.ErrBookingExists, b.ID)
		}
		return classify(err)
	}

	for _, t := range b.Tickets {
		if _, err := tx.Exec(ctx, `INSERT INTO tickets (id, booking_id, flight_id, departure_date, seat_label,
			passenger_name, gender, price_cents)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			t.ID, b.ID, t.FlightID, t.DepartureDate, t.SeatLabel, t.PassengerName, t.Gender, t.PriceCents); err != nil {
			return classify(err)
		}
		_, err := tx.Exec(ctx, `INSERT INTO booked_seats (flight_id, departure_day, seat_label, booking_id, ticket_id)
			VALUES ($1, $2, $3, $4, $5)`,
			t.FlightID, domain.DayKey(t.DepartureDate, r.loc), t.SeatLabel, b.ID, t.ID)
		if isUniqueViolation(err, bookedSeatsPKey) {
			tx.Rollback(ctx)
			if cerr := r.conflicts(ctx, r.db, groups); cerr != nil {
				return cerr
			}
			return domain.NewSeatConflict(t.FlightID, domain.DayKey(t.DepartureDate, r.loc), []string{t.SeatLabel})
		}
		if err != nil {
			return classify(err)
		}
	}

	return classify(tx.Commit(ctx))
}

func (r *PGBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	b, err := scanBooking(r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (r *PGBookingRepository) list(ctx context.Context, sql string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, classify(err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, classify(rows.Err())
}

func (r *PGBookingRepository) List(ctx context.Context) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY booking_date DESC`)
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 ORDER BY booking_date DESC`, userID)
}

func (r *PGBookingRepository) Cancel(ctx context.Context, id string, at time.Time) (*domain.Booking, error) {
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, classify(err)
	}
	defer tx.Rollback(ctx)

	b, err := scanBooking(tx.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	if !b.Active() {
		return b, nil
	}

	b.Status = domain.BookingStatusCancelled
	b.CancelledAt = &at
	if err := tx.QueryRow(ctx, `UPDATE bookings SET status=$2, cancelled_at=$3, updated_at=now()
		WHERE id=$1 RETURNING updated_at`, id, b.Status, at).Scan(&b.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM booked_seats WHERE booking_id=$1`, id); err != nil {
		return nil, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, classify(err)
	}
	return b, nil
}

func (r *PGBookingRepository) BookedSeats(ctx context.Context, flightID int64, day string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT s.seat_label FROM booked_seats s
		JOIN bookings b ON b.id = s.booking_id
		WHERE s.flight_id=$1 AND s.departure_day=$2 AND b.status <> $3
		ORDER BY s.seat_label`, flightID, day, domain.BookingStatusCancelled)
	if err != nil {
		return nil, classify(err)
	}
	seats, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, classify(err)
	}
	if seats == nil {
		seats = []string{}
	}
	return seats, nil
}

func (r *PGBookingRepository) SyncTicketCheckIn(ctx context.Context, t *domain.Ticket) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	var tickets []domain.Ticket
	err = tx.QueryRow(ctx, `SELECT tickets FROM bookings WHERE id=$1 FOR UPDATE`, t.BookingID).Scan(&tickets)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrBookingNotFound, t.BookingID)
	}
	if err != nil {
		return classify(err)
	}

	if !replaceCheckIn(tickets, t) {
		return fmt.Errorf("%w: %s in booking %s", domain.ErrTicketNotFound, t.ID, t.BookingID)
	}
	if _, err := tx.Exec(ctx, `UPDATE bookings SET tickets=$2, updated_at=now() WHERE id=$1`, t.BookingID, tickets); err != nil {
		return classify(err)
	}
	if _, err := tx.Exec(ctx, `UPDATE tickets SET booking_synced=true WHERE id=$1`, t.ID); err != nil {
		return classify(err)
	}
	return classify(tx.Commit(ctx))
}

// replaceCheckIn copies the check-in record of t onto its copy in tickets.
func replaceCheckIn(tickets []domain.Ticket, t *domain.Ticket) bool {
	for i := range tickets {
		if tickets[i].ID == t.ID {
			tickets[i].CheckIn = t.CheckIn
			return true
		}
	}
	return false
}

var _ BookingRepository = (*PGBookingRepository)(nil)
