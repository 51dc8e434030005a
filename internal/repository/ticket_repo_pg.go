package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `id, booking_id, flight_id, departure_date, seat_label, passenger_name, gender, price_cents,
	passport_number, date_of_birth, nationality, expiration_date, checked_in, checked_in_at`

type PGTicketRepository struct {
	db *pgxpool.Pool
}

func NewTicketRepository(db *pgxpool.Pool) TicketRepository {
	return &PGTicketRepository{db: db}
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var t domain.Ticket
	if err := row.Scan(&t.ID, &t.BookingID, &t.FlightID, &t.DepartureDate, &t.SeatLabel, &t.PassengerName,
		&t.Gender, &t.PriceCents, &t.CheckIn.PassportNumber, &t.CheckIn.DateOfBirth, &t.CheckIn.Nationality,
		&t.CheckIn.ExpirationDate, &t.CheckIn.CheckedIn, &t.CheckIn.CheckedInAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PGTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, id)
	}
	t, err := scanTicket(r.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

func (r *PGTicketRepository) CheckIn(ctx context.Context, id string, ci domain.CheckIn) (*domain.Ticket, error) {
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, id)
	}
	t, err := scanTicket(r.db.QueryRow(ctx, `UPDATE tickets SET passport_number=$2, date_of_birth=$3,
		nationality=$4, expiration_date=$5, checked_in=true, checked_in_at=$6, booking_synced=false
		WHERE id=$1 AND NOT checked_in
		RETURNING `+ticketColumns,
		id, ci.PassportNumber, ci.DateOfBirth, ci.Nationality, ci.ExpirationDate, ci.CheckedInAt))
	if errors.Is(err, pgx.ErrNoRows) {
		if _, gerr := r.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyCheckedIn, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return t, nil
}

func (r *PGTicketRepository) ListUnsyncedCheckIns(ctx context.Context, limit int) ([]domain.Ticket, error) {
	rows, err := r.db.Query(ctx, `SELECT `+ticketColumns+` FROM tickets
		WHERE checked_in AND NOT booking_synced ORDER BY checked_in_at LIMIT $1`, limit)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	tickets := make([]domain.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, classify(err)
		}
		tickets = append(tickets, *t)
	}
	return tickets, classify(rows.Err())
}

var _ TicketRepository = (*PGTicketRepository)(nil)
