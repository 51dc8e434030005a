package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const flightColumns = `id, flight_number, departure_day, departure_time, arrival_time, start_date, end_date,
	status, route, total_seats, base_price_cents, cancelled_at, created_at, updated_at`

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) FlightRepository {
	return &PGFlightRepository{db: db}
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.DepartureDay, &f.DepartureTime, &f.ArrivalTime,
		&f.OperatingPeriod.StartDate, &f.OperatingPeriod.EndDate, &f.Status, &f.Route,
		&f.TotalSeats, &f.BasePriceCents, &f.CancelledAt, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights ORDER BY id`)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, classify(err)
		}
		flights = append(flights, *f)
	}
	return flights, classify(rows.Err())
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanFlight(r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrFlightNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, flights ...*domain.Flight) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return classify(err)
	}
	defer tx.Rollback(ctx)

	for _, f := range flights {
		err := tx.QueryRow(ctx, `INSERT INTO flights (flight_number, departure_day, departure_time, arrival_time,
			start_date, end_date, status, route, total_seats, base_price_cents, cancelled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id, created_at, updated_at`,
			f.FlightNumber, f.DepartureDay, f.DepartureTime, f.ArrivalTime,
			f.OperatingPeriod.StartDate, f.OperatingPeriod.EndDate, f.Status, f.Route,
			f.TotalSeats, f.BasePriceCents, f.CancelledAt).
			Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
		if isUniqueViolation(err, flightsNaturalKey) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateFlight, f.FlightNumber)
		}
		if err != nil {
			return classify(err)
		}
	}

	return classify(tx.Commit(ctx))
}

func (r *PGFlightRepository) Update(ctx context.Context, f *domain.Flight) error {
	err := r.db.QueryRow(ctx, `UPDATE flights SET flight_number=$2, departure_day=$3, departure_time=$4,
		arrival_time=$5, start_date=$6, end_date=$7, status=$8, route=$9, total_seats=$10,
		base_price_cents=$11, cancelled_at=$12, updated_at=now()
		WHERE id=$1 RETURNING updated_at`,
		f.ID, f.FlightNumber, f.DepartureDay, f.DepartureTime, f.ArrivalTime,
		f.OperatingPeriod.StartDate, f.OperatingPeriod.EndDate, f.Status, f.Route,
		f.TotalSeats, f.BasePriceCents, f.CancelledAt).Scan(&f.UpdatedAt)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%w: %d", domain.ErrFlightNotFound, f.ID)
	case isUniqueViolation(err, flightsNaturalKey):
		return fmt.Errorf("%w: %s", domain.ErrDuplicateFlight, f.FlightNumber)
	}
	return classify(err)
}

func (r *PGFlightRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM flights WHERE id=$1`, id)
	if err != nil {
		return classify(err)
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrFlightNotFound, id)
	}
	return nil
}

func (r *PGFlightRepository) FindDuplicate(ctx context.Context, route domain.RouteSnapshot, departureTime, departureDay string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (
		SELECT 1 FROM flights
		WHERE route ->> 'departure_airport' = $1
		  AND route ->> 'arrival_airport' = $2
		  AND departure_time = $3
		  AND departure_day = $4
		  AND id <> $5)`,
		route.DepartureAirport, route.ArrivalAirport, departureTime, departureDay, excludeID).Scan(&exists)
	if err != nil {
		return false, classify(err)
	}
	return exists, nil
}

func (r *PGFlightRepository) PurgeCancelled(ctx context.Context, before time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM flights WHERE status=$1 AND cancelled_at IS NOT NULL AND cancelled_at < $2`,
		domain.FlightStatusCancelled, before)
	if err != nil {
		return 0, classify(err)
	}
	return cmd.RowsAffected(), nil
}

var searchColumns = map[string]string{
	"flight_number":     "flight_number",
	"departure_day":     "departure_day",
	"departure_time":    "departure_time",
	"arrival_time":      "arrival_time",
	"status":            "status",
	"departure_airport": "route ->> 'departure_airport'",
	"arrival_airport":   "route ->> 'arrival_airport'",
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *PGFlightRepository) Search(ctx context.Context, field, value string) ([]domain.Flight, error) {
	column, ok := searchColumns[field]
	if !ok {
		return nil, fmt.Errorf("%w: cannot search by %q", domain.ErrInvalidInput, field)
	}
	rows, err := r.db.Query(ctx, `SELECT `+flightColumns+` FROM flights
		WHERE `+column+` ILIKE '%' || $1 || '%' ORDER BY id`, likeEscaper.Replace(value))
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, classify(err)
		}
		flights = append(flights, *f)
	}
	return flights, classify(rows.Err())
}

var _ FlightRepository = (*PGFlightRepository)(nil)
