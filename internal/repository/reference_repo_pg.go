package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGReferenceRepository reads airports and routes. Those tables are owned by the
// reference data side; only route creation for return flights writes here.
type PGReferenceRepository struct {
	db *pgxpool.Pool
}

func NewReferenceRepository(db *pgxpool.Pool) ReferenceRepository {
	return &PGReferenceRepository{db: db}
}

func (r *PGReferenceRepository) GetRoute(ctx context.Context, id int64) (*domain.Route, error) {
	var rt domain.Route
	err := r.db.QueryRow(ctx, `SELECT id, departure_airport, arrival_airport, duration FROM routes WHERE id=$1`, id).
		Scan(&rt.ID, &rt.DepartureAirport, &rt.ArrivalAirport, &rt.Duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", domain.ErrRouteNotFound, id)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &rt, nil
}

func (r *PGReferenceRepository) FindRoute(ctx context.Context, departure, arrival string) (*domain.Route, error) {
	var rt domain.Route
	err := r.db.QueryRow(ctx, `SELECT id, departure_airport, arrival_airport, duration FROM routes
		WHERE departure_airport=$1 AND arrival_airport=$2`, departure, arrival).
		Scan(&rt.ID, &rt.DepartureAirport, &rt.ArrivalAirport, &rt.Duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s-%s", domain.ErrRouteNotFound, departure, arrival)
	}
	if err != nil {
		return nil, classify(err)
	}
	return &rt, nil
}

func (r *PGReferenceRepository) CreateRoute(ctx context.Context, rt *domain.Route) error {
	err := r.db.QueryRow(ctx, `INSERT INTO routes (departure_airport, arrival_airport, duration)
		VALUES ($1, $2, $3) RETURNING id`, rt.DepartureAirport, rt.ArrivalAirport, rt.Duration).Scan(&rt.ID)
	if isUniqueViolation(err, routesAirportPair) {
		existing, ferr := r.FindRoute(ctx, rt.DepartureAirport, rt.ArrivalAirport)
		if ferr != nil {
			return ferr
		}
		*rt = *existing
		return nil
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: %s or %s", domain.ErrAirportNotFound, rt.DepartureAirport, rt.ArrivalAirport)
	}
	return classify(err)
}

func (r *PGReferenceRepository) AirportExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM airports WHERE code=$1)`, code).Scan(&exists); err != nil {
		return false, classify(err)
	}
	return exists, nil
}

var _ ReferenceRepository = (*PGReferenceRepository)(nil)
