package flights

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/retry"
	"github.com/Domenick1991/flightbooking/internal/schedule"
	"github.com/sirupsen/logrus"
)

// ReturnSuffix is appended to the flight number of a generated return flight.
const ReturnSuffix = "-R"

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Search(ctx context.Context, field, value string) ([]domain.Flight, error)
	CreateFlight(ctx context.Context, input FlightInput) ([]domain.Flight, error)
	UpdateFlight(ctx context.Context, id int64, update FlightUpdate) (*domain.Flight, error)
	Delete(ctx context.Context, id int64) error
	PurgeCancelled(ctx context.Context, retention time.Duration) (int64, error)
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
	GetFlight(ctx context.Context, id int64) (*domain.Flight, error)
	SetFlight(ctx context.Context, flight *domain.Flight) error
	Invalidate(ctx context.Context, ids ...int64) error
}

type FlightInput struct {
	FlightNumber    string                 `json:"flight_number"`
	DepartureDay    string                 `json:"departure_day"`
	DepartureTime   string                 `json:"departure_time"`
	ArrivalTime     string                 `json:"arrival_time"`
	OperatingPeriod domain.OperatingPeriod `json:"operating_period"`
	Status          domain.FlightStatus    `json:"status"`
	RouteID         int64                  `json:"route_id"`
	TotalSeats      int                    `json:"total_seats"`
	BasePriceCents  int64                  `json:"base_price_cents"`
	ReturnFlight    bool                   `json:"return_flight"`
}

// FlightUpdate carries the fields to change; nil fields are left as they are.
type FlightUpdate struct {
	FlightNumber    *string                 `json:"flight_number"`
	DepartureDay    *string                 `json:"departure_day"`
	DepartureTime   *string                 `json:"departure_time"`
	ArrivalTime     *string                 `json:"arrival_time"`
	OperatingPeriod *domain.OperatingPeriod `json:"operating_period"`
	Status          *domain.FlightStatus    `json:"status"`
	RouteID         *int64                  `json:"route_id"`
	TotalSeats      *int                    `json:"total_seats"`
	BasePriceCents  *int64                  `json:"base_price_cents"`
}

type FlightService struct {
	repo  repository.FlightRepository
	refs  repository.ReferenceRepository
	cache FlightCache
	log   logrus.FieldLogger
	retry retry.Policy
	now   func() time.Time
}

type FlightServiceOption func(*FlightService)

func WithLogger(log logrus.FieldLogger) FlightServiceOption {
	return func(s *FlightService) { s.log = log }
}

func WithRetryPolicy(p retry.Policy) FlightServiceOption {
	return func(s *FlightService) { s.retry = p }
}

func WithClock(now func() time.Time) FlightServiceOption {
	return func(s *FlightService) { s.now = now }
}

// NewFlightService builds the service. cache may be nil.
func NewFlightService(repo repository.FlightRepository, refs repository.ReferenceRepository, cache FlightCache, opts ...FlightServiceOption) *FlightService {
	s := &FlightService{
		repo:  repo,
		refs:  refs,
		cache: cache,
		log:   logging.Discard(),
		retry: retry.DefaultPolicy(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		} else if err != nil {
			s.log.WithError(err).Warn("Flight cache read failed")
		}
	}

	flights, err := retry.Value(ctx, s.retry, func() ([]domain.Flight, error) { return s.repo.List(ctx) })
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.SetFlights(ctx, flights); err != nil {
			s.log.WithError(err).Warn("Flight cache write failed")
		}
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlight(ctx, id); err == nil && cached != nil {
			return cached, nil
		}
	}

	f, err := retry.Value(ctx, s.retry, func() (*domain.Flight, error) { return s.repo.GetByID(ctx, id) })
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.SetFlight(ctx, f)
	}
	return f, nil
}

// Search matches value as a case-insensitive substring of field, one of
// domain.SearchFields.
func (s *FlightService) Search(ctx context.Context, field, value string) ([]domain.Flight, error) {
	field = strings.ToLower(strings.TrimSpace(field))
	if !slices.Contains(domain.SearchFields, field) {
		return nil, fmt.Errorf("%w: cannot search flights by %q", domain.ErrInvalidInput, field)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, fmt.Errorf("%w: empty search value", domain.ErrInvalidInput)
	}
	return retry.Value(ctx, s.retry, func() ([]domain.Flight, error) { return s.repo.Search(ctx, field, value) })
}

func (s *FlightService) CreateFlight(ctx context.Context, input FlightInput) ([]domain.Flight, error) {
	outbound := &domain.Flight{
		FlightNumber:    strings.TrimSpace(input.FlightNumber),
		DepartureDay:    input.DepartureDay,
		DepartureTime:   input.DepartureTime,
		ArrivalTime:     input.ArrivalTime,
		OperatingPeriod: input.OperatingPeriod,
		Status:          input.Status,
		TotalSeats:      input.TotalSeats,
		BasePriceCents:  input.BasePriceCents,
	}
	applyDefaults(outbound)

	var route *domain.Route
	if input.RouteID != 0 {
		r, err := retry.Value(ctx, s.retry, func() (*domain.Route, error) { return s.refs.GetRoute(ctx, input.RouteID) })
		if err != nil {
			return nil, err
		}
		route = r
		outbound.Route = r.Snapshot()
	} else if input.ReturnFlight {
		return nil, fmt.Errorf("%w: a return flight needs a route", domain.ErrInvalidInput)
	}

	if err := s.prepare(outbound); err != nil {
		return nil, err
	}
	legs := []*domain.Flight{outbound}

	var inverse *domain.Route
	if input.ReturnFlight {
		leg, err := schedule.ReturnLeg(outbound.DepartureDay, outbound.DepartureTime, route.Duration)
		if err != nil {
			return nil, err
		}
		inverse = route.Inverse()
		back := *outbound
		back.FlightNumber = outbound.FlightNumber + ReturnSuffix
		back.DepartureDay = leg.ReturnDay
		back.DepartureTime = leg.ReturnDeparture
		back.ArrivalTime = leg.ReturnArrival
		back.Route = inverse.Snapshot()
		legs = append(legs, &back)
	}

	for _, f := range legs {
		if err := s.checkDuplicate(ctx, f, 0); err != nil {
			return nil, err
		}
	}
	if inverse != nil {
		if err := s.ensureRoute(ctx, inverse); err != nil {
			return nil, err
		}
	}

	if err := s.retry.Do(ctx, func() error { return s.repo.Create(ctx, legs...) }); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	created := make([]domain.Flight, 0, len(legs))
	for _, f := range legs {
		created = append(created, *f)
		s.log.WithFields(logrus.Fields{"flight_id": f.ID, "flight_number": f.FlightNumber}).Info("Flight created")
	}
	return created, nil
}

func (s *FlightService) UpdateFlight(ctx context.Context, id int64, u FlightUpdate) (*domain.Flight, error) {
	f, err := retry.Value(ctx, s.retry, func() (*domain.Flight, error) { return s.repo.GetByID(ctx, id) })
	if err != nil {
		return nil, err
	}
	wasCancelled := f.Status == domain.FlightStatusCancelled

	if u.FlightNumber != nil {
		f.FlightNumber = strings.TrimSpace(*u.FlightNumber)
	}
	if u.DepartureDay != nil {
		f.DepartureDay = *u.DepartureDay
	}
	if u.DepartureTime != nil {
		f.DepartureTime = *u.DepartureTime
	}
	if u.ArrivalTime != nil {
		f.ArrivalTime = *u.ArrivalTime
	}
	if u.OperatingPeriod != nil {
		f.OperatingPeriod = *u.OperatingPeriod
	}
	if u.Status != nil {
		f.Status = *u.Status
	}
	if u.TotalSeats != nil {
		f.TotalSeats = *u.TotalSeats
	}
	if u.BasePriceCents != nil {
		f.BasePriceCents = *u.BasePriceCents
	}
	if u.RouteID != nil {
		r, err := retry.Value(ctx, s.retry, func() (*domain.Route, error) { return s.refs.GetRoute(ctx, *u.RouteID) })
		if err != nil {
			return nil, err
		}
		f.Route = r.Snapshot()
	}

	switch {
	case f.Status == domain.FlightStatusCancelled && !wasCancelled:
		at := s.now()
		f.CancelledAt = &at
	case f.Status != domain.FlightStatusCancelled:
		f.CancelledAt = nil
	}

	if err := s.prepare(f); err != nil {
		return nil, err
	}
	if err := s.checkDuplicate(ctx, f, f.ID); err != nil {
		return nil, err
	}
	if err := s.retry.Do(ctx, func() error { return s.repo.Update(ctx, f) }); err != nil {
		return nil, err
	}
	s.invalidate(ctx, f.ID)
	s.log.WithFields(logrus.Fields{"flight_id": f.ID, "status": f.Status}).Info("Flight updated")
	return f, nil
}

func (s *FlightService) Delete(ctx context.Context, id int64) error {
	if err := s.retry.Do(ctx, func() error { return s.repo.Delete(ctx, id) }); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.log.WithField("flight_id", id).Info("Flight deleted")
	return nil
}

// PurgeCancelled deletes flights cancelled longer than retention ago.
func (s *FlightService) PurgeCancelled(ctx context.Context, retention time.Duration) (int64, error) {
	before := s.now().Add(-retention)
	n, err := retry.Value(ctx, s.retry, func() (int64, error) { return s.repo.PurgeCancelled(ctx, before) })
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.invalidate(ctx)
		s.log.WithFields(logrus.Fields{"flights": n, "before": before}).Info("Cancelled flights purged")
	}
	return n, nil
}

func applyDefaults(f *domain.Flight) {
	if f.Status == "" {
		f.Status = domain.FlightStatusScheduled
	}
	if f.TotalSeats == 0 {
		f.TotalSeats = domain.DefaultTotalSeats
	}
}

// prepare validates f and derives its arrival time from the embedded route.
func (s *FlightService) prepare(f *domain.Flight) error {
	if f.FlightNumber == "" {
		return fmt.Errorf("%w: flight number is required", domain.ErrInvalidInput)
	}
	day, err := schedule.NormalizeDay(f.DepartureDay)
	if err != nil {
		return err
	}
	f.DepartureDay = day
	if err := schedule.ValidateTime(f.DepartureTime); err != nil {
		return err
	}
	if !f.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, f.Status)
	}
	if f.TotalSeats <= 0 {
		return fmt.Errorf("%w: total seats must be positive", domain.ErrInvalidInput)
	}
	if f.BasePriceCents < 0 {
		return fmt.Errorf("%w: base price must not be negative", domain.ErrInvalidInput)
	}
	p := f.OperatingPeriod
	if p.StartDate.IsZero() || p.EndDate.IsZero() || p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("%w: operating period needs a start date not after its end date", domain.ErrInvalidInput)
	}

	if f.Route == nil {
		return schedule.ValidateTime(f.ArrivalTime)
	}
	if err := schedule.ValidateDuration(f.Route.Duration); err != nil {
		return fmt.Errorf("route %s-%s duration: %w", f.Route.DepartureAirport, f.Route.ArrivalAirport, err)
	}
	arrival, err := schedule.ArrivalTime(f.DepartureTime, f.Route.Duration)
	if err != nil {
		return err
	}
	f.ArrivalTime = arrival
	return nil
}

func (s *FlightService) checkDuplicate(ctx context.Context, f *domain.Flight, excludeID int64) error {
	if f.Route == nil {
		return nil
	}
	dup, err := retry.Value(ctx, s.retry, func() (bool, error) {
		return s.repo.FindDuplicate(ctx, *f.Route, f.DepartureTime, f.DepartureDay, excludeID)
	})
	if err != nil {
		return err
	}
	if dup {
		return fmt.Errorf("%w: %s-%s %s %s", domain.ErrDuplicateFlight,
			f.Route.DepartureAirport, f.Route.ArrivalAirport, f.DepartureDay, f.DepartureTime)
	}
	return nil
}

// ensureRoute fills r with the stored route for its airport pair, creating it when
// both airports exist.
func (s *FlightService) ensureRoute(ctx context.Context, r *domain.Route) error {
	existing, err := retry.Value(ctx, s.retry, func() (*domain.Route, error) {
		return s.refs.FindRoute(ctx, r.DepartureAirport, r.ArrivalAirport)
	})
	if err == nil {
		*r = *existing
		return nil
	}
	if !errors.Is(err, domain.ErrRouteNotFound) {
		return err
	}

	for _, code := range []string{r.DepartureAirport, r.ArrivalAirport} {
		ok, err := retry.Value(ctx, s.retry, func() (bool, error) { return s.refs.AirportExists(ctx, code) })
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrAirportNotFound, code)
		}
	}
	if err := s.retry.Do(ctx, func() error { return s.refs.CreateRoute(ctx, r) }); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{"route_id": r.ID, "from": r.DepartureAirport, "to": r.ArrivalAirport}).Info("Inverse route created")
	return nil
}

func (s *FlightService) invalidate(ctx context.Context, ids ...int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, ids...); err != nil {
		s.log.WithError(err).Warn("Flight cache invalidation failed")
	}
}

var _ FlightUseCase = (*FlightService)(nil)
