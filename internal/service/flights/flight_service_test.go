package flights

import (
	"context"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/cache"
	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/retry"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFlightRepository struct {
	mock.Mock
}

func (m *MockFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) Create(ctx context.Context, flights ...*domain.Flight) error {
	return m.Called(ctx, flights).Error(0)
}

func (m *MockFlightRepository) Update(ctx context.Context, f *domain.Flight) error {
	return m.Called(ctx, f).Error(0)
}

func (m *MockFlightRepository) Delete(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockFlightRepository) FindDuplicate(ctx context.Context, route domain.RouteSnapshot, departureTime, departureDay string, excludeID int64) (bool, error) {
	args := m.Called(ctx, route, departureTime, departureDay, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockFlightRepository) Search(ctx context.Context, field, value string) ([]domain.Flight, error) {
	args := m.Called(ctx, field, value)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Flight), args.Error(1)
}

func (m *MockFlightRepository) PurgeCancelled(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// missingAirport reports code as unknown while delegating everything else.
type missingAirport struct {
	repository.ReferenceRepository
	code string
}

func (m missingAirport) AirportExists(ctx context.Context, code string) (bool, error) {
	if code == m.code {
		return false, nil
	}
	return m.ReferenceRepository.AirportExists(ctx, code)
}

var (
	testNow    = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	testPeriod = domain.OperatingPeriod{
		StartDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
	}
)

func fastRetry() retry.Policy {
	return retry.Policy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

type fixture struct {
	store   *repository.Store
	route   *domain.Route
	service *FlightService
	now     time.Time
}

func newFixture(t *testing.T, flightCache FlightCache) *fixture {
	t.Helper()
	store := repository.NewMemoryStore(time.UTC,
		domain.Airport{Code: "LHR"}, domain.Airport{Code: "CDG"}, domain.Airport{Code: "JFK"})
	route := &domain.Route{DepartureAirport: "LHR", ArrivalAirport: "CDG", Duration: "02:00"}
	require.NoError(t, store.References.CreateRoute(context.Background(), route))

	f := &fixture{store: store, route: route, now: testNow}
	f.service = NewFlightService(store.Flights, store.References, flightCache,
		WithRetryPolicy(fastRetry()),
		WithClock(func() time.Time { return f.now }))
	return f
}

func (f *fixture) input(number string) FlightInput {
	return FlightInput{
		FlightNumber:    number,
		DepartureDay:    "sunday",
		DepartureTime:   "22:30",
		OperatingPeriod: testPeriod,
		RouteID:         f.route.ID,
	}
}

func TestCreateFlight_EmbedsRouteAndDefaults(t *testing.T) {
	f := newFixture(t, nil)
	in := f.input("FB1")
	in.ArrivalTime = "11:11"

	created, err := f.service.CreateFlight(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, created, 1)

	got := created[0]
	assert.NotZero(t, got.ID)
	assert.Equal(t, "Sunday", got.DepartureDay)
	assert.Equal(t, "00:30", got.ArrivalTime)
	assert.Equal(t, domain.DefaultTotalSeats, got.TotalSeats)
	assert.Equal(t, domain.FlightStatusScheduled, got.Status)
	assert.Equal(t, &domain.RouteSnapshot{DepartureAirport: "LHR", ArrivalAirport: "CDG", Duration: "02:00"}, got.Route)

	stored, err := f.service.GetByID(context.Background(), got.ID)
	require.NoError(t, err)
	assert.Equal(t, "02:00", stored.Route.Duration)
}

func TestCreateFlight_WithoutRoute(t *testing.T) {
	f := newFixture(t, nil)
	in := f.input("FB2")
	in.RouteID = 0
	in.ArrivalTime = "23:50"

	created, err := f.service.CreateFlight(context.Background(), in)
	require.NoError(t, err)
	assert.Nil(t, created[0].Route)
	assert.Equal(t, "23:50", created[0].ArrivalTime)
}

func TestCreateFlight_ReturnFlight(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	in := f.input("FB1")
	in.ReturnFlight = true

	created, err := f.service.CreateFlight(ctx, in)
	require.NoError(t, err)
	require.Len(t, created, 2)

	out, back := created[0], created[1]
	assert.Equal(t, "00:30", out.ArrivalTime)
	assert.Equal(t, "FB1-R", back.FlightNumber)
	assert.Equal(t, "Monday", back.DepartureDay)
	assert.Equal(t, "01:15", back.DepartureTime)
	assert.Equal(t, "03:15", back.ArrivalTime)
	assert.Equal(t, "CDG", back.Route.DepartureAirport)
	assert.Equal(t, "LHR", back.Route.ArrivalAirport)
	assert.NotEqual(t, out.ID, back.ID)

	inverse, err := f.store.References.FindRoute(ctx, "CDG", "LHR")
	require.NoError(t, err)
	assert.Equal(t, "02:00", inverse.Duration)

	in = f.input("FB9")
	in.DepartureTime = "08:00"
	in.ReturnFlight = true
	_, err = f.service.CreateFlight(ctx, in)
	require.NoError(t, err)
	again, err := f.store.References.FindRoute(ctx, "CDG", "LHR")
	require.NoError(t, err)
	assert.Equal(t, inverse.ID, again.ID)
}

func TestCreateFlight_ReturnFlightUnknownAirport(t *testing.T) {
	f := newFixture(t, nil)
	f.service.refs = missingAirport{ReferenceRepository: f.store.References, code: "CDG"}
	in := f.input("FB1")
	in.ReturnFlight = true

	_, err := f.service.CreateFlight(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrAirportNotFound)

	all, err := f.service.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateFlight_Duplicates(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.CreateFlight(ctx, f.input("FB1"))
	require.NoError(t, err)
	_, err = f.service.CreateFlight(ctx, f.input("FB7"))
	assert.ErrorIs(t, err, domain.ErrDuplicateFlight)

	in := f.input("FB2")
	in.DepartureDay = "Monday"
	_, err = f.service.CreateFlight(ctx, in)
	require.NoError(t, err, "same time on another weekday")

	in = f.input("FB3")
	in.ReturnFlight = true
	_, err = f.service.CreateFlight(ctx, in)
	assert.ErrorIs(t, err, domain.ErrDuplicateFlight)

	all, err := f.store.Flights.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_, err = f.store.References.FindRoute(ctx, "CDG", "LHR")
	assert.ErrorIs(t, err, domain.ErrRouteNotFound, "no inverse route for a rejected request")
}

func TestCreateFlight_ReturnLegDuplicateWritesNothing(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	inverse := f.route.Inverse()
	require.NoError(t, f.store.References.CreateRoute(ctx, inverse))
	_, err := f.service.CreateFlight(ctx, FlightInput{
		FlightNumber:    "FB50",
		DepartureDay:    "Monday",
		DepartureTime:   "01:15",
		OperatingPeriod: testPeriod,
		RouteID:         inverse.ID,
	})
	require.NoError(t, err)

	in := f.input("FB1")
	in.ReturnFlight = true
	_, err = f.service.CreateFlight(ctx, in)
	assert.ErrorIs(t, err, domain.ErrDuplicateFlight)

	all, err := f.store.Flights.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "FB50", all[0].FlightNumber)
}

func TestCreateFlight_Validation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		mutate  func(*FlightInput)
		wantErr error
	}{
		{"missing number", func(in *FlightInput) { in.FlightNumber = " " }, domain.ErrInvalidInput},
		{"unknown weekday", func(in *FlightInput) { in.DepartureDay = "Funday" }, domain.ErrInvalidInput},
		{"bad departure", func(in *FlightInput) { in.DepartureTime = "25:00" }, domain.ErrInvalidTimeFormat},
		{"unknown route", func(in *FlightInput) { in.RouteID = 999 }, domain.ErrRouteNotFound},
		{"return without route", func(in *FlightInput) { in.RouteID = 0; in.ReturnFlight = true }, domain.ErrInvalidInput},
		{"no route, bad arrival", func(in *FlightInput) { in.RouteID = 0; in.ArrivalTime = "7pm" }, domain.ErrInvalidTimeFormat},
		{"negative seats", func(in *FlightInput) { in.TotalSeats = -1 }, domain.ErrInvalidInput},
		{"unknown status", func(in *FlightInput) { in.Status = "Boarding" }, domain.ErrInvalidInput},
		{"reversed period", func(in *FlightInput) {
			in.OperatingPeriod = domain.OperatingPeriod{StartDate: testPeriod.EndDate, EndDate: testPeriod.StartDate}
		}, domain.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input("FB1")
			tt.mutate(&in)
			_, err := f.service.CreateFlight(context.Background(), in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	all, err := f.store.Flights.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateAndUpdateFlight_RejectMalformedRouteDuration(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	broken := &domain.Route{DepartureAirport: "LHR", ArrivalAirport: "JFK", Duration: "7h30"}
	require.NoError(t, f.store.References.CreateRoute(ctx, broken))

	in := f.input("FB1")
	in.RouteID = broken.ID
	_, err := f.service.CreateFlight(ctx, in)
	require.ErrorIs(t, err, domain.ErrInvalidTimeFormat)
	assert.ErrorContains(t, err, "LHR-JFK")

	created, err := f.service.CreateFlight(ctx, f.input("FB2"))
	require.NoError(t, err)
	_, err = f.service.UpdateFlight(ctx, created[0].ID, FlightUpdate{RouteID: &broken.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeFormat)

	stored, err := f.service.GetByID(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "CDG", stored.Route.ArrivalAirport)
}

func TestSearch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.CreateFlight(ctx, f.input("FB1"))
	require.NoError(t, err)
	in := f.input("XY2")
	in.DepartureTime = "09:00"
	_, err = f.service.CreateFlight(ctx, in)
	require.NoError(t, err)

	found, err := f.service.Search(ctx, " Flight_Number ", "fb")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "FB1", found[0].FlightNumber)

	found, err = f.service.Search(ctx, "arrival_airport", "cdg")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	_, err = f.service.Search(ctx, "route", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.service.Search(ctx, "status", "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUpdateFlight(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.service.CreateFlight(ctx, f.input("FB1"))
	require.NoError(t, err)
	id := created[0].ID

	dep := "06:00"
	updated, err := f.service.UpdateFlight(ctx, id, FlightUpdate{DepartureTime: &dep})
	require.NoError(t, err)
	assert.Equal(t, "08:00", updated.ArrivalTime)
	assert.Nil(t, updated.CancelledAt)

	cancelled := domain.FlightStatusCancelled
	updated, err = f.service.UpdateFlight(ctx, id, FlightUpdate{Status: &cancelled})
	require.NoError(t, err)
	require.NotNil(t, updated.CancelledAt)
	assert.Equal(t, testNow, *updated.CancelledAt)

	f.now = testNow.Add(time.Hour)
	seats := 150
	updated, err = f.service.UpdateFlight(ctx, id, FlightUpdate{TotalSeats: &seats})
	require.NoError(t, err)
	assert.Equal(t, testNow, *updated.CancelledAt, "stays stamped with the first cancellation")

	scheduled := domain.FlightStatusScheduled
	updated, err = f.service.UpdateFlight(ctx, id, FlightUpdate{Status: &scheduled})
	require.NoError(t, err)
	assert.Nil(t, updated.CancelledAt)
	assert.Equal(t, 150, updated.TotalSeats)

	_, err = f.service.UpdateFlight(ctx, 999, FlightUpdate{Status: &scheduled})
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)

	badRoute := int64(42)
	_, err = f.service.UpdateFlight(ctx, id, FlightUpdate{RouteID: &badRoute})
	assert.ErrorIs(t, err, domain.ErrRouteNotFound)
}

func TestUpdateFlight_DuplicateSlot(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.service.CreateFlight(ctx, f.input("FB1"))
	require.NoError(t, err)
	in := f.input("FB2")
	in.DepartureTime = "07:00"
	created, err := f.service.CreateFlight(ctx, in)
	require.NoError(t, err)

	dep := "22:30"
	_, err = f.service.UpdateFlight(ctx, created[0].ID, FlightUpdate{DepartureTime: &dep})
	assert.ErrorIs(t, err, domain.ErrDuplicateFlight)

	same := "07:00"
	_, err = f.service.UpdateFlight(ctx, created[0].ID, FlightUpdate{DepartureTime: &same})
	assert.NoError(t, err, "a flight does not collide with itself")
}

func TestDeleteAndPurge(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.service.CreateFlight(ctx, f.input("FB1"))
	require.NoError(t, err)
	in := f.input("FB2")
	in.DepartureTime = "10:00"
	second, err := f.service.CreateFlight(ctx, in)
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, first[0].ID))
	assert.ErrorIs(t, f.service.Delete(ctx, first[0].ID), domain.ErrFlightNotFound)

	cancelled := domain.FlightStatusCancelled
	_, err = f.service.UpdateFlight(ctx, second[0].ID, FlightUpdate{Status: &cancelled})
	require.NoError(t, err)

	n, err := f.service.PurgeCancelled(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.now = testNow.Add(48 * time.Hour)
	n, err = f.service.PurgeCancelled(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = f.service.GetByID(ctx, second[0].ID)
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
}

func TestFlightService_Cache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	f := newFixture(t, cache.NewRedisCacheWithClient(client, time.Minute))
	ctx := context.Background()

	created, err := f.service.CreateFlight(ctx, f.input("FB1"))
	require.NoError(t, err)
	id := created[0].ID

	list, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, mr.Exists("cache:flights"))

	_, err = f.service.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, mr.Exists("cache:flight:1"))

	seats := 100
	_, err = f.service.UpdateFlight(ctx, id, FlightUpdate{TotalSeats: &seats})
	require.NoError(t, err)
	assert.False(t, mr.Exists("cache:flights"))
	assert.False(t, mr.Exists("cache:flight:1"))

	got, err := f.service.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 100, got.TotalSeats)
}

func TestList_RetriesStorageErrors(t *testing.T) {
	repo := new(MockFlightRepository)
	flights := []domain.Flight{{ID: 1, FlightNumber: "FB1"}}
	repo.On("List", mock.Anything).Return(nil, domain.ErrStorageUnavailable).Once()
	repo.On("List", mock.Anything).Return(flights, nil).Once()

	s := NewFlightService(repo, nil, nil, WithRetryPolicy(fastRetry()))
	got, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, flights, got)
	repo.AssertExpectations(t)
}

func TestPurgeCancelled_UsesRetentionCutoff(t *testing.T) {
	repo := new(MockFlightRepository)
	repo.On("PurgeCancelled", mock.Anything, testNow.Add(-72*time.Hour)).Return(int64(2), nil)

	s := NewFlightService(repo, nil, nil, WithClock(func() time.Time { return testNow }))
	n, err := s.PurgeCancelled(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	repo.AssertExpectations(t)
}
