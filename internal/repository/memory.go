package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

type seatKey struct {
	flightID int64
	day      string
	seat     string
}

type memoryTicket struct {
	ticket domain.Ticket
	synced bool
}

// memoryDB keeps every table behind one mutex, so seat checks and claim inserts of a
// booking happen in one critical section.
type memoryDB struct {
	mu  sync.Mutex
	loc *time.Location
	now func() time.Time

	flightSeq int64
	routeSeq  int64
	flights   map[int64]domain.Flight
	routes    map[int64]domain.Route
	airports  map[string]domain.Airport
	bookings  map[string]domain.Booking
	tickets   map[string]memoryTicket
	seats     map[seatKey]string
	company   *domain.CompanyInfo
}

// NewMemoryStore builds repositories over process memory, seeded with airports.
func NewMemoryStore(loc *time.Location, airports ...domain.Airport) *Store {
	db := &memoryDB{
		loc:      loc,
		now:      time.Now,
		flights:  make(map[int64]domain.Flight),
		routes:   make(map[int64]domain.Route),
		airports: make(map[string]domain.Airport),
		bookings: make(map[string]domain.Booking),
		tickets:  make(map[string]memoryTicket),
		seats:    make(map[seatKey]string),
	}
	for _, a := range airports {
		db.airports[a.Code] = a
	}
	return &Store{
		Flights:    (*memoryFlights)(db),
		References: (*memoryReferences)(db),
		Bookings:   (*memoryBookings)(db),
		Tickets:    (*memoryTickets)(db),
		Company:    (*memoryCompany)(db),
	}
}

func cloneFlight(f domain.Flight) domain.Flight {
	if f.Route != nil {
		r := *f.Route
		f.Route = &r
	}
	if f.CancelledAt != nil {
		at := *f.CancelledAt
		f.CancelledAt = &at
	}
	return f
}

func cloneBooking(b domain.Booking) domain.Booking {
	b.Tickets = append([]domain.Ticket(nil), b.Tickets...)
	return b
}

type memoryFlights memoryDB

func (m *memoryFlights) List(_ context.Context) ([]domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	flights := make([]domain.Flight, 0, len(m.flights))
	for _, f := range m.flights {
		flights = append(flights, cloneFlight(f))
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })
	return flights, nil
}

func (m *memoryFlights) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrFlightNotFound, id)
	}
	f = cloneFlight(f)
	return &f, nil
}

func (m *memoryFlights) duplicate(f *domain.Flight, excludeID int64) bool {
	if f.Route == nil {
		return false
	}
	for id, other := range m.flights {
		if id == excludeID || other.Route == nil {
			continue
		}
		if other.Route.DepartureAirport == f.Route.DepartureAirport &&
			other.Route.ArrivalAirport == f.Route.ArrivalAirport &&
			other.DepartureTime == f.DepartureTime &&
			other.DepartureDay == f.DepartureDay {
			return true
		}
	}
	return false
}

func (m *memoryFlights) Create(_ context.Context, flights ...*domain.Flight) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, f := range flights {
		if m.duplicate(f, 0) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateFlight, f.FlightNumber)
		}
		for _, prev := range flights[:i] {
			if prev.Route != nil && f.Route != nil &&
				prev.Route.DepartureAirport == f.Route.DepartureAirport &&
				prev.Route.ArrivalAirport == f.Route.ArrivalAirport &&
				prev.DepartureTime == f.DepartureTime && prev.DepartureDay == f.DepartureDay {
				return fmt.Errorf("%w: %s", domain.ErrDuplicateFlight, f.FlightNumber)
			}
		}
	}

	now := m.now()
	for _, f := range flights {
		m.flightSeq++
		f.ID = m.flightSeq
		f.CreatedAt, f.UpdatedAt = now, now
		m.flights[f.ID] = cloneFlight(*f)
	}
	return nil
}

func (m *memoryFlights) Update(_ context.Context, f *domain.Flight) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.flights[f.ID]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrFlightNotFound, f.ID)
	}
	if m.duplicate(f, f.ID) {
		return fmt.Errorf("%w: %s", domain.ErrDuplicateFlight, f.FlightNumber)
	}
	f.CreatedAt = current.CreatedAt
	f.UpdatedAt = m.now()
	m.flights[f.ID] = cloneFlight(*f)
	return nil
}

func (m *memoryFlights) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.flights[id]; !ok {
		return fmt.Errorf("%w: %d", domain.ErrFlightNotFound, id)
	}
	delete(m.flights, id)
	return nil
}

func (m *memoryFlights) FindDuplicate(_ context.Context, route domain.RouteSnapshot, departureTime, departureDay string, excludeID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	probe := &domain.Flight{Route: &route, DepartureTime: departureTime, DepartureDay: departureDay}
	return m.duplicate(probe, excludeID), nil
}

func (m *memoryFlights) PurgeCancelled(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for id, f := range m.flights {
		if f.Status == domain.FlightStatusCancelled && f.CancelledAt != nil && f.CancelledAt.Before(before) {
			delete(m.flights, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryFlights) Search(_ context.Context, field, value string) ([]domain.Flight, error) {
	if !slices.Contains(domain.SearchFields, field) {
		return nil, fmt.Errorf("%w: cannot search by %q", domain.ErrInvalidInput, field)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	needle := strings.ToLower(value)
	flights := make([]domain.Flight, 0)
	for _, f := range m.flights {
		got, _ := f.SearchValue(field)
		if strings.Contains(strings.ToLower(got), needle) {
			flights = append(flights, cloneFlight(f))
		}
	}
	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })
	return flights, nil
}

type memoryReferences memoryDB

func (m *memoryReferences) GetRoute(_ context.Context, id int64) (*domain.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.routes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", domain.ErrRouteNotFound, id)
	}
	return &r, nil
}

func (m *memoryReferences) findRoute(departure, arrival string) (domain.Route, bool) {
	for _, r := range m.routes {
		if r.DepartureAirport == departure && r.ArrivalAirport == arrival {
			return r, true
		}
	}
	return domain.Route{}, false
}

func (m *memoryReferences) FindRoute(_ context.Context, departure, arrival string) (*domain.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.findRoute(departure, arrival)
	if !ok {
		return nil, fmt.Errorf("%w: %s-%s", domain.ErrRouteNotFound, departure, arrival)
	}
	return &r, nil
}

func (m *memoryReferences) CreateRoute(_ context.Context, r *domain.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.findRoute(r.DepartureAirport, r.ArrivalAirport); ok {
		*r = existing
		return nil
	}
	for _, code := range []string{r.DepartureAirport, r.ArrivalAirport} {
		if _, ok := m.airports[code]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrAirportNotFound, code)
		}
	}
	m.routeSeq++
	r.ID = m.routeSeq
	m.routes[r.ID] = *r
	return nil
}

func (m *memoryReferences) AirportExists(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.airports[code]
	return ok, nil
}

type memoryBookings memoryDB

func (m *memoryBookings) Create(_ context.Context, b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.bookings[b.ID]; ok {
		return fmt.Errorf("%w: %s", domain.ErrBookingExists, b.ID)
	}

	var (
		taken  []string
		days   []string
		flight int64
	)
	for _, g := range groupClaims(b.Claims(m.loc)) {
		var groupTaken []string
		for _, seat := range g.seats {
			if _, held := m.seats[seatKey{g.flightID, g.day, seat}]; held {
				groupTaken = append(groupTaken, seat)
			}
		}
		if len(groupTaken) > 0 {
			taken = append(taken, groupTaken...)
			days = append(days, g.day)
			flight = g.flightID
		}
	}
	if len(taken) > 0 {
		day := ""
		if len(days) == 1 {
			day = days[0]
		}
		return domain.NewSeatConflict(flight, day, taken)
	}

	now := m.now()
	b.CreatedAt, b.UpdatedAt = now, now
	m.bookings[b.ID] = cloneBooking(*b)
	for _, t := range b.Tickets {
		m.tickets[t.ID] = memoryTicket{ticket: t, synced: true}
		m.seats[seatKey{t.FlightID, domain.DayKey(t.DepartureDate, m.loc), t.SeatLabel}] = b.ID
	}
	return nil
}

func (m *memoryBookings) GetByID(_ context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	b = cloneBooking(b)
	return &b, nil
}

func (m *memoryBookings) filter(keep func(domain.Booking) bool) []domain.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()

	bookings := make([]domain.Booking, 0)
	for _, b := range m.bookings {
		if keep(b) {
			bookings = append(bookings, cloneBooking(b))
		}
	}
	sort.Slice(bookings, func(i, j int) bool {
		if !bookings[i].BookingDate.Equal(bookings[j].BookingDate) {
			return bookings[i].BookingDate.After(bookings[j].BookingDate)
		}
		return bookings[i].ID < bookings[j].ID
	})
	return bookings
}

func (m *memoryBookings) List(_ context.Context) ([]domain.Booking, error) {
	return m.filter(func(domain.Booking) bool { return true }), nil
}

func (m *memoryBookings) ListByUser(_ context.Context, userID string) ([]domain.Booking, error) {
	return m.filter(func(b domain.Booking) bool { return b.UserID == userID }), nil
}

func (m *memoryBookings) Cancel(_ context.Context, id string, at time.Time) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrBookingNotFound, id)
	}
	if b.Active() {
		b.Status = domain.BookingStatusCancelled
		b.CancelledAt = &at
		b.UpdatedAt = m.now()
		m.bookings[id] = b
		for key, owner := range m.seats {
			if owner == id {
				delete(m.seats, key)
			}
		}
	}
	b = cloneBooking(b)
	return &b, nil
}

func (m *memoryBookings) BookedSeats(_ context.Context, flightID int64, day string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seats := make([]string, 0)
	for key := range m.seats {
		if key.flightID == flightID && key.day == day {
			seats = append(seats, key.seat)
		}
	}
	sort.Strings(seats)
	return seats, nil
}

func (m *memoryBookings) SyncTicketCheckIn(_ context.Context, t *domain.Ticket) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[t.BookingID]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrBookingNotFound, t.BookingID)
	}
	b = cloneBooking(b)
	if !replaceCheckIn(b.Tickets, t) {
		return fmt.Errorf("%w: %s in booking %s", domain.ErrTicketNotFound, t.ID, t.BookingID)
	}
	b.UpdatedAt = m.now()
	m.bookings[b.ID] = b
	if mt, ok := m.tickets[t.ID]; ok {
		mt.synced = true
		m.tickets[t.ID] = mt
	}
	return nil
}

type memoryTickets memoryDB

func (m *memoryTickets) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, id)
	}
	t := mt.ticket
	return &t, nil
}

func (m *memoryTickets) CheckIn(_ context.Context, id string, ci domain.CheckIn) (*domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mt, ok := m.tickets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrTicketNotFound, id)
	}
	if mt.ticket.CheckIn.CheckedIn {
		return nil, fmt.Errorf("%w: %s", domain.ErrAlreadyCheckedIn, id)
	}
	ci.CheckedIn = true
	mt.ticket.CheckIn = ci
	mt.synced = false
	m.tickets[id] = mt

	t := mt.ticket
	return &t, nil
}

func (m *memoryTickets) ListUnsyncedCheckIns(_ context.Context, limit int) ([]domain.Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tickets := make([]domain.Ticket, 0)
	for _, mt := range m.tickets {
		if mt.ticket.CheckIn.CheckedIn && !mt.synced {
			tickets = append(tickets, mt.ticket)
		}
	}
	sort.Slice(tickets, func(i, j int) bool {
		a, b := tickets[i].CheckIn.CheckedInAt, tickets[j].CheckIn.CheckedInAt
		if a != nil && b != nil && !a.Equal(*b) {
			return a.Before(*b)
		}
		return tickets[i].ID < tickets[j].ID
	})
	if limit > 0 && len(tickets) > limit {
		tickets = tickets[:limit]
	}
	return tickets, nil
}

var (
	_ FlightRepository    = (*memoryFlights)(nil)
	_ ReferenceRepository = (*memoryReferences)(nil)
	_ BookingRepository   = (*memoryBookings)(nil)
	_ TicketRepository    = (*memoryTickets)(nil)
	_ CompanyRepository   = (*memoryCompany)(nil)
)

type memoryCompany memoryDB

func (m *memoryCompany) Get(_ context.Context) (*domain.CompanyInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.company == nil {
		return nil, domain.ErrCompanyNotFound
	}
	c := *m.company
	return &c, nil
}

func (m *memoryCompany) Save(_ context.Context, info *domain.CompanyInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info.UpdatedAt = m.now()
	c := *info
	m.company = &c
	return nil
}
