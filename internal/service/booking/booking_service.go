package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/metrics"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/retry"
	"github.com/Domenick1991/flightbooking/internal/seatlayout"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error)
	GetBooking(ctx context.Context, who domain.Requester, id string) (*domain.Booking, error)
	ListBookings(ctx context.Context, who domain.Requester) ([]domain.Booking, error)
	ListUserBookings(ctx context.Context, who domain.Requester, userID string) ([]domain.Booking, error)
	CancelBooking(ctx context.Context, who domain.Requester, id string) (*domain.Booking, error)
	Availability(ctx context.Context, flightID int64, date time.Time) (*Availability, error)
	BookedSeats(ctx context.Context, flightID int64, date time.Time) ([]string, error)
	CheckIn(ctx context.Context, ticketID string, input CheckInInput) (*domain.Ticket, error)
	ReconcileCheckIns(ctx context.Context, limit int) (int, error)
}

// FlightReader resolves flights. The flight service satisfies it with cached reads.
type FlightReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
}

type Producer interface {
	PublishWithRetry(ctx context.Context, topic, key string, value any, maxRetries int) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	tickets            repository.TicketRepository
	flights            FlightReader
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	publishAttempts    int
	log                logrus.FieldLogger
	metrics            *metrics.Metrics
	retry              retry.Policy
	loc                *time.Location
	now                func() time.Time
}

type TicketInput struct {
	FlightID      int64     `json:"flight_id"`
	DepartureDate time.Time `json:"departure_date"`
	SeatLabel     string    `json:"seat_number"`
	PassengerName string    `json:"passenger_name"`
	Gender        string    `json:"gender"`
	PriceCents    int64     `json:"price_cents"`
}

type CreateBookingInput struct {
	Requester       domain.Requester
	Tickets         []TicketInput
	TotalPriceCents int64
}

type CheckInInput struct {
	PassportNumber string     `json:"passport_number"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Nationality    string     `json:"nationality"`
	ExpirationDate *time.Time `json:"expiration_date"`
}

type Availability struct {
	FlightID       int64    `json:"flight_id"`
	Date           string   `json:"date"`
	TotalSeats     int      `json:"total_seats"`
	BookedSeats    []string `json:"booked_seats"`
	AvailableSeats []string `json:"available_seats"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

// WithPublishAttempts bounds how often an event is offered to the producer.
func WithPublishAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		s.publishAttempts = n
	}
}

func WithLogger(log logrus.FieldLogger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
	}
}

func WithMetrics(m *metrics.Metrics) BookingServiceOption {
	return func(s *BookingService) {
		s.metrics = m
	}
}

func WithRetryPolicy(p retry.Policy) BookingServiceOption {
	return func(s *BookingService) {
		s.retry = p
	}
}

// WithLocation sets the zone in which departure dates are reduced to calendar days.
func WithLocation(loc *time.Location) BookingServiceOption {
	return func(s *BookingService) {
		s.loc = loc
	}
}

func WithClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	tickets repository.TicketRepository,
	flights FlightReader,
	producer Producer,
	bookingTopic string,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:        bookings,
		tickets:         tickets,
		flights:         flights,
		producer:        producer,
		bookingTopic:    bookingTopic,
		publishAttempts: 3,
		log:             logging.Discard(),
		retry:           retry.DefaultPolicy(),
		loc:             time.UTC,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*domain.Booking, error) {
	if len(input.Tickets) == 0 {
		s.metrics.BookingRejected("no_tickets")
		return nil, domain.ErrNoTicketsProvided
	}

	flight, err := s.operatingFlight(ctx, input.Tickets)
	if err != nil {
		s.metrics.BookingRejected(rejectionReason(err))
		return nil, err
	}

	layout, err := seatlayout.New(flight.TotalSeats)
	if err != nil {
		return nil, fmt.Errorf("%w: flight %d: %v", domain.ErrInvalidInput, flight.ID, err)
	}
	if bad := s.invalidSeats(layout, input.Tickets); len(bad) > 0 {
		s.metrics.BookingRejected("invalid_seats")
		return nil, domain.NewInvalidSeats(flight.ID, bad)
	}

	booking := s.newBooking(input)
	if err := s.store(ctx, booking); err != nil {
		s.metrics.BookingRejected(rejectionReason(err))
		if errors.Is(err, domain.ErrSeatsAlreadyBooked) {
			s.log.WithFields(logrus.Fields{"flight_id": flight.ID, "seats": domain.SeatsOf(err)}).Info("Seats already booked")
		}
		return nil, err
	}

	s.metrics.BookingCreated()
	s.log.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"user_id":    booking.UserID,
		"flight_id":  flight.ID,
		"seats":      booking.SeatLabels(),
	}).Info("Booking created")
	s.publish(ctx, kafka.EventBookingCreated, booking)
	return booking, nil
}

// store writes the booking, retrying on storage outages. A retry that finds the
// booking already present means an earlier attempt committed without the
// acknowledgement reaching us, so the stored booking is returned instead.
func (s *BookingService) store(ctx context.Context, booking *domain.Booking) error {
	attempt := 0
	return s.retry.Do(ctx, func() error {
		attempt++
		err := s.bookings.Create(ctx, booking)
		if err == nil || attempt == 1 {
			return err
		}
		if !errors.Is(err, domain.ErrBookingExists) && !errors.Is(err, domain.ErrSeatsAlreadyBooked) {
			return err
		}
		existing, gerr := s.bookings.GetByID(ctx, booking.ID)
		if gerr != nil {
			return err
		}
		s.log.WithField("booking_id", booking.ID).Info("Booking committed by an earlier attempt")
		*booking = *existing
		return nil
	})
}

// operatingFlight resolves the flight shared by every ticket and checks that it
// operates on each requested date.
func (s *BookingService) operatingFlight(ctx context.Context, tickets []TicketInput) (*domain.Flight, error) {
	flightID := tickets[0].FlightID
	flight, err := retry.Value(ctx, s.retry, func() (*domain.Flight, error) { return s.flights.GetByID(ctx, flightID) })
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		if t.FlightID != flight.ID {
			return nil, fmt.Errorf("%w: got %d and %d", domain.ErrMixedFlights, flight.ID, t.FlightID)
		}
		if err := s.checkOperates(flight, t.DepartureDate); err != nil {
			return nil, err
		}
	}
	return flight, nil
}

func (s *BookingService) checkOperates(flight *domain.Flight, date time.Time) error {
	if !flight.Operates(date, s.loc) {
		return fmt.Errorf("%w: flight %d on %s", domain.ErrFlightNotOperating, flight.ID, domain.DayKey(date, s.loc))
	}
	return nil
}

// invalidSeats validates labels per departure day, so a seat requested twice for
// the same day is reported while the same seat on two days is not.
func (s *BookingService) invalidSeats(layout *seatlayout.Layout, tickets []TicketInput) []string {
	var days, bad []string
	byDay := make(map[string][]string)
	marked := make(map[string]bool)
	for _, t := range tickets {
		day := domain.DayKey(t.DepartureDate, s.loc)
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], t.SeatLabel)
	}
	for _, day := range days {
		for _, label := range layout.Invalid(byDay[day]) {
			if !marked[label] {
				bad = append(bad, label)
				marked[label] = true
			}
		}
	}
	return bad
}

func (s *BookingService) newBooking(input CreateBookingInput) *domain.Booking {
	now := s.now()
	booking := &domain.Booking{
		ID:              uuid.NewString(),
		UserID:          input.Requester.UserID,
		Email:           input.Requester.Email,
		TotalPriceCents: input.TotalPriceCents,
		BookingDate:     now,
		NumberOfTickets: len(input.Tickets),
		Status:          domain.BookingStatusConfirmed,
		Tickets:         make([]domain.Ticket, 0, len(input.Tickets)),
	}
	var sum int64
	for _, t := range input.Tickets {
		booking.Tickets = append(booking.Tickets, domain.Ticket{
			ID:            uuid.NewString(),
			BookingID:     booking.ID,
			FlightID:      t.FlightID,
			DepartureDate: t.DepartureDate,
			SeatLabel:     t.SeatLabel,
			PassengerName: t.PassengerName,
			Gender:        t.Gender,
			PriceCents:    t.PriceCents,
		})
		sum += t.PriceCents
	}
	if booking.TotalPriceCents == 0 {
		booking.TotalPriceCents = sum
	}
	return booking
}

func (s *BookingService) GetBooking(ctx context.Context, who domain.Requester, id string) (*domain.Booking, error) {
	b, err := retry.Value(ctx, s.retry, func() (*domain.Booking, error) { return s.bookings.GetByID(ctx, id) })
	if err != nil {
		return nil, err
	}
	if !who.CanAccess(b.UserID) {
		return nil, fmt.Errorf("%w: booking %s", domain.ErrForbidden, id)
	}
	return b, nil
}

func (s *BookingService) ListBookings(ctx context.Context, who domain.Requester) ([]domain.Booking, error) {
	if !who.IsAdmin {
		return nil, fmt.Errorf("%w: admin only", domain.ErrForbidden)
	}
	return retry.Value(ctx, s.retry, func() ([]domain.Booking, error) { return s.bookings.List(ctx) })
}

func (s *BookingService) ListUserBookings(ctx context.Context, who domain.Requester, userID string) ([]domain.Booking, error) {
	if !who.CanAccess(userID) {
		return nil, fmt.Errorf("%w: bookings of %s", domain.ErrForbidden, userID)
	}
	return retry.Value(ctx, s.retry, func() ([]domain.Booking, error) { return s.bookings.ListByUser(ctx, userID) })
}

func (s *BookingService) CancelBooking(ctx context.Context, who domain.Requester, id string) (*domain.Booking, error) {
	current, err := s.GetBooking(ctx, who, id)
	if err != nil {
		return nil, err
	}
	if !current.Active() {
		return current, nil
	}

	at := s.now()
	updated, err := retry.Value(ctx, s.retry, func() (*domain.Booking, error) { return s.bookings.Cancel(ctx, id, at) })
	if err != nil {
		return nil, err
	}

	s.metrics.BookingCancelled()
	s.log.WithFields(logrus.Fields{"booking_id": id, "seats": updated.SeatLabels()}).Info("Booking cancelled")
	s.publish(ctx, kafka.EventBookingCancelled, updated)
	return updated, nil
}

func (s *BookingService) Availability(ctx context.Context, flightID int64, date time.Time) (*Availability, error) {
	flight, layout, booked, err := s.bookedSeats(ctx, flightID, date)
	if err != nil {
		return nil, err
	}
	return &Availability{
		FlightID:       flight.ID,
		Date:           domain.DayKey(date, s.loc),
		TotalSeats:     layout.Size(),
		BookedSeats:    booked,
		AvailableSeats: layout.Available(booked),
	}, nil
}

func (s *BookingService) BookedSeats(ctx context.Context, flightID int64, date time.Time) ([]string, error) {
	_, _, booked, err := s.bookedSeats(ctx, flightID, date)
	return booked, err
}

func (s *BookingService) bookedSeats(ctx context.Context, flightID int64, date time.Time) (*domain.Flight, *seatlayout.Layout, []string, error) {
	flight, err := retry.Value(ctx, s.retry, func() (*domain.Flight, error) { return s.flights.GetByID(ctx, flightID) })
	if err != nil {
		return nil, nil, nil, err
	}
	if err := s.checkOperates(flight, date); err != nil {
		return nil, nil, nil, err
	}
	layout, err := seatlayout.New(flight.TotalSeats)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: flight %d: %v", domain.ErrInvalidInput, flight.ID, err)
	}

	day := domain.DayKey(date, s.loc)
	booked, err := retry.Value(ctx, s.retry, func() ([]string, error) { return s.bookings.BookedSeats(ctx, flightID, day) })
	if err != nil {
		return nil, nil, nil, err
	}
	return flight, layout, layout.Ordered(booked), nil
}

func (s *BookingService) CheckIn(ctx context.Context, ticketID string, input CheckInInput) (*domain.Ticket, error) {
	now := s.now()
	record := domain.CheckIn{
		PassportNumber: input.PassportNumber,
		DateOfBirth:    input.DateOfBirth,
		Nationality:    input.Nationality,
		ExpirationDate: input.ExpirationDate,
		CheckedIn:      true,
		CheckedInAt:    &now,
	}

	ticket, err := retry.Value(ctx, s.retry, func() (*domain.Ticket, error) { return s.tickets.CheckIn(ctx, ticketID, record) })
	if err != nil {
		s.metrics.CheckIn(checkInOutcome(err))
		return nil, err
	}
	s.metrics.CheckIn("ok")

	entry := s.log.WithFields(logrus.Fields{"ticket_id": ticket.ID, "booking_id": ticket.BookingID})
	if err := s.retry.Do(ctx, func() error { return s.bookings.SyncTicketCheckIn(ctx, ticket) }); err != nil {
		entry.WithError(err).Warn("Check-in stored, booking copy left for reconciliation")
	} else {
		entry.Info("Ticket checked in")
	}

	s.publishTicket(ctx, ticket)
	return ticket, nil
}

// ReconcileCheckIns copies canonical check-in records into bookings whose embedded
// ticket copy missed the update. It returns how many tickets were synced.
func (s *BookingService) ReconcileCheckIns(ctx context.Context, limit int) (int, error) {
	pending, err := retry.Value(ctx, s.retry, func() ([]domain.Ticket, error) { return s.tickets.ListUnsyncedCheckIns(ctx, limit) })
	if err != nil {
		return 0, err
	}

	synced := 0
	for i := range pending {
		t := &pending[i]
		if err := s.retry.Do(ctx, func() error { return s.bookings.SyncTicketCheckIn(ctx, t) }); err != nil {
			s.log.WithError(err).WithField("ticket_id", t.ID).Warn("Reconcile check-in failed")
			continue
		}
		synced++
	}
	s.metrics.Reconciled(synced)
	if synced > 0 {
		s.log.WithField("tickets", synced).Info("Check-ins reconciled")
	}
	return synced, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	flightID := int64(0)
	if len(booking.Tickets) > 0 {
		flightID = booking.Tickets[0].FlightID
	}
	s.emit(ctx, booking.ID, kafka.BookingEvent{
		Type:       eventType,
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		Email:      booking.Email,
		FlightID:   flightID,
		Seats:      booking.SeatLabels(),
		Status:     string(booking.Status),
		OccurredAt: s.now(),
	})
}

func (s *BookingService) publishTicket(ctx context.Context, t *domain.Ticket) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:       kafka.EventTicketCheckedIn,
		BookingID:  t.BookingID,
		FlightID:   t.FlightID,
		Seats:      []string{t.SeatLabel},
		TicketID:   t.ID,
		Status:     string(domain.BookingStatusConfirmed),
		OccurredAt: s.now(),
	}
	if b, err := s.bookings.GetByID(ctx, t.BookingID); err == nil {
		event.UserID = b.UserID
		event.Email = b.Email
	}
	s.emit(ctx, t.BookingID, event)
}

// emit publishes to the booking topic and, when configured, the notifications topic.
// Failures are logged; the write they describe has already been committed.
func (s *BookingService) emit(ctx context.Context, key string, event kafka.BookingEvent) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	topics := []string{s.bookingTopic}
	if s.notificationsTopic != "" {
		topics = append(topics, s.notificationsTopic)
	}
	for _, topic := range topics {
		if err := s.producer.PublishWithRetry(ctx, topic, key, event, s.publishAttempts); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{"topic": topic, "type": event.Type, "key": key}).
				Warn("Failed to publish booking event")
		}
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrSeatsAlreadyBooked):
		return "seats_already_booked"
	case errors.Is(err, domain.ErrFlightNotFound):
		return "flight_not_found"
	case errors.Is(err, domain.ErrFlightNotOperating):
		return "flight_not_operating"
	case errors.Is(err, domain.ErrMixedFlights):
		return "mixed_flights"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage_unavailable"
	}
	return "other"
}

func checkInOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrAlreadyCheckedIn):
		return "already_checked_in"
	case errors.Is(err, domain.ErrTicketNotFound):
		return "not_found"
	}
	return "error"
}

var _ BookingUseCase = (*BookingService)(nil)
