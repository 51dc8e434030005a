package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type BookingHandler struct {
	service booking.BookingUseCase
	loc     *time.Location
	log     logrus.FieldLogger
}

type ticketRequest struct {
	FlightID      int64  `json:"flight_id"`
	DepartureDate string `json:"departure_date"`
	SeatNumber    string `json:"seat_number"`
	PassengerName string `json:"passenger_name"`
	Gender        string `json:"gender"`
	PriceCents    int64  `json:"price_cents"`
}

type createBookingRequest struct {
	Tickets         []ticketRequest `json:"tickets"`
	TotalPriceCents int64           `json:"total_price_cents"`
}

type checkInRequest struct {
	PassportNumber string `json:"passport_number"`
	DateOfBirth    string `json:"date_of_birth"`
	Nationality    string `json:"nationality"`
	ExpirationDate string `json:"expiration_date"`
}

type bookedSeatsResponse struct {
	FlightID    int64    `json:"flight_id"`
	Date        string   `json:"date"`
	BookedSeats []string `json:"booked_seats"`
}

func NewBookingHandler(service booking.BookingUseCase, loc *time.Location, log logrus.FieldLogger) *BookingHandler {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logging.Discard()
	}
	return &BookingHandler{service: service, loc: loc, log: log}
}

// Register mounts the booking, seat and check-in routes under router.
func (h *BookingHandler) Register(router *gin.RouterGroup, auth *Authenticator) {
	bookings := router.Group("/bookings", auth.RequireUser())
	bookings.POST("", h.create)
	bookings.GET("", auth.RequireAdmin(), h.list)
	bookings.GET("/user/:userId", h.listByUser)
	bookings.GET("/:id", h.get)
	bookings.DELETE("/:id", h.cancel)

	router.GET("/seats/:flightId/:date", h.availability)
	router.GET("/tickets/booked/:flightId/:date", h.bookedSeats)
	router.POST("/checkin/:ticketId", auth.RequireUser(), h.checkIn)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	input := booking.CreateBookingInput{
		Requester:       requesterFrom(c),
		Tickets:         make([]booking.TicketInput, 0, len(req.Tickets)),
		TotalPriceCents: req.TotalPriceCents,
	}
	for _, t := range req.Tickets {
		date, err := domain.ParseDate(t.DepartureDate, h.loc)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		input.Tickets = append(input.Tickets, booking.TicketInput{
			FlightID:      t.FlightID,
			DepartureDate: date,
			SeatLabel:     t.SeatNumber,
			PassengerName: t.PassengerName,
			Gender:        t.Gender,
			PriceCents:    t.PriceCents,
		})
	}

	b, err := h.service.CreateBooking(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

func (h *BookingHandler) list(c *gin.Context) {
	list, err := h.service.ListBookings(c.Request.Context(), requesterFrom(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) listByUser(c *gin.Context) {
	list, err := h.service.ListUserBookings(c.Request.Context(), requesterFrom(c), c.Param("userId"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *BookingHandler) get(c *gin.Context) {
	b, err := h.service.GetBooking(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) cancel(c *gin.Context) {
	b, err := h.service.CancelBooking(c.Request.Context(), requesterFrom(c), c.Param("id"))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (h *BookingHandler) flightAndDate(c *gin.Context) (int64, time.Time, bool) {
	flightID, err := strconv.ParseInt(c.Param("flightId"), 10, 64)
	if err != nil {
		badRequest(c, "invalid flight id")
		return 0, time.Time{}, false
	}
	date, err := domain.ParseDate(c.Param("date"), h.loc)
	if err != nil {
		writeError(c, h.log, err)
		return 0, time.Time{}, false
	}
	return flightID, date, true
}

func (h *BookingHandler) availability(c *gin.Context) {
	flightID, date, ok := h.flightAndDate(c)
	if !ok {
		return
	}
	a, err := h.service.Availability(c.Request.Context(), flightID, date)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *BookingHandler) bookedSeats(c *gin.Context) {
	flightID, date, ok := h.flightAndDate(c)
	if !ok {
		return
	}
	seats, err := h.service.BookedSeats(c.Request.Context(), flightID, date)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, bookedSeatsResponse{
		FlightID:    flightID,
		Date:        domain.DayKey(date, h.loc),
		BookedSeats: seats,
	})
}

func (h *BookingHandler) checkIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	input := booking.CheckInInput{PassportNumber: req.PassportNumber, Nationality: req.Nationality}
	for _, f := range []struct {
		raw string
		dst **time.Time
	}{
		{req.DateOfBirth, &input.DateOfBirth},
		{req.ExpirationDate, &input.ExpirationDate},
	} {
		if f.raw == "" {
			continue
		}
		t, err := domain.ParseDate(f.raw, h.loc)
		if err != nil {
			writeError(c, h.log, err)
			return
		}
		*f.dst = &t
	}

	ticket, err := h.service.CheckIn(c.Request.Context(), c.Param("ticketId"), input)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, ticket)
}
