package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string   `json:"error"`
	Seats []string `json:"seats,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrFlightNotFound),
		errors.Is(err, domain.ErrRouteNotFound),
		errors.Is(err, domain.ErrBookingNotFound),
		errors.Is(err, domain.ErrTicketNotFound),
		errors.Is(err, domain.ErrAirportNotFound),
		errors.Is(err, domain.ErrCompanyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrSeatsAlreadyBooked),
		errors.Is(err, domain.ErrDuplicateFlight),
		errors.Is(err, domain.ErrBookingExists),
		errors.Is(err, domain.ErrAlreadyCheckedIn):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrNoTicketsProvided),
		errors.Is(err, domain.ErrInvalidSeats),
		errors.Is(err, domain.ErrInvalidDateFormat),
		errors.Is(err, domain.ErrInvalidTimeFormat),
		errors.Is(err, domain.ErrFlightNotOperating),
		errors.Is(err, domain.ErrMixedFlights),
		errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError maps err onto its status code. Unclassified errors are logged and
// their message is not exposed.
func writeError(c *gin.Context, log logrus.FieldLogger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("Request failed")
		c.AbortWithStatusJSON(status, errorResponse{Error: "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error(), Seats: domain.SeatsOf(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
