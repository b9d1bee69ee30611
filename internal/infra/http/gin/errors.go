package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentalhub/internal/app/commands"
	bookingapp "rentalhub/internal/app/handlers/booking"
	meapp "rentalhub/internal/app/handlers/me"
	"rentalhub/internal/app/middleware"
	"rentalhub/internal/app/queries"
	"rentalhub/internal/app/uow"
	domainavailability "rentalhub/internal/domain/availability"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
	domainrange "rentalhub/internal/domain/shared/daterange"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps application errors to HTTP status and a stable code.
func statusFor(err error) (int, string) {
	var transition *domainbooking.TransitionError
	switch {
	case errors.Is(err, middleware.ErrUnauthenticated), errors.Is(err, meapp.ErrActorRequired):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domainbooking.ErrForbidden), errors.Is(err, domainbooking.ErrReservedActor):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domainbooking.ErrBookingNotFound), errors.Is(err, domainlistings.ErrListingNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domainavailability.ErrInvalidRange),
		errors.Is(err, domainrange.ErrInvalidRange), errors.Is(err, domainrange.ErrInvalidDate):
		return http.StatusBadRequest, "invalid_range"
	case errors.Is(err, domainbooking.ErrSelfBooking):
		return http.StatusUnprocessableEntity, "self_booking"
	case errors.As(err, &transition), errors.Is(err, domainbooking.ErrInvalidTransition):
		return http.StatusUnprocessableEntity, "invalid_transition"
	case errors.Is(err, domainavailability.ErrUnavailable):
		return http.StatusConflict, "unavailable"
	case errors.Is(err, domainbooking.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, middleware.ErrIdempotencyInFlight):
		return http.StatusConflict, "in_progress"
	case errors.Is(err, uow.ErrTemporarilyUnavailable), errors.Is(err, uow.ErrWriteConflict):
		return http.StatusServiceUnavailable, "temporarily_unavailable"
	case errors.Is(err, bookingapp.ErrListingRequired), errors.Is(err, bookingapp.ErrBookingIDRequired),
		errors.Is(err, meapp.ErrInvalidRole), errors.Is(err, meapp.ErrInvalidBucket):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, commands.ErrHandlerNotFound), errors.Is(err, queries.ErrHandlerNotFound):
		return http.StatusNotImplemented, "not_implemented"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "error", err, "request_id", c.GetString("request_id"))
		}
		msg = "internal error"
	} else if status == http.StatusServiceUnavailable {
		c.Header("Retry-After", "1")
		msg = "storage temporarily unavailable, retry"
	}
	c.JSON(status, errorBody{Error: msg, Code: code})
}
