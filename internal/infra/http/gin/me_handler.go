package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentalhub/internal/app/dto"
	meapp "rentalhub/internal/app/handlers/me"
	"rentalhub/internal/app/queries"
	domainbooking "rentalhub/internal/domain/booking"
)

type MeHTTP interface {
	ListBookings(c *gin.Context)
}

type MeHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

// ListBookings serves "my rentals" (role=renter) and "rental requests"
// (role=owner), optionally narrowed to one bucket.
func (h MeHandler) ListBookings(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	query := meapp.ListBookingsQuery{
		Actor:  actor,
		Role:   domainbooking.Role(c.Query("role")),
		Bucket: c.Query("bucket"),
	}
	result, err := queries.Ask[meapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ MeHTTP = MeHandler{}
