package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentalhub/internal/app/dto"
	availabilityapp "rentalhub/internal/app/handlers/availability"
	"rentalhub/internal/app/queries"
	domainavailability "rentalhub/internal/domain/availability"
	domainrange "rentalhub/internal/domain/shared/daterange"
)

type ListingHTTP interface {
	Calendar(c *gin.Context)
	Quote(c *gin.Context)
}

type ListingHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h ListingHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{ListingID: c.Param("id")}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h ListingHandler) Quote(c *gin.Context) {
	dr, err := domainrange.Parse(c.Query("start"), c.Query("end"))
	if err != nil {
		writeError(c, h.Logger, domainavailability.ErrInvalidRange)
		return
	}
	query := availabilityapp.QuoteQuery{ListingID: c.Param("id"), Start: dr.Start, End: dr.End}
	result, err := queries.Ask[availabilityapp.QuoteQuery, dto.Quote](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ ListingHTTP = ListingHandler{}
