package ginserver

import (
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"rentalhub/internal/app/commands"
	"rentalhub/internal/app/dto"
	bookingapp "rentalhub/internal/app/handlers/booking"
	"rentalhub/internal/app/queries"
	domainavailability "rentalhub/internal/domain/availability"
	domainbooking "rentalhub/internal/domain/booking"
	domainrange "rentalhub/internal/domain/shared/daterange"
)

type BookingHTTP interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	Transition(c *gin.Context)
	SetPaymentStatus(c *gin.Context)
}

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
	Logger   *slog.Logger
}

type createBookingRequest struct {
	ListingID string `json:"listing_id" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

func (h BookingHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}
	start, err := domainrange.ParseDay(req.StartDate)
	if err != nil {
		writeError(c, h.Logger, domainavailability.ErrInvalidRange)
		return
	}
	end, err := domainrange.ParseDay(req.EndDate)
	if err != nil {
		writeError(c, h.Logger, domainavailability.ErrInvalidRange)
		return
	}
	cmd := bookingapp.CreateBookingCommand{
		ListingID:       req.ListingID,
		RenterID:        actor,
		StartDate:       start,
		EndDate:         end,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.CreateBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	query := bookingapp.GetBookingQuery{BookingID: c.Param("id"), Actor: actor}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, query)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type transitionRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h BookingHandler) Transition(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}
	cmd := bookingapp.TransitionBookingCommand{
		BookingID: c.Param("id"),
		Actor:     actor,
		Target:    domainbooking.Status(req.Status),
	}
	result, err := commands.Dispatch[bookingapp.TransitionBookingCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type paymentRequest struct {
	PaymentStatus string `json:"payment_status" binding:"required"`
}

func (h BookingHandler) SetPaymentStatus(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody{Error: err.Error(), Code: "invalid_request"})
		return
	}
	cmd := bookingapp.SetPaymentStatusCommand{
		BookingID: c.Param("id"),
		Actor:     actor,
		Status:    domainbooking.PaymentStatus(req.PaymentStatus),
	}
	result, err := commands.Dispatch[bookingapp.SetPaymentStatusCommand, *dto.Booking](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ BookingHTTP = BookingHandler{}
