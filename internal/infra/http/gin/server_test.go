package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentalhub/internal/app/bootstrap"
	"rentalhub/internal/app/dto"
	"rentalhub/internal/app/middleware"
	"rentalhub/internal/app/notifications"
	"rentalhub/internal/app/outbox"
	"rentalhub/internal/app/uow"
	domainlistings "rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/money"
	"rentalhub/internal/infra/config"
	"rentalhub/internal/infra/obs"
	"rentalhub/internal/infra/storage/memory"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) Notify(_ context.Context, recipient, _, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, recipient+": "+text)
	return nil
}

type testAPI struct {
	router   http.Handler
	notifier *recordingNotifier
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	catalog := memory.NewListingCatalog()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:        "drill-1",
		Owner:     "owner-1",
		Title:     "Cordless drill",
		Price:     money.Must(1500, "USD"),
		PriceUnit: domainlistings.UnitDay,
	})
	require.NoError(t, err)
	require.NoError(t, catalog.Save(context.Background(), listing))

	notifier := &recordingNotifier{}
	dispatcher := &notifications.Dispatcher{Notifier: notifier}
	box := memory.NewOutbox(func(ctx context.Context, rec outbox.EventRecord) error {
		return dispatcher.DeliverRecord(ctx, rec)
	}, nil)

	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	buses := bootstrap.Wire(bootstrap.Deps{
		UoW:         memory.NewFactory(catalog, memory.NewBookingStore()),
		Outbox:      box,
		Idempotency: memory.NewIdempotencyStore(time.Hour),
		TxRetries:   2,
		Now:         func() time.Time { return now },
	})

	router := NewRouter(config.Config{Env: "test"}, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Booking: BookingHandler{Commands: buses.Commands, Queries: buses.Queries},
		Listing: ListingHandler{Queries: buses.Queries},
		Me:      MeHandler{Queries: buses.Queries},
	})
	return &testAPI{router: router, notifier: notifier}
}

func (a *testAPI) do(t *testing.T, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createBody(start, end string) map[string]string {
	return map[string]string{"listing_id": "drill-1", "start_date": start, "end_date": end}
}

func TestBookingLifecycleOverHTTP(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/bookings", "renter-1", createBody("2025-07-01", "2025-07-03"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[dto.Booking](t, rec)
	require.Equal(t, "pending", created.Status)
	require.Equal(t, "pending", created.PaymentStatus)
	require.Equal(t, int64(4500), created.Total.Amount)
	require.Equal(t, 3, created.Days)

	rec = api.do(t, http.MethodGet, "/api/v1/bookings/"+created.ID, "stranger", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/status", "renter-1", map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/bookings/"+created.ID+"/status", "owner-1", map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "accepted", decode[dto.Booking](t, rec).Status)

	rec = api.do(t, http.MethodPost, "/api/v1/bookings", "renter-2", createBody("2025-07-03", "2025-07-05"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "unavailable", decode[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodPut, "/api/v1/bookings/"+created.ID+"/payment", "owner-1", map[string]string{"payment_status": "paid"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "paid", decode[dto.Booking](t, rec).PaymentStatus)

	rec = api.do(t, http.MethodGet, "/api/v1/listings/drill-1/calendar", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cal := decode[dto.Calendar](t, rec)
	require.Len(t, cal.Blocks, 1)
	require.Equal(t, "2025-07-01", cal.Blocks[0].From)

	rec = api.do(t, http.MethodGet, "/api/v1/me/bookings?role=owner", "owner-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[dto.BookingCollection](t, rec)
	require.Len(t, list.Items, 1)
	require.Equal(t, 1, list.Counts.Active)

	api.notifier.mu.Lock()
	defer api.notifier.mu.Unlock()
	require.Len(t, api.notifier.sent, 3)
	require.Contains(t, api.notifier.sent[0], "owner-1: ")
	require.Contains(t, api.notifier.sent[1], "renter-1: ")
}

func TestCreateBookingRequiresIdentity(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/bookings", "", createBody("2025-07-01", "2025-07-03"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReservedIdentityIsRefused(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/bookings", "renter-1", createBody("2025-07-01", "2025-07-03"))
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[dto.Booking](t, rec).ID

	for _, user := range []string{"system", " SYSTEM "} {
		rec = api.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/status", user, map[string]string{"status": "cancelled"})
		require.Equal(t, http.StatusForbidden, rec.Code, user)
		require.Equal(t, "forbidden", decode[errorBody](t, rec).Code)

		rec = api.do(t, http.MethodPost, "/api/v1/bookings", user, createBody("2025-08-01", "2025-08-03"))
		require.Equal(t, http.StatusForbidden, rec.Code, user)
	}

	rec = api.do(t, http.MethodGet, "/api/v1/bookings/"+id, "renter-1", nil)
	require.Equal(t, "pending", decode[dto.Booking](t, rec).Status)
}

func TestCreateBookingRejectsInvalidRange(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodPost, "/api/v1/bookings", "renter-1", createBody("2025-07-05", "2025-07-01"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invalid_range", decode[errorBody](t, rec).Code)

	rec = api.do(t, http.MethodPost, "/api/v1/bookings", "renter-1", createBody("2025-02-30", "2025-03-01"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/v1/me/bookings", "renter-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[dto.BookingCollection](t, rec).Items)
}

func TestOwnerCannotBookOwnListing(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/bookings", "owner-1", createBody("2025-07-01", "2025-07-03"))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	require.Equal(t, "self_booking", decode[errorBody](t, rec).Code)
}

func TestIdempotencyKeyReplaysCreate(t *testing.T) {
	api := newTestAPI(t)
	first := api.do(t, http.MethodPost, "/api/v1/bookings", "renter-1", createBody("2025-07-01", "2025-07-03"), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, first.Code)
	second := api.do(t, http.MethodPost, "/api/v1/bookings", "renter-1", createBody("2025-07-01", "2025-07-03"), "Idempotency-Key", "k-1")
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, decode[dto.Booking](t, first).ID, decode[dto.Booking](t, second).ID)

	rec := api.do(t, http.MethodGet, "/api/v1/me/bookings", "renter-1", nil)
	require.Len(t, decode[dto.BookingCollection](t, rec).Items, 1)
}

func TestInvalidTransitionIsUnprocessable(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodPost, "/api/v1/bookings", "renter-1", createBody("2025-07-01", "2025-07-03"))
	id := decode[dto.Booking](t, rec).ID

	rec = api.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/status", "owner-1", map[string]string{"status": "returned"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/bookings/"+id+"/status", "owner-1", map[string]string{"status": "teleported"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUnknownBookingIsNotFound(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/v1/bookings/missing", "renter-1", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteReportsPriceAndAvailability(t *testing.T) {
	api := newTestAPI(t)
	rec := api.do(t, http.MethodGet, "/api/v1/listings/drill-1/quote?start=2025-07-01&end=2025-07-07", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	quote := decode[dto.Quote](t, rec)
	require.True(t, quote.Available)
	require.Equal(t, 7, quote.Days)
	require.Equal(t, int64(10500), quote.Total.Amount)

	rec = api.do(t, http.MethodGet, "/api/v1/listings/drill-1/quote?start=2025-07-07&end=2025-07-01", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSwaggerDocumentRevalidates(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/swagger/doc.json", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Contains(t, doc, "paths")

	rec = api.do(t, http.MethodGet, "/swagger/doc.json", "", nil, "If-None-Match", etag)
	require.Equal(t, http.StatusNotModified, rec.Code)
	require.Empty(t, rec.Body.Bytes())

	rec = api.do(t, http.MethodGet, "/swagger", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `url: "/swagger/doc.json"`)
}

func TestStatusForWriteConflictExhaustion(t *testing.T) {
	status, code := statusFor(errors.Join(uow.ErrTemporarilyUnavailable, uow.ErrWriteConflict))
	require.Equal(t, http.StatusServiceUnavailable, status)
	require.Equal(t, "temporarily_unavailable", code)
}

func TestStatusForDuplicateStillRunning(t *testing.T) {
	status, code := statusFor(middleware.ErrIdempotencyInFlight)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, "in_progress", code)
}
