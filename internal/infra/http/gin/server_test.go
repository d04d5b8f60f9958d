package ginserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	bookingsapp "carhire/internal/app/handlers/bookings"
	fleetapp "carhire/internal/app/handlers/fleet"
	"carhire/internal/app/handlers/quotes"
	"carhire/internal/app/handlers/support"
	"carhire/internal/app/middleware"
	"carhire/internal/app/queries"
	"carhire/internal/domain/availability"
	"carhire/internal/domain/booking"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
	"carhire/internal/infra/backend"
	"carhire/internal/infra/obs"
	"carhire/internal/infra/security"
	"carhire/internal/infra/storage/memory"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const adminSecret = "letmein"

type harness struct {
	cmds    *commands.InMemoryBus
	queries *queries.InMemoryBus
	router  *gin.Engine
}

func newHarness(t *testing.T) harness {
	t.Helper()
	hasher := security.BcryptHasher{Cost: bcrypt.MinCost}
	hash, err := hasher.Hash(adminSecret)
	require.NoError(t, err)

	cmds := commands.NewInMemoryBus()
	qs := queries.NewInMemoryBus()
	router := NewRouter(nil, obs.Middleware{}, obs.HealthHandlers{}, Handlers{
		Cars:       CarHandler{Queries: qs},
		Bookings:   BookingHandler{Commands: cmds, Queries: qs},
		Backend:    PricingBackendHandler{Queries: qs},
		Admin:      AdminHandler{Commands: cmds, Queries: qs, MaxPhotoBytes: 1024},
		AdminGuard: AdminGuard{Key: security.AdminKey{Hash: hash, Hasher: hasher}}.Handle,
	})
	return harness{cmds: cmds, queries: qs, router: router}
}

func (h harness) do(method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fleet.ErrCarNotFound, http.StatusNotFound},
		{fmt.Errorf("lookup: %w", booking.ErrBookingNotFound), http.StatusNotFound},
		{bookingsapp.ErrCarUnavailable, http.StatusConflict},
		{booking.ErrInvalidTransition, http.StatusConflict},
		{middleware.ErrIdempotencyConflict, http.StatusConflict},
		{fmt.Errorf("%w: email", middleware.ErrValidation), http.StatusBadRequest},
		{daterange.ErrInvalidRange, http.StatusBadRequest},
		{bookingsapp.ErrPickupInPast, http.StatusBadRequest},
		{pricing.ErrInvalidConfig, http.StatusBadRequest},
		{pricing.ErrConfigUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestHealthEndpoints(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/livez", nil, nil).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/readyz", nil, nil).Code)
}

func TestGetCarNotFound(t *testing.T) {
	h := newHarness(t)
	queries.RegisterHandler[quotes.GetCarQuery, dto.Car](h.queries, quotes.GetCarQuery{}.Key(),
		queries.HandlerFunc[quotes.GetCarQuery, dto.Car](func(_ context.Context, q quotes.GetCarQuery) (dto.Car, error) {
			assert.Equal(t, "ghost", q.CarID)
			return dto.Car{}, fleet.ErrCarNotFound
		}))

	rec := h.do(http.MethodGet, "/api/v1/cars/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "car not found")
}

func TestSearchReadsExtrasFlags(t *testing.T) {
	h := newHarness(t)
	var got quotes.SearchCarsQuery
	queries.RegisterHandler[quotes.SearchCarsQuery, dto.SearchResult](h.queries, quotes.SearchCarsQuery{}.Key(),
		queries.HandlerFunc[quotes.SearchCarsQuery, dto.SearchResult](func(_ context.Context, q quotes.SearchCarsQuery) (dto.SearchResult, error) {
			got = q
			return dto.SearchResult{Pickup: q.Pickup, Return: q.Return}, nil
		}))

	rec := h.do(http.MethodGet, "/api/v1/cars/search?pickup=2024-06-01&return=2024-06-05&child_seat=1&gpsNavigation=true&fullInsurance=false", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2024-06-01", got.Pickup)
	assert.Equal(t, pricing.Extras{ChildSeat: true, GPSNavigation: true}, got.Extras)
}

func TestCreateBooking(t *testing.T) {
	h := newHarness(t)
	var got bookingsapp.CreateBookingCommand
	commands.RegisterHandler[bookingsapp.CreateBookingCommand, *dto.Booking](h.cmds, bookingsapp.CreateBookingCommand{}.Key(),
		commands.HandlerFunc[bookingsapp.CreateBookingCommand, *dto.Booking](func(_ context.Context, cmd bookingsapp.CreateBookingCommand) (*dto.Booking, error) {
			got = cmd
			if cmd.CarID == "taken" {
				return nil, bookingsapp.ErrCarUnavailable
			}
			return &dto.Booking{ID: "b1", Reference: "CR-1", Status: "pending"}, nil
		}))

	body := `{"car_id":"c1","pickup_date":"2024-06-01","return_date":"2024-06-03","customer":{"first_name":"Ada","last_name":"L","email":"ada@example.com"},"extras":{"childSeat":true}}`
	rec := h.do(http.MethodPost, "/api/v1/bookings", strings.NewReader(body), map[string]string{"Idempotency-Key": "k-1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "k-1", got.IdemKey)
	assert.Equal(t, "ada@example.com", got.Customer.Email)
	assert.True(t, got.Extras.ChildSeat)

	var out dto.Booking
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "CR-1", out.Reference)

	rec = h.do(http.MethodPost, "/api/v1/bookings", strings.NewReader(strings.Replace(body, "c1", "taken", 1)), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/api/v1/bookings", strings.NewReader(`{"car_id":`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminRoutesRequireKey(t *testing.T) {
	h := newHarness(t)
	queries.RegisterHandler[bookingsapp.ListBookingsQuery, dto.BookingCollection](h.queries, bookingsapp.ListBookingsQuery{}.Key(),
		queries.HandlerFunc[bookingsapp.ListBookingsQuery, dto.BookingCollection](func(_ context.Context, q bookingsapp.ListBookingsQuery) (dto.BookingCollection, error) {
			assert.Equal(t, "pending", q.Status)
			return dto.BookingCollection{}, nil
		}))

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/admin/bookings?status=pending", nil, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/v1/admin/bookings?status=pending", nil, map[string]string{adminKeyHeader: "nope"}).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/v1/admin/bookings?status=pending", nil, map[string]string{adminKeyHeader: adminSecret}).Code)
}

func TestAdminDisabledWithoutGuard(t *testing.T) {
	router := NewRouter(nil, obs.Middleware{}, obs.HealthHandlers{}, Handlers{Admin: AdminHandler{}})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/bookings", nil)
	req.Header.Set(adminKeyHeader, adminSecret)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminUpdateBookingStatus(t *testing.T) {
	h := newHarness(t)
	commands.RegisterHandler[bookingsapp.UpdateBookingStatusCommand, *dto.Booking](h.cmds, bookingsapp.UpdateBookingStatusCommand{}.Key(),
		commands.HandlerFunc[bookingsapp.UpdateBookingStatusCommand, *dto.Booking](func(_ context.Context, cmd bookingsapp.UpdateBookingStatusCommand) (*dto.Booking, error) {
			assert.Equal(t, "b1", cmd.BookingID)
			if cmd.Status == "completed" {
				return nil, booking.ErrInvalidTransition
			}
			return &dto.Booking{ID: cmd.BookingID, Status: cmd.Status}, nil
		}))
	key := map[string]string{adminKeyHeader: adminSecret}

	rec := h.do(http.MethodPatch, "/api/v1/admin/bookings/b1/status", strings.NewReader(`{"status":"confirmed"}`), key)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"confirmed"`)

	rec = h.do(http.MethodPatch, "/api/v1/admin/bookings/b1/status", strings.NewReader(`{"status":"completed"}`), key)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminUploadPhoto(t *testing.T) {
	h := newHarness(t)
	var got []byte
	commands.RegisterHandler[fleetapp.UploadPhotoCommand, *dto.Car](h.cmds, fleetapp.UploadPhotoCommand{}.Key(),
		commands.HandlerFunc[fleetapp.UploadPhotoCommand, *dto.Car](func(_ context.Context, cmd fleetapp.UploadPhotoCommand) (*dto.Car, error) {
			assert.Equal(t, "c1", cmd.CarID)
			assert.Equal(t, "panda.jpg", cmd.Filename)
			data, err := io.ReadAll(cmd.Reader)
			require.NoError(t, err)
			got = data
			return &dto.Car{ID: cmd.CarID, PhotoURL: "http://cdn/cars/c1/x.jpg"}, nil
		}))

	upload := func(size int) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("photo", "panda.jpg")
		require.NoError(t, err)
		_, _ = part.Write(bytes.Repeat([]byte("x"), size))
		require.NoError(t, w.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/cars/c1/photo", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set(adminKeyHeader, adminSecret)
		rec := httptest.NewRecorder()
		h.router.ServeHTTP(rec, req)
		return rec
	}

	rec := upload(16)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, got, 16)

	assert.Equal(t, http.StatusRequestEntityTooLarge, upload(2048).Code)
}

func TestPricingBackendRoundTrip(t *testing.T) {
	repo := memory.NewCarRepository(
		&fleet.Car{ID: "c1", Name: "Panda", MonthlyPricing: map[time.Month]float64{time.June: 30}},
	)
	factory := memory.NewFactory(repo, pricing.DefaultConfig())
	require.NoError(t, factory.TableRepo.Upsert(context.Background(), []pricing.TableEntry{
		{CarID: "c1", Month: time.June, Duration: 3, Price: 80},
	}))
	cars := support.RepositoryCars{Factory: factory}
	engine := &pricing.Engine{Config: factory.ConfigRepo}

	qs := queries.NewInMemoryBus()
	queries.RegisterHandler[quotes.ExactPriceQuery, dto.ExactPriceResponse](qs, quotes.ExactPriceQuery{}.Key(),
		&quotes.ExactPriceHandler{Lookup: pricing.TableLookup{Table: factory.TableRepo}})
	queries.RegisterHandler[quotes.CalculatePriceQuery, dto.CalculatedPriceResponse](qs, quotes.CalculatePriceQuery{}.Key(),
		&quotes.CalculatePriceHandler{Cars: cars, Pricing: engine})
	queries.RegisterHandler[quotes.PricingConfigQuery, pricing.Config](qs, quotes.PricingConfigQuery{}.Key(),
		&quotes.PricingConfigHandler{Source: factory.ConfigRepo})
	queries.RegisterHandler[quotes.AvailabilitySnapshotQuery, []dto.AvailabilitySnapshot](qs, quotes.AvailabilitySnapshotQuery{}.Key(),
		&quotes.AvailabilitySnapshotHandler{Cars: cars})

	srv := httptest.NewServer(NewRouter(nil, obs.Middleware{}, obs.HealthHandlers{}, Handlers{Backend: PricingBackendHandler{Queries: qs}}))
	t.Cleanup(srv.Close)
	client := backend.NewClient(srv.URL+"/api/v1", time.Second, nil)
	ctx := context.Background()

	exact, err := client.ExactPrice(ctx, pricing.ExactQuery{CarID: "c1", Month: time.June, Duration: 3})
	require.NoError(t, err)
	assert.Equal(t, 80.0, exact.Price)

	_, err = client.ExactPrice(ctx, pricing.ExactQuery{CarID: "c1", Month: time.June, Duration: 4})
	assert.ErrorIs(t, err, pricing.ErrNoMatch)

	calculated, err := client.CalculatePrice(ctx, pricing.CalculatedQuery{
		CarID:  "c1",
		Pickup: time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC),
		Return: time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotNil(t, calculated.TotalPrice)
	assert.Equal(t, 60.0, *calculated.TotalPrice)

	cfg, err := client.PricingConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.85, cfg.Multiplier(9))
	assert.Equal(t, pricing.PerRental, cfg.Extras[pricing.ExtraChildSeat].Basis)

	car, err := client.Car(ctx, "c1")
	require.NoError(t, err)
	rate, ok := car.MonthlyRate(time.June)
	assert.True(t, ok)
	assert.Equal(t, 30.0, rate)

	_, err = client.Car(ctx, "ghost")
	assert.ErrorIs(t, err, fleet.ErrCarNotFound)

	checker := availability.NewChecker(nil)
	assert.True(t, checker.IsAvailable(car, time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, time.June, 3, 0, 0, 0, 0, time.UTC)))
}
