package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"carhire/internal/app/commands"
	"carhire/internal/app/dto"
	bookingsapp "carhire/internal/app/handlers/bookings"
	fleetapp "carhire/internal/app/handlers/fleet"
	"carhire/internal/app/queries"
	"carhire/internal/domain/pricing"
)

const defaultMaxPhotoBytes = 10 << 20

type AdminHandler struct {
	Commands      commands.Bus
	Queries       queries.Bus
	Logger        *slog.Logger
	MaxPhotoBytes int64
}

func (h AdminHandler) ListBookings(c *gin.Context) {
	query := bookingsapp.ListBookingsQuery{Status: c.Query("status"), CarID: c.Query("car_id")}
	result, err := queries.Ask[bookingsapp.ListBookingsQuery, dto.BookingCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AdminHandler) UpdateBookingStatus(c *gin.Context) {
	var cmd bookingsapp.UpdateBookingStatusCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.BookingID = c.Param("id")
	dispatchCommand[bookingsapp.UpdateBookingStatusCommand, *dto.Booking](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) DeleteBooking(c *gin.Context) {
	cmd := bookingsapp.DeleteBookingCommand{BookingID: c.Param("id")}
	dispatchCommand[bookingsapp.DeleteBookingCommand, *dto.BookingDeleted](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) UpdateMonthlyPricing(c *gin.Context) {
	var cmd fleetapp.UpdateMonthlyPricingCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.CarID = c.Param("id")
	dispatchCommand[fleetapp.UpdateMonthlyPricingCommand, *dto.Car](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) SetCarStatus(c *gin.Context) {
	var cmd fleetapp.SetManualStatusCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.CarID = c.Param("id")
	dispatchCommand[fleetapp.SetManualStatusCommand, *dto.Car](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) AddBlock(c *gin.Context) {
	var cmd fleetapp.AddBlockCommand
	if !bindJSON(c, &cmd) {
		return
	}
	cmd.CarID = c.Param("id")
	dispatchCommand[fleetapp.AddBlockCommand, *dto.DateRange](c, h, cmd, http.StatusCreated)
}

func (h AdminHandler) RemoveBlock(c *gin.Context) {
	cmd := fleetapp.RemoveBlockCommand{CarID: c.Param("id"), BlockID: c.Param("blockId")}
	dispatchCommand[fleetapp.RemoveBlockCommand, *dto.Car](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) UploadPhoto(c *gin.Context) {
	limit := h.MaxPhotoBytes
	if limit <= 0 {
		limit = defaultMaxPhotoBytes
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)
	header, err := c.FormFile("photo")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	if header.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "photo too large"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	cmd := fleetapp.UploadPhotoCommand{
		CarID:       c.Param("id"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Reader:      file,
	}
	dispatchCommand[fleetapp.UploadPhotoCommand, *dto.Car](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) UpdatePricingConfig(c *gin.Context) {
	var cfg pricing.Config
	if !bindJSON(c, &cfg) {
		return
	}
	cmd := fleetapp.UpdatePricingConfigCommand{Config: cfg}
	dispatchCommand[fleetapp.UpdatePricingConfigCommand, *pricing.Config](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) UpsertPriceTable(c *gin.Context) {
	var cmd fleetapp.UpsertPriceTableCommand
	if !bindJSON(c, &cmd) {
		return
	}
	dispatchCommand[fleetapp.UpsertPriceTableCommand, *dto.PriceTableResult](c, h, cmd, http.StatusOK)
}

func (h AdminHandler) InvalidatePriceCache(c *gin.Context) {
	var cmd fleetapp.InvalidatePriceCacheCommand
	if c.Request.ContentLength > 0 {
		if !bindJSON(c, &cmd) {
			return
		}
	}
	if carID := c.Query("car_id"); carID != "" {
		cmd.CarID = carID
	}
	dispatchCommand[fleetapp.InvalidatePriceCacheCommand, *dto.CacheInvalidated](c, h, cmd, http.StatusOK)
}

func dispatchCommand[C commands.Command, R any](c *gin.Context, h AdminHandler, cmd C, status int) {
	if h.Commands == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "commands unavailable"})
		return
	}
	result, err := commands.Dispatch[C, R](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(status, result)
}

func bindJSON(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

var _ AdminHTTP = AdminHandler{}
