package ginserver

import (
	"errors"
	"log/slog"
	"net/http"

	gin "github.com/gin-gonic/gin"

	bookingsapp "carhire/internal/app/handlers/bookings"
	fleetapp "carhire/internal/app/handlers/fleet"
	"carhire/internal/app/handlers/quotes"
	"carhire/internal/app/middleware"
	"carhire/internal/domain/booking"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
	"carhire/internal/domain/shared/money"
	"carhire/internal/infra/storage/s3"
)

var (
	notFoundErrors = []error{
		fleet.ErrCarNotFound,
		fleet.ErrBlockNotFound,
		booking.ErrBookingNotFound,
	}
	conflictErrors = []error{
		bookingsapp.ErrCarUnavailable,
		booking.ErrConcurrentUpdate,
		booking.ErrInvalidTransition,
		fleet.ErrConcurrentUpdate,
		middleware.ErrIdempotencyConflict,
	}
	badRequestErrors = []error{
		middleware.ErrValidation,
		daterange.ErrInvalidRange,
		daterange.ErrUnparseable,
		quotes.ErrDatesRequired,
		bookingsapp.ErrPickupInPast,
		booking.ErrCustomerRequired,
		booking.ErrInvalidEmail,
		booking.ErrInvalidStatus,
		booking.ErrInvalidPayment,
		booking.ErrInvalidTotal,
		fleet.ErrInvalidRate,
		fleet.ErrInvalidStatus,
		fleet.ErrCarIDRequired,
		fleet.ErrPhotoRequired,
		pricing.ErrInvalidRequest,
		pricing.ErrInvalidConfig,
		money.ErrInvalidCurrency,
		s3.ErrUnsupportedContentType,
	}
	unavailableErrors = []error{
		pricing.ErrConfigUnavailable,
		fleetapp.ErrPhotoStorageUnavailable,
	}
)

func statusFor(err error) int {
	switch {
	case isAny(err, notFoundErrors):
		return http.StatusNotFound
	case isAny(err, conflictErrors):
		return http.StatusConflict
	case isAny(err, badRequestErrors):
		return http.StatusBadRequest
	case isAny(err, unavailableErrors):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondError writes the mapped status. Internal failures are logged and
// their detail is not returned to the caller.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		if logger != nil {
			logger.Error("request failed", "path", c.FullPath(), "status", status, "error", err)
		}
		if status == http.StatusInternalServerError {
			c.JSON(status, gin.H{"error": "internal error"})
			return
		}
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
