package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"

	gin "github.com/gin-gonic/gin"

	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/quotes"
	"carhire/internal/app/queries"
	"carhire/internal/domain/pricing"
)

type PricingBackendHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h PricingBackendHandler) Exact(c *gin.Context) {
	duration, err := strconv.Atoi(c.Query("duration"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "duration must be an integer"})
		return
	}
	query := quotes.ExactPriceQuery{CarID: c.Query("car"), Month: c.Query("month"), Duration: duration}
	result, err := queries.Ask[quotes.ExactPriceQuery, dto.ExactPriceResponse](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PricingBackendHandler) Calculate(c *gin.Context) {
	var query quotes.CalculatePriceQuery
	if err := c.ShouldBindJSON(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := queries.Ask[quotes.CalculatePriceQuery, dto.CalculatedPriceResponse](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PricingBackendHandler) Config(c *gin.Context) {
	result, err := queries.Ask[quotes.PricingConfigQuery, pricing.Config](c.Request.Context(), h.Queries, quotes.PricingConfigQuery{})
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h PricingBackendHandler) Snapshot(c *gin.Context) {
	query := quotes.AvailabilitySnapshotQuery{CarID: c.Query("car")}
	result, err := queries.Ask[quotes.AvailabilitySnapshotQuery, []dto.AvailabilitySnapshot](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

var _ PricingBackendHTTP = PricingBackendHandler{}
