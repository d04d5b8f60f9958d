package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/quotes"
	"carhire/internal/app/queries"
	"carhire/internal/domain/pricing"
)

type CarHandler struct {
	Queries queries.Bus
	Logger  *slog.Logger
}

func (h CarHandler) List(c *gin.Context) {
	query := quotes.ListCarsQuery{Category: c.Query("category")}
	result, err := queries.Ask[quotes.ListCarsQuery, dto.CarCollection](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CarHandler) Get(c *gin.Context) {
	query := quotes.GetCarQuery{CarID: c.Param("id")}
	result, err := queries.Ask[quotes.GetCarQuery, dto.Car](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CarHandler) Availability(c *gin.Context) {
	query := quotes.CarAvailabilityQuery{
		CarID:  c.Param("id"),
		Pickup: c.Query("pickup"),
		Return: c.Query("return"),
	}
	result, err := queries.Ask[quotes.CarAvailabilityQuery, dto.Availability](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h CarHandler) Search(c *gin.Context) {
	query := quotes.SearchCarsQuery{
		Pickup:   c.Query("pickup"),
		Return:   c.Query("return"),
		Category: c.Query("category"),
		Extras:   extrasFromQuery(c),
	}
	result, err := queries.Ask[quotes.SearchCarsQuery, dto.SearchResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type quoteRequest struct {
	CarID  string         `json:"car_id" binding:"required"`
	Pickup string         `json:"pickup" binding:"required"`
	Return string         `json:"return" binding:"required"`
	Extras pricing.Extras `json:"extras"`
}

func (h CarHandler) Quote(c *gin.Context) {
	var req quoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	query := quotes.QuoteCarQuery{CarID: req.CarID, Pickup: req.Pickup, Return: req.Return, Extras: req.Extras}
	result, err := queries.Ask[quotes.QuoteCarQuery, dto.QuoteResult](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondError(c, h.Logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// extrasFromQuery reads extras flags given either in catalog naming
// (childSeat=true) or snake_case (child_seat=1).
func extrasFromQuery(c *gin.Context) pricing.Extras {
	flag := func(names ...string) bool {
		for _, name := range names {
			if v, ok := c.GetQuery(name); ok {
				return parseFlag(v)
			}
		}
		return false
	}
	return pricing.Extras{
		AdditionalDriver: flag(pricing.ExtraAdditionalDriver, "additional_driver"),
		FullInsurance:    flag(pricing.ExtraFullInsurance, "full_insurance"),
		GPSNavigation:    flag(pricing.ExtraGPSNavigation, "gps_navigation"),
		ChildSeat:        flag(pricing.ExtraChildSeat, "child_seat"),
	}
}

func parseFlag(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return true
	}
	switch strings.ToLower(raw) {
	case "on", "yes", "y":
		return true
	}
	v, err := strconv.ParseBool(raw)
	return err == nil && v
}

var _ CarHTTP = CarHandler{}
