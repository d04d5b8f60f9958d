package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"carhire/internal/app/dto"
	"carhire/internal/app/handlers/quotes"
	"carhire/internal/app/handlers/support"
	domainfleet "carhire/internal/domain/fleet"
	domainpricing "carhire/internal/domain/pricing"
	"carhire/internal/domain/shared/daterange"
)

// Client talks to a pricing backend over REST. Every failure is reported as
// domainpricing.ErrLookupUnavailable so the engine can fall through.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		HTTP:    &http.Client{},
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		Logger:  logger,
	}
}

var errNotFound = errors.New("backend: not found")

// ExactPrice asks GET /pricing/exact.
func (c *Client) ExactPrice(ctx context.Context, q domainpricing.ExactQuery) (domainpricing.ExactPrice, error) {
	params := url.Values{}
	params.Set("car", q.CarID)
	params.Set("month", q.Month.String())
	params.Set("duration", strconv.Itoa(q.Duration))

	var resp dto.ExactPriceResponse
	if err := c.do(ctx, http.MethodGet, "/pricing/exact?"+params.Encode(), nil, &resp); err != nil {
		return domainpricing.ExactPrice{}, err
	}
	if !resp.Success || resp.Price == nil || *resp.Price <= 0 {
		return domainpricing.ExactPrice{}, domainpricing.ErrNoMatch
	}
	source := resp.Source
	if source == "" {
		source = "backend"
	}
	return domainpricing.ExactPrice{Price: *resp.Price, Source: source}, nil
}

// CalculatePrice asks POST /pricing/calculate.
func (c *Client) CalculatePrice(ctx context.Context, q domainpricing.CalculatedQuery) (domainpricing.CalculatedPrice, error) {
	body := quotes.CalculatePriceQuery{
		CarID:  q.CarID,
		Pickup: daterange.Format(q.Pickup),
		Return: daterange.Format(q.Return),
		Extras: q.Extras,
	}
	var resp dto.CalculatedPriceResponse
	if err := c.do(ctx, http.MethodPost, "/pricing/calculate", body, &resp); err != nil {
		return domainpricing.CalculatedPrice{}, err
	}
	if !resp.Success {
		return domainpricing.CalculatedPrice{}, domainpricing.ErrNoMatch
	}
	return domainpricing.CalculatedPrice{
		DailyRate:   resp.DailyRate,
		BasePrice:   resp.BasePrice,
		ExtrasTotal: resp.ExtrasTotal,
		TotalPrice:  resp.TotalPrice,
		Source:      "backend",
	}, nil
}

// PricingConfig asks GET /pricing/config.
func (c *Client) PricingConfig(ctx context.Context) (domainpricing.Config, error) {
	var cfg domainpricing.Config
	if err := c.do(ctx, http.MethodGet, "/pricing/config", nil, &cfg); err != nil {
		return domainpricing.Config{}, fmt.Errorf("%w: %w", domainpricing.ErrConfigUnavailable, err)
	}
	return cfg, nil
}

// Car reads one car from the availability snapshot.
func (c *Client) Car(ctx context.Context, id domainfleet.CarID) (*domainfleet.Car, error) {
	cars, err := c.snapshot(ctx, "/cars/availability?car="+url.QueryEscape(string(id)))
	if errors.Is(err, errNotFound) {
		return nil, domainfleet.ErrCarNotFound
	}
	if err != nil {
		return nil, err
	}
	for _, car := range cars {
		if car.ID == id {
			return car, nil
		}
	}
	return nil, domainfleet.ErrCarNotFound
}

// Cars reads the full availability snapshot.
func (c *Client) Cars(ctx context.Context) ([]*domainfleet.Car, error) {
	return c.snapshot(ctx, "/cars/availability")
}

func (c *Client) snapshot(ctx context.Context, path string) ([]*domainfleet.Car, error) {
	var raws []domainfleet.RawCar
	if err := c.do(ctx, http.MethodGet, path, nil, &raws); err != nil {
		return nil, err
	}
	cars := make([]*domainfleet.Car, 0, len(raws))
	for _, raw := range raws {
		car, _, err := domainfleet.Normalize(raw, c.Logger)
		if err != nil {
			c.warn("snapshot car skipped", err)
			continue
		}
		cars = append(cars, car)
	}
	return cars, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c == nil || c.BaseURL == "" {
		return fmt.Errorf("%w: backend not configured", domainpricing.ErrLookupUnavailable)
	}
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: %w", domainpricing.ErrLookupUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		c.warn("backend request failed", err, "path", path)
		return fmt.Errorf("%w: %w", domainpricing.ErrLookupUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", domainpricing.ErrLookupUnavailable, errNotFound)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: status %d: %s", domainpricing.ErrLookupUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
		c.warn("backend returned error", err, "path", path)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.warn("backend decode failed", err, "path", path)
		return fmt.Errorf("%w: decode: %w", domainpricing.ErrLookupUnavailable, err)
	}
	return nil
}

func (c *Client) warn(msg string, err error, attrs ...any) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warn(msg, append([]any{"error", err}, attrs...)...)
}

var (
	_ domainpricing.ExactLookup      = (*Client)(nil)
	_ domainpricing.CalculatedLookup = (*Client)(nil)
	_ domainpricing.ConfigSource     = (*Client)(nil)
	_ support.CarSource              = (*Client)(nil)
)
