// Package geocode resolves coordinates to a display address through a
// Google-compatible geocoding endpoint. Failures degrade to a placeholder
// address; location flows never block on the geocoder.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	coreconfig "github.com/MLokatsiun/tg-bot-volunteer/core/config"
	"github.com/MLokatsiun/tg-bot-volunteer/core/logger"
)

// AddressUnknown is returned when the geocoder has no answer. It is valid
// display text, so callers can use the result unconditionally.
const AddressUnknown = "Адреса не знайдена"

// Client queries the reverse-geocoding API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New builds a geocoder client. An empty base URL yields a disabled client
// whose lookups answer AddressUnknown immediately.
func New(cfg coreconfig.GeocoderConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: 5 * time.Second},
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
}

// ReverseGeocode returns the formatted address of the coordinates, or
// AddressUnknown when the service is disabled, unreachable, or has no match.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	if c.baseURL == "" {
		return AddressUnknown
	}

	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", lat, lon))
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return AddressUnknown
	}
	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn(ctx, "geo", "lookup.failed",
			slog.String("err", err.Error()),
		)
		return AddressUnknown
	}
	defer resp.Body.Close()

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return AddressUnknown
	}
	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		logger.Debug(ctx, "geo", "lookup.empty",
			slog.String("status", decoded.Status),
		)
		return AddressUnknown
	}
	return decoded.Results[0].FormattedAddress
}
