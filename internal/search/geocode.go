package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hawkaii/raahi-assistant/internal/config"
)

// HTTPGeocoder resolves city names through a Maps-style geocoding endpoint.
type HTTPGeocoder struct {
	endpoint   string
	apiKey     string
	log        *slog.Logger
	httpClient *http.Client
}

func NewHTTPGeocoder(cfg config.GeocodeConfig, log *slog.Logger) *HTTPGeocoder {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGeocoder{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		log:        log.With(slog.String("component", "geocoder")),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// CityCoordinates geocodes a city name. An unresolvable city yields
// (nil, nil): geo search is an enhancement, not a requirement.
func (g *HTTPGeocoder) CityCoordinates(ctx context.Context, city string) (*Location, error) {
	if city == "" {
		return nil, nil
	}
	params := url.Values{}
	params.Set("address", city)
	params.Set("key", g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", city, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geocode %q returned status %s", city, resp.Status)
	}

	var decoded geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode geocode response: %w", err)
	}
	if decoded.Status != "OK" || len(decoded.Results) == 0 {
		g.log.Debug("geocoding yielded no result", slog.String("city", city), slog.String("status", decoded.Status))
		return nil, nil
	}
	loc := decoded.Results[0].Geometry.Location
	return &Location{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}
