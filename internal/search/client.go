package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hawkaii/raahi-assistant/internal/config"
)

// Client queries a Typesense-style search service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	trips      string
	leads      string
	stations   string
	radiusKM   float64
	limit      int
	httpClient *http.Client
}

func NewClient(cfg config.SearchConfig) *Client {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    fmt.Sprintf("%s://%s:%d", cfg.Protocol, cfg.Host, cfg.Port),
		apiKey:     cfg.APIKey,
		trips:      cfg.TripsCollection,
		leads:      cfg.LeadsCollection,
		stations:   cfg.StationsCollection,
		radiusKM:   cfg.RadiusKM,
		limit:      cfg.Limit,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type searchHit struct {
	Document       json.RawMessage    `json:"document"`
	GeoDistance    map[string]float64 `json:"geo_distance_meters"`
	TextMatchScore int64              `json:"text_match"`
}

type searchResult struct {
	Hits []searchHit `json:"hits"`
}

func (c *Client) search(ctx context.Context, collection string, params url.Values) (*searchResult, error) {
	endpoint := fmt.Sprintf("%s/collections/%s/documents/search?%s", c.baseURL, collection, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-TYPESENSE-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search %s returned status %s", collection, resp.Status)
	}

	var result searchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &result, nil
}

func (c *Client) tripParams(q TripQuery, queryBy string) url.Values {
	limit := q.Limit
	if limit <= 0 {
		limit = c.limit
	}
	params := url.Values{}
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("query_by", queryBy)

	if q.Pickup != nil {
		radius := q.RadiusKM
		if radius <= 0 {
			radius = c.radiusKM
		}
		params.Set("q", "*")
		params.Set("filter_by", fmt.Sprintf("location:(%f, %f, %f km)", q.Pickup.Latitude, q.Pickup.Longitude, radius))
		params.Set("sort_by", fmt.Sprintf("location(%f, %f):asc", q.Pickup.Latitude, q.Pickup.Longitude))
		return params
	}

	var parts []string
	if q.PickupCity != "" {
		parts = append(parts, q.PickupCity)
	}
	if q.DropCity != "" {
		parts = append(parts, q.DropCity)
	}
	query := "*"
	if len(parts) > 0 {
		query = strings.Join(parts, " ")
	}
	params.Set("q", query)
	params.Set("sort_by", "createdAt:desc")
	return params
}

type tripDocument struct {
	ID         string    `json:"id"`
	PickupCity string    `json:"customerPickupLocationCity"`
	DropCity   string    `json:"customerDropLocationCity"`
	Pickup     []float64 `json:"customerPickupLocationCoordinates"`
	Drop       []float64 `json:"customerDropLocationCoordinates"`
	Status     string    `json:"status"`
	CreatedAt  int64     `json:"createdAt"`
}

func (c *Client) SearchTrips(ctx context.Context, q TripQuery) ([]Duty, error) {
	result, err := c.search(ctx, c.trips, c.tripParams(q, "customerPickupLocationCity,customerDropLocationCity"))
	if err != nil {
		return nil, err
	}
	duties := make([]Duty, 0, len(result.Hits))
	for _, hit := range result.Hits {
		var doc tripDocument
		if err := json.Unmarshal(hit.Document, &doc); err != nil {
			continue
		}
		duties = append(duties, Duty{
			ID:         doc.ID,
			Type:       "trip",
			PickupCity: doc.PickupCity,
			DropCity:   doc.DropCity,
			Status:     doc.Status,
			CreatedAt:  doc.CreatedAt,
			Pickup:     coordinates(doc.Pickup),
			Drop:       coordinates(doc.Drop),
		})
	}
	return duties, nil
}

type leadDocument struct {
	ID   string `json:"id"`
	From struct {
		City string `json:"city"`
	} `json:"from"`
	To struct {
		City string `json:"city"`
	} `json:"to"`
	FromText  string    `json:"fromTxt"`
	ToText    string    `json:"toTxt"`
	Location  []float64 `json:"location"`
	Status    string    `json:"status"`
	CreatedAt int64     `json:"createdAt"`
}

func (c *Client) SearchLeads(ctx context.Context, q TripQuery) ([]Duty, error) {
	result, err := c.search(ctx, c.leads, c.tripParams(q, "fromTxt,toTxt"))
	if err != nil {
		return nil, err
	}
	duties := make([]Duty, 0, len(result.Hits))
	for _, hit := range result.Hits {
		var doc leadDocument
		if err := json.Unmarshal(hit.Document, &doc); err != nil {
			continue
		}
		duties = append(duties, Duty{
			ID:         doc.ID,
			Type:       "lead",
			PickupCity: doc.From.City,
			DropCity:   doc.To.City,
			PickupText: doc.FromText,
			DropText:   doc.ToText,
			Status:     doc.Status,
			CreatedAt:  doc.CreatedAt,
			Pickup:     coordinates(doc.Location),
		})
	}
	return duties, nil
}

type stationDocument struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Type     string    `json:"type"`
	Location []float64 `json:"location"`
}

func (c *Client) SearchFuelStations(ctx context.Context, near Location, fuelType string) ([]FuelStation, error) {
	params := url.Values{}
	params.Set("q", "*")
	params.Set("query_by", "name,address")
	params.Set("filter_by", fmt.Sprintf("location:(%f, %f, %f km) && type:=%s", near.Latitude, near.Longitude, c.radiusKM, fuelType))
	params.Set("sort_by", fmt.Sprintf("location(%f, %f):asc", near.Latitude, near.Longitude))
	params.Set("per_page", strconv.Itoa(c.limit))

	result, err := c.search(ctx, c.stations, params)
	if err != nil {
		return nil, err
	}
	stations := make([]FuelStation, 0, len(result.Hits))
	for _, hit := range result.Hits {
		var doc stationDocument
		if err := json.Unmarshal(hit.Document, &doc); err != nil {
			continue
		}
		station := FuelStation{
			ID:             doc.ID,
			Name:           doc.Name,
			Address:        doc.Address,
			FuelType:       doc.Type,
			DistanceMeters: hit.GeoDistance["location"],
		}
		if loc := coordinates(doc.Location); loc != nil {
			station.Latitude = loc.Latitude
			station.Longitude = loc.Longitude
		}
		stations = append(stations, station)
	}
	return stations, nil
}

func coordinates(pair []float64) *Location {
	if len(pair) != 2 {
		return nil
	}
	return &Location{Latitude: pair[0], Longitude: pair[1]}
}
