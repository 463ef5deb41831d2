package search

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/hawkaii/raahi-assistant/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestMergeDutiesLastWins(t *testing.T) {
	text := []Duty{
		{ID: "a", Type: "trip", PickupCity: "Delhi"},
		{ID: "b", Type: "trip", PickupCity: "Pune"},
		{Type: "trip"}, // no id: skipped
	}
	geo := []Duty{
		{ID: "a", Type: "trip", PickupCity: "Delhi", Pickup: &Location{Latitude: 28.6, Longitude: 77.2}},
		{ID: "c", Type: "trip", PickupCity: "Jaipur"},
	}

	merged := MergeDuties(text, geo)
	if len(merged) != 3 {
		t.Fatalf("expected 3 unique duties, got %d", len(merged))
	}
	if merged[0].ID != "a" || merged[1].ID != "b" || merged[2].ID != "c" {
		t.Fatalf("order not preserved: %+v", merged)
	}
	if merged[0].Pickup == nil {
		t.Fatal("geo occurrence must override the text occurrence")
	}
}

func TestCombineDutiesNewestFirst(t *testing.T) {
	trips := []Duty{{ID: "t1", CreatedAt: 100}, {ID: "t2", CreatedAt: 300}}
	leads := []Duty{{ID: "l1", CreatedAt: 200}}

	combined := CombineDuties(trips, leads)
	var ids []string
	for _, d := range combined {
		ids = append(ids, d.ID)
	}
	if !reflect.DeepEqual(ids, []string{"t2", "l1", "t1"}) {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestExtractCities(t *testing.T) {
	cities := ExtractCities("Delhi se Mumbai ka duty chahiye")
	if !reflect.DeepEqual(cities, []string{"Delhi", "Mumbai"}) {
		t.Fatalf("unexpected cities: %v", cities)
	}

	// Appearance order, dedupe, word boundaries.
	cities = ExtractCities("mumbai to delhi via mumbai, not mumbaikar")
	if !reflect.DeepEqual(cities, []string{"Mumbai", "Delhi"}) {
		t.Fatalf("unexpected cities: %v", cities)
	}

	if got := ExtractCities("koi shehar nahi"); got != nil {
		t.Fatalf("expected no cities, got %v", got)
	}
}

func newTestClient(t *testing.T, srvURL string) *Client {
	t.Helper()
	u, err := url.Parse(srvURL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	port, _ := strconv.Atoi(u.Port())
	return NewClient(config.SearchConfig{
		Host:               u.Hostname(),
		Port:               port,
		Protocol:           "http",
		APIKey:             "test-key",
		TripsCollection:    "trips",
		LeadsCollection:    "leads",
		StationsCollection: "fuel_stations",
		RadiusKM:           50,
		Limit:              50,
		TimeoutMS:          2000,
	})
}

func TestSearchTripsTextQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/collections/trips/documents/search") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("X-TYPESENSE-API-KEY"); got != "test-key" {
			t.Errorf("missing api key header, got %q", got)
		}
		if q := r.URL.Query().Get("q"); q != "Delhi Mumbai" {
			t.Errorf("unexpected query %q", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{
				{"document": map[string]any{
					"id":                                "trip-1",
					"customerPickupLocationCity":        "Delhi",
					"customerDropLocationCity":          "Mumbai",
					"customerPickupLocationCoordinates": []float64{28.6, 77.2},
					"status":                            "open",
					"createdAt":                         1700000000,
				}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	duties, err := newTestClient(t, srv.URL).SearchTrips(context.Background(), TripQuery{
		PickupCity: "Delhi",
		DropCity:   "Mumbai",
	})
	if err != nil {
		t.Fatalf("search trips: %v", err)
	}
	if len(duties) != 1 {
		t.Fatalf("expected 1 duty, got %d", len(duties))
	}
	d := duties[0]
	if d.ID != "trip-1" || d.Type != "trip" || d.PickupCity != "Delhi" || d.DropCity != "Mumbai" {
		t.Fatalf("unexpected duty: %+v", d)
	}
	if d.Pickup == nil || d.Pickup.Latitude != 28.6 {
		t.Fatalf("expected pickup coordinates: %+v", d.Pickup)
	}
}

func TestSearchTripsGeoQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("filter_by")
		if !strings.Contains(filter, "location:(") || !strings.Contains(filter, "km)") {
			t.Errorf("expected geo filter, got %q", filter)
		}
		json.NewEncoder(w).Encode(map[string]any{"hits": []map[string]any{}})
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(t, srv.URL).SearchTrips(context.Background(), TripQuery{
		Pickup: &Location{Latitude: 28.6, Longitude: 77.2},
	})
	if err != nil {
		t.Fatalf("geo search: %v", err)
	}
}

func TestSearchFuelStations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		filter := r.URL.Query().Get("filter_by")
		if !strings.Contains(filter, "type:=cng") {
			t.Errorf("expected fuel type filter, got %q", filter)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"hits": []map[string]any{
				{
					"document": map[string]any{
						"id":       "st-1",
						"name":     "IGL Station",
						"address":  "NH48",
						"type":     "cng",
						"location": []float64{28.5, 77.1},
					},
					"geo_distance_meters": map[string]float64{"location": 1234},
				},
			},
		})
	}))
	t.Cleanup(srv.Close)

	stations, err := newTestClient(t, srv.URL).SearchFuelStations(context.Background(),
		Location{Latitude: 28.6, Longitude: 77.2}, "cng")
	if err != nil {
		t.Fatalf("search stations: %v", err)
	}
	if len(stations) != 1 {
		t.Fatalf("expected 1 station, got %d", len(stations))
	}
	if stations[0].DistanceMeters != 1234 || stations[0].FuelType != "cng" {
		t.Fatalf("unexpected station: %+v", stations[0])
	}
}

func TestGeocoder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("address"); got != "Delhi" {
			t.Errorf("unexpected address %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "OK",
			"results": []map[string]any{
				{"geometry": map[string]any{"location": map[string]float64{"lat": 28.61, "lng": 77.21}}},
			},
		})
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGeocoder(config.GeocodeConfig{Endpoint: srv.URL, APIKey: "k", TimeoutMS: 2000}, testLogger())
	loc, err := g.CityCoordinates(context.Background(), "Delhi")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if loc == nil || loc.Latitude != 28.61 || loc.Longitude != 77.21 {
		t.Fatalf("unexpected location: %+v", loc)
	}
}

func TestGeocoderNoResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "ZERO_RESULTS"})
	}))
	t.Cleanup(srv.Close)

	g := NewHTTPGeocoder(config.GeocodeConfig{Endpoint: srv.URL, TimeoutMS: 2000}, testLogger())
	loc, err := g.CityCoordinates(context.Background(), "Atlantis")
	if err != nil || loc != nil {
		t.Fatalf("expected soft miss, got %v %v", loc, err)
	}
}
