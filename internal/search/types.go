// Package search is the gateway to the geo/text search backend holding trips,
// leads, and fuel stations.
package search

import "context"

// Location is a GPS coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Duty is the normalized form a driver sees: either a posted trip or a lead,
// flattened into one shape and sorted newest-first.
type Duty struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"` // trip or lead
	PickupCity string    `json:"pickup_city,omitempty"`
	DropCity   string    `json:"drop_city,omitempty"`
	PickupText string    `json:"pickup_text,omitempty"`
	DropText   string    `json:"drop_text,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  int64     `json:"created_at"`
	Pickup     *Location `json:"pickup_coordinates,omitempty"`
	Drop       *Location `json:"drop_coordinates,omitempty"`
}

// FuelStation is one ranked geo-search hit.
type FuelStation struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Address        string  `json:"address"`
	FuelType       string  `json:"fuel_type"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	DistanceMeters float64 `json:"distance_meters"`
}

// TripQuery selects trips or leads either by city text or by pickup
// proximity; both can be combined by the caller and merged.
type TripQuery struct {
	PickupCity string
	DropCity   string
	// Pickup, when set, switches to a geo radius search.
	Pickup   *Location
	RadiusKM float64
	Limit    int
}

// Searcher is the search backend contract.
type Searcher interface {
	SearchTrips(ctx context.Context, q TripQuery) ([]Duty, error)
	SearchLeads(ctx context.Context, q TripQuery) ([]Duty, error)
	SearchFuelStations(ctx context.Context, near Location, fuelType string) ([]FuelStation, error)
}

// Geocoder resolves a city name to coordinates. A nil location with nil error
// means the city could not be resolved; callers skip geo search then.
type Geocoder interface {
	CityCoordinates(ctx context.Context, city string) (*Location, error)
}
