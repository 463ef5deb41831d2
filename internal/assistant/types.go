// Package assistant coordinates one driver query end to end: classify the
// utterance, fetch supporting data, prepare speech audio through the cache,
// and shape the envelope the client renders.
package assistant

import (
	"github.com/hawkaii/raahi-assistant/internal/intent"
	"github.com/hawkaii/raahi-assistant/internal/search"
)

// DriverProfile is sent by the client with each request.
type DriverProfile struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Phone             string   `json:"phone,omitempty"`
	VehicleType       string   `json:"vehicle_type,omitempty"`
	VehicleNumber     string   `json:"vehicle_number,omitempty"`
	IsVerified        bool     `json:"is_verified,omitempty"`
	LicenseVerified   bool     `json:"license_verified,omitempty"`
	RCVerified        bool     `json:"rc_verified,omitempty"`
	InsuranceVerified bool     `json:"insurance_verified,omitempty"`
	DocumentsPending  []string `json:"documents_pending,omitempty"`
}

// QueryRequest is one driver utterance plus the context needed to answer it.
type QueryRequest struct {
	Text              string           `json:"text"`
	DriverProfile     DriverProfile    `json:"driver_profile"`
	CurrentLocation   *search.Location `json:"current_location,omitempty"`
	SessionID         string           `json:"session_id,omitempty"`
	PreferredLanguage string           `json:"preferred_language,omitempty"`
	// InteractionCount present (or empty text) marks the entry state: the
	// client just opened the assistant and expects a greeting.
	InteractionCount *int `json:"interaction_count,omitempty"`
}

// Envelope is the structured metadata for one assistant turn. It is built
// once per request and immutable after construction.
type Envelope struct {
	SessionID    string          `json:"session_id"`
	Success      bool            `json:"success"`
	Intent       intent.Intent   `json:"intent"`
	UIAction     intent.UIAction `json:"ui_action"`
	ResponseText string          `json:"response_text"`
	Data         any             `json:"data,omitempty"`
	AudioCached  bool            `json:"audio_cached"`
	CacheKey     string          `json:"cache_key,omitempty"`
	AudioURL     string          `json:"audio_url,omitempty"`
}

// DutyQuery echoes back how the duty search was interpreted.
type DutyQuery struct {
	PickupCity string `json:"pickup_city,omitempty"`
	DropCity   string `json:"drop_city,omitempty"`
	UsedGeo    bool   `json:"used_geo"`
}

// DutyCounts summarizes a duty search result set.
type DutyCounts struct {
	Trips int `json:"trips"`
	Leads int `json:"leads"`
	Total int `json:"total"`
}

// DutyData is the payload for a duty search turn.
type DutyData struct {
	Duties    []search.Duty `json:"duties"`
	CityNames []string      `json:"city_names,omitempty"`
	Query     DutyQuery     `json:"query"`
	Counts    DutyCounts    `json:"counts"`
}

// StationData is the payload for a fuel-station or parking turn.
type StationData struct {
	Stations []search.FuelStation `json:"stations"`
}

// ChecklistItem is one document in the verification checklist.
type ChecklistItem struct {
	Item     string `json:"item"`
	Verified bool   `json:"verified"`
}

// VerificationData is the payload for a profile-verification turn.
type VerificationData struct {
	IsVerified       bool            `json:"is_verified"`
	Checklist        []ChecklistItem `json:"checklist"`
	PendingDocuments []string        `json:"pending_documents,omitempty"`
}
