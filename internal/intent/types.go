// Package intent is the gateway to the external intent-classification and
// response-generation engine.
package intent

import "context"

// Intent tags the kind of request the driver made.
type Intent string

const (
	IntentEntry               Intent = "entry"
	IntentGetDuties           Intent = "get_duties"
	IntentCNGPumps            Intent = "cng_pumps"
	IntentPetrolPumps         Intent = "petrol_pumps"
	IntentParking             Intent = "parking"
	IntentProfileVerification Intent = "profile_verification"
	IntentGeneric             Intent = "generic"
	IntentEnd                 Intent = "end"
)

// UIAction tells the client which screen or affordance to present.
type UIAction string

const (
	UIActionEntry                     UIAction = "entry"
	UIActionShowDutiesList            UIAction = "show_duties_list"
	UIActionShowCNGStations           UIAction = "show_cng_stations"
	UIActionShowPetrolStations        UIAction = "show_petrol_stations"
	UIActionShowParking               UIAction = "show_parking"
	UIActionShowVerificationChecklist UIAction = "show_verification_checklist"
	UIActionShowMap                   UIAction = "show_map"
	UIActionShowEnd                   UIAction = "show_end"
	UIActionNone                      UIAction = "none"
)

// Request carries everything the engine needs to classify one utterance.
type Request struct {
	Text        string
	SessionID   string
	Language    string
	DriverName  string
	VehicleType string
	Latitude    float64
	Longitude   float64
}

// Result is the engine's verdict: what the driver wants, what the client
// should show, and the text to speak back.
type Result struct {
	Intent       Intent
	UIAction     UIAction
	ResponseText string
	Params       map[string]string
}

// Classifier is a pluggable intent engine backend.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Result, error)
}
