package intent

import (
	"context"
	"strings"
	"time"
)

type mockClassifier struct{}

// NewMockClassifier returns a keyword-based classifier for development and
// tests. It recognizes the common duty and fuel-station phrasings and falls
// back to a generic response.
func NewMockClassifier() Classifier { return &mockClassifier{} }

func (m *mockClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}

	text := strings.ToLower(req.Text)
	switch {
	case strings.Contains(text, "duty") || strings.Contains(text, "ड्यूटी"):
		return Result{
			Intent:       IntentGetDuties,
			UIAction:     UIActionShowDutiesList,
			ResponseText: "दिल्ली से मुंबई के लिए उपलब्ध ड्यूटी देख रहा हूं।",
			Params:       extractRoute(req.Text),
		}, nil
	case strings.Contains(text, "cng"):
		return Result{
			Intent:       IntentCNGPumps,
			UIAction:     UIActionShowCNGStations,
			ResponseText: "आपके पास के CNG स्टेशन ढूंढ रहा हूं।",
		}, nil
	case strings.Contains(text, "petrol") || strings.Contains(text, "diesel"):
		return Result{
			Intent:       IntentPetrolPumps,
			UIAction:     UIActionShowPetrolStations,
			ResponseText: "आपके पास के पेट्रोल पंप ढूंढ रहा हूं।",
		}, nil
	case strings.Contains(text, "verify") || strings.Contains(text, "verification"):
		return Result{
			Intent:       IntentProfileVerification,
			UIAction:     UIActionShowVerificationChecklist,
			ResponseText: "मैं आपको प्रोफाइल वेरिफिकेशन में मदद करता हूं।",
		}, nil
	default:
		return Result{
			Intent:       IntentGeneric,
			UIAction:     UIActionNone,
			ResponseText: "मैं आपकी कैसे मदद कर सकता हूं?",
		}, nil
	}
}

// extractRoute pulls "X se Y" style from/to cities when present.
func extractRoute(text string) map[string]string {
	words := strings.Fields(text)
	params := map[string]string{}
	for i, w := range words {
		if strings.EqualFold(w, "se") && i > 0 && i+1 < len(words) {
			params["from_city"] = titleCase(words[i-1])
			params["to_city"] = titleCase(words[i+1])
			break
		}
	}
	return params
}

func titleCase(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
