package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// remoteClassifier talks to an HTTP classification engine that accepts the
// utterance plus driver context and returns a structured verdict.
type remoteClassifier struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

type remoteRequest struct {
	Text        string  `json:"text"`
	SessionID   string  `json:"session_id,omitempty"`
	Language    string  `json:"language"`
	Model       string  `json:"model,omitempty"`
	DriverName  string  `json:"driver_name,omitempty"`
	VehicleType string  `json:"vehicle_type,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

type remoteResponse struct {
	Intent          string            `json:"intent"`
	UIAction        string            `json:"ui_action"`
	ResponseText    string            `json:"response_text"`
	ExtractedParams map[string]string `json:"extracted_params"`
}

func NewRemoteClassifier(endpoint, apiKey, model string, timeout time.Duration) Classifier {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &remoteClassifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: timeout},
	}
}

func (c *remoteClassifier) Classify(ctx context.Context, req Request) (Result, error) {
	body, err := json.Marshal(remoteRequest{
		Text:        req.Text,
		SessionID:   req.SessionID,
		Language:    req.Language,
		Model:       c.model,
		DriverName:  req.DriverName,
		VehicleType: req.VehicleType,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	})
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/classify", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("intent engine returned status %s", resp.Status)
	}

	var decoded remoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Result{}, fmt.Errorf("decode intent response: %w", err)
	}
	if decoded.Intent == "" || decoded.ResponseText == "" {
		return Result{}, fmt.Errorf("intent engine returned incomplete verdict")
	}

	result := Result{
		Intent:       Intent(decoded.Intent),
		UIAction:     UIAction(decoded.UIAction),
		ResponseText: decoded.ResponseText,
		Params:       decoded.ExtractedParams,
	}
	if result.UIAction == "" {
		result.UIAction = UIActionNone
	}
	return result, nil
}
