package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Submitter delivers one report to the submission endpoint. A nil error
// means the endpoint accepted the report. A *PermanentError means the
// endpoint refused it and retrying is pointless; any other error is
// treated as transient.
type Submitter interface {
	Submit(ctx context.Context, r Report) error
}

// HTTPSubmitter posts reports as JSON to the incident endpoint.
type HTTPSubmitter struct {
	endpoint  string
	client    *http.Client
	authToken string
}

// NewHTTPSubmitter creates a submitter for the given incident endpoint,
// e.g. "http://localhost:3001/api/incidents". authToken may be empty.
func NewHTTPSubmitter(endpoint, authToken string) *HTTPSubmitter {
	return &HTTPSubmitter{
		endpoint:  endpoint,
		client:    &http.Client{},
		authToken: authToken,
	}
}

// submitPayload is the wire shape of a report. Local bookkeeping fields
// (seq, queuedAt) stay on the device.
type submitPayload struct {
	Category     string  `json:"category"`
	Description  string  `json:"description"`
	Severity     string  `json:"severity,omitempty"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	ReporterID   string  `json:"reporterId,omitempty"`
	IsQuickAlert bool    `json:"isQuickAlert,omitempty"`
}

func (s *HTTPSubmitter) Submit(ctx context.Context, r Report) error {
	body, err := json.Marshal(submitPayload{
		Category:     r.Category,
		Description:  r.Description,
		Severity:     r.Severity,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		ReporterID:   r.ReporterID,
		IsQuickAlert: r.IsQuickAlert,
	})
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return &PermanentError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay: submit failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &PermanentError{Status: resp.StatusCode, Message: responseMessage(resp.Body)}
	default:
		return fmt.Errorf("relay: endpoint returned status %d", resp.StatusCode)
	}
}

// responseMessage pulls the error message out of the API envelope, if any.
func responseMessage(body io.Reader) string {
	var envelope struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil {
		return ""
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return ""
	}
	return envelope.Message
}
