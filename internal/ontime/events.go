package ontime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Event is one entry of the device's rundown, reduced to what the host
// surface needs for action dropdowns.
type Event struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// eventRecord is the wire shape returned by GET /events. The device sends
// more fields; only id and title are consumed.
type eventRecord struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// fetchEvents issues the one-shot directory fetch against the device's
// HTTP API. Any failure returns an error and no partial result.
func fetchEvents(ctx context.Context, client *http.Client, baseURL string) ([]Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/events", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build events request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("events request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("events request returned status %d", resp.StatusCode)
	}

	var records []eventRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode events response: %w", err)
	}

	events := make([]Event, 0, len(records))
	for _, r := range records {
		events = append(events, Event{ID: r.ID, Label: r.Title})
	}
	return events, nil
}
