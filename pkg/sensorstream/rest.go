package sensorstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SnapshotClient fetches the most recent cached reading over REST. It is
// the synchronous fallback to the push channel and never touches push state:
// a failed fetch is simply returned as an error for the UI to display.
type SnapshotClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewSnapshotClient creates a client against the bridge's REST base URL.
func NewSnapshotClient(baseURL string) *SnapshotClient {
	return &SnapshotClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Latest returns the current snapshot. ok is false when the server has not
// ingested anything yet.
func (c *SnapshotClient) Latest(ctx context.Context) (DisplayReading, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/sensor/latest", nil)
	if err != nil {
		return DisplayReading{}, false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return DisplayReading{}, false, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return DisplayReading{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return DisplayReading{}, false, fmt.Errorf("snapshot request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return DisplayReading{}, false, err
	}

	reading, ok := decodeFrame(body, "", time.Now)
	if !ok {
		return DisplayReading{}, false, errors.New("snapshot response is not a valid reading")
	}
	return reading, true, nil
}
