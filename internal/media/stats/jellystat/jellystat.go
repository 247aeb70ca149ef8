// Package jellystat implements the watch-history collaborator against a
// Jellystat instance.
package jellystat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/media/stats"
)

var _ stats.Statser = (*Client)(nil)

// Client represents a Jellystat API client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// New creates a new Jellystat client.
func New(cfg *config.JellystatConfig) *Client {
	return &Client{
		baseURL: cfg.URL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// itemHistoryRequest represents the request body for getItemHistory.
type itemHistoryRequest struct {
	ItemID string `json:"itemid"`
}

// playbackHistory represents a single playback history entry.
type playbackHistory struct {
	UserName             string    `json:"UserName"`
	PlaybackDuration     int64     `json:"PlaybackDuration"`
	ActivityDateInserted time.Time `json:"ActivityDateInserted"`
}

// itemHistoryResponse represents the response from getItemHistory.
type itemHistoryResponse struct {
	Results []playbackHistory `json:"results"`
}

// ItemStats returns the playback statistics for a title, derived from its
// full playback history. A title without any history yields a record with a
// zero play count, not a nil record: Jellystat knows the item, it just was
// never played.
func (c *Client) ItemStats(ctx context.Context, titleKey string) (*stats.ItemStats, error) {
	history, err := c.getItemHistory(ctx, titleKey)
	if err != nil {
		return nil, err
	}

	itemStats := &stats.ItemStats{
		TitleKey:  titleKey,
		PlayCount: int32(len(history.Results)), //nolint:gosec
	}

	if len(history.Results) > 0 {
		// Results are sorted most recent first.
		itemStats.LastPlayedAt = &history.Results[0].ActivityDateInserted
		for _, play := range history.Results {
			itemStats.TotalRuntime += play.PlaybackDuration
		}
	}

	return itemStats, nil
}

// getItemHistory retrieves the playback history for a specific item, sorted
// most recent first.
func (c *Client) getItemHistory(ctx context.Context, itemID string) (*itemHistoryResponse, error) {
	jsonBody, err := json.Marshal(itemHistoryRequest{ItemID: itemID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	u, err := url.Parse(c.baseURL + "/api/getItemHistory")
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}
	query := u.Query()
	query.Set("size", strconv.Itoa(1000))
	query.Set("page", "1")
	query.Set("sort", "ActivityDateInserted")
	query.Set("desc", "true")
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result itemHistoryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}
