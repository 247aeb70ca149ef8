// Package overseerr implements the request-tracking collaborator against an
// Overseerr (or Jellyseerr) instance.
package overseerr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/media"
	"github.com/curatarr/curatarr/internal/media/requests"
)

var _ requests.Requester = (*Client)(nil)

// Client represents an Overseerr API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new Overseerr API client.
func New(cfg *config.OverseerrConfig) *Client {
	return &Client{
		baseURL:    cfg.URL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// mediaRequest represents a single request from the /request endpoint.
type mediaRequest struct {
	ID        int       `json:"id"`
	Status    int       `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Media     struct {
		TmdbID    int32  `json:"tmdbId"`
		TvdbID    int32  `json:"tvdbId"`
		MediaType string `json:"mediaType"`
	} `json:"media"`
	RequestedBy struct {
		Email       string `json:"email"`
		DisplayName string `json:"displayName"`
	} `json:"requestedBy"`
}

// requestsResponse represents the paginated response from the /request endpoint.
type requestsResponse struct {
	PageInfo struct {
		Pages   int `json:"pages"`
		Page    int `json:"page"`
		Results int `json:"results"`
	} `json:"pageInfo"`
	Results []mediaRequest `json:"results"`
}

// ActiveRequests returns all non-declined requests for the given media type,
// keyed by external catalog id (TMDB for movies, TVDB for series).
func (c *Client) ActiveRequests(ctx context.Context, mediaType media.MediaType) (map[int32]requests.Request, error) {
	wantType := "movie"
	if mediaType == media.MediaTypeTV {
		wantType = "tv"
	}

	active := make(map[int32]requests.Request)

	take := 100
	skip := 0
	for {
		var page requestsResponse
		endpoint := fmt.Sprintf("/api/v1/request?take=%d&skip=%d", take, skip)
		if err := c.get(ctx, endpoint, &page); err != nil {
			return nil, err
		}

		for _, req := range page.Results {
			if req.Media.MediaType != wantType {
				continue
			}
			// Status 3 is "declined", everything else is still wanted.
			if req.Status == 3 {
				continue
			}

			catalogID := req.Media.TmdbID
			if mediaType == media.MediaTypeTV {
				catalogID = req.Media.TvdbID
			}
			if catalogID == 0 {
				continue
			}

			requestedBy := req.RequestedBy.Email
			if requestedBy == "" {
				requestedBy = req.RequestedBy.DisplayName
			}

			createdAt := req.CreatedAt
			active[catalogID] = requests.Request{
				CatalogID:   catalogID,
				RequestedBy: requestedBy,
				RequestedAt: &createdAt,
			}
		}

		skip += take
		if page.PageInfo.Page >= page.PageInfo.Pages || len(page.Results) == 0 {
			break
		}
	}

	return active, nil
}

// get performs a GET request against the Overseerr API.
func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
