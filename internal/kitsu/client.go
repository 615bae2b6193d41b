// Package kitsu proxies the Kitsu JSON:API anime catalog into the local
// show model.
package kitsu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/anisub/anisub/internal/model"
)

const (
	defaultBaseURL = "https://kitsu.io/api/edge"
	mediaType      = "application/vnd.api+json"

	requestTimeout = 30 * time.Second
)

// StatusError reports a non-success response from the catalog.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("kitsu responded with status %d", e.Code)
}

// Client queries the catalog over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     zerolog.Logger
}

// NewClient creates a catalog client. An empty baseURL targets kitsu.io.
func NewClient(baseURL string, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    baseURL,
		logger:     logger.With().Str("component", "kitsu").Logger(),
	}
}

// Show fetches a single catalog entry by id.
func (c *Client) Show(ctx context.Context, id uint32) (model.Show, error) {
	var doc struct {
		Data resource `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/anime/%d", id), &doc); err != nil {
		return model.Show{}, err
	}
	return doc.Data.toShow()
}

// Shows fetches the catalog's default anime listing.
func (c *Client) Shows(ctx context.Context) ([]model.Show, error) {
	var doc struct {
		Data []resource `json:"data"`
	}
	if err := c.get(ctx, "/anime", &doc); err != nil {
		return nil, err
	}

	shows := make([]model.Show, 0, len(doc.Data))
	for _, res := range doc.Data {
		show, err := res.toShow()
		if err != nil {
			return nil, err
		}
		shows = append(shows, show)
	}
	return shows, nil
}

func (c *Client) get(ctx context.Context, endpoint string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("build catalog request: %w", err)
	}
	req.Header.Set("Accept", mediaType)
	req.Header.Set("Content-Type", mediaType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode catalog response: %w", err)
	}
	return nil
}
