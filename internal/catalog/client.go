package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"review-rush-go/internal/game"
)

const (
	apiKeyHeader = "X-API-KEY"
	gamesPath    = "api/games"
)

// Client talks to the review catalog backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/",
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchBatch posts to one of the batch endpoints.
func (c *Client) FetchBatch(ctx context.Context, endpoint string, limit int, excluded []int64) ([]GameDTO, error) {
	if excluded == nil {
		excluded = []int64{}
	}
	body, err := json.Marshal(batchRequest{Limit: limit, ExcludedIDs: excluded})
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+gamesPath+"/"+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, "fetch batch")
}

// FetchAll downloads the full catalog.
func (c *Client) FetchAll(ctx context.Context) ([]GameDTO, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+gamesPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, "fetch catalog")
}

func (c *Client) do(req *http.Request, op string) ([]GameDTO, error) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &game.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &game.TransportError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &game.TransportError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var games []GameDTO
	if err := json.Unmarshal(payload, &games); err != nil {
		return nil, &game.TransportError{Op: op, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return games, nil
}
