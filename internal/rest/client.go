package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"artbid-sync/internal/domain"
)

// Client wraps the marketplace REST backend. Every request carries the
// current bearer token from the shared TokenSource.
type Client struct {
	baseURL string
	client  *http.Client
	tokens  domain.TokenSource
}

func NewClient(baseURL string, timeout time.Duration, tokens domain.TokenSource) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
}

// GetArtwork fetches one artwork's current state.
func (c *Client) GetArtwork(ctx context.Context, artworkID int64) (*domain.Artwork, error) {
	var artwork domain.Artwork
	endpoint := fmt.Sprintf("/artworks/%d", artworkID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &artwork); err != nil {
		return nil, err
	}
	return &artwork, nil
}

// GetArtworkBids fetches the bid list for one artwork.
func (c *Client) GetArtworkBids(ctx context.Context, artworkID int64) ([]domain.Bid, error) {
	var bids []domain.Bid
	endpoint := fmt.Sprintf("/bids/artwork/%d", artworkID)
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &bids); err != nil {
		return nil, err
	}
	return bids, nil
}

// PlaceBid creates a bid and returns it, including whether it is winning.
func (c *Client) PlaceBid(ctx context.Context, artworkID int64, amount float64) (*domain.Bid, error) {
	body := map[string]interface{}{
		"artwork_id": artworkID,
		"amount":     amount,
	}

	var bid domain.Bid
	if err := c.do(ctx, http.MethodPost, "/bids/", body, &bid); err != nil {
		return nil, err
	}
	return &bid, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("failed to resolve token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return apiError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// apiError builds a categorized error from a non-2xx response. The
// backend reports failures as {"detail": "..."}.
func apiError(resp *http.Response) *APIError {
	message := http.StatusText(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(raw) > 0 {
		var body struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Detail != "" {
			message = body.Detail
		}
	}

	return &APIError{
		Kind:    categorize(resp.StatusCode),
		Status:  resp.StatusCode,
		Message: message,
	}
}
