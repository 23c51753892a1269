package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"artbid-sync/internal/domain"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *Client) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, 5*time.Second, domain.StaticToken("test-token"))
	return srv, client
}

func TestClient_GetArtwork(t *testing.T) {
	var gotPath, gotAuth string
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(domain.Artwork{
			ID:                42,
			CurrentHighestBid: 150,
			Status:            "active",
		})
	})

	artwork, err := client.GetArtwork(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetArtwork failed: %v", err)
	}

	if gotPath != "/artworks/42" {
		t.Errorf("want path /artworks/42, got %s", gotPath)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("want bearer token header, got %q", gotAuth)
	}
	if artwork.ID != 42 || artwork.CurrentHighestBid != 150 {
		t.Errorf("unexpected artwork: %+v", artwork)
	}
}

func TestClient_GetArtworkBids(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bids/artwork/7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode([]domain.Bid{
			{ID: 1, ArtworkID: 7, Amount: 100},
			{ID: 2, ArtworkID: 7, Amount: 120, IsWinning: true},
		})
	})

	bids, err := client.GetArtworkBids(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetArtworkBids failed: %v", err)
	}
	if len(bids) != 2 || !bids[1].IsWinning {
		t.Errorf("unexpected bids: %+v", bids)
	}
}

func TestClient_PlaceBid(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/bids/" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body struct {
			ArtworkID int64   `json:"artwork_id"`
			Amount    float64 `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(domain.Bid{
			ID:        10,
			ArtworkID: body.ArtworkID,
			Amount:    body.Amount,
			IsWinning: true,
		})
	})

	bid, err := client.PlaceBid(context.Background(), 7, 300)
	if err != nil {
		t.Fatalf("PlaceBid failed: %v", err)
	}
	if bid.ArtworkID != 7 || bid.Amount != 300 || !bid.IsWinning {
		t.Errorf("unexpected bid: %+v", bid)
	}
}

func TestClient_ErrorCategorization(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   ErrorKind
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, want: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, want: ErrForbidden},
		{name: "not found", status: http.StatusNotFound, want: ErrNotFound},
		{name: "bad request", status: http.StatusBadRequest, want: ErrValidation},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, want: ErrValidation},
		{name: "conflict", status: http.StatusConflict, want: ErrValidation},
		{name: "server error", status: http.StatusInternalServerError, want: ErrServer},
		{name: "bad gateway", status: http.StatusBadGateway, want: ErrServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]string{"detail": "nope"})
			})

			_, err := client.GetArtwork(context.Background(), 1)
			if err == nil {
				t.Fatalf("want error for status %d", tt.status)
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("want *APIError, got %T: %v", err, err)
			}
			if apiErr.Kind != tt.want {
				t.Errorf("want kind %v, got %v", tt.want, apiErr.Kind)
			}
			if apiErr.Message != "nope" {
				t.Errorf("detail not extracted: %q", apiErr.Message)
			}
			if apiErr.Status != tt.status {
				t.Errorf("want status %d, got %d", tt.status, apiErr.Status)
			}
		})
	}
}

func TestClient_ErrorWithoutDetailBody(t *testing.T) {
	_, client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetArtwork(context.Background(), 1)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.Message != http.StatusText(http.StatusNotFound) {
		t.Errorf("want fallback message, got %q", apiErr.Message)
	}
}
