package domain

import (
	"time"
)

// ArtworkStatus is the client-side view of an artwork's auction state.
// StatusSold is terminal: once set it never reverts.
type ArtworkStatus int

const (
	StatusUnknown ArtworkStatus = iota
	StatusActive
	StatusSold
)

func (s ArtworkStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusSold:
		return "sold"
	default:
		return "unknown"
	}
}

// ParseArtworkStatus maps the REST API status string to an ArtworkStatus.
// Statuses the client does not track (e.g. archived) map to unknown.
func ParseArtworkStatus(s string) ArtworkStatus {
	switch s {
	case "active", "pending_payment":
		return StatusActive
	case "sold":
		return StatusSold
	default:
		return StatusUnknown
	}
}

// ArtworkSnapshot is the latest locally known auction state of one artwork.
// Marker records the recency marker of the last applied update; updates
// carrying an older marker are discarded by the reconciler.
type ArtworkSnapshot struct {
	ArtworkID  int64
	CurrentBid float64
	Bidder     string
	Status     ArtworkStatus
	Marker     int64
	UpdatedAt  time.Time
}

// SnapshotPatch is a partial snapshot: nil fields are left untouched
// on upsert.
type SnapshotPatch struct {
	CurrentBid *float64
	Bidder     *string
	Status     *ArtworkStatus
	Marker     *int64
}

// Artwork mirrors the REST GET /artworks/{id} response body.
type Artwork struct {
	ID                int64     `json:"id"`
	SellerID          int64     `json:"seller_id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	ImageURL          string    `json:"image_url"`
	CurrentHighestBid float64   `json:"current_highest_bid"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// Bid mirrors the REST bid response body.
type Bid struct {
	ID        int64     `json:"id"`
	ArtworkID int64     `json:"artwork_id"`
	BidderID  int64     `json:"bidder_id"`
	Amount    float64   `json:"amount"`
	IsWinning bool      `json:"is_winning"`
	CreatedAt time.Time `json:"created_at"`
}

// BidEventRecord is one observed push event, as persisted to history.
type BidEventRecord struct {
	ID         int64
	ArtworkID  int64
	Bidder     string
	Amount     float64
	Sequence   int64
	Kind       EventKind
	ObservedAt time.Time
}
