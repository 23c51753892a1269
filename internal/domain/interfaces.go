package domain

import (
	"context"
)

// TokenSource supplies the current bearer token. The channel manager
// re-reads it on every connection attempt so reconnects pick up
// refreshed tokens, and the REST client reads it per request.
type TokenSource interface {
	Token() (string, error)
}

// TokenFunc adapts a function to a TokenSource.
type TokenFunc func() (string, error)

func (f TokenFunc) Token() (string, error) { return f() }

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (t StaticToken) Token() (string, error) { return string(t), nil }

// SnapshotStore is the local cache of artwork snapshots. All writes must
// go through the reconciler so the recency ordering invariant holds.
type SnapshotStore interface {
	Upsert(artworkID int64, patch SnapshotPatch) ArtworkSnapshot
	Get(artworkID int64) (ArtworkSnapshot, bool)
	Evict(artworkID int64)
	IDs() []int64
}

// ArtworkAPI is the REST surface the sync layer consumes.
type ArtworkAPI interface {
	GetArtwork(ctx context.Context, artworkID int64) (*Artwork, error)
	GetArtworkBids(ctx context.Context, artworkID int64) ([]Bid, error)
	PlaceBid(ctx context.Context, artworkID int64, amount float64) (*Bid, error)
}

// BidHistoryRepository persists observed bid events.
type BidHistoryRepository interface {
	SaveBidEvent(ctx context.Context, rec *BidEventRecord) error
	GetBidHistory(ctx context.Context, artworkID int64) ([]*BidEventRecord, error)
}

// SnapshotMirror publishes applied snapshots to an external cache.
type SnapshotMirror interface {
	WriteSnapshot(ctx context.Context, snap ArtworkSnapshot) error
	DropSnapshot(ctx context.Context, artworkID int64) error
}
