package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"artbid-sync/internal/domain"
)

// SnapshotMirror writes applied snapshots into Redis hashes so co-located
// consumers can read live auction state without their own push channel.
type SnapshotMirror struct {
	client *redis.Client
}

func NewSnapshotMirror(client *redis.Client) *SnapshotMirror {
	return &SnapshotMirror{client: client}
}

func snapshotKey(artworkID int64) string {
	return fmt.Sprintf("artwork:%d:snapshot", artworkID)
}

func (m *SnapshotMirror) WriteSnapshot(ctx context.Context, snap domain.ArtworkSnapshot) error {
	key := snapshotKey(snap.ArtworkID)

	return m.client.HSet(ctx, key,
		"current_bid", fmt.Sprintf("%.2f", snap.CurrentBid),
		"bidder", snap.Bidder,
		"status", snap.Status.String(),
		"marker", strconv.FormatInt(snap.Marker, 10),
		"updated_at", strconv.FormatInt(snap.UpdatedAt.Unix(), 10),
	).Err()
}

func (m *SnapshotMirror) DropSnapshot(ctx context.Context, artworkID int64) error {
	return m.client.Del(ctx, snapshotKey(artworkID)).Err()
}

// ReadSnapshot reconstructs a snapshot from the mirror. Missing keys
// return ok=false.
func (m *SnapshotMirror) ReadSnapshot(ctx context.Context, artworkID int64) (domain.ArtworkSnapshot, bool, error) {
	key := snapshotKey(artworkID)

	fields, err := m.client.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.ArtworkSnapshot{}, false, err
	}
	if len(fields) == 0 {
		return domain.ArtworkSnapshot{}, false, nil
	}

	snap := domain.ArtworkSnapshot{ArtworkID: artworkID}
	if v, ok := fields["current_bid"]; ok {
		snap.CurrentBid, _ = strconv.ParseFloat(v, 64)
	}
	if v, ok := fields["bidder"]; ok {
		snap.Bidder = v
	}
	if v, ok := fields["status"]; ok {
		snap.Status = domain.ParseArtworkStatus(v)
	}
	if v, ok := fields["marker"]; ok {
		snap.Marker, _ = strconv.ParseInt(v, 10, 64)
	}

	return snap, true, nil
}
