package store

import (
	"sync"
	"time"

	"artbid-sync/internal/domain"
)

// Store is the in-memory snapshot cache. It is safe for concurrent
// readers; writes arrive serialized through the reconciler.
type Store struct {
	mu        sync.RWMutex
	snapshots map[int64]domain.ArtworkSnapshot

	onChange func(domain.ArtworkSnapshot)
	onEvict  func(artworkID int64)

	now func() time.Time
}

func New() *Store {
	return &Store{
		snapshots: make(map[int64]domain.ArtworkSnapshot),
		now:       time.Now,
	}
}

// SetOnChange installs a hook called after every upsert, outside the
// store lock. Used to mirror snapshots to external caches.
func (s *Store) SetOnChange(fn func(domain.ArtworkSnapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// SetOnEvict installs a hook called after every eviction.
func (s *Store) SetOnEvict(fn func(artworkID int64)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvict = fn
}

// Upsert merges the patch into the stored snapshot, creating it in the
// unknown state if absent, and returns the result.
func (s *Store) Upsert(artworkID int64, patch domain.SnapshotPatch) domain.ArtworkSnapshot {
	s.mu.Lock()

	snap, ok := s.snapshots[artworkID]
	if !ok {
		snap = domain.ArtworkSnapshot{
			ArtworkID: artworkID,
			Status:    domain.StatusUnknown,
		}
	}

	if patch.CurrentBid != nil {
		snap.CurrentBid = *patch.CurrentBid
	}
	if patch.Bidder != nil {
		snap.Bidder = *patch.Bidder
	}
	if patch.Status != nil {
		snap.Status = *patch.Status
	}
	if patch.Marker != nil {
		snap.Marker = *patch.Marker
	}
	snap.UpdatedAt = s.now()

	s.snapshots[artworkID] = snap
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil {
		onChange(snap)
	}
	return snap
}

// Get returns the current snapshot, if one exists.
func (s *Store) Get(artworkID int64) (domain.ArtworkSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[artworkID]
	return snap, ok
}

// Evict removes the snapshot entirely. Called on last unsubscribe.
func (s *Store) Evict(artworkID int64) {
	s.mu.Lock()
	_, existed := s.snapshots[artworkID]
	delete(s.snapshots, artworkID)
	onEvict := s.onEvict
	s.mu.Unlock()

	if existed && onEvict != nil {
		onEvict(artworkID)
	}
}

// IDs returns the identifiers of all cached snapshots.
func (s *Store) IDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.snapshots))
	for id := range s.snapshots {
		ids = append(ids, id)
	}
	return ids
}

// Len reports the number of cached snapshots.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snapshots)
}
