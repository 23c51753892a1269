package services

import (
	"sync"

	"artbid-sync/internal/domain"
	"artbid-sync/pkg/logger"
)

// UpdateSource identifies where an update came from.
type UpdateSource int

const (
	SourcePush UpdateSource = iota
	SourceFetch
)

func (s UpdateSource) String() string {
	if s == SourceFetch {
		return "fetch"
	}
	return "push"
}

// Update is one candidate change to an artwork snapshot. Marker is the
// recency marker: the server-assigned sequence for push events, or the
// request start time (unix nanoseconds) for REST fetches. The two share
// a nanosecond timebase so they order against each other.
type Update struct {
	ArtworkID int64
	Marker    int64
	Source    UpdateSource
	Amount    *float64
	Bidder    *string
	Sold      bool
}

// Reconciler is the only writer of the snapshot store. It decides, per
// update, whether the stored snapshot may change:
//
//   - updates for artworks with no stored snapshot are discarded — the
//     snapshot was evicted (or never subscribed), so a late fetch result
//     must not resurrect it;
//   - an update applies only if its marker is >= the stored marker;
//   - sold is terminal: a sold update always applies, and afterwards only
//     newer sold updates may touch the snapshot.
type Reconciler struct {
	mu    sync.Mutex
	store domain.SnapshotStore
	log   logger.Logger

	applied map[int64]func(domain.ArtworkSnapshot)
	nextID  int64
}

func NewReconciler(store domain.SnapshotStore, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		log:     log,
		applied: make(map[int64]func(domain.ArtworkSnapshot)),
	}
}

// OnApplied registers an observer invoked with every snapshot the
// reconciler actually applies. Returns a removal func.
func (r *Reconciler) OnApplied(fn func(domain.ArtworkSnapshot)) func() {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.applied[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.applied, id)
		r.mu.Unlock()
	}
}

// Apply runs the ordering rules and merges the update into the store if
// it wins. It reports whether the update was applied and returns the
// resulting snapshot.
func (r *Reconciler) Apply(u Update) (domain.ArtworkSnapshot, bool) {
	r.mu.Lock()

	stored, ok := r.store.Get(u.ArtworkID)
	if !ok {
		r.mu.Unlock()
		r.log.Debug("discarding update for evicted artwork",
			"artwork_id", u.ArtworkID, "source", u.Source.String())
		return domain.ArtworkSnapshot{}, false
	}

	if stored.Status == domain.StatusSold {
		// Terminal state: only a newer sold update may still adjust the
		// winning amount.
		if !u.Sold || u.Marker < stored.Marker {
			r.mu.Unlock()
			r.log.Debug("discarding update for sold artwork",
				"artwork_id", u.ArtworkID, "source", u.Source.String(), "marker", u.Marker)
			return stored, false
		}
	} else if !u.Sold && u.Marker < stored.Marker {
		r.mu.Unlock()
		r.log.Debug("discarding stale update",
			"artwork_id", u.ArtworkID, "source", u.Source.String(),
			"marker", u.Marker, "stored_marker", stored.Marker)
		return stored, false
	}

	status := domain.StatusActive
	if u.Sold {
		status = domain.StatusSold
	}
	marker := u.Marker
	if u.Sold && stored.Marker > marker {
		// A sold event wins regardless of its own marker; keep the higher
		// stored marker so later stale updates still compare as stale.
		marker = stored.Marker
	}

	snap := r.store.Upsert(u.ArtworkID, domain.SnapshotPatch{
		CurrentBid: u.Amount,
		Bidder:     u.Bidder,
		Status:     &status,
		Marker:     &marker,
	})

	observers := make([]func(domain.ArtworkSnapshot), 0, len(r.applied))
	for _, fn := range r.applied {
		observers = append(observers, fn)
	}
	r.mu.Unlock()

	for _, fn := range observers {
		fn(snap)
	}
	return snap, true
}
