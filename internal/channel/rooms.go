package channel

import (
	"sync"

	"artbid-sync/internal/domain"
	"artbid-sync/pkg/logger"
)

// Sender is the slice of the Manager the tracker needs: send control
// messages and observe whether the channel is up.
type Sender interface {
	Send(v interface{}) error
	State() ConnState
}

type room struct {
	refs   int
	joined bool
}

// Tracker reference-counts client interest per artwork room and turns it
// into join/leave control messages. Joins for rooms subscribed while the
// channel is down are deferred and sent on the next connect; a room that
// was never joined produces no leave message.
type Tracker struct {
	mu    sync.Mutex
	rooms map[int64]*room

	ch    Sender
	store domain.SnapshotStore
	log   logger.Logger
}

func NewTracker(ch Sender, store domain.SnapshotStore, log logger.Logger) *Tracker {
	return &Tracker{
		rooms: make(map[int64]*room),
		ch:    ch,
		store: store,
		log:   log,
	}
}

// Subscribe registers interest in one artwork. The first subscriber
// primes an unknown snapshot in the store and joins the room if the
// channel is connected.
func (t *Tracker) Subscribe(artworkID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.rooms[artworkID]
	if r == nil {
		r = &room{}
		t.rooms[artworkID] = r
	}
	r.refs++
	if r.refs > 1 {
		return
	}

	t.store.Upsert(artworkID, domain.SnapshotPatch{})
	if t.ch.State() == StateConnected {
		t.join(artworkID, r)
	}
}

// Unsubscribe drops one reference. When the last reference goes, the room
// is left (if it was ever joined) and the snapshot evicted. Calls for
// unknown artworks are tolerated.
func (t *Tracker) Unsubscribe(artworkID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.rooms[artworkID]
	if r == nil {
		return
	}
	r.refs--
	if r.refs > 0 {
		return
	}

	if r.joined {
		msg := domain.ControlMessage{Type: domain.ControlLeaveArtwork, ArtworkID: artworkID}
		if err := t.ch.Send(msg); err != nil {
			t.log.Warn("leave message not sent", "artwork_id", artworkID, "error", err)
		}
	}
	delete(t.rooms, artworkID)
	t.store.Evict(artworkID)
}

// IsSubscribed reports whether the artwork currently has any subscribers.
func (t *Tracker) IsSubscribed(artworkID int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	r := t.rooms[artworkID]
	return r != nil && r.refs > 0
}

// Subscribed returns all artworks with a positive reference count.
func (t *Tracker) Subscribed() []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]int64, 0, len(t.rooms))
	for id := range t.rooms {
		ids = append(ids, id)
	}
	return ids
}

// HandleStateChange reacts to channel transitions: on connect, all
// tracked rooms are (re)joined; on disconnect, join state is reset so
// the next connect re-sends every join. Register it with the manager's
// OnStateChange.
func (t *Tracker) HandleStateChange(s ConnState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch s {
	case StateConnected:
		for id, r := range t.rooms {
			if !r.joined {
				t.join(id, r)
			}
		}
	default:
		for _, r := range t.rooms {
			r.joined = false
		}
	}
}

// join sends the control message and marks the room joined. Callers hold
// t.mu. A failed send leaves the room unjoined; it is retried on the
// next connected transition.
func (t *Tracker) join(artworkID int64, r *room) {
	msg := domain.ControlMessage{Type: domain.ControlJoinArtwork, ArtworkID: artworkID}
	if err := t.ch.Send(msg); err != nil {
		t.log.Warn("join message not sent", "artwork_id", artworkID, "error", err)
		return
	}
	r.joined = true
}
