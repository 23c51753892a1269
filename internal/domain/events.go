package domain

import (
	"encoding/json"
	"fmt"
)

type EventKind string

const (
	EventNewBid          EventKind = "new_bid"
	EventArtworkSold     EventKind = "artwork_sold"
	EventPaymentRequired EventKind = "payment_required"
)

// Control message types sent to the push backend.
const (
	ControlJoinArtwork  = "join_artwork"
	ControlLeaveArtwork = "leave_artwork"
)

// ControlMessage is an outbound room join/leave request.
type ControlMessage struct {
	Type      string `json:"type"`
	ArtworkID int64  `json:"artwork_id"`
}

// EventEnvelope is the raw shape of every inbound push message. Sequence
// is server-assigned and monotonically increasing per connection.
type EventEnvelope struct {
	Type     EventKind       `json:"type"`
	Sequence int64           `json:"sequence"`
	Data     json.RawMessage `json:"data"`
}

// BidInfo is the bid block inside a new_bid event.
type BidInfo struct {
	Amount   float64 `json:"amount"`
	Bidder   string  `json:"bidder"`
	Sequence int64   `json:"sequence"`
}

type NewBidEvent struct {
	ArtworkID int64   `json:"artwork_id"`
	Bid       BidInfo `json:"bid"`
}

type ArtworkSoldEvent struct {
	ArtworkID  int64   `json:"artwork_id"`
	WinningBid float64 `json:"winning_bid"`
}

type PaymentRequiredEvent struct {
	ArtworkID  int64   `json:"artwork_id"`
	BidID      int64   `json:"bid_id"`
	WinningBid float64 `json:"winning_bid"`
}

// Event is a tagged variant over the event kinds. Exactly one of the
// payload pointers is non-nil, matching Kind.
type Event struct {
	Kind            EventKind
	Sequence        int64
	NewBid          *NewBidEvent
	ArtworkSold     *ArtworkSoldEvent
	PaymentRequired *PaymentRequiredEvent
}

// ArtworkID returns the artwork the event refers to.
func (e Event) ArtworkID() int64 {
	switch e.Kind {
	case EventNewBid:
		return e.NewBid.ArtworkID
	case EventArtworkSold:
		return e.ArtworkSold.ArtworkID
	case EventPaymentRequired:
		return e.PaymentRequired.ArtworkID
	default:
		return 0
	}
}

// ParseEvent decodes a raw push message into a typed Event. Messages with
// an unknown type or missing required fields are rejected with an error
// so the dispatcher can drop them.
func ParseEvent(raw []byte) (Event, error) {
	var env EventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("invalid event envelope: %w", err)
	}

	evt := Event{Kind: env.Type, Sequence: env.Sequence}

	switch env.Type {
	case EventNewBid:
		var p NewBidEvent
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("invalid new_bid payload: %w", err)
		}
		if p.ArtworkID == 0 {
			return Event{}, fmt.Errorf("new_bid missing artwork_id")
		}
		if p.Bid.Amount <= 0 {
			return Event{}, fmt.Errorf("new_bid missing bid amount")
		}
		// Some emitters stamp the sequence on the bid rather than the
		// envelope; accept either.
		if evt.Sequence == 0 {
			evt.Sequence = p.Bid.Sequence
		}
		evt.NewBid = &p

	case EventArtworkSold:
		var p ArtworkSoldEvent
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("invalid artwork_sold payload: %w", err)
		}
		if p.ArtworkID == 0 {
			return Event{}, fmt.Errorf("artwork_sold missing artwork_id")
		}
		if p.WinningBid <= 0 {
			return Event{}, fmt.Errorf("artwork_sold missing winning_bid")
		}
		evt.ArtworkSold = &p

	case EventPaymentRequired:
		var p PaymentRequiredEvent
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return Event{}, fmt.Errorf("invalid payment_required payload: %w", err)
		}
		if p.ArtworkID == 0 {
			return Event{}, fmt.Errorf("payment_required missing artwork_id")
		}
		if p.BidID == 0 {
			return Event{}, fmt.Errorf("payment_required missing bid_id")
		}
		evt.PaymentRequired = &p

	default:
		return Event{}, fmt.Errorf("unknown event type: %q", env.Type)
	}

	return evt, nil
}
