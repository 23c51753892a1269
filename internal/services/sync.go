package services

import (
	"context"
	"time"

	"artbid-sync/internal/channel"
	"artbid-sync/internal/domain"
	"artbid-sync/pkg/logger"
)

// SyncService is the consumer-facing facade over the sync core. It wires
// push events into the reconciler and exposes subscribe/unsubscribe,
// snapshot reads, event callbacks, and reconciled REST operations.
type SyncService struct {
	channel    *channel.Manager
	rooms      *channel.Tracker
	dispatcher *channel.Dispatcher
	store      domain.SnapshotStore
	reconciler *Reconciler
	api        domain.ArtworkAPI
	log        logger.Logger

	// now stamps fetch recency markers; swapped out in tests.
	now func() time.Time
}

func NewSyncService(
	ch *channel.Manager,
	rooms *channel.Tracker,
	dispatcher *channel.Dispatcher,
	store domain.SnapshotStore,
	reconciler *Reconciler,
	api domain.ArtworkAPI,
	log logger.Logger,
) *SyncService {
	s := &SyncService{
		channel:    ch,
		rooms:      rooms,
		dispatcher: dispatcher,
		store:      store,
		reconciler: reconciler,
		api:        api,
		log:        log,
		now:        time.Now,
	}

	dispatcher.Register(domain.EventNewBid, s.handleNewBid)
	dispatcher.Register(domain.EventArtworkSold, s.handleArtworkSold)
	dispatcher.Register(domain.EventPaymentRequired, s.handlePaymentRequired)

	return s
}

// Start enables the push channel. Safe to call repeatedly.
func (s *SyncService) Start() {
	s.channel.Enable()
}

// Stop disables the push channel.
func (s *SyncService) Stop() {
	s.channel.Disable()
}

// Subscribe registers interest in an artwork's live updates.
func (s *SyncService) Subscribe(artworkID int64) {
	s.rooms.Subscribe(artworkID)
}

// Unsubscribe drops one interest reference.
func (s *SyncService) Unsubscribe(artworkID int64) {
	s.rooms.Unsubscribe(artworkID)
}

// Snapshot returns the current local belief about an artwork.
func (s *SyncService) Snapshot(artworkID int64) (domain.ArtworkSnapshot, bool) {
	return s.store.Get(artworkID)
}

// SubscribedArtworks lists all artworks with active subscriptions.
func (s *SyncService) SubscribedArtworks() []int64 {
	return s.rooms.Subscribed()
}

// ChannelState exposes the push connection state for health reporting.
func (s *SyncService) ChannelState() channel.ConnState {
	return s.channel.State()
}

// OnNewBid registers a callback for observed new_bid events, suitable for
// notifications in the consuming layer. Returns a removal func.
func (s *SyncService) OnNewBid(fn func(domain.NewBidEvent)) func() {
	return s.dispatcher.Register(domain.EventNewBid, func(evt domain.Event) {
		fn(*evt.NewBid)
	})
}

// OnArtworkSold registers a callback for artwork_sold events.
func (s *SyncService) OnArtworkSold(fn func(domain.ArtworkSoldEvent)) func() {
	return s.dispatcher.Register(domain.EventArtworkSold, func(evt domain.Event) {
		fn(*evt.ArtworkSold)
	})
}

// OnPaymentRequired registers a callback for payment_required events.
func (s *SyncService) OnPaymentRequired(fn func(domain.PaymentRequiredEvent)) func() {
	return s.dispatcher.Register(domain.EventPaymentRequired, func(evt domain.Event) {
		fn(*evt.PaymentRequired)
	})
}

// RefreshArtwork fetches the artwork over REST and folds the result
// through the reconciler. The recency marker is taken before the request
// goes out: the response reflects server state no older than that point,
// so any push event sequenced after it still wins. REST failures are
// returned to the caller as categorized errors.
func (s *SyncService) RefreshArtwork(ctx context.Context, artworkID int64) (domain.ArtworkSnapshot, error) {
	marker := s.now().UnixNano()

	artwork, err := s.api.GetArtwork(ctx, artworkID)
	if err != nil {
		return domain.ArtworkSnapshot{}, err
	}

	update := Update{
		ArtworkID: artworkID,
		Marker:    marker,
		Source:    SourceFetch,
		Amount:    &artwork.CurrentHighestBid,
		Sold:      domain.ParseArtworkStatus(artwork.Status) == domain.StatusSold,
	}
	snap, _ := s.reconciler.Apply(update)
	return snap, nil
}

// PlaceBid submits a bid over REST and, on success, folds the accepted
// amount into the local snapshot so the caller sees its own bid without
// waiting for the push round trip. Sold status never comes from here; it
// arrives via the artwork_sold event.
func (s *SyncService) PlaceBid(ctx context.Context, artworkID int64, amount float64) (*domain.Bid, error) {
	marker := s.now().UnixNano()

	bid, err := s.api.PlaceBid(ctx, artworkID, amount)
	if err != nil {
		return nil, err
	}

	s.reconciler.Apply(Update{
		ArtworkID: artworkID,
		Marker:    marker,
		Source:    SourceFetch,
		Amount:    &bid.Amount,
	})
	return bid, nil
}

func (s *SyncService) handleNewBid(evt domain.Event) {
	e := evt.NewBid
	s.reconciler.Apply(Update{
		ArtworkID: e.ArtworkID,
		Marker:    evt.Sequence,
		Source:    SourcePush,
		Amount:    &e.Bid.Amount,
		Bidder:    &e.Bid.Bidder,
	})
}

func (s *SyncService) handleArtworkSold(evt domain.Event) {
	e := evt.ArtworkSold
	s.reconciler.Apply(Update{
		ArtworkID: e.ArtworkID,
		Marker:    evt.Sequence,
		Source:    SourcePush,
		Amount:    &e.WinningBid,
		Sold:      true,
	})
}

func (s *SyncService) handlePaymentRequired(evt domain.Event) {
	e := evt.PaymentRequired
	// The winning amount is already the highest bid; fold it in so a
	// missed new_bid event cannot leave the snapshot behind.
	s.reconciler.Apply(Update{
		ArtworkID: e.ArtworkID,
		Marker:    evt.Sequence,
		Source:    SourcePush,
		Amount:    &e.WinningBid,
	})
}
