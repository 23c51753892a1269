package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"artbid-sync/internal/domain"
	"artbid-sync/internal/services"
	"artbid-sync/pkg/logger"
)

// StatusHandler serves the watcher's read-only HTTP surface: health,
// live snapshots out of the local store, and recorded bid history.
type StatusHandler struct {
	sync    *services.SyncService
	history domain.BidHistoryRepository
	log     logger.Logger
}

func NewStatusHandler(sync *services.SyncService, history domain.BidHistoryRepository, log logger.Logger) *StatusHandler {
	return &StatusHandler{
		sync:    sync,
		history: history,
		log:     log,
	}
}

// Register mounts all routes on the router.
func (h *StatusHandler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/artworks/{id:[0-9]+}/snapshot", h.GetSnapshot).Methods(http.MethodGet)
	r.HandleFunc("/artworks/{id:[0-9]+}/history", h.GetHistory).Methods(http.MethodGet)
}

func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"service":       "bid-watcher",
		"channel_state": h.sync.ChannelState().String(),
		"subscriptions": len(h.sync.SubscribedArtworks()),
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

func (h *StatusHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	artworkID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid artwork id"})
		return
	}

	snap, ok := h.sync.Snapshot(artworkID)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "artwork not watched"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"artwork_id":  snap.ArtworkID,
		"current_bid": snap.CurrentBid,
		"bidder":      snap.Bidder,
		"status":      snap.Status.String(),
		"marker":      snap.Marker,
		"updated_at":  snap.UpdatedAt.Format(time.RFC3339),
	})
}

func (h *StatusHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	artworkID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid artwork id"})
		return
	}

	records, err := h.history.GetBidHistory(r.Context(), artworkID)
	if err != nil {
		h.log.Error("Failed to load bid history", "artwork_id", artworkID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}

	type historyEntry struct {
		Bidder     string    `json:"bidder"`
		Amount     float64   `json:"amount"`
		Sequence   int64     `json:"sequence"`
		Kind       string    `json:"kind"`
		ObservedAt time.Time `json:"observed_at"`
	}

	entries := make([]historyEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, historyEntry{
			Bidder:     rec.Bidder,
			Amount:     rec.Amount,
			Sequence:   rec.Sequence,
			Kind:       string(rec.Kind),
			ObservedAt: rec.ObservedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"artwork_id": artworkID,
		"events":     entries,
	})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
