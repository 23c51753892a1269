package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	_ "github.com/go-sql-driver/mysql"
	redisClient "github.com/go-redis/redis/v8"

	"artbid-sync/internal/api/handlers"
	"artbid-sync/internal/api/middleware"
	"artbid-sync/internal/channel"
	"artbid-sync/internal/config"
	"artbid-sync/internal/domain"
	mysqlRepo "artbid-sync/internal/infrastructure/mysql"
	redisMirror "artbid-sync/internal/infrastructure/redis"
	"artbid-sync/internal/rest"
	"artbid-sync/internal/services"
	"artbid-sync/internal/store"
	"artbid-sync/pkg/logger"
)

func main() {
	log := logger.New()
	log.Info("Starting bid watcher")

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	instanceID := cfg.Instance.ID
	if instanceID == "" {
		instanceID = "bid-watcher-" + uuid.NewString()
	}
	log.Info("Configuration loaded", "config", cfg.String(), "instance_id", instanceID)

	// Initialize Redis
	rdb := redisClient.NewClient(&redisClient.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Error("Failed to open MySQL connection", "error", err)
		os.Exit(1)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Error("Failed to close MySQL connection", "error", err)
		}
	}(db)

	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		log.Error("Failed to ping MySQL", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to MySQL")

	// Shared token source for the channel handshake and REST requests
	tokens := domain.StaticToken(cfg.Auth.Token)

	// Core sync components
	snapshots := store.New()
	reconciler := services.NewReconciler(snapshots, log)
	dispatcher := channel.NewDispatcher(log)

	manager := channel.NewManager(channel.Config{
		URL:              cfg.Channel.URL,
		HandshakeTimeout: cfg.Channel.HandshakeTimeout,
		BackoffMin:       cfg.Channel.BackoffMin,
		BackoffMax:       cfg.Channel.BackoffMax,
		MaxRetries:       cfg.Channel.MaxRetries,
	}, channel.NewWebsocketDialer(cfg.Channel.HandshakeTimeout), tokens, log)
	manager.OnMessage(dispatcher.Dispatch)

	rooms := channel.NewTracker(manager, snapshots, log)
	manager.OnStateChange(rooms.HandleStateChange)

	apiClient := rest.NewClient(cfg.REST.BaseURL, cfg.REST.Timeout, tokens)
	syncService := services.NewSyncService(manager, rooms, dispatcher, snapshots, reconciler, apiClient, log)

	// Mirror applied snapshots into Redis and drop them on eviction
	mirror := redisMirror.NewSnapshotMirror(rdb)
	reconciler.OnApplied(func(snap domain.ArtworkSnapshot) {
		mirrorCtx, mirrorCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer mirrorCancel()
		if err := mirror.WriteSnapshot(mirrorCtx, snap); err != nil {
			log.Warn("Failed to mirror snapshot", "artwork_id", snap.ArtworkID, "error", err)
		}
	})
	snapshots.SetOnEvict(func(artworkID int64) {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer dropCancel()
		if err := mirror.DropSnapshot(dropCtx, artworkID); err != nil {
			log.Warn("Failed to drop mirrored snapshot", "artwork_id", artworkID, "error", err)
		}
	})

	// Record observed bid events into MySQL
	history := mysqlRepo.NewMySQLBidHistory(db)
	recordEvent := func(evt domain.Event) {
		rec := &domain.BidEventRecord{
			ArtworkID:  evt.ArtworkID(),
			Sequence:   evt.Sequence,
			Kind:       evt.Kind,
			ObservedAt: time.Now(),
		}
		switch evt.Kind {
		case domain.EventNewBid:
			rec.Bidder = evt.NewBid.Bid.Bidder
			rec.Amount = evt.NewBid.Bid.Amount
		case domain.EventArtworkSold:
			rec.Amount = evt.ArtworkSold.WinningBid
		case domain.EventPaymentRequired:
			rec.Amount = evt.PaymentRequired.WinningBid
		}

		saveCtx, saveCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer saveCancel()
		if err := history.SaveBidEvent(saveCtx, rec); err != nil {
			log.Error("Failed to record bid event", "artwork_id", rec.ArtworkID, "error", err)
		}
	}
	dispatcher.Register(domain.EventNewBid, recordEvent)
	dispatcher.Register(domain.EventArtworkSold, recordEvent)
	dispatcher.Register(domain.EventPaymentRequired, recordEvent)

	// Log sold artworks as they happen
	syncService.OnArtworkSold(func(evt domain.ArtworkSoldEvent) {
		log.Info("Artwork sold", "artwork_id", evt.ArtworkID, "winning_bid", evt.WinningBid)
	})

	// Connect and subscribe to the configured artworks
	syncService.Start()
	for _, id := range cfg.Watch.ArtworkIDs {
		syncService.Subscribe(id)
	}
	log.Info("Watching artworks", "count", len(cfg.Watch.ArtworkIDs))

	// Polling fallback
	refreshCtx, refreshCancel := context.WithCancel(context.Background())
	defer refreshCancel()
	refresher := services.NewRefresher(syncService, cfg.Refresh.Interval, log)
	if err := refresher.Start(refreshCtx); err != nil {
		log.Error("Failed to start refresher", "error", err)
		os.Exit(1)
	}

	// Status API
	router := mux.NewRouter()
	router.Use(middleware.CORS)
	statusHandler := handlers.NewStatusHandler(syncService, history, log)
	statusHandler.Register(router)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Info("Starting status server", "address", serverAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Status server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down bid watcher...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := refresher.Stop(); err != nil {
		log.Error("Failed to stop refresher", "error", err)
	}
	syncService.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Status server forced to shutdown", "error", err)
	}

	log.Info("Bid watcher stopped")
}
