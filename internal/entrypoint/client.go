package entrypoint

import (
	"context"
	"fmt"

	"github.com/avolkau/studysync/internal/config"
	"github.com/avolkau/studysync/internal/connectivity"
	"github.com/avolkau/studysync/internal/events"
	"github.com/avolkau/studysync/internal/localstore"
	"github.com/avolkau/studysync/internal/localstore/cache"
	"github.com/avolkau/studysync/internal/localstore/outbox"
	"github.com/avolkau/studysync/internal/localstore/snapshots"
	"github.com/avolkau/studysync/internal/offline"
	"github.com/avolkau/studysync/internal/progressapi"
	syncengine "github.com/avolkau/studysync/internal/sync"
)

// SyncClient bundles the offline-capable client with its background
// components so callers can start and stop them together.
type SyncClient struct {
	Offline *offline.Client
	Monitor *connectivity.Monitor
	Engine  *syncengine.Engine
	Bus     *events.Bus

	store      *localstore.Store
	cancelFunc context.CancelFunc
}

// NewSyncClient wires the durable store, connectivity monitor,
// reconciliation engine and request façade from configuration.
func NewSyncClient(cfg *config.Config) (*SyncClient, error) {
	store, err := localstore.NewStore(cfg.Offline.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open offline store: %w", err)
	}

	bus := events.NewBus()
	remote := progressapi.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.Timeout)
	monitor := connectivity.NewMonitor(remote, bus, cfg.Sync.ProbeInterval, cfg.Sync.DebounceWindow)

	queueRepo := outbox.NewRepository(store)
	cacheRepo := cache.NewRepository(store)
	snapRepo := snapshots.NewRepository(store)

	engine := syncengine.NewEngine(remote, monitor, queueRepo, cacheRepo, snapRepo, bus, syncengine.Config{
		Schedule:       cfg.Sync.Schedule,
		CacheRetention: cfg.Offline.CacheRetention,
	})

	client := offline.NewClient(remote, monitor, queueRepo, cacheRepo, snapRepo, engine, bus, cfg.Sync.MaxRetries)

	return &SyncClient{
		Offline: client,
		Monitor: monitor,
		Engine:  engine,
		Bus:     bus,
		store:   store,
	}, nil
}

// Start launches the connectivity monitor and the reconciliation engine.
func (s *SyncClient) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelFunc = cancel

	s.Monitor.Start(runCtx)
	if err := s.Engine.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start sync engine: %w", err)
	}
	return nil
}

// Stop halts the background components and closes the durable store.
func (s *SyncClient) Stop() {
	s.Engine.Stop()
	s.Monitor.Stop()
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	if err := s.store.Close(); err != nil {
		fmt.Printf("Error closing offline store: %v\n", err)
	}
}
