// Package sync contains the reconciliation engine that replays locally
// queued writes against the remote authority, and the merge resolver that
// reconciles server records with local unsynced state.
package sync

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/avolkau/studysync/internal/entities"
	"github.com/avolkau/studysync/internal/events"
	"github.com/avolkau/studysync/internal/localstore/cache"
	"github.com/avolkau/studysync/internal/localstore/outbox"
	"github.com/avolkau/studysync/internal/localstore/snapshots"
)

// Remote submits one stored operation to the remote authority.
type Remote interface {
	Do(ctx context.Context, method, path string, payload []byte, operationID string) ([]byte, error)
}

// Connectivity reports the committed reachability state.
type Connectivity interface {
	IsOnline() bool
}

// Config tunes the reconciliation engine.
type Config struct {
	Schedule       string        // cron spec for periodic drains, e.g. "@every 1m"
	DrainTimeout   time.Duration // per-run budget for network submissions
	CacheRetention time.Duration // entries fetched earlier than this are purged each run
}

type trigger int

const (
	triggerScheduled trigger = iota
	triggerReconnect
	triggerForced
)

// Engine drains the mutation queue against the remote authority. Runs are
// serialized: a drain already in progress suppresses a newly triggered one,
// and a reconnect-triggered drain re-fires once after the current run
// completes.
type Engine struct {
	remote    Remote
	conn      Connectivity
	queue     *outbox.Repository
	cache     *cache.Repository
	snapshots *snapshots.Repository
	bus       *events.Bus
	cfg       Config

	cron      *cron.Cron
	entryID   cron.EntryID
	onlineSub *events.Subscription

	mu       sync.Mutex
	draining bool
	rerun    bool
	running  bool
}

func NewEngine(remote Remote, conn Connectivity, queue *outbox.Repository, cacheRepo *cache.Repository, snaps *snapshots.Repository, bus *events.Bus, cfg Config) *Engine {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 2 * time.Minute
	}
	return &Engine{
		remote:    remote,
		conn:      conn,
		queue:     queue,
		cache:     cacheRepo,
		snapshots: snaps,
		bus:       bus,
		cfg:       cfg,
		cron:      cron.New(),
	}
}

// Start schedules periodic drains and begins reacting to reconnects.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return nil
	}

	// Operations stranded in flight by a previous process resume as pending
	// so the next drain sees them again.
	released, err := e.queue.ReleaseStuck()
	if err != nil {
		log.Printf("Sync engine: %v", err)
	} else if released > 0 {
		log.Printf("Sync engine: released %d stranded operation(s)", released)
	}

	entryID, err := e.cron.AddFunc(e.cfg.Schedule, func() {
		e.request(triggerScheduled)
	})
	if err != nil {
		return err
	}
	e.entryID = entryID
	e.cron.Start()

	// Reconnects drain immediately rather than waiting for the schedule.
	e.onlineSub = e.bus.Subscribe(events.TypeOnline)
	go func() {
		for range e.onlineSub.C {
			e.request(triggerReconnect)
		}
	}()

	e.running = true
	log.Printf("Sync engine: started with schedule '%s'", e.cfg.Schedule)
	return nil
}

// Stop halts scheduling and waits for a running drain's cron slot to clear.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	sub := e.onlineSub
	e.onlineSub = nil
	e.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
	ctx := e.cron.Stop()
	<-ctx.Done()
	log.Printf("Sync engine: stopped")
}

// ForceSync triggers an immediate drain. If a drain is already in flight the
// call is a no-op; the running drain covers the current queue snapshot.
func (e *Engine) ForceSync() {
	e.request(triggerForced)
}

// IsDraining reports whether a drain is currently executing.
func (e *Engine) IsDraining() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.draining
}

// request asks for a drain. Only one drain executes at a time; a reconnect
// trigger arriving mid-run re-fires after the run completes so the freshly
// reachable authority is drained promptly.
func (e *Engine) request(t trigger) {
	e.mu.Lock()
	if e.draining {
		if t == triggerReconnect {
			e.rerun = true
		}
		e.mu.Unlock()
		return
	}
	e.draining = true
	e.mu.Unlock()

	go e.run()
}

func (e *Engine) run() {
	for {
		e.drain()

		e.mu.Lock()
		if e.rerun {
			e.rerun = false
			e.mu.Unlock()
			continue
		}
		e.draining = false
		e.mu.Unlock()
		return
	}
}

// drain replays the current queue snapshot, oldest first. A failing
// operation blocks later operations for the same target (each carries a full
// payload, so replay order per identity must hold) but never unrelated ones.
func (e *Engine) drain() {
	if !e.conn.IsOnline() {
		return
	}

	ops, err := e.queue.ListPending()
	if err != nil {
		log.Printf("Sync engine: failed to snapshot queue: %v", err)
		return
	}
	if len(ops) == 0 {
		e.purgeCache()
		return
	}

	log.Printf("Sync engine: draining %d pending operation(s)", len(ops))

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.DrainTimeout)
	defer cancel()

	failedTargets := make(map[string]bool)
	for i := range ops {
		op := ops[i]
		if failedTargets[op.TargetResource] {
			continue
		}

		if err := e.queue.MarkInFlight(op.OperationID); err != nil {
			log.Printf("Sync engine: %v", err)
			continue
		}

		body, submitErr := e.remote.Do(ctx, op.Method, op.TargetResource, []byte(op.Payload), op.OperationID)
		if submitErr == nil {
			e.confirm(&op, body)
			continue
		}

		failedTargets[op.TargetResource] = true
		e.retryOrAbandon(&op, submitErr)
	}

	e.purgeCache()
}

// confirm finalizes a successfully replayed operation: it leaves the queue,
// dependent cache entries are invalidated synchronously so a subsequent read
// is not stale, and the local snapshot is refreshed from the server's
// response.
func (e *Engine) confirm(op *entities.QueuedOperation, body []byte) {
	if err := e.queue.Remove(op.OperationID); err != nil {
		log.Printf("Sync engine: %v", err)
	}
	if err := e.cache.InvalidateResource(op.TargetResource); err != nil {
		log.Printf("Sync engine: %v", err)
	}
	// The progress list view depends on every chapter resource.
	if err := e.cache.InvalidateResource("/api/progress"); err != nil {
		log.Printf("Sync engine: %v", err)
	}

	chapterID := ChapterFromResource(op.TargetResource)
	if chapterID != "" {
		switch op.Method {
		case http.MethodDelete:
			if err := e.snapshots.Delete(chapterID); err != nil {
				log.Printf("Sync engine: %v", err)
			}
		default:
			var record entities.ProgressRecord
			if err := json.Unmarshal(body, &record); err == nil && record.ChapterID != "" {
				snap := &entities.ProgressSnapshot{
					ChapterID:            record.ChapterID,
					SectionID:            record.SectionID,
					CompletionPercentage: record.CompletionPercentage,
					Status:               record.Status,
					CompletedAt:          record.CompletedAt,
					Pending:              false,
					UpdatedAt:            record.UpdatedAt,
				}
				if err := e.snapshots.Upsert(snap); err != nil {
					log.Printf("Sync engine: %v", err)
				}
			}
		}
	}

	e.bus.Publish(events.Event{Type: events.TypeSyncSuccess, Operation: op})
}

// retryOrAbandon records a failed attempt. Once the retry ceiling is
// reached the operation is dropped and reported exactly once through a
// terminal sync-failed event; the original caller already holds an
// optimistic response, so an event channel is the only sensible outlet.
func (e *Engine) retryOrAbandon(op *entities.QueuedOperation, submitErr error) {
	if err := e.queue.UpdateRetry(op.OperationID); err != nil {
		log.Printf("Sync engine: %v", err)
		return
	}

	attempts := op.RetryCount + 1
	if attempts >= op.MaxRetries {
		log.Printf("Sync engine: giving up on %s %s after %d attempts: %v",
			op.Method, op.TargetResource, attempts, submitErr)
		if err := e.queue.Remove(op.OperationID); err != nil {
			log.Printf("Sync engine: %v", err)
		}
		e.bus.Publish(events.Event{
			Type:      events.TypeSyncFailed,
			Operation: op,
			Err:       submitErr.Error(),
		})
		return
	}

	log.Printf("Sync engine: attempt %d/%d failed for %s %s: %v",
		attempts, op.MaxRetries, op.Method, op.TargetResource, submitErr)
}

func (e *Engine) purgeCache() {
	if e.cfg.CacheRetention <= 0 {
		return
	}
	purged, err := e.cache.PurgeOlderThan(e.cfg.CacheRetention)
	if err != nil {
		log.Printf("Sync engine: cache purge failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Sync engine: purged %d expired cache entries", purged)
	}
}

// ChapterFromResource extracts the chapter identifier from a progress
// resource path, or returns "" for non-chapter resources.
func ChapterFromResource(resource string) string {
	const prefix = "/api/progress/chapter/"
	if !strings.HasPrefix(resource, prefix) {
		return ""
	}
	return strings.TrimPrefix(resource, prefix)
}
