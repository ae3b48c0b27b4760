package sync

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkau/studysync/internal/entities"
	"github.com/avolkau/studysync/internal/events"
	"github.com/avolkau/studysync/internal/localstore"
	"github.com/avolkau/studysync/internal/localstore/cache"
	"github.com/avolkau/studysync/internal/localstore/outbox"
	"github.com/avolkau/studysync/internal/localstore/snapshots"
)

type remoteCall struct {
	Method      string
	Path        string
	OperationID string
}

// fakeRemote records submissions and fails paths listed in failPaths. A
// non-zero delay makes every submission slow, holding a drain open.
type fakeRemote struct {
	mu        sync.Mutex
	calls     []remoteCall
	failPaths map[string]bool
	response  string
	delay     time.Duration
}

func (f *fakeRemote) Do(ctx context.Context, method, path string, payload []byte, operationID string) ([]byte, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, remoteCall{Method: method, Path: path, OperationID: operationID})
	if f.failPaths[path] {
		return nil, errors.New("connection reset")
	}
	if f.response != "" {
		return []byte(f.response), nil
	}
	return []byte(`{}`), nil
}

func (f *fakeRemote) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeConn struct {
	online bool
}

func (f *fakeConn) IsOnline() bool { return f.online }

type engineFixture struct {
	engine *Engine
	remote *fakeRemote
	queue  *outbox.Repository
	cache  *cache.Repository
	snaps  *snapshots.Repository
	bus    *events.Bus
}

func setupEngine(t *testing.T, online bool) (*engineFixture, func()) {
	dbPath := "./test_engine_" + t.Name() + ".db"

	store, err := localstore.NewStore(dbPath)
	require.NoError(t, err)

	remote := &fakeRemote{failPaths: map[string]bool{}}
	bus := events.NewBus()
	queueRepo := outbox.NewRepository(store)
	cacheRepo := cache.NewRepository(store)
	snapRepo := snapshots.NewRepository(store)

	engine := NewEngine(remote, &fakeConn{online: online}, queueRepo, cacheRepo, snapRepo, bus, Config{
		Schedule: "@every 1m",
	})

	cleanup := func() {
		store.Close()
		os.Remove(dbPath)
	}

	return &engineFixture{
		engine: engine,
		remote: remote,
		queue:  queueRepo,
		cache:  cacheRepo,
		snaps:  snapRepo,
		bus:    bus,
	}, cleanup
}

func enqueueOp(t *testing.T, queue *outbox.Repository, target string, createdAt time.Time, maxRetries int) *entities.QueuedOperation {
	payload := `{"completion_percentage":40}`
	op := &entities.QueuedOperation{
		OperationID:    entities.NewOperationID(target, "PUT", payload, createdAt),
		TargetResource: target,
		Method:         "PUT",
		Payload:        payload,
		MaxRetries:     maxRetries,
		CreatedAt:      createdAt,
	}
	require.NoError(t, queue.Enqueue(op))
	return op
}

func TestEngine_DrainConfirmsOperations(t *testing.T) {
	f, cleanup := setupEngine(t, true)
	defer cleanup()

	f.remote.response = `{"chapter_id":"ch-1","completion_percentage":40,"status":"in_progress"}`
	op := enqueueOp(t, f.queue, "/api/progress/chapter/ch-1", time.Now(), 5)

	// Stale cache entries that depend on the written resource
	require.NoError(t, f.cache.Put("GET", "/api/progress/chapter/ch-1", `{"completion_percentage":10}`))
	require.NoError(t, f.cache.Put("GET", "/api/progress", `{"progress":[]}`))

	sub := f.bus.Subscribe(events.TypeSyncSuccess)
	defer sub.Unsubscribe()

	f.engine.drain()

	// The operation was submitted with its stable ID and left the queue
	require.Equal(t, 1, f.remote.callCount())
	assert.Equal(t, op.OperationID, f.remote.calls[0].OperationID)

	count, err := f.queue.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// Dependent cache entries were invalidated synchronously
	entry, err := f.cache.Get("GET", "/api/progress/chapter/ch-1")
	require.NoError(t, err)
	assert.Nil(t, entry)
	entry, err = f.cache.Get("GET", "/api/progress")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// The snapshot now carries the server's confirmed state
	snap, err := f.snaps.Get("ch-1")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 40, snap.CompletionPercentage)
	assert.False(t, snap.Pending)

	select {
	case evt := <-sub.C:
		require.NotNil(t, evt.Operation)
		assert.Equal(t, op.OperationID, evt.Operation.OperationID)
	case <-time.After(time.Second):
		t.Fatal("expected a sync-success event")
	}
}

func TestEngine_DrainSkipsWhileOffline(t *testing.T) {
	f, cleanup := setupEngine(t, false)
	defer cleanup()

	enqueueOp(t, f.queue, "/api/progress/chapter/ch-1", time.Now(), 5)

	f.engine.drain()

	assert.Equal(t, 0, f.remote.callCount())
	count, err := f.queue.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEngine_FailureBlocksSameTargetOnly(t *testing.T) {
	f, cleanup := setupEngine(t, true)
	defer cleanup()

	base := time.Now()
	failing := enqueueOp(t, f.queue, "/api/progress/chapter/ch-1", base, 5)
	blocked := enqueueOp(t, f.queue, "/api/progress/chapter/ch-1", base.Add(time.Second), 5)
	unrelated := enqueueOp(t, f.queue, "/api/progress/chapter/ch-2", base.Add(2*time.Second), 5)

	f.remote.failPaths["/api/progress/chapter/ch-1"] = true

	f.engine.drain()

	// Only the first ch-1 operation and the unrelated ch-2 operation were
	// attempted; the later ch-1 write stayed blocked behind the failure.
	require.Equal(t, 2, f.remote.callCount())
	assert.Equal(t, failing.OperationID, f.remote.calls[0].OperationID)
	assert.Equal(t, unrelated.OperationID, f.remote.calls[1].OperationID)

	stored, err := f.queue.Get(failing.OperationID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 1, stored.RetryCount)

	// The blocked operation is untouched and replays next drain
	stored, err = f.queue.Get(blocked.OperationID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, 0, stored.RetryCount)
	assert.Equal(t, entities.OperationStatePending, stored.State)
}

func TestEngine_RetryCeilingEmitsOneTerminalEvent(t *testing.T) {
	f, cleanup := setupEngine(t, true)
	defer cleanup()

	op := enqueueOp(t, f.queue, "/api/progress/chapter/ch-1", time.Now(), 3)
	f.remote.failPaths["/api/progress/chapter/ch-1"] = true

	sub := f.bus.Subscribe(events.TypeSyncFailed)
	defer sub.Unsubscribe()

	// Each drain is one attempt; the third reaches the ceiling.
	f.engine.drain()
	f.engine.drain()
	f.engine.drain()

	count, err := f.queue.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count, "abandoned operation must leave the queue")

	select {
	case evt := <-sub.C:
		require.NotNil(t, evt.Operation)
		assert.Equal(t, op.OperationID, evt.Operation.OperationID)
		assert.NotEmpty(t, evt.Err)
	case <-time.After(time.Second):
		t.Fatal("expected a sync-failed event")
	}

	select {
	case <-sub.C:
		t.Fatal("terminal failure must be reported exactly once")
	default:
	}

	// Further drains have nothing to do
	f.engine.drain()
	assert.Equal(t, 3, f.remote.callCount())
}

func TestEngine_DeleteConfirmationDropsSnapshot(t *testing.T) {
	f, cleanup := setupEngine(t, true)
	defer cleanup()

	require.NoError(t, f.snaps.Upsert(&entities.ProgressSnapshot{
		ChapterID: "ch-1",
		Pending:   true,
		UpdatedAt: time.Now(),
	}))

	now := time.Now()
	op := &entities.QueuedOperation{
		OperationID:    entities.NewOperationID("/api/progress/chapter/ch-1", "DELETE", "", now),
		TargetResource: "/api/progress/chapter/ch-1",
		Method:         "DELETE",
		MaxRetries:     5,
		CreatedAt:      now,
	}
	require.NoError(t, f.queue.Enqueue(op))

	f.engine.drain()

	snap, err := f.snaps.Get("ch-1")
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func TestEngine_StartStop(t *testing.T) {
	f, cleanup := setupEngine(t, true)
	defer cleanup()

	require.NoError(t, f.engine.Start())
	// Idempotent
	require.NoError(t, f.engine.Start())
	assert.False(t, f.engine.IsDraining())

	f.engine.Stop()
	f.engine.Stop()
}

func TestEngine_StartReleasesStrandedInFlight(t *testing.T) {
	f, cleanup := setupEngine(t, true)
	defer cleanup()

	op := enqueueOp(t, f.queue, "/api/progress/chapter/ch-1", time.Now(), 5)
	require.NoError(t, f.queue.MarkInFlight(op.OperationID))

	// Stranded in flight, the operation is invisible to a drain.
	ops, err := f.queue.ListPending()
	require.NoError(t, err)
	require.Empty(t, ops)

	require.NoError(t, f.engine.Start())
	defer f.engine.Stop()

	f.engine.drain()

	require.Equal(t, 1, f.remote.callCount())
	assert.Equal(t, op.OperationID, f.remote.calls[0].OperationID)

	count, err := f.queue.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestEngine_ConcurrentForceSyncRunsOneDrain(t *testing.T) {
	f, cleanup := setupEngine(t, true)
	defer cleanup()

	base := time.Now()
	enqueueOp(t, f.queue, "/api/progress/chapter/ch-1", base, 5)
	enqueueOp(t, f.queue, "/api/progress/chapter/ch-2", base.Add(time.Second), 5)

	// Slow submissions keep the first drain running while the other
	// triggers arrive.
	f.remote.delay = 30 * time.Millisecond

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.engine.ForceSync()
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		count, err := f.queue.Count()
		return err == nil && count == 0 && !f.engine.IsDraining()
	}, 2*time.Second, 10*time.Millisecond)

	// One drain covered the queue; no operation was submitted twice.
	assert.Equal(t, 2, f.remote.callCount())
}

func TestChapterFromResource(t *testing.T) {
	assert.Equal(t, "ch-1", ChapterFromResource("/api/progress/chapter/ch-1"))
	assert.Equal(t, "", ChapterFromResource("/api/progress"))
	assert.Equal(t, "", ChapterFromResource("/api/health"))
}
