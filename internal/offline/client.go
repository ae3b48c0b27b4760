// Package offline is the single entry point used by calling code: it
// attempts a live round trip when the remote authority is reachable and
// transparently falls back to cached reads and queued writes when it is not.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avolkau/studysync/internal/entities"
	"github.com/avolkau/studysync/internal/events"
	"github.com/avolkau/studysync/internal/localstore/cache"
	"github.com/avolkau/studysync/internal/localstore/outbox"
	"github.com/avolkau/studysync/internal/localstore/snapshots"
	"github.com/avolkau/studysync/internal/progressapi"
	syncengine "github.com/avolkau/studysync/internal/sync"
)

// ErrCacheMiss indicates an offline read with no cached data: a definite
// failure, not retried.
var ErrCacheMiss = errors.New("no cached data for offline request")

// Source distinguishes how a response was produced, so callers cannot
// mistake a placeholder for a confirmed server result.
type Source string

const (
	// SourceLive is a confirmed response from the remote authority.
	SourceLive Source = "live"
	// SourceCache is a stored snapshot served because no live response
	// was obtainable.
	SourceCache Source = "cache"
	// SourceQueued is an optimistic placeholder for a write accepted into
	// the mutation queue; the server has not confirmed it yet.
	SourceQueued Source = "queued"
)

// Response is the result of a façade request.
type Response struct {
	Source      Source
	Body        json.RawMessage
	OperationID string    // set for queued writes
	FetchedAt   time.Time // set for cached reads
}

// Confirmed reports whether the response is server-authoritative.
func (r *Response) Confirmed() bool {
	return r.Source == SourceLive
}

// Status is the offline status snapshot exposed to the UI layer.
type Status struct {
	Online           bool  `json:"online"`
	PendingSyncCount int64 `json:"pending_sync_count"`
}

// Connectivity reports the committed reachability state.
type Connectivity interface {
	IsOnline() bool
}

// Client is the request façade over the remote API client, the durable
// store and the reconciliation engine.
type Client struct {
	remote     *progressapi.Client
	conn       Connectivity
	queue      *outbox.Repository
	cache      *cache.Repository
	snapshots  *snapshots.Repository
	engine     *syncengine.Engine
	bus        *events.Bus
	maxRetries int
}

func NewClient(remote *progressapi.Client, conn Connectivity, queue *outbox.Repository, cacheRepo *cache.Repository, snaps *snapshots.Repository, engine *syncengine.Engine, bus *events.Bus, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &Client{
		remote:     remote,
		conn:       conn,
		queue:      queue,
		cache:      cacheRepo,
		snapshots:  snaps,
		engine:     engine,
		bus:        bus,
		maxRetries: maxRetries,
	}
}

// Request performs one call against the progress API with offline fallback.
// Reads fall back to the cache; writes fall back to the durable queue and
// return an optimistic placeholder response.
func (c *Client) Request(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	isRead := method == http.MethodGet || method == http.MethodHead

	if c.conn.IsOnline() {
		resp, err := c.requestLive(ctx, method, path, payload, isRead)
		if err == nil {
			return resp, nil
		}
		// A transient failure while nominally online is handled exactly
		// like being offline; anything else is a hard error.
		if !progressapi.IsTransient(err) {
			return nil, err
		}
	}

	if isRead {
		return c.serveFromCache(method, path)
	}
	return c.enqueueWrite(method, path, payload)
}

// ForceSync triggers an immediate reconciliation run.
func (c *Client) ForceSync() {
	c.engine.ForceSync()
}

// Status returns the current reachability state and pending queue depth.
func (c *Client) Status() (Status, error) {
	count, err := c.queue.Count()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Online:           c.conn.IsOnline(),
		PendingSyncCount: count,
	}, nil
}

// Events exposes the bus for online/offline/sync-success/sync-failed
// subscriptions.
func (c *Client) Events() *events.Bus {
	return c.bus
}

func (c *Client) requestLive(ctx context.Context, method, path string, payload []byte, isRead bool) (*Response, error) {
	body, err := c.remote.Do(ctx, method, path, payload, "")
	if err != nil {
		return nil, err
	}

	if isRead {
		merged, mergeErr := c.mergeWithLocal(path, body)
		if mergeErr != nil {
			return nil, mergeErr
		}
		if err := c.cache.Put(method, path, string(merged)); err != nil {
			return nil, err
		}
		return &Response{Source: SourceLive, Body: merged}, nil
	}

	// Confirmed write: drop stale cache synchronously and refresh the
	// local snapshot before the caller sees the response.
	if err := c.cache.InvalidateResource(path); err != nil {
		return nil, err
	}
	if err := c.cache.InvalidateResource("/api/progress"); err != nil {
		return nil, err
	}
	if err := c.refreshSnapshot(method, path, body); err != nil {
		return nil, err
	}

	return &Response{Source: SourceLive, Body: body}, nil
}

func (c *Client) serveFromCache(method, path string) (*Response, error) {
	entry, err := c.cache.Get(method, path)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrCacheMiss, method, path)
	}
	return &Response{
		Source:    SourceCache,
		Body:      json.RawMessage(entry.Content),
		FetchedAt: entry.FetchedAt,
	}, nil
}

// enqueueWrite accepts a write optimistically: the operation is durably
// queued, the local snapshot reflects it immediately and the caller gets a
// synchronous placeholder response.
func (c *Client) enqueueWrite(method, path string, payload []byte) (*Response, error) {
	now := time.Now()
	op := &entities.QueuedOperation{
		OperationID:    entities.NewOperationID(path, method, string(payload), now),
		TargetResource: path,
		Method:         method,
		Payload:        string(payload),
		State:          entities.OperationStatePending,
		MaxRetries:     c.maxRetries,
		CreatedAt:      now,
	}

	if err := c.queue.Enqueue(op); err != nil {
		return nil, err
	}

	// The cached GET bodies predate this write; a reconnect would otherwise
	// serve them stale until the drain confirms.
	if err := c.cache.InvalidateResource(path); err != nil {
		return nil, err
	}
	if err := c.cache.InvalidateResource("/api/progress"); err != nil {
		return nil, err
	}

	if err := c.applyOptimistic(method, path, payload, now); err != nil {
		return nil, err
	}

	body, _ := json.Marshal(map[string]any{
		"pending":      true,
		"operation_id": op.OperationID,
	})
	return &Response{
		Source:      SourceQueued,
		Body:        body,
		OperationID: op.OperationID,
	}, nil
}

// applyOptimistic updates the local snapshot so reads made while offline
// observe the accepted write.
func (c *Client) applyOptimistic(method, path string, payload []byte, now time.Time) error {
	chapterID := syncengine.ChapterFromResource(path)
	if chapterID == "" {
		return nil
	}

	if method == http.MethodDelete {
		return c.snapshots.Delete(chapterID)
	}

	var put progressapi.ProgressPayload
	if err := json.Unmarshal(payload, &put); err != nil {
		return fmt.Errorf("invalid progress payload: %w", err)
	}

	record := entities.ProgressRecord{ChapterID: chapterID, SectionID: put.SectionID}
	record.ApplyPercentage(put.CompletionPercentage, now)

	return c.snapshots.Upsert(&entities.ProgressSnapshot{
		ChapterID:            chapterID,
		SectionID:            record.SectionID,
		CompletionPercentage: record.CompletionPercentage,
		Status:               record.Status,
		CompletedAt:          record.CompletedAt,
		Pending:              true,
		UpdatedAt:            now,
	})
}

// refreshSnapshot records the server's confirmed state after a live write.
func (c *Client) refreshSnapshot(method, path string, body []byte) error {
	chapterID := syncengine.ChapterFromResource(path)
	if chapterID == "" {
		return nil
	}

	if method == http.MethodDelete {
		return c.snapshots.Delete(chapterID)
	}

	var record entities.ProgressRecord
	if err := json.Unmarshal(body, &record); err != nil || record.ChapterID == "" {
		return nil
	}
	return c.snapshots.Upsert(&entities.ProgressSnapshot{
		ChapterID:            record.ChapterID,
		SectionID:            record.SectionID,
		CompletionPercentage: record.CompletionPercentage,
		Status:               record.Status,
		CompletedAt:          record.CompletedAt,
		Pending:              false,
		UpdatedAt:            record.UpdatedAt,
	})
}

// mergeWithLocal applies the merge resolver to progress reads: a server
// record never silently regresses a chapter the client has advanced
// locally.
func (c *Client) mergeWithLocal(path string, body []byte) (json.RawMessage, error) {
	switch {
	case path == "/api/progress":
		var resp struct {
			Progress []entities.ProgressRecord `json:"progress"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return body, nil
		}
		local, err := c.snapshots.GetAll()
		if err != nil {
			return nil, err
		}
		resp.Progress = syncengine.MergeProgressSet(resp.Progress, local)
		merged, err := json.Marshal(resp)
		if err != nil {
			return nil, err
		}
		return merged, nil

	case syncengine.ChapterFromResource(path) != "":
		var record entities.ProgressRecord
		if err := json.Unmarshal(body, &record); err != nil || record.ChapterID == "" {
			return body, nil
		}
		snap, err := c.snapshots.Get(record.ChapterID)
		if err != nil {
			return nil, err
		}
		if snap == nil {
			return body, nil
		}
		resolved := syncengine.ResolveRecord(record, *snap)
		merged, err := json.Marshal(resolved)
		if err != nil {
			return nil, err
		}
		return merged, nil
	}

	return body, nil
}
