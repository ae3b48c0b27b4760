package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avolkau/studysync/internal/entities"
)

func TestNewClient(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	require.NotNil(t, client)

	// Verify tasks database was created
	tasksDBPath := filepath.Join(tmpDir, "test-tasks.db")
	_, err = os.Stat(tasksDBPath)
	assert.NoError(t, err, "tasks database should be created")

	err = client.Close()
	assert.NoError(t, err)
}

func TestClientStartStop(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	defer client.Close()

	// Start client in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go client.Start(ctx)

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	// Stop should complete successfully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()

	success := client.Stop(stopCtx)
	assert.True(t, success, "stop should succeed gracefully")
}

// TestTask is a simple task for testing
type TestTask struct {
	Value string `json:"value"`
}

func (t TestTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "test_task",
		MaxAttempts: 1,
		Backoff:     time.Second,
		Timeout:     5 * time.Second,
	}
}

func TestTaskEnqueue(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(dbPath, cfg)
	require.NoError(t, err)
	defer client.Close()

	// Create and register a test queue
	executed := make(chan string, 1)
	queue := backlite.NewQueue(func(ctx context.Context, task TestTask) error {
		executed <- task.Value
		return nil
	})
	client.Register(queue)

	// Start client
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Start(ctx)

	// Enqueue a task
	ids, err := client.Add(TestTask{Value: "hello"}).Save()
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	// Wait for task to be executed
	select {
	case val := <-executed:
		assert.Equal(t, "hello", val)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

type fakeRecalculator struct {
	calls   []uint
	summary *entities.ProgressSummary
	err     error
}

func (f *fakeRecalculator) RecalculateSummary(userID uint) (*entities.ProgressSummary, error) {
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return nil, f.err
	}
	return f.summary, nil
}

func TestRecalculateSummaryProcessor(t *testing.T) {
	recalc := &fakeRecalculator{
		summary: &entities.ProgressSummary{
			UserID:            1,
			ChaptersStarted:   3,
			ChaptersCompleted: 1,
			AveragePercentage: 45.0,
		},
	}

	processor := RecalculateSummaryProcessor(recalc)

	err := processor(context.Background(), RecalculateSummaryTask{UserID: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, recalc.calls)

	recalc.err = errors.New("database locked")
	err = processor(context.Background(), RecalculateSummaryTask{UserID: 1})
	assert.Error(t, err)

	err = RecalculateSummaryProcessor(nil)(context.Background(), RecalculateSummaryTask{UserID: 1})
	assert.Error(t, err)
}

type fakeCleaner struct {
	retention time.Duration
	deleted   int64
	err       error
}

func (f *fakeCleaner) DeleteOldAppliedOperations(retention time.Duration) (int64, error) {
	f.retention = retention
	return f.deleted, f.err
}

func TestCleanupAppliedOperationsProcessor(t *testing.T) {
	cleaner := &fakeCleaner{deleted: 4}
	processor := CleanupAppliedOperationsProcessor(cleaner)

	err := processor(context.Background(), CleanupAppliedOperationsTask{RetentionHours: 48})
	require.NoError(t, err)
	assert.Equal(t, 48*time.Hour, cleaner.retention)

	// Zero retention falls back to the 30-day default
	err = processor(context.Background(), CleanupAppliedOperationsTask{})
	require.NoError(t, err)
	assert.Equal(t, 720*time.Hour, cleaner.retention)

	cleaner.err = errors.New("database locked")
	err = processor(context.Background(), CleanupAppliedOperationsTask{RetentionHours: 1})
	assert.Error(t, err)
}

func TestRecalculateSummaryTaskConfig(t *testing.T) {
	task := RecalculateSummaryTask{UserID: 1}
	cfg := task.Config()

	assert.Equal(t, "recalculate_summary", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Backoff)
	assert.Equal(t, time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

func TestCleanupAppliedOperationsTaskConfig(t *testing.T) {
	task := CleanupAppliedOperationsTask{}
	cfg := task.Config()

	assert.Equal(t, "cleanup_applied_operations", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.NotNil(t, cfg.Retention)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 720*time.Hour, cfg.RetentionDuration)
}
