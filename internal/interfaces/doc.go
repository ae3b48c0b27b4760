// Package interfaces documents the core abstractions used throughout the application.
//
// This package consolidates interface documentation to help contributors
// understand extension points and how to implement new functionality.
//
// # Interface Categories
//
// The application uses several categories of interfaces:
//
// ## Data Access Interfaces
//
//   - ProgressStore: Progress record CRUD and the applied-operation ledger (internal/http/progress.go)
//   - UserStore: Token-to-user resolution for bearer auth (internal/http/auth.go)
//
// ## Synchronization Interfaces
//
//   - Remote: Operation submission to the remote authority (internal/sync/engine.go)
//   - Connectivity: Committed reachability state (internal/sync/engine.go, internal/offline/client.go)
//   - Prober: Liveness checks against the remote authority (internal/connectivity/monitor.go)
//
// ## Background Task Interfaces
//
//   - SummaryRecalculator: Per-user progress rollups (internal/tasks/summarize.go)
//   - AppliedOperationCleaner: Ledger retention (internal/tasks/cleanup_applied.go)
//
// # Adding a New Background Task
//
// To add a new task type:
//
//  1. Define the task and its queue in internal/tasks/
//
//     type RebuildIndexTask struct {
//         UserID uint `json:"user_id"`
//     }
//
//     func (t RebuildIndexTask) Config() backlite.QueueConfig {
//         return backlite.QueueConfig{Name: "rebuild_index", ...}
//     }
//
//  2. Define the narrow interface the processor needs and accept it in the
//     queue constructor
//
//  3. Register the queue in entrypoint.go and expose it in the tasks
//     controller's type list
//
// # Adding a New Database Domain
//
// To add a new data domain:
//
//  1. Create sub-package: internal/database/<domain>/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Implement interface methods
//
//  4. Add compile-time check:
//
//     var _ SomeStore = (*Repository)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// This pattern is used throughout the codebase. See checks.go for examples.
package interfaces
