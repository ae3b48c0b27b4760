package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/avolkau/studysync/internal/connectivity"
	"github.com/avolkau/studysync/internal/database"
	"github.com/avolkau/studysync/internal/database/progress"
	"github.com/avolkau/studysync/internal/http"
	"github.com/avolkau/studysync/internal/offline"
	"github.com/avolkau/studysync/internal/progressapi"
	syncengine "github.com/avolkau/studysync/internal/sync"
	"github.com/avolkau/studysync/internal/tasks"
)

// =============================================================================
// Data Access Layer
// =============================================================================

// ProgressStore implementations
var _ http.ProgressStore = (*progress.Repository)(nil)

// UserStore implementations
var _ http.UserStore = (*database.Database)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

// SummaryRecalculator implementations
var _ tasks.SummaryRecalculator = (*progress.Repository)(nil)

// AppliedOperationCleaner implementations
var _ tasks.AppliedOperationCleaner = (*progress.Repository)(nil)

// =============================================================================
// Synchronization
// =============================================================================

// Remote implementations
var _ syncengine.Remote = (*progressapi.Client)(nil)

// Prober implementations
var _ connectivity.Prober = (*progressapi.Client)(nil)

// Connectivity implementations
var _ syncengine.Connectivity = (*connectivity.Monitor)(nil)
var _ offline.Connectivity = (*connectivity.Monitor)(nil)
