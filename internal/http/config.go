package http

import (
	"github.com/avolkau/studysync/internal/config"
	"github.com/avolkau/studysync/internal/database"
	"github.com/avolkau/studysync/internal/tasks"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router. This replaces a long parameter list
// in NewRouter for better maintainability.
type RouterConfig struct {
	// Core dependencies
	Database      *database.Database
	ProgressStore ProgressStore

	// Authentication
	AuthMode      config.AuthMode
	DefaultUserID uint // injected when auth is disabled

	// Task queue client (optional)
	TaskClient *tasks.Client

	// Application info
	Version string
}
