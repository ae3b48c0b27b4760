package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication required (default)
	AuthModeToken AuthMode = "token" // Bearer token per user
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		Tasks
		Remote
		Sync
		Offline
	}

	HTTP struct {
		Port int32
		Host string
	}

	Global struct {
		ShutdownTimeoutInSeconds int
	}

	Database struct {
		Path string
	}

	Auth struct {
		Mode AuthMode
	}

	Tasks struct {
		Enabled           bool
		Workers           int
		ReleaseAfter      time.Duration
		CleanupInterval   time.Duration
		CleanupSchedule   string // Cron format: "0 * * * *" = hourly
		RetentionDuration time.Duration
	}

	// Remote configures the client's connection to the progress API.
	Remote struct {
		BaseURL string
		Token   string
		Timeout time.Duration
	}

	// Sync configures the reconciliation engine and connectivity monitor.
	Sync struct {
		Schedule       string // Cron format, e.g. "@every 1m"
		MaxRetries     int
		ProbeInterval  time.Duration
		DebounceWindow time.Duration
	}

	// Offline configures the client's durable store.
	Offline struct {
		DatabasePath   string
		CacheRetention time.Duration
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// Auth defaults
	v.SetDefault("auth_mode", "none")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")
	v.SetDefault("task_cleanup_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("task_retention_duration", "720h")    // 30 days of applied-operation history

	// Remote API defaults
	v.SetDefault("remote_base_url", "http://localhost:8190")
	v.SetDefault("remote_token", "")
	v.SetDefault("remote_timeout", "10s")

	// Sync engine defaults
	v.SetDefault("sync_schedule", "@every 1m")
	v.SetDefault("sync_max_retries", 5)
	v.SetDefault("sync_probe_interval", "15s")
	v.SetDefault("sync_debounce_window", "2s")

	// Offline store defaults
	v.SetDefault("offline_database_path", DefaultOfflineDatabasePath)
	v.SetDefault("offline_cache_retention", "168h") // 7 days

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Auth: Auth{
			Mode: AuthMode(v.GetString("AUTH_MODE")),
		},
		Tasks: Tasks{
			Enabled:           v.GetBool("TASKS_ENABLED"),
			Workers:           v.GetInt("TASK_WORKERS"),
			ReleaseAfter:      v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval:   v.GetDuration("TASK_CLEANUP_INTERVAL"),
			CleanupSchedule:   v.GetString("TASK_CLEANUP_SCHEDULE"),
			RetentionDuration: v.GetDuration("TASK_RETENTION_DURATION"),
		},
		Remote: Remote{
			BaseURL: v.GetString("REMOTE_BASE_URL"),
			Token:   v.GetString("REMOTE_TOKEN"),
			Timeout: v.GetDuration("REMOTE_TIMEOUT"),
		},
		Sync: Sync{
			Schedule:       v.GetString("SYNC_SCHEDULE"),
			MaxRetries:     v.GetInt("SYNC_MAX_RETRIES"),
			ProbeInterval:  v.GetDuration("SYNC_PROBE_INTERVAL"),
			DebounceWindow: v.GetDuration("SYNC_DEBOUNCE_WINDOW"),
		},
		Offline: Offline{
			DatabasePath:   v.GetString("OFFLINE_DATABASE_PATH"),
			CacheRetention: v.GetDuration("OFFLINE_CACHE_RETENTION"),
		},
	}
}
