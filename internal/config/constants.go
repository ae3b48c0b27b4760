package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the server-side progress database
	DefaultDatabasePath = "./studysync.db"

	// DefaultOfflineDatabasePath is the default path for the client-side offline store
	DefaultOfflineDatabasePath = "./studysync-offline.db"
)
