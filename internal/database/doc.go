// Package database provides the data access layer for the progress
// authority.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, migrations, default user seeding
//	└── progress/        # Progress records, applied-operation ledger, summaries
//
// # Using Sub-packages
//
// Each sub-package provides a Repository type with domain-specific operations:
//
//	// Initialize database connection
//	db, err := database.NewDatabase("./studysync.db")
//
//	// Create domain-specific repositories
//	progressRepo := progress.NewRepository(db.DB)
//
//	// Use repositories
//	record, err := progressRepo.GetRecord(userID, chapterID)
//
// # Interface Implementations
//
// Each sub-package implements specific interfaces:
//
//   - progress.Repository: implements http.ProgressStore,
//     tasks.SummaryRecalculator and tasks.AppliedOperationCleaner
//
// The main Database struct in database.go owns the connection, migrations
// and user accounts; it implements http.UserStore for token auth.
//
// # Adding a New Domain
//
// To add a new data domain:
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Implement the required interface
//  5. Add compile-time interface check: var _ SomeInterface = (*Repository)(nil)
package database
