// Command seed-demo creates a demo database with sample study progress.
// Usage: go run cmd/seed-demo/main.go [-db path/to/demo.db]
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/avolkau/studysync/internal/database"
	"github.com/avolkau/studysync/internal/database/progress"
)

const defaultDemoDatabasePath = "./demo/demo.db"

type chapterSeed struct {
	ChapterID  string
	SectionID  string
	Percentage int
	DaysAgo    int
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	user, err := db.DefaultUser()
	if err != nil {
		log.Fatalf("Failed to load default user: %v", err)
	}

	repo := progress.NewRepository(db.DB)
	now := time.Now()

	for _, seed := range demoChapters() {
		at := now.AddDate(0, 0, -seed.DaysAgo)
		record, err := repo.UpsertRecord(user.ID, seed.ChapterID, seed.SectionID, seed.Percentage, at)
		if err != nil {
			log.Printf("Failed to seed chapter %s: %v", seed.ChapterID, err)
			continue
		}
		log.Printf("Seeded: %s at %d%% (%s)", record.ChapterID, record.CompletionPercentage, record.Status)
	}

	summary, err := repo.RecalculateSummary(user.ID)
	if err != nil {
		log.Fatalf("Failed to compute summary: %v", err)
	}
	log.Printf("Summary: %d started, %d completed, %.1f%% average",
		summary.ChaptersStarted, summary.ChaptersCompleted, summary.AveragePercentage)

	log.Println("Demo database generated successfully!")
	log.Printf("API token for user %q: %s", user.Username, user.Token)
}

func demoChapters() []chapterSeed {
	return []chapterSeed{
		{ChapterID: "go-basics", SectionID: "variables", Percentage: 100, DaysAgo: 21},
		{ChapterID: "go-functions", SectionID: "closures", Percentage: 100, DaysAgo: 18},
		{ChapterID: "go-structs", SectionID: "methods", Percentage: 100, DaysAgo: 14},
		{ChapterID: "go-interfaces", SectionID: "type-assertions", Percentage: 85, DaysAgo: 10},
		{ChapterID: "go-errors", SectionID: "wrapping", Percentage: 60, DaysAgo: 7},
		{ChapterID: "go-concurrency", SectionID: "channels", Percentage: 35, DaysAgo: 4},
		{ChapterID: "go-generics", SectionID: "", Percentage: 10, DaysAgo: 2},
		{ChapterID: "go-testing", SectionID: "", Percentage: 0, DaysAgo: 1},
	}
}
