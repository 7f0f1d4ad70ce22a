package main

import (
	"context"
	"fmt"
	"log"

	"github.com/siherrmann/resolver"
	"github.com/siherrmann/resolver/helper"
	"github.com/siherrmann/resolver/model"
)

// sampleNames mimics one batch of raw name strings as they arrive from a
// source document index: duplicates, spelling variants, an organization,
// a protected person and plain noise.
var sampleNames = []resolver.MentionInput{
	{RawName: "Jeffrey Epstein", SourceReference: "flight_log_001"},
	{RawName: "Jeffrey Epstein", SourceReference: "deposition_014"},
	{RawName: "Epstein, Jeffrey", SourceReference: "contact_book_207"},
	{RawName: "Jon Smith", SourceReference: "flight_log_002"},
	{RawName: "John Smyth", SourceReference: "deposition_031"},
	{RawName: "Maxwell Trading Ltd.", SourceReference: "invoice_118"},
	{RawName: "Jane Doe", SourceReference: "filing_acc_009", Protected: true},
	{RawName: "Jane Doe", SourceReference: "deposition_002"},
	{RawName: "?", SourceReference: "contact_book_412"},
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	// Create database configuration using the container port
	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		User:     "postgres",
		Password: "password",
		Database: "resolver",
	}

	r, err := resolver.NewResolver(dbConfig, model.DefaultResolutionConfig())
	if err != nil {
		log.Fatalf("Failed to create resolver: %v", err)
	}
	defer r.Close()

	// Ingest the batch; invalid rows are skipped and counted
	fmt.Println("Ingesting mentions...")
	ingestReport, err := r.IngestBatch(sampleNames)
	if err != nil {
		log.Fatalf("Failed to ingest batch: %v", err)
	}
	fmt.Printf("Loaded %d mentions (%d skipped, %d parse failures)\n",
		ingestReport.MentionsLoaded, ingestReport.SkippedInvalid, ingestReport.ParseFailures)

	// Run one full resolution pass
	fmt.Println("\nResolving...")
	report, err := r.Resolve(context.Background())
	if err != nil {
		log.Fatalf("Failed to resolve: %v", err)
	}
	fmt.Printf("Blocks: %d, pairs: %d, merged: %d, review: %d, discarded: %d\n",
		report.Blocks, report.Pairs, report.Merged, report.Review, report.Discarded)
	fmt.Printf("Entities: %d (%d suppressed from public)\n", report.Entities, report.Suppressed)

	// The public projection hides suppressed entities and weak singletons
	public, err := r.PublicEntities()
	if err != nil {
		log.Fatalf("Failed to load public entities: %v", err)
	}

	fmt.Printf("\nPublic entities (%d):\n", len(public))
	for _, entity := range public {
		verified := ""
		if entity.IsVerified {
			verified = " [verified]"
		}
		fmt.Printf("  %s (%s, %d mentions)%s\n",
			entity.CanonicalName, entity.EntityType, len(entity.MemberMentionIDs), verified)
	}

	// Ambiguous pairs wait for a human decision instead of merging
	queue, err := r.ReviewQueue()
	if err != nil {
		log.Fatalf("Failed to load review queue: %v", err)
	}

	fmt.Printf("\nReview queue (%d):\n", len(queue))
	for _, decision := range queue {
		fmt.Printf("  %s <-> %s score %.3f (phonetic %.0f, edit %.2f)\n",
			decision.MentionA, decision.MentionB, decision.CompositeScore,
			decision.Signals.PhoneticMatch, decision.Signals.EditSimilarity)
	}

	fmt.Println("\nBasic example completed successfully!")
}
