// Package integration contains tests that exercise the PostgreSQL-backed
// stores against a real database. They skip when PostgreSQL is unavailable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/askcorpus/askcorpus/internal/corpus"
	corpuspg "github.com/askcorpus/askcorpus/internal/corpus/postgres"
	"github.com/askcorpus/askcorpus/pkg/config"
	apperrors "github.com/askcorpus/askcorpus/pkg/errors"
	"github.com/askcorpus/askcorpus/pkg/postgres"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	db, err := postgres.New(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := corpuspg.EnsureSchema(t.Context(), db); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return db
}

func testPostgresConfig() config.PostgresConfig {
	return config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "askcorpus_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "askcorpus"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// testURL returns a unique URL so tests can share the database.
func testURL(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("http://example.com/%s/%s", t.Name(), uuid.NewString())
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

// TestDocumentRoundTrip verifies insert, lookup, and existence checks against
// a real database.
func TestDocumentRoundTrip(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := corpuspg.NewDocumentStore(db)
	ctx := t.Context()
	url := testURL(t)

	exists, err := store.Exists(ctx, url)
	if err != nil {
		t.Fatalf("existence check failed: %v", err)
	}
	if exists {
		t.Fatalf("fresh url %s already exists", url)
	}

	doc := corpus.Document{ID: uuid.NewString(), URL: url, Title: "Board news", Content: "text"}
	if err := store.Insert(ctx, doc); err != nil {
		t.Fatalf("inserting document: %v", err)
	}

	got, err := store.GetByURL(ctx, url)
	if err != nil {
		t.Fatalf("querying by url: %v", err)
	}
	if got.ID != doc.ID || got.Title != doc.Title || got.Content != doc.Content {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, doc)
	}
}

// TestDuplicateURLRejectedByConstraint verifies that URL deduplication is
// enforced by the database, not by an application-level check.
func TestDuplicateURLRejectedByConstraint(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := corpuspg.NewDocumentStore(db)
	ctx := t.Context()
	url := testURL(t)

	first := corpus.Document{ID: uuid.NewString(), URL: url, Title: "first", Content: "a"}
	if err := store.Insert(ctx, first); err != nil {
		t.Fatalf("inserting first document: %v", err)
	}

	second := corpus.Document{ID: uuid.NewString(), URL: url, Title: "second", Content: "b"}
	err := store.Insert(ctx, second)
	if !errors.Is(err, apperrors.ErrDocumentExists) {
		t.Fatalf("expected ErrDocumentExists, got %v", err)
	}

	// The winner's row is untouched.
	got, err := store.GetByURL(ctx, url)
	if err != nil {
		t.Fatalf("querying by url: %v", err)
	}
	if got.ID != first.ID {
		t.Errorf("expected winner %s to survive, got %s", first.ID, got.ID)
	}
}

// TestConcurrentInsertsSingleWinner races inserts of the same URL and checks
// that exactly one succeeds.
func TestConcurrentInsertsSingleWinner(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := corpuspg.NewDocumentStore(db)
	ctx := t.Context()
	url := testURL(t)
	const racers = 8

	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := corpus.Document{ID: uuid.NewString(), URL: url, Title: "t", Content: "c"}
			errs[i] = store.Insert(ctx, doc)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, apperrors.ErrDocumentExists):
		default:
			t.Errorf("racer %d: unexpected error: %v", i, err)
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly 1 winner, got %d", winners)
	}
}

// TestAnswerInsertAndList verifies that recorded answers come back in
// recording order.
func TestAnswerInsertAndList(t *testing.T) {
	db := skipIfNoPostgres(t)
	store := corpuspg.NewAnswerStore(db)
	ctx := t.Context()

	before, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("counting answers: %v", err)
	}

	ans := corpus.Answer{
		ID:       uuid.NewString(),
		Question: "Who leads?",
		Answer:   "The chairman",
		Context:  "The board is represented by the chairman",
	}
	if err := store.Insert(ctx, ans); err != nil {
		t.Fatalf("inserting answer: %v", err)
	}

	after, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("counting answers: %v", err)
	}
	if after != before+1 {
		t.Errorf("expected count %d, got %d", before+1, after)
	}

	answers, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("listing answers: %v", err)
	}
	found := false
	for _, got := range answers {
		if got.ID == ans.ID {
			found = true
			if got.Question != ans.Question || got.Answer != ans.Answer || got.Context != ans.Context {
				t.Errorf("listing mismatch: got %+v, want %+v", got, ans)
			}
		}
	}
	if !found {
		t.Errorf("inserted answer %s missing from listing", ans.ID)
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
