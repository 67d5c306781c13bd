package store

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"testing"

	"github.com/oilwell/docbot/chunker"
	"github.com/oilwell/docbot/config"
	"github.com/oilwell/docbot/database"
)

// TestBuildOpenRetrieveRoundTrip rebuilds the corpus schema destructively in
// the configured database. Keep the guard variable unset on anything but a
// throwaway instance.
func TestBuildOpenRetrieveRoundTrip(t *testing.T) {
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database connectivity checks")
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		t.Fatalf("postgres connection: %v", err)
	}
	defer pool.Close()

	const dim = 8
	makeVector := func(weight float32) []float32 {
		vec := make([]float32, dim)
		vec[0] = weight
		return vec
	}

	policyText := "Safety reviews happen annually across every site."
	employeeText := "Jane Smith is the company safety officer."
	query := "when are safety reviews held"

	emb := &fixedEmbedder{
		dim:   dim,
		model: "test/fixed-8",
		vectors: map[string][]float32{
			policyText:   makeVector(1.0),
			employeeText: makeVector(0.4),
			query:        makeVector(0.9),
		},
	}

	logger := log.New(io.Discard, "", 0)
	s := New(pool, nil, emb, logger, dim)

	chunks := []chunker.Chunk{
		{Text: policyText, DocType: "policies", SourcePath: "generated_docs/policies/safety.md", Index: 0},
		{Text: employeeText, DocType: "employees", SourcePath: "generated_docs/employees/jane.md", Index: 0},
	}

	if err := s.Build(ctx, chunks); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.Open(ctx); err != nil {
		t.Fatalf("open after build: %v", err)
	}

	results, err := s.Retrieve(ctx, query, "", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected exactly 2 results, got %d", len(results))
	}
	if results[0].Content != policyText {
		t.Fatalf("expected closest chunk first, got %q", results[0].Content)
	}
	if results[0].Score <= results[1].Score {
		t.Fatalf("results not in descending score order: %f <= %f", results[0].Score, results[1].Score)
	}

	scoped, err := s.Retrieve(ctx, query, "employees", 2)
	if err != nil {
		t.Fatalf("scoped retrieve: %v", err)
	}
	if len(scoped) != 1 || scoped[0].DocType != "employees" {
		t.Fatalf("doc type scope not applied: %+v", scoped)
	}

	types := s.DocTypes(ctx)
	if len(types) != 2 {
		t.Fatalf("expected 2 doc types, got %v", types)
	}

	// A store opened with a different encoder must refuse to serve.
	other := New(pool, nil, &fixedEmbedder{dim: dim, model: "test/other-8"}, logger, dim)
	if err := other.Open(ctx); !errors.Is(err, ErrModelMismatch) {
		t.Fatalf("expected ErrModelMismatch, got %v", err)
	}
}
