package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureCorpusSchema creates the pgvector extension and the corpus tables.
// corpus_meta holds exactly one row describing the embedding model the store
// was built with; retrieval with a different model silently degrades, so the
// store refuses to open on a mismatch.
func EnsureCorpusSchema(ctx context.Context, pool *pgxpool.Pool, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("embedding dimension must be positive")
	}

	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		`CREATE TABLE IF NOT EXISTS corpus_meta (
			id BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
			embedding_model TEXT NOT NULL,
			dimension INT NOT NULL,
			built_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS corpus_documents (
			id UUID PRIMARY KEY,
			source_path TEXT UNIQUE NOT NULL,
			doc_type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS corpus_chunks (
			id UUID PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES corpus_documents(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			doc_type TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding VECTOR(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(document_id, chunk_index)
		)`, dimension),
		"CREATE INDEX IF NOT EXISTS idx_corpus_chunks_document ON corpus_chunks(document_id)",
		"CREATE INDEX IF NOT EXISTS idx_corpus_chunks_doc_type ON corpus_chunks(doc_type)",
		"CREATE INDEX IF NOT EXISTS idx_corpus_chunks_embedding ON corpus_chunks USING ivfflat (embedding vector_l2_ops)",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	return nil
}

// DropCorpusSchema removes the corpus tables. Used by the destructive
// rebuild and by the clear command.
func DropCorpusSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		"DROP TABLE IF EXISTS corpus_chunks",
		"DROP TABLE IF EXISTS corpus_documents",
		"DROP TABLE IF EXISTS corpus_meta",
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("drop schema statement: %w", err)
		}
	}

	return nil
}
