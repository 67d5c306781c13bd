// Package store persists embedded corpus chunks in Postgres/pgvector and
// serves nearest-neighbor retrieval over them. A build is a full, destructive
// rebuild; the embedding model identifier is recorded alongside the data and
// validated when the store is opened, since querying with a different model
// degrades relevance without any error signal.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/pgvector/pgvector-go"

	"github.com/oilwell/docbot/chunker"
	"github.com/oilwell/docbot/database"
	"github.com/oilwell/docbot/embeddings"
	"github.com/oilwell/docbot/knowledge"
)

const DefaultRetrieveLimit = 3

var (
	// ErrNotFound reports that no persisted store exists yet.
	ErrNotFound = errors.New("no vector store found")
	// ErrModelMismatch reports that the persisted store was built with a
	// different embedding model than the one configured now.
	ErrModelMismatch = errors.New("vector store embedding model mismatch")
)

// Result is one retrieved chunk with its similarity score, higher is closer.
type Result struct {
	ChunkID    string
	DocumentID string
	SourcePath string
	DocType    string
	Content    string
	Score      float64
}

type Store struct {
	pool      *pgxpool.Pool
	driver    neo4j.DriverWithContext
	embedder  embeddings.Embedder
	logger    *log.Logger
	dimension int

	// buildMu holds rebuilds exclusively while retrieval and doc-type
	// discovery share it; a destructive rebuild drops the tables a
	// concurrent read would otherwise hit mid-query.
	buildMu sync.RWMutex
}

// New constructs a store. The neo4j driver is optional; when nil, no
// knowledge-graph sync happens during builds.
func New(pool *pgxpool.Pool, driver neo4j.DriverWithContext, embedder embeddings.Embedder, logger *log.Logger, dimension int) *Store {
	if logger == nil {
		logger = log.Default()
	}

	return &Store{
		pool:      pool,
		driver:    driver,
		embedder:  embedder,
		logger:    logger,
		dimension: dimension,
	}
}

// Build discards any persisted store and re-embeds and re-persists the given
// chunks. Chunks are grouped per source document so provenance survives.
func (s *Store) Build(ctx context.Context, chunks []chunker.Chunk) error {
	if s.embedder == nil {
		return fmt.Errorf("embedder not configured")
	}
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := database.DropCorpusSchema(ctx, s.pool); err != nil {
		return fmt.Errorf("drop existing store: %w", err)
	}
	if err := database.EnsureCorpusSchema(ctx, s.pool, s.dimension); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO corpus_meta (embedding_model, dimension) VALUES ($1, $2)
	`, s.embedder.Model(), s.dimension); err != nil {
		return fmt.Errorf("record store metadata: %w", err)
	}

	docs := groupBySource(chunks)
	for _, doc := range docs {
		if err := s.persistDocument(ctx, doc); err != nil {
			return err
		}
	}

	s.logger.Printf("vector store built with %d chunks across %d documents", len(chunks), len(docs))
	return nil
}

type sourceDocument struct {
	path    string
	docType string
	chunks  []chunker.Chunk
}

func groupBySource(chunks []chunker.Chunk) []sourceDocument {
	grouped := make(map[string]*sourceDocument, 8)
	order := make([]string, 0, 8)
	for _, chunk := range chunks {
		doc, ok := grouped[chunk.SourcePath]
		if !ok {
			doc = &sourceDocument{path: chunk.SourcePath, docType: chunk.DocType}
			grouped[chunk.SourcePath] = doc
			order = append(order, chunk.SourcePath)
		}
		doc.chunks = append(doc.chunks, chunk)
	}

	docs := make([]sourceDocument, 0, len(order))
	for _, path := range order {
		doc := grouped[path]
		sort.Slice(doc.chunks, func(i, j int) bool { return doc.chunks[i].Index < doc.chunks[j].Index })
		docs = append(docs, *doc)
	}
	return docs
}

func (s *Store) persistDocument(ctx context.Context, doc sourceDocument) (err error) {
	texts := make([]string, len(doc.chunks))
	for i, chunk := range doc.chunks {
		texts[i] = chunk.Text
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed %s: %w", doc.path, err)
	}
	if len(vectors) != len(doc.chunks) {
		return fmt.Errorf("embedding count mismatch for %s: have %d chunks, %d vectors", doc.path, len(doc.chunks), len(vectors))
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				s.logger.Printf("rollback error: %v", rbErr)
			}
		}
	}()

	docID := uuid.New()
	if _, err = tx.Exec(ctx, `
		INSERT INTO corpus_documents (id, source_path, doc_type, created_at)
		VALUES ($1, $2, $3, NOW())
	`, docID, doc.path, doc.docType); err != nil {
		return fmt.Errorf("insert document %s: %w", doc.path, err)
	}

	graphChunks := make([]knowledge.Chunk, 0, len(doc.chunks))
	for i, chunk := range doc.chunks {
		chunkID := uuid.New()
		if _, err = tx.Exec(ctx, `
			INSERT INTO corpus_chunks (id, document_id, chunk_index, doc_type, content, embedding, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, NOW())
		`, chunkID, docID, chunk.Index, chunk.DocType, chunk.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("insert chunk %d of %s: %w", chunk.Index, doc.path, err)
		}
		graphChunks = append(graphChunks, knowledge.Chunk{
			ID:    chunkID.String(),
			Index: chunk.Index,
			Text:  chunk.Text,
		})
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", doc.path, err)
	}

	if s.driver != nil {
		graphDoc := knowledge.Document{
			ID:      docID.String(),
			Path:    doc.path,
			DocType: doc.docType,
			Chunks:  graphChunks,
		}
		if syncErr := knowledge.SyncDocument(ctx, s.driver, graphDoc); syncErr != nil {
			// Graph insights are best effort; a graph outage must not
			// fail the build.
			s.logger.Printf("knowledge graph sync failed for %s: %v", doc.path, syncErr)
		}
	}

	s.logger.Printf("indexed %s (%d chunks, type %s)", doc.path, len(doc.chunks), doc.docType)
	return nil
}

// Open verifies that a persisted store exists and was built with the
// configured embedding model.
func (s *Store) Open(ctx context.Context) error {
	if s.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	var model string
	var dimension int
	err := s.pool.QueryRow(ctx, "SELECT embedding_model, dimension FROM corpus_meta").Scan(&model, &dimension)
	if err != nil {
		if isMissingStore(err) {
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		// Connection and permission failures are storage faults, not an
		// absent store; reporting them as NotFound would tell the operator
		// to rebuild when the database is simply down.
		return fmt.Errorf("open store metadata: %w", err)
	}

	if s.embedder != nil && model != s.embedder.Model() {
		return fmt.Errorf("%w: store built with %s, configured %s", ErrModelMismatch, model, s.embedder.Model())
	}
	if s.dimension > 0 && dimension != s.dimension {
		return fmt.Errorf("%w: store dimension %d, configured %d", ErrModelMismatch, dimension, s.dimension)
	}

	return nil
}

// isMissingStore distinguishes "never built" from real storage faults: only
// an empty corpus_meta (no rows) or an absent corpus_meta table (undefined
// table, SQLSTATE 42P01) mean there is no store to open.
func isMissingStore(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// Retrieve embeds the query with the store's own embedder and returns the k
// most similar chunks, best first. A non-empty docType restricts results to
// chunks of that type. k <= 0 uses DefaultRetrieveLimit.
func (s *Store) Retrieve(ctx context.Context, query, docType string, k int) ([]Result, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	if k <= 0 {
		k = DefaultRetrieveLimit
	}

	s.buildMu.RLock()
	defer s.buildMu.RUnlock()

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedder returned no vectors")
	}

	return s.similarChunks(ctx, vectors[0], docType, k)
}

func (s *Store) similarChunks(ctx context.Context, embedding []float32, docType string, limit int) ([]Result, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	probes := limit * 10
	if probes < 10 {
		probes = 10
	}
	if _, err := conn.Exec(ctx, fmt.Sprintf("SET ivfflat.probes = %d", probes)); err != nil {
		return nil, fmt.Errorf("set ivfflat probes: %w", err)
	}

	query := `
        SELECT
            cc.id,
            cc.document_id,
            cd.source_path,
            cc.doc_type,
            cc.content,
            (cc.embedding <-> $1::vector) AS distance
        FROM corpus_chunks cc
        JOIN corpus_documents cd ON cd.id = cc.document_id
        ORDER BY cc.embedding <-> $1::vector
        LIMIT $2
    `
	args := []any{pgvector.NewVector(embedding), limit}
	if docType != "" {
		query = `
        SELECT
            cc.id,
            cc.document_id,
            cd.source_path,
            cc.doc_type,
            cc.content,
            (cc.embedding <-> $1::vector) AS distance
        FROM corpus_chunks cc
        JOIN corpus_documents cd ON cd.id = cc.document_id
        WHERE cc.doc_type = $3
        ORDER BY cc.embedding <-> $1::vector
        LIMIT $2
    `
		args = append(args, docType)
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query similar chunks: %w", err)
	}
	defer rows.Close()

	results := make([]Result, 0, limit)
	for rows.Next() {
		var item Result
		var distance float64
		if scanErr := rows.Scan(&item.ChunkID, &item.DocumentID, &item.SourcePath, &item.DocType, &item.Content, &distance); scanErr != nil {
			return nil, fmt.Errorf("scan similar chunk: %w", scanErr)
		}
		item.Score = 1 / (1 + distance)
		results = append(results, item)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return results, nil
}

// DocTypes returns the distinct doc types present in the store. It is used
// for best-effort intent-scope discovery and never fails: on any error or an
// empty store it returns {"general"}.
func (s *Store) DocTypes(ctx context.Context) []string {
	if s.pool == nil {
		return []string{"general"}
	}

	s.buildMu.RLock()
	defer s.buildMu.RUnlock()

	rows, err := s.pool.Query(ctx, "SELECT DISTINCT doc_type FROM corpus_chunks ORDER BY doc_type")
	if err != nil {
		s.logger.Printf("doc type discovery failed: %v", err)
		return []string{"general"}
	}
	defer rows.Close()

	types := make([]string, 0, 4)
	for rows.Next() {
		var docType string
		if err := rows.Scan(&docType); err != nil {
			s.logger.Printf("doc type scan failed: %v", err)
			return []string{"general"}
		}
		if docType != "" {
			types = append(types, docType)
		}
	}
	if rows.Err() != nil || len(types) == 0 {
		return []string{"general"}
	}

	return types
}

// Clear drops the persisted store entirely, including the graph mirror.
func (s *Store) Clear(ctx context.Context) error {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	if err := database.DropCorpusSchema(ctx, s.pool); err != nil {
		return err
	}
	if s.driver != nil {
		if err := knowledge.Purge(ctx, s.driver); err != nil {
			s.logger.Printf("knowledge graph purge failed: %v", err)
		}
	}
	return nil
}
