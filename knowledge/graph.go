// Package knowledge mirrors the indexed corpus into Neo4j so answers can be
// enriched with provenance: how much of a document is indexed and which other
// documents share its type.
package knowledge

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Document struct {
	ID      string
	Path    string
	DocType string
	Chunks  []Chunk
}

type Chunk struct {
	ID    string
	Index int
	Text  string
}

// SyncDocument upserts a document node, its chunk nodes, and the relation to
// its DocType node. Stale chunk nodes from a previous build are removed first.
func SyncDocument(ctx context.Context, driver neo4j.DriverWithContext, doc Document) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	params := map[string]any{
		"id":       doc.ID,
		"path":     doc.Path,
		"doc_type": doc.DocType,
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
			MERGE (d:Document {id: $id})
			SET d.path = $path,
			    d.updated_at = datetime()
		`, params); err != nil {
			return nil, fmt.Errorf("upsert document node: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[r:OF_TYPE]->(:DocType)
			DELETE r
		`, params); err != nil {
			return nil, fmt.Errorf("remove stale type relation: %w", err)
		}
		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})
			MERGE (t:DocType {name: $doc_type})
			MERGE (d)-[:OF_TYPE]->(t)
		`, params); err != nil {
			return nil, fmt.Errorf("upsert type relation: %w", err)
		}

		if _, err := tx.Run(ctx, `
			MATCH (d:Document {id: $id})-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE c
		`, map[string]any{"id": doc.ID}); err != nil {
			return nil, fmt.Errorf("clear existing chunk nodes: %w", err)
		}

		for _, chunk := range doc.Chunks {
			if _, err := tx.Run(ctx, `
				MATCH (d:Document {id: $doc_id})
				MERGE (c:Chunk {id: $chunk_id})
				SET c.index = $chunk_index,
				    c.text = $chunk_text
				MERGE (d)-[:HAS_CHUNK {order: $chunk_index}]->(c)
			`, map[string]any{
				"doc_id":      doc.ID,
				"chunk_id":    chunk.ID,
				"chunk_index": chunk.Index,
				"chunk_text":  chunk.Text,
			}); err != nil {
				return nil, fmt.Errorf("upsert chunk node: %w", err)
			}
		}

		return nil, nil
	})

	if err == nil {
		// Orphaned DocType nodes survive rebuilds that drop a whole type.
		if _, cleanupErr := session.Run(ctx, `
			MATCH (t:DocType)
			WHERE NOT (t)<-[:OF_TYPE]-(:Document)
			DELETE t
		`, nil); cleanupErr != nil {
			err = cleanupErr
		}
	}

	return err
}

// Purge removes all corpus nodes.
func Purge(ctx context.Context, driver neo4j.DriverWithContext) error {
	if driver == nil {
		return fmt.Errorf("neo4j driver is nil")
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	queries := []string{
		"MATCH (d:Document) DETACH DELETE d",
		"MATCH (c:Chunk) DETACH DELETE c",
		"MATCH (t:DocType) DETACH DELETE t",
	}

	for _, query := range queries {
		result, err := session.Run(ctx, query, nil)
		if err != nil {
			return err
		}
		if _, err := result.Consume(ctx); err != nil {
			return err
		}
	}
	return nil
}
