package chat

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

type Neo4jGraphStore struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jGraphStore(driver neo4j.DriverWithContext) *Neo4jGraphStore {
	return &Neo4jGraphStore{driver: driver}
}

// DocumentInsights reports, per document, how many chunks are indexed and
// which other documents share its doc type.
func (s *Neo4jGraphStore) DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error) {
	if s.driver == nil {
		return nil, fmt.Errorf("neo4j driver is nil")
	}
	if len(docIDs) == 0 {
		return map[string]DocumentInsight{}, nil
	}

	session := s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (d:Document)
		WHERE d.id IN $ids
		OPTIONAL MATCH (d)-[:HAS_CHUNK]->(c:Chunk)
		OPTIONAL MATCH (d)-[:OF_TYPE]->(t:DocType)
		OPTIONAL MATCH (t)<-[:OF_TYPE]-(related:Document)
		WITH d,
		     count(DISTINCT c) AS chunkCount,
		     head(collect(DISTINCT t.name)) AS docType,
		     collect(DISTINCT related) AS relatedNodes
		RETURN d.id AS id,
		       chunkCount,
		       docType,
		       [r IN relatedNodes WHERE r IS NOT NULL AND r.id <> d.id | {id: r.id, path: r.path}] AS relatedDocuments
	`, map[string]any{"ids": docIDs})
	if err != nil {
		return nil, fmt.Errorf("query document insights: %w", err)
	}

	insights := make(map[string]DocumentInsight, len(docIDs))
	for result.Next(ctx) {
		record := result.Record()

		id, _ := record.Get("id")
		docID, ok := id.(string)
		if !ok {
			continue
		}

		insight := DocumentInsight{}
		if raw, found := record.Get("chunkCount"); found {
			if count, ok := raw.(int64); ok {
				insight.ChunkCount = int(count)
			}
		}
		if raw, found := record.Get("docType"); found {
			if docType, ok := raw.(string); ok {
				insight.DocType = docType
			}
		}
		if raw, found := record.Get("relatedDocuments"); found {
			if entries, ok := raw.([]any); ok {
				for _, entry := range entries {
					fields, ok := entry.(map[string]any)
					if !ok {
						continue
					}
					related := RelatedDocument{}
					if v, ok := fields["id"].(string); ok {
						related.ID = v
					}
					if v, ok := fields["path"].(string); ok {
						related.Path = v
					}
					if related.ID != "" {
						insight.RelatedDocuments = append(insight.RelatedDocuments, related)
					}
				}
			}
		}

		insights[docID] = insight
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("read document insights: %w", err)
	}

	return insights, nil
}

var _ GraphStore = (*Neo4jGraphStore)(nil)
