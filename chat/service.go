// Package chat orchestrates a single conversational turn: intent routing,
// retrieval, prompt rendering, and answer generation.
package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/oilwell/docbot/intent"
	"github.com/oilwell/docbot/llm"
	"github.com/oilwell/docbot/prompts"
	"github.com/oilwell/docbot/store"
)

const snippetLimit = 500

type VectorStore interface {
	Retrieve(ctx context.Context, query, docType string, k int) ([]store.Result, error)
	DocTypes(ctx context.Context) []string
}

type GraphStore interface {
	DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error)
}

type IntentClassifier interface {
	Classify(ctx context.Context, question string, knownTypes []string) (string, error)
}

type Service struct {
	vectors    VectorStore
	graph      GraphStore
	classifier IntentClassifier
	prompts    *prompts.Manager
	llm        llm.Client
	logger     *log.Logger
}

type Config struct {
	RetrieveLimit int
}

func NewService(vectors VectorStore, graph GraphStore, classifier IntentClassifier, promptMgr *prompts.Manager, llmClient llm.Client, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if promptMgr == nil {
		promptMgr = prompts.NewManager()
	}

	return &Service{
		vectors:    vectors,
		graph:      graph,
		classifier: classifier,
		prompts:    promptMgr,
		llm:        llmClient,
		logger:     logger,
	}
}

// Answer runs one turn against the caller-supplied history. Classification
// faults degrade to the general persona; retrieval and generation faults are
// fatal to the turn.
func (s *Service) Answer(ctx context.Context, question string, history []Turn, cfg Config) (Response, error) {
	return s.answer(ctx, question, history, cfg, nil)
}

// AnswerStream behaves like Answer but delivers the generated text through
// streamFn as it arrives when the underlying client supports streaming;
// otherwise streamFn receives the full answer once.
func (s *Service) AnswerStream(ctx context.Context, question string, history []Turn, cfg Config, streamFn func(string) error) (Response, error) {
	return s.answer(ctx, question, history, cfg, streamFn)
}

func (s *Service) answer(ctx context.Context, question string, history []Turn, cfg Config, streamFn func(string) error) (Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Response{}, fmt.Errorf("question cannot be empty")
	}
	if s.vectors == nil {
		return Response{}, fmt.Errorf("vector store is not configured")
	}
	if s.llm == nil {
		return Response{}, fmt.Errorf("llm client is not configured")
	}

	limit := cfg.RetrieveLimit
	if limit <= 0 {
		limit = store.DefaultRetrieveLimit
	}

	knownTypes := s.vectors.DocTypes(ctx)

	label := intent.General
	if s.classifier != nil {
		classified, err := s.classifier.Classify(ctx, question, knownTypes)
		if err != nil {
			// The only place classification faults are absorbed. Logged
			// so an outage is visible to operators, invisible to users.
			s.logger.Printf("intent classification degraded to %q: %v", intent.General, err)
		} else {
			label = classified
		}
	}

	// The general label means no type scope; anything else narrows
	// retrieval to the routed document type.
	typeFilter := ""
	if label != intent.General {
		typeFilter = label
	}

	results, err := s.vectors.Retrieve(ctx, question, typeFilter, limit)
	if err != nil {
		return Response{}, fmt.Errorf("retrieve context: %w", err)
	}

	prompt := s.prompts.Get(label).Render(
		joinContext(results),
		SerializeHistory(history),
		question,
	)

	var answer string
	if streamFn != nil {
		answer, err = s.generateStream(ctx, prompt, streamFn)
	} else {
		answer, err = s.llm.Generate(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}})
	}
	if err != nil {
		return Response{}, fmt.Errorf("llm generate: %w", err)
	}
	answer = strings.TrimSpace(answer)

	updated := make([]Turn, 0, len(history)+2)
	updated = append(updated, history...)
	updated = append(updated,
		Turn{Role: llm.RoleUser, Content: question},
		Turn{Role: llm.RoleAssistant, Content: answer},
	)

	return Response{
		Answer:  answer,
		Intent:  label,
		Sources: s.mergeSources(ctx, results),
		History: updated,
	}, nil
}

func (s *Service) generateStream(ctx context.Context, prompt string, streamFn func(string) error) (string, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}

	if streamClient, ok := s.llm.(llm.StreamClient); ok {
		var builder strings.Builder
		err := streamClient.GenerateStream(ctx, messages, func(piece string) error {
			if piece == "" {
				return nil
			}
			builder.WriteString(piece)
			return streamFn(piece)
		})
		if err != nil {
			return "", err
		}
		return builder.String(), nil
	}

	answer, err := s.llm.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	if err := streamFn(answer); err != nil {
		return "", err
	}
	return answer, nil
}

func (s *Service) mergeSources(ctx context.Context, results []store.Result) []Source {
	if len(results) == 0 {
		return nil
	}

	insights := map[string]DocumentInsight{}
	if s.graph != nil {
		docIDs := make([]string, 0, len(results))
		for _, result := range results {
			docIDs = append(docIDs, result.DocumentID)
		}
		insightMap, err := s.graph.DocumentInsights(ctx, unique(docIDs))
		if err != nil {
			s.logger.Printf("graph insights error: %v", err)
		} else {
			insights = insightMap
		}
	}

	grouped := make(map[string]*Source, len(results))
	order := make([]string, 0, len(results))
	for _, result := range results {
		source, ok := grouped[result.DocumentID]
		if !ok {
			source = &Source{
				DocumentID: result.DocumentID,
				SourcePath: result.SourcePath,
				DocType:    result.DocType,
				Score:      result.Score,
			}
			grouped[result.DocumentID] = source
			order = append(order, result.DocumentID)
		} else if result.Score > source.Score {
			source.Score = result.Score
		}

		snippet := strings.TrimSpace(result.Content)
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit] + "..."
		}
		if source.Snippet == "" {
			source.Snippet = snippet
		} else if !strings.Contains(source.Snippet, snippet) {
			source.Snippet += "\n---\n" + snippet
		}

		if insight, ok := insights[result.DocumentID]; ok {
			source.Insight = insight
		}
	}

	sources := make([]Source, 0, len(order))
	for _, id := range order {
		sources = append(sources, *grouped[id])
	}
	sort.Slice(sources, func(i, j int) bool {
		return sources[i].Score > sources[j].Score
	})

	return sources
}

func joinContext(results []store.Result) string {
	if len(results) == 0 {
		return "(no relevant documents found)"
	}

	var sb strings.Builder
	for i, result := range results {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(strings.TrimSpace(result.Content))
	}
	return sb.String()
}

// SerializeHistory renders caller turns for the {chat_history} prompt slot.
func SerializeHistory(history []Turn) string {
	if len(history) == 0 {
		return "(no prior conversation)"
	}

	var sb strings.Builder
	for i, turn := range history {
		if i > 0 {
			sb.WriteString("\n")
		}
		switch turn.Role {
		case llm.RoleAssistant:
			sb.WriteString("Assistant: ")
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(strings.TrimSpace(turn.Content))
	}
	return sb.String()
}

func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
