package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/oilwell/docbot/llm"
	"github.com/oilwell/docbot/prompts"
	"github.com/oilwell/docbot/store"
)

type stubVectorStore struct {
	mu         sync.Mutex
	results    []store.Result
	docTypes   []string
	err        error
	lastFilter string
}

func (s *stubVectorStore) Retrieve(ctx context.Context, query, docType string, k int) ([]store.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.lastFilter = docType
	s.mu.Unlock()
	if k > 0 && len(s.results) > k {
		return s.results[:k], nil
	}
	return s.results, nil
}

func (s *stubVectorStore) DocTypes(ctx context.Context) []string {
	if len(s.docTypes) == 0 {
		return []string{"general"}
	}
	return s.docTypes
}

var _ VectorStore = (*stubVectorStore)(nil)

type stubGraphStore struct {
	data map[string]DocumentInsight
	err  error
}

func (s *stubGraphStore) DocumentInsights(ctx context.Context, docIDs []string) (map[string]DocumentInsight, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.data == nil {
		return map[string]DocumentInsight{}, nil
	}
	return s.data, nil
}

var _ GraphStore = (*stubGraphStore)(nil)

type stubClassifier struct {
	label string
	err   error
}

func (s *stubClassifier) Classify(ctx context.Context, question string, knownTypes []string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.label, nil
}

var _ IntentClassifier = (*stubClassifier)(nil)

type stubLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (s *stubLLM) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(messages) == 0 {
		return "", errors.New("no messages provided")
	}
	s.mu.Lock()
	s.prompts = append(s.prompts, messages[len(messages)-1].Content)
	s.mu.Unlock()
	return s.answer, nil
}

var _ llm.Client = (*stubLLM)(nil)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func policyResults() []store.Result {
	return []store.Result{
		{
			ChunkID:    "chunk-1",
			DocumentID: "doc-1",
			SourcePath: "generated_docs/policies/safety.md",
			DocType:    "policies",
			Content:    "The safety policy is reviewed annually by HSE.",
			Score:      0.92,
		},
		{
			ChunkID:    "chunk-2",
			DocumentID: "doc-1",
			SourcePath: "generated_docs/policies/safety.md",
			DocType:    "policies",
			Content:    "All field staff must complete the safety induction.",
			Score:      0.81,
		},
	}
}

func TestAnswerRoutesRetrievesAndGenerates(t *testing.T) {
	generator := &stubLLM{answer: "The review cycle is annual."}
	vectors := &stubVectorStore{results: policyResults(), docTypes: []string{"policies", "employees"}}
	svc := NewService(
		vectors,
		&stubGraphStore{data: map[string]DocumentInsight{
			"doc-1": {ChunkCount: 6, DocType: "policies", RelatedDocuments: []RelatedDocument{{ID: "doc-2", Path: "generated_docs/policies/ethics.md"}}},
		}},
		&stubClassifier{label: "policies"},
		prompts.NewManager(),
		generator,
		testLogger(),
	)

	resp, err := svc.Answer(context.Background(), "What is the safety policy review cycle?", nil, Config{RetrieveLimit: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if resp.Answer != "The review cycle is annual." {
		t.Fatalf("unexpected answer: %q", resp.Answer)
	}
	if resp.Intent != "policies" {
		t.Fatalf("expected policies intent, got %q", resp.Intent)
	}
	if len(resp.Sources) != 1 {
		t.Fatalf("expected one merged source, got %d", len(resp.Sources))
	}
	if resp.Sources[0].Insight.ChunkCount != 6 {
		t.Fatalf("expected insight chunk count 6, got %d", resp.Sources[0].Insight.ChunkCount)
	}
	if len(resp.Sources[0].Insight.RelatedDocuments) != 1 {
		t.Fatal("expected one related document")
	}
	if vectors.lastFilter != "policies" {
		t.Fatalf("expected retrieval scoped to policies, got %q", vectors.lastFilter)
	}

	if len(generator.prompts) != 1 {
		t.Fatalf("expected one generation call, got %d", len(generator.prompts))
	}
	prompt := generator.prompts[0]
	if !strings.Contains(prompt, "compliance assistant") {
		t.Fatalf("expected the policies persona, got: %s", prompt)
	}
	if !strings.Contains(prompt, "reviewed annually") {
		t.Fatal("retrieved context missing from prompt")
	}
	if !strings.Contains(prompt, "What is the safety policy review cycle?") {
		t.Fatal("question missing from prompt")
	}
}

func TestAnswerDegradesToGeneralOnClassifierFault(t *testing.T) {
	generator := &stubLLM{answer: "Best effort answer."}
	vectors := &stubVectorStore{results: policyResults(), docTypes: []string{"policies"}}
	svc := NewService(
		vectors,
		nil,
		&stubClassifier{err: errors.New("model offline")},
		prompts.NewManager(),
		generator,
		testLogger(),
	)

	resp, err := svc.Answer(context.Background(), "anything", nil, Config{})
	if err != nil {
		t.Fatalf("classification faults must not fail the turn: %v", err)
	}
	if resp.Intent != "general" {
		t.Fatalf("expected general fallback, got %q", resp.Intent)
	}
	if vectors.lastFilter != "" {
		t.Fatalf("general intent must not scope retrieval, got %q", vectors.lastFilter)
	}
	if !strings.Contains(generator.prompts[0], "general-purpose assistant") {
		t.Fatal("expected the general persona after classifier fault")
	}
}

func TestAnswerGenerationFailureIsFatal(t *testing.T) {
	svc := NewService(
		&stubVectorStore{results: policyResults()},
		nil,
		&stubClassifier{label: "policies"},
		prompts.NewManager(),
		&stubLLM{err: errors.New("completion failed")},
		testLogger(),
	)

	if _, err := svc.Answer(context.Background(), "question", nil, Config{}); err == nil {
		t.Fatal("expected generation failure to surface")
	}
}

func TestAnswerRetrievalFailureIsFatal(t *testing.T) {
	svc := NewService(
		&stubVectorStore{err: errors.New("store offline")},
		nil,
		&stubClassifier{label: "general"},
		prompts.NewManager(),
		&stubLLM{answer: "unused"},
		testLogger(),
	)

	if _, err := svc.Answer(context.Background(), "question", nil, Config{}); err == nil {
		t.Fatal("expected retrieval failure to surface")
	}
}

func TestAnswerRejectsEmptyQuestion(t *testing.T) {
	svc := NewService(&stubVectorStore{}, nil, &stubClassifier{label: "general"}, prompts.NewManager(), &stubLLM{}, testLogger())
	if _, err := svc.Answer(context.Background(), "   ", nil, Config{}); err == nil {
		t.Fatal("expected error for empty question")
	}
}

func TestAnswerExtendsCallerHistory(t *testing.T) {
	generator := &stubLLM{answer: "Jane is the safety officer."}
	svc := NewService(
		&stubVectorStore{results: policyResults(), docTypes: []string{"employees"}},
		nil,
		&stubClassifier{label: "employees"},
		prompts.NewManager(),
		generator,
		testLogger(),
	)

	history := []Turn{
		{Role: "user", Content: "Who runs HSE?"},
		{Role: "assistant", Content: "The HSE department is led by Jane Smith."},
	}

	resp, err := svc.Answer(context.Background(), "What is her role?", history, Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(resp.History) != 4 {
		t.Fatalf("expected history of 4 turns, got %d", len(resp.History))
	}
	if resp.History[2].Content != "What is her role?" || resp.History[3].Content != resp.Answer {
		t.Fatal("history not extended with the latest turn")
	}

	if !strings.Contains(generator.prompts[0], "Who runs HSE?") {
		t.Fatal("prior history missing from prompt")
	}
}

func TestAnswerSessionIsolation(t *testing.T) {
	generator := &stubLLM{answer: "ok"}
	svc := NewService(
		&stubVectorStore{results: policyResults()},
		nil,
		&stubClassifier{label: "general"},
		prompts.NewManager(),
		generator,
		testLogger(),
	)

	const sessions = 8
	responses := make([]Response, sessions)
	errs := make([]error, sessions)

	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			history := []Turn{{Role: "user", Content: fmt.Sprintf("secret-%d", i)}}
			responses[i], errs[i] = svc.Answer(context.Background(), fmt.Sprintf("question-%d", i), history, Config{})
		}(i)
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		if errs[i] != nil {
			t.Fatalf("session %d failed: %v", i, errs[i])
		}
		for j := 0; j < sessions; j++ {
			secret := fmt.Sprintf("secret-%d", j)
			found := false
			for _, turn := range responses[i].History {
				if strings.Contains(turn.Content, secret) {
					found = true
				}
			}
			if (j == i) != found {
				t.Fatalf("session %d history leakage: secret-%d present=%v", i, j, found)
			}
		}
	}
}

func TestSerializeHistory(t *testing.T) {
	serialized := SerializeHistory([]Turn{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hi there"},
	})
	if !strings.Contains(serialized, "User: hello") || !strings.Contains(serialized, "Assistant: hi there") {
		t.Fatalf("unexpected serialization: %q", serialized)
	}

	if SerializeHistory(nil) == "" {
		t.Fatal("empty history should serialize to a placeholder")
	}
}

func TestAnswerStreamFallsBackToGenerate(t *testing.T) {
	generator := &stubLLM{answer: "streamed answer"}
	svc := NewService(
		&stubVectorStore{results: policyResults()},
		nil,
		&stubClassifier{label: "general"},
		prompts.NewManager(),
		generator,
		testLogger(),
	)

	var streamed strings.Builder
	resp, err := svc.AnswerStream(context.Background(), "question", nil, Config{}, func(piece string) error {
		streamed.WriteString(piece)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if streamed.String() != "streamed answer" || resp.Answer != "streamed answer" {
		t.Fatalf("stream fallback mismatch: %q vs %q", streamed.String(), resp.Answer)
	}
}
