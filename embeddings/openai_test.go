package embeddings

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestOrderEmbeddingsFollowsDeclaredIndex(t *testing.T) {
	data := []openai.Embedding{
		{Index: 2, Embedding: []float32{3, 3}},
		{Index: 0, Embedding: []float32{1, 1}},
		{Index: 1, Embedding: []float32{2, 2}},
	}

	results, err := orderEmbeddings(data, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []float32{1, 2, 3} {
		if results[i][0] != want {
			t.Fatalf("vector %d out of place: got %v", i, results[i])
		}
	}
}

func TestOrderEmbeddingsRejectsBadResponses(t *testing.T) {
	if _, err := orderEmbeddings([]openai.Embedding{{Index: 0, Embedding: []float32{1}}}, 2, 1); err == nil {
		t.Fatal("expected error on missing vector")
	}
	if _, err := orderEmbeddings([]openai.Embedding{
		{Index: 0, Embedding: []float32{1}},
		{Index: 3, Embedding: []float32{2}},
	}, 2, 1); err == nil {
		t.Fatal("expected error on out-of-range index")
	}
	if _, err := orderEmbeddings([]openai.Embedding{
		{Index: 0, Embedding: []float32{1}},
		{Index: 0, Embedding: []float32{2}},
	}, 2, 1); err == nil {
		t.Fatal("expected error on duplicate index")
	}
	if _, err := orderEmbeddings([]openai.Embedding{
		{Index: 0, Embedding: []float32{1, 2}},
		{Index: 1, Embedding: []float32{3}},
	}, 2, 2); err == nil {
		t.Fatal("expected error on dimension mismatch")
	}
}
