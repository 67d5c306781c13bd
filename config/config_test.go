package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Embeddings.Provider != ProviderOllama {
		t.Fatalf("unexpected default embeddings provider: %s", cfg.Embeddings.Provider)
	}
	if cfg.Embeddings.Dimension <= 0 {
		t.Fatal("embedding dimension default must be positive")
	}
	if cfg.RetrieveLimit != 3 {
		t.Fatalf("unexpected default retrieve limit: %d", cfg.RetrieveLimit)
	}
	if cfg.CorpusDir == "" {
		t.Fatal("corpus dir default missing")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", ProviderOpenAI)
	t.Setenv("LLM_TEMPERATURE", "0.2")
	t.Setenv("RETRIEVE_LIMIT", "7")
	t.Setenv("NEO4J_ENABLED", "true")

	cfg := Load()

	if cfg.LLM.Provider != ProviderOpenAI {
		t.Fatalf("LLM_PROVIDER override ignored: %s", cfg.LLM.Provider)
	}
	if cfg.LLM.Temperature != 0.2 {
		t.Fatalf("LLM_TEMPERATURE override ignored: %f", cfg.LLM.Temperature)
	}
	if cfg.RetrieveLimit != 7 {
		t.Fatalf("RETRIEVE_LIMIT override ignored: %d", cfg.RetrieveLimit)
	}
	if !cfg.Neo4jEnabled {
		t.Fatal("NEO4J_ENABLED override ignored")
	}
}

func TestMalformedNumbersFallBack(t *testing.T) {
	t.Setenv("EMBEDDINGS_DIMENSION", "not-a-number")
	cfg := Load()
	if cfg.Embeddings.Dimension != 768 {
		t.Fatalf("expected fallback dimension, got %d", cfg.Embeddings.Dimension)
	}
}
