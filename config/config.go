package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

type EmbeddingsConfig struct {
	Provider  string
	Model     string
	Dimension int
}

type LLMConfig struct {
	Provider    string
	Model       string
	Temperature float32
}

type Config struct {
	PostgresDSN string

	Neo4jEnabled bool
	Neo4jURI     string
	Neo4jUser    string
	Neo4jPass    string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	Embeddings EmbeddingsConfig
	LLM        LLMConfig

	// CorpusDir is the root folder holding one subfolder per document type.
	CorpusDir string
	// PromptsFile optionally overrides the built-in prompt templates (YAML).
	PromptsFile string

	RetrieveLimit int
	ListenAddr    string
}

func Load() Config {
	// A missing .env is fine; process env and defaults still apply.
	_ = godotenv.Load()

	return Config{
		PostgresDSN: getEnv("POSTGRES_DSN", "postgres://localhost:5432/docbot?sslmode=disable"),

		Neo4jEnabled: getBool("NEO4J_ENABLED", false),
		Neo4jURI:     getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:    getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:    getEnv("NEO4J_PASSWORD", "password"),

		OllamaHost:    getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:  getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL: getEnv("OPENAI_BASE_URL", ""),

		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOllama),
			Model:     getEnv("EMBEDDINGS_MODEL", "nomic-embed-text"),
			Dimension: getInt("EMBEDDINGS_DIMENSION", 768),
		},
		LLM: LLMConfig{
			Provider:    getEnv("LLM_PROVIDER", ProviderOllama),
			Model:       getEnv("LLM_MODEL", "llama3:8b"),
			Temperature: getFloat("LLM_TEMPERATURE", 0.7),
		},

		CorpusDir:   getEnv("CORPUS_DIR", "generated_docs"),
		PromptsFile: getEnv("PROMPTS_FILE", ""),

		RetrieveLimit: getInt("RETRIEVE_LIMIT", 3),
		ListenAddr:    getEnv("LISTEN_ADDR", ":8080"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float32) float32 {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
