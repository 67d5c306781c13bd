package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/oilwell/docbot/api"
	"github.com/oilwell/docbot/chat"
	"github.com/oilwell/docbot/chunker"
	"github.com/oilwell/docbot/config"
	"github.com/oilwell/docbot/database"
	"github.com/oilwell/docbot/docgen"
	"github.com/oilwell/docbot/embeddings"
	"github.com/oilwell/docbot/intent"
	"github.com/oilwell/docbot/llm"
	"github.com/oilwell/docbot/prompts"
	"github.com/oilwell/docbot/store"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()

	switch os.Args[1] {
	case "generate":
		generateCmd(cfg, logger, os.Args[2:])
	case "build":
		buildCmd(cfg, logger, os.Args[2:])
	case "chat":
		chatCmd(cfg, logger, os.Args[2:])
	case "serve":
		serveCmd(cfg, logger, os.Args[2:])
	case "clear":
		clearCmd(cfg, logger, os.Args[2:])
	default:
		logger.Printf("unknown command: %s", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func generateCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("generate", flag.ExitOnError)
	docType := flags.String("type", "", "document type to generate (policies, employees, products, contracts, or 'all')")
	outDir := flags.String("out", cfg.CorpusDir, "corpus output directory")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse generate flags: %v", err)
	}

	if strings.TrimSpace(*docType) == "" {
		logger.Fatalf("missing --type; available: %s, all", strings.Join(docgen.PresetTypes(), ", "))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("llm setup: %v", err)
	}

	generator := docgen.New(llmClient, logger, *outDir)

	types := []string{strings.ToLower(strings.TrimSpace(*docType))}
	if types[0] == "all" {
		types = docgen.PresetTypes()
	}

	for _, t := range types {
		template, items, ok := docgen.Preset(t)
		if !ok {
			logger.Fatalf("no preset for doc type %q; available: %s", t, strings.Join(docgen.PresetTypes(), ", "))
		}
		if err := generator.Run(ctx, template, items, t); err != nil {
			logger.Fatalf("generate %s: %v", t, err)
		}
	}
}

func buildCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("build", flag.ExitOnError)
	corpusDir := flags.String("dir", cfg.CorpusDir, "corpus root with one subfolder per document type")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse build flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	vectorStore, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store setup: %v", err)
	}
	defer cleanup(ctx)

	chunks, err := chunker.New(*corpusDir).Chunk()
	if err != nil {
		logger.Fatalf("chunk corpus: %v", err)
	}
	if len(chunks) == 0 {
		logger.Printf("corpus %s contains no typed markdown, building an empty store", *corpusDir)
	}

	logger.Printf("building vector store from %s using %s/%s embeddings",
		*corpusDir, strings.ToUpper(cfg.Embeddings.Provider), cfg.Embeddings.Model)

	if err := vectorStore.Build(ctx, chunks); err != nil {
		logger.Fatalf("build failed: %v", err)
	}
}

func chatCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("chat", flag.ExitOnError)
	question := flags.String("question", "", "single question to ask; omit for an interactive session")
	limit := flags.Int("limit", cfg.RetrieveLimit, "number of context chunks to retrieve")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse chat flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	engine, _, cleanup, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("engine setup: %v", err)
	}
	defer cleanup(ctx)

	if strings.TrimSpace(*question) != "" {
		resp, err := engine.Answer(ctx, *question, nil, chat.Config{RetrieveLimit: *limit})
		if err != nil {
			logger.Fatalf("chat failed: %v", err)
		}
		fmt.Println(resp.Answer)
		printSources(resp.Sources)
		return
	}

	// Interactive session: this process is the caller, so it owns the
	// conversation history and resupplies it on every turn.
	scanner := bufio.NewScanner(os.Stdin)
	var history []chat.Turn
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read question: %v", err)
			}
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return
		}

		resp, err := engine.AnswerStream(ctx, line, history, chat.Config{RetrieveLimit: *limit}, func(piece string) error {
			fmt.Print(piece)
			return nil
		})
		if err != nil {
			logger.Printf("chat failed: %v", err)
			continue
		}
		fmt.Println()
		printSources(resp.Sources)
		history = resp.History
	}
}

func serveCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.ListenAddr, "listen address")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse serve flags: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The engine and the build/clear handlers must share one store so a
	// destructive rebuild excludes in-flight retrievals.
	engine, vectorStore, cleanup, err := newEngine(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("engine setup: %v", err)
	}
	defer cleanup(ctx)

	server := api.New(api.Options{
		Engine:        engine,
		Store:         vectorStore,
		CorpusDir:     cfg.CorpusDir,
		RetrieveLimit: cfg.RetrieveLimit,
	}, logger)

	httpServer := &http.Server{Addr: *addr, Handler: server.Handler()}
	go func() {
		<-ctx.Done()
		_ = httpServer.Shutdown(context.Background())
	}()

	logger.Printf("listening on %s", *addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("serve: %v", err)
	}
}

func clearCmd(cfg config.Config, logger *log.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		logger.Fatalf("parse clear flags: %v", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the indexed corpus. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				logger.Fatalf("read confirmation: %v", err)
			}
			logger.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			logger.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	vectorStore, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("store setup: %v", err)
	}
	defer cleanup(ctx)

	if err := vectorStore.Clear(ctx); err != nil {
		logger.Fatalf("clear store: %v", err)
	}
	logger.Println("indexed corpus removed")
}

// newStore wires the Postgres-backed vector store with its embedder and the
// optional knowledge graph. The returned cleanup closes all connections.
func newStore(ctx context.Context, cfg config.Config, logger *log.Logger) (*store.Store, func(context.Context), error) {
	pgPool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres connection: %w", err)
	}

	var neo4jDriver neo4j.DriverWithContext
	if cfg.Neo4jEnabled {
		neo4jDriver, err = database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			pgPool.Close()
			return nil, nil, fmt.Errorf("neo4j connection: %w", err)
		}
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		pgPool.Close()
		if neo4jDriver != nil {
			_ = neo4jDriver.Close(ctx)
		}
		return nil, nil, fmt.Errorf("embedder setup: %w", err)
	}

	vectorStore := store.New(pgPool, neo4jDriver, embedder, logger, cfg.Embeddings.Dimension)
	cleanup := func(ctx context.Context) {
		pgPool.Close()
		if neo4jDriver != nil {
			_ = neo4jDriver.Close(ctx)
		}
	}
	return vectorStore, cleanup, nil
}

// newEngine wires the full answer pipeline and returns the store it retrieves
// from so callers can reuse the same instance. The store must already be
// built; Open fails loudly on a missing store or an embedding model mismatch.
func newEngine(ctx context.Context, cfg config.Config, logger *log.Logger) (*chat.Service, *store.Store, func(context.Context), error) {
	vectorStore, cleanup, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}

	if err := vectorStore.Open(ctx); err != nil {
		cleanup(ctx)
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, nil, fmt.Errorf("no indexed corpus; run 'docbot build' first: %w", err)
		}
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		cleanup(ctx)
		return nil, nil, nil, fmt.Errorf("llm setup: %w", err)
	}

	classifierClient, err := llm.NewClassifierClient(cfg)
	if err != nil {
		cleanup(ctx)
		return nil, nil, nil, fmt.Errorf("classifier setup: %w", err)
	}

	promptMgr := prompts.NewManager()
	if cfg.PromptsFile != "" {
		promptMgr, err = prompts.NewManagerFromFile(cfg.PromptsFile)
		if err != nil {
			cleanup(ctx)
			return nil, nil, nil, fmt.Errorf("load prompts: %w", err)
		}
	}

	var graph chat.GraphStore
	if cfg.Neo4jEnabled {
		driver, err := database.NewNeo4jDriver(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPass)
		if err != nil {
			cleanup(ctx)
			return nil, nil, nil, fmt.Errorf("neo4j connection: %w", err)
		}
		graph = chat.NewNeo4jGraphStore(driver)
		inner := cleanup
		cleanup = func(ctx context.Context) {
			_ = driver.Close(ctx)
			inner(ctx)
		}
	}

	engine := chat.NewService(
		vectorStore,
		graph,
		intent.NewClassifier(classifierClient, logger),
		promptMgr,
		llmClient,
		logger,
	)
	return engine, vectorStore, cleanup, nil
}

func printSources(sources []chat.Source) {
	if len(sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("Sources:")
	for idx, source := range sources {
		fmt.Printf("%d. %s (%s)\n", idx+1, source.SourcePath, source.DocType)
		if source.Insight.ChunkCount > 0 {
			fmt.Printf("   Indexed chunks: %d\n", source.Insight.ChunkCount)
		}
		for _, related := range source.Insight.RelatedDocuments {
			fmt.Printf("   Related: %s\n", related.Path)
		}
	}
}

func printUsage() {
	fmt.Println("Usage: docbot <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  generate  Generate the markdown corpus (--type policies|employees|products|contracts|all)")
	fmt.Println("  build     Chunk, embed, and index the corpus (--dir to override the corpus root)")
	fmt.Println("  chat      Ask a question (--question) or start an interactive session")
	fmt.Println("  serve     Start the HTTP API")
	fmt.Println("  clear     Remove the indexed corpus")
}
