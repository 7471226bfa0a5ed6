// Command ingest-worker consumes queued ingestion jobs from NATS and runs
// them through the ingestion pipeline. Jobs that keep failing end up on
// the dead letter subject.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/manualmind/manualmind-mvp/engine/extract"
	"github.com/manualmind/manualmind-mvp/engine/ingest"
	"github.com/manualmind/manualmind-mvp/engine/semantic"
)

func main() {
	_ = godotenv.Load()

	var (
		natsURL    = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "manuals"), "Qdrant collection name")
		backend    = flag.String("embed-backend", envOr("EMBED_BACKEND", "openai"), "embedding backend: openai or ollama")
		embedModel = flag.String("embed-model", os.Getenv("EMBED_MODEL"), "embedding model name")
		embedDims  = flag.Int("embed-dims", 1536, "embedding vector dimensions")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(*natsURL, *qdrantAddr, *collection, *backend, *embedModel, *ollamaURL, *embedDims, logger); err != nil {
		logger.Error("worker exited with error", "err", err)
		os.Exit(1)
	}
}

func run(natsURL, qdrantAddr, collection, backend, embedModel, ollamaURL string, embedDims int, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var embedder semantic.Embedder
	if backend == "ollama" {
		embedder = semantic.NewOllamaEmbedder(ollamaURL, embedModel, embedDims)
	} else {
		embedder = semantic.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), embedModel, embedDims)
	}

	index, err := semantic.New(qdrantAddr, collection, embedder, logger)
	if err != nil {
		return err
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return err
	}

	nc, err := nats.Connect(natsURL)
	if err != nil {
		return err
	}
	defer nc.Drain()

	svc := ingest.New(extract.New(logger), nil, index, logger)

	sub, err := ingest.StartConsumer(nc, svc, logger)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	logger.Info("ingest worker started", "subject", ingest.Subject)
	<-ctx.Done()
	logger.Info("shutdown signal received")
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
