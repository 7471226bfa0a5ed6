// Command ingest indexes PDF manuals from the command line. Given files or
// directories it runs each PDF through the ingestion pipeline, or with
// -queue publishes jobs to NATS for the ingest-worker to process.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/manualmind/manualmind-mvp/engine/chunker"
	"github.com/manualmind/manualmind-mvp/engine/extract"
	"github.com/manualmind/manualmind-mvp/engine/ingest"
	"github.com/manualmind/manualmind-mvp/engine/semantic"
)

func main() {
	_ = godotenv.Load()

	var (
		qdrantAddr = flag.String("qdrant", envOr("QDRANT_URL", "localhost:6334"), "Qdrant gRPC address")
		collection = flag.String("collection", envOr("QDRANT_COLLECTION", "manuals"), "Qdrant collection name")
		backend    = flag.String("embed-backend", envOr("EMBED_BACKEND", "openai"), "embedding backend: openai or ollama")
		embedModel = flag.String("embed-model", os.Getenv("EMBED_MODEL"), "embedding model name")
		embedDims  = flag.Int("embed-dims", 1536, "embedding vector dimensions")
		ollamaURL  = flag.String("ollama", envOr("OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		chunkSize  = flag.Int("chunk-size", chunker.DefaultChunkSize, "chunk size in characters")
		overlap    = flag.Int("overlap", chunker.DefaultOverlap, "chunk overlap in characters")
		replace    = flag.Bool("replace", false, "delete previously indexed points for each file first")
		queue      = flag.Bool("queue", false, "publish jobs to NATS instead of ingesting locally")
		natsURL    = flag.String("nats", envOr("NATS_URL", nats.DefaultURL), "NATS server URL")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: ingest [flags] <file-or-dir>...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	files, err := collectPDFs(flag.Args())
	if err != nil {
		logger.Error("scan inputs", "err", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		logger.Error("no PDF files found", "args", flag.Args())
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *queue {
		if err := enqueueAll(ctx, *natsURL, files, *replace, logger); err != nil {
			logger.Error("enqueue failed", "err", err)
			os.Exit(1)
		}
		return
	}

	splitter, err := chunker.New(*chunkSize, *overlap)
	if err != nil {
		logger.Error("chunker config", "err", err)
		os.Exit(1)
	}

	var embedder semantic.Embedder
	if *backend == "ollama" {
		embedder = semantic.NewOllamaEmbedder(*ollamaURL, *embedModel, *embedDims)
	} else {
		embedder = semantic.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), *embedModel, *embedDims)
	}

	index, err := semantic.New(*qdrantAddr, *collection, embedder, logger)
	if err != nil {
		logger.Error("qdrant connect", "err", err)
		os.Exit(1)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		logger.Error("ensure collection", "err", err)
		os.Exit(1)
	}

	svc := ingest.New(extract.New(logger), splitter, index, logger)

	failed := 0
	totalChunks := 0
	for _, path := range files {
		report, err := svc.Run(ctx, ingest.Job{SourcePath: path, Replace: *replace})
		if err != nil {
			logger.Error("ingest failed", "file", path, "err", err)
			failed++
			continue
		}
		totalChunks += report.Chunks
	}

	logger.Info("batch done", "files", len(files), "failed", failed, "chunks", totalChunks)
	if failed > 0 {
		os.Exit(1)
	}
}

func enqueueAll(ctx context.Context, natsURL string, files []string, replace bool, logger *slog.Logger) error {
	nc, err := nats.Connect(natsURL)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Drain()

	for _, path := range files {
		abs, err := filepath.Abs(path)
		if err != nil {
			return err
		}
		if err := ingest.Enqueue(ctx, nc, ingest.Job{SourcePath: abs, Replace: replace}); err != nil {
			return fmt.Errorf("enqueue %s: %w", path, err)
		}
		logger.Info("job queued", "file", abs)
	}
	return nil
}

// collectPDFs expands file and directory arguments into a list of PDFs.
func collectPDFs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		err = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".pdf") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
