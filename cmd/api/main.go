// Package main implements the ManualMind API server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/manualmind/manualmind-mvp/engine/domain"
	"github.com/manualmind/manualmind-mvp/engine/extract"
	"github.com/manualmind/manualmind-mvp/engine/failover"
	"github.com/manualmind/manualmind-mvp/engine/ingest"
	"github.com/manualmind/manualmind-mvp/engine/llm"
	"github.com/manualmind/manualmind-mvp/engine/rag"
	"github.com/manualmind/manualmind-mvp/engine/semantic"
	"github.com/manualmind/manualmind-mvp/pkg/metrics"
	"github.com/manualmind/manualmind-mvp/pkg/mid"
)

// Config holds all environment-based configuration.
type Config struct {
	Port         string
	QdrantURL    string
	Collection   string
	EmbedBackend string // "openai" or "ollama"
	EmbedModel   string
	EmbedDims    int
	OpenAIKey    string
	CloudModel   string
	OllamaURL    string
	LocalModel   string
	CORSOrigin   string
	MaxUploadMB  int64
}

func loadConfig() Config {
	dims, _ := strconv.Atoi(envOr("EMBED_DIMS", "1536"))
	uploadMB, _ := strconv.ParseInt(envOr("MAX_UPLOAD_MB", "50"), 10, 64)
	return Config{
		Port:         envOr("PORT", "8080"),
		QdrantURL:    envOr("QDRANT_URL", "localhost:6334"),
		Collection:   envOr("QDRANT_COLLECTION", "manuals"),
		EmbedBackend: envOr("EMBED_BACKEND", "openai"),
		EmbedModel:   envOr("EMBED_MODEL", ""),
		EmbedDims:    dims,
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		CloudModel:   envOr("CLOUD_MODEL", "gpt-4o-mini"),
		OllamaURL:    envOr("OLLAMA_URL", "http://localhost:11434"),
		LocalModel:   envOr("LOCAL_MODEL", "llama3"),
		CORSOrigin:   envOr("CORS_ORIGIN", "*"),
		MaxUploadMB:  uploadMB,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg := loadConfig()

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func newEmbedder(cfg Config) semantic.Embedder {
	if cfg.EmbedBackend == "ollama" {
		return semantic.NewOllamaEmbedder(cfg.OllamaURL, cfg.EmbedModel, cfg.EmbedDims)
	}
	return semantic.NewOpenAIEmbedder(cfg.OpenAIKey, cfg.EmbedModel, cfg.EmbedDims)
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Vector index ---
	embedder := newEmbedder(cfg)
	index, err := semantic.New(cfg.QdrantURL, cfg.Collection, embedder, logger)
	if err != nil {
		return fmt.Errorf("qdrant connect: %w", err)
	}
	defer index.Close()

	if err := index.EnsureCollection(ctx, embedder.Dimensions()); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	// --- Providers with failover ---
	primary := llm.NewCloudProvider(cfg.OpenAIKey, cfg.CloudModel, logger)
	fallback := llm.NewLocalProvider(cfg.OllamaURL, cfg.LocalModel, logger)
	ctrl := failover.New(primary, fallback, logger)

	// --- Services ---
	qaSvc := rag.New(index, ctrl, 0, logger)
	ingestSvc := ingest.New(extract.New(logger), nil, index, logger)

	// --- Metrics ---
	reg := metrics.New()
	m := newAPIMetrics(reg)

	// --- HTTP server ---
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", handleHealth)
	mux.Handle("GET /metrics", reg.Handler())
	mux.HandleFunc("POST /documents", handleDocuments(ingestSvc, m, logger))
	mux.HandleFunc("POST /question", handleQuestion(qaSvc, m, logger))

	handler := mid.Chain(mux,
		mid.Recover(logger),
		mid.Logger(logger),
		mid.CORS(cfg.CORSOrigin),
		mid.OTel("manualmind-api"),
		mid.MaxBytes(cfg.MaxUploadMB<<20),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "port", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}

// --- Metrics ---

type apiMetrics struct {
	reg           *metrics.Registry
	questions     *metrics.Counter
	questionTime  *metrics.Histogram
	documents     *metrics.Counter
	chunksIndexed *metrics.Counter
	ingestTime    *metrics.Histogram
	inFlight      *metrics.Gauge
}

func newAPIMetrics(reg *metrics.Registry) *apiMetrics {
	return &apiMetrics{
		reg:           reg,
		questions:     reg.Counter("questions_total", "Questions answered"),
		questionTime:  reg.Histogram("question_duration_seconds", "QA pipeline latency", nil),
		documents:     reg.Counter("documents_ingested_total", "Documents ingested via upload"),
		chunksIndexed: reg.Counter("chunks_indexed_total", "Chunks written to the index"),
		ingestTime:    reg.Histogram("ingest_duration_seconds", "Ingestion latency per document", nil),
		inFlight:      reg.Gauge("requests_in_flight", "Requests currently being handled"),
	}
}

// questionError counts failed questions by reason so the validation noise
// can be separated from provider outages on a dashboard.
func (m *apiMetrics) questionError(reason string) {
	m.reg.Counter(metrics.WithLabels("question_errors_total", "reason", reason), "Questions that failed").Inc()
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "online",
		"service": "manualmind",
	})
}

// DocumentsResponse is the JSON response for POST /documents.
type DocumentsResponse struct {
	Message          string `json:"message"`
	DocumentsIndexed int    `json:"documents_indexed"`
	TotalChunks      int    `json:"total_chunks"`
}

func handleDocuments(svc *ingest.Service, m *apiMetrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "multipart form expected")
			return
		}
		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			writeError(w, http.StatusBadRequest, "no files uploaded")
			return
		}

		indexed, totalChunks := 0, 0
		for _, fh := range files {
			start := time.Now()
			report, err := ingestUpload(r.Context(), svc, fh)
			if err != nil {
				logger.Error("document ingest failed", "file", fh.Filename, "err", err)
				if errors.Is(err, domain.ErrExtraction) {
					writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("could not extract text from %q", fh.Filename))
				} else {
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
				return
			}
			m.ingestTime.Since(start)
			m.documents.Inc()
			m.chunksIndexed.Add(int64(report.Chunks))
			indexed++
			totalChunks += report.Chunks
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(DocumentsResponse{
			Message:          "documents processed",
			DocumentsIndexed: indexed,
			TotalChunks:      totalChunks,
		})
	}
}

// ingestUpload spools one uploaded file to disk, ingests it, and removes
// the temp file on every exit path.
func ingestUpload(ctx context.Context, svc *ingest.Service, fh *multipart.FileHeader) (ingest.Report, error) {
	src, err := fh.Open()
	if err != nil {
		return ingest.Report{}, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(fh.Filename))
	if err != nil {
		return ingest.Report{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return ingest.Report{}, fmt.Errorf("spool upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return ingest.Report{}, fmt.Errorf("spool upload: %w", err)
	}

	return svc.IngestFile(ctx, tmp.Name())
}

// QuestionRequest is the JSON body for POST /question.
type QuestionRequest struct {
	Question string `json:"question"`
}

// QuestionResponse is the JSON response for POST /question.
type QuestionResponse struct {
	Answer     string   `json:"answer"`
	References []string `json:"references"`
}

func handleQuestion(svc *rag.Service, m *apiMetrics, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.inFlight.Inc()
		defer m.inFlight.Dec()

		var req QuestionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		start := time.Now()
		answer, err := svc.Answer(r.Context(), req.Question)
		m.questionTime.Since(start)
		if err != nil {
			var verr *domain.ValidationError
			switch {
			case errors.As(err, &verr):
				m.questionError("validation")
				writeError(w, http.StatusBadRequest, verr.Error())
			case errors.Is(err, domain.ErrNoProvider):
				m.questionError("no_provider")
				logger.Error("all providers failed", "err", err)
				writeError(w, http.StatusServiceUnavailable, "no answer provider available")
			default:
				m.questionError("internal")
				logger.Error("question failed", "err", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}
		m.questions.Inc()

		refs := answer.ReferenceStrings()
		if refs == nil {
			refs = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(QuestionResponse{
			Answer:     answer.Text,
			References: refs,
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
