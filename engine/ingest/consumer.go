package ingest

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/nats-io/nats.go"

	"github.com/manualmind/manualmind-mvp/pkg/natsutil"
)

const (
	// Subject carries queued ingestion jobs.
	Subject = "manuals.ingest"
	// DLQSubject receives jobs that exhausted their retries.
	DLQSubject = "manuals.ingest.dlq"
	// MaxRetries before a job lands on the DLQ.
	MaxRetries = 3

	retryHeader = "X-Retry-Count"
)

// dlqMessage is published to the DLQ on repeated failure.
type dlqMessage struct {
	Job     Job    `json:"job"`
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// Enqueue publishes an ingestion job for asynchronous processing.
func Enqueue(ctx context.Context, nc *nats.Conn, job Job) error {
	return natsutil.Publish(ctx, nc, Subject, job)
}

// StartConsumer subscribes to the ingestion subject and runs each job
// through the pipeline. Failed jobs are re-published with an incremented
// retry header; after MaxRetries they move to the DLQ. Delivery is
// at-least-once: the vector index tolerates re-ingestion.
func StartConsumer(nc *nats.Conn, svc *Service, logger *slog.Logger) (*nats.Subscription, error) {
	if logger == nil {
		logger = slog.Default()
	}

	return natsutil.Subscribe(nc, Subject, func(ctx context.Context, job Job, header nats.Header) {
		retries := 0
		if v := header.Get(retryHeader); v != "" {
			retries, _ = strconv.Atoi(v)
		}

		report, err := svc.Run(ctx, job)
		if err == nil {
			logger.Info("ingest job done", "source", report.SourcePath, "chunks", report.Chunks)
			return
		}

		retries++
		logger.Error("ingest job failed", "source", job.SourcePath, "retry", retries, "error", err)

		if retries >= MaxRetries {
			dlq := dlqMessage{Job: job, Error: err.Error(), Retries: retries}
			if perr := natsutil.Publish(ctx, nc, DLQSubject, dlq); perr != nil {
				logger.Error("dlq publish failed", "source", job.SourcePath, "error", perr)
			}
			return
		}

		headers := map[string]string{retryHeader: strconv.Itoa(retries)}
		if perr := natsutil.PublishWithHeaders(ctx, nc, Subject, job, headers); perr != nil {
			logger.Error("retry publish failed", "source", job.SourcePath, "error", perr)
		}
	})
}
