package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/crispwave/email-broker/internal/emailbroker/app"
	"github.com/crispwave/email-broker/internal/emailbroker/mailer"
	"github.com/crispwave/email-broker/internal/emailbroker/queue"
	sqsqueue "github.com/crispwave/email-broker/internal/emailbroker/queue/sqs"
	"github.com/crispwave/email-broker/internal/emailbroker/repository"
	ddbrepo "github.com/crispwave/email-broker/internal/emailbroker/repository/dynamodb"
	pgrepo "github.com/crispwave/email-broker/internal/emailbroker/repository/postgres"
	"github.com/crispwave/email-broker/internal/platform/awsconn"
	"github.com/crispwave/email-broker/internal/platform/config"
	"github.com/crispwave/email-broker/internal/platform/database"
	"github.com/crispwave/email-broker/internal/platform/logger"
)

const serviceName = "email_broker"

// Distinct exit codes so operators and schedulers can tell the batch
// outcomes apart, mostly relevant in dry-run mode.
const (
	exitOK                  = 0
	exitInitFailure         = 1
	exitBatchFailure        = 2
	exitPartialBatchFailure = 3
	exitDeleteRequestFailed = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	mainCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return exitInitFailure
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("starting broker",
		"store_backend", cfg.StoreBackend,
		"table", cfg.TableName,
		"dry_run", cfg.DryRun,
	)

	if cfg.QueueURL == "" {
		log.Error("QUEUE_URL must be provided")
		return exitInitFailure
	}

	awsCfg, err := awsconn.Load(mainCtx, cfg.AWSRegion)
	if err != nil {
		log.Error("failed to load AWS configuration", "error", err)
		return exitInitFailure
	}

	var emailRepo repository.EmailRepository
	switch cfg.StoreBackend {
	case "postgres":
		dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to initialize database connection pool", "error", err)
			return exitInitFailure
		}
		defer dbPool.Close()
		emailRepo = pgrepo.NewPgEmailRepository(dbPool, log)
	default:
		ddb := awsconn.NewDynamoDBClient(awsCfg, cfg.AWSEndpoint)
		emailRepo = ddbrepo.NewEmailRepository(ddb, cfg.TableName, log)
	}

	consumer := sqsqueue.NewConsumer(
		awsconn.NewSQSClient(awsCfg, cfg.AWSEndpoint),
		sqsqueue.Config{
			QueueURL:          cfg.QueueURL,
			MaxMessages:       int32(cfg.MaxMessages),
			VisibilityTimeout: int32(cfg.VisibilityTimeoutSeconds),
			WaitTimeSeconds:   int32(cfg.WaitTimeSeconds),
		},
		log,
	)

	processor := app.NewProcessor(emailRepo, mailer.NewStubMailer(log), log)
	reconciler := app.NewReconciler(processor, consumer, cfg.DryRun, log)

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		return serveOps(groupCtx, cfg.MetricsPort, log)
	})

	exitCode := exitOK
	g.Go(func() error {
		defer stop() // one way out: when polling ends, everything ends
		exitCode = pollLoop(groupCtx, consumer, reconciler, cfg.DryRun, log)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("component failed", "error", err)
		if exitCode == exitOK {
			exitCode = exitInitFailure
		}
	}
	log.Info("broker stopped", "exit_code", exitCode)
	return exitCode
}

// pollLoop drives poll-process-reconcile cycles until the context is
// cancelled. In dry-run mode it performs exactly one cycle and returns that
// cycle's outcome as an exit code.
func pollLoop(ctx context.Context, consumer queue.Consumer, reconciler *app.Reconciler, dryRun bool, log *slog.Logger) int {
	for {
		if ctx.Err() != nil {
			return exitOK
		}

		cycleLog := log.With("cycle_id", uuid.NewString())
		msgs, err := consumer.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return exitOK
			}
			cycleLog.Error("failed to receive messages", "error", err)
			if dryRun {
				return exitInitFailure
			}
			continue
		}

		batchErr := reconciler.ProcessBatch(ctx, msgs)
		if batchErr != nil {
			cycleLog.Error("batch not fully reconciled", "error", batchErr, "received", len(msgs))
		}

		if dryRun {
			cycleLog.Info("dry run complete, exiting")
			return exitCodeFor(batchErr)
		}
	}
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, app.ErrDeleteRequestFailed):
		return exitDeleteRequestFailed
	case errors.Is(err, app.ErrPartialBatchFailure):
		return exitPartialBatchFailure
	case errors.Is(err, app.ErrBatchFailure):
		return exitBatchFailure
	default:
		return exitInitFailure
	}
}

// serveOps exposes /healthz and /metrics until the context is cancelled.
func serveOps(ctx context.Context, port int, log *slog.Logger) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("ops server shutdown failed", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("ops server: %w", err)
	}
}
