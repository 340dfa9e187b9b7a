// The email_sweeper binary runs one recovery pass over the record store,
// releasing records a crashed broker left in Sending back to Pending. It is
// meant to run on a schedule (cron, scheduled task) beside the broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/crispwave/email-broker/internal/emailbroker/app"
	"github.com/crispwave/email-broker/internal/emailbroker/repository"
	ddbrepo "github.com/crispwave/email-broker/internal/emailbroker/repository/dynamodb"
	pgrepo "github.com/crispwave/email-broker/internal/emailbroker/repository/postgres"
	"github.com/crispwave/email-broker/internal/platform/awsconn"
	"github.com/crispwave/email-broker/internal/platform/config"
	"github.com/crispwave/email-broker/internal/platform/database"
	"github.com/crispwave/email-broker/internal/platform/logger"
)

const serviceName = "email_sweeper"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	log := logger.New(serviceName, cfg.LogLevel)
	log.Info("starting sweep",
		"store_backend", cfg.StoreBackend,
		"table", cfg.TableName,
		"max_age", cfg.SweepMaxAge,
	)

	var emailRepo repository.EmailRepository
	switch cfg.StoreBackend {
	case "postgres":
		dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to initialize database connection pool", "error", err)
			return 1
		}
		defer dbPool.Close()
		emailRepo = pgrepo.NewPgEmailRepository(dbPool, log)
	default:
		awsCfg, err := awsconn.Load(ctx, cfg.AWSRegion)
		if err != nil {
			log.Error("failed to load AWS configuration", "error", err)
			return 1
		}
		ddb := awsconn.NewDynamoDBClient(awsCfg, cfg.AWSEndpoint)
		emailRepo = ddbrepo.NewEmailRepository(ddb, cfg.TableName, log)
	}

	sweeper := app.NewSweeper(emailRepo, cfg.SweepMaxAge, log)
	released, err := sweeper.Sweep(ctx)
	if err != nil {
		log.Error("sweep failed", "error", err)
		return 1
	}
	log.Info("sweep complete", "released", released)
	return 0
}
