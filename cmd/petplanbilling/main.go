package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"PetPlanBilling/internal/app"
	"PetPlanBilling/internal/config"
	"PetPlanBilling/internal/logging"
)

func main() {
	jobName := flag.String("job", "", "run a single job once and exit (upcoming-due, renewal, status-reconciliation, overdue-notifications)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logger := logging.New(cfg.Logging.Level)

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}

	if *jobName != "" {
		result, err := application.RunJob(ctx, *jobName)
		if err != nil {
			logger.Error("job failed", "job", *jobName, "error", err)
			os.Exit(1)
		}
		fmt.Printf("%+v\n", result)
		return
	}

	if err := application.Run(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		os.Exit(1)
	}
}
