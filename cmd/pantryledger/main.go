package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pantryledger/pantryledger/cmd/pantryledger/cli"
	"github.com/pantryledger/pantryledger/internal/app"
	dashboardhttp "github.com/pantryledger/pantryledger/internal/dashboard/http"
	"github.com/pantryledger/pantryledger/jobs"
)

const usage = `usage:
  pantryledger                         serve the dashboard API
  pantryledger cycle open|close|status [-json] [-actor name]
  pantryledger jobs trigger <task> [-actor name]
  pantryledger jobs stats`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)

	if len(args) == 0 || args[0] == "serve" {
		return serve(ctx, cfg, logger)
	}
	switch args[0] {
	case "cycle":
		return runCycle(ctx, cfg, logger, args[1:])
	case "jobs":
		return runJobs(ctx, cfg, args[1:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) int {
	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		return 1
	}
	defer services.Close()

	var jobHandler *jobs.Handler
	if services.Redis != nil {
		inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		DashboardHandler: dashboardhttp.NewHandler(logger, services.Dashboard),
		JobHandler:       jobHandler,
		Metrics:          services.Metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("store", cfg.StoreDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		logger.Error("http server", slog.Any("error", err))
		return 1
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
		return 1
	}
	return 0
}

func runCycle(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	fs := flag.NewFlagSet("cycle", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "print JSON")
	actor := fs.String("actor", "cli", "operator recorded on the cycle")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	services, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		return 1
	}
	defer services.Close()

	return cli.CycleCommand(ctx, services.Cycle, cli.CycleOptions{
		Action:     args[0],
		Actor:      *actor,
		JSONOutput: *jsonOut,
	})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, usage)
			return 2
		}
		fs := flag.NewFlagSet("trigger", flag.ContinueOnError)
		actor := fs.String("actor", "cli", "operator recorded on the cycle")
		if err := fs.Parse(args[2:]); err != nil {
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1], *actor)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs trigger: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s (%s) on queue %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs stats: %v\n", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		fmt.Fprintln(os.Stderr, usage)
		return 2
	}
	return 0
}
