package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"callqa/internal/config"
	"callqa/internal/daemon"
	"callqa/internal/logging"
	"callqa/internal/records"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API on paths.api_bind",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), ctx, func(addr string) {
				fmt.Fprintf(cmd.OutOrStdout(), "callqa API listening on %s\n", addr)
			})
		},
	}
}

// runServer blocks until ctx is cancelled or the process is signalled.
// ready is called with the bound address once the API is serving.
func runServer(cmdCtx context.Context, ctx *commandContext, ready func(addr string)) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	pruneArtifacts(logger, cfg)

	rules, err := loadRules(cfg, "")
	if err != nil {
		return err
	}
	store, err := records.Open(cfg)
	if err != nil {
		logger.Error("open call records", logging.Error(err))
		return err
	}

	svc, err := buildServices(cfg, rules, store, logger)
	if err != nil {
		store.Close()
		return err
	}
	var author daemon.Author
	if svc.client.Configured() {
		author = svc.judge
	}

	d, err := daemon.New(cfg, store, svc.evaluator, author, rules, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create server: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	if ready != nil {
		ready(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("callqa server shutting down")
	return nil
}

// pruneArtifacts removes expired logs and uploads left behind by
// interrupted requests.
func pruneArtifacts(logger *slog.Logger, cfg *config.Config) {
	removed := logging.Prune(logger, cfg.Logging.RetentionDays, time.Now(),
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "*.log", Keep: []string{logging.LogFileName}},
		logging.RetentionTarget{Dir: cfg.Paths.UploadDir, Pattern: "*"},
		logging.RetentionTarget{Dir: workDir(cfg), Pattern: "*"},
	)
	if removed > 0 {
		logger.Info("pruned expired files", logging.Int("removed", removed))
	}
}
