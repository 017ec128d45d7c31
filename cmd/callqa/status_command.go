package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"callqa/internal/config"
	"callqa/internal/daemon"
	"callqa/internal/preflight"
	"callqa/internal/records"
)

const serverProbeTimeout = 2 * time.Second

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check configuration, dependencies, and the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			emit := func(lines ...string) {
				for _, line := range lines {
					fmt.Fprintln(out, line)
				}
			}

			emit(renderSectionHeader("callqa", colorize)...)
			emit(renderStatusLine("Config", statusInfo, dashIfEmpty(ctx.configPath), colorize))
			emit(serverStatusLine(cmd.Context(), cfg, colorize))
			emit("")

			emit(renderSectionHeader("Checks", colorize)...)
			for _, result := range preflight.RunAll(cmd.Context(), cfg) {
				emit(checkLine(result, result.Name == "Policies directory", colorize))
			}
			if cfg.LLM.APIKey == "" {
				emit(renderStatusLine("Judge LLM", statusWarn, "Not configured (every step will FAIL)", colorize))
			}
			emit(checkLine(preflight.CheckDiarization(cfg), true, colorize))
			if topic := cfg.Notifications.NtfyTopic; topic != "" {
				emit(renderStatusLine("Notifications", statusOK, topic, colorize))
			} else {
				emit(renderStatusLine("Notifications", statusInfo, "Disabled", colorize))
			}
			emit("")

			emit(renderSectionHeader("Dependencies", colorize)...)
			emit(dependencyLines(preflight.CheckSystemDeps(cmd.Context(), cfg), colorize)...)
			emit("")

			emit(renderSectionHeader("Records", colorize)...)
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				n, err := store.Count(cmd.Context())
				if err != nil {
					emit(renderStatusLine("Calls", statusError, err.Error(), colorize))
					return nil
				}
				emit(renderStatusLine("Calls", statusInfo, strconv.Itoa(n), colorize))
				emit(renderStatusLine("Database", statusInfo, store.Path(), colorize))
				return nil
			})
		},
	}
}

func serverStatusLine(ctx context.Context, cfg *config.Config, colorize bool) string {
	status, err := probeServer(ctx, cfg)
	if err != nil {
		return renderStatusLine("Server", statusInfo, "Not running", colorize)
	}
	return renderStatusLine("Server", statusOK,
		fmt.Sprintf("Running on %s (pid %d, %d in flight)", cfg.Paths.APIBind, status.PID, status.InFlight), colorize)
}

// probeServer asks a running "callqa serve" for its status.
func probeServer(ctx context.Context, cfg *config.Config) (daemon.Status, error) {
	host, port, err := net.SplitHostPort(cfg.Paths.APIBind)
	if err != nil {
		return daemon.Status{}, err
	}
	if port == "0" {
		return daemon.Status{}, fmt.Errorf("api_bind %s has no fixed port", cfg.Paths.APIBind)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	probeCtx, cancel := context.WithTimeout(ctx, serverProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, "http://"+net.JoinHostPort(host, port)+"/api/status", nil)
	if err != nil {
		return daemon.Status{}, err
	}
	if cfg.Paths.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Paths.APIToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return daemon.Status{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return daemon.Status{}, fmt.Errorf("status endpoint returned %s", resp.Status)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return daemon.Status{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}
