// ============================================================================
// CLI - Command-Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Function: Builds the parallel command tree:
//
//   parallel run <schedule.json> [--config FILE]
//       Loads a schedule document against the registry passed to BuildCLI,
//       starts it, blocks on wait_idle (or until SIGINT/SIGTERM), then
//       stops.
//
//   parallel validate <schedule.json>
//       Parses and builds a schedule document without starting it,
//       reporting any build-time error (§4.5) and exiting non-zero.
//
//   parallel status <schedule.json>
//       Reports static document statistics: thread and task counts,
//       dependency edge counts. Does not start anything.
//
// --version is injected via ldflags, following cmd/queue/main.go.
//
// ============================================================================

// Package cli wires the parallel binary's Cobra command tree.
package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jsmith-labs/parallel/internal/config"
	"github.com/jsmith-labs/parallel/internal/graph"
	"github.com/jsmith-labs/parallel/internal/metrics"
	"github.com/jsmith-labs/parallel/internal/runtime"
	"github.com/jsmith-labs/parallel/pkg/task"
)

// BuildInfo carries the ldflags-injected version metadata shown by
// `parallel --version`.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// BuildCLI assembles the root command and its subcommands. registry is the
// task registry schedules are built against; callers register their task
// functions into it before invoking Execute.
func BuildCLI(info BuildInfo, registry *task.Registry) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "parallel",
		Short:   "Run declarative, dependency-ordered task schedules",
		Version: fmt.Sprintf("%s (commit %s, built %s)", info.Version, info.Commit, info.Date),
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")

	root.AddCommand(
		newRunCommand(registry, &configPath),
		newValidateCommand(registry),
		newStatusCommand(registry),
	)
	return root
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func newRunCommand(registry *task.Registry, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run <schedule.json>",
		Short: "Start a schedule and block until it finishes or is interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			g, err := graph.Load(args[0], registry)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}

			sched := runtime.New(g)
			if cfg.Metrics.Enabled {
				m := metrics.New(prometheus.DefaultRegisterer)
				sched = sched.WithMetrics(m)
				go serveMetrics(cfg.Metrics.Address)
			}

			if err := sched.Start(nil); err != nil {
				return fmt.Errorf("run: start: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			idleDone := make(chan error, 1)
			go func() { idleDone <- sched.WaitIdle() }()

			select {
			case <-ctx.Done():
				fmt.Fprintln(cmd.ErrOrStderr(), "signal received, stopping schedule")
			case err := <-idleDone:
				if err != nil {
					return fmt.Errorf("run: wait_idle: %w", err)
				}
			}

			if err := sched.Stop(); err != nil {
				return fmt.Errorf("run: stop: %w", err)
			}
			return sched.Destroy()
		},
	}
}

func newValidateCommand(registry *task.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <schedule.json>",
		Short: "Parse and build a schedule document without starting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := graph.Load(args[0], registry)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func newStatusCommand(registry *task.Registry) *cobra.Command {
	return &cobra.Command{
		Use:   "status <schedule.json>",
		Short: "Report thread and task counts for a schedule document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := graph.Load(args[0], registry)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			totalTasks := 0
			dependencyEdges := 0
			for _, name := range g.ThreadsOrd {
				thread := g.Threads[name]
				totalTasks += len(thread.Tasks)
				for _, t := range thread.Tasks {
					if t.Dependent {
						dependencyEdges++
					}
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "schedule: %s\n", g.Name)
			fmt.Fprintf(out, "threads: %d\n", len(g.ThreadsOrd))
			fmt.Fprintf(out, "tasks: %d\n", totalTasks)
			fmt.Fprintf(out, "dependency edges: %d\n", dependencyEdges)
			fmt.Fprintf(out, "repeat: %t\n", g.Repeat)
			if g.MainThread != "" {
				fmt.Fprintf(out, "main thread: %s\n", g.MainThread)
			}
			return nil
		},
	}
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: address, Handler: mux}
	_ = server.ListenAndServe()
}
