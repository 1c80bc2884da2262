// Command parallel runs declarative, dependency-ordered task schedules. See
// internal/cli for the command tree.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jsmith-labs/parallel/internal/cli"
	"github.com/jsmith-labs/parallel/pkg/task"
)

// version, commit, and date are injected at build time via:
//
//	go build -ldflags "-X main.version=... -X main.commit=... -X main.date=..."
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered", "panic", r)
			os.Exit(1)
		}
	}()

	registry := task.Default()
	root := cli.BuildCLI(cli.BuildInfo{Version: version, Commit: commit, Date: date}, registry)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
