// Command patentconv converts USPTO 1976-2001 grant full-text archives to CSV.
//
// Usage:
//
//	patentconv convert [-o out.csv] [-append] [-no-header] archive.txt...
//	patentconv fetch -years 1976,1976 -weeks 1,2 [-o grants.csv] [-load]
//	patentconv export -in grants.csv -o grants.xlsx
//	patentconv load -in grants.csv [-source name]
//	patentconv index -in grants.csv [-index grants.bleve]
//	patentconv search -q "laser" [-fuzzy 1] [-advanced] [-class "H01S 3/00"]
//	patentconv match -in grants.csv [-terms laser,diode] [-assignee "Acme"]
//	patentconv serve [-now] [-load]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/FACorreiaa/patentgrant/pkg/config"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, cfg *config.Config, logger *slog.Logger, args []string) error
}

var commands = []command{
	{"convert", "convert local TXT archives into one CSV", runConvert},
	{"fetch", "download weekly archives and append them to a CSV", runFetch},
	{"export", "write a converted CSV as an Excel workbook", runExport},
	{"load", "load a converted CSV into PostgreSQL", runLoad},
	{"index", "build a full-text index from a converted CSV", runIndex},
	{"search", "query the full-text index", runSearch},
	{"match", "scan a converted CSV for watch terms or assignee names", runMatch},
	{"serve", "run the backfill scheduler and metrics endpoint", runServe},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(stderr)
		return 2
	}

	cmd, ok := lookup(args[0])
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[0])
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}
	logger := newLogger(cfg.Log, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.run(ctx, cfg, logger, args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			return 2
		}
		logger.Error("command failed", slog.String("command", cmd.name), slog.Any("error", err))
		return 1
	}
	return 0
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: patentconv <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}

// newLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}
