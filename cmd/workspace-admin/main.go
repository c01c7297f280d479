package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/tenantdesk/workspace-shell/config"
	"github.com/tenantdesk/workspace-shell/internal/bootstrap"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	In     io.Reader
	Out    io.Writer
}

// usageError marks a failure caused by how the command was invoked.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{err: fmt.Errorf(format, args...)}
}

func main() {
	logger := bootstrap.InitLogger(os.Getenv("LOG_LEVEL"))
	os.Exit(run(context.Background(), os.Args[1:], logger)) //nolint:forbidigo // CLI exit status is the contract with shell scripts
}

// run executes one admin command and returns the process exit code.
func run(ctx context.Context, args []string, logger *slog.Logger) int {
	return runWith(ctx, args, logger, os.Stdin, os.Stdout)
}

func runWith(ctx context.Context, args []string, logger *slog.Logger, in io.Reader, out io.Writer) int {
	if len(args) < 1 {
		printUsage(out)
		return exitUsage
	}

	cmdName := args[0]
	cmd, ok := commands()[cmdName]
	if !ok {
		fmt.Fprintf(out, "unknown command %q\n\n", cmdName)
		printUsage(out)
		return exitUsage
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(ctx, "load config", "error", err)
		return exitFailure
	}

	cmdCtx := &commandContext{Ctx: ctx, Logger: logger, Config: cfg, In: in, Out: out}
	if runErr := cmd.run(cmdCtx, args[1:]); runErr != nil {
		var uerr usageError
		if errors.As(runErr, &uerr) {
			fmt.Fprintf(out, "%s: %v\n", cmdName, uerr)
			return exitUsage
		}
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		return exitFailure
	}
	return exitOK
}

func commands() map[string]command {
	return map[string]command{
		"resolve": {
			name:        "resolve",
			description: "Run a headless resolution for a device: resolve <url> --device <id>",
			run:         runResolve,
		},
		"show-state": {
			name:        "show-state",
			description: "Print every persisted field for a device: show-state --device <id>",
			run:         runShowState,
		},
		"clear-state": {
			name:        "clear-state",
			description: "Delete every persisted field for a device: clear-state --device <id> [--yes]",
			run:         runClearState,
		},
		"migrate": {
			name:        "migrate",
			description: "Apply the device_state schema to Postgres",
			run:         runMigrations,
		},
	}
}

func printUsage(out io.Writer) {
	fmt.Fprintf(out, "Usage: workspace-admin <command> [flags]\n\n")
	fmt.Fprintf(out, "Available commands:\n")
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-12s %s\n", name, commands()[name].description)
	}
}
