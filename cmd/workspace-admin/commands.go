package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/tenantdesk/workspace-shell/internal/bootstrap"
)

const defaultMigrationTimeout = 5 * time.Minute

type deviceOptions struct {
	Device string
	URL    string
	Yes    bool
	JSON   bool
}

// parseDeviceFlags accepts the positional URL before or after the flags.
func parseDeviceFlags(name string, args []string, wantURL bool) (deviceOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts deviceOptions
	fs.StringVar(&opts.Device, "device", "", "Device id (the wsd_device cookie value)")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip the confirmation prompt")
	fs.BoolVar(&opts.JSON, "json", false, "Print JSON instead of a table")

	if wantURL && len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		opts.URL = args[0]
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return deviceOptions{}, usageError{err: err}
	}
	if wantURL && opts.URL == "" {
		opts.URL = fs.Arg(0)
	}

	if strings.TrimSpace(opts.Device) == "" {
		return deviceOptions{}, usagef("--device is required")
	}
	if wantURL && opts.URL == "" {
		return deviceOptions{}, usagef("a URL argument is required")
	}
	return opts, nil
}

func runResolve(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeviceFlags("resolve", args, true)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, conns, err := buildEngine(cmdCtx)
	if err != nil {
		return err
	}
	defer conns.Close(cmdCtx.Logger)

	res, err := engine.Boot(ctx, opts.Device, opts.URL)
	if err != nil {
		return fmt.Errorf("resolve: %w", err)
	}

	enc := json.NewEncoder(cmdCtx.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func runShowState(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeviceFlags("show-state", args, false)
	if err != nil {
		return err
	}

	engine, conns, err := buildEngine(cmdCtx)
	if err != nil {
		return err
	}
	defer conns.Close(cmdCtx.Logger)

	state, err := engine.State(cmdCtx.Ctx, opts.Device)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	if opts.JSON {
		enc := json.NewEncoder(cmdCtx.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	return printState(cmdCtx.Out, opts.Device, state)
}

func printState(out io.Writer, device string, state map[string]string) error {
	if len(state) == 0 {
		_, err := fmt.Fprintf(out, "No persisted state for device %s\n", device)
		return err
	}
	keys := make([]string, 0, len(state))
	for k := range state {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tVALUE")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%s\n", k, state[k])
	}
	return tw.Flush()
}

func runClearState(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeviceFlags("clear-state", args, false)
	if err != nil {
		return err
	}
	if !opts.Yes {
		if err := confirm(cmdCtx, "About to delete every persisted field for device "+opts.Device+"."); err != nil {
			return err
		}
	}

	engine, conns, err := buildEngine(cmdCtx)
	if err != nil {
		return err
	}
	defer conns.Close(cmdCtx.Logger)

	if err := engine.ClearState(cmdCtx.Ctx, opts.Device); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmdCtx.Out, "Cleared state for device %s\n", opts.Device)
	return err
}

func confirm(cmdCtx *commandContext, intro string) error {
	fmt.Fprintln(cmdCtx.Out, intro)
	fmt.Fprint(cmdCtx.Out, "Continue? [y/N]: ")
	resp, err := bufio.NewReader(cmdCtx.In).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read confirmation: %w", err)
	}
	resp = strings.ToLower(strings.TrimSpace(resp))
	if resp == "y" || resp == "yes" {
		return nil
	}
	return errors.New("aborted by user")
}

type migrateOptions struct {
	Timeout time.Duration
}

func parseMigrateFlags(args []string) (migrateOptions, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	opts := migrateOptions{Timeout: defaultMigrationTimeout}
	fs.DurationVar(
		&opts.Timeout,
		"timeout",
		defaultMigrationTimeout,
		"Maximum duration to wait for migrations to complete",
	)

	if err := fs.Parse(args); err != nil {
		return migrateOptions{}, usageError{err: err}
	}
	if opts.Timeout <= 0 {
		return migrateOptions{}, usagef("--timeout must be greater than zero")
	}
	return opts, nil
}

func runMigrations(cmdCtx *commandContext, args []string) error {
	opts, err := parseMigrateFlags(args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()

	cmdCtx.Logger.Info("running database migrations")
	if migrateErr := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); migrateErr != nil {
		return fmt.Errorf("run migrations: %w", migrateErr)
	}
	cmdCtx.Logger.Info("migrations completed successfully")
	return nil
}
