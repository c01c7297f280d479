package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDevice = "0b7e3c1a-5c2f-4f57-9d55-2b1f0c6f3a10"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func devEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DEV", "true")
	t.Setenv("AUTH_MODE", "mock")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("BACKEND_BASE_URL", "http://127.0.0.1:1")
	t.Setenv("ENGINE_BOOT_TIMEOUT", "2s")
}

func runCapture(t *testing.T, input string, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := runWith(context.Background(), args, discardLogger(), strings.NewReader(input), &out)
	return code, out.String()
}

func TestParseDeviceFlags(t *testing.T) {
	t.Run("url before flags", func(t *testing.T) {
		opts, err := parseDeviceFlags("resolve", []string{"/?tenant=t1", "--device", testDevice}, true)
		require.NoError(t, err)
		assert.Equal(t, "/?tenant=t1", opts.URL)
		assert.Equal(t, testDevice, opts.Device)
	})

	t.Run("url after flags", func(t *testing.T) {
		opts, err := parseDeviceFlags("resolve", []string{"--device", testDevice, "/hub"}, true)
		require.NoError(t, err)
		assert.Equal(t, "/hub", opts.URL)
	})

	t.Run("missing device", func(t *testing.T) {
		_, err := parseDeviceFlags("show-state", nil, false)
		var uerr usageError
		require.ErrorAs(t, err, &uerr)
	})

	t.Run("missing url", func(t *testing.T) {
		_, err := parseDeviceFlags("resolve", []string{"--device", testDevice}, true)
		var uerr usageError
		require.ErrorAs(t, err, &uerr)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseDeviceFlags("show-state", []string{"--nope"}, false)
		var uerr usageError
		require.ErrorAs(t, err, &uerr)
	})
}

func TestParseMigrateFlags(t *testing.T) {
	opts, err := parseMigrateFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, defaultMigrationTimeout, opts.Timeout)

	opts, err = parseMigrateFlags([]string{"--timeout", "30s"})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, opts.Timeout)

	_, err = parseMigrateFlags([]string{"--timeout", "0s"})
	var uerr usageError
	require.ErrorAs(t, err, &uerr)
}

func TestPrintStateSortsFields(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printState(&out, testDevice, map[string]string{
		"selected_tenant": "t1",
		"active_view":     "hub",
	}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "FIELD"))
	assert.True(t, strings.HasPrefix(lines[1], "active_view"))
	assert.True(t, strings.HasPrefix(lines[2], "selected_tenant"))
}

func TestPrintStateEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printState(&out, testDevice, nil))
	assert.Contains(t, out.String(), "No persisted state")
}

func TestRunUsageExitCodes(t *testing.T) {
	code, out := runCapture(t, "")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, out, "Available commands:")
	assert.Contains(t, out, "resolve")

	code, out = runCapture(t, "", "bogus")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, out, `unknown command "bogus"`)
}

func TestRunMissingDeviceIsUsage(t *testing.T) {
	devEnv(t)
	code, out := runCapture(t, "", "show-state")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, out, "--device is required")
}

func TestRunResolveWithoutTokenLandsOnLogin(t *testing.T) {
	devEnv(t)
	code, out := runCapture(t, "", "resolve", "/?foo=bar", "--device", testDevice)
	require.Equal(t, exitOK, code, out)
	assert.Contains(t, out, `"view": "login"`)
	assert.Contains(t, out, `"location": "/?foo=bar"`)
}

func TestRunShowStateEmptyDevice(t *testing.T) {
	devEnv(t)
	code, out := runCapture(t, "", "show-state", "--device", testDevice)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "No persisted state for device "+testDevice)
}

func TestRunClearStateRequiresConfirmation(t *testing.T) {
	devEnv(t)

	code, out := runCapture(t, "n\n", "clear-state", "--device", testDevice)
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, out, "Continue? [y/N]")

	code, out = runCapture(t, "", "clear-state", "--device", testDevice, "--yes")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "Cleared state for device "+testDevice)
}

func TestConfirmAcceptsYes(t *testing.T) {
	cmdCtx := &commandContext{In: strings.NewReader("YES\n"), Out: io.Discard}
	require.NoError(t, confirm(cmdCtx, "intro"))

	cmdCtx = &commandContext{In: strings.NewReader(""), Out: io.Discard}
	err := confirm(cmdCtx, "intro")
	require.Error(t, err)
	assert.False(t, errors.As(err, new(usageError)))
}
