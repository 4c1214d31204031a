// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// quarry is a command-line client for Backblaze B2. It keeps account
// credentials in a local store, authenticates on demand, and routes
// every API call through the session dispatcher so that requests
// submitted before authentication completes are queued and flushed in
// order.
//
// Subcommands:
//
//	login    store credentials and verify them against B2
//	logout   remove stored credentials
//	buckets  list the account's buckets
//	files    list file names in a bucket
//	fetch    download a file by ID
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/quarry-project/quarry/lib/config"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		var usage *usageError
		if errors.As(err, &usage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage()
		return &usageError{message: "a subcommand is required"}
	}

	switch args[0] {
	case "login":
		return runLogin(args[1:])
	case "logout":
		return runLogout(args[1:])
	case "buckets":
		return runBuckets(args[1:])
	case "files":
		return runFiles(args[1:])
	case "fetch":
		return runFetch(args[1:])
	case "help", "--help", "-h":
		printUsage()
		return nil
	default:
		printUsage()
		return &usageError{message: "unknown subcommand: " + args[0]}
	}
}

func printUsage() {
	fmt.Fprint(os.Stderr, `quarry — Backblaze B2 command-line client.

Usage:
  quarry login <account-id> [flags]   store and verify credentials
  quarry logout [flags]               remove stored credentials
  quarry buckets [flags]              list buckets
  quarry files <bucket-id> [flags]    list file names in a bucket
  quarry fetch <file-id> [flags]      download a file by ID

Common flags:
  --config path    config file (overrides QUARRY_CONFIG)
  --account path   credentials file (default: ~/.config/quarry/account.json)

Run "quarry <subcommand> --help" for subcommand flags.
`)
}

// usageError marks errors that should exit with status 2 (bad
// invocation) rather than 1 (operation failed).
type usageError struct {
	message string
}

func (e *usageError) Error() string {
	return e.message
}

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	configPath  string
	accountPath string
}

func (f *commonFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "config file (overrides QUARRY_CONFIG)")
	flagSet.StringVar(&f.accountPath, "account", "", "credentials file path")
}

// loadConfig resolves the configuration: --config flag first, then
// QUARRY_CONFIG, then built-in defaults.
func (f *commonFlags) loadConfig() (*config.Config, error) {
	if f.configPath != "" {
		return config.LoadFile(f.configPath)
	}
	return config.Load()
}

// parseFlags parses args with pflag's usual help handling: --help
// prints the flag set and returns false with no error.
func parseFlags(flagSet *pflag.FlagSet, args []string) (bool, error) {
	flagSet.SortFlags = false
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return false, nil
		}
		return false, &usageError{message: err.Error()}
	}
	return true, nil
}

// newCommandLogger builds the logger for one command invocation. A
// terminal gets human-readable text; pipes and scripts get JSON.
func newCommandLogger(level string) *slog.Logger {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	options := &slog.HandlerOptions{Level: slogLevel}
	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
