/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shaperounder/internal/config"
	"shaperounder/internal/crash"
	applog "shaperounder/internal/log"
	"shaperounder/internal/storage"
	"shaperounder/internal/telemetry"
	"shaperounder/internal/version"
)

func (a *app) usage() {
	w := a.errOut
	fmt.Fprintln(w, "Shape Rounder")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  shaperounder version|-v|--version             Show version")
	fmt.Fprintln(w, "  shaperounder list                              List roundable paths (* marks the active one)")
	fmt.Fprintln(w, "  shaperounder points [flags] [<name>]           Show angle, orientation and selection per point")
	fmt.Fprintln(w, "  shaperounder round [flags] [<name>]            Round a path; keeps the original next to the result")
	fmt.Fprintln(w, "  shaperounder restore [<name>]                  Rebuild a path from its latest snapshot")
	fmt.Fprintln(w, "  shaperounder export [flags] <name> <file>      Write an SVG, PDF or PNG preview")
	fmt.Fprintln(w, "  shaperounder export -preset <p> [flags] [<name>...]")
	fmt.Fprintln(w, "                                                 Batch export (preview|print)")
	fmt.Fprintln(w, "  shaperounder serve [-addr <addr>]              Serve the path store over HTTP")
	fmt.Fprintln(w, "  shaperounder remote list|round|restore ...     Talk to a running server")
	fmt.Fprintln(w, "  shaperounder config path|show|init             Inspect or create the config file")
	fmt.Fprintln(w, "  shaperounder secret set|delete <key>           Manage keychain secrets (value read from stdin)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Run '<command> -h' for the flags of a command.")
}

// usageError marks bad invocations; they exit with status 2.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error { return usageError{msg: fmt.Sprintf(format, args...)} }

// crashTarget lets the deferred crash handler see a document opened later on.
type crashTarget struct{ doc *storage.DocumentStore }

func (c *crashTarget) set(doc *storage.DocumentStore) { c.doc = doc }

func (c *crashTarget) ReportDir() string {
	if c.doc == nil {
		return ""
	}
	return c.doc.ReportDir()
}

func (c *crashTarget) CrashSnapshot() (string, error) {
	if c.doc == nil {
		return "", errors.New("no document open")
	}
	return c.doc.CrashSnapshot()
}

type app struct {
	cfg     config.AppConfig
	secrets config.SecretStore
	crash   *crashTarget
	log     *slog.Logger

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	ct := &crashTarget{}
	defer crash.Recover(ct)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	applog.Init(cfg.Logging.LogOptions())
	telemetry.NewDefault(cfg.Telemetry.TelemetryClientConfig())
	defer func() {
		fctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		telemetry.Flush(fctx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{
		cfg:     cfg,
		secrets: config.Keyring{},
		crash:   ct,
		log:     applog.WithComponent("cli"),
		in:      os.Stdin,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
	return a.run(ctx, os.Args[1:])
}

func (a *app) run(ctx context.Context, args []string) int {
	a.log.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		a.usage()
		return 2
	}
	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(a.out, "Shape Rounder")
		fmt.Fprintln(a.out, version.String())
		return 0
	case "help", "-h", "--help":
		a.usage()
		return 0
	case "list":
		err = a.cmdList(ctx, rest)
	case "points":
		err = a.cmdPoints(ctx, rest)
	case "round":
		err = a.cmdRound(ctx, rest)
	case "restore":
		err = a.cmdRestore(ctx, rest)
	case "export":
		err = a.cmdExport(ctx, rest)
	case "serve":
		err = a.cmdServe(ctx, rest)
	case "remote":
		err = a.cmdRemote(ctx, rest)
	case "config":
		err = a.cmdConfig(rest)
	case "secret":
		err = a.cmdSecret(rest)
	default:
		fmt.Fprintf(a.errOut, "unknown command %q\n\n", cmd)
		a.usage()
		return 2
	}

	var ue usageError
	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.As(err, &ue):
		fmt.Fprintln(a.errOut, "Error:", err)
		return 2
	default:
		a.log.Error(cmd+" failed", slog.Any("err", err))
		fmt.Fprintln(a.errOut, "Error:", err)
		return 1
	}
}

// flags returns a flag set that reports errors instead of exiting.
func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

// parse wraps flag parse errors as usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return usageError{msg: err.Error()}
	}
	return nil
}
