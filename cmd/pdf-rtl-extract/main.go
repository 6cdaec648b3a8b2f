// Command pdf-rtl-extract prints the text of PDF files as JSON, marking and
// repairing right-to-left (Arabic) text.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/pdf-rtl-extract/internal/config"
	"github.com/a3tai/pdf-rtl-extract/internal/extract"
	"github.com/a3tai/pdf-rtl-extract/internal/logging"
	"github.com/a3tai/pdf-rtl-extract/internal/output"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/backend"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/diagnose"
)

var (
	version   = "dev"     // This will be set by build flags
	buildTime = "unknown" // This will be set by build flags
	gitCommit = "unknown" // This will be set by build flags
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

type errorResponse struct {
	Error string `json:"error"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	cfg, err := config.Load(config.JSONEntry, args, stderr)
	switch {
	case errors.Is(err, config.ErrVersionRequested):
		printVersion(stdout)
		return exitOK
	case errors.Is(err, pflag.ErrHelp):
		return exitOK
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	logger, err := logging.New(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	defer func() { _ = logger.Sync() }()

	enc, err := output.NewEncoder(cfg.Encoding)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected fault", zap.Any("fault", r))
			_ = output.WriteJSON(stdout, errorResponse{Error: fmt.Sprintf("%v", r)}, enc)
			code = exitError
		}
	}()

	logger.Debug("configuration loaded", zap.String("config", cfg.String()))

	set := backend.Probe(backend.ProbeOptions{Disabled: cfg.DisabledMethods(), Logger: logger})
	if cfg.CheckBackends {
		return checkBackends(stdout, set, enc)
	}

	extractor := extract.New(extract.Options{
		Backends:    set,
		Threshold:   cfg.Threshold,
		Diagnose:    true,
		MaxFileSize: cfg.MaxFileSize,
		Logger:      logger,
	})
	preferred, _ := cfg.PreferredMethod()

	if len(cfg.Files) > 1 {
		batch := extractor.ExtractBatch(ctx, cfg.Files, preferred)
		if cfg.Output != "" {
			return writeJSONFile(stderr, cfg.Output, batch)
		}
		return writeJSON(stdout, stderr, batch, enc)
	}

	path := cfg.Files[0]
	if err := diagnose.CheckFile(path, cfg.MaxFileSize); err != nil {
		logger.Debug("file check failed", zap.Error(err))
		_ = output.WriteJSON(stdout, errorResponse{Error: err.Error()}, enc)
		return exitError
	}

	res := extractor.Extract(ctx, path, preferred)
	if cfg.IsDebug() {
		extract.LogAttempts(logger, res.Attempts)
	}
	if res.ExtractionMethod == backend.MethodFailed {
		logger.Error("extraction fault", zap.String("error", res.ErrorMessage()))
	}

	code = exitOK
	if cfg.Output != "" {
		if err := output.SaveText(cfg.Output, res.Text); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
	} else {
		code = writeJSON(stdout, stderr, res, enc)
	}

	// internal faults are reported in the result but still fail the process
	if res.ExtractionMethod == backend.MethodFailed {
		return exitError
	}
	return code
}

func checkBackends(stdout io.Writer, set *backend.Set, enc *output.Encoder) int {
	if err := output.WriteJSON(stdout, set.Capabilities(), enc); err != nil {
		return exitError
	}
	if set.Empty() {
		return exitError
	}
	return exitOK
}

func writeJSON(stdout, stderr io.Writer, v any, enc *output.Encoder) int {
	if err := output.WriteJSON(stdout, v, enc); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func writeJSONFile(stderr io.Writer, path string, v any) int {
	utf8Enc, _ := output.NewEncoder("utf-8")

	var buf bytes.Buffer
	if err := output.WriteJSON(&buf, v, utf8Enc); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if err := output.SaveText(path, buf.String()); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "PDF RTL Extract\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
