// Command pdf-rtl-text prints the plain text of a PDF file, compacted for
// display, with diagnostics on stderr.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/pdf-rtl-extract/internal/config"
	"github.com/a3tai/pdf-rtl-extract/internal/extract"
	"github.com/a3tai/pdf-rtl-extract/internal/logging"
	"github.com/a3tai/pdf-rtl-extract/internal/normalize"
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

// savedPrefix announces the fallback file when stdout cannot carry the text
const savedPrefix = "TEXT_SAVED_TO:"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	cfg, err := config.Load(config.TextEntry, args, stderr)
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

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(stderr, "Error in main function: %v\n%s", r, debug.Stack())
			code = exitError
		}
	}()

	logger.Debug("script started", zap.Strings("args", args), zap.String("config", cfg.String()))

	path := cfg.Files[0]
	if err := diagnose.CheckFile(path, cfg.MaxFileSize); err != nil {
		logger.Debug("file check failed", zap.Error(err))
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	enc, err := output.NewEncoder(cfg.Encoding)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	set := selectBackends(cfg, backend.Probe(backend.ProbeOptions{Disabled: cfg.DisabledMethods(), Logger: logger}), stderr)
	extractor := extract.New(extract.Options{
		Backends:      set,
		Threshold:     cfg.Threshold,
		MinTextLength: cfg.MinTextLength,
		Raw:           true,
		Logger:        logger,
	})

	res := extractor.Extract(ctx, path, "")
	if cfg.IsDebug() {
		extract.LogAttempts(logger, res.Attempts)
	}
	text := res.Text
	if utf8.RuneCountInString(strings.TrimSpace(text)) < cfg.MinUsefulText {
		logger.Debug("extraction produced little or no text",
			zap.String("method", string(res.ExtractionMethod)),
			zap.String("error", res.ErrorMessage()))
		text = emptyDiagnostic(path)
	}

	processed := normalize.Compact(text)
	logger.Debug("final processed text", zap.Int("chars", utf8.RuneCountInString(processed)))

	if cfg.Output != "" {
		if err := output.SaveText(cfg.Output, processed); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		return exitOK
	}

	return writeText(stdout, stderr, logger, path, processed, enc)
}

// selectBackends narrows the probed set to the requested method; "both" keeps
// every available backend in default order. A requested method that cannot
// run is reported on stderr, since the diagnostic text alone would hide it.
func selectBackends(cfg *config.Config, set *backend.Set, stderr io.Writer) *backend.Set {
	m, ok := cfg.PreferredMethod()
	if !ok {
		return set
	}
	if !set.Available(m) {
		reason := "not available in this build"
		for _, c := range set.Capabilities() {
			if c.Method == m && c.Reason != "" {
				reason = c.Reason
			}
		}
		fmt.Fprintf(stderr, "Warning: extraction method %s is unavailable: %s\n", m, reason)
	}
	return set.Select(m)
}

func emptyDiagnostic(path string) string {
	header, err := diagnose.Header(path)
	if err == nil && !diagnose.IsPDF(header) {
		return diagnose.NotPDF(header)
	}
	return diagnose.NoTextMessage
}

// writeText writes the text to stdout, or saves it next to the PDF when the
// output encoding cannot represent it.
func writeText(stdout, stderr io.Writer, logger *zap.Logger, path, text string, enc *output.Encoder) int {
	err := output.WriteText(stdout, text, enc)

	var unencodable *output.UnencodableError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &unencodable):
		logger.Debug("direct print failed, using file output", zap.Error(err))
		saved, err := output.SaveFallback(path, text)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintf(stdout, "%s%s\n", savedPrefix, saved)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
}

// printVersion prints version information
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "PDF RTL Text\n")
	fmt.Fprintf(w, "Version: %s\n", version)
	fmt.Fprintf(w, "Build Time: %s\n", buildTime)
	fmt.Fprintf(w, "Git Commit: %s\n", gitCommit)
	fmt.Fprintf(w, "Built with: %s\n", runtime.Version())
}
