// Package extract runs the extraction backends in fallback order and turns the
// first usable text into a Result, normalizing right-to-left text on the way.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/a3tai/pdf-rtl-extract/internal/normalize"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/backend"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/diagnose"
	"github.com/a3tai/pdf-rtl-extract/internal/script"
)

const (
	// MessageNoBackend is reported when the probe found nothing that can run
	MessageNoBackend = "no extraction backend is available"
	// MessageAllFailed is reported when every backend ran without producing text
	MessageAllFailed = "failed to extract text with any available method"
)

// Outcome classifies one backend attempt
type Outcome string

const (
	OutcomeText  Outcome = "text"
	OutcomeError Outcome = "error"
	OutcomeEmpty Outcome = "empty"
	OutcomeShort Outcome = "short"
)

// Attempt records what one backend returned
type Attempt struct {
	Method   backend.Method
	Outcome  Outcome
	Chars    int
	Err      error
	Duration time.Duration
}

// Result is the outcome of one extraction
type Result struct {
	Text             string         `json:"text"`
	IsRightToLeft    bool           `json:"isRightToLeft"`
	ExtractionMethod backend.Method `json:"extractionMethod"`
	ProcessingTimeMs int64          `json:"processingTimeMs"`
	Error            *string        `json:"error"`

	Attempts []Attempt `json:"-"`
}

// Failed reports whether no text was extracted
func (r Result) Failed() bool {
	return r.Error != nil
}

// ErrorMessage returns the error text, or ""
func (r Result) ErrorMessage() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// LogAttempts writes one debug entry per backend attempt, in the order they ran
func LogAttempts(logger *zap.Logger, attempts []Attempt) {
	for i, a := range attempts {
		fields := []zap.Field{
			zap.Int("attempt", i+1),
			zap.String("method", string(a.Method)),
			zap.String("outcome", string(a.Outcome)),
			zap.Int("chars", a.Chars),
			zap.Duration("elapsed", a.Duration),
		}
		if a.Err != nil {
			fields = append(fields, zap.Error(a.Err))
		}
		logger.Debug("backend attempt", fields...)
	}
}

// Options configures an Extractor
type Options struct {
	// Backends is the probed set; nil probes with default options
	Backends *backend.Set
	// Threshold is the Arabic character ratio marking text as right-to-left
	Threshold float64
	// MinTextLength makes shorter non-blank text a fallback candidate only
	MinTextLength int
	// Raw returns backend text untouched by normalization and cleanup
	Raw bool
	// Diagnose appends a structural explanation to the total failure message
	Diagnose bool
	// MaxFileSize bounds files in batch mode; 0 disables the limit
	MaxFileSize int64
	Logger      *zap.Logger
}

// Extractor orchestrates the backends. It holds no per-call state and may be
// reused for several documents.
type Extractor struct {
	backends      *backend.Set
	detector      *script.Detector
	minTextLength int
	raw           bool
	diagnose      bool
	maxFileSize   int64
	logger        *zap.Logger
}

// New creates an Extractor
func New(opts Options) *Extractor {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	backends := opts.Backends
	if backends == nil {
		backends = backend.Probe(backend.ProbeOptions{Logger: logger})
	}

	return &Extractor{
		backends:      backends,
		detector:      script.NewDetector(opts.Threshold),
		minTextLength: opts.MinTextLength,
		raw:           opts.Raw,
		diagnose:      opts.Diagnose,
		maxFileSize:   opts.MaxFileSize,
		logger:        logger,
	}
}

// Order returns the backends to try. An available preferred backend goes
// first, followed by the remaining ones in default order.
func (e *Extractor) Order(preferred backend.Method) []backend.Backend {
	available := e.backends.Backends()

	first := e.backends.Lookup(preferred)
	if first == nil {
		return available
	}

	order := []backend.Backend{first}
	for _, b := range available {
		if b.Method() != preferred {
			order = append(order, b)
		}
	}
	return order
}

type candidate struct {
	method backend.Method
	text   string
	chars  int
}

// Extract runs the backends against path. It never panics; internal faults
// are reported as a Result with method "failed".
func (e *Extractor) Extract(ctx context.Context, path string, preferred backend.Method) (res Result) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%v", r)
			e.logger.Error("extraction fault", zap.String("path", path), zap.String("fault", msg))
			res = Result{ExtractionMethod: backend.MethodFailed, Error: &msg}
		}
	}()

	order := e.Order(preferred)
	e.logger.Debug("starting extraction",
		zap.String("path", path),
		zap.String("preferred", string(preferred)),
		zap.Int("candidates", len(order)))

	// MuPDF opens plain text and images too; only PDF input is accepted
	if msg := diagnose.Sniff(path); msg != "" {
		e.logger.Warn("input is not a PDF", zap.String("path", path), zap.String("error", msg))
		return Result{
			ExtractionMethod: backend.MethodUnknown,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Error:            &msg,
		}
	}

	var (
		attempts []Attempt
		accepted *candidate
		short    *candidate
		lastErr  error
	)

	for _, b := range order {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		attempt, text := e.attempt(ctx, b, path)
		attempts = append(attempts, attempt)

		switch attempt.Outcome {
		case OutcomeText:
			accepted = &candidate{method: attempt.Method, text: text, chars: attempt.Chars}
		case OutcomeShort:
			if short == nil || attempt.Chars > short.chars {
				short = &candidate{method: attempt.Method, text: text, chars: attempt.Chars}
			}
		case OutcomeError:
			lastErr = attempt.Err
		}
		if accepted != nil {
			break
		}
	}

	if accepted == nil {
		accepted = short
	}

	if accepted == nil {
		msg := e.failure(path, len(order), lastErr)
		e.logger.Warn("no method succeeded", zap.String("path", path), zap.String("error", msg))
		return Result{
			ExtractionMethod: backend.MethodUnknown,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Error:            &msg,
			Attempts:         attempts,
		}
	}

	text := accepted.text
	rtl := e.detector.IsRightToLeft(text)
	if !e.raw {
		if rtl {
			text = normalize.RightToLeft(text)
		}
		text = normalize.Clean(text)
	}

	e.logger.Debug("extraction finished",
		zap.String("method", string(accepted.method)),
		zap.Bool("rtl", rtl),
		zap.Int("chars", utf8.RuneCountInString(text)),
		zap.Duration("elapsed", time.Since(start)))

	return Result{
		Text:             text,
		IsRightToLeft:    rtl,
		ExtractionMethod: accepted.method,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		Attempts:         attempts,
	}
}

func (e *Extractor) attempt(ctx context.Context, b backend.Backend, path string) (Attempt, string) {
	start := time.Now()
	text, err := b.Extract(ctx, path)

	attempt := Attempt{Method: b.Method(), Err: err, Duration: time.Since(start)}
	switch {
	case err != nil:
		attempt.Outcome = OutcomeError
		e.logger.Debug("backend failed",
			zap.String("method", string(attempt.Method)),
			zap.Duration("elapsed", attempt.Duration),
			zap.Error(err))
		return attempt, ""
	case strings.TrimSpace(text) == "":
		attempt.Outcome = OutcomeEmpty
	default:
		attempt.Chars = utf8.RuneCountInString(strings.TrimSpace(text))
		attempt.Outcome = OutcomeText
		if e.minTextLength > 0 && attempt.Chars < e.minTextLength {
			attempt.Outcome = OutcomeShort
		}
	}

	e.logger.Debug("backend finished",
		zap.String("method", string(attempt.Method)),
		zap.String("outcome", string(attempt.Outcome)),
		zap.Int("chars", attempt.Chars),
		zap.Duration("elapsed", attempt.Duration))
	return attempt, text
}

// failure picks the message for a document that yielded no text
func (e *Extractor) failure(path string, candidates int, lastErr error) string {
	if lastErr != nil {
		return lastErr.Error()
	}
	if candidates == 0 {
		return MessageNoBackend
	}
	if e.diagnose {
		if reason := diagnose.Inspect(path, e.logger).Reason(); reason != "" {
			return MessageAllFailed + ": " + reason
		}
	}
	return MessageAllFailed
}
