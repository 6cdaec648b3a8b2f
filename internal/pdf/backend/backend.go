// Package backend holds the interchangeable PDF text extraction strategies and
// the capability probe that decides which of them can run in this build.
package backend

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Method identifies an extraction strategy on the wire. The backend method names
// match the ones the archiving service already parses.
type Method string

const (
	MethodMuPDF   Method = "pymupdf"
	MethodLayout  Method = "pdfminer"
	MethodUnknown Method = "unknown"
	MethodFailed  Method = "failed"
)

// Library names as they appear in error messages
const (
	LibraryMuPDF  = "MuPDF"
	LibraryLayout = "PDF layout"
)

// DefaultOrder is the order backends are tried in when no preference is given
var DefaultOrder = []Method{MethodMuPDF, MethodLayout}

// ParseMethod maps a user supplied name onto a backend method.
// Anything else, including "both" and "", reports false.
func ParseMethod(name string) (Method, bool) {
	switch Method(strings.ToLower(strings.TrimSpace(name))) {
	case MethodMuPDF:
		return MethodMuPDF, true
	case MethodLayout:
		return MethodLayout, true
	default:
		return "", false
	}
}

// Backend turns a PDF file into text
type Backend interface {
	Method() Method
	Library() string
	Extract(ctx context.Context, path string) (string, error)
}

// BackendError reports a failed extraction attempt
type BackendError struct {
	Method  Method
	Library string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s extraction error: %s: %v", e.Library, e.Op, e.Err)
	}
	return fmt.Sprintf("%s extraction error: %v", e.Library, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// recoverAsError converts a panic raised by an underlying PDF library into a BackendError
func recoverAsError(errp *error, method Method, library string) {
	if r := recover(); r != nil {
		*errp = &BackendError{
			Method:  method,
			Library: library,
			Op:      "panic",
			Err:     fmt.Errorf("%v", r),
		}
	}
}

// Capability describes whether a backend can run in this process
type Capability struct {
	Method    Method `json:"method"`
	Library   string `json:"library"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// ProbeOptions controls backend discovery
type ProbeOptions struct {
	// Disabled lists methods to report as unavailable regardless of the build
	Disabled []Method
	Layout   LayoutParams
	Logger   *zap.Logger
}

// Set is the outcome of a probe: the runnable backends in default order and a
// capability record for every known method.
type Set struct {
	backends     []Backend
	capabilities []Capability
}

// Probe checks every known backend once and returns the ones that can run
func Probe(opts ProbeOptions) *Set {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Layout == (LayoutParams{}) {
		opts.Layout = DefaultLayoutParams()
	}

	disabled := make(map[Method]bool, len(opts.Disabled))
	for _, m := range opts.Disabled {
		disabled[m] = true
	}

	constructors := map[Method]func() (Backend, error){
		MethodMuPDF: func() (Backend, error) { return newMuPDF(logger) },
		MethodLayout: func() (Backend, error) {
			return NewLayout(opts.Layout, logger), nil
		},
	}
	libraries := map[Method]string{
		MethodMuPDF:  LibraryMuPDF,
		MethodLayout: LibraryLayout,
	}

	set := &Set{}
	for _, m := range DefaultOrder {
		capability := Capability{Method: m, Library: libraries[m]}
		if disabled[m] {
			capability.Reason = "disabled by configuration"
			set.capabilities = append(set.capabilities, capability)
			logger.Debug("backend disabled", zap.String("method", string(m)))
			continue
		}

		b, err := constructors[m]()
		if err != nil {
			capability.Reason = err.Error()
			set.capabilities = append(set.capabilities, capability)
			logger.Debug("backend unavailable", zap.String("method", string(m)), zap.Error(err))
			continue
		}

		capability.Available = true
		set.capabilities = append(set.capabilities, capability)
		set.backends = append(set.backends, b)
		logger.Debug("backend available", zap.String("method", string(m)), zap.String("library", b.Library()))
	}

	return set
}

// NewSet builds a Set from already constructed backends; used when the caller
// supplies its own strategies.
func NewSet(backends ...Backend) *Set {
	set := &Set{}
	for _, b := range backends {
		set.backends = append(set.backends, b)
		set.capabilities = append(set.capabilities, Capability{
			Method:    b.Method(),
			Library:   b.Library(),
			Available: true,
		})
	}
	return set
}

// Backends returns the runnable backends in default order
func (s *Set) Backends() []Backend {
	out := make([]Backend, len(s.backends))
	copy(out, s.backends)
	return out
}

// Capabilities returns the probe record of every known backend
func (s *Set) Capabilities() []Capability {
	out := make([]Capability, len(s.capabilities))
	copy(out, s.capabilities)
	return out
}

// Available reports whether a backend for m can run
func (s *Set) Available(m Method) bool {
	return s.Lookup(m) != nil
}

// Lookup returns the runnable backend for m, or nil
func (s *Set) Lookup(m Method) Backend {
	for _, b := range s.backends {
		if b.Method() == m {
			return b
		}
	}
	return nil
}

// Select returns a Set restricted to the given methods, keeping default order
func (s *Set) Select(methods ...Method) *Set {
	wanted := make(map[Method]bool, len(methods))
	for _, m := range methods {
		wanted[m] = true
	}

	out := &Set{}
	for _, b := range s.backends {
		if wanted[b.Method()] {
			out.backends = append(out.backends, b)
		}
	}
	for _, c := range s.capabilities {
		if wanted[c.Method] {
			out.capabilities = append(out.capabilities, c)
		}
	}
	return out
}

// Empty reports whether no backend can run
func (s *Set) Empty() bool {
	return len(s.backends) == 0
}
