package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/pdf-rtl-extract/internal/output"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/backend"
	"github.com/a3tai/pdf-rtl-extract/internal/script"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. PDF_RTL_METHOD
	EnvPrefix = "PDF_RTL"

	// MethodBoth runs MuPDF and falls back to the layout backend (text entry point)
	MethodBoth = "both"

	DefaultEncoding      = "utf-8"
	DefaultMaxFileSize   = 100 * 1024 * 1024 // 100MB
	DefaultMinTextLength = 100
	DefaultMinUsefulText = 20
)

// ErrVersionRequested is returned by Load when --version is given
var ErrVersionRequested = errors.New("version requested")

// Entry describes one command line tool
type Entry struct {
	Name            string
	Description     string
	DefaultMethod   string
	Methods         []string
	DefaultLogLevel string
	// MultipleFiles allows several positional files (batch mode)
	MultipleFiles bool
	// CheckBackends enables the --check-backends report
	CheckBackends bool
}

// JSONEntry emits an extraction result as JSON and accepts several files
var JSONEntry = Entry{
	Name:            "pdf-rtl-extract",
	Description:     "Extract text from PDF files with right-to-left (Arabic) support and print a JSON result",
	DefaultMethod:   "",
	Methods:         []string{"", string(backend.MethodMuPDF), string(backend.MethodLayout)},
	DefaultLogLevel: "warn",
	MultipleFiles:   true,
	CheckBackends:   true,
}

// TextEntry prints plain extracted text for a single file
var TextEntry = Entry{
	Name:            "pdf-rtl-text",
	Description:     "Extract plain text from a PDF file with Arabic text processing",
	DefaultMethod:   MethodBoth,
	Methods:         []string{MethodBoth, string(backend.MethodMuPDF), string(backend.MethodLayout)},
	DefaultLogLevel: "debug",
}

// Config holds the settings of one invocation
type Config struct {
	Entry Entry

	Files []string

	Method        string
	Output        string
	Encoding      string
	LogLevel      string
	MaxFileSize   int64
	Threshold     float64
	Disable       []string
	CheckBackends bool

	// MinTextLength and MinUsefulText drive the text entry point fallbacks
	MinTextLength int
	MinUsefulText int
}

// DefaultConfig returns the defaults for an entry point
func DefaultConfig(entry Entry) *Config {
	return &Config{
		Entry:         entry,
		Method:        entry.DefaultMethod,
		Encoding:      DefaultEncoding,
		LogLevel:      entry.DefaultLogLevel,
		MaxFileSize:   DefaultMaxFileSize,
		Threshold:     script.DefaultThreshold,
		MinTextLength: DefaultMinTextLength,
		MinUsefulText: DefaultMinUsefulText,
	}
}

// Load parses args (without the program name) on a private flag set, layering
// flags over PDF_RTL_* environment variables over defaults. Usage and parse
// errors are written to stderr.
func Load(entry Entry, args []string, stderr io.Writer) (*Config, error) {
	cfg := DefaultConfig(entry)

	v := viper.New()
	setupViperEnvironment(v, cfg)

	fs := pflag.NewFlagSet(entry.Name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	defineCommandLineFlags(fs, cfg)
	setupUsageMessage(fs, entry, stderr)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if showVersion, _ := fs.GetBool("version"); showVersion {
		return nil, ErrVersionRequested
	}

	bindFlagsToViper(v, fs)
	populateConfigFromViper(v, cfg)
	cfg.Files = fs.Args()
	if entry.CheckBackends {
		cfg.CheckBackends, _ = fs.GetBool("check-backends")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("method", cfg.Method)
	v.SetDefault("output", cfg.Output)
	v.SetDefault("encoding", cfg.Encoding)
	v.SetDefault("log-level", cfg.LogLevel)
	v.SetDefault("max-file-size", cfg.MaxFileSize)
	v.SetDefault("threshold", cfg.Threshold)
	v.SetDefault("disable", "")
	v.SetDefault("min-text-length", cfg.MinTextLength)
	v.SetDefault("min-useful-text", cfg.MinUsefulText)
}

func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("method", cfg.Method, "Extraction method ("+methodList(cfg.Entry)+")")
	fs.String("output", cfg.Output, "Write the extracted text to this file instead of stdout")
	fs.String("encoding", cfg.Encoding, "Character encoding of stdout (utf-8, windows-1256, ...)")
	fs.String("log-level", cfg.LogLevel, "Log level for stderr diagnostics (debug, info, warn, error)")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF file size in bytes (0 disables the limit)")
	fs.BoolP("version", "v", false, "Print version and exit")
	if cfg.Entry.CheckBackends {
		fs.Bool("check-backends", false, "Report which extraction backends are available and exit")
	}
}

func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	for _, name := range []string{"method", "output", "encoding", "log-level", "max-file-size"} {
		_ = v.BindPFlag(name, fs.Lookup(name))
	}
}

func setupUsageMessage(fs *pflag.FlagSet, entry Entry, w io.Writer) {
	fs.Usage = func() {
		files := "<file.pdf>"
		if entry.MultipleFiles {
			files = "<file.pdf> [more.pdf ...]"
		}
		fmt.Fprintf(w, "Usage: %s [options] %s\n", entry.Name, files)
		fmt.Fprintf(w, "\n%s\n\n", entry.Description)
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nEnvironment Variables:\n")
		fmt.Fprintf(w, "  %s_METHOD         Extraction method\n", EnvPrefix)
		fmt.Fprintf(w, "  %s_ENCODING       Output encoding\n", EnvPrefix)
		fmt.Fprintf(w, "  %s_LOG_LEVEL      Log level\n", EnvPrefix)
		fmt.Fprintf(w, "  %s_MAX_FILE_SIZE  Maximum file size\n", EnvPrefix)
		fmt.Fprintf(w, "  %s_THRESHOLD      Arabic character ratio marking text as right-to-left\n", EnvPrefix)
		fmt.Fprintf(w, "  %s_DISABLE        Comma separated methods to treat as unavailable\n", EnvPrefix)
	}
}

func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Method = strings.ToLower(strings.TrimSpace(v.GetString("method")))
	cfg.Output = v.GetString("output")
	cfg.Encoding = v.GetString("encoding")
	cfg.LogLevel = strings.ToLower(v.GetString("log-level"))
	cfg.MaxFileSize = v.GetInt64("max-file-size")
	cfg.Threshold = v.GetFloat64("threshold")
	cfg.MinTextLength = v.GetInt("min-text-length")
	cfg.MinUsefulText = v.GetInt("min-useful-text")

	cfg.Disable = nil
	for _, m := range strings.Split(v.GetString("disable"), ",") {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			cfg.Disable = append(cfg.Disable, m)
		}
	}
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if !slices.Contains(c.Entry.Methods, c.Method) {
		return fmt.Errorf("invalid method: %q (must be one of: %s)", c.Method, methodList(c.Entry))
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %g", c.Threshold)
	}

	if c.MaxFileSize < 0 {
		return errors.New("maximum file size cannot be negative")
	}

	if c.MinTextLength < 0 || c.MinUsefulText < 0 {
		return errors.New("minimum text lengths cannot be negative")
	}

	if _, err := output.NewEncoder(c.Encoding); err != nil {
		return err
	}

	for _, m := range c.Disable {
		if _, ok := backend.ParseMethod(m); !ok {
			return fmt.Errorf("cannot disable unknown method: %s", m)
		}
	}

	if !c.CheckBackends {
		switch {
		case len(c.Files) == 0:
			return errors.New("a PDF file path is required")
		case len(c.Files) > 1 && !c.Entry.MultipleFiles:
			return fmt.Errorf("expected one PDF file, got %d", len(c.Files))
		}
	}

	return nil
}

// PreferredMethod returns the backend named by --method, if any
func (c *Config) PreferredMethod() (backend.Method, bool) {
	return backend.ParseMethod(c.Method)
}

// DisabledMethods converts PDF_RTL_DISABLE into backend methods
func (c *Config) DisabledMethods() []backend.Method {
	var out []backend.Method
	for _, name := range c.Disable {
		if m, ok := backend.ParseMethod(name); ok {
			out = append(out, m)
		}
	}
	return out
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Entry: %s, Files: %v, Method: %q, Encoding: %s, LogLevel: %s, MaxFileSize: %d, Threshold: %g}",
		c.Entry.Name, c.Files, c.Method, c.Encoding, c.LogLevel, c.MaxFileSize, c.Threshold)
}

func methodList(entry Entry) string {
	names := make([]string, 0, len(entry.Methods))
	for _, m := range entry.Methods {
		if m != "" {
			names = append(names, m)
		}
	}
	return strings.Join(names, ", ")
}
