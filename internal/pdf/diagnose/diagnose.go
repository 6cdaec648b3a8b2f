// Package diagnose checks input files before extraction and explains, after a
// failed extraction, why a document yielded no text.
package diagnose

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// NoTextMessage is reported when a real PDF produced too little text
const NoTextMessage = "Failed to extract meaningful text from this PDF. It might be an image-only PDF or have content protection."

var magic = []byte("%PDF")

// FileError reports an input file that cannot be handed to a backend
type FileError struct {
	Path    string
	Problem string
	Err     error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s", e.Problem, e.Path)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// CheckFile makes sure path names a regular file no larger than maxSize bytes.
// A maxSize of zero or less disables the size limit.
func CheckFile(path string, maxSize int64) error {
	if path == "" {
		return &FileError{Problem: "File not found", Err: os.ErrNotExist}
	}

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return &FileError{Path: path, Problem: "File not found", Err: err}
	}
	if err != nil {
		return &FileError{Path: path, Problem: "Cannot access file", Err: err}
	}

	if info.IsDir() {
		return &FileError{Path: path, Problem: "Path is a directory, not a file"}
	}

	if maxSize > 0 && info.Size() > maxSize {
		return &FileError{
			Path:    path,
			Problem: fmt.Sprintf("File too large (%d bytes, max %d bytes)", info.Size(), maxSize),
		}
	}

	return nil
}

// IsNotFound reports whether err came from CheckFile for a missing file
func IsNotFound(err error) bool {
	var fe *FileError
	return errors.As(err, &fe) && errors.Is(fe.Err, os.ErrNotExist)
}

// Header returns up to the first four bytes of the file
func Header(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, len(magic))
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:n], nil
}

// IsPDF reports whether header starts with the PDF magic
func IsPDF(header []byte) bool {
	return bytes.HasPrefix(header, magic)
}

// NotPDF builds the diagnostic for a file lacking the PDF magic
func NotPDF(header []byte) string {
	return fmt.Sprintf("File does not appear to be a valid PDF. First bytes: %q", header)
}

// Sniff returns the not-a-PDF diagnostic for path, or "" when the header looks
// right or the file cannot be read.
func Sniff(path string) string {
	header, err := Header(path)
	if err != nil || IsPDF(header) {
		return ""
	}
	return NotPDF(header)
}

// Report summarizes the structure of a document that yielded no text
type Report struct {
	Version   string
	Pages     int
	Images    int
	Encrypted bool
	Err       error
}

// Reason explains the report in one phrase, or "" when nothing stands out
func (r Report) Reason() string {
	switch {
	case r.Encrypted:
		return "document is encrypted"
	case r.Err != nil:
		return fmt.Sprintf("document structure could not be read: %v", r.Err)
	case r.Pages > 0 && r.Images > 0:
		return fmt.Sprintf("%d page(s) with %d embedded image(s) but no extractable text", r.Pages, r.Images)
	case r.Pages > 0:
		return fmt.Sprintf("%d page(s) without extractable text", r.Pages)
	default:
		return ""
	}
}

// Inspect reads the document structure with pdfcpu and counts embedded images
// with ledongthuc/pdf. Failures are recorded on the report, never returned.
func Inspect(path string, logger *zap.Logger) Report {
	if logger == nil {
		logger = zap.NewNop()
	}

	var report Report

	f, err := os.Open(path)
	if err != nil {
		report.Err = err
		return report
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		report.Err = err
		logger.Debug("structure read failed", zap.String("path", path), zap.Error(err))
		return report
	}
	if err := ctx.EnsurePageCount(); err != nil {
		report.Err = err
		return report
	}

	report.Pages = ctx.PageCount
	report.Encrypted = ctx.Encrypt != nil
	if ctx.HeaderVersion != nil {
		report.Version = ctx.HeaderVersion.String()
	}

	if !report.Encrypted {
		report.Images = countImages(path)
	}

	logger.Debug("document inspected",
		zap.String("path", path),
		zap.String("version", report.Version),
		zap.Int("pages", report.Pages),
		zap.Int("images", report.Images),
		zap.Bool("encrypted", report.Encrypted))

	return report
}

func countImages(path string) (count int) {
	defer func() {
		if recover() != nil {
			count = 0
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()

	for n := 1; n <= reader.NumPage(); n++ {
		count += imagesOnPage(reader.Page(n))
	}
	return count
}

func imagesOnPage(page pdf.Page) int {
	if page.V.IsNull() {
		return 0
	}

	xObjects := page.V.Key("Resources").Key("XObject")
	if xObjects.IsNull() || xObjects.Kind() != pdf.Dict {
		return 0
	}

	images := 0
	for _, key := range xObjects.Keys() {
		if xObjects.Key(key).Key("Subtype").Name() == "Image" {
			images++
		}
	}
	return images
}
