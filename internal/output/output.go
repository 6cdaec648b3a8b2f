// Package output writes extraction results to stdout in the code page the
// calling process reads, and falls back to a UTF-8 file when the text cannot be
// represented there.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// FallbackFileName is written next to the PDF when stdout cannot carry the text
const FallbackFileName = "extracted_text.txt"

// UnencodableError reports the first rune the target encoding cannot represent
type UnencodableError struct {
	Rune     rune
	Offset   int
	Encoding string
}

func (e *UnencodableError) Error() string {
	return fmt.Sprintf("%s cannot encode character %U at byte offset %d", e.Encoding, e.Rune, e.Offset)
}

// Encoder converts UTF-8 text into a named code page
type Encoder struct {
	name  string
	enc   encoding.Encoding
	ascii bool
}

// NewEncoder resolves name through the WHATWG label index. "" selects UTF-8;
// "ascii" and "us-ascii" are strict 7-bit rather than the WHATWG windows-1252 alias.
func NewEncoder(name string) (*Encoder, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	switch label {
	case "", "utf-8", "utf8":
		return &Encoder{name: "utf-8"}, nil
	case "ascii", "us-ascii":
		return &Encoder{name: "ascii", ascii: true}, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported encoding %q: %w", name, err)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = label
	}
	if canonical == "utf-8" {
		return &Encoder{name: canonical}, nil
	}
	return &Encoder{name: canonical, enc: enc}, nil
}

// Name returns the canonical encoding name
func (e *Encoder) Name() string {
	return e.name
}

// UTF8 reports whether the encoder passes text through unchanged
func (e *Encoder) UTF8() bool {
	return e.enc == nil && !e.ascii
}

// Strict encodes text, failing on the first rune the code page lacks
func (e *Encoder) Strict(text string) ([]byte, error) {
	return e.transform(text, func(_ *bytes.Buffer, r rune, offset int) error {
		return &UnencodableError{Rune: r, Offset: offset, Encoding: e.name}
	})
}

// EscapeJSON encodes serialized JSON, replacing runes the code page lacks with
// \uXXXX escapes (surrogate pairs above the BMP). Non-ASCII runes only occur
// inside JSON strings, so the result stays valid JSON.
func (e *Encoder) EscapeJSON(data []byte) []byte {
	out, _ := e.transform(string(data), func(buf *bytes.Buffer, r rune, _ int) error {
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(buf, `\u%04x\u%04x`, hi, lo)
			return nil
		}
		fmt.Fprintf(buf, `\u%04x`, r)
		return nil
	})
	return out
}

func (e *Encoder) transform(text string, unencodable func(*bytes.Buffer, rune, int) error) ([]byte, error) {
	if e.UTF8() {
		return []byte(text), nil
	}

	var (
		buf bytes.Buffer
		enc *encoding.Encoder
	)
	if e.enc != nil {
		enc = e.enc.NewEncoder()
	}

	for offset, r := range text {
		switch {
		case enc == nil && r < utf8.RuneSelf:
			buf.WriteByte(byte(r))
			continue
		case enc != nil && r != utf8.RuneError:
			if out, err := enc.String(string(r)); err == nil {
				buf.WriteString(out)
				continue
			}
		}
		if err := unencodable(&buf, r, offset); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// WriteJSON serializes v without escaping HTML or non-ASCII characters, then
// adapts it to the encoder's code page.
func WriteJSON(w io.Writer, v any, enc *Encoder) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if _, err := w.Write(enc.EscapeJSON(buf.Bytes())); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	return nil
}

// WriteText writes text and a trailing newline. Nothing is written when the
// text cannot be encoded; the error is then an *UnencodableError.
func WriteText(w io.Writer, text string, enc *Encoder) error {
	data, err := enc.Strict(text + "\n")
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing text: %w", err)
	}
	return nil
}

// SaveFallback stores text as UTF-8 next to the PDF and returns the file path
func SaveFallback(pdfPath, text string) (string, error) {
	path := filepath.Join(filepath.Dir(pdfPath), FallbackFileName)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("saving fallback text: %w", err)
	}
	return path, nil
}

// SaveText writes text as UTF-8 to path, used by --output
func SaveText(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	return nil
}
