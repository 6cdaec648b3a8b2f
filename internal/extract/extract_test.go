package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/a3tai/pdf-rtl-extract/internal/normalize"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/backend"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/pdftest"
)

// fakeBackend returns canned text or an error and counts its calls
type fakeBackend struct {
	method backend.Method
	text   string
	err    error
	panics bool
	calls  int
}

func (f *fakeBackend) Method() backend.Method { return f.method }
func (f *fakeBackend) Library() string        { return "fake " + string(f.method) }

func (f *fakeBackend) Extract(context.Context, string) (string, error) {
	f.calls++
	if f.panics {
		panic("backend exploded")
	}
	return f.text, f.err
}

func mupdf(text string, err error) *fakeBackend {
	return &fakeBackend{method: backend.MethodMuPDF, text: text, err: err}
}

func layout(text string, err error) *fakeBackend {
	return &fakeBackend{method: backend.MethodLayout, text: text, err: err}
}

// pdfFile writes a real PDF so failure diagnostics see a valid header
func pdfFile(t *testing.T) string {
	t.Helper()
	return pdftest.Write(t, t.TempDir(), "doc.pdf", pdftest.Text("x"))
}

func TestOrder(t *testing.T) {
	m, l := mupdf("", nil), layout("", nil)

	tests := []struct {
		name      string
		backends  []backend.Backend
		preferred backend.Method
		want      []backend.Method
	}{
		{
			name:     "default order",
			backends: []backend.Backend{m, l},
			want:     []backend.Method{backend.MethodMuPDF, backend.MethodLayout},
		},
		{
			name:      "preferred first",
			backends:  []backend.Backend{m, l},
			preferred: backend.MethodLayout,
			want:      []backend.Method{backend.MethodLayout, backend.MethodMuPDF},
		},
		{
			name:      "preferred unavailable",
			backends:  []backend.Backend{l},
			preferred: backend.MethodMuPDF,
			want:      []backend.Method{backend.MethodLayout},
		},
		{
			name:      "unknown preference",
			backends:  []backend.Backend{m, l},
			preferred: backend.Method("both"),
			want:      []backend.Method{backend.MethodMuPDF, backend.MethodLayout},
		},
		{
			name: "nothing available",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Options{Backends: backend.NewSet(tt.backends...)})

			var got []backend.Method
			for _, b := range e.Order(tt.preferred) {
				got = append(got, b.Method())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractLatinText(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet(mupdf("Hello   world\n", nil), layout("unused", nil))})

	res := e.Extract(context.Background(), path, "")

	assert.Equal(t, "Hello world", res.Text)
	assert.False(t, res.IsRightToLeft)
	assert.Equal(t, backend.MethodMuPDF, res.ExtractionMethod)
	assert.Nil(t, res.Error)
	assert.GreaterOrEqual(t, res.ProcessingTimeMs, int64(0))
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, OutcomeText, res.Attempts[0].Outcome)
}

func TestExtractArabicText(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet(mupdf("مرحبا : بك", nil))})

	res := e.Extract(context.Background(), path, "")

	assert.True(t, res.IsRightToLeft)
	assert.True(t, strings.HasPrefix(res.Text, normalize.RLM))
	assert.NotContains(t, res.Text, " :")
	assert.Contains(t, res.Text, ": بك")
	assert.NotContains(t, res.Text, ":  ")
	assert.Equal(t, normalize.RLM+"مرحبا: بك", res.Text)
}

func TestExtractAllBackendsFail(t *testing.T) {
	path := pdfFile(t)
	m := mupdf("", errors.New("cannot open"))
	l := layout("", &backend.BackendError{Method: backend.MethodLayout, Library: backend.LibraryLayout, Err: errors.New("bad xref")})

	e := New(Options{Backends: backend.NewSet(m, l)})
	res := e.Extract(context.Background(), path, "")

	assert.Empty(t, res.Text)
	assert.Equal(t, backend.MethodUnknown, res.ExtractionMethod)
	require.NotNil(t, res.Error)
	assert.Equal(t, "PDF layout extraction error: bad xref", *res.Error)
	assert.Equal(t, 1, m.calls)
	assert.Equal(t, 1, l.calls)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, OutcomeError, res.Attempts[0].Outcome)
}

func TestExtractNoBackends(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet()})

	res := e.Extract(context.Background(), path, backend.MethodMuPDF)

	assert.Empty(t, res.Text)
	assert.Equal(t, backend.MethodUnknown, res.ExtractionMethod)
	require.NotNil(t, res.Error)
	assert.Equal(t, MessageNoBackend, *res.Error)
}

func TestExtractEmptyOutput(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet(mupdf("  \n\t", nil), layout("", nil))})

	res := e.Extract(context.Background(), path, "")

	require.NotNil(t, res.Error)
	assert.Equal(t, MessageAllFailed, *res.Error)
	assert.Equal(t, backend.MethodUnknown, res.ExtractionMethod)
	for _, a := range res.Attempts {
		assert.Equal(t, OutcomeEmpty, a.Outcome)
	}
}

func TestExtractDiagnosis(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "scan.pdf", pdftest.Page{Images: 1})
	e := New(Options{Backends: backend.NewSet(layout("", nil)), Diagnose: true})

	res := e.Extract(context.Background(), path, "")

	require.NotNil(t, res.Error)
	assert.Equal(t, MessageAllFailed+": 1 page(s) with 1 embedded image(s) but no extractable text", *res.Error)
}

func TestExtractPreferredUnavailable(t *testing.T) {
	path := pdfFile(t)
	l := layout("Hello world", nil)
	e := New(Options{Backends: backend.NewSet(l)})

	res := e.Extract(context.Background(), path, backend.MethodMuPDF)

	assert.Nil(t, res.Error)
	assert.Equal(t, backend.MethodLayout, res.ExtractionMethod)
	assert.Equal(t, "Hello world", res.Text)
}

func TestExtractPreferredFirst(t *testing.T) {
	path := pdfFile(t)
	m, l := mupdf("from mupdf", nil), layout("from layout", nil)
	e := New(Options{Backends: backend.NewSet(m, l)})

	res := e.Extract(context.Background(), path, backend.MethodLayout)

	assert.Equal(t, backend.MethodLayout, res.ExtractionMethod)
	assert.Equal(t, "from layout", res.Text)
	assert.Zero(t, m.calls)
}

func TestExtractFallsBackAfterError(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet(mupdf("", errors.New("boom")), layout("fallback text", nil))})

	res := e.Extract(context.Background(), path, "")

	assert.Nil(t, res.Error)
	assert.Equal(t, backend.MethodLayout, res.ExtractionMethod)
	assert.Equal(t, "fallback text", res.Text)
}

func TestExtractNotPDF(t *testing.T) {
	path := pdftest.WriteRaw(t, t.TempDir(), "fake.pdf", []byte("GIF89a..."))
	e := New(Options{Backends: backend.NewSet(mupdf("", errors.New("format error")))})

	res := e.Extract(context.Background(), path, "")

	assert.Empty(t, res.Text)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "not appear to be a valid PDF")
	assert.Contains(t, *res.Error, "GIF8")
}

func TestExtractSkipsBackendsForNonPDF(t *testing.T) {
	for _, name := range []string{"notes.txt", "notes.pdf"} {
		t.Run(name, func(t *testing.T) {
			path := pdftest.WriteRaw(t, t.TempDir(), name, []byte("Hello world, these are plain notes"))
			m := mupdf("Hello world, these are plain notes", nil)
			e := New(Options{Backends: backend.NewSet(m)})

			res := e.Extract(context.Background(), path, "")

			assert.Zero(t, m.calls)
			assert.Empty(t, res.Text)
			assert.Equal(t, backend.MethodUnknown, res.ExtractionMethod)
			require.NotNil(t, res.Error)
			assert.Contains(t, *res.Error, "not appear to be a valid PDF")
			assert.Empty(t, res.Attempts)
		})
	}
}

func TestExtractRealNotPDF(t *testing.T) {
	path := pdftest.WriteRaw(t, t.TempDir(), "notes.pdf", []byte("just some notes"))
	e := New(Options{Backends: backend.Probe(backend.ProbeOptions{})})

	res := e.Extract(context.Background(), path, "")

	assert.Empty(t, res.Text)
	require.NotNil(t, res.Error)
	assert.Contains(t, *res.Error, "not appear to be a valid PDF")
}

func TestExtractMinTextLength(t *testing.T) {
	path := pdfFile(t)

	t.Run("short text triggers fallback", func(t *testing.T) {
		long := strings.Repeat("word ", 30)
		m, l := mupdf("short", nil), layout(long, nil)
		e := New(Options{Backends: backend.NewSet(m, l), MinTextLength: 100, Raw: true})

		res := e.Extract(context.Background(), path, "")
		assert.Equal(t, backend.MethodLayout, res.ExtractionMethod)
		assert.Equal(t, long, res.Text)
	})

	t.Run("longest short text wins", func(t *testing.T) {
		e := New(Options{
			Backends:      backend.NewSet(mupdf("a bit longer", nil), layout("tiny", nil)),
			MinTextLength: 100,
			Raw:           true,
		})

		res := e.Extract(context.Background(), path, "")
		assert.Nil(t, res.Error)
		assert.Equal(t, backend.MethodMuPDF, res.ExtractionMethod)
		assert.Equal(t, "a bit longer", res.Text)
		assert.Equal(t, OutcomeShort, res.Attempts[0].Outcome)
	})
}

func TestExtractRaw(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet(mupdf("مرحبا :  بك\n", nil)), Raw: true})

	res := e.Extract(context.Background(), path, "")

	assert.True(t, res.IsRightToLeft)
	assert.Equal(t, "مرحبا :  بك\n", res.Text)
}

func TestExtractThreshold(t *testing.T) {
	path := pdfFile(t)
	text := "ab سلام cdefghijklmnopqrstuvwxyz"

	low := New(Options{Backends: backend.NewSet(mupdf(text, nil)), Threshold: 0.1})
	assert.True(t, low.Extract(context.Background(), path, "").IsRightToLeft)

	high := New(Options{Backends: backend.NewSet(mupdf(text, nil)), Threshold: 0.5})
	assert.False(t, high.Extract(context.Background(), path, "").IsRightToLeft)
}

func TestExtractRecoversPanic(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet(&fakeBackend{method: backend.MethodMuPDF, panics: true})})

	res := e.Extract(context.Background(), path, "")

	assert.Equal(t, backend.MethodFailed, res.ExtractionMethod)
	assert.Empty(t, res.Text)
	assert.Zero(t, res.ProcessingTimeMs)
	require.NotNil(t, res.Error)
	assert.Equal(t, "backend exploded", *res.Error)
}

func TestExtractCancelled(t *testing.T) {
	path := pdfFile(t)
	m := mupdf("text", nil)
	e := New(Options{Backends: backend.NewSet(m)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Extract(ctx, path, "")

	assert.Zero(t, m.calls)
	require.NotNil(t, res.Error)
	assert.Equal(t, context.Canceled.Error(), *res.Error)
}

func TestResultJSON(t *testing.T) {
	path := pdfFile(t)
	e := New(Options{Backends: backend.NewSet(mupdf("Hello world", nil))})

	data, err := json.Marshal(e.Extract(context.Background(), path, ""))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Len(t, fields, 5)
	assert.Equal(t, "Hello world", fields["text"])
	assert.Equal(t, false, fields["isRightToLeft"])
	assert.Equal(t, "pymupdf", fields["extractionMethod"])
	assert.Contains(t, fields, "processingTimeMs")
	assert.Nil(t, fields["error"])
	assert.Contains(t, fields, "error")
}

func TestLogAttempts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	attempts := []Attempt{
		{Method: backend.MethodMuPDF, Outcome: OutcomeError, Err: errors.New("broken xref")},
		{Method: backend.MethodLayout, Outcome: OutcomeText, Chars: 42},
	}

	LogAttempts(zap.New(core), attempts)

	entries := logs.FilterMessage("backend attempt").All()
	require.Len(t, entries, 2)

	first := entries[0].ContextMap()
	assert.Equal(t, "pymupdf", first["method"])
	assert.Equal(t, "error", first["outcome"])
	assert.Equal(t, "broken xref", first["error"])

	second := entries[1].ContextMap()
	assert.Equal(t, "pdfminer", second["method"])
	assert.Equal(t, int64(42), second["chars"])
	assert.NotContains(t, second, "error")
}
