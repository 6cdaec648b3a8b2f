package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/pdf-rtl-extract/internal/pdf/pdftest"
)

type response struct {
	Text             string  `json:"text"`
	IsRightToLeft    bool    `json:"isRightToLeft"`
	ExtractionMethod string  `json:"extractionMethod"`
	Error            *string `json:"error"`
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunVersion(t *testing.T) {
	code, stdout, _ := runCLI(t, "--version")

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "PDF RTL Extract")
	assert.Contains(t, stdout, "Version: dev")
}

func TestRunUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no files", nil},
		{"unknown flag", []string{"--nope", "a.pdf"}},
		{"invalid method", []string{"--method=ocr", "a.pdf"}},
		{"invalid encoding", []string{"--encoding=klingon", "a.pdf"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.args...)
			assert.Equal(t, exitUsage, code)
			assert.Empty(t, stdout)
			assert.NotEmpty(t, stderr)
		})
	}
}

func TestRunMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.pdf")

	code, stdout, _ := runCLI(t, path)

	assert.Equal(t, exitError, code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, map[string]string{"error": "File not found: " + path}, resp)
}

func TestRunExtractsText(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "hello.pdf", pdftest.Text("Hello world"))

	code, stdout, _ := runCLI(t, path)

	assert.Equal(t, exitOK, code)
	var resp response
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "Hello world", resp.Text)
	assert.False(t, resp.IsRightToLeft)
	assert.Contains(t, []string{"pymupdf", "pdfminer"}, resp.ExtractionMethod)
	assert.Nil(t, resp.Error)
}

func TestRunPreferredMethod(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "hello.pdf", pdftest.Text("Hello world"))

	code, stdout, _ := runCLI(t, "--method=pdfminer", path)

	assert.Equal(t, exitOK, code)
	var resp response
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "pdfminer", resp.ExtractionMethod)
}

func TestRunNotPDF(t *testing.T) {
	path := pdftest.WriteRaw(t, t.TempDir(), "notes.pdf", []byte("hello, this is plain text"))

	code, stdout, _ := runCLI(t, path)

	assert.Equal(t, exitOK, code)
	var resp response
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Empty(t, resp.Text)
	assert.Equal(t, "unknown", resp.ExtractionMethod)
	require.NotNil(t, resp.Error)
	assert.Contains(t, *resp.Error, "File does not appear to be a valid PDF")
}

func TestRunOutputFile(t *testing.T) {
	dir := t.TempDir()
	path := pdftest.Write(t, dir, "hello.pdf", pdftest.Text("Hello world"))
	out := filepath.Join(dir, "out.txt")

	code, stdout, _ := runCLI(t, "--output", out, path)

	assert.Equal(t, exitOK, code)
	assert.Empty(t, stdout)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", string(data))
}

func TestRunBatch(t *testing.T) {
	dir := t.TempDir()
	first := pdftest.Write(t, dir, "first.pdf", pdftest.Text("Hello world"))
	second := pdftest.Write(t, dir, "second.pdf", pdftest.Text("Second file"))

	code, stdout, _ := runCLI(t, first, second)

	assert.Equal(t, exitOK, code)
	var batch struct {
		TotalDocumentsProcessed int        `json:"totalDocumentsProcessed"`
		SuccessfulDocuments     int        `json:"successfulDocuments"`
		Documents               []response `json:"documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &batch))
	assert.Equal(t, 2, batch.TotalDocumentsProcessed)
	assert.Equal(t, 2, batch.SuccessfulDocuments)
	require.Len(t, batch.Documents, 2)
	assert.Equal(t, "Second file", batch.Documents[1].Text)
}

func TestRunBatchOutputFile(t *testing.T) {
	dir := t.TempDir()
	first := pdftest.Write(t, dir, "first.pdf", pdftest.Text("Hello world"))
	out := filepath.Join(dir, "batch.json")

	code, stdout, _ := runCLI(t, "--output", out, first, filepath.Join(dir, "missing.pdf"))

	assert.Equal(t, exitOK, code)
	assert.Empty(t, stdout)
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"failedDocuments":1`)
}

func TestRunCheckBackends(t *testing.T) {
	code, stdout, _ := runCLI(t, "--check-backends")

	assert.Equal(t, exitOK, code)
	var caps []struct {
		Method    string `json:"method"`
		Available bool   `json:"available"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &caps))
	require.Len(t, caps, 2)

	available := map[string]bool{}
	for _, c := range caps {
		available[c.Method] = c.Available
	}
	assert.True(t, available["pdfminer"])
}

func TestRunCheckBackendsAllDisabled(t *testing.T) {
	t.Setenv("PDF_RTL_DISABLE", "pymupdf,pdfminer")

	code, stdout, _ := runCLI(t, "--check-backends")

	assert.Equal(t, exitError, code)
	assert.Contains(t, stdout, "disabled by configuration")
}

func TestRunNoBackends(t *testing.T) {
	t.Setenv("PDF_RTL_DISABLE", "pymupdf,pdfminer")
	path := pdftest.Write(t, t.TempDir(), "hello.pdf", pdftest.Text("Hello world"))

	code, stdout, _ := runCLI(t, path)

	assert.Equal(t, exitOK, code)
	var resp response
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "unknown", resp.ExtractionMethod)
	require.NotNil(t, resp.Error)
}

func TestRunDebugLogsAttempts(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "hello.pdf", pdftest.Text("Hello world"))

	code, stdout, stderr := runCLI(t, "--log-level=debug", path)

	assert.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "Hello world")
	assert.Contains(t, stderr, "backend attempt")
}

func TestRunQuietByDefault(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "hello.pdf", pdftest.Text("Hello world"))

	_, _, stderr := runCLI(t, path)

	assert.NotContains(t, stderr, "backend attempt")
}
