package extract

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/a3tai/pdf-rtl-extract/internal/pdf/backend"
	"github.com/a3tai/pdf-rtl-extract/internal/pdf/diagnose"
)

// Document is the result for one file of a batch
type Document struct {
	Path string `json:"path"`
	Result
}

// BatchResult aggregates the extraction of several files
type BatchResult struct {
	TotalDocumentsProcessed int        `json:"totalDocumentsProcessed"`
	SuccessfulDocuments     int        `json:"successfulDocuments"`
	FailedDocuments         int        `json:"failedDocuments"`
	TotalTextExtracted      int        `json:"totalTextExtracted"`
	ProcessingTimeMs        int64      `json:"processingTimeMs"`
	Error                   *string    `json:"error"`
	Documents               []Document `json:"documents"`
}

// ExtractBatch extracts each file in turn. Files that fail the pre-flight
// check are recorded as failed documents without running any backend.
// Cancellation stops the batch before the next file.
func (e *Extractor) ExtractBatch(ctx context.Context, paths []string, preferred backend.Method) BatchResult {
	start := time.Now()
	batch := BatchResult{Documents: make([]Document, 0, len(paths))}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			msg := fmt.Sprintf("batch interrupted after %d of %d documents: %v", len(batch.Documents), len(paths), err)
			batch.Error = &msg
			break
		}

		var res Result
		if err := diagnose.CheckFile(path, e.maxFileSize); err != nil {
			msg := err.Error()
			res = Result{ExtractionMethod: backend.MethodUnknown, Error: &msg}
		} else {
			res = e.Extract(ctx, path, preferred)
		}

		batch.TotalDocumentsProcessed++
		if res.Failed() {
			batch.FailedDocuments++
		} else {
			batch.SuccessfulDocuments++
			batch.TotalTextExtracted += utf8.RuneCountInString(res.Text)
		}
		batch.Documents = append(batch.Documents, Document{Path: path, Result: res})

		e.logger.Info("document processed",
			zap.String("path", path),
			zap.String("method", string(res.ExtractionMethod)),
			zap.Bool("failed", res.Failed()))
	}

	if batch.Error == nil && batch.FailedDocuments > 0 {
		msg := fmt.Sprintf("%d of %d documents failed", batch.FailedDocuments, batch.TotalDocumentsProcessed)
		batch.Error = &msg
	}
	batch.ProcessingTimeMs = time.Since(start).Milliseconds()

	return batch
}
