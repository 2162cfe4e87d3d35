// Package pdftext adapts the PDF library into the pipeline's text-extractor
// capability.
package pdftext

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dzhafarfovss-code/economy-monitor/internal/errs"
)

const defaultMaxPages = 7

// Extractor reads the leading pages of a PDF. The salient content of these
// report types is front-loaded; the tabular appendices are not worth the
// time or memory.
type Extractor struct {
	maxPages int
	logger   *slog.Logger
}

// New builds an extractor bounded to maxPages; non-positive means the
// default of 7.
func New(maxPages int, logger *slog.Logger) *Extractor {
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &Extractor{maxPages: maxPages, logger: logger}
}

// Extract returns the concatenated text of the first pages. A page that
// yields no text (scanned image, vector-only page) contributes nothing and
// is not an error; only an unreadable container fails.
func (e *Extractor) Extract(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", &errs.ExtractionError{Err: err}
	}

	pages := reader.NumPage()
	if pages > e.maxPages {
		pages = e.maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			if e.logger != nil {
				e.logger.Debug("page text unavailable", "page", i, "error", err)
			}
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}
