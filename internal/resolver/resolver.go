// Package resolver locates the single downloadable document behind an
// accepted listing candidate.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dzhafarfovss-code/economy-monitor/internal/domain"
	"github.com/dzhafarfovss-code/economy-monitor/internal/ports"
)

// Listing pages label the download anchor instead of ending the href with an
// extension on some layouts.
var downloadLabel = regexp.MustCompile(`(?i)скачать|полный текст`)

// Hints carry the period markers used to break ties between several document
// links on one page. A href containing a current marker beats one with a
// previous-period marker beats one with none; within a class the first link
// in document order wins. Listing pages interleave current and archival
// issues, so "first document found" is not good enough.
type Hints struct {
	Current  []string
	Previous []string
}

// HintsFor derives numeric period markers for the month containing now.
func HintsFor(now time.Time) Hints {
	prev := now.AddDate(0, -1, 0)
	return Hints{
		Current:  monthForms(now),
		Previous: monthForms(prev),
	}
}

// monthForms are year-qualified on purpose: a bare "-11-" would rank an
// archival november issue from an earlier year as current.
func monthForms(t time.Time) []string {
	year := t.Format("2006")
	month := t.Format("01")
	return []string{
		fmt.Sprintf("%s-%s", year, month),
		fmt.Sprintf("%s_%s", year, month),
		fmt.Sprintf("%s%s", year, month),
	}
}

// Resolver finds document URLs via the shared link scanner.
type Resolver struct {
	scanner ports.LinkScanner
	logger  *slog.Logger
}

// New wires the link scanner.
func New(scanner ports.LinkScanner, logger *slog.Logger) *Resolver {
	return &Resolver{scanner: scanner, logger: logger}
}

// Resolve turns an accepted candidate into a DocumentRef. When the candidate
// URL already ends in a document extension it is used directly; otherwise the
// candidate page is scanned for document links and the best one is chosen per
// Hints. A page without any document link resolves to ok=false, not an
// error.
func (r *Resolver) Resolve(ctx context.Context, c domain.Candidate, sourceName, baseURL string, extensions []string, hints Hints) (domain.DocumentRef, bool, error) {
	if len(extensions) == 0 {
		extensions = []string{".pdf"}
	}

	if hasDocumentExtension(c.URL, extensions) {
		return domain.DocumentRef{
			DocumentURL: c.URL,
			PageURL:     c.URL,
			Title:       c.Title,
			SourceName:  sourceName,
		}, true, nil
	}

	links, err := r.scanner.Scan(ctx, c.URL, baseURL)
	if err != nil {
		return domain.DocumentRef{}, false, err
	}

	docURL := pickDocument(links, extensions, hints)
	if docURL == "" {
		if r.logger != nil {
			r.logger.Info("no document link on page", "page", c.URL, "title", c.Title)
		}
		return domain.DocumentRef{}, false, nil
	}

	return domain.DocumentRef{
		DocumentURL: docURL,
		PageURL:     c.URL,
		Title:       c.Title,
		SourceName:  sourceName,
	}, true, nil
}

// pickDocument applies the tie-break policy over document-extension links,
// falling back to download-labelled anchors when no href carries an
// extension.
func pickDocument(links []domain.Candidate, extensions []string, hints Hints) string {
	var onExtension []domain.Candidate
	for _, l := range links {
		if hasDocumentExtension(l.URL, extensions) {
			onExtension = append(onExtension, l)
		}
	}

	if len(onExtension) == 0 {
		for _, l := range links {
			if downloadLabel.MatchString(l.Title) {
				return l.URL
			}
		}
		return ""
	}

	best := ""
	bestRank := -1
	for _, l := range onExtension {
		rank := periodRank(l.URL, hints)
		if rank > bestRank {
			best = l.URL
			bestRank = rank
		}
	}
	return best
}

func periodRank(href string, hints Hints) int {
	lower := strings.ToLower(href)
	if containsAny(lower, hints.Current) {
		return 2
	}
	if containsAny(lower, hints.Previous) {
		return 1
	}
	return 0
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func hasDocumentExtension(rawURL string, extensions []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, ext := range extensions {
		if strings.HasSuffix(path, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
