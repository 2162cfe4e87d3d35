// Package scrape turns fetched listing pages into link candidates.
package scrape

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dzhafarfovss-code/economy-monitor/internal/domain"
	"github.com/dzhafarfovss-code/economy-monitor/internal/errs"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/fetch"
)

// LinkScanner fetches a page and extracts every usable anchor as a Candidate.
type LinkScanner struct {
	client *fetch.Client
	logger *slog.Logger
}

// NewLinkScanner wires the shared HTTP client.
func NewLinkScanner(client *fetch.Client, logger *slog.Logger) *LinkScanner {
	return &LinkScanner{client: client, logger: logger}
}

// Scan GETs pageURL and returns (title, absolute URL) pairs. Anchors without
// an href and anchors with blank text are dropped, not errored. Relative
// hrefs are resolved against baseURL, or against pageURL when baseURL is
// empty.
func (s *LinkScanner) Scan(ctx context.Context, pageURL, baseURL string) ([]domain.Candidate, error) {
	body, err := s.client.Page(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, &errs.ParseError{URL: pageURL, Err: err}
	}

	base := baseURL
	if base == "" {
		base = pageURL
	}
	resolved, err := url.Parse(base)
	if err != nil {
		return nil, &errs.ParseError{URL: pageURL, Err: err}
	}

	var candidates []domain.Candidate
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			return
		}

		title := strings.Join(strings.Fields(a.Text()), " ")
		if title == "" {
			return
		}

		abs := absoluteURL(resolved, href)
		if abs == "" {
			return
		}

		candidates = append(candidates, domain.Candidate{Title: title, URL: abs})
	})

	if s.logger != nil {
		s.logger.Debug("page scanned", "url", pageURL, "candidates", len(candidates))
	}
	return candidates, nil
}

func absoluteURL(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	return abs.String()
}
