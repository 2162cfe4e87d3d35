// Package filter decides whether a discovered candidate is worth processing:
// its title must hit one of the source's topic patterns and its title or URL
// must carry a marker of the current reporting period.
package filter

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dzhafarfovss-code/economy-monitor/internal/domain"
)

// Topics is an ordered list of case-insensitive patterns. The first matching
// pattern short-circuits; order matters only for diagnostics.
type Topics struct {
	patterns []*regexp.Regexp
	raw      []string
}

// CompileTopics builds the topic matcher from configured pattern strings.
func CompileTopics(patterns []string) (*Topics, error) {
	t := &Topics{raw: patterns}
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("topic pattern %q: %w", p, err)
		}
		t.patterns = append(t.patterns, re)
	}
	return t, nil
}

// Match returns the first matching raw pattern, or "" when nothing matches.
func (t *Topics) Match(title string) string {
	for i, re := range t.patterns {
		if re.MatchString(title) {
			return t.raw[i]
		}
	}
	return ""
}

// FreshnessRule is a list of accepted period markers with an "any marker in
// title or URL" policy. Markers are plain substrings, not parsed dates:
// the watched sites expose no structured dates, so matching stays permissive
// and false positives are resolved by the human reading the notification.
type FreshnessRule struct {
	Markers []string
}

// Accept reports whether the title or URL carries any period marker.
// An empty rule accepts everything.
func (r FreshnessRule) Accept(title, url string) bool {
	if len(r.Markers) == 0 {
		return true
	}
	haystack := strings.ToLower(title + " " + url)
	for _, m := range r.Markers {
		if m == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

// Russian month names; publications write the genitive form («ноября 2025»),
// announcements sometimes the nominative («ноябрь 2025»).
var (
	monthsGenitive = [...]string{
		"января", "февраля", "марта", "апреля", "мая", "июня",
		"июля", "августа", "сентября", "октября", "ноября", "декабря",
	}
	monthsNominative = [...]string{
		"январь", "февраль", "март", "апрель", "май", "июнь",
		"июль", "август", "сентябрь", "октябрь", "ноябрь", "декабрь",
	}
)

// PeriodMarkers derives the marker set for the month containing now: the
// bare year plus every numeric and spelled-out form of the month. During the
// first week of a month the previous month's markers are included too,
// because reports covering the prior period keep appearing for a few days.
func PeriodMarkers(now time.Time) FreshnessRule {
	rule := FreshnessRule{Markers: monthMarkers(now)}
	if now.Day() <= 7 {
		rule.Markers = append(rule.Markers, monthMarkers(now.AddDate(0, -1, 0))...)
	}
	return rule
}

func monthMarkers(t time.Time) []string {
	year := t.Format("2006")
	month := t.Format("01")
	idx := int(t.Month()) - 1
	return []string{
		year,
		fmt.Sprintf("-%s-", month),
		fmt.Sprintf("_%s_", month),
		fmt.Sprintf("%s-%s", year, month),
		fmt.Sprintf("%s %s", monthsGenitive[idx], year),
		fmt.Sprintf("%s %s", monthsNominative[idx], year),
	}
}

// Filter combines topic and freshness checks for one source.
type Filter struct {
	topics    *Topics
	freshness FreshnessRule
}

// New wires compiled topics and a freshness rule together.
func New(topics *Topics, freshness FreshnessRule) *Filter {
	return &Filter{topics: topics, freshness: freshness}
}

// Accept returns the matched topic pattern and whether the candidate passes
// both checks. A topic hit with a stale period marker is rejected.
func (f *Filter) Accept(c domain.Candidate) (string, bool) {
	topic := f.topics.Match(c.Title)
	if topic == "" {
		return "", false
	}
	if !f.freshness.Accept(c.Title, c.URL) {
		return topic, false
	}
	return topic, true
}
