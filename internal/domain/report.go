package domain

import "time"

// Candidate is an anchor discovered on a listing page: its visible text and
// the href resolved to an absolute URL. Identity is the URL.
type Candidate struct {
	Title string
	URL   string
}

// DocumentRef points at a directly downloadable report document, together
// with the listing entry it came from.
type DocumentRef struct {
	DocumentURL string
	PageURL     string
	Title       string
	SourceName  string
}

// Notification is the composed outbound message for one document plus the
// metadata the history archive keeps.
type Notification struct {
	Ref           DocumentRef
	Analysis      string
	Degraded      bool
	PlainFallback bool
	DeliveredAt   time.Time
}

// ItemStatus enumerates pipeline milestones for one discovered candidate.
type ItemStatus string

const (
	StatusDiscovered  ItemStatus = "discovered"
	StatusFilteredOut ItemStatus = "filtered_out"
	StatusUnresolved  ItemStatus = "unresolved"
	StatusResolved    ItemStatus = "resolved"
	StatusExtracted   ItemStatus = "extracted"
	StatusAnalyzed    ItemStatus = "analyzed"
	StatusDelivered   ItemStatus = "delivered"
	StatusRecorded    ItemStatus = "recorded"
	StatusAborted     ItemStatus = "aborted"
)

// RunSummary aggregates counters for one full pass over all sources.
type RunSummary struct {
	Candidates  int
	Matched     int
	Delivered   int
	SkippedSeen int
	Unresolved  int
	Failed      int
}

// Add merges per-source counters into the run total.
func (s *RunSummary) Add(other RunSummary) {
	s.Candidates += other.Candidates
	s.Matched += other.Matched
	s.Delivered += other.Delivered
	s.SkippedSeen += other.SkippedSeen
	s.Unresolved += other.Unresolved
	s.Failed += other.Failed
}
