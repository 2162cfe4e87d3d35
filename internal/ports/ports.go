package ports

import (
	"context"
	"time"

	"github.com/dzhafarfovss-code/economy-monitor/internal/domain"
)

// LinkScanner extracts link candidates from a listing page.
type LinkScanner interface {
	Scan(ctx context.Context, pageURL, baseURL string) ([]domain.Candidate, error)
}

// DocumentFetcher downloads a report document in full.
type DocumentFetcher interface {
	Document(ctx context.Context, url string) ([]byte, error)
}

// TextExtractor decodes document bytes into page-ordered text.
type TextExtractor interface {
	Extract(data []byte) (string, error)
}

// Analyzer produces a condensed analysis for extracted text. It never fails:
// when the capability is unavailable it returns a degraded excerpt and
// degraded=true.
type Analyzer interface {
	Analyze(ctx context.Context, text, title, sourceName string) (analysis string, degraded bool)
}

// DeliveryOutcome reports how a message went out.
type DeliveryOutcome struct {
	Delivered     bool
	PlainFallback bool
	Chunks        int
}

// Notifier delivers one composed message, chunking and degrading format as
// needed.
type Notifier interface {
	Deliver(ctx context.Context, message string) (DeliveryOutcome, error)
}

// SeenStore is the durable deduplication set. Claim reserves a URL for the
// calling goroutine; it returns false when the URL was already delivered or
// is being processed elsewhere in this run. Release undoes an unfinished
// claim so the next run can retry. Record persists the URL and is
// idempotent.
type SeenStore interface {
	Has(url string) bool
	Claim(url string) bool
	Release(url string)
	Record(url string) error
}

// HistoryArchive keeps delivered notifications for audit. Best-effort.
type HistoryArchive interface {
	SaveDelivered(ctx context.Context, n domain.Notification) error
}

// Scheduler fires the watch-mode job on a recurring schedule.
type Scheduler interface {
	Start(job func(time.Time)) error
	Stop()
}
