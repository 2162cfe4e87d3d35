package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"

	"github.com/dzhafarfovss-code/economy-monitor/internal/domain"
	"github.com/dzhafarfovss-code/economy-monitor/internal/ports"
)

const analysisExcerptLimit = 2000

// History archives delivered notifications in Postgres for audit. It is not
// the deduplication authority; the seen file is.
type History struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

var _ ports.HistoryArchive = (*History)(nil)

// OpenHistory connects to Postgres and ensures the table exists.
func OpenHistory(ctx context.Context, dsn string) (*History, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}

	h := &History{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
	if err := h.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return h, nil
}

func (h *History) migrate(ctx context.Context) error {
	_, err := h.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS delivered_reports (
			page_url      TEXT PRIMARY KEY,
			document_url  TEXT NOT NULL,
			source        TEXT NOT NULL,
			title         TEXT NOT NULL,
			analysis      TEXT NOT NULL DEFAULT '',
			degraded      BOOLEAN NOT NULL DEFAULT FALSE,
			plain_fallback BOOLEAN NOT NULL DEFAULT FALSE,
			delivered_at  TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("migrate history: %w", err)
	}
	return nil
}

// SaveDelivered upserts the notification snapshot keyed by page URL.
func (h *History) SaveDelivered(ctx context.Context, n domain.Notification) error {
	if h.db == nil {
		return nil
	}

	query, args, err := h.builder.
		Insert("delivered_reports").
		Columns("page_url", "document_url", "source", "title", "analysis", "degraded", "plain_fallback", "delivered_at").
		Values(
			n.Ref.PageURL,
			n.Ref.DocumentURL,
			n.Ref.SourceName,
			n.Ref.Title,
			excerpt(n.Analysis),
			n.Degraded,
			n.PlainFallback,
			n.DeliveredAt,
		).
		Suffix(`ON CONFLICT (page_url) DO UPDATE
			SET analysis = EXCLUDED.analysis,
			    degraded = EXCLUDED.degraded,
			    plain_fallback = EXCLUDED.plain_fallback,
			    delivered_at = EXCLUDED.delivered_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build history upsert: %w", err)
	}

	if _, err := h.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert delivered report: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (h *History) Close() error {
	if h.db == nil {
		return nil
	}
	return h.db.Close()
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= analysisExcerptLimit {
		return s
	}
	return string(runes[:analysisExcerptLimit])
}
