// Package telegram delivers notifications via the Bot API sendMessage
// endpoint.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/dzhafarfovss-code/economy-monitor/internal/config"
	"github.com/dzhafarfovss-code/economy-monitor/internal/errs"
	"github.com/dzhafarfovss-code/economy-monitor/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"

	// Telegram caps messages at 4096 characters; chunks stay below that
	// with headroom, matching the long-standing 4000 split.
	channelLimit = 4096
	chunkRunes   = 4000

	maxRetries     = 3
	requestTimeout = 10 * time.Second
)

var linkSyntax = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)

// Notifier sends messages to one chat, pacing chunks to stay under the
// channel's rate limits.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *slog.Logger
}

var _ ports.Notifier = (*Notifier)(nil)

// New registers bot credentials. The limiter allows one chunk per second,
// the pause the Bot API tolerates without throttling.
func New(cfg config.MessagingConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		client:   &http.Client{Timeout: requestTimeout},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		logger:   logger,
	}
}

// NewWithBase is New with an overridden API base URL.
func NewWithBase(cfg config.MessagingConfig, apiBase string, logger *slog.Logger) *Notifier {
	n := New(cfg, logger)
	n.apiBase = apiBase
	return n
}

// Deliver splits the message into ordered chunks and sends each one,
// Markdown first. A chunk whose formatted payload is rejected by the channel
// is stripped of formatting markers and resent as plain text; that is the
// whole fallback, there is no third attempt. Transient failures are retried
// with exponential backoff inside each send. Delivery counts as successful
// only when every chunk is acknowledged.
func (n *Notifier) Deliver(ctx context.Context, message string) (ports.DeliveryOutcome, error) {
	if n.botToken == "" || n.chatID == "" {
		return ports.DeliveryOutcome{}, &errs.DeliveryError{
			Kind: errs.DeliveryPermanent,
			Err:  errors.New("notifier misconfigured: missing token or chat id"),
		}
	}

	outcome := ports.DeliveryOutcome{}
	for i, chunk := range SplitChunks(message, chunkRunes) {
		if err := n.limiter.Wait(ctx); err != nil {
			return outcome, &errs.DeliveryError{Kind: errs.DeliveryTransient, Err: err}
		}

		err := n.sendWithRetry(ctx, chunk, "Markdown")
		if err != nil {
			var de *errs.DeliveryError
			if errors.As(err, &de) && de.Kind == errs.DeliveryFormatRejected {
				if n.logger != nil {
					n.logger.Warn("formatted payload rejected, resending plain", "chunk", i)
				}
				err = n.sendWithRetry(ctx, StripFormatting(chunk), "")
				outcome.PlainFallback = true
			}
		}
		if err != nil {
			return outcome, err
		}
		outcome.Chunks++
	}

	outcome.Delivered = true
	return outcome, nil
}

func (n *Notifier) sendWithRetry(ctx context.Context, text, parseMode string) error {
	op := func() error {
		err := n.send(ctx, text, parseMode)
		if err == nil {
			return nil
		}
		if errs.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(op, policy)
}

func (n *Notifier) send(ctx context.Context, text, parseMode string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	if parseMode != "" {
		form.Set("parse_mode", parseMode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &errs.DeliveryError{Kind: errs.DeliveryPermanent, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return &errs.DeliveryError{Kind: errs.DeliveryTransient, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	statusErr := fmt.Errorf("telegram %s: %s", resp.Status, strings.TrimSpace(string(detail)))

	switch {
	case resp.StatusCode == http.StatusBadRequest && parseMode != "":
		return &errs.DeliveryError{Kind: errs.DeliveryFormatRejected, Status: resp.StatusCode, Err: statusErr}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return &errs.DeliveryError{Kind: errs.DeliveryTransient, Status: resp.StatusCode, Err: statusErr}
	default:
		return &errs.DeliveryError{Kind: errs.DeliveryPermanent, Status: resp.StatusCode, Err: statusErr}
	}
}

// SplitChunks cuts the message into rune-boundary chunks of at most size
// runes, preserving order. Concatenating the chunks reproduces the message.
func SplitChunks(message string, size int) []string {
	if size <= 0 || size > channelLimit {
		size = chunkRunes
	}

	runes := []rune(message)
	if len(runes) <= size {
		return []string{message}
	}

	chunks := make([]string, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// StripFormatting removes the Markdown marker characters that make Telegram
// reject a payload: link syntax becomes "text url", then asterisks,
// underscores and backticks are dropped.
func StripFormatting(s string) string {
	s = linkSyntax.ReplaceAllString(s, "$1 $2")
	return strings.NewReplacer("*", "", "_", "", "`", "").Replace(s)
}
