// Package llm adapts an OpenAI-compatible chat-completions API into the
// pipeline's analyzer capability.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dzhafarfovss-code/economy-monitor/internal/config"
)

const (
	requestTimeout = 60 * time.Second

	// DegradedMarker opens every fallback result so a reader (and the
	// tests) can tell a degraded excerpt from a real analysis.
	DegradedMarker = "⚠️ Анализ недоступен"

	excerptChars         = 600
	defaultMaxInputChars = 12000
)

// Analyzer calls the chat-completions endpoint. It never surfaces an error:
// a missing key, timeout or remote failure all degrade to a labelled excerpt
// of the raw extracted text, so the notification still goes out.
type Analyzer struct {
	endpoint      string
	model         string
	apiKey        string
	systemPrompt  string
	maxInputChars int
	httpClient    *http.Client
	logger        *slog.Logger
}

// New builds an analyzer from configuration.
func New(cfg config.AnalysisConfig, logger *slog.Logger) *Analyzer {
	maxInput := cfg.MaxInputChars
	if maxInput <= 0 {
		maxInput = defaultMaxInputChars
	}
	return &Analyzer{
		endpoint:      cfg.Endpoint,
		model:         cfg.Model,
		apiKey:        cfg.APIKey,
		systemPrompt:  cfg.SystemPrompt,
		maxInputChars: maxInput,
		httpClient:    &http.Client{Timeout: requestTimeout},
		logger:        logger,
	}
}

// Analyze returns the condensed analysis, or a degraded excerpt with
// degraded=true when the capability is unavailable or errors.
func (a *Analyzer) Analyze(ctx context.Context, text, title, sourceName string) (string, bool) {
	if a.apiKey == "" || a.endpoint == "" || a.model == "" {
		return degraded(text, "ключ API не настроен"), true
	}

	analysis, err := a.complete(ctx, text, title, sourceName)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("analysis failed, degrading", "title", title, "error", err)
		}
		return degraded(text, err.Error()), true
	}

	return analysis, false
}

func (a *Analyzer) complete(ctx context.Context, text, title, sourceName string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":       a.model,
		"temperature": 0.3,
		"messages": []map[string]string{
			{"role": "system", "content": a.systemPrompt},
			{"role": "user", "content": buildPrompt(text, title, sourceName, a.maxInputChars)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("api error %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion")
	}

	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

func buildPrompt(text, title, sourceName string, maxInputChars int) string {
	return fmt.Sprintf(`Проанализируй документ: "%s" от %s.

Дай СУХУЮ выжимку для принятия инвестиционных решений.

СТРУКТУРА ОТВЕТА:
1. 🦅 **Риторика:** (Жесткая/Мягкая/Нейтральная). Почему?
2. 📊 **Главные цифры:** (Инфляция, ожидания, кадровый голод, потоки в ОФЗ).
3. 🏛 **Влияние на ОФЗ:** (Покупать/Продавать/Держать). Есть ли смена тренда?
4. 🔥 **Риски:** Что может пойти не так?

Текст документа (первые страницы):
%s`, title, sourceName, truncate(text, maxInputChars))
}

func degraded(text, reason string) string {
	return fmt.Sprintf("%s (%s). Начало текста:\n%s...", DegradedMarker, reason, truncate(text, excerptChars))
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
