package scrape

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dzhafarfovss-code/economy-monitor/internal/domain"
	"github.com/dzhafarfovss-code/economy-monitor/internal/errs"
	"github.com/dzhafarfovss-code/economy-monitor/internal/infrastructure/fetch"
)

func TestScanNormalizesAndDrops(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`
		<html><body>
		  <a href="/press/event/1">Обзор рисков финансовых рынков</a>
		  <a href="https://other.example.org/doc.pdf">Внешний документ</a>
		  <a href="/empty-title">   </a>
		  <a>Без ссылки</a>
		  <a href="mailto:info@cbr.ru">Почта</a>
		</body></html>`))
	}))
	defer server.Close()

	scanner := NewLinkScanner(fetch.New(nil), nil)
	candidates, err := scanner.Scan(context.Background(), server.URL+"/calendar", "https://www.cbr.ru")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}

	want := []domain.Candidate{
		{Title: "Обзор рисков финансовых рынков", URL: "https://www.cbr.ru/press/event/1"},
		{Title: "Внешний документ", URL: "https://other.example.org/doc.pdf"},
	}
	if len(candidates) != len(want) {
		t.Fatalf("expected %d candidates, got %d: %v", len(want), len(candidates), candidates)
	}
	for i := range want {
		if candidates[i] != want[i] {
			t.Fatalf("candidate %d: got %+v, want %+v", i, candidates[i], want[i])
		}
	}
}

func TestScanResolvesAgainstPageURLWithoutBase(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<a href="files/report.pdf">Отчет</a>`))
	}))
	defer server.Close()

	scanner := NewLinkScanner(fetch.New(nil), nil)
	candidates, err := scanner.Scan(context.Background(), server.URL+"/materials/", "")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if candidates[0].URL != server.URL+"/materials/files/report.pdf" {
		t.Fatalf("unexpected resolved url: %s", candidates[0].URL)
	}
}

func TestScanCollapsesTitleWhitespace(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<a href=\"/x\">Обзор\n\t  рисков</a>"))
	}))
	defer server.Close()

	scanner := NewLinkScanner(fetch.New(nil), nil)
	candidates, err := scanner.Scan(context.Background(), server.URL, "")
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if candidates[0].Title != "Обзор рисков" {
		t.Fatalf("unexpected title: %q", candidates[0].Title)
	}
}

func TestScanHTTPFailureIsFetchError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	scanner := NewLinkScanner(fetch.New(nil), nil)
	_, err := scanner.Scan(context.Background(), server.URL, "")
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *errs.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T: %v", err, err)
	}
}
