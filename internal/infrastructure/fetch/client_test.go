package fetch

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dzhafarfovss-code/economy-monitor/internal/errs"
)

func TestDocumentDownload(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); ua != browserUserAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		_, _ = w.Write([]byte("%PDF-1.7 data"))
	}))
	defer server.Close()

	c := New(nil)
	data, err := c.Document(context.Background(), server.URL+"/report.pdf")
	if err != nil {
		t.Fatalf("Document error: %v", err)
	}
	if string(data) != "%PDF-1.7 data" {
		t.Fatalf("unexpected payload: %q", data)
	}
}

func TestPageNon200IsFetchError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(nil)
	_, err := c.Page(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error")
	}
	var fe *errs.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %T", err)
	}
}

func TestInsecureTLSIsScopedToListedHosts(t *testing.T) {
	t.Parallel()

	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer server.Close()

	u, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}

	// Not allow-listed: the self-signed certificate must be rejected.
	strict := New(nil)
	if _, err := strict.Page(context.Background(), server.URL); err == nil {
		t.Fatal("unlisted host must keep certificate verification")
	}

	// Allow-listed: verification is skipped for exactly this host.
	relaxed := New([]string{u.Hostname()})
	body, err := relaxed.Page(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("listed host must be fetchable: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "ok" {
		t.Fatalf("unexpected body: %q", data)
	}
}
