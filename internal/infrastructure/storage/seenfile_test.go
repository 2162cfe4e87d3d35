package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestSeenFileRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")

	s, err := OpenSeenFile(path)
	if err != nil {
		t.Fatalf("OpenSeenFile: %v", err)
	}
	if s.Has("https://x.ru/a") {
		t.Fatal("empty store must not contain anything")
	}

	if !s.Claim("https://x.ru/a") {
		t.Fatal("claim on fresh url must succeed")
	}
	if err := s.Record("https://x.ru/a"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	// Reopen: the record must have survived the process boundary.
	reopened, err := OpenSeenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened.Has("https://x.ru/a") {
		t.Fatal("record must persist across restarts")
	}
	if reopened.Claim("https://x.ru/a") {
		t.Fatal("claim on recorded url must fail")
	}
}

func TestSeenFileRecordIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	s, err := OpenSeenFile(path)
	if err != nil {
		t.Fatalf("OpenSeenFile: %v", err)
	}

	if err := s.Record("https://x.ru/a"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Record("https://x.ru/a"); err != nil {
		t.Fatalf("second Record: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", s.Len())
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		t.Fatalf("file is not a JSON string array: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://x.ru/a" {
		t.Fatalf("unexpected file content: %v", urls)
	}
}

func TestSeenFileLegacySingleURL(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte(`"https://x.ru/last"`), 0o644); err != nil {
		t.Fatalf("write legacy file: %v", err)
	}

	s, err := OpenSeenFile(path)
	if err != nil {
		t.Fatalf("OpenSeenFile: %v", err)
	}
	if !s.Has("https://x.ru/last") {
		t.Fatal("legacy single-url form must be loaded")
	}

	if err := s.Record("https://x.ru/new"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	raw, _ := os.ReadFile(path)
	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		t.Fatalf("legacy file must be rewritten as an array: %v", err)
	}
	if len(urls) != 2 {
		t.Fatalf("expected both urls, got %v", urls)
	}
}

func TestSeenFileCorruptFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "history.json")
	if err := os.WriteFile(path, []byte(`{broken`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := OpenSeenFile(path); err == nil {
		t.Fatal("corrupt state file must be a load error, not silent data loss")
	}
}

func TestSeenFileClaimIsExclusive(t *testing.T) {
	t.Parallel()

	s, err := OpenSeenFile(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("OpenSeenFile: %v", err)
	}

	const goroutines = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, goroutines)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Claim("https://x.ru/contested") {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	if len(wins) != 1 {
		t.Fatalf("expected exactly one successful claim, got %d", len(wins))
	}
}

func TestSeenFileReleaseAllowsRetry(t *testing.T) {
	t.Parallel()

	s, err := OpenSeenFile(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("OpenSeenFile: %v", err)
	}

	if !s.Claim("https://x.ru/a") {
		t.Fatal("first claim must succeed")
	}
	if s.Claim("https://x.ru/a") {
		t.Fatal("concurrent claim must fail")
	}
	s.Release("https://x.ru/a")
	if !s.Claim("https://x.ru/a") {
		t.Fatal("claim after release must succeed")
	}
	if s.Has("https://x.ru/a") {
		t.Fatal("released url must stay unrecorded")
	}
}

func TestBypassStore(t *testing.T) {
	t.Parallel()

	b := NewBypassStore()
	if b.Has("https://x.ru/a") {
		t.Fatal("bypass store must report everything unseen")
	}
	if !b.Claim("https://x.ru/a") {
		t.Fatal("claim must succeed")
	}
	if b.Claim("https://x.ru/a") {
		t.Fatal("in-run double claim must still fail")
	}
	if err := b.Record("https://x.ru/a"); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if b.Has("https://x.ru/a") {
		t.Fatal("record must not make the url seen")
	}
}
