// Package storage holds the durable state: the JSON seen-set used for
// deduplication and the optional Postgres delivery archive.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/dzhafarfovss-code/economy-monitor/internal/ports"
)

// SeenFile is a durable set of delivered URLs backed by one JSON document
// (array of strings). Every Record rewrites the file: the process usually
// runs as a short-lived task and must not lose state between invocations.
//
// Claim/Release serialize the check-then-act window: two sources discovering
// the same URL in one run cannot both deliver it.
type SeenFile struct {
	path string

	mu       sync.Mutex
	seen     map[string]struct{}
	inflight map[string]struct{}
}

var _ ports.SeenStore = (*SeenFile)(nil)

// OpenSeenFile loads the set from path. A missing file yields an empty set.
// A file holding a bare JSON string (the legacy "last seen URL" form) is read
// as a one-element set and rewritten as an array on the next record.
func OpenSeenFile(path string) (*SeenFile, error) {
	s := &SeenFile{
		path:     path,
		seen:     map[string]struct{}{},
		inflight: map[string]struct{}{},
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seen file %s: %w", path, err)
	}

	var urls []string
	if err := json.Unmarshal(raw, &urls); err != nil {
		var single string
		if err2 := json.Unmarshal(raw, &single); err2 != nil {
			return nil, fmt.Errorf("parse seen file %s: %w", path, err)
		}
		if single != "" {
			urls = []string{single}
		}
	}

	for _, u := range urls {
		s.seen[u] = struct{}{}
	}
	return s, nil
}

// Has reports durable membership only; in-flight claims do not count.
func (s *SeenFile) Has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[url]
	return ok
}

// Claim reserves url for the caller. False means it was already delivered or
// another goroutine is processing it right now.
func (s *SeenFile) Claim(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[url]; ok {
		return false
	}
	if _, ok := s.inflight[url]; ok {
		return false
	}
	s.inflight[url] = struct{}{}
	return true
}

// Release drops an unfinished claim. The URL stays unrecorded, so the next
// scheduled run retries it.
func (s *SeenFile) Release(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, url)
}

// Record adds url to the set and flushes to disk. Idempotent: recording a
// present URL is a no-op.
func (s *SeenFile) Record(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.inflight, url)
	if _, ok := s.seen[url]; ok {
		return nil
	}
	s.seen[url] = struct{}{}

	if err := s.flushLocked(); err != nil {
		// Keep the in-memory entry: delivery already happened, and
		// dropping it would re-deliver within this run.
		return fmt.Errorf("persist seen file %s: %w", s.path, err)
	}
	return nil
}

// Len reports the durable set size.
func (s *SeenFile) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *SeenFile) flushLocked() error {
	urls := make([]string, 0, len(s.seen))
	for u := range s.seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	raw, err := json.Marshal(urls)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// BypassStore is the "test mode" seen store: it claims everything and
// records nothing, so a run re-announces already-seen documents and leaves
// the history file untouched.
type BypassStore struct {
	mu       sync.Mutex
	inflight map[string]struct{}
}

var _ ports.SeenStore = (*BypassStore)(nil)

// NewBypassStore builds the no-op store.
func NewBypassStore() *BypassStore {
	return &BypassStore{inflight: map[string]struct{}{}}
}

// Has always reports unseen.
func (b *BypassStore) Has(string) bool { return false }

// Claim still guards against the same URL being processed twice within one
// run by concurrent sources.
func (b *BypassStore) Claim(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.inflight[url]; ok {
		return false
	}
	b.inflight[url] = struct{}{}
	return true
}

// Release drops the in-run claim.
func (b *BypassStore) Release(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.inflight, url)
}

// Record is a no-op.
func (b *BypassStore) Record(string) error { return nil }
