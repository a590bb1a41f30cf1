package proactive

import (
	"sync"
	"time"
)

// StickyStore holds one-shot direct-reply flags: "treat the next matching
// inbound message as if it explicitly addressed the bot". A flag is scoped
// to a conversation key and optionally to a single sender (the subject).
// Flags have no expiry of their own; the idle sweep clears stale ones.
type StickyStore struct {
	mu    sync.Mutex
	flags map[string]map[string]time.Time // key → subject ("" = any sender) → set time
}

// NewStickyStore creates an empty store.
func NewStickyStore() *StickyStore {
	return &StickyStore{flags: make(map[string]map[string]time.Time)}
}

// Set arms the flag for key, optionally restricted to one subject.
// Setting an already-set flag is a no-op (idempotent).
func (s *StickyStore) Set(key, subject string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subjects, ok := s.flags[key]
	if !ok {
		subjects = make(map[string]time.Time)
		s.flags[key] = subjects
	}
	if _, ok := subjects[subject]; !ok {
		subjects[subject] = time.Now()
	}
}

// TryConsume returns true and clears the flag iff a flag matching
// (key, subject) is set AND the message is not already explicitly
// addressed; an ordinary @-mention must not burn the one-shot.
// A subject-less flag matches any sender; a subject-scoped flag matches
// only that sender, preferring the exact match when both exist.
func (s *StickyStore) TryConsume(key, subject string, isExplicitlyAddressed bool) bool {
	if isExplicitlyAddressed {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	subjects, ok := s.flags[key]
	if !ok {
		return false
	}

	if _, ok := subjects[subject]; ok {
		delete(subjects, subject)
	} else if _, ok := subjects[""]; ok {
		delete(subjects, "")
	} else {
		return false
	}

	if len(subjects) == 0 {
		delete(s.flags, key)
	}
	return true
}

// Clear drops all flags for a key.
func (s *StickyStore) Clear(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.flags, key)
}

// SweepOlderThan removes flags set before the cutoff, returning the number
// removed.
func (s *StickyStore) SweepOlderThan(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, subjects := range s.flags {
		for subject, setAt := range subjects {
			if setAt.Before(cutoff) {
				delete(subjects, subject)
				removed++
			}
		}
		if len(subjects) == 0 {
			delete(s.flags, key)
		}
	}
	return removed
}
