package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *VerdictStore {
	t.Helper()
	s, err := OpenVerdictStore(filepath.Join(t.TempDir(), "verdicts.db"))
	if err != nil {
		t.Fatalf("OpenVerdictStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	records := []VerdictRecord{
		{Key: "chat:telegram:group:1", Generation: 1, MessageCount: 3, ShouldReply: true, Content: "hi", Outcome: OutcomeSent, LatencyMS: 420, CreatedAt: time.Now().Add(-2 * time.Minute)},
		{Key: "chat:telegram:group:1", Generation: 2, MessageCount: 1, ShouldReply: false, Outcome: OutcomeDeclined, LatencyMS: 300, CreatedAt: time.Now().Add(-time.Minute)},
		{Key: "chat:telegram:group:2", Generation: 1, MessageCount: 5, ShouldReply: true, Content: "other chat", Outcome: OutcomeRateLimited, LatencyMS: 111, CreatedAt: time.Now()},
	}
	for _, rec := range records {
		if err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, "chat:telegram:group:1", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Newest first.
	if got[0].Generation != 2 || got[1].Generation != 1 {
		t.Errorf("order wrong: generations %d, %d", got[0].Generation, got[1].Generation)
	}
	if !got[1].ShouldReply || got[1].Content != "hi" || got[1].Outcome != OutcomeSent {
		t.Errorf("record mismatch: %+v", got[1])
	}
	if got[0].ShouldReply {
		t.Error("declined verdict should have should_reply=false")
	}
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if err := s.Record(ctx, VerdictRecord{Key: "k", Generation: uint64(i), Outcome: OutcomeDeclined}); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Recent(ctx, "k", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("got %d records, want 3", len(got))
	}
}

func TestCleanupBefore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := VerdictRecord{Key: "k", Outcome: OutcomeError, CreatedAt: time.Now().Add(-48 * time.Hour)}
	fresh := VerdictRecord{Key: "k", Outcome: OutcomeSent, CreatedAt: time.Now()}
	if err := s.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := s.CleanupBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("CleanupBefore: %v", err)
	}
	if n != 1 {
		t.Errorf("cleaned %d, want 1", n)
	}

	got, err := s.Recent(ctx, "k", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Outcome != OutcomeSent {
		t.Errorf("remaining records: %+v", got)
	}
}
