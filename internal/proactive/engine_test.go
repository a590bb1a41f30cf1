package proactive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/config"
	"github.com/chimeworks/gochime/internal/decision"
	"github.com/chimeworks/gochime/internal/store"
)

type fakePipeline struct {
	mu      sync.Mutex
	verdict decision.Verdict
	err     error
	calls   int
	lastKey string
	lastLen int
}

func (f *fakePipeline) Decide(ctx context.Context, key string, msgs []bus.ChatMessage) (decision.Verdict, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastKey = key
	f.lastLen = len(msgs)
	return f.verdict, f.err
}

type fakeTransport struct {
	mu     sync.Mutex
	pushes []string
	err    error
}

func (f *fakeTransport) Push(key, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pushes = append(f.pushes, text)
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pushes)
}

type fakeAudit struct {
	mu      sync.Mutex
	records []store.VerdictRecord
}

func (f *fakeAudit) Record(ctx context.Context, rec store.VerdictRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeAudit) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeAudit) last(t *testing.T) store.VerdictRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.records) == 0 {
		t.Fatal("no verdict recorded")
	}
	return f.records[len(f.records)-1]
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Proactive.DebounceDelaySeconds = 60 // tests drive fires themselves
	cfg.Proactive.MaxInterjectionsPerHour = 0
	return cfg
}

func newTestEngine(cfg *config.Config) (*Engine, *fakePipeline, *fakeTransport, *fakeAudit) {
	p := &fakePipeline{}
	tr := &fakeTransport{}
	audit := &fakeAudit{}
	return NewEngine(cfg, p, tr, audit), p, tr, audit
}

func TestEngineExplicitAddressForwards(t *testing.T) {
	e, p, _, _ := newTestEngine(testConfig())

	act := e.OnInboundMessage("g1", msg("@bot hello"), true)
	if !act.ForwardToDecider || act.ViaSticky {
		t.Errorf("got %+v, want forward without sticky", act)
	}
	if p.calls != 0 {
		t.Error("engine must never call the decider synchronously")
	}
}

func TestEnginePlainMessageDoesNotForward(t *testing.T) {
	e, _, _, _ := newTestEngine(testConfig())

	act := e.OnInboundMessage("g1", msg("just chatting"), false)
	if act.ForwardToDecider {
		t.Errorf("got %+v, want no forward for unaddressed message", act)
	}
}

func TestEngineStickyConsumptionForwards(t *testing.T) {
	e, _, _, _ := newTestEngine(testConfig())

	e.EnableDirectReply("g1", "")
	act := e.OnInboundMessage("g1", msg("hm, not sure"), false)
	if !act.ForwardToDecider || !act.ViaSticky {
		t.Fatalf("got %+v, want sticky forward", act)
	}

	act = e.OnInboundMessage("g1", msg("anyone?"), false)
	if act.ForwardToDecider {
		t.Errorf("second message forwarded: sticky flag is one-shot")
	}
}

func TestEngineStickySurvivesMention(t *testing.T) {
	e, _, _, _ := newTestEngine(testConfig())

	e.EnableDirectReply("g1", "")
	act := e.OnInboundMessage("g1", msg("@bot ping"), true)
	if act.ViaSticky {
		t.Fatal("mention consumed the sticky flag")
	}
	act = e.OnInboundMessage("g1", msg("so anyway"), false)
	if !act.ViaSticky {
		t.Error("flag should still be armed after the mention")
	}
}

func TestEngineBotMessageArmsWindow(t *testing.T) {
	e, _, _, _ := newTestEngine(testConfig())

	e.OnBotMessageSent("g1")
	if !e.Scheduler().Armed("g1") {
		t.Error("bot message did not arm the quiet-window timer")
	}
}

func TestEngineProactiveDisabled(t *testing.T) {
	cfg := testConfig()
	off := false
	cfg.Proactive.Enabled = &off
	e, _, _, _ := newTestEngine(cfg)

	e.OnBotMessageSent("g1")
	if e.Scheduler().Armed("g1") {
		t.Error("disabled engine armed a timer")
	}
}

func TestEngineCheckFireSends(t *testing.T) {
	e, p, tr, audit := newTestEngine(testConfig())
	p.verdict = decision.Verdict{ShouldReply: true, Content: "have you tried turning it off?"}

	rearm := e.checkFire(context.Background(), "g1", 7, []bus.ChatMessage{msg("a"), msg("b")})
	if rearm {
		t.Error("rearm without continuous mode")
	}
	if tr.count() != 1 || tr.pushes[0] != "have you tried turning it off?" {
		t.Errorf("pushes = %v", tr.pushes)
	}
	rec := audit.last(t)
	if rec.Outcome != store.OutcomeSent || rec.Key != "g1" || rec.Generation != 7 || rec.MessageCount != 2 {
		t.Errorf("audit record = %+v", rec)
	}
}

func TestEngineCheckFireDeclined(t *testing.T) {
	e, _, tr, audit := newTestEngine(testConfig())

	e.checkFire(context.Background(), "g1", 1, []bus.ChatMessage{msg("a")})
	if tr.count() != 0 {
		t.Error("declining verdict still pushed a message")
	}
	if got := audit.last(t).Outcome; got != store.OutcomeDeclined {
		t.Errorf("outcome = %q, want %q", got, store.OutcomeDeclined)
	}
}

func TestEngineCheckFireDeciderUnavailable(t *testing.T) {
	e, p, tr, audit := newTestEngine(testConfig())
	p.err = decision.ErrDeciderUnavailable

	e.checkFire(context.Background(), "g1", 1, []bus.ChatMessage{msg("a")})
	if tr.count() != 0 {
		t.Error("pushed despite unavailable decider")
	}
	if got := audit.last(t).Outcome; got != store.OutcomeError {
		t.Errorf("outcome = %q, want %q", got, store.OutcomeError)
	}
}

func TestEngineCheckFireMalformedVerdict(t *testing.T) {
	e, p, tr, audit := newTestEngine(testConfig())
	p.err = decision.ErrMalformedVerdict

	e.checkFire(context.Background(), "g1", 1, []bus.ChatMessage{msg("a")})
	if tr.count() != 0 {
		t.Error("pushed despite malformed verdict")
	}
	if got := audit.last(t).Outcome; got != store.OutcomeMalformed {
		t.Errorf("outcome = %q, want %q", got, store.OutcomeMalformed)
	}
}

func TestEngineCheckFireTransportError(t *testing.T) {
	e, p, _, audit := newTestEngine(testConfig())
	p.verdict = decision.Verdict{ShouldReply: true, Content: "hi"}

	tr := &fakeTransport{err: errors.New("socket closed")}
	e.out = tr

	if rearm := e.checkFire(context.Background(), "g1", 1, []bus.ChatMessage{msg("a")}); rearm {
		t.Error("rearm after failed send")
	}
	if got := audit.last(t).Outcome; got != store.OutcomeError {
		t.Errorf("outcome = %q, want %q", got, store.OutcomeError)
	}
}

func TestEngineRateCapPerChat(t *testing.T) {
	cfg := testConfig()
	cfg.Proactive.MaxInterjectionsPerHour = 1
	e, p, tr, audit := newTestEngine(cfg)
	p.verdict = decision.Verdict{ShouldReply: true, Content: "hi"}

	e.checkFire(context.Background(), "g1", 1, []bus.ChatMessage{msg("a")})
	e.checkFire(context.Background(), "g1", 2, []bus.ChatMessage{msg("b")})
	if tr.count() != 1 {
		t.Fatalf("pushed %d times, want 1 under the hourly cap", tr.count())
	}
	if got := audit.last(t).Outcome; got != store.OutcomeRateLimited {
		t.Errorf("outcome = %q, want %q", got, store.OutcomeRateLimited)
	}

	// Other conversations have their own cap.
	e.checkFire(context.Background(), "g2", 1, []bus.ChatMessage{msg("c")})
	if tr.count() != 2 {
		t.Errorf("pushed %d times, want 2 (cap is per chat)", tr.count())
	}
}

func TestEngineContinuousRearmFollowsVerdict(t *testing.T) {
	cfg := testConfig()
	cfg.Proactive.ContinuousRearm = true
	e, p, _, _ := newTestEngine(cfg)

	if e.checkFire(context.Background(), "g1", 1, []bus.ChatMessage{msg("a")}) {
		t.Error("declined verdict must not rearm")
	}
	p.verdict = decision.Verdict{ShouldReply: true, Content: "hi"}
	if !e.checkFire(context.Background(), "g1", 2, []bus.ChatMessage{msg("b")}) {
		t.Error("sent interjection should rearm in continuous mode")
	}
}

func TestEngineEndToEndWindow(t *testing.T) {
	e, p, tr, _ := newTestEngine(testConfig())
	p.verdict = decision.Verdict{ShouldReply: true, Content: "sounds like a DNS problem"}

	e.Scheduler().Arm("g1", 20*time.Millisecond)
	e.OnInboundMessage("g1", msg("weird, the app can't reach the server"), false)
	e.OnInboundMessage("g1", msg("works on my machine though"), false)

	waitUntil(t, func() bool { return tr.count() == 1 })
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastKey != "g1" || p.lastLen != 2 {
		t.Errorf("pipeline saw key=%q len=%d, want g1/2", p.lastKey, p.lastLen)
	}
}

func TestEngineApplyConfigTogglesSticky(t *testing.T) {
	e, _, _, _ := newTestEngine(testConfig())

	cfg := testConfig()
	off := false
	cfg.Sticky.Enabled = &off
	e.ApplyConfig(cfg)

	e.EnableDirectReply("g1", "")
	if act := e.OnInboundMessage("g1", msg("hello"), false); act.ViaSticky {
		t.Error("sticky path active while disabled")
	}
}
