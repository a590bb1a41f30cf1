package proactive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"golang.org/x/time/rate"

	"github.com/chimeworks/gochime/internal/bus"
	"github.com/chimeworks/gochime/internal/config"
	"github.com/chimeworks/gochime/internal/decision"
	"github.com/chimeworks/gochime/internal/store"
)

// How long verdict audit rows are kept before the sweep prunes them.
const verdictRetention = 30 * 24 * time.Hour

// VerdictMaker is the decision pipeline as the engine sees it.
type VerdictMaker interface {
	Decide(ctx context.Context, key string, msgs []bus.ChatMessage) (decision.Verdict, error)
}

// VerdictRecorder receives the audit record of every check. May be nil.
type VerdictRecorder interface {
	Record(ctx context.Context, rec store.VerdictRecord) error
	CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Action tells the host what to do with an inbound message after the
// engine has seen it.
type Action struct {
	// ForwardToDecider: hand the message to direct LLM handling and reply.
	ForwardToDecider bool
	// ViaSticky: forwarding because a one-shot sticky flag was consumed
	// rather than an explicit address.
	ViaSticky bool
}

// Engine wires the scheduler, sticky store, decision pipeline, and
// transport into the host-facing event surface. It owns the per-chat
// interjection rate cap and the idle-key sweep.
type Engine struct {
	sched    *Scheduler
	sticky   *StickyStore
	pipeline VerdictMaker
	out      Transport
	verdicts VerdictRecorder

	mu          sync.Mutex
	delay       time.Duration
	continuous  bool
	proactiveOn bool
	stickyOn    bool
	perHour     int
	idleTTL     time.Duration
	sweepExpr   string
	limiters    map[string]*limiterEntry
}

type limiterEntry struct {
	lim      *rate.Limiter
	lastUsed time.Time
}

// NewEngine builds the engine from config. pipeline and out are required;
// verdicts may be nil (no audit log).
func NewEngine(cfg *config.Config, pipeline VerdictMaker, out Transport, verdicts VerdictRecorder) *Engine {
	e := &Engine{
		sticky:   NewStickyStore(),
		pipeline: pipeline,
		out:      out,
		verdicts: verdicts,
		limiters: make(map[string]*limiterEntry),
	}
	e.sched = NewScheduler(e.checkFire, cfg.Proactive.HistoryLimit)
	e.ApplyConfig(cfg)
	return e
}

// ApplyConfig installs tunables from a (possibly reloaded) config.
// Keys armed before the change keep their old delay until re-armed.
func (e *Engine) ApplyConfig(cfg *config.Config) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.delay = time.Duration(cfg.Proactive.DebounceDelaySeconds) * time.Second
	e.continuous = cfg.Proactive.ContinuousRearm
	e.proactiveOn = cfg.ProactiveEnabled()
	e.stickyOn = cfg.StickyEnabled()
	e.perHour = cfg.Proactive.MaxInterjectionsPerHour
	e.idleTTL = time.Duration(cfg.Proactive.IdleTTLMinutes) * time.Minute
	e.sweepExpr = cfg.Proactive.SweepSchedule
	e.sched.SetHistoryLimit(cfg.Proactive.HistoryLimit)
}

// OnInboundMessage is called for every message a channel receives. It
// consumes sticky flags, collects proactive-window messages, and tells the
// caller whether to forward the message to direct LLM handling. It never
// blocks on the decider.
func (e *Engine) OnInboundMessage(key string, msg bus.ChatMessage, isExplicitlyAddressed bool) Action {
	e.mu.Lock()
	stickyOn := e.stickyOn
	proactiveOn := e.proactiveOn
	e.mu.Unlock()

	if stickyOn && e.sticky.TryConsume(key, msg.SenderID, isExplicitlyAddressed) {
		slog.Info("proactive: sticky flag consumed", "key", key, "sender", msg.SenderID)
		return Action{ForwardToDecider: true, ViaSticky: true}
	}

	if proactiveOn {
		e.sched.Append(key, msg)
	}

	return Action{ForwardToDecider: isExplicitlyAddressed}
}

// OnBotMessageSent arms (or re-arms) the quiet-window timer for key.
// Called after the bot emits any outbound message to that conversation.
func (e *Engine) OnBotMessageSent(key string) {
	e.mu.Lock()
	proactiveOn := e.proactiveOn
	delay := e.delay
	e.mu.Unlock()

	if !proactiveOn {
		return
	}
	e.sched.Arm(key, delay)
}

// EnableDirectReply arms the one-shot sticky flag for key. subject may be
// empty to match any sender. This is the "enable-once" call exposed to the
// external decision-maker.
func (e *Engine) EnableDirectReply(key, subject string) {
	e.mu.Lock()
	stickyOn := e.stickyOn
	e.mu.Unlock()

	if !stickyOn {
		return
	}
	e.sticky.Set(key, subject)
	slog.Info("proactive: direct reply enabled once", "key", key, "subject", subject)
}

// Shutdown cancels all pending timers. Buffered state is dropped;
// scheduler state does not survive restarts.
func (e *Engine) Shutdown() {
	e.sched.CancelAll()
	slog.Info("proactive: engine shut down")
}

// Scheduler exposes the underlying scheduler (tests, diagnostics).
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// checkFire is the scheduler's CheckFunc: run the decision pipeline once
// for the drained window and dispatch on a positive verdict.
func (e *Engine) checkFire(ctx context.Context, key string, generation uint64, msgs []bus.ChatMessage) bool {
	start := time.Now()
	verdict, err := e.pipeline.Decide(ctx, key, msgs)
	latency := time.Since(start).Milliseconds()

	rec := store.VerdictRecord{
		Key:          key,
		Generation:   generation,
		MessageCount: len(msgs),
		ShouldReply:  verdict.ShouldReply,
		Content:      verdict.Content,
		LatencyMS:    latency,
	}

	switch {
	case errors.Is(err, decision.ErrDeciderUnavailable):
		slog.Warn("proactive: no decider configured, skipping check", "key", key)
		rec.Outcome = store.OutcomeError
	case errors.Is(err, decision.ErrMalformedVerdict):
		rec.Outcome = store.OutcomeMalformed
	case err != nil:
		slog.Warn("proactive: decider check failed", "key", key, "error", err)
		rec.Outcome = store.OutcomeError
	case !verdict.ShouldReply:
		slog.Debug("proactive: decider declined to interject", "key", key)
		rec.Outcome = store.OutcomeDeclined
	case !e.allowInterjection(key):
		slog.Info("proactive: interjection rate limit hit", "key", key)
		rec.Outcome = store.OutcomeRateLimited
	default:
		if pushErr := e.out.Push(key, verdict.Content); pushErr != nil {
			// Transport failures are logged, never retried here.
			slog.Error("proactive: interjection send failed", "key", key, "error", pushErr)
			rec.Outcome = store.OutcomeError
		} else {
			slog.Info("proactive: interjection sent",
				"key", key,
				"messages", len(msgs),
				"latency_ms", latency,
			)
			rec.Outcome = store.OutcomeSent
		}
	}

	e.record(ctx, rec)

	e.mu.Lock()
	continuous := e.continuous
	e.mu.Unlock()
	return continuous && rec.Outcome == store.OutcomeSent
}

func (e *Engine) record(ctx context.Context, rec store.VerdictRecord) {
	if e.verdicts == nil {
		return
	}
	if err := e.verdicts.Record(ctx, rec); err != nil {
		slog.Debug("proactive: verdict audit write failed", "error", err)
	}
}

// allowInterjection checks the per-chat rate cap.
func (e *Engine) allowInterjection(key string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.perHour <= 0 {
		return true
	}

	entry, ok := e.limiters[key]
	if !ok {
		entry = &limiterEntry{lim: rate.NewLimiter(rate.Every(time.Hour/time.Duration(e.perHour)), 1)}
		e.limiters[key] = entry
	}
	entry.lastUsed = time.Now()
	return entry.lim.Allow()
}

// RunSweep periodically garbage-collects idle per-key state on the
// configured cron schedule. Blocks until ctx is cancelled.
func (e *Engine) RunSweep(ctx context.Context) {
	e.mu.Lock()
	expr := e.sweepExpr
	e.mu.Unlock()

	if expr == "" {
		return
	}
	g := gronx.New()
	if !g.IsValid(expr) {
		slog.Warn("proactive: invalid sweep schedule, sweep disabled", "schedule", expr)
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.mu.Lock()
			expr = e.sweepExpr
			e.mu.Unlock()
			if due, err := g.IsDue(expr); err != nil || !due {
				continue
			}
			e.sweep(ctx)
		}
	}
}

func (e *Engine) sweep(ctx context.Context) {
	e.mu.Lock()
	ttl := e.idleTTL
	e.mu.Unlock()
	if ttl <= 0 {
		return
	}

	cutoff := time.Now().Add(-ttl)
	slots := e.sched.Sweep(ttl)
	flags := e.sticky.SweepOlderThan(cutoff)

	e.mu.Lock()
	limiters := 0
	for key, entry := range e.limiters {
		if entry.lastUsed.Before(cutoff) {
			delete(e.limiters, key)
			limiters++
		}
	}
	e.mu.Unlock()

	var rows int64
	if e.verdicts != nil {
		rows, _ = e.verdicts.CleanupBefore(ctx, time.Now().Add(-verdictRetention))
	}

	if slots+flags+limiters > 0 || rows > 0 {
		slog.Info("proactive: idle sweep",
			"slots", slots, "sticky_flags", flags, "limiters", limiters, "verdict_rows", rows)
	}
}
