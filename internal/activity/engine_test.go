package activity

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// recorder captures emitted signals for assertions.
type recorder struct {
	mu      sync.Mutex
	signals []Signal
	causes  []string
}

func (r *recorder) intent(signal Signal, cause string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signals = append(r.signals, signal)
	r.causes = append(r.causes, cause)
}

func (r *recorder) snapshot() ([]Signal, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Signal(nil), r.signals...), append([]string(nil), r.causes...)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.signals)
}

func newTestEngine(t *testing.T, idle time.Duration, noPause bool) (*Engine, *recorder) {
	t.Helper()
	rec := &recorder{}
	e := New(Config{IdleTimeout: idle, NoPause: noPause}, rec.intent, zerolog.Nop())
	t.Cleanup(e.Close)
	return e, rec
}

// submit sends a carriage return and drops the resulting play signal so
// tests can focus on what happens after the first interaction.
func submit(e *Engine) {
	e.HandleInput([]byte("\r"))
}

func TestNoSignalBeforeFirstSubmission(t *testing.T) {
	e, rec := newTestEngine(t, time.Hour, false)

	e.HandleInput([]byte("plenty of printable keystrokes before any submission"))

	if rec.count() != 0 {
		signals, causes := rec.snapshot()
		t.Errorf("got signals %v (%v), want none", signals, causes)
	}
}

func TestSubmissionSignalsPlayImmediately(t *testing.T) {
	e, rec := newTestEngine(t, time.Hour, false)

	// Carriage return before any typing: one immediate play.
	e.HandleInput([]byte("\r"))

	signals, causes := rec.snapshot()
	if len(signals) != 1 || signals[0] != SignalPlay || causes[0] != CauseSubmit {
		t.Fatalf("got %v (%v), want one play(submit)", signals, causes)
	}

	// The counter stayed at zero: two more printable characters must
	// not reach the threshold.
	e.HandleInput([]byte("ab"))
	if rec.count() != 1 {
		t.Errorf("counter was not reset by submission")
	}
}

func TestThresholdSignalsPlayOncePerBurst(t *testing.T) {
	e, rec := newTestEngine(t, time.Hour, false)
	submit(e)

	e.HandleInput([]byte("ab"))
	if rec.count() != 1 {
		t.Fatalf("signals after 2 chars = %d, want just the submit play", rec.count())
	}

	e.HandleInput([]byte("c"))
	signals, causes := rec.snapshot()
	if len(signals) != 2 || signals[1] != SignalPlay || causes[1] != CauseBurst {
		t.Fatalf("3rd char: got %v (%v), want play(burst)", signals, causes)
	}

	// 4th through Nth characters in the same burst: no additional signal.
	e.HandleInput([]byte("defghijklmnop"))
	if rec.count() != 2 {
		t.Errorf("extra signals emitted within the same burst")
	}
}

func TestNonPrintableBytesNotCounted(t *testing.T) {
	e, rec := newTestEngine(t, time.Hour, false)
	submit(e)

	// Arrow keys are escape sequences; their inner bytes must not count
	// even though '[' and 'A' sit in the printable range.
	e.HandleInput([]byte{0x1b, '[', 'A'})
	e.HandleInput([]byte{0x1b, '[', 'B'})
	e.HandleInput([]byte{0x01, 0x7f, 0x03})

	if rec.count() != 1 {
		t.Fatalf("non-printable input signalled: %d signals", rec.count())
	}

	// Three real printables still cross the threshold.
	e.HandleInput([]byte("xyz"))
	if rec.count() != 2 {
		t.Errorf("printable characters after control input did not signal")
	}
}

func TestEscapeSequenceDoesNotSwallowRestOfChunk(t *testing.T) {
	e, rec := newTestEngine(t, time.Hour, false)
	submit(e)

	// An up-arrow and a carriage return can arrive in one read chunk
	// (history recall then enter). The sequence is skipped, the CR is a
	// submission.
	e.HandleInput([]byte{0x1b, '[', 'A', '\r'})

	signals, causes := rec.snapshot()
	if len(signals) != 2 || signals[1] != SignalPlay || causes[1] != CauseSubmit {
		t.Fatalf("got %v (%v), want play(submit) after escape sequence", signals, causes)
	}

	// Printables after a sequence in the same chunk still count.
	e.HandleInput([]byte{0x1b, 'O', 'P', 'a', 'b', 'c'})
	signals, causes = rec.snapshot()
	if len(signals) != 3 || causes[2] != CauseBurst {
		t.Errorf("got %v (%v), want play(burst) from trailing printables", signals, causes)
	}

	// A sequence truncated at the chunk boundary consumes the remainder.
	e.HandleInput([]byte{0x1b, '['})
	if rec.count() != 3 {
		t.Errorf("truncated sequence emitted a signal")
	}
}

func TestIdleTimeoutPausesExactlyOnce(t *testing.T) {
	e, rec := newTestEngine(t, 40*time.Millisecond, false)
	submit(e)

	e.HandleInput([]byte("abc")) // play(burst), idle timer armed

	time.Sleep(120 * time.Millisecond)

	signals, causes := rec.snapshot()
	if len(signals) != 3 || signals[2] != SignalPause || causes[2] != CauseIdle {
		t.Fatalf("got %v (%v), want play(submit), play(burst), pause(idle)", signals, causes)
	}

	// Counter reset: the next burst signals play again after 3 chars.
	e.HandleInput([]byte("xyz"))
	signals, _ = rec.snapshot()
	if len(signals) != 4 || signals[3] != SignalPlay {
		t.Errorf("counter was not reset by idle timeout: %v", signals)
	}
}

func TestQualifyingInputCancelsIdleTimer(t *testing.T) {
	e, rec := newTestEngine(t, 60*time.Millisecond, false)
	submit(e)

	e.HandleInput([]byte("abc"))

	// Keep typing inside the deadline; the timer must keep re-arming.
	for i := 0; i < 4; i++ {
		time.Sleep(30 * time.Millisecond)
		e.HandleInput([]byte("k"))
	}

	if got := rec.count(); got != 2 {
		t.Fatalf("pause fired despite continuous typing: %d signals", got)
	}

	// Now stop typing and let the deadline pass: exactly one pause.
	time.Sleep(150 * time.Millisecond)
	signals, _ := rec.snapshot()
	if len(signals) != 3 || signals[2] != SignalPause {
		t.Errorf("got %v, want exactly one trailing pause", signals)
	}
}

func TestSubmissionCancelsPendingIdleTimer(t *testing.T) {
	e, rec := newTestEngine(t, 50*time.Millisecond, false)
	submit(e)

	e.HandleInput([]byte("abc"))
	e.HandleInput([]byte("\r")) // supersedes the armed idle timer

	time.Sleep(150 * time.Millisecond)

	signals, _ := rec.snapshot()
	for _, s := range signals {
		if s == SignalPause {
			t.Fatalf("idle pause fired after submission cancelled the timer: %v", signals)
		}
	}
}

func TestNoPauseModeSuppressesIdlePause(t *testing.T) {
	e, rec := newTestEngine(t, 30*time.Millisecond, true)

	// Submission still plays in no-pause mode.
	e.HandleInput([]byte("\r"))
	if rec.count() != 1 {
		t.Fatal("submission play suppressed in no-pause mode")
	}

	e.HandleInput([]byte("abc"))
	time.Sleep(100 * time.Millisecond)

	signals, _ := rec.snapshot()
	for _, s := range signals {
		if s == SignalPause {
			t.Fatalf("pause emitted in no-pause mode: %v", signals)
		}
	}

	// The counter still resets on the suppressed deadline, so a new
	// burst plays again.
	e.HandleInput([]byte("xyz"))
	signals, _ = rec.snapshot()
	if signals[len(signals)-1] != SignalPlay {
		t.Errorf("new burst after suppressed idle did not play: %v", signals)
	}
}

func TestCloseCancelsIdleTimer(t *testing.T) {
	e, rec := newTestEngine(t, 30*time.Millisecond, false)
	submit(e)

	e.HandleInput([]byte("abc"))
	e.Close()

	time.Sleep(100 * time.Millisecond)

	signals, _ := rec.snapshot()
	for _, s := range signals {
		if s == SignalPause {
			t.Fatalf("pause fired after Close: %v", signals)
		}
	}
}

func TestStartSignalsLaunchPlay(t *testing.T) {
	e, rec := newTestEngine(t, time.Hour, true)

	e.Start()

	signals, causes := rec.snapshot()
	if len(signals) != 1 || signals[0] != SignalPlay || causes[0] != CauseLaunch {
		t.Errorf("got %v (%v), want play(launch)", signals, causes)
	}
}

func TestEndToEndTypingScenario(t *testing.T) {
	// Type "ab" (no signal), "c" (one play), go idle (one pause),
	// confirm the counter reset.
	e, rec := newTestEngine(t, 50*time.Millisecond, false)
	submit(e)

	e.HandleInput([]byte("ab"))
	if rec.count() != 1 {
		t.Fatal("signal fired below threshold")
	}

	e.HandleInput([]byte("c"))
	if rec.count() != 2 {
		t.Fatal("third character did not signal play")
	}

	time.Sleep(130 * time.Millisecond)
	signals, _ := rec.snapshot()
	if len(signals) != 3 || signals[2] != SignalPause {
		t.Fatalf("idle pause missing: %v", signals)
	}

	// Counter is back at zero: two characters are not enough.
	e.HandleInput([]byte("xy"))
	if rec.count() != 3 {
		t.Error("counter did not reset to 0 after idle pause")
	}
}
