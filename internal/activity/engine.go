// Package activity infers whether the wrapped assistant is working or
// waiting for input, using only what the wrapper can observe: the raw
// bytes the user types and the session's lifecycle events.
package activity

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Signal is a playback intent derived from typing activity.
type Signal int

const (
	SignalPlay Signal = iota
	SignalPause
)

// String returns a human-readable representation of the Signal
func (s Signal) String() string {
	switch s {
	case SignalPlay:
		return "play"
	case SignalPause:
		return "pause"
	default:
		return "unknown"
	}
}

// Causes attached to emitted signals, recorded in the playback history.
const (
	CauseLaunch = "launch" // session started
	CauseSubmit = "submit" // user submitted a message (CR/LF)
	CauseBurst  = "burst"  // typing burst reached the threshold
	CauseIdle   = "idle"   // no qualifying input before the idle deadline
)

const (
	// DefaultThreshold is how many printable characters a typing burst
	// needs before it signals play.
	DefaultThreshold = 3

	// DefaultIdleTimeout is how long after the last qualifying input
	// the engine waits before signalling pause.
	DefaultIdleTimeout = 6000 * time.Millisecond
)

// Config holds engine tuning.
type Config struct {
	Threshold   int           // printable characters per burst (default 3)
	IdleTimeout time.Duration // idle deadline (default 6s)
	NoPause     bool          // suppress engine-originated pause signals
}

// IntentFunc receives each emitted signal with its cause. Implementations
// must not block: backend calls are fire-and-forget relative to the
// input path.
type IntentFunc func(signal Signal, cause string)

// Engine turns raw input bytes into play/pause intents.
//
// Until the first submission, printable keystrokes are not tracked; a
// submission (CR or LF) always signals play immediately, resets the
// burst counter, and cancels any pending idle timer. After the first
// submission, the third printable character of a burst signals play
// once, and each further qualifying byte re-arms the single idle timer.
// When the idle timer fires the counter resets and, outside no-pause
// mode, a pause is signalled.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	intent IntentFunc
	logger zerolog.Logger

	interacted bool // first submission occurred
	count      int  // printable characters in the current burst
	played     bool // play already signalled for the current burst

	timer    *time.Timer
	timerSeq uint64 // identifies the live timer; stale fires are dropped
}

// New creates an engine. Zero config fields take their defaults.
func New(cfg Config, intent IntentFunc, logger zerolog.Logger) *Engine {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Engine{
		cfg:    cfg,
		intent: intent,
		logger: logger.With().Str("component", "activity").Logger(),
	}
}

// Start signals the initial play for the session. This fires even in
// no-pause mode.
func (e *Engine) Start() {
	e.intent(SignalPlay, CauseLaunch)
}

// HandleInput processes raw input bytes on their way to the child.
// Bytes are inspected, never consumed; the caller forwards them all.
func (e *Engine) HandleInput(data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := 0; i < len(data); {
		b := data[i]
		switch {
		case b == 0x1b:
			// Arrow keys and function keys arrive as escape sequences
			// whose inner bytes happen to be printable ASCII. Skip the
			// sequence, not the rest of the chunk: a CR delivered in
			// the same read (a paste ending in a newline, say) must
			// still register as a submission.
			i = skipEscapeSequence(data, i)
		case b == '\r' || b == '\n':
			e.handleSubmission()
			i++
		case b >= 0x20 && b <= 0x7e:
			e.handlePrintable()
			i++
		default:
			// Other control bytes are forwarded but never counted.
			i++
		}
	}
}

// skipEscapeSequence returns the index just past the escape sequence
// starting at data[i]. Terminal reads deliver a sequence in one chunk,
// so a sequence truncated at the end of data is treated as consuming
// the remainder.
func skipEscapeSequence(data []byte, i int) int {
	if i+1 >= len(data) {
		return len(data)
	}
	switch data[i+1] {
	case '[':
		// CSI: parameter and intermediate bytes, then one final byte
		// in 0x40..0x7e.
		for j := i + 2; j < len(data); j++ {
			if data[j] >= 0x40 && data[j] <= 0x7e {
				return j + 1
			}
		}
		return len(data)
	case 'O':
		// SS3: a single final byte (F1-F4, application-mode arrows).
		if i+2 < len(data) {
			return i + 3
		}
		return len(data)
	default:
		// ESC plus one byte: alt-key chords and two-byte sequences.
		return i + 2
	}
}

// handleSubmission handles an end-of-line byte. A submitted message is
// a strong, instantaneous signal that the assistant is about to start
// working, so play fires here without waiting on any hook latency.
// Must be called with the lock held.
func (e *Engine) handleSubmission() {
	e.interacted = true
	e.count = 0
	e.played = false
	e.cancelTimerLocked()
	e.emit(SignalPlay, CauseSubmit)
}

// handlePrintable counts a printable character toward the current
// burst. Must be called with the lock held.
func (e *Engine) handlePrintable() {
	// Keystrokes before the first submission are onboarding/setup
	// noise, not work.
	if !e.interacted {
		return
	}

	e.count++
	if e.count < e.cfg.Threshold {
		return
	}

	if e.count == e.cfg.Threshold && !e.played {
		e.played = true
		e.emit(SignalPlay, CauseBurst)
	}

	// At or above threshold, every qualifying byte re-arms the single
	// idle timer.
	e.armTimerLocked()
}

// armTimerLocked schedules the idle timer, replacing any pending one.
func (e *Engine) armTimerLocked() {
	e.cancelTimerLocked()
	e.timerSeq++
	seq := e.timerSeq
	e.timer = time.AfterFunc(e.cfg.IdleTimeout, func() {
		e.idleFired(seq)
	})
}

// cancelTimerLocked stops the pending idle timer, if any.
func (e *Engine) cancelTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// idleFired runs when the idle deadline passes with no qualifying input.
func (e *Engine) idleFired(seq uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// A newer timer or a cancellation superseded this fire.
	if seq != e.timerSeq || e.timer == nil {
		return
	}
	e.timer = nil
	e.count = 0
	e.played = false

	if e.cfg.NoPause {
		e.logger.Debug().Msg("Idle deadline passed, pause suppressed")
		return
	}
	e.emit(SignalPause, CauseIdle)
}

// Close synchronously cancels any pending idle timer. Called on every
// session exit path before cleanup pauses playback.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.timerSeq++
	e.cancelTimerLocked()
}

// emit delivers a signal to the intent callback.
func (e *Engine) emit(signal Signal, cause string) {
	e.logger.Debug().Stringer("signal", signal).Str("cause", cause).Msg("Signal")
	e.intent(signal, cause)
}
