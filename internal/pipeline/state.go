package pipeline

import (
	"sync/atomic"
	"time"
)

// State is the current phase of the generation pipeline. Transitions are
// strictly forward except Cancelled and Failed, which are reachable from
// any in-progress state and are terminal.
type State string

const (
	StateIdle              State = "idle"
	StateReadingWords      State = "reading_words"
	StateGeneratingContent State = "generating_content"
	StateGeneratingAudio   State = "generating_audio"
	StateCopyingAudio      State = "copying_audio"
	StateSendingToStore    State = "sending_to_store"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
	StateCancelled         State = "cancelled"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Stats are the run counters owned by the orchestrator. Observers receive
// them by value, so a snapshot never changes under the reader.
type Stats struct {
	TotalWords     int
	ProcessedWords int
	FailedWords    int
	SkippedWords   int
	CurrentWord    string
	// EstimatedTimeRemaining is zero when no estimate is available.
	EstimatedTimeRemaining time.Duration
	StartTime              time.Time
}

// Observer receives progress from the orchestrator: every state transition
// and every log-worthy event. Invocation is synchronous from the pipeline's
// own execution context; the observer owns any hand-off to a UI context and
// must not block.
type Observer interface {
	OnProgress(state State, stats Stats, message string)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(state State, stats Stats, message string)

func (f ObserverFunc) OnProgress(state State, stats Stats, message string) {
	f(state, stats, message)
}

// NopObserver discards all progress events.
var NopObserver Observer = ObserverFunc(func(State, Stats, string) {})

// Token carries a cooperative cancellation request into the stages. It is
// polled at stage and per-record boundaries only; an in-flight backend call
// is never interrupted.
type Token struct {
	flag atomic.Bool
}

// Cancel requests cancellation. Safe to call from any goroutine, any
// number of times.
func (t *Token) Cancel() {
	t.flag.Store(true)
}

// Cancelled reports whether cancellation has been requested.
func (t *Token) Cancelled() bool {
	return t.flag.Load()
}
