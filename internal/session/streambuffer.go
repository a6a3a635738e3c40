package session

import (
	"strings"
	"sync"
	"time"
)

// DefaultFlushInterval is the coalescing window for streamed tokens.
// Tokens arriving inside the window are committed as one write, trading a
// little latency for much less write churn.
const DefaultFlushInterval = 40 * time.Millisecond

// streamBuffer coalesces bursts of streamed tokens and flushes the last
// accumulated run on a short timer. The timer handle is owned and cleared
// explicitly; Flush forces out whatever is pending.
type streamBuffer struct {
	mu       sync.Mutex
	interval time.Duration
	pending  strings.Builder
	timer    *time.Timer
	commit   func(string)
}

func newStreamBuffer(interval time.Duration, commit func(string)) *streamBuffer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &streamBuffer{
		interval: interval,
		commit:   commit,
	}
}

// Append adds a token to the pending run and arms the flush timer if it is
// not already running.
func (b *streamBuffer) Append(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending.WriteString(token)
	if b.timer == nil {
		b.timer = time.AfterFunc(b.interval, b.flushTimed)
	}
}

func (b *streamBuffer) flushTimed() {
	b.mu.Lock()
	b.timer = nil
	out := b.pending.String()
	b.pending.Reset()
	b.mu.Unlock()

	if out != "" {
		b.commit(out)
	}
}

// Flush stops the timer and commits any pending content. Called once when
// the stream ends, before the message is marked complete.
func (b *streamBuffer) Flush() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	out := b.pending.String()
	b.pending.Reset()
	b.mu.Unlock()

	if out != "" {
		b.commit(out)
	}
}
