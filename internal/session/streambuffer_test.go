package session

import (
	"sync"
	"testing"
	"time"
)

type commitLog struct {
	mu      sync.Mutex
	commits []string
}

func (l *commitLog) commit(s string) {
	l.mu.Lock()
	l.commits = append(l.commits, s)
	l.mu.Unlock()
}

func (l *commitLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.commits...)
}

func TestStreamBufferCoalescesBurst(t *testing.T) {
	log := &commitLog{}
	buf := newStreamBuffer(30*time.Millisecond, log.commit)

	buf.Append("Hel")
	buf.Append("lo, ")
	buf.Append("world")

	time.Sleep(80 * time.Millisecond)

	commits := log.snapshot()
	if len(commits) != 1 {
		t.Fatalf("expected one coalesced commit, got %d: %v", len(commits), commits)
	}
	if commits[0] != "Hello, world" {
		t.Errorf("unexpected commit: %q", commits[0])
	}
}

func TestStreamBufferFlushForcesPending(t *testing.T) {
	log := &commitLog{}
	buf := newStreamBuffer(time.Hour, log.commit)

	buf.Append("tail")
	buf.Flush()

	commits := log.snapshot()
	if len(commits) != 1 || commits[0] != "tail" {
		t.Fatalf("expected forced flush of pending content, got %v", commits)
	}
}

func TestStreamBufferFlushEmptyNoCommit(t *testing.T) {
	log := &commitLog{}
	buf := newStreamBuffer(time.Millisecond, log.commit)

	buf.Flush()
	if len(log.snapshot()) != 0 {
		t.Fatal("empty flush should not commit")
	}
}
