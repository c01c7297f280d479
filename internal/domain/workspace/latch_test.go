package workspace

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestLatch_FirstCommitWins(t *testing.T) {
	var l Latch

	t1, open := l.Begin()
	if !open {
		t.Fatal("fresh latch should be open")
	}
	t2, _ := l.Begin()

	if !l.Commit(t1, Outcome{View: ViewApp, TenantID: "B"}) {
		t.Fatal("first commit should win")
	}
	if l.Commit(t2, Outcome{View: ViewHub}) {
		t.Fatal("second commit must be refused")
	}

	got, done := l.Outcome()
	if !done || got.View != ViewApp || got.TenantID != "B" {
		t.Fatalf("unexpected outcome %+v done=%v", got, done)
	}
	if _, open := l.Begin(); open {
		t.Fatal("latch should report closed after commit")
	}
}

func TestLatch_ResetInvalidatesStaleTickets(t *testing.T) {
	var l Latch
	stale, _ := l.Begin()
	l.Reset()

	if l.Commit(stale, Outcome{View: ViewApp}) {
		t.Fatal("ticket from previous generation must not commit")
	}
	fresh, open := l.Begin()
	if !open {
		t.Fatal("latch should be open after reset")
	}
	if !l.Commit(fresh, Outcome{View: ViewLogin}) {
		t.Fatal("fresh ticket should commit")
	}
}

func TestLatch_ConcurrentCommits(t *testing.T) {
	var l Latch
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := range 32 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ticket, _ := l.Begin()
			view := ViewApp
			if i%2 == 0 {
				view = ViewHub
			}
			if l.Commit(ticket, Outcome{View: view}) {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one committed pass, got %d", wins.Load())
	}
}
