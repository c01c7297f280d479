package workspace

import "sync"

// Latch is the single-assignment resolution token: the first pass to commit
// wins and every later commit for the same generation is refused. Reset opens
// a new generation (sign-out), which also invalidates tickets taken before it.
type Latch struct {
	mu      sync.Mutex
	gen     uint64
	done    bool
	outcome Outcome
}

// Ticket identifies the generation a pass started in.
type Ticket struct {
	gen uint64
}

// Begin returns a ticket for a new pass and whether the latch is still open.
func (l *Latch) Begin() (Ticket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Ticket{gen: l.gen}, !l.done
}

// Commit stores o if t is current and nothing has committed yet.
func (l *Latch) Commit(t Ticket, o Outcome) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done || t.gen != l.gen {
		return false
	}
	l.done = true
	l.outcome = o
	return true
}

// Outcome returns the committed outcome, if any.
func (l *Latch) Outcome() (Outcome, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.outcome, l.done
}

// Reset reopens the latch under a new generation.
func (l *Latch) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gen++
	l.done = false
	l.outcome = Outcome{}
}
