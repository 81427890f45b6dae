package monitoring

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Diagnostic is one operator-visible failure report.
type Diagnostic struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// DefaultDiagnosticCapacity bounds the in-memory diagnostic history.
const DefaultDiagnosticCapacity = 100

var diagnostics = NewDiagnosticRing(DefaultDiagnosticCapacity)

// Errorf reports a failure that was not returned to any caller. The message
// goes to Logf with a "dice error:" prefix and is kept in the diagnostic
// history served on the debug routes.
func Errorf(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	diagnostics.Add(Diagnostic{Time: time.Now(), Message: msg})
	Logf("dice error: %s", msg)
}

// RecentDiagnostics returns the retained diagnostics, oldest first.
func RecentDiagnostics() []Diagnostic {
	return diagnostics.Snapshot()
}

// DiagnosticRing is a fixed-capacity FIFO of diagnostics.
type DiagnosticRing struct {
	mu    sync.Mutex
	items []Diagnostic
	next  int
	full  bool
}

// NewDiagnosticRing creates a ring holding at most capacity entries.
func NewDiagnosticRing(capacity int) *DiagnosticRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &DiagnosticRing{items: make([]Diagnostic, capacity)}
}

// Add appends d, evicting the oldest entry when full.
func (r *DiagnosticRing) Add(d Diagnostic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = d
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot copies the ring contents, oldest first.
func (r *DiagnosticRing) Snapshot() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]Diagnostic(nil), r.items[:r.next]...)
	}
	out := make([]Diagnostic, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}
