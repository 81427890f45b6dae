package monitoring

import (
	"fmt"
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	// Save original logger
	original := Logf
	defer func() { Logf = original }()

	// Test setting a custom logger
	called := false
	customLogger := func(format string, v ...interface{}) {
		called = true
	}

	SetLogger(customLogger)
	Logf("test message")

	if !called {
		t.Error("Custom logger was not called")
	}

	// Test setting nil logger (should create no-op)
	SetLogger(nil)
	// This should not panic
	Logf("test message")

	// Verify the logger is a no-op by checking it doesn't panic
	// and doesn't call anything
	noOpCalled := false
	testLogger := func(format string, v ...interface{}) {
		noOpCalled = true
	}
	SetLogger(testLogger)
	// First verify our test logger works
	Logf("test")
	if !noOpCalled {
		t.Error("Test logger should have been called")
	}

	// Now set to nil and verify it doesn't call our logger
	noOpCalled = false
	SetLogger(nil)
	Logf("test")
	if noOpCalled {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	// Test that Logf is not nil by default
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	// Test that we can call it without panic
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestErrorf(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var got string
	SetLogger(func(format string, v ...interface{}) {
		got = fmt.Sprintf(format, v...)
	})

	Errorf("run failed: %s", "timeout")
	if got != "dice error: run failed: timeout" {
		t.Errorf("Logf received %q", got)
	}

	recent := RecentDiagnostics()
	if len(recent) == 0 {
		t.Fatal("expected a retained diagnostic")
	}
	last := recent[len(recent)-1]
	if !strings.Contains(last.Message, "run failed: timeout") {
		t.Errorf("last diagnostic = %q", last.Message)
	}
	if last.Time.IsZero() {
		t.Error("diagnostic time not set")
	}
}

func TestDiagnosticRing(t *testing.T) {
	r := NewDiagnosticRing(3)
	if got := r.Snapshot(); len(got) != 0 {
		t.Fatalf("empty ring snapshot has %d items", len(got))
	}

	for i := 1; i <= 2; i++ {
		r.Add(Diagnostic{Message: fmt.Sprint(i)})
	}
	if got := messages(r.Snapshot()); got != "1,2" {
		t.Errorf("partial ring = %s, want 1,2", got)
	}

	for i := 3; i <= 5; i++ {
		r.Add(Diagnostic{Message: fmt.Sprint(i)})
	}
	if got := messages(r.Snapshot()); got != "3,4,5" {
		t.Errorf("wrapped ring = %s, want 3,4,5", got)
	}
}

func TestNewDiagnosticRing_MinimumCapacity(t *testing.T) {
	r := NewDiagnosticRing(0)
	r.Add(Diagnostic{Message: "a"})
	r.Add(Diagnostic{Message: "b"})
	if got := messages(r.Snapshot()); got != "b" {
		t.Errorf("ring = %s, want b", got)
	}
}

func messages(ds []Diagnostic) string {
	parts := make([]string, len(ds))
	for i, d := range ds {
		parts[i] = d.Message
	}
	return strings.Join(parts, ",")
}
