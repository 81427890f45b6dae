package serialmux

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestDisabledSerialMux(t *testing.T) {
	d := NewDisabledSerialMux()

	id, ch := d.Subscribe()
	d.Unsubscribe(id)
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Unsubscribe")
	}

	_, ch = d.Subscribe()
	if err := d.SendCommand("list 1 1"); err != nil {
		t.Errorf("SendCommand() error = %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	// subscribing after close yields an already closed channel
	_, ch = d.Subscribe()
	if _, ok := <-ch; ok {
		t.Error("expected closed channel when subscribing after Close")
	}
}

func TestDisabledSerialMux_Monitor(t *testing.T) {
	d := NewDisabledSerialMux()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.Monitor(ctx); err != context.DeadlineExceeded {
		t.Errorf("Monitor() = %v, want deadline exceeded", err)
	}
}

func TestDisabledSerialMux_AdminRoutes(t *testing.T) {
	mux := http.NewServeMux()
	NewDisabledSerialMux().AttachAdminRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/serial-disabled", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "disabled") {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

func TestStdioSerialMux(t *testing.T) {
	var out bytes.Buffer
	mux := NewStdioSerialMux(strings.NewReader("get noiseLevel\n"), &out)
	_, ch := mux.Subscribe()

	if err := mux.Monitor(context.Background()); err != nil {
		t.Fatalf("Monitor() error = %v", err)
	}
	if got := <-ch; got != "get noiseLevel" {
		t.Errorf("line = %q", got)
	}
	if err := mux.SendCommand("noiseLevel 0.2"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if out.String() != "noiseLevel 0.2\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if err := mux.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
