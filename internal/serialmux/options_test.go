package serialmux

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.bug.st/serial"
)

func TestPortOptions_Normalise(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"explicit", PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "even"}, PortOptions{BaudRate: 9600, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"negative baud", PortOptions{BaudRate: -1}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"odd spelled out", PortOptions{Parity: " odd "}, PortOptions{BaudRate: DefaultBaudRate, DataBits: 8, StopBits: 1, Parity: "O"}, false},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalise()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Normalise(%+v) expected error", tt.in)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalise() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalise() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPortOptions_Equal(t *testing.T) {
	if !(PortOptions{}).Equal(PortOptions{BaudRate: DefaultBaudRate, Parity: "none"}) {
		t.Error("zero options should equal explicit defaults")
	}
	if (PortOptions{BaudRate: 9600}).Equal(PortOptions{}) {
		t.Error("different baud rates should not be equal")
	}
	if (PortOptions{Parity: "x"}).Equal(PortOptions{Parity: "x"}) {
		t.Error("invalid options are never equal")
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "E"}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	want := &serial.Mode{BaudRate: 9600, DataBits: 8, StopBits: serial.TwoStopBits, Parity: serial.EvenParity}
	if diff := cmp.Diff(want, mode); diff != "" {
		t.Errorf("SerialMode() mismatch (-want +got):\n%s", diff)
	}

	mode, err = PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.StopBits != serial.OneStopBit || mode.Parity != serial.NoParity {
		t.Errorf("default mode = %+v", mode)
	}

	if _, err := (PortOptions{DataBits: 4}).SerialMode(); err == nil {
		t.Error("expected error for invalid data bits")
	}
}

func TestPortOptions_String(t *testing.T) {
	if got := (PortOptions{}).String(); got != "115200 8N1" {
		t.Errorf("String() = %q", got)
	}
}

func TestOpenSerialMux(t *testing.T) {
	port := NewTestableSerialPort()
	factory := NewMockSerialPortFactory(port)
	opts := PortOptions{BaudRate: 9600}

	mux, err := OpenSerialMux(factory, "/dev/ttyUSB0", opts)
	if err != nil {
		t.Fatalf("OpenSerialMux() error = %v", err)
	}
	if err := mux.SendCommand("seed 3"); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if got := port.WrittenString(); got != "seed 3\n" {
		t.Errorf("written = %q", got)
	}

	call := factory.LastCall()
	if call == nil || call.Path != "/dev/ttyUSB0" || call.Options != opts {
		t.Errorf("LastCall() = %+v", call)
	}

	factory.Error = errors.New("busy")
	if _, err := OpenSerialMux(factory, "/dev/ttyUSB0", opts); err == nil {
		t.Error("expected factory error")
	}
	if _, err := OpenSerialMux(factory, "", opts); err == nil {
		t.Error("expected error for empty path")
	}
}
