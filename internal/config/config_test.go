package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	if cfg.GetRows() != 16 || cfg.GetCols() != 16 {
		t.Errorf("grid = %dx%d, want 16x16", cfg.GetRows(), cfg.GetCols())
	}
	if cfg.GetThreshold() != 0.5 {
		t.Errorf("GetThreshold() = %f, want 0.5", cfg.GetThreshold())
	}
	if cfg.GetNoiseLevel() != 0.2 {
		t.Errorf("GetNoiseLevel() = %f, want 0.2", cfg.GetNoiseLevel())
	}
	if cfg.GetRunTimeout() != 5*time.Second {
		t.Errorf("GetRunTimeout() = %v, want 5s", cfg.GetRunTimeout())
	}
	if cfg.GetModelID() != "dice" {
		t.Errorf("GetModelID() = %q", cfg.GetModelID())
	}
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, "dice.json", `{
  "rows": 8,
  "cols": 32,
  "model_path": "/opt/dice/model.json",
  "run_timeout": "250ms",
  "threshold": 0.7,
  "noise_level": 0,
  "seed": 42,
  "serial_port": "/dev/ttyUSB0",
  "serial_parity": "E"
}`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.GetRows() != 8 || cfg.GetCols() != 32 {
		t.Errorf("grid = %dx%d, want 8x32", cfg.GetRows(), cfg.GetCols())
	}
	if cfg.GetModelPath() != "/opt/dice/model.json" {
		t.Errorf("GetModelPath() = %q", cfg.GetModelPath())
	}
	if cfg.GetRunTimeout() != 250*time.Millisecond {
		t.Errorf("GetRunTimeout() = %v", cfg.GetRunTimeout())
	}
	if cfg.GetThreshold() != 0.7 {
		t.Errorf("GetThreshold() = %f", cfg.GetThreshold())
	}
	// an explicit zero must not fall back to the default
	if cfg.GetNoiseLevel() != 0 {
		t.Errorf("GetNoiseLevel() = %f, want 0", cfg.GetNoiseLevel())
	}
	if cfg.GetSeed() != 42 {
		t.Errorf("GetSeed() = %d", cfg.GetSeed())
	}
	if cfg.GetSerialPort() != "/dev/ttyUSB0" || cfg.GetSerialParity() != "E" {
		t.Errorf("serial = %q %q", cfg.GetSerialPort(), cfg.GetSerialParity())
	}
	// unset fields keep defaults
	if cfg.GetListen() != ":8080" {
		t.Errorf("GetListen() = %q", cfg.GetListen())
	}
	if cfg.GetSerialBaudRate() != 115200 {
		t.Errorf("GetSerialBaudRate() = %d", cfg.GetSerialBaudRate())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		path    func(t *testing.T) string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    func(t *testing.T) string { return "/nonexistent/path/to/dice.json" },
			wantErr: "failed to stat",
		},
		{
			name:    "non json extension",
			path:    func(t *testing.T) string { return writeConfig(t, "dice.yaml", "rows: 4") },
			wantErr: ".json extension",
		},
		{
			name:    "invalid json",
			path:    func(t *testing.T) string { return writeConfig(t, "dice.json", `{"rows": "x"`) },
			wantErr: "failed to parse",
		},
		{
			name:    "invalid values",
			path:    func(t *testing.T) string { return writeConfig(t, "dice.json", `{"rows": 0}`) },
			wantErr: "invalid configuration",
		},
		{
			name: "too large",
			path: func(t *testing.T) string {
				return writeConfig(t, "dice.json", `{"model_id":"`+strings.Repeat("a", maxFileSize)+`"}`)
			},
			wantErr: "too large",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(tt.path(t))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *DiceConfig
		wantErr bool
	}{
		{"empty config is valid", EmptyConfig(), false},
		{"explicit grid", &DiceConfig{Rows: ptrInt(4), Cols: ptrInt(4)}, false},
		{"zero rows", &DiceConfig{Rows: ptrInt(0)}, true},
		{"negative cols", &DiceConfig{Cols: ptrInt(-1)}, true},
		{"bad timeout", &DiceConfig{RunTimeout: ptrString("soon")}, true},
		{"negative timeout", &DiceConfig{RunTimeout: ptrString("-1s")}, true},
		{"zero timeout disables", &DiceConfig{RunTimeout: ptrString("0s")}, false},
		{"negative noise", &DiceConfig{NoiseLevel: ptrFloat64(-0.1)}, true},
		{"negative threshold is allowed", &DiceConfig{Threshold: ptrFloat64(-1)}, false},
		{"negative history", &DiceConfig{HistoryLimit: ptrInt(-5)}, true},
		{"negative baud", &DiceConfig{SerialBaudRate: ptrInt(-1)}, true},
		{"negative seed is allowed", &DiceConfig{Seed: ptrInt64(-7)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetterDefaults(t *testing.T) {
	cfg := EmptyConfig()

	if cfg.GetRows() != 16 || cfg.GetCols() != 16 {
		t.Errorf("grid defaults = %dx%d", cfg.GetRows(), cfg.GetCols())
	}
	if cfg.GetModelPath() != "" {
		t.Errorf("GetModelPath() = %q, want empty", cfg.GetModelPath())
	}
	if cfg.GetInputName() != "input" || cfg.GetOutputName() != "output" {
		t.Errorf("tensor names = %q %q", cfg.GetInputName(), cfg.GetOutputName())
	}
	if cfg.GetThreshold() != 0.5 || cfg.GetNoiseLevel() != 0.2 || cfg.GetSeed() != 0 {
		t.Errorf("params = %v %v %v", cfg.GetThreshold(), cfg.GetNoiseLevel(), cfg.GetSeed())
	}
	if cfg.GetGRPCListen() != ":9090" {
		t.Errorf("GetGRPCListen() = %q", cfg.GetGRPCListen())
	}
	if cfg.GetDBPath() != "dice.db" {
		t.Errorf("GetDBPath() = %q", cfg.GetDBPath())
	}
	if cfg.GetHistoryLimit() != 100 {
		t.Errorf("GetHistoryLimit() = %d", cfg.GetHistoryLimit())
	}
	if cfg.GetSerialPort() != "" || cfg.GetSerialDataBits() != 8 || cfg.GetSerialStopBits() != 1 || cfg.GetSerialParity() != "N" {
		t.Error("unexpected serial defaults")
	}
}

func TestGetRunTimeout(t *testing.T) {
	tests := []struct {
		name string
		cfg  *DiceConfig
		want time.Duration
	}{
		{"unset", &DiceConfig{}, 5 * time.Second},
		{"empty", &DiceConfig{RunTimeout: ptrString("")}, 5 * time.Second},
		{"explicit", &DiceConfig{RunTimeout: ptrString("2s")}, 2 * time.Second},
		{"disabled", &DiceConfig{RunTimeout: ptrString("0")}, 0},
		{"unparseable", &DiceConfig{RunTimeout: ptrString("later")}, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.GetRunTimeout(); got != tt.want {
				t.Errorf("GetRunTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}
