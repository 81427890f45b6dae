package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical defaults file.
const DefaultConfigPath = "config/dice.defaults.json"

// maxFileSize guards against accidentally pointing the loader at something
// that is not a config file.
const maxFileSize = 1 * 1024 * 1024 // 1MB

// DiceConfig is the root configuration for the dice service. Every field is
// optional; the Get* methods supply defaults for anything the file omits.
type DiceConfig struct {
	// Grid shape
	Rows *int `json:"rows,omitempty"`
	Cols *int `json:"cols,omitempty"`

	// Model
	ModelPath  *string `json:"model_path,omitempty"` // empty uses the embedded artifact
	ModelID    *string `json:"model_id,omitempty"`
	InputName  *string `json:"input_name,omitempty"`
	OutputName *string `json:"output_name,omitempty"`
	RunTimeout *string `json:"run_timeout,omitempty"` // duration string like "5s"

	// Pipeline parameters used until the store has saved values
	Threshold  *float64 `json:"threshold,omitempty"`
	NoiseLevel *float64 `json:"noise_level,omitempty"`
	Seed       *int64   `json:"seed,omitempty"`

	// Transports and storage
	Listen       *string `json:"listen,omitempty"`
	GRPCListen   *string `json:"grpc_listen,omitempty"`
	DBPath       *string `json:"db_path,omitempty"`
	HistoryLimit *int    `json:"history_limit,omitempty"`

	// Serial host; an empty port disables the serial shell
	SerialPort     *string `json:"serial_port,omitempty"`
	SerialBaudRate *int    `json:"serial_baud_rate,omitempty"`
	SerialDataBits *int    `json:"serial_data_bits,omitempty"`
	SerialStopBits *int    `json:"serial_stop_bits,omitempty"`
	SerialParity   *string `json:"serial_parity,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyConfig returns a DiceConfig with all fields unset.
func EmptyConfig() *DiceConfig {
	return &DiceConfig{}
}

// LoadConfig loads a DiceConfig from a JSON file. The file must have a .json
// extension and be under 1MB. Omitted fields fall back to the Get* defaults,
// so partial configs are safe.
func LoadConfig(path string) (*DiceConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching upwards from the
// current directory. Panics if the file cannot be loaded; intended for tests.
func MustLoadDefaultConfig() *DiceConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/gen-model
	}
	for _, path := range candidates {
		if cfg, err := LoadConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configured values are usable.
func (c *DiceConfig) Validate() error {
	if c.Rows != nil && *c.Rows <= 0 {
		return fmt.Errorf("rows must be positive, got %d", *c.Rows)
	}
	if c.Cols != nil && *c.Cols <= 0 {
		return fmt.Errorf("cols must be positive, got %d", *c.Cols)
	}

	if c.RunTimeout != nil && *c.RunTimeout != "" {
		d, err := time.ParseDuration(*c.RunTimeout)
		if err != nil {
			return fmt.Errorf("invalid run_timeout '%s': %w", *c.RunTimeout, err)
		}
		if d < 0 {
			return fmt.Errorf("run_timeout must be non-negative, got %s", d)
		}
	}

	if c.NoiseLevel != nil && *c.NoiseLevel < 0 {
		return fmt.Errorf("noise_level must be non-negative, got %f", *c.NoiseLevel)
	}

	if c.HistoryLimit != nil && *c.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must be non-negative, got %d", *c.HistoryLimit)
	}

	if c.SerialBaudRate != nil && *c.SerialBaudRate < 0 {
		return fmt.Errorf("serial_baud_rate must be non-negative, got %d", *c.SerialBaudRate)
	}

	return nil
}

// GetRows returns the grid row count or the default.
func (c *DiceConfig) GetRows() int {
	if c.Rows == nil {
		return 16
	}
	return *c.Rows
}

// GetCols returns the grid column count or the default.
func (c *DiceConfig) GetCols() int {
	if c.Cols == nil {
		return 16
	}
	return *c.Cols
}

// GetModelPath returns the model override path; empty means embedded.
func (c *DiceConfig) GetModelPath() string {
	if c.ModelPath == nil {
		return ""
	}
	return *c.ModelPath
}

// GetModelID returns the model identifier looked up in the bundle.
func (c *DiceConfig) GetModelID() string {
	if c.ModelID == nil || *c.ModelID == "" {
		return "dice"
	}
	return *c.ModelID
}

// GetInputName returns the model input tensor name.
func (c *DiceConfig) GetInputName() string {
	if c.InputName == nil || *c.InputName == "" {
		return "input"
	}
	return *c.InputName
}

// GetOutputName returns the model output tensor name.
func (c *DiceConfig) GetOutputName() string {
	if c.OutputName == nil || *c.OutputName == "" {
		return "output"
	}
	return *c.OutputName
}

// GetRunTimeout parses RunTimeout. Zero disables the timeout.
func (c *DiceConfig) GetRunTimeout() time.Duration {
	if c.RunTimeout == nil || *c.RunTimeout == "" {
		return 5 * time.Second
	}
	d, err := time.ParseDuration(*c.RunTimeout)
	if err != nil {
		return 5 * time.Second // default on parse error
	}
	return d
}

func (c *DiceConfig) GetThreshold() float64 {
	if c.Threshold == nil {
		return 0.5
	}
	return *c.Threshold
}

func (c *DiceConfig) GetNoiseLevel() float64 {
	if c.NoiseLevel == nil {
		return 0.2
	}
	return *c.NoiseLevel
}

func (c *DiceConfig) GetSeed() int64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetListen returns the HTTP listen address.
func (c *DiceConfig) GetListen() string {
	if c.Listen == nil {
		return ":8080"
	}
	return *c.Listen
}

// GetGRPCListen returns the gRPC listen address. Empty disables gRPC.
func (c *DiceConfig) GetGRPCListen() string {
	if c.GRPCListen == nil {
		return ":9090"
	}
	return *c.GRPCListen
}

// GetDBPath returns the sqlite database path.
func (c *DiceConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "dice.db"
	}
	return *c.DBPath
}

// GetHistoryLimit returns the number of transforms kept in the store.
// Zero keeps everything.
func (c *DiceConfig) GetHistoryLimit() int {
	if c.HistoryLimit == nil {
		return 100
	}
	return *c.HistoryLimit
}

// GetSerialPort returns the serial device path; empty disables the host shell.
func (c *DiceConfig) GetSerialPort() string {
	if c.SerialPort == nil {
		return ""
	}
	return *c.SerialPort
}

func (c *DiceConfig) GetSerialBaudRate() int {
	if c.SerialBaudRate == nil {
		return 115200
	}
	return *c.SerialBaudRate
}

func (c *DiceConfig) GetSerialDataBits() int {
	if c.SerialDataBits == nil {
		return 8
	}
	return *c.SerialDataBits
}

func (c *DiceConfig) GetSerialStopBits() int {
	if c.SerialStopBits == nil {
		return 1
	}
	return *c.SerialStopBits
}

func (c *DiceConfig) GetSerialParity() string {
	if c.SerialParity == nil || *c.SerialParity == "" {
		return "N"
	}
	return *c.SerialParity
}
