package supervisor

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the supervisor. Zero values are not
// meaningful; start from DefaultConfig and overlay.
type Config struct {
	GeneratorAddr string
	InverterPort  string
	InverterUnit  byte

	StartSOC int
	StopSOC  int

	PollInterval time.Duration
	MaxRuntime   time.Duration

	MaxStartAttempts int
	RecoveryWait     time.Duration

	DebounceChecks   int
	DebounceInterval time.Duration

	LogInterval    time.Duration
	HealthInterval time.Duration

	ForceChargePath string
	ForceStopPath   string

	Broker   string
	HTTPAddr string
}

func DefaultConfig() Config {
	return Config{
		GeneratorAddr:    "genny:9999",
		InverterPort:     "/dev/ttyUSB0",
		InverterUnit:     1,
		StartSOC:         25,
		StopSOC:          80,
		PollInterval:     30 * time.Second,
		MaxRuntime:       2 * time.Hour,
		MaxStartAttempts: 3,
		RecoveryWait:     30 * time.Minute,
		DebounceChecks:   3,
		DebounceInterval: 2 * time.Second,
		LogInterval:      5 * time.Minute,
		HealthInterval:   30 * time.Minute,
		ForceChargePath:  "/tmp/genny-force-charge",
		ForceStopPath:    "/tmp/genny-force-stop",
		Broker:           "tcp://localhost:1883",
		HTTPAddr:         ":8080",
	}
}

// fileConfig mirrors Config with durations as strings, the way they are
// written in the yaml file ("30s", "2h").
type fileConfig struct {
	GeneratorAddr    string `yaml:"generator_addr"`
	InverterPort     string `yaml:"inverter_port"`
	InverterUnit     *int   `yaml:"inverter_unit"`
	StartSOC         *int   `yaml:"start_soc"`
	StopSOC          *int   `yaml:"stop_soc"`
	PollInterval     string `yaml:"poll_interval"`
	MaxRuntime       string `yaml:"max_runtime"`
	MaxStartAttempts *int   `yaml:"max_start_attempts"`
	RecoveryWait     string `yaml:"recovery_wait"`
	DebounceChecks   *int   `yaml:"debounce_checks"`
	DebounceInterval string `yaml:"debounce_interval"`
	LogInterval      string `yaml:"log_interval"`
	HealthInterval   string `yaml:"health_interval"`
	ForceChargePath  string `yaml:"force_charge_path"`
	ForceStopPath    string `yaml:"force_stop_path"`
	Broker           string `yaml:"broker"`
	HTTPAddr         string `yaml:"http_addr"`
}

// LoadConfig overlays the yaml file at path onto DefaultConfig. Keys
// absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if fc.GeneratorAddr != "" {
		cfg.GeneratorAddr = fc.GeneratorAddr
	}
	if fc.InverterPort != "" {
		cfg.InverterPort = fc.InverterPort
	}
	if fc.InverterUnit != nil {
		cfg.InverterUnit = byte(*fc.InverterUnit)
	}
	if fc.StartSOC != nil {
		cfg.StartSOC = *fc.StartSOC
	}
	if fc.StopSOC != nil {
		cfg.StopSOC = *fc.StopSOC
	}
	if fc.MaxStartAttempts != nil {
		cfg.MaxStartAttempts = *fc.MaxStartAttempts
	}
	if fc.DebounceChecks != nil {
		cfg.DebounceChecks = *fc.DebounceChecks
	}
	if fc.ForceChargePath != "" {
		cfg.ForceChargePath = fc.ForceChargePath
	}
	if fc.ForceStopPath != "" {
		cfg.ForceStopPath = fc.ForceStopPath
	}
	if fc.Broker != "" {
		cfg.Broker = fc.Broker
	}
	if fc.HTTPAddr != "" {
		cfg.HTTPAddr = fc.HTTPAddr
	}

	durs := []struct {
		raw  string
		dst  *time.Duration
		name string
	}{
		{fc.PollInterval, &cfg.PollInterval, "poll_interval"},
		{fc.MaxRuntime, &cfg.MaxRuntime, "max_runtime"},
		{fc.RecoveryWait, &cfg.RecoveryWait, "recovery_wait"},
		{fc.DebounceInterval, &cfg.DebounceInterval, "debounce_interval"},
		{fc.LogInterval, &cfg.LogInterval, "log_interval"},
		{fc.HealthInterval, &cfg.HealthInterval, "health_interval"},
	}
	for _, d := range durs {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.StartSOC >= c.StopSOC {
		return fmt.Errorf("start_soc (%d) must be below stop_soc (%d)", c.StartSOC, c.StopSOC)
	}
	if c.StartSOC < 0 || c.StopSOC > 100 {
		return fmt.Errorf("soc thresholds out of range: start=%d stop=%d", c.StartSOC, c.StopSOC)
	}
	if c.MaxStartAttempts < 1 {
		return fmt.Errorf("max_start_attempts must be at least 1, got %d", c.MaxStartAttempts)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	return nil
}
