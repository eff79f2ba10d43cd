package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FileName is the config file written by `banksim init`.
const FileName = "banksim.yaml"

// EnvPrefix prefixes every environment override, e.g. BANKSIM_SIMULATION_WORKERS.
const EnvPrefix = "BANKSIM_"

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid config")

// Config represents the top-level banksim.yaml configuration.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation" envPrefix:"SIMULATION_"`
	Storage    StorageConfig    `yaml:"storage" envPrefix:"STORAGE_"`
	Ledger     LedgerConfig     `yaml:"ledger" envPrefix:"LEDGER_"`
	Log        LogConfig        `yaml:"log" envPrefix:"LOG_"`
	API        APIConfig        `yaml:"api" envPrefix:"API_"`
}

// SimulationConfig controls the customer workers.
type SimulationConfig struct {
	Workers      int           `yaml:"workers" env:"WORKERS"`
	Iterations   int           `yaml:"iterations" env:"ITERATIONS"`
	MaxAmount    string        `yaml:"max_amount" env:"MAX_AMOUNT"` // decimal string, e.g. "1000.00"
	MaxThinkTime time.Duration `yaml:"max_think_time" env:"MAX_THINK_TIME"`
	Seed         uint64        `yaml:"seed" env:"SEED"` // 0 picks a random seed
}

// StorageConfig selects the account store.
type StorageConfig struct {
	Driver string `yaml:"driver" env:"DRIVER"`
	Path   string `yaml:"path,omitempty" env:"PATH"` // sqlite database, relative to the project root
}

// LedgerConfig lists the transaction log sinks besides the store.
type LedgerConfig struct {
	CSVPath string      `yaml:"csv_path,omitempty" env:"CSV_PATH"`
	Kafka   KafkaConfig `yaml:"kafka" envPrefix:"KAFKA_"`
}

// KafkaConfig enables publishing ledger entries when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty" env:"BROKERS"`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// APIConfig controls `banksim serve`.
type APIConfig struct {
	Listen string `yaml:"listen" env:"LISTEN"`
}

// Load reads a banksim.yaml file from disk and applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg from BANKSIM_* environment variables. Unset
// variables leave fields alone.
func ApplyEnv(cfg *Config) error {
	return applyEnv(cfg, nil)
}

func applyEnv(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parsing env overrides: %w", err)
	}
	return nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config matching the classic run: five customers doing
// ten operations each, amounts below 1000.00 and pauses below two seconds.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Workers:      5,
			Iterations:   10,
			MaxAmount:    "1000.00",
			MaxThinkTime: 2 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverMemory,
			Path:   "data/banksim.db",
		},
		Ledger: LedgerConfig{
			CSVPath: "ledger/transactions.csv",
			Kafka: KafkaConfig{
				Topic: "banksim.transactions",
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		API: APIConfig{
			Listen: ":8080",
		},
	}
}

// MaxAmountValue parses Simulation.MaxAmount.
func (c *Config) MaxAmountValue() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Simulation.MaxAmount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: simulation.max_amount %q: %w", ErrInvalid, c.Simulation.MaxAmount, err)
	}
	return d, nil
}

// KafkaEnabled reports whether ledger entries are published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.Ledger.Kafka.Brokers) > 0
}

// Validate rejects settings a run cannot use.
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.Workers < 1 {
		errs = append(errs, fmt.Errorf("simulation.workers must be at least 1, got %d", c.Simulation.Workers))
	}
	if c.Simulation.Iterations < 0 {
		errs = append(errs, fmt.Errorf("simulation.iterations must not be negative, got %d", c.Simulation.Iterations))
	}
	if amt, err := c.MaxAmountValue(); err != nil {
		errs = append(errs, err)
	} else if !amt.IsPositive() {
		errs = append(errs, fmt.Errorf("simulation.max_amount must be positive, got %s", amt))
	}
	if c.Simulation.MaxThinkTime < 0 {
		errs = append(errs, fmt.Errorf("simulation.max_think_time must not be negative, got %s", c.Simulation.MaxThinkTime))
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver must be %q or %q, got %q", DriverMemory, DriverSQLite, c.Storage.Driver))
	}
	if c.KafkaEnabled() && strings.TrimSpace(c.Ledger.Kafka.Topic) == "" {
		errs = append(errs, errors.New("ledger.kafka.topic is required when brokers are set"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}
