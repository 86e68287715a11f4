package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/acksell/csvload/dynamodb/table"
	"github.com/acksell/csvload/ingest"
	"gopkg.in/yaml.v3"
)

const configFileName = "csvload.yaml"

// Config holds the settings shared by all commands.
// Loaded from csvload.yaml if present, then overridden by CSVLOAD_*
// environment variables and finally by command flags.
type Config struct {
	// Region overrides the AWS region from the default credential chain.
	Region string `yaml:"region"`
	// Endpoint points the AWS clients at a different endpoint, e.g. LocalStack.
	Endpoint string `yaml:"endpoint"`

	BatchSize     int   `yaml:"batchSize"`
	MaxRetries    int   `yaml:"maxRetries"`
	ReadCapacity  int64 `yaml:"readCapacity"`
	WriteCapacity int64 `yaml:"writeCapacity"`

	Waiter WaiterConfig `yaml:"waiter"`
	Log    LogConfig    `yaml:"log"`
	Local  LocalConfig  `yaml:"local"`
}

type WaiterConfig struct {
	MinDelay time.Duration `yaml:"minDelay"`
	MaxDelay time.Duration `yaml:"maxDelay"`
	MaxWait  time.Duration `yaml:"maxWait"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

type LocalConfig struct {
	// DataDir is where the local BadgerDB store keeps its data.
	DataDir string `yaml:"dataDir"`
}

func defaultConfig() Config {
	return Config{
		BatchSize:     ingest.BatchSize,
		MaxRetries:    ingest.DefaultMaxRetries,
		ReadCapacity:  ingest.DefaultThroughput.ReadCapacityUnits,
		WriteCapacity: ingest.DefaultThroughput.WriteCapacityUnits,
		Waiter: WaiterConfig{
			MinDelay: ingest.DefaultWaiterOptions.MinDelay,
			MaxDelay: ingest.DefaultWaiterOptions.MaxDelay,
			MaxWait:  ingest.DefaultWaiterOptions.MaxWait,
		},
		Log:   LogConfig{Level: "info", Format: "text"},
		Local: LocalConfig{DataDir: ".csvload"},
	}
}

// LoadConfig builds the configuration from defaults, the config file and the
// environment. CSVLOAD_CONFIG names the file explicitly; otherwise
// csvload.yaml is searched from the working directory upwards.
func LoadConfig(getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	path := getenv("CSVLOAD_CONFIG")
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			path = findConfigFile(wd)
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(getenv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// findConfigFile searches for csvload.yaml walking up from dir.
func findConfigFile(dir string) string {
	for {
		path := filepath.Join(dir, configFileName)
		if _, err := os.Stat(path); err == nil {
			return path
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			return ""
		}
		dir = parent
	}
}

func (c *Config) applyEnv(getenv func(string) string) error {
	setString := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	var errs []error
	setInt := func(name string, dst *int) {
		if v := getenv(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	setInt64 := func(name string, dst *int64) {
		if v := getenv(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	setDuration := func(name string, dst *time.Duration) {
		if v := getenv(name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = d
		}
	}

	setString("CSVLOAD_REGION", &c.Region)
	setString("CSVLOAD_ENDPOINT", &c.Endpoint)
	setInt("CSVLOAD_BATCH_SIZE", &c.BatchSize)
	setInt("CSVLOAD_MAX_RETRIES", &c.MaxRetries)
	setInt64("CSVLOAD_READ_CAPACITY", &c.ReadCapacity)
	setInt64("CSVLOAD_WRITE_CAPACITY", &c.WriteCapacity)
	setDuration("CSVLOAD_WAITER_MIN_DELAY", &c.Waiter.MinDelay)
	setDuration("CSVLOAD_WAITER_MAX_DELAY", &c.Waiter.MaxDelay)
	setDuration("CSVLOAD_WAITER_MAX_WAIT", &c.Waiter.MaxWait)
	setString("CSVLOAD_LOG_LEVEL", &c.Log.Level)
	setString("CSVLOAD_LOG_FORMAT", &c.Log.Format)
	setString("CSVLOAD_DATA_DIR", &c.Local.DataDir)
	return errors.Join(errs...)
}

// Validate checks the settings that would otherwise fail deep inside a load.
func (c Config) Validate() error {
	var errs []error
	if err := ingest.ValidateBatchSize(c.BatchSize); err != nil {
		errs = append(errs, err)
	}
	if c.MaxRetries < 1 {
		errs = append(errs, fmt.Errorf("maxRetries must be positive, got %d", c.MaxRetries))
	}
	if c.ReadCapacity < 1 || c.WriteCapacity < 1 {
		errs = append(errs, fmt.Errorf("read and write capacity must be positive, got %d/%d", c.ReadCapacity, c.WriteCapacity))
	}
	if c.Waiter.MinDelay <= 0 || c.Waiter.MaxDelay < c.Waiter.MinDelay || c.Waiter.MaxWait <= 0 {
		errs = append(errs, fmt.Errorf("invalid waiter settings: minDelay %s, maxDelay %s, maxWait %s", c.Waiter.MinDelay, c.Waiter.MaxDelay, c.Waiter.MaxWait))
	}
	return errors.Join(errs...)
}

func (c Config) loaderOptions() ingest.Options {
	return ingest.Options{
		BatchSize:  c.BatchSize,
		MaxRetries: c.MaxRetries,
		Throughput: table.Throughput{ReadCapacityUnits: c.ReadCapacity, WriteCapacityUnits: c.WriteCapacity},
		Waiter: ingest.WaiterOptions{
			MinDelay: c.Waiter.MinDelay,
			MaxDelay: c.Waiter.MaxDelay,
			MaxWait:  c.Waiter.MaxWait,
		},
	}
}
