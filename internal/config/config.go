// Package config assembles the exporter settings from, in rising precedence,
// built-in defaults, an optional YAML file, an optional dotenv file and the
// process environment. Command-line flags are applied on top by the caller.
package config

import (
	"bytes"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"nimbus-benchmark-exporter/internal/util"
)

const (
	EnvConfigFile      = "EXPORTER_CONFIG"
	EnvMetricsFile     = "METRICS_FILE"
	EnvHost            = "METRICS_HOST"
	EnvPort            = "METRICS_PORT"
	EnvRefreshInterval = "REFRESH_INTERVAL"
	EnvCgroupRoot      = "CGROUP_ROOT"
	EnvLogLevel        = "LOG_LEVEL"
	EnvLogDir          = "LOG_DIR"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type DiscoveryConfig struct {
	Prefix   string   `yaml:"prefix"`
	Contains string   `yaml:"contains"`
	Suffix   string   `yaml:"suffix"`
	Fallback []string `yaml:"fallback"`
}

type Config struct {
	MetricsFile     string          `yaml:"metrics_file"`
	Host            string          `yaml:"host"`
	Port            int             `yaml:"port"`
	RefreshInterval time.Duration   `yaml:"refresh_interval"`
	CgroupRoot      string          `yaml:"cgroup_root"`
	Discovery       DiscoveryConfig `yaml:"discovery"`
	LogLevel        string          `yaml:"log_level"`
	LogDir          string          `yaml:"log_dir"`
}

func Default() *Config {
	return &Config{
		MetricsFile:     "/var/lib/nimbus-benchmark-metrics/benchmark_metrics.prom",
		Host:            "0.0.0.0",
		Port:            9091,
		RefreshInterval: 10 * time.Second,
		CgroupRoot:      "/sys/fs/cgroup/system.slice",
		Discovery: DiscoveryConfig{
			Prefix:   "nimbus-eth1-",
			Contains: "benchmark",
			Suffix:   ".service",
			Fallback: []string{
				"nimbus-eth1-mainnet-master-short-benchmark",
				"nimbus-eth1-mainnet-master-long-benchmark",
			},
		},
		LogLevel: "info",
	}
}

// Addr is the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LoadOptions names the optional files. Lookup defaults to os.LookupEnv.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string
	Lookup     func(key string) (string, bool)
}

// Load builds the configuration without validating it; call Validate once
// flags have been applied.
func Load(opts LoadOptions) (*Config, error) {
	lookup := opts.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	dotenv, err := readEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}
	// The real environment wins over the dotenv file.
	get := func(key string) (string, bool) {
		if v, ok := lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}

	cfg := Default()

	configFile := opts.ConfigFile
	if configFile == "" {
		configFile, _ = get(EnvConfigFile)
	}
	if configFile != "" {
		if err := cfg.mergeYAML(configFile); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(get); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading env file %s", path)
	}
	return values, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config file %s", path)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty file decodes to io.EOF and leaves the defaults alone.
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv(get func(string) (string, bool)) error {
	if v, ok := get(EnvMetricsFile); ok {
		c.MetricsFile = v
	}
	if v, ok := get(EnvHost); ok {
		c.Host = v
	}
	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(ErrInvalidConfig, "%s=%q is not a port number", EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := get(EnvRefreshInterval); ok {
		interval, err := ParseInterval(v)
		if err != nil {
			return errors.Wrapf(err, "%s", EnvRefreshInterval)
		}
		c.RefreshInterval = interval
	}
	if v, ok := get(EnvCgroupRoot); ok {
		c.CgroupRoot = v
	}
	if v, ok := get(EnvLogLevel); ok {
		c.LogLevel = v
	}
	if v, ok := get(EnvLogDir); ok {
		c.LogDir = v
	}
	return nil
}

// ParseInterval accepts whole seconds ("10") or a Go duration ("1m30s").
func ParseInterval(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidConfig, "refresh interval %q", v)
	}
	return d, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var problems []string
	if c.Port < 1 || c.Port > 65535 {
		problems = append(problems, "port "+strconv.Itoa(c.Port)+" out of range 1..65535")
	}
	if c.RefreshInterval <= 0 {
		problems = append(problems, "refresh interval "+c.RefreshInterval.String()+" must be positive")
	}
	if c.MetricsFile == "" {
		problems = append(problems, "metrics file path is empty")
	}
	if c.CgroupRoot == "" {
		problems = append(problems, "cgroup root is empty")
	}
	if c.Discovery.Suffix == "" {
		problems = append(problems, "discovery suffix is empty")
	}
	if _, err := util.ParseLogLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return errors.Wrapf(ErrInvalidConfig, "%s", strings.Join(problems, "; "))
	}
	return nil
}
