package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds the command-line overrides. Only flags the user actually set
// are applied, so an unset flag never masks the environment.
type Flags struct {
	ConfigFile      string
	EnvFile         string
	MetricsFile     string
	Host            string
	Port            int
	RefreshInterval time.Duration
	CgroupRoot      string
	LogLevel        string
	LogDir          string
}

func (f *Flags) Register(fs *pflag.FlagSet) {
	def := Default()
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "YAML config file (or "+EnvConfigFile+")")
	fs.StringVar(&f.EnvFile, "env-file", ".env", "dotenv file loaded into the environment layer")
	fs.StringVarP(&f.MetricsFile, "metrics-file", "f", def.MetricsFile, "benchmark metrics file")
	fs.StringVar(&f.Host, "host", def.Host, "listen host")
	fs.IntVarP(&f.Port, "port", "p", def.Port, "listen port")
	fs.DurationVar(&f.RefreshInterval, "refresh-interval", def.RefreshInterval, "minimum age before a scrape re-reads the sources")
	fs.StringVar(&f.CgroupRoot, "cgroup-root", def.CgroupRoot, "cgroup v2 directory holding the service cgroups")
	fs.StringVar(&f.LogLevel, "log-level", def.LogLevel, "debug, info, warn or error")
	fs.StringVar(&f.LogDir, "log-dir", "", "write logs to this directory instead of stderr")
}

// Load runs the layered loader, then applies the flags that were set.
func (f *Flags) Load(fs *pflag.FlagSet) (*Config, error) {
	cfg, err := Load(LoadOptions{ConfigFile: f.ConfigFile, EnvFile: f.EnvFile})
	if err != nil {
		return nil, err
	}
	f.apply(cfg, fs)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *Flags) apply(cfg *Config, fs *pflag.FlagSet) {
	if fs.Changed("metrics-file") {
		cfg.MetricsFile = f.MetricsFile
	}
	if fs.Changed("host") {
		cfg.Host = f.Host
	}
	if fs.Changed("port") {
		cfg.Port = f.Port
	}
	if fs.Changed("refresh-interval") {
		cfg.RefreshInterval = f.RefreshInterval
	}
	if fs.Changed("cgroup-root") {
		cfg.CgroupRoot = f.CgroupRoot
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.LogLevel
	}
	if fs.Changed("log-dir") {
		cfg.LogDir = f.LogDir
	}
}
