// Package config assembles subsweep's runtime configuration. Values are
// layered: defaults, then an optional YAML file, then SUBSWEEP_* environment
// variables, then command-line flags that were set explicitly.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/vulnverified/subsweep/internal/engine"
	"github.com/vulnverified/subsweep/internal/errs"
	"gopkg.in/yaml.v3"
)

const envPrefix = "SUBSWEEP_"

// Config is the full runtime configuration.
type Config struct {
	Scan   ScanConfig   `yaml:"scan"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// ScanConfig holds job defaults and network settings for the phases.
type ScanConfig struct {
	Preset             string        `yaml:"preset"`
	Wordlist           string        `yaml:"wordlist"`
	WordlistDir        string        `yaml:"wordlist_dir"`
	Passive            bool          `yaml:"passive"`
	AXFR               bool          `yaml:"axfr"`
	SkipValidation     bool          `yaml:"skip_validation"`
	Timeout            time.Duration `yaml:"timeout"`
	Concurrency        int           `yaml:"concurrency"`
	HTTPConcurrency    int           `yaml:"http_concurrency"`
	HTTPRequestTimeout time.Duration `yaml:"http_request_timeout"`
	HTTPHostTimeout    time.Duration `yaml:"http_host_timeout"`
	Resolvers          []string      `yaml:"resolvers"`
	UserAgent          string        `yaml:"user_agent"`
	CrtshURL           string        `yaml:"crtsh_url"`
}

// ServerConfig holds API server settings.
type ServerConfig struct {
	Addr          string  `yaml:"addr"`
	JobsPerMinute float64 `yaml:"jobs_per_minute"`
	JobBurst      int     `yaml:"job_burst"`
	EventBuffer   int     `yaml:"event_buffer"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scan: ScanConfig{
			Preset:             engine.DefaultPreset,
			WordlistDir:        "wordlists",
			Timeout:            5 * time.Second,
			Concurrency:        engine.DefaultThreads,
			HTTPConcurrency:    50,
			HTTPRequestTimeout: 5 * time.Second,
			HTTPHostTimeout:    6 * time.Second,
			UserAgent:          "subsweep/dev",
		},
		Server: ServerConfig{
			Addr:          "127.0.0.1:8000",
			JobsPerMinute: 30,
			JobBurst:      5,
			EventBuffer:   256,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration from every layer. flags may be nil.
func Load(flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	path := os.Getenv(envPrefix + "CONFIG")
	if flags != nil && flags.Changed("config") {
		path, _ = flags.GetString("config")
	}
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := loadFromEnv(&cfg); err != nil {
		return cfg, err
	}
	if flags != nil {
		if err := loadFromFlags(&cfg, flags); err != nil {
			return cfg, err
		}
	}

	return cfg, cfg.Validate()
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errs.NotFound("config file %s", path)
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errs.InvalidConfig("parse %s: %v", path, err)
	}
	return nil
}

func loadFromEnv(cfg *Config) error {
	var result *multierror.Error

	if v, ok := getenv("PRESET"); ok {
		cfg.Scan.Preset = v
	}
	if v, ok := getenv("WORDLIST"); ok {
		cfg.Scan.Wordlist = v
	}
	if v, ok := getenv("WORDLIST_DIR"); ok {
		cfg.Scan.WordlistDir = v
	}
	if v, ok := getenv("PASSIVE"); ok {
		cfg.Scan.Passive = parseBool(v)
	}
	if v, ok := getenv("AXFR"); ok {
		cfg.Scan.AXFR = parseBool(v)
	}
	if v, ok := getenv("TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%sTIMEOUT: %w", envPrefix, err))
		} else {
			cfg.Scan.Timeout = d
		}
	}
	if v, ok := getenv("CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%sCONCURRENCY: %w", envPrefix, err))
		} else {
			cfg.Scan.Concurrency = n
		}
	}
	if v, ok := getenv("HTTP_CONCURRENCY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%sHTTP_CONCURRENCY: %w", envPrefix, err))
		} else {
			cfg.Scan.HTTPConcurrency = n
		}
	}
	if v, ok := getenv("RESOLVERS"); ok {
		cfg.Scan.Resolvers = splitList(v)
	}
	if v, ok := getenv("USER_AGENT"); ok {
		cfg.Scan.UserAgent = v
	}
	if v, ok := getenv("ADDR"); ok {
		cfg.Server.Addr = v
	}
	if v, ok := getenv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := getenv("LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}

	if err := result.ErrorOrNil(); err != nil {
		return errs.InvalidConfig("environment: %v", err)
	}
	return nil
}

// BindFlags registers the shared and scan flags with their defaults.
func BindFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("log-level", d.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", d.Log.Format, "Log format (text, json)")
	flags.String("wordlist-dir", d.Scan.WordlistDir, "Directory holding preset wordlists")
	flags.String("preset", d.Scan.Preset, "Wordlist preset id (see 'presets')")
	flags.StringP("wordlist", "w", "", "Custom wordlist path (overrides the preset when it exists)")
	flags.Bool("passive", false, "Merge certificate-transparency names into the candidates")
	flags.Bool("axfr", false, "Attempt DNS zone transfers and merge the results")
	flags.Bool("no-validate", false, "Skip the HTTP validation phase")
	flags.Duration("timeout", d.Scan.Timeout, "Per-lookup DNS timeout")
	flags.IntP("concurrency", "c", d.Scan.Concurrency, "DNS worker count")
	flags.Int("http-concurrency", d.Scan.HTTPConcurrency, "Maximum HTTP probes in flight")
	flags.StringSlice("resolvers", nil, "DNS servers to query (default: system resolvers)")
	flags.String("user-agent", d.Scan.UserAgent, "User-Agent for HTTP requests")
}

// BindServerFlags registers the API server flags.
func BindServerFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("addr", d.Server.Addr, "Listen address")
	flags.Float64("jobs-per-minute", d.Server.JobsPerMinute, "Enumeration jobs admitted per minute (0 = unlimited)")
}

// loadFromFlags applies flags the user set explicitly.
func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	var result *multierror.Error
	record := func(name string, err error) bool {
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("--%s: %w", name, err))
			return false
		}
		return true
	}
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			if v, err := flags.GetString(name); record(name, err) {
				*dst = v
			}
		}
	}
	boolean := func(name string, dst *bool) {
		if flags.Changed(name) {
			if v, err := flags.GetBool(name); record(name, err) {
				*dst = v
			}
		}
	}
	integer := func(name string, dst *int) {
		if flags.Changed(name) {
			if v, err := flags.GetInt(name); record(name, err) {
				*dst = v
			}
		}
	}

	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	str("wordlist-dir", &cfg.Scan.WordlistDir)
	str("preset", &cfg.Scan.Preset)
	str("wordlist", &cfg.Scan.Wordlist)
	str("user-agent", &cfg.Scan.UserAgent)
	str("addr", &cfg.Server.Addr)
	boolean("passive", &cfg.Scan.Passive)
	boolean("axfr", &cfg.Scan.AXFR)
	boolean("no-validate", &cfg.Scan.SkipValidation)
	integer("concurrency", &cfg.Scan.Concurrency)
	integer("http-concurrency", &cfg.Scan.HTTPConcurrency)

	if flags.Changed("timeout") {
		if v, err := flags.GetDuration("timeout"); record("timeout", err) {
			cfg.Scan.Timeout = v
		}
	}
	if flags.Changed("resolvers") {
		if v, err := flags.GetStringSlice("resolvers"); record("resolvers", err) {
			cfg.Scan.Resolvers = v
		}
	}
	if flags.Changed("jobs-per-minute") {
		if v, err := flags.GetFloat64("jobs-per-minute"); record("jobs-per-minute", err) {
			cfg.Server.JobsPerMinute = v
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return errs.InvalidConfig("flags: %v", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error

	minTimeout := time.Duration(engine.MinTimeout * float64(time.Second))
	maxTimeout := time.Duration(engine.MaxTimeout * float64(time.Second))
	if c.Scan.Timeout < minTimeout || c.Scan.Timeout > maxTimeout {
		result = multierror.Append(result, fmt.Errorf("scan.timeout %s outside [%s, %s]", c.Scan.Timeout, minTimeout, maxTimeout))
	}
	if c.Scan.Concurrency < engine.MinThreads || c.Scan.Concurrency > engine.MaxThreads {
		result = multierror.Append(result, fmt.Errorf("scan.concurrency %d outside [%d, %d]", c.Scan.Concurrency, engine.MinThreads, engine.MaxThreads))
	}
	if c.Scan.HTTPConcurrency < 1 {
		result = multierror.Append(result, fmt.Errorf("scan.http_concurrency must be positive"))
	}
	if c.Scan.HTTPRequestTimeout <= 0 || c.Scan.HTTPHostTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("scan http timeouts must be positive"))
	}
	if c.Server.JobsPerMinute < 0 {
		result = multierror.Append(result, fmt.Errorf("server.jobs_per_minute must not be negative"))
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		result = multierror.Append(result, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		result = multierror.Append(result, fmt.Errorf("log.format %q must be text or json", c.Log.Format))
	}

	if err := result.ErrorOrNil(); err != nil {
		return errs.InvalidConfig("%v", err)
	}
	return nil
}

// Request builds an enumeration request for domain from the scan settings.
func (s ScanConfig) Request(domain string) engine.Request {
	return engine.Request{
		Domain:         domain,
		Preset:         s.Preset,
		CustomWordlist: s.Wordlist,
		Passive:        s.Passive,
		AXFR:           s.AXFR,
		SkipValidation: s.SkipValidation,
		Timeout:        s.Timeout.Seconds(),
		Threads:        s.Concurrency,
	}
}

func getenv(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
