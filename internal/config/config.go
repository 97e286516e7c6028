// Package config defines the configuration model for a magload run and the
// layered loader that fills it.
//
// Every tunable can come from four places. Later layers win:
//
//  1. built-in defaults (Default);
//  2. a YAML file named by --config or MAGLOAD_CONFIG;
//  3. environment variables;
//  4. command-line flags that were set explicitly.
//
// Example YAML (all keys optional):
//
//	job: magload
//	log_level: info
//	log_format: json
//	source:
//	  file: Pago_Movil.csv
//	parser:
//	  delimiter: ";"
//	  encoding: utf-8
//	storage:
//	  kind: mysql
//	  host: localhost
//	  user: root
//	  password: root
//	  database: MAG
//	  table: MAG
//	  connect_timeout: 10s
//	metrics:
//	  backend: none
//
// For tests, prefer LoadFromArgs with a private FlagSet and a map-backed
// getenv so nothing touches the process environment.
package config

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"magload/internal/records"
	"magload/internal/storage"
)

// Config holds everything a run needs. All fields are plain values so the
// struct can be copied freely after loading.
type Config struct {
	// Job names the run in logs and metrics.
	Job string `yaml:"job"`

	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json" (production) or "console" (development).
	LogFormat string `yaml:"log_format"`

	Source  Source  `yaml:"source"`
	Parser  Parser  `yaml:"parser"`
	Storage Storage `yaml:"storage"`
	Metrics Metrics `yaml:"metrics"`
}

// Source locates the input file.
type Source struct {
	File string `yaml:"file"`
}

// Parser configures CSV decoding.
type Parser struct {
	// Delimiter is a single character; "\t" and "tab" mean a tab.
	Delimiter string `yaml:"delimiter"`

	// Encoding names the input text encoding (see csv.EncodingNames).
	Encoding string `yaml:"encoding"`
}

// Storage selects and reaches the destination database.
type Storage struct {
	Kind string `yaml:"kind"`

	// DSN, when set, is passed to the driver as-is and the discrete fields
	// below are ignored for connecting.
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Table    string `yaml:"table"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// Metrics selects where run metrics are sent.
type Metrics struct {
	// Backend is one of "none", "pushgateway", "datadog".
	Backend        string `yaml:"backend"`
	PushgatewayURL string `yaml:"pushgateway_url"`
	DatadogAddr    string `yaml:"datadog_addr"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Job:       "magload",
		LogLevel:  "info",
		LogFormat: "json",
		Source:    Source{File: "Pago_Movil.csv"},
		Parser:    Parser{Delimiter: ";", Encoding: "utf-8"},
		Storage: Storage{
			Kind:           "mysql",
			Host:           "localhost",
			User:           "root",
			Password:       "root",
			Database:       "MAG",
			Table:          records.DefaultTable,
			ConnectTimeout: storage.DefaultConnectTimeout,
		},
		Metrics: Metrics{
			Backend:        "none",
			PushgatewayURL: "http://localhost:9091",
			DatadogAddr:    "127.0.0.1:8125",
		},
	}
}

// Comma returns the delimiter as a rune.
func (p Parser) Comma() (rune, error) {
	switch p.Delimiter {
	case `\t`, "tab":
		return '\t', nil
	}
	if utf8.RuneCountInString(p.Delimiter) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", p.Delimiter)
	}
	r, _ := utf8.DecodeRuneInString(p.Delimiter)
	return r, nil
}

// StorageConfig converts the storage section for storage.New.
func (c Config) StorageConfig(log *zap.Logger) storage.Config {
	s := c.Storage
	return storage.Config{
		Kind:           s.Kind,
		DSN:            s.DSN,
		Host:           s.Host,
		Port:           s.Port,
		User:           s.User,
		Password:       s.Password,
		Database:       s.Database,
		Table:          s.Table,
		ConnectTimeout: s.ConnectTimeout,
		Logger:         log,
	}
}

// Redacted returns a copy safe to print or log.
func (c Config) Redacted() Config {
	if c.Storage.Password != "" {
		c.Storage.Password = "****"
	}
	if c.Storage.DSN != "" {
		c.Storage.DSN = "****"
	}
	return c
}

// binding ties one setting to its flag, its environment variable, and its
// field. Exactly one of str, num, dur is set.
type binding struct {
	flag  string
	env   string
	usage string
	str   func(*Config) *string
	num   func(*Config) *int
	dur   func(*Config) *time.Duration
}

func bindings() []binding {
	return []binding{
		{flag: "job", env: "MAGLOAD_JOB", usage: "Job name used in logs and metrics", str: func(c *Config) *string { return &c.Job }},
		{flag: "log-level", env: "LOG_LEVEL", usage: "Log level: debug, info, warn, error", str: func(c *Config) *string { return &c.LogLevel }},
		{flag: "log-format", env: "LOG_FORMAT", usage: "Log format: json or console", str: func(c *Config) *string { return &c.LogFormat }},

		{flag: "file", env: "MAGLOAD_FILE", usage: "Path to the payment CSV export", str: func(c *Config) *string { return &c.Source.File }},
		{flag: "delimiter", env: "MAGLOAD_DELIMITER", usage: `Field delimiter (single character, or "tab")`, str: func(c *Config) *string { return &c.Parser.Delimiter }},
		{flag: "encoding", env: "MAGLOAD_ENCODING", usage: "Input text encoding", str: func(c *Config) *string { return &c.Parser.Encoding }},

		{flag: "db-kind", env: "DB_KIND", usage: "Storage backend: mysql, postgres, mssql, sqlite", str: func(c *Config) *string { return &c.Storage.Kind }},
		{flag: "dsn", env: "DB_DSN", usage: "Full driver DSN; overrides the discrete db-* settings", str: func(c *Config) *string { return &c.Storage.DSN }},
		{flag: "db-host", env: "DB_HOST", usage: "Database host", str: func(c *Config) *string { return &c.Storage.Host }},
		{flag: "db-port", env: "DB_PORT", usage: "Database port (0 = backend default)", num: func(c *Config) *int { return &c.Storage.Port }},
		{flag: "db-user", env: "DB_USER", usage: "Database user", str: func(c *Config) *string { return &c.Storage.User }},
		{flag: "db-password", env: "DB_PASSWORD", usage: "Database password", str: func(c *Config) *string { return &c.Storage.Password }},
		{flag: "db-name", env: "DB_NAME", usage: "Database name (file path for sqlite)", str: func(c *Config) *string { return &c.Storage.Database }},
		{flag: "table", env: "DB_TABLE", usage: "Destination table", str: func(c *Config) *string { return &c.Storage.Table }},
		{flag: "connect-timeout", env: "DB_CONNECT_TIMEOUT", usage: "Timeout for establishing the database connection", dur: func(c *Config) *time.Duration { return &c.Storage.ConnectTimeout }},

		{flag: "metrics-backend", env: "METRICS_BACKEND", usage: "Metrics backend: none, pushgateway, datadog", str: func(c *Config) *string { return &c.Metrics.Backend }},
		{flag: "pushgateway-url", env: "PUSHGATEWAY_URL", usage: "Prometheus Pushgateway URL", str: func(c *Config) *string { return &c.Metrics.PushgatewayURL }},
		{flag: "datadog-addr", env: "DD_DOGSTATSD_ADDR", usage: "DogStatsD address", str: func(c *Config) *string { return &c.Metrics.DatadogAddr }},
	}
}

// Loader holds flag definitions until Resolve merges every layer.
type Loader struct {
	fs         *pflag.FlagSet
	getenv     func(string) string
	flags      Config
	configPath string
	binds      []binding
}

// Bind defines every configuration flag on fs. Flag defaults are the
// built-in defaults so --help documents them.
func Bind(fs *pflag.FlagSet, getenv func(string) string) *Loader {
	l := &Loader{fs: fs, getenv: getenv, flags: Default(), binds: bindings()}
	for _, b := range l.binds {
		switch {
		case b.str != nil:
			p := b.str(&l.flags)
			fs.StringVar(p, b.flag, *p, b.usage+" (env "+b.env+")")
		case b.num != nil:
			p := b.num(&l.flags)
			fs.IntVar(p, b.flag, *p, b.usage+" (env "+b.env+")")
		case b.dur != nil:
			p := b.dur(&l.flags)
			fs.DurationVar(p, b.flag, *p, b.usage+" (env "+b.env+")")
		}
	}
	fs.StringVar(&l.configPath, "config", "", "YAML config file (env MAGLOAD_CONFIG)")
	return l
}

// Resolve merges defaults, the YAML file, environment and explicitly set
// flags, in that order. Call it after fs has been parsed.
func (l *Loader) Resolve() (*Config, error) {
	cfg := Default()

	path := l.configPath
	if !l.fs.Changed("config") {
		path = l.getenv("MAGLOAD_CONFIG")
	}
	if path != "" {
		if err := loadYAML(path, &cfg); err != nil {
			return nil, err
		}
	}

	for _, b := range l.binds {
		v := l.getenv(b.env)
		if v == "" {
			continue
		}
		if err := b.setString(&cfg, v); err != nil {
			return nil, fmt.Errorf("config: %s: %w", b.env, err)
		}
	}

	for _, b := range l.binds {
		if !l.fs.Changed(b.flag) {
			continue
		}
		switch {
		case b.str != nil:
			*b.str(&cfg) = *b.str(&l.flags)
		case b.num != nil:
			*b.num(&cfg) = *b.num(&l.flags)
		case b.dur != nil:
			*b.dur(&cfg) = *b.dur(&l.flags)
		}
	}
	return &cfg, nil
}

func (b binding) setString(cfg *Config, v string) error {
	switch {
	case b.str != nil:
		*b.str(cfg) = v
	case b.num != nil:
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*b.num(cfg) = n
	case b.dur != nil:
		d, err := parseDuration(v)
		if err != nil {
			return err
		}
		*b.dur(cfg) = d
	}
	return nil
}

// parseDuration accepts Go durations ("10s") and bare seconds ("10").
func parseDuration(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// loadYAML overlays the file at path onto cfg. Unknown keys are rejected.
func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

// LoadFromArgs defines flags on fs, parses args, and resolves every layer.
// It is the hermetic entry point for tests.
func LoadFromArgs(fs *pflag.FlagSet, getenv func(string) string, args []string) (*Config, error) {
	l := Bind(fs, getenv)
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return l.Resolve()
}
