package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"go.uber.org/zap/zapcore"

	pcsv "magload/internal/parser/csv"
	"magload/internal/storage"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks the run.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is reported but does not block the run.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is the YAML path of the offending key (e.g. "storage.kind").
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// tableName restricts the destination table to plain (optionally
// schema-qualified) identifiers, since it is written into the statement text.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate performs static checks over cfg without touching the network or
// the input file. Storage kinds are checked against the registry, so the
// backends must be linked in (see storage/all).
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it labels logs and metrics",
		})
	}
	if _, err := zapcore.ParseLevel(cfg.LogLevel); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log_level",
			Message:  fmt.Sprintf("unknown log level %q", cfg.LogLevel),
		})
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "log_format",
			Message:  fmt.Sprintf("unknown log format %q; want json or console", cfg.LogFormat),
		})
	}

	issues = append(issues, validateSource(cfg.Source)...)
	issues = append(issues, validateParser(cfg.Parser)...)
	issues = append(issues, validateStorage(cfg.Storage)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)
	return issues
}

func validateSource(s Source) []Issue {
	if strings.TrimSpace(s.File) == "" {
		return []Issue{{
			Severity: SeverityError,
			Path:     "source.file",
			Message:  "input file path must not be empty",
		}}
	}
	return nil
}

func validateParser(p Parser) []Issue {
	var issues []Issue

	comma, err := p.Comma()
	switch {
	case err != nil:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.delimiter",
			Message:  err.Error(),
		})
	case comma == '"' || comma == '\r' || comma == '\n' || comma == 0xFFFD:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.delimiter",
			Message:  fmt.Sprintf("%q cannot be used as a delimiter", comma),
		})
	case comma != pcsv.DefaultComma:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "parser.delimiter",
			Message:  fmt.Sprintf("delimiter %q differs from the export's usual %q", comma, pcsv.DefaultComma),
		})
	}

	if _, err := pcsv.LookupEncoding(p.Encoding); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "parser.encoding",
			Message:  fmt.Sprintf("%v; supported: %s", err, strings.Join(pcsv.EncodingNames(), ", ")),
		})
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	var issues []Issue

	kinds := storage.ListKinds()
	if !slices.Contains(kinds, s.Kind) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unsupported storage.kind=%s; registered: %s", s.Kind, strings.Join(kinds, ", ")),
		})
	}

	if !tableName.MatchString(s.Table) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.table",
			Message:  fmt.Sprintf("table %q is not a plain identifier", s.Table),
		})
	}

	if s.Port < 0 || s.Port > 65535 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.port",
			Message:  fmt.Sprintf("port %d out of range", s.Port),
		})
	}

	if s.ConnectTimeout <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "storage.connect_timeout",
			Message:  "connect timeout must be positive",
		})
	}

	if s.DSN == "" {
		if strings.TrimSpace(s.Database) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "storage.database",
				Message:  "database must not be empty when no dsn is given",
			})
		}
		if s.Kind != "sqlite" && s.Password == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.password",
				Message:  "password is empty",
			})
		}
	}
	return issues
}

func validateMetrics(m Metrics) []Issue {
	switch m.Backend {
	case "", "none", "datadog":
		return nil
	case "pushgateway":
		if u, err := url.Parse(m.PushgatewayURL); err != nil || u.Scheme == "" || u.Host == "" {
			return []Issue{{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  fmt.Sprintf("invalid pushgateway url %q", m.PushgatewayURL),
			}}
		}
		return nil
	default:
		return []Issue{{
			Severity: SeverityError,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; want none, pushgateway or datadog", m.Backend),
		}}
	}
}
