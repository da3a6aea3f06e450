// Package config loads application configuration from environment
// variables.
package config

import (
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Config holds all runtime configuration values.  Each field
// corresponds to an environment variable.  Required variables are
// enforced by must(); optional ones fall back to sensible defaults.
type Config struct {
	Env       string // application environment (e.g. "dev", "prod")
	Port      string // HTTP port to listen on
	DBUser    string // database username
	DBPass    string // database password (optional)
	DBHost    string // database host address
	DBPort    string // database port number
	DBName    string // database name
	JWTSecret string // secret for verifying bearer tokens; empty disables auth

	// Disposal holds the closed value sets a disposal request is
	// validated against.  They are configuration, not free-form
	// strings, so the audit trail stays queryable.
	Disposal DisposalPolicy
}

// DisposalPolicy is the configured set of acceptable disposal reasons
// and methods.
type DisposalPolicy struct {
	Reasons []string
	Methods []string
}

// ValidReason reports whether reason is a member of the configured
// reason set.  Comparison is exact apart from surrounding whitespace.
func (p DisposalPolicy) ValidReason(reason string) bool {
	return contains(p.Reasons, reason)
}

// ValidMethod reports whether method is a member of the configured
// method set.
func (p DisposalPolicy) ValidMethod(method string) bool {
	return contains(p.Methods, method)
}

func contains(set []string, v string) bool {
	v = strings.TrimSpace(v)
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Default value sets used when the environment does not override them.
var (
	defaultDisposalReasons = []string{"Expired", "Contaminated", "Depleted", "Quality Control Failure", "Patient Request"}
	defaultDisposalMethods = []string{"Biohazard Autoclave", "Incineration", "Chemical Treatment", "Sharps Container"}
)

// Load reads configuration from the environment.  Missing required
// variables abort startup with a fatal log message.
func Load() Config {
	return Config{
		Env:       must("APP_ENV"),
		Port:      must("APP_PORT"),
		DBUser:    must("DB_USER"),
		DBPass:    os.Getenv("DB_PASS"), // empty allowed
		DBHost:    must("DB_HOST"),
		DBPort:    must("DB_PORT"),
		DBName:    must("DB_NAME"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		Disposal: DisposalPolicy{
			Reasons: csv("DISPOSAL_REASONS", defaultDisposalReasons),
			Methods: csv("DISPOSAL_METHODS", defaultDisposalMethods),
		},
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// csv splits a comma-separated environment variable into trimmed,
// non-empty values, falling back to def when unset.
func csv(key string, def []string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return def
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
