package config

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mcfsalla/sqlregexp/internal/regex"
	"gopkg.in/yaml.v3"
)

// EnvBackend overrides the configured backend when set.
const EnvBackend = "SQLREGEXP_BACKEND"

var logLevels = []string{"debug", "info", "warn", "error"}

// Options configures the regexp SQL functions and the CLI around them.
type Options struct {
	// Backend selects the regex engine. POSIX is the default.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty" jsonschema:"description=Regex engine behind the SQL functions: posix or pcre,enum=posix,enum=pcre"`
	// CacheSize bounds the number of call sites holding a compiled pattern.
	// Zero uses the default.
	CacheSize int `json:"cache_size,omitempty" yaml:"cache_size,omitempty" jsonschema:"description=Maximum number of call sites holding a compiled pattern (0 = default)"`
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty" jsonschema:"description=Log level: debug info warn or error"`
	// LogFile sends logs to a rotated file instead of stderr.
	LogFile string `json:"log_file,omitempty" yaml:"log_file,omitempty" jsonschema:"description=Write rotated logs to this file instead of stderr"`
}

// DefaultOptions returns Options with default values applied.
func DefaultOptions() Options {
	return Options{
		Backend:   regex.BackendPOSIX,
		CacheSize: 1024,
		LogLevel:  "warn",
	}
}

// Merge returns o overridden by the non-zero fields of t.
func (o Options) Merge(t Options) Options {
	o.Backend = cmp.Or(strings.ToLower(strings.TrimSpace(t.Backend)), o.Backend)
	o.CacheSize = cmp.Or(t.CacheSize, o.CacheSize)
	o.LogLevel = cmp.Or(strings.ToLower(t.LogLevel), o.LogLevel)
	o.LogFile = cmp.Or(t.LogFile, o.LogFile)
	return o
}

// Validate reports the first invalid field.
func (o Options) Validate() error {
	if _, err := regex.Lookup(o.Backend); err != nil {
		return fmt.Errorf("invalid backend: %w", err)
	}
	if o.CacheSize < 0 {
		return fmt.Errorf("invalid cache_size %d: must not be negative", o.CacheSize)
	}
	if !slices.Contains(logLevels, o.LogLevel) {
		return fmt.Errorf("invalid log_level %q: want one of %v", o.LogLevel, logLevels)
	}
	return nil
}

// Load builds Options from the defaults, the file at path (JSON, or YAML
// for .yaml and .yml files; skipped when path is empty) and the environment,
// in that order.
func Load(path string) (Options, error) {
	opts := DefaultOptions()
	if path != "" {
		fileOpts, err := readFile(path)
		if err != nil {
			return Options{}, err
		}
		opts = opts.Merge(fileOpts)
	}
	opts = opts.Merge(Options{Backend: os.Getenv(EnvBackend)})
	if err := opts.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

func readFile(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("reading config: %w", err)
	}

	var opts Options
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&opts); err != nil {
			return Options{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return Options{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	return opts, nil
}
