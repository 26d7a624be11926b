// Package config loads the jemdoc TOML configuration and checks it against
// an embedded JSON Schema before use.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schema.json
var schemaJSON []byte

const schemaURL = "https://jemdoc.local/config.schema.json"

// ErrInvalid is wrapped by errors for configurations rejected by the schema.
var ErrInvalid = errors.New("config: invalid configuration")

// Default values used when the configuration omits them.
const (
	DefaultResults           = 10
	MaxResults               = 50
	DefaultRequestsPerSecond = 2.0
	DefaultTimeout           = 30 * time.Second
	DefaultDebounce          = 2 * time.Second
	DefaultUserAgent         = "jemdoc/1.0"
)

// Duration is a time.Duration written as "2s" or "500ms" in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Source is one documentation build whose search files are indexed.
type Source struct {
	Name string `toml:"name" json:"name"`
	// SearchDir is the local "search" directory of a Doxygen HTML build.
	SearchDir string `toml:"search_dir" json:"search_dir,omitempty"`
	// BaseURL is the root of a published HTML build; search files are fetched
	// from <BaseURL>/search/.
	BaseURL string `toml:"base_url" json:"base_url,omitempty"`
	// HTMLDir holds the pages the links point at. Defaults to the parent of SearchDir.
	HTMLDir    string   `toml:"html_dir" json:"html_dir,omitempty"`
	Categories []string `toml:"categories" json:"categories,omitempty"`
	Watch      bool     `toml:"watch" json:"watch"`
}

// Remote reports whether the source is fetched over HTTP.
func (s Source) Remote() bool {
	return s.SearchDir == "" && s.BaseURL != ""
}

type SearchConfig struct {
	DefaultResults int `toml:"default_results"`
	MaxResults     int `toml:"max_results"`
}

type RemoteConfig struct {
	RequestsPerSecond float64  `toml:"requests_per_second"`
	Timeout           Duration `toml:"timeout"`
	UserAgent         string   `toml:"user_agent"`
}

type WatchConfig struct {
	Debounce Duration `toml:"debounce"`
}

// Config is the decoded configuration file.
type Config struct {
	Sources []Source     `toml:"source"`
	Search  SearchConfig `toml:"search"`
	Remote  RemoteConfig `toml:"remote"`
	Watch   WatchConfig  `toml:"watch"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Search.DefaultResults == 0 {
		c.Search.DefaultResults = DefaultResults
	}
	if c.Search.MaxResults == 0 {
		c.Search.MaxResults = MaxResults
	}
	if c.Remote.RequestsPerSecond == 0 {
		c.Remote.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Remote.Timeout.Duration == 0 {
		c.Remote.Timeout.Duration = DefaultTimeout
	}
	if c.Remote.UserAgent == "" {
		c.Remote.UserAgent = DefaultUserAgent
	}
	if c.Watch.Debounce.Duration == 0 {
		c.Watch.Debounce.Duration = DefaultDebounce
	}
}

// Source returns the configured source with the given name.
func (c *Config) Source(name string) (Source, bool) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}

// Load reads the configuration at path. A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates TOML configuration data.
func Parse(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if _, err := toml.Decode(string(data), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if problems, err := validate(raw); err != nil {
		return nil, err
	} else if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	cfg := &Config{}
	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	seen := make(map[string]bool)
	for _, s := range cfg.Sources {
		if seen[s.Name] {
			return nil, fmt.Errorf("%w: duplicate source name %q", ErrInvalid, s.Name)
		}
		seen[s.Name] = true
	}

	cfg.applyDefaults()
	return cfg, nil
}

// validate checks raw against the embedded schema and returns one message
// per violation as "<path>: <message>".
func validate(raw map[string]interface{}) ([]string, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	// Round-trip through JSON so TOML's typed slices and maps become the
	// generic values the validator expects.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config for validation: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config for validation: %w", err)
	}

	if err := schema.Validate(inst); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return flattenValidationError(verr), nil
		}
		return []string{err.Error()}, nil
	}
	return nil, nil
}

func compileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, fmt.Errorf("embedded schema is invalid: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return schema, nil
}

// flattenValidationError collects the leaf causes of a validation error.
func flattenValidationError(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		path := "$"
		if len(verr.InstanceLocation) > 0 {
			path = "$." + strings.Join(verr.InstanceLocation, ".")
		}
		return []string{fmt.Sprintf("%s: %s", path, leafMessage(verr))}
	}

	var out []string
	for _, cause := range verr.Causes {
		out = append(out, flattenValidationError(cause)...)
	}
	return out
}

// leafMessage renders the violation itself without the location preamble
// that Error() adds.
func leafMessage(verr *jsonschema.ValidationError) string {
	if verr.ErrorKind == nil {
		return verr.Error()
	}
	return verr.ErrorKind.LocalizedString(message.NewPrinter(language.English))
}
