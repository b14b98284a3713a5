// Package config loads the repsync configuration file.
//
// The file is YAML. After decoding and applying defaults, the result is
// validated against the embedded CUE schema in schema.cue.
package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// TokenEnv names the environment variable that supplies the bearer token
// when the file does not.
const TokenEnv = "REPSYNC_TOKEN"

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Dedup holds the notification deduplication windows.
type Dedup struct {
	KeyWindow     Duration `yaml:"key_window"`
	ContentWindow Duration `yaml:"content_window"`
}

// Config is the decoded configuration file.
type Config struct {
	BaseURL     string   `yaml:"base_url"`
	Timeout     Duration `yaml:"timeout"`
	Token       string   `yaml:"token,omitempty"`
	PushURL     string   `yaml:"push_url,omitempty"`
	JournalPath string   `yaml:"journal_path,omitempty"`
	MetricsAddr string   `yaml:"metrics_addr,omitempty"`
	Dedup       Dedup    `yaml:"dedup"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		BaseURL: "http://localhost:8080",
		Timeout: Duration(10 * time.Second),
		Dedup: Dedup{
			KeyWindow:     Duration(5 * time.Second),
			ContentWindow: Duration(time.Second),
		},
	}
}

// Load reads the file at path over the defaults, fills the token from
// REPSYNC_TOKEN if unset, and validates the result. Unknown keys are errors.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Token == "" {
		cfg.Token = os.Getenv(TokenEnv)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// schemaView is the shape checked by schema.cue. Durations are integer
// milliseconds so the schema can bound them numerically.
type schemaView struct {
	BaseURL     string `json:"base_url"`
	TimeoutMS   int64  `json:"timeout_ms"`
	Token       string `json:"token,omitempty"`
	PushURL     string `json:"push_url,omitempty"`
	JournalPath string `json:"journal_path,omitempty"`
	MetricsAddr string `json:"metrics_addr,omitempty"`
	Dedup       struct {
		KeyWindowMS     int64 `json:"key_window_ms"`
		ContentWindowMS int64 `json:"content_window_ms"`
	} `json:"dedup"`
}

// ValidationError lists the schema violations of a configuration.
type ValidationError struct {
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid config: " + e.Details
}

// Validate checks c against the embedded schema.
func (c Config) Validate() error {
	view := schemaView{
		BaseURL:     c.BaseURL,
		TimeoutMS:   c.Timeout.Std().Milliseconds(),
		Token:       c.Token,
		PushURL:     c.PushURL,
		JournalPath: c.JournalPath,
		MetricsAddr: c.MetricsAddr,
	}
	view.Dedup.KeyWindowMS = c.Dedup.KeyWindow.Std().Milliseconds()
	view.Dedup.ContentWindowMS = c.Dedup.ContentWindow.Std().Milliseconds()

	data, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	value := ctx.CompileBytes(data, cue.Filename("config.json"))
	if err := value.Err(); err != nil {
		return fmt.Errorf("compile config: %w", err)
	}

	if err := def.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return &ValidationError{Details: cueerrors.Details(err, nil)}
	}
	return nil
}
