// Package config loads the project configuration from boolsp.yaml or
// boolsp.hcl.
package config

import (
	"bytes"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/walteh/boolsp/pkg/compiler"
	"github.com/walteh/boolsp/pkg/diagnostic"
	"github.com/walteh/boolsp/pkg/references"
)

// FileNames are the config files looked up in a project root, in order.
var FileNames = []string{"boolsp.yaml", "boolsp.yml", "boolsp.hcl"}

type Config struct {
	Sources    []string               `json:"sources,omitempty" yaml:"sources,omitempty" hcl:"sources,optional"`
	Exclude    []string               `json:"exclude,omitempty" yaml:"exclude,omitempty" hcl:"exclude,optional"`
	References []references.Reference `json:"references,omitempty" yaml:"references,omitempty" hcl:"reference,block"`
	// Suppress lists diagnostic codes that are never shown. nil means the
	// default set.
	Suppress     []string `json:"suppress,omitempty" yaml:"suppress,omitempty" hcl:"suppress,optional"`
	IdleInterval string   `json:"idle_interval,omitempty" yaml:"idle_interval,omitempty" hcl:"idle_interval,optional"`
	Bodies       string   `json:"bodies,omitempty" yaml:"bodies,omitempty" hcl:"bodies,optional"`
	EntryPoint   string   `json:"entry_point,omitempty" yaml:"entry_point,omitempty" hcl:"entry_point,optional"`
	Parallelism  int      `json:"parallelism,omitempty" yaml:"parallelism,omitempty" hcl:"parallelism,optional"`
	LogLevel     string   `json:"log_level,omitempty" yaml:"log_level,omitempty" hcl:"log_level,optional"`
}

func Default() *Config {
	return &Config{
		Sources:      []string{"**/*.boo"},
		IdleInterval: "100ms",
		Bodies:       compiler.BodiesFull.String(),
		EntryPoint:   compiler.DefaultEntryPoint,
		LogLevel:     zerolog.InfoLevel.String(),
	}
}

// LoadConfig reads a YAML or HCL config and fills unset fields with
// defaults.
func LoadConfig(fsys afero.Fs, file string) (*Config, error) {
	data, err := afero.ReadFile(fsys, file)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if strings.HasSuffix(file, ".yaml") || strings.HasSuffix(file, ".yml") {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Errorf("parsing YAML: %w", err)
		}
	} else {
		parser := hclparse.NewParser()
		hclFile, diags := parser.ParseHCL(data, file)
		if diags.HasErrors() {
			return nil, errors.Errorf("parsing HCL: %s", diags.Error())
		}

		ctx := &hcl.EvalContext{
			Variables: map[string]cty.Value{},
		}

		diags = gohcl.DecodeBody(hclFile.Body, ctx, &cfg)
		if diags.HasErrors() {
			return nil, errors.Errorf("decoding HCL: %s", diags.Error())
		}
	}

	cfg.fill()
	return &cfg, nil
}

// Find loads the first config file present in root. Without one it returns
// Default.
func Find(fsys afero.Fs, root string) (*Config, string, error) {
	for _, name := range FileNames {
		p := path.Join(root, name)
		if _, err := fsys.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, "", errors.Errorf("checking %s: %w", p, err)
		}
		cfg, err := LoadConfig(fsys, p)
		if err != nil {
			return nil, p, err
		}
		return cfg, p, nil
	}
	return Default(), "", nil
}

func (c *Config) fill() {
	def := Default()
	if len(c.Sources) == 0 {
		c.Sources = def.Sources
	}
	if c.IdleInterval == "" {
		c.IdleInterval = def.IdleInterval
	}
	if c.Bodies == "" {
		c.Bodies = def.Bodies
	}
	if c.EntryPoint == "" {
		c.EntryPoint = def.EntryPoint
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate reports every problem with the config at once.
func (c *Config) Validate() error {
	var errs error

	for _, pat := range append(append([]string{}, c.Sources...), c.Exclude...) {
		if !doublestar.ValidatePattern(pat) {
			errs = multierr.Append(errs, errors.Errorf("invalid glob %q", pat))
		}
	}

	seen := make(map[string]bool)
	for i, r := range c.References {
		switch {
		case r.Name == "":
			errs = multierr.Append(errs, errors.Errorf("references[%d]: missing name", i))
		case seen[r.Name]:
			errs = multierr.Append(errs, errors.Errorf("references[%d]: duplicate reference %q", i, r.Name))
		}
		seen[r.Name] = true
	}

	for _, code := range c.Suppress {
		if !strings.HasPrefix(code, "BCE") && !strings.HasPrefix(code, "BCW") {
			errs = multierr.Append(errs, errors.Errorf("suppress: unknown diagnostic code %q", code))
		}
	}

	if d, err := time.ParseDuration(c.IdleInterval); err != nil {
		errs = multierr.Append(errs, errors.Errorf("idle_interval: %w", err))
	} else if d <= 0 {
		errs = multierr.Append(errs, errors.Errorf("idle_interval: must be positive, got %s", d))
	}

	if _, err := compiler.ParseBodies(c.Bodies); err != nil {
		errs = multierr.Append(errs, errors.Errorf("bodies: %w", err))
	}

	if c.Parallelism < 0 {
		errs = multierr.Append(errs, errors.Errorf("parallelism: must not be negative, got %d", c.Parallelism))
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, errors.Errorf("log_level: %w", err))
	}

	return errs
}

// Idle returns the parsed idle interval, or the default when it is invalid.
func (c *Config) Idle() time.Duration {
	d, err := time.ParseDuration(c.IdleInterval)
	if err != nil || d <= 0 {
		return 100 * time.Millisecond
	}
	return d
}

// CompileOptions converts the config into compiler options.
func (c *Config) CompileOptions() compiler.Options {
	bodies, _ := compiler.ParseBodies(c.Bodies)
	return compiler.Options{
		Bodies:      bodies,
		EntryPoint:  c.EntryPoint,
		Parallelism: c.Parallelism,
	}
}

// Policy returns the suppression policy of the config.
func (c *Config) Policy() *diagnostic.Policy {
	if c.Suppress == nil {
		return diagnostic.DefaultPolicy()
	}
	return diagnostic.NewPolicy(c.Suppress...)
}

// Level returns the configured log level, info when unparsable.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
