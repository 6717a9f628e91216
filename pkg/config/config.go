// Package config loads YAML or TOML configuration files with environment
// variable expansion and optional validation.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// ErrNoConfig is returned by LoadFirst when none of the candidates exist.
var ErrNoConfig = errors.New("config: no config file found")

// Format names a configuration syntax.
type Format string

const (
	YAML Format = "yaml"
	TOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return YAML, nil
	case ".toml":
		return TOML, nil
	default:
		return "", fmt.Errorf("config: unsupported file type %q", filepath.Ext(filename))
	}
}

// Load reads filename, expands ${VAR} references, decodes it according to
// its extension, and validates the result. Unknown keys are rejected.
func Load[T any](filename string, target *T) error {
	format, err := FormatOf(filename)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	if err := Decode(format, data, target); err != nil {
		return fmt.Errorf("config file %s: %w", filename, err)
	}
	return nil
}

// Decode expands environment references in data, decodes it, and runs the
// target's Validate method when it has one.
func Decode[T any](format Format, data []byte, target *T) error {
	expanded := []byte(os.ExpandEnv(string(data)))

	switch format {
	case YAML:
		dec := yaml.NewDecoder(bytes.NewReader(expanded))
		dec.KnownFields(true)
		if err := dec.Decode(target); err != nil {
			return fmt.Errorf("failed to parse yaml: %w", err)
		}
	case TOML:
		md, err := toml.Decode(string(expanded), target)
		if err != nil {
			return fmt.Errorf("failed to parse toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
		}
	default:
		return fmt.Errorf("config: unsupported format %q", format)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// LoadFirst loads the first candidate that exists and returns its name.
// Empty candidates are skipped.
func LoadFirst[T any](target *T, candidates ...string) (string, error) {
	for _, name := range candidates {
		if name == "" {
			continue
		}
		if _, err := os.Stat(name); errors.Is(err, os.ErrNotExist) {
			continue
		}
		return name, Load(name, target)
	}
	return "", fmt.Errorf("%w (tried %s)", ErrNoConfig, strings.Join(candidates, ", "))
}
