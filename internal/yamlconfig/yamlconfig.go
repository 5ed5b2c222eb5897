// Package yamlconfig decodes YAML configuration files into typed structs
// using a generic pass through a weakly-typed map, the same two-step
// gopkg.in/yaml.v2 + github.com/mitchellh/mapstructure decode every
// settings type in this module uses.
package yamlconfig

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v2"
)

// ParseFile reads path, decodes it as YAML into a generic map, and then
// decodes that map into a *T via mapstructure. T's fields should carry
// `mapstructure` tags.
func ParseFile[T any](path string) (*T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read YAML file %q: %w", path, err)
	}
	return ParseBuffer[T](data, path)
}

// ParseBuffer decodes data the same way ParseFile does, for callers that
// already have the file contents in memory.
func ParseBuffer[T any](data []byte, path string) (*T, error) {
	m := make(map[interface{}]interface{})
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("could not parse YAML %q: %w", path, err)
	}

	p := new(T)
	if err := mapstructure.Decode(m, p); err != nil {
		return nil, fmt.Errorf("could not decode %q: %w", path, err)
	}

	return p, nil
}
