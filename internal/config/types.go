// Package config loads leapconn settings and named connection profiles.
//
// Settings come from defaults, a YAML file (leapconn.yaml), LEAPCONN_
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"fmt"
	"sort"
	"strings"
)

// Config holds all leapconn settings.
type Config struct {
	// Default names the profile used when none is given.
	Default string `koanf:"default"`

	// Output is the render format for the CLI.
	Output string `koanf:"output"`

	Verbose bool `koanf:"verbose"`

	// Connections maps profile names to connection profiles.
	Connections map[string]Profile `koanf:"connections"`

	Server ServerConfig `koanf:"server"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr string `koanf:"addr"`

	// Watch reloads profiles when the config file changes.
	Watch bool `koanf:"watch"`
}

// Profile is one connection: the backend token under "type" plus the
// backend's constructor arguments.
type Profile map[string]any

// ProfileNames returns the configured profile names in sorted order.
func (c *Config) ProfileNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile resolves a profile by name and returns its backend token and
// constructor arguments. An empty name selects the default profile, or the
// only profile when exactly one is configured. String values have ${VAR}
// references expanded.
func (c *Config) Profile(name string) (string, map[string]any, error) {
	if name == "" {
		name = c.Default
	}
	if name == "" {
		if len(c.Connections) != 1 {
			return "", nil, fmt.Errorf("no connection selected: set 'default' or pass --connection (available: %s)",
				strings.Join(c.ProfileNames(), ", "))
		}
		name = c.ProfileNames()[0]
	}

	p, ok := c.Connections[name]
	if !ok {
		return "", nil, fmt.Errorf("unknown connection %q (available: %s)", name, strings.Join(c.ProfileNames(), ", "))
	}

	token, _ := p["type"].(string)
	if token == "" {
		return "", nil, fmt.Errorf("connection %q has no type", name)
	}

	args := make(map[string]any, len(p))
	for k, v := range p {
		if k == "type" {
			continue
		}
		args[k] = expandValue(v)
	}
	return strings.ToLower(token), args, nil
}

// Validate checks settings that do not depend on a backend.
func (c *Config) Validate() error {
	if !ValidOutput(c.Output) {
		return fmt.Errorf("invalid output format %q (valid: %s)", c.Output, strings.Join(OutputFormats, ", "))
	}
	for _, name := range c.ProfileNames() {
		if token, _ := c.Connections[name]["type"].(string); token == "" {
			return fmt.Errorf("connection %q has no type", name)
		}
	}
	if c.Default != "" {
		if _, ok := c.Connections[c.Default]; !ok && len(c.Connections) > 0 {
			return fmt.Errorf("default connection %q is not defined", c.Default)
		}
	}
	return nil
}
