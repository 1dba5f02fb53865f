package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dyluth/kasm/internal/matcher"
	"gopkg.in/yaml.v3"
)

// FileName is the master configuration file looked up from the working directory upward.
const FileName = "kasm.yml"

// ErrNotFound is returned by Find when no configuration file exists.
var ErrNotFound = errors.New("not found")

// DefaultGroupsRegex captures the two-digit exercise group of labels like "(12) Team A (07)".
const DefaultGroupsRegex = `\(([0-9]{2})\).+\([0-9]{2}\)`

// Structure is the grouping shape of submissions: per team or per individual.
type Structure string

const (
	// StructureGroups treats each team as one grading unit
	StructureGroups Structure = "groups"

	// StructureIndividuals treats each submitter as one grading unit
	StructureIndividuals Structure = "individuals"
)

// ParseStructure converts a flag or YAML value into a Structure.
func ParseStructure(s string) (Structure, error) {
	switch Structure(s) {
	case StructureGroups, StructureIndividuals:
		return Structure(s), nil
	}
	return "", fmt.Errorf("invalid structure: %s (must be 'groups' or 'individuals')", s)
}

// HandoffConfig points at the Redis instance shared with the grade sync worker.
type HandoffConfig struct {
	RedisURL  string `yaml:"redis_url"`
	Namespace string `yaml:"namespace,omitempty"` // default: "default"
}

// Config represents the kasm.yml master configuration
type Config struct {
	GroupsRegex     string         `yaml:"groups_regex"`
	Group           string         `yaml:"group"` // Exercise group handled by this tutor, compared to the classified id
	RecursiveUnzip  bool           `yaml:"recursive_unzip,omitempty"`
	RepackFilter    string         `yaml:"repack_filter,omitempty"` // Empty keeps every file
	UnpackStructure Structure      `yaml:"unpack_structure"`
	RepackStructure Structure      `yaml:"repack_structure"`
	Handoff         *HandoffConfig `yaml:"handoff,omitempty"`

	classifier *matcher.Classifier
	allowList  *matcher.AllowList
}

// Default returns a configuration with every optional field at its default.
func Default() *Config {
	return &Config{
		GroupsRegex:     DefaultGroupsRegex,
		UnpackStructure: StructureGroups,
		RepackStructure: StructureGroups,
	}
}

// Validate applies defaults, compiles both expressions and checks the
// remaining fields. Every configuration error surfaces here, before any
// stage touches the filesystem.
func (c *Config) Validate() error {
	if c.GroupsRegex == "" {
		c.GroupsRegex = DefaultGroupsRegex
	}
	if c.UnpackStructure == "" {
		c.UnpackStructure = StructureGroups
	}
	if c.RepackStructure == "" {
		c.RepackStructure = StructureGroups
	}

	// Required: group
	if c.Group == "" {
		return fmt.Errorf("group is required")
	}

	classifier, err := matcher.New(c.GroupsRegex)
	if err != nil {
		return fmt.Errorf("groups_regex: %w", err)
	}
	allowList, err := matcher.NewAllowList(c.RepackFilter)
	if err != nil {
		return fmt.Errorf("repack_filter: %w", err)
	}

	if _, err := ParseStructure(string(c.UnpackStructure)); err != nil {
		return fmt.Errorf("unpack_structure: %w", err)
	}
	if _, err := ParseStructure(string(c.RepackStructure)); err != nil {
		return fmt.Errorf("repack_structure: %w", err)
	}

	if c.Handoff != nil {
		if c.Handoff.RedisURL == "" {
			return fmt.Errorf("handoff.redis_url is required when handoff is configured")
		}
		if c.Handoff.Namespace == "" {
			c.Handoff.Namespace = "default"
		}
	}

	c.classifier = classifier
	c.allowList = allowList
	return nil
}

// Classifier returns the compiled groups expression. Validate must have succeeded.
func (c *Config) Classifier() *matcher.Classifier {
	return c.classifier
}

// AllowList returns the compiled repack filter. Validate must have succeeded.
func (c *Config) AllowList() *matcher.AllowList {
	return c.allowList
}

// Unit returns the configured group as a unit id.
func (c *Config) Unit() matcher.UnitID {
	return matcher.Literal(c.Group)
}

// Load reads and validates kasm.yml from the specified path
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Find returns the path of the nearest kasm.yml in start or one of its parents.
func Find(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", start, err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to check %s: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%s %w in %s or any parent directory", FileName, ErrNotFound, start)
		}
		dir = parent
	}
}

// Save writes the configuration to path.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
