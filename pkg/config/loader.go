package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Load reads the YAML configuration file at path, applies defaults for
// every omitted section, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks structural constraints and the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Roles.OutputItems == "" && c.Roles.OutputFluids == "" {
		return fmt.Errorf("invalid configuration: at least one of roles.output_items and roles.output_fluids must be set")
	}

	var itemsRe, fluidsRe *regexp.Regexp
	var err error
	if c.Roles.OutputItems != "" {
		itemsRe, err = regexp.Compile(c.Roles.OutputItems)
		if err != nil {
			return fmt.Errorf("invalid roles.output_items pattern: %w", err)
		}
	}
	if c.Roles.OutputFluids != "" {
		fluidsRe, err = regexp.Compile(c.Roles.OutputFluids)
		if err != nil {
			return fmt.Errorf("invalid roles.output_fluids pattern: %w", err)
		}
	}

	// Identical patterns would duplicate every station into both lists.
	if c.Roles.OutputItems != "" && c.Roles.OutputItems == c.Roles.OutputFluids {
		return fmt.Errorf("invalid configuration: roles.output_items and roles.output_fluids use the same pattern")
	}

	// Singular identities must be distinct and must not double as outputs.
	singular := map[string]string{
		"roles.intake_items":  c.Roles.IntakeItems,
		"roles.intake_fluids": c.Roles.IntakeFluids,
		"roles.config_return": c.Roles.ConfigReturn,
	}
	seen := make(map[string]string)
	for field, identity := range singular {
		if identity == "" {
			continue
		}
		if prev, ok := seen[identity]; ok {
			return fmt.Errorf("invalid configuration: %s and %s share identity %q", prev, field, identity)
		}
		seen[identity] = field

		if itemsRe != nil && itemsRe.MatchString(identity) {
			return fmt.Errorf("invalid configuration: %s identity %q also matches roles.output_items", field, identity)
		}
		if fluidsRe != nil && fluidsRe.MatchString(identity) {
			return fmt.Errorf("invalid configuration: %s identity %q also matches roles.output_fluids", field, identity)
		}
	}

	if c.Pairing.Enabled && (c.Roles.OutputItems == "" || c.Roles.OutputFluids == "") {
		return fmt.Errorf("invalid configuration: pairing requires both output role patterns")
	}

	return nil
}
