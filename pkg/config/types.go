// Package config defines the matflow configuration file format and its
// loader. Configuration is a single YAML document with one section per
// concern; every section has working defaults so a minimal file only needs
// the role identities.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/matflow/matflow/pkg/telemetry"
)

// Duration decodes YAML duration strings like "5s" or "250ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the root configuration document.
type Config struct {
	// Gateway configures the REST node gateway the controller talks to.
	Gateway GatewayConfig `yaml:"gateway"`

	// Roles maps identity tags to controller roles.
	Roles RolesConfig `yaml:"roles"`

	// Pairing configures coordinate-offset output pairing.
	Pairing PairingConfig `yaml:"pairing"`

	// Control configures the routing policy and retry behavior.
	Control ControlConfig `yaml:"control"`

	// Journal configures the transfer audit journal.
	Journal JournalConfig `yaml:"journal"`

	// Logging configures structured logging.
	Logging telemetry.LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics telemetry.MetricsConfig `yaml:"metrics"`
}

// GatewayConfig locates the REST node gateway.
type GatewayConfig struct {
	// BaseURL is the gateway's base address.
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// Timeout bounds a single HTTP request to the gateway.
	Timeout Duration `yaml:"timeout" validate:"min=0"`

	// AuthToken, when set, is sent as a bearer token.
	AuthToken string `yaml:"auth_token"`
}

// RolesConfig maps identity tags to roles. The three singular roles match
// an exact tag; the output roles match a regular expression. Empty
// disables the role.
type RolesConfig struct {
	// IntakeItems is the identity tag of the node items are drained from.
	IntakeItems string `yaml:"intake_items"`

	// IntakeFluids is the identity tag of the node fluid is drained from.
	IntakeFluids string `yaml:"intake_fluids"`

	// ConfigReturn is the identity tag of the node marker units return to.
	ConfigReturn string `yaml:"config_return"`

	// OutputItems is the pattern matching item-accepting station tags.
	OutputItems string `yaml:"output_items"`

	// OutputFluids is the pattern matching fluid-accepting station tags.
	OutputFluids string `yaml:"output_fluids"`

	// ReservedAddresses never warn when they classify as nothing.
	ReservedAddresses []string `yaml:"reserved_addresses"`
}

// PairingConfig configures coordinate-offset pairing of output nodes.
type PairingConfig struct {
	// Enabled pairs each item station with the fluid station at Offset.
	Enabled bool `yaml:"enabled"`

	// Offset is the coordinate delta from an item station to its fluid
	// partner.
	Offset OffsetConfig `yaml:"offset"`
}

// OffsetConfig is a 3D coordinate delta.
type OffsetConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

// ControlConfig carries the routing and retry policy.
type ControlConfig struct {
	// RoundRobin distributes work cyclically over the output pool instead
	// of always filling the lowest-index output first.
	RoundRobin bool `yaml:"round_robin"`

	// Reconfigure enables marker-driven mode reconfiguration of output
	// stations.
	Reconfigure bool `yaml:"reconfigure"`

	// MarkerItem is the item identity of configuration marker units.
	// Required when Reconfigure is on; also the residual identity an
	// available output may still contain.
	MarkerItem string `yaml:"marker_item" validate:"required_if=Reconfigure true"`

	// MaxAttempts caps retries per remote call. Zero selects the default.
	MaxAttempts int `yaml:"max_attempts" validate:"min=0"`

	// RetryInterval is the pause between retry attempts.
	RetryInterval Duration `yaml:"retry_interval" validate:"min=0"`

	// PollInterval throttles control cycles. Zero busy-polls.
	PollInterval Duration `yaml:"poll_interval" validate:"min=0"`
}

// JournalConfig configures the SQLite transfer journal.
type JournalConfig struct {
	// Enabled turns journaling on.
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database file.
	Path string `yaml:"path" validate:"required_if=Enabled true"`
}

// Default returns a configuration with every default applied. The gateway
// URL and role identities still have to come from the file or flags.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL: "http://localhost:8875",
			Timeout: Duration(10 * time.Second),
		},
		Control: ControlConfig{
			RoundRobin: true,
		},
		Journal: JournalConfig{
			Path: "matflow.db",
		},
		Logging: telemetry.DefaultLoggingConfig(),
		Metrics: telemetry.DefaultMetricsConfig(),
	}
}
