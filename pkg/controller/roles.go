package controller

import (
	"regexp"

	"github.com/matflow/matflow/pkg/nodes"
)

// Role is the functional classification assigned to a resource node.
type Role string

const (
	// RoleIntakeItems is the single node the controller drains items from.
	RoleIntakeItems Role = "intake-items"

	// RoleIntakeFluids is the single node the controller drains fluid from.
	RoleIntakeFluids Role = "intake-fluids"

	// RoleConfigReturn is the single node marker units are returned to.
	RoleConfigReturn Role = "config-return"

	// RoleOutputItems marks processing stations that accept items.
	RoleOutputItems Role = "output-items"

	// RoleOutputFluids marks processing stations that accept fluid.
	RoleOutputFluids Role = "output-fluids"
)

// RoleMatcher decides whether an identity tag belongs to a role. Exact
// and pattern matching share this one interface so singular and
// multi-valued roles classify through the same path.
type RoleMatcher interface {
	// Role returns the role this matcher binds.
	Role() Role

	// Match reports whether the identity tag belongs to the role.
	Match(tag string) bool
}

// exactMatcher matches a single identity tag verbatim.
type exactMatcher struct {
	role     Role
	identity string
}

// NewExactMatcher creates a matcher binding one identity tag to role.
func NewExactMatcher(role Role, identity string) RoleMatcher {
	return &exactMatcher{role: role, identity: identity}
}

func (m *exactMatcher) Role() Role { return m.role }

func (m *exactMatcher) Match(tag string) bool {
	return tag == m.identity
}

// patternMatcher matches identity tags against a compiled regexp.
type patternMatcher struct {
	role Role
	re   *regexp.Regexp
}

// NewPatternMatcher creates a matcher binding every tag that matches
// pattern to role. The pattern must be a valid regular expression.
func NewPatternMatcher(role Role, pattern string) (RoleMatcher, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, NewFatal("invalid role pattern", err).WithOp(string(role))
	}
	return &patternMatcher{role: role, re: re}, nil
}

func (m *patternMatcher) Role() Role { return m.role }

func (m *patternMatcher) Match(tag string) bool {
	return m.re.MatchString(tag)
}

// requiredCapabilities returns the capabilities a node must expose to hold
// role. Fluid roles list tanks, item roles list items; output-items
// additionally needs the mode parameter when reconfiguration is enabled.
func requiredCapabilities(role Role, reconfigure bool) []nodes.Capability {
	switch role {
	case RoleIntakeFluids, RoleOutputFluids:
		return []nodes.Capability{nodes.CapabilityListTanks}
	case RoleIntakeItems, RoleConfigReturn:
		return []nodes.Capability{nodes.CapabilityListItems}
	case RoleOutputItems:
		caps := []nodes.Capability{nodes.CapabilityListItems}
		if reconfigure {
			caps = append(caps, nodes.CapabilitySetMode)
		}
		return caps
	}
	return nil
}
