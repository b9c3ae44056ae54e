package controller

import (
	"context"
	"sort"
	"sync"

	"github.com/matflow/matflow/pkg/nodes"
	"github.com/matflow/matflow/pkg/telemetry"
)

// Bindings is the result of discovery: the three singular role bindings
// (nil when the role is unconfigured or unmatched) and the two
// multi-valued output lists, ordered by node address for a stable pool
// layout across runs.
type Bindings struct {
	IntakeItems  nodes.Client
	IntakeFluids nodes.Client
	ConfigReturn nodes.Client
	OutputItems  []nodes.Client
	OutputFluids []nodes.Client
}

// ClassifierConfig carries the role matchers and discovery options.
type ClassifierConfig struct {
	// IntakeItems, IntakeFluids, ConfigReturn are the singular role
	// matchers; nil disables the role.
	IntakeItems  RoleMatcher
	IntakeFluids RoleMatcher
	ConfigReturn RoleMatcher

	// OutputItems, OutputFluids are the multi-valued role matchers.
	OutputItems  RoleMatcher
	OutputFluids RoleMatcher

	// Reconfigure enables the set-mode-parameter capability requirement
	// on output-items nodes.
	Reconfigure bool

	// ReservedAddresses never warn when they classify as nothing; the
	// environment always exposes a few such endpoints.
	ReservedAddresses []string
}

// Classifier discovers resource nodes and assigns each to a role.
type Classifier struct {
	dir     nodes.Directory
	cfg     ClassifierConfig
	retrier *Retrier
	log     *telemetry.Logger

	reserved map[string]bool

	// mu guards the binding fields while the discovery batch runs.
	mu       sync.Mutex
	bindings Bindings
}

// NewClassifier creates a classifier over the given directory.
func NewClassifier(dir nodes.Directory, cfg ClassifierConfig, retrier *Retrier, log *telemetry.Logger) *Classifier {
	reserved := make(map[string]bool, len(cfg.ReservedAddresses))
	for _, addr := range cfg.ReservedAddresses {
		reserved[addr] = true
	}
	return &Classifier{
		dir:      dir,
		cfg:      cfg,
		retrier:  retrier,
		log:      log.NewComponentLogger("classifier"),
		reserved: reserved,
	}
}

// Discover enumerates every node in the environment, queries identity tags
// in one concurrent batch, and binds roles. Singular roles bind first
// match wins; later duplicates warn and are ignored. A classified node
// missing a capability its role requires is fatal.
func (c *Classifier) Discover(ctx context.Context) (*Bindings, error) {
	addresses, err := Call(ctx, c.retrier, "directory.addresses", func() ([]string, error) {
		return c.dir.Addresses(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.log.Infof("discovered %d nodes", len(addresses))

	c.bindings = Bindings{}

	group := NewTaskGroup()
	for _, address := range addresses {
		group.Enqueue(func(ctx context.Context) error {
			return c.classify(ctx, c.dir.Node(address))
		})
	}
	if err := group.RunAll(ctx); err != nil {
		return nil, err
	}

	// Stable output order regardless of batch completion order.
	sortByAddress(c.bindings.OutputItems)
	sortByAddress(c.bindings.OutputFluids)

	// A configured singular role that matched nothing is fatal.
	for _, req := range []struct {
		matcher RoleMatcher
		bound   nodes.Client
	}{
		{c.cfg.IntakeItems, c.bindings.IntakeItems},
		{c.cfg.IntakeFluids, c.bindings.IntakeFluids},
		{c.cfg.ConfigReturn, c.bindings.ConfigReturn},
	} {
		if req.matcher != nil && req.bound == nil {
			return nil, NewFatalf("no node matched required singular role %s", req.matcher.Role())
		}
	}

	b := c.bindings
	c.logSummary(&b)
	return &b, nil
}

// classify queries one node's tag and records its role bindings.
func (c *Classifier) classify(ctx context.Context, node nodes.Client) error {
	tag, err := Call(ctx, c.retrier, "node.identity-tag", func() (string, error) {
		return node.IdentityTag(ctx)
	})
	if err != nil {
		return err
	}

	if tag == "" {
		if !c.reserved[node.Address()] {
			c.log.WithNode(node.Address()).Warn("node has no identity tag, leaving unclassified")
		}
		return nil
	}

	matched := false

	// Singular roles, exact match, first bind wins.
	for _, bind := range []struct {
		matcher RoleMatcher
		slot    *nodes.Client
	}{
		{c.cfg.ConfigReturn, &c.bindings.ConfigReturn},
		{c.cfg.IntakeFluids, &c.bindings.IntakeFluids},
		{c.cfg.IntakeItems, &c.bindings.IntakeItems},
	} {
		if bind.matcher == nil || !bind.matcher.Match(tag) {
			continue
		}
		matched = true
		if err := c.checkCapabilities(ctx, node, bind.matcher.Role()); err != nil {
			return err
		}
		c.mu.Lock()
		if *bind.slot != nil {
			c.log.WithNode(node.Address()).Warnf("role %s already bound to %s, ignoring duplicate",
				bind.matcher.Role(), (*bind.slot).Address())
		} else {
			*bind.slot = node
		}
		c.mu.Unlock()
	}

	// Output roles, pattern match, multi-valued. A node may match both
	// patterns and is kept in both lists.
	for _, bind := range []struct {
		matcher RoleMatcher
		list    *[]nodes.Client
	}{
		{c.cfg.OutputItems, &c.bindings.OutputItems},
		{c.cfg.OutputFluids, &c.bindings.OutputFluids},
	} {
		if bind.matcher == nil || !bind.matcher.Match(tag) {
			continue
		}
		matched = true
		if err := c.checkCapabilities(ctx, node, bind.matcher.Role()); err != nil {
			return err
		}
		c.mu.Lock()
		*bind.list = append(*bind.list, node)
		c.mu.Unlock()
	}

	if !matched && !c.reserved[node.Address()] {
		c.log.WithNode(node.Address()).Warnf("tag %q matches no configured role", tag)
	}
	return nil
}

// checkCapabilities verifies the node exposes what its role requires.
func (c *Classifier) checkCapabilities(ctx context.Context, node nodes.Client, role Role) error {
	required := requiredCapabilities(role, c.cfg.Reconfigure)
	if len(required) == 0 {
		return nil
	}

	caps, err := Call(ctx, c.retrier, "node.capabilities", func() ([]nodes.Capability, error) {
		return node.Capabilities(ctx)
	})
	if err != nil {
		return err
	}

	for _, want := range required {
		if !nodes.HasCapability(caps, want) {
			return NewFatalf("node lacks capability %q required by role %s", want, role).
				WithNode(node.Address())
		}
	}
	return nil
}

func (c *Classifier) logSummary(b *Bindings) {
	describe := func(n nodes.Client) string {
		if n == nil {
			return "<none>"
		}
		return n.Address()
	}
	c.log.Infof("classification: intake-items=%s intake-fluids=%s config-return=%s output-items=%d output-fluids=%d",
		describe(b.IntakeItems), describe(b.IntakeFluids), describe(b.ConfigReturn),
		len(b.OutputItems), len(b.OutputFluids))
}

func sortByAddress(list []nodes.Client) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Address() < list[j].Address()
	})
}
