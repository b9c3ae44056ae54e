package nodes

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
)

// RESTConfig configures the REST gateway directory.
type RESTConfig struct {
	// BaseURL is the gateway base URL (e.g. "http://127.0.0.1:7420").
	BaseURL string

	// Timeout bounds a single HTTP round trip. The controller's retry
	// executor handles transient rejections above this layer.
	Timeout time.Duration

	// AuthToken is an optional bearer token for the gateway.
	AuthToken string
}

// RESTDirectory talks to a node gateway exposing the /v1/nodes surface.
// It implements Directory.
type RESTDirectory struct {
	http *resty.Client
}

// NewRESTDirectory creates a directory backed by the gateway at cfg.BaseURL.
func NewRESTDirectory(cfg RESTConfig) (*RESTDirectory, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.AuthToken != "" {
		client.SetAuthToken(cfg.AuthToken)
	}

	return &RESTDirectory{http: client}, nil
}

// nodeListResponse is the gateway's node enumeration payload.
type nodeListResponse struct {
	Addresses []string `json:"addresses"`
}

// nodeInfoResponse is the gateway's per-node metadata payload.
type nodeInfoResponse struct {
	Address      string       `json:"address"`
	IdentityTag  string       `json:"identity_tag"`
	Coordinate   Coordinate   `json:"coordinate"`
	Capabilities []Capability `json:"capabilities"`
}

// Addresses lists all node addresses known to the gateway.
func (d *RESTDirectory) Addresses(ctx context.Context) ([]string, error) {
	var out nodeListResponse
	resp, err := d.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/v1/nodes")
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list nodes: gateway returned %s", resp.Status())
	}
	return out.Addresses, nil
}

// Node returns a client for the node at address.
func (d *RESTDirectory) Node(address string) Client {
	return &restNode{http: d.http, address: address}
}

// restNode implements Client against a single gateway node resource.
type restNode struct {
	http    *resty.Client
	address string
}

func (n *restNode) path(suffix string) string {
	p := "/v1/nodes/" + url.PathEscape(n.address)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (n *restNode) info(ctx context.Context) (*nodeInfoResponse, error) {
	var out nodeInfoResponse
	resp, err := n.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(n.path(""))
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", n.address, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("node %s: gateway returned %s", n.address, resp.Status())
	}
	return &out, nil
}

// Address returns the node's address.
func (n *restNode) Address() string {
	return n.address
}

// IdentityTag returns the node's identity tag, empty when untagged.
func (n *restNode) IdentityTag(ctx context.Context) (string, error) {
	info, err := n.info(ctx)
	if err != nil {
		return "", err
	}
	return info.IdentityTag, nil
}

// Coordinate returns the node's position.
func (n *restNode) Coordinate(ctx context.Context) (Coordinate, error) {
	info, err := n.info(ctx)
	if err != nil {
		return Coordinate{}, err
	}
	return info.Coordinate, nil
}

// Capabilities returns the node's advertised capabilities.
func (n *restNode) Capabilities(ctx context.Context) ([]Capability, error) {
	info, err := n.info(ctx)
	if err != nil {
		return nil, err
	}
	return info.Capabilities, nil
}

// ListItems returns the node's occupied item slots.
func (n *restNode) ListItems(ctx context.Context) ([]ItemStack, error) {
	var out struct {
		Items []ItemStack `json:"items"`
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(n.path("items"))
	if err != nil {
		return nil, fmt.Errorf("node %s: list items: %w", n.address, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("node %s: list items: gateway returned %s", n.address, resp.Status())
	}
	return out.Items, nil
}

// ListTanks returns the node's occupied fluid tanks.
func (n *restNode) ListTanks(ctx context.Context) ([]TankLevel, error) {
	var out struct {
		Tanks []TankLevel `json:"tanks"`
	}
	resp, err := n.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(n.path("tanks"))
	if err != nil {
		return nil, fmt.Errorf("node %s: list tanks: %w", n.address, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("node %s: list tanks: gateway returned %s", n.address, resp.Status())
	}
	return out.Tanks, nil
}

// PushItems moves the contents of slot to the node at dest.
func (n *restNode) PushItems(ctx context.Context, dest string, slot int) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"dest": dest, "slot": slot}).
		Post(n.path("push-items"))
	if err != nil {
		return fmt.Errorf("node %s: push items: %w", n.address, err)
	}
	if resp.IsError() {
		return fmt.Errorf("node %s: push items slot %d -> %s: gateway returned %s",
			n.address, slot, dest, resp.Status())
	}
	return nil
}

// PushFluid moves the contents of tank to the node at dest.
func (n *restNode) PushFluid(ctx context.Context, dest string, tank int) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"dest": dest, "tank": tank}).
		Post(n.path("push-fluid"))
	if err != nil {
		return fmt.Errorf("node %s: push fluid: %w", n.address, err)
	}
	if resp.IsError() {
		return fmt.Errorf("node %s: push fluid tank %d -> %s: gateway returned %s",
			n.address, tank, dest, resp.Status())
	}
	return nil
}

// SetModeParameter applies a processing mode parameter to the node.
func (n *restNode) SetModeParameter(ctx context.Context, value int) error {
	resp, err := n.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"value": value}).
		Post(n.path("mode"))
	if err != nil {
		return fmt.Errorf("node %s: set mode: %w", n.address, err)
	}
	if resp.IsError() {
		return fmt.Errorf("node %s: set mode %d: gateway returned %s",
			n.address, value, resp.Status())
	}
	return nil
}
