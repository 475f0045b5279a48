// Package provision manages the two-instance distributed test harness on
// Hetzner Cloud: a pair of servers with attached volumes and a firewall
// opening the harness port, all parameterized by branch name.
package provision

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ServerSpec describes one harness server.
type ServerSpec struct {
	Name       string
	ServerType string
	Image      string
	Location   string
	SSHKeys    []string
	Labels     map[string]string
	UserData   string
}

// Instance is a provisioned server.
type Instance struct {
	ID   int64
	Name string
	IP   string
}

// Client is the narrow slice of the cloud API the harness needs.
// It abstracts the underlying provider for testing.
type Client interface {
	CreateServer(ctx context.Context, spec ServerSpec) (Instance, error)
	DeleteServer(ctx context.Context, name string) error
	CreateVolume(ctx context.Context, name string, sizeGB int, serverID int64, labels map[string]string) (int64, error)
	DeleteVolume(ctx context.Context, name string) error
	CreateFirewall(ctx context.Context, name string, port int, labelSelector string) (int64, error)
	DeleteFirewall(ctx context.Context, name string) error
}

// RealClient implements Client using the Hetzner Cloud API.
type RealClient struct {
	client *hcloud.Client
}

// NewRealClient creates a client authenticated with the given API token.
func NewRealClient(token string) *RealClient {
	return &RealClient{client: hcloud.NewClient(hcloud.WithToken(token))}
}

// CreateServer creates one server and waits for it to come up.
func (c *RealClient) CreateServer(ctx context.Context, spec ServerSpec) (Instance, error) {
	serverType, _, err := c.client.ServerType.Get(ctx, spec.ServerType)
	if err != nil {
		return Instance{}, fmt.Errorf("failed to get server type: %w", err)
	}
	if serverType == nil {
		return Instance{}, fmt.Errorf("server type not found: %s", spec.ServerType)
	}

	image, _, err := c.client.Image.GetForArchitecture(ctx, spec.Image, serverType.Architecture)
	if err != nil {
		return Instance{}, fmt.Errorf("failed to get image: %w", err)
	}
	if image == nil {
		return Instance{}, fmt.Errorf("image not found: %s", spec.Image)
	}

	var location *hcloud.Location
	if spec.Location != "" {
		location, _, err = c.client.Location.Get(ctx, spec.Location)
		if err != nil {
			return Instance{}, fmt.Errorf("failed to get location %s: %w", spec.Location, err)
		}
		if location == nil {
			return Instance{}, fmt.Errorf("location not found: %s", spec.Location)
		}
	}

	var sshKeys []*hcloud.SSHKey
	for _, name := range spec.SSHKeys {
		key, _, err := c.client.SSHKey.Get(ctx, name)
		if err != nil {
			return Instance{}, fmt.Errorf("failed to get ssh key %s: %w", name, err)
		}
		if key == nil {
			return Instance{}, fmt.Errorf("ssh key not found: %s", name)
		}
		sshKeys = append(sshKeys, key)
	}

	result, _, err := c.client.Server.Create(ctx, hcloud.ServerCreateOpts{
		Name:       spec.Name,
		ServerType: serverType,
		Image:      image,
		Location:   location,
		SSHKeys:    sshKeys,
		Labels:     spec.Labels,
		UserData:   spec.UserData,
	})
	if err != nil {
		return Instance{}, fmt.Errorf("failed to create server: %w", err)
	}
	if err := c.client.Action.WaitFor(ctx, result.Action); err != nil {
		return Instance{}, fmt.Errorf("failed to wait for server creation: %w", err)
	}

	inst := Instance{ID: result.Server.ID, Name: spec.Name}
	if result.Server.PublicNet.IPv4.IP != nil {
		inst.IP = result.Server.PublicNet.IPv4.IP.String()
	}
	return inst, nil
}

// DeleteServer deletes the named server. Missing servers are not an error.
func (c *RealClient) DeleteServer(ctx context.Context, name string) error {
	server, _, err := c.client.Server.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get server: %w", err)
	}
	if server == nil {
		return nil
	}
	if _, _, err := c.client.Server.DeleteWithResult(ctx, server); err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return nil
}

// CreateVolume creates a volume attached to the given server.
func (c *RealClient) CreateVolume(ctx context.Context, name string, sizeGB int, serverID int64, labels map[string]string) (int64, error) {
	result, _, err := c.client.Volume.Create(ctx, hcloud.VolumeCreateOpts{
		Name:      name,
		Size:      sizeGB,
		Server:    &hcloud.Server{ID: serverID},
		Labels:    labels,
		Format:    hcloud.Ptr("ext4"),
		Automount: hcloud.Ptr(true),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create volume: %w", err)
	}
	if err := c.client.Action.WaitFor(ctx, result.Action); err != nil {
		return 0, fmt.Errorf("failed to wait for volume creation: %w", err)
	}
	return result.Volume.ID, nil
}

// DeleteVolume deletes the named volume. Missing volumes are not an error.
func (c *RealClient) DeleteVolume(ctx context.Context, name string) error {
	volume, _, err := c.client.Volume.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get volume: %w", err)
	}
	if volume == nil {
		return nil
	}
	if _, err := c.client.Volume.Delete(ctx, volume); err != nil {
		return fmt.Errorf("failed to delete volume: %w", err)
	}
	return nil
}

// CreateFirewall creates a firewall opening SSH and the harness port, applied
// to all servers matching the label selector.
func (c *RealClient) CreateFirewall(ctx context.Context, name string, port int, labelSelector string) (int64, error) {
	anyIPv4 := net.IPNet{IP: net.IPv4zero, Mask: net.CIDRMask(0, 32)}
	anyIPv6 := net.IPNet{IP: net.IPv6zero, Mask: net.CIDRMask(0, 128)}

	rule := func(p string) hcloud.FirewallRule {
		return hcloud.FirewallRule{
			Direction: hcloud.FirewallRuleDirectionIn,
			Protocol:  hcloud.FirewallRuleProtocolTCP,
			Port:      hcloud.Ptr(p),
			SourceIPs: []net.IPNet{anyIPv4, anyIPv6},
		}
	}

	result, _, err := c.client.Firewall.Create(ctx, hcloud.FirewallCreateOpts{
		Name:  name,
		Rules: []hcloud.FirewallRule{rule("22"), rule(strconv.Itoa(port))},
		ApplyTo: []hcloud.FirewallResource{{
			Type:          hcloud.FirewallResourceTypeLabelSelector,
			LabelSelector: &hcloud.FirewallResourceLabelSelector{Selector: labelSelector},
		}},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create firewall: %w", err)
	}
	if err := c.client.Action.WaitFor(ctx, result.Actions...); err != nil {
		return 0, fmt.Errorf("failed to wait for firewall creation: %w", err)
	}
	return result.Firewall.ID, nil
}

// DeleteFirewall deletes the named firewall. Missing firewalls are not an error.
func (c *RealClient) DeleteFirewall(ctx context.Context, name string) error {
	fw, _, err := c.client.Firewall.Get(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to get firewall: %w", err)
	}
	if fw == nil {
		return nil
	}
	if _, err := c.client.Firewall.Delete(ctx, fw); err != nil {
		return fmt.Errorf("failed to delete firewall: %w", err)
	}
	return nil
}

// isInvalidParameter reports whether an error indicates invalid parameters.
// These errors are fatal and should not be retried.
func isInvalidParameter(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "invalid") ||
		strings.Contains(s, "not found") ||
		strings.Contains(s, "does not exist")
}
