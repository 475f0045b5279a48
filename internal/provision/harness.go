package provision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/deepankarm/docver/internal/config"
	"github.com/deepankarm/docver/internal/logfields"
	"github.com/deepankarm/docver/internal/retry"
)

// instanceCount is the fixed size of the harness: one head node and one worker.
const instanceCount = 2

const labelKey = "docver-harness"

// Result describes what a Provision call created.
type Result struct {
	Branch     string
	Instances  []Instance
	VolumeIDs  []int64
	FirewallID int64
}

// Harness provisions and tears down the branch-scoped test environment.
type Harness struct {
	client Client
	cfg    *config.HarnessConfig
	policy retry.Policy
}

// New creates a harness using the given client.
func New(client Client, cfg *config.HarnessConfig) *Harness {
	return &Harness{client: client, cfg: cfg, policy: retry.DefaultPolicy()}
}

// NewFromConfig creates a harness backed by the real cloud API.
func NewFromConfig(cfg *config.HarnessConfig) (*Harness, error) {
	if cfg == nil {
		return nil, errors.New("harness is not configured")
	}
	if cfg.Token == "" {
		return nil, errors.New("harness.token is required")
	}
	return New(NewRealClient(cfg.Token), cfg), nil
}

// Provision creates the firewall, both servers, and one attached volume per
// server. Partial failures leave created resources behind; Teardown removes
// them by name.
func (h *Harness) Provision(ctx context.Context, branch string) (*Result, error) {
	slug := sanitizeBranch(branch)
	if slug == "" {
		return nil, fmt.Errorf("branch name %q produces an empty resource name", branch)
	}

	userData, err := h.loadSetupScript()
	if err != nil {
		return nil, err
	}

	result := &Result{Branch: branch}
	selector := labelKey + "=" + slug

	slog.Info("Provisioning test harness", logfields.Branch(branch), slog.String("selector", selector))

	err = retry.Do(ctx, h.policy, func() error {
		id, err := h.client.CreateFirewall(ctx, firewallName(slug), h.cfg.Port, selector)
		if err != nil {
			if isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		}
		result.FirewallID = id
		return nil
	})
	if err != nil {
		return result, fmt.Errorf("provision firewall: %w", err)
	}

	for i := 0; i < instanceCount; i++ {
		spec := ServerSpec{
			Name:       serverName(slug, i),
			ServerType: h.cfg.ServerType,
			Image:      h.cfg.Image,
			Location:   h.cfg.Location,
			SSHKeys:    h.cfg.SSHKeys,
			UserData:   userData,
			Labels: map[string]string{
				labelKey: slug,
				"role":   fmt.Sprintf("node-%d", i),
			},
		}

		var inst Instance
		err = retry.Do(ctx, h.policy, func() error {
			var err error
			inst, err = h.client.CreateServer(ctx, spec)
			if err != nil && isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		})
		if err != nil {
			return result, fmt.Errorf("provision server %s: %w", spec.Name, err)
		}
		result.Instances = append(result.Instances, inst)
		slog.Info("Server provisioned", slog.String("name", inst.Name), slog.String("ip", inst.IP))

		var volumeID int64
		err = retry.Do(ctx, h.policy, func() error {
			var err error
			volumeID, err = h.client.CreateVolume(ctx, volumeName(slug, i), h.cfg.VolumeSize, inst.ID,
				map[string]string{labelKey: slug})
			if err != nil && isInvalidParameter(err) {
				return retry.Fatal(err)
			}
			return err
		})
		if err != nil {
			return result, fmt.Errorf("provision volume for %s: %w", spec.Name, err)
		}
		result.VolumeIDs = append(result.VolumeIDs, volumeID)
	}

	slog.Info("Test harness provisioned",
		logfields.Branch(branch), slog.Int("instances", len(result.Instances)))
	return result, nil
}

// Teardown removes all harness resources for the branch. Deletion continues
// past individual failures and reports them joined.
func (h *Harness) Teardown(ctx context.Context, branch string) error {
	slug := sanitizeBranch(branch)
	if slug == "" {
		return fmt.Errorf("branch name %q produces an empty resource name", branch)
	}

	slog.Info("Tearing down test harness", logfields.Branch(branch))

	var errs []error
	for i := 0; i < instanceCount; i++ {
		if err := h.deleteWithRetry(ctx, func() error {
			return h.client.DeleteVolume(ctx, volumeName(slug, i))
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete volume %s: %w", volumeName(slug, i), err))
		}
		if err := h.deleteWithRetry(ctx, func() error {
			return h.client.DeleteServer(ctx, serverName(slug, i))
		}); err != nil {
			errs = append(errs, fmt.Errorf("delete server %s: %w", serverName(slug, i), err))
		}
	}
	if err := h.deleteWithRetry(ctx, func() error {
		return h.client.DeleteFirewall(ctx, firewallName(slug))
	}); err != nil {
		errs = append(errs, fmt.Errorf("delete firewall %s: %w", firewallName(slug), err))
	}

	return errors.Join(errs...)
}

func (h *Harness) deleteWithRetry(ctx context.Context, fn func() error) error {
	return retry.Do(ctx, h.policy, fn)
}

func (h *Harness) loadSetupScript() (string, error) {
	if h.cfg.SetupScript == "" {
		return "", nil
	}
	data, err := os.ReadFile(h.cfg.SetupScript)
	if err != nil {
		return "", fmt.Errorf("read setup script: %w", err)
	}
	return string(data), nil
}

func serverName(slug string, i int) string { return fmt.Sprintf("docver-%s-%d", slug, i) }
func volumeName(slug string, i int) string { return fmt.Sprintf("docver-%s-data-%d", slug, i) }
func firewallName(slug string) string      { return fmt.Sprintf("docver-%s", slug) }

// sanitizeBranch turns a branch name into a valid cloud resource name
// (lowercase alphanumerics and dashes).
func sanitizeBranch(branch string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(branch) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return strings.Trim(b.String(), "-")
}
