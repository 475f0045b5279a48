package provision

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepankarm/docver/internal/config"
	"github.com/deepankarm/docver/internal/retry"
)

// fakeClient records calls and can inject failures per operation.
type fakeClient struct {
	servers   []ServerSpec
	volumes   []string
	firewalls []string
	deleted   []string

	serverErrs   []error // popped per CreateServer call
	firewallErr  error
	deleteVolErr error
}

func (f *fakeClient) CreateServer(_ context.Context, spec ServerSpec) (Instance, error) {
	if len(f.serverErrs) > 0 {
		err := f.serverErrs[0]
		f.serverErrs = f.serverErrs[1:]
		if err != nil {
			return Instance{}, err
		}
	}
	f.servers = append(f.servers, spec)
	return Instance{ID: int64(len(f.servers)), Name: spec.Name, IP: "192.0.2.1"}, nil
}

func (f *fakeClient) DeleteServer(_ context.Context, name string) error {
	f.deleted = append(f.deleted, "server:"+name)
	return nil
}

func (f *fakeClient) CreateVolume(_ context.Context, name string, _ int, _ int64, _ map[string]string) (int64, error) {
	f.volumes = append(f.volumes, name)
	return int64(len(f.volumes)), nil
}

func (f *fakeClient) DeleteVolume(_ context.Context, name string) error {
	if f.deleteVolErr != nil {
		return f.deleteVolErr
	}
	f.deleted = append(f.deleted, "volume:"+name)
	return nil
}

func (f *fakeClient) CreateFirewall(_ context.Context, name string, _ int, _ string) (int64, error) {
	if f.firewallErr != nil {
		return 0, f.firewallErr
	}
	f.firewalls = append(f.firewalls, name)
	return 42, nil
}

func (f *fakeClient) DeleteFirewall(_ context.Context, name string) error {
	f.deleted = append(f.deleted, "firewall:"+name)
	return nil
}

func harnessConfig() *config.HarnessConfig {
	return &config.HarnessConfig{
		ServerType: "cx32",
		Image:      "ubuntu-22.04",
		Location:   "fsn1",
		Port:       45678,
		VolumeSize: 10,
	}
}

func fastHarness(client Client, cfg *config.HarnessConfig) *Harness {
	h := New(client, cfg)
	h.policy = retry.Policy{Initial: time.Millisecond, Max: time.Millisecond, MaxRetries: 2}
	return h
}

func TestProvision_CreatesTwoInstancesWithVolumes(t *testing.T) {
	fc := &fakeClient{}
	h := fastHarness(fc, harnessConfig())

	result, err := h.Provision(context.Background(), "feat/harness")
	require.NoError(t, err)

	require.Len(t, result.Instances, 2)
	assert.Equal(t, "docver-feat-harness-0", result.Instances[0].Name)
	assert.Equal(t, "docver-feat-harness-1", result.Instances[1].Name)
	assert.Equal(t, int64(42), result.FirewallID)
	assert.Len(t, result.VolumeIDs, 2)

	assert.Equal(t, []string{"docver-feat-harness-data-0", "docver-feat-harness-data-1"}, fc.volumes)
	assert.Equal(t, []string{"docver-feat-harness"}, fc.firewalls)

	for i, spec := range fc.servers {
		assert.Equal(t, "feat-harness", spec.Labels[labelKey], i)
		assert.Equal(t, "cx32", spec.ServerType)
	}
}

func TestProvision_PassesSetupScriptAsUserData(t *testing.T) {
	script := filepath.Join(t.TempDir(), "setup.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho ready\n"), 0o600))

	cfg := harnessConfig()
	cfg.SetupScript = script

	fc := &fakeClient{}
	h := fastHarness(fc, cfg)

	_, err := h.Provision(context.Background(), "master")
	require.NoError(t, err)
	for _, spec := range fc.servers {
		assert.Contains(t, spec.UserData, "echo ready")
	}
}

func TestProvision_RetriesTransientServerFailure(t *testing.T) {
	fc := &fakeClient{serverErrs: []error{errors.New("rate limit exceeded"), nil}}
	h := fastHarness(fc, harnessConfig())

	result, err := h.Provision(context.Background(), "master")
	require.NoError(t, err)
	assert.Len(t, result.Instances, 2)
}

func TestProvision_FatalOnInvalidParameter(t *testing.T) {
	fc := &fakeClient{firewallErr: errors.New("server type not found: cx999")}
	h := fastHarness(fc, harnessConfig())

	_, err := h.Provision(context.Background(), "master")
	require.Error(t, err)
	// Invalid parameters are not retried.
	assert.Empty(t, fc.firewalls)
	assert.Empty(t, fc.servers)
}

func TestTeardown_DeletesAllResources(t *testing.T) {
	fc := &fakeClient{}
	h := fastHarness(fc, harnessConfig())

	require.NoError(t, h.Teardown(context.Background(), "master"))
	assert.ElementsMatch(t, []string{
		"volume:docver-master-data-0", "server:docver-master-0",
		"volume:docver-master-data-1", "server:docver-master-1",
		"firewall:docver-master",
	}, fc.deleted)
}

func TestTeardown_ContinuesPastFailures(t *testing.T) {
	fc := &fakeClient{deleteVolErr: errors.New("volume is locked")}
	h := fastHarness(fc, harnessConfig())

	err := h.Teardown(context.Background(), "master")
	require.Error(t, err)
	// Servers and firewall are still removed.
	assert.Contains(t, fc.deleted, "server:docver-master-0")
	assert.Contains(t, fc.deleted, "firewall:docver-master")
}

func TestSanitizeBranch(t *testing.T) {
	assert.Equal(t, "feat-new-docs", sanitizeBranch("feat/new_docs"))
	assert.Equal(t, "master", sanitizeBranch("master"))
	assert.Equal(t, "v2-4", sanitizeBranch("V2.4"))
	assert.Equal(t, "", sanitizeBranch("///"))
}

func TestNewFromConfig_RequiresToken(t *testing.T) {
	_, err := NewFromConfig(nil)
	require.Error(t, err)

	_, err = NewFromConfig(&config.HarnessConfig{})
	require.Error(t, err)
}
