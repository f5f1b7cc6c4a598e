package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/netsettings"
	"github.com/imamik/stagehand/internal/provisioning"
	testhelpers "github.com/imamik/stagehand/internal/testing"
)

type fixture struct {
	cfg      *config.Configuration
	infra    *testhelpers.MockInfrastructure
	exec     *testhelpers.MockExecutor
	sleeper  *testhelpers.RecordingSleeper
	observer *testhelpers.RecordingObserver
}

func newFixture(t *testing.T, builder *testhelpers.ConfigBuilder) *fixture {
	t.Helper()
	return &fixture{
		cfg:      builder.WithProvider(config.ProviderHCloud).Build(t),
		infra:    &testhelpers.MockInfrastructure{},
		exec:     &testhelpers.MockExecutor{},
		sleeper:  &testhelpers.RecordingSleeper{},
		observer: testhelpers.NewRecordingObserver(),
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	base := []Option{
		WithSleeper(f.sleeper.Sleep),
		WithObserver(f.observer),
	}
	return New(f.cfg, f.infra, f.exec, append(base, opts...)...)
}

func (f *fixture) storedSettings(t *testing.T) *netsettings.Settings {
	t.Helper()
	settings, err := netsettings.Load(f.cfg.NetworkSettingsFile()).Unwrap()
	require.NoError(t, err)
	return settings
}

// stoppedUntilApplied reports nodes as running only after a successful Apply.
func stoppedUntilApplied(m *testhelpers.MockInfrastructure, failing ...string) {
	running := map[string]bool{}
	m.IsRunningFunc = func(_ context.Context, node string) (bool, error) {
		return running[node], nil
	}
	m.ApplyFunc = func(_ context.Context, node string) error {
		for _, f := range failing {
			if f == node {
				return errors.New("terraform apply failed")
			}
		}
		running[node] = true
		return nil
	}
	m.DestroyFunc = func(_ context.Context, node string) error {
		running[node] = false
		return nil
	}
}

func withRoles(b *testhelpers.ConfigBuilder, nodes ...string) *testhelpers.ConfigBuilder {
	for _, n := range nodes {
		b = b.WithFile(n+".json", `{"name":"`+n+`"}`).WithFile(n+"-config.json", `{"run_list":["role[`+n+`]"]}`)
	}
	return b
}

func TestUp_AllNodesSucceed(t *testing.T) {
	t.Parallel()
	f := newFixture(t, withRoles(testhelpers.NewConfigBuilder().WithNodes("node_a", "node_b"), "node_a", "node_b"))
	stoppedUntilApplied(f.infra)

	err := f.orchestrator().Up(testhelpers.TestContext(t), f.cfg.NodeNames())
	require.NoError(t, err)

	configures := f.exec.ConfigureCalls()
	require.Len(t, configures, 2)
	assert.Equal(t, "node_a-config.json", configures[0].ConfigName)
	assert.Equal(t, []provisioning.FileTransfer{
		{Source: filepath.Join(f.cfg.Path(), "node_a.json"), Target: "roles/node_a.json"},
		{Source: filepath.Join(f.cfg.Path(), "node_a-config.json"), Target: "configs/node_a-config.json"},
	}, configures[0].Files)

	settings := f.storedSettings(t)
	assert.Equal(t, []string{"node_a", "node_b"}, settings.Names())

	want := testhelpers.DefaultResourceNetwork("node_a")
	rec := settings.NodeSettings("node_a")
	assert.Equal(t, want.PrivateIP, rec.Network, "the private address is preferred when both answer")
	assert.Equal(t, want.PrivateIP, rec.PrivateIP)
	assert.Equal(t, "root", rec.User)
	assert.Equal(t, "/keys/id_rsa", rec.KeyFile)
}

func TestUp_ThreeNodesWithFailingApply(t *testing.T) {
	t.Parallel()
	f := newFixture(t, withRoles(testhelpers.NewConfigBuilder().WithNodes("a", "b", "c"), "a", "b", "c"))
	stoppedUntilApplied(f.infra, "b")

	orch := f.orchestrator()
	err := orch.Up(testhelpers.TestContext(t), []string{"a", "b", "c"})

	require.Error(t, err)
	assert.ErrorIs(t, err, provisioning.ErrInfrastructure)
	assert.Contains(t, err.Error(), "failed to apply node b")

	settings := f.storedSettings(t)
	assert.Equal(t, []string{"a", "c"}, settings.Names())
	_, ok := settings.Lookup("b")
	assert.False(t, ok)

	assert.Equal(t, 1, f.infra.CallCount("Apply", "b"), "apply failures are not retried")
	assert.Equal(t, 0, f.infra.CallCount("Destroy", "b"))

	outcomes := orch.Outcomes()
	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Succeeded())
	assert.Equal(t, provisioning.NodeFailed, outcomes[1].State)
	assert.Equal(t, 1, outcomes[1].Attempts)
	assert.True(t, outcomes[2].Succeeded())
}

func TestUp_ReachableAfterKProbes(t *testing.T) {
	t.Parallel()

	for _, k := range []int{1, 7, 40} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, testhelpers.NewConfigBuilder().WithNodes("node"))
			public := testhelpers.DefaultResourceNetwork("node").PublicIP

			publicProbes := 0
			f.exec.RunCommandFunc = func(_ context.Context, conn netsettings.Record, command string) (string, error) {
				if command != provisioning.ReachabilityProbeCommand {
					return "PROVISIONED", nil
				}
				if conn.Network != public {
					return "", errors.New("connection refused")
				}
				publicProbes++
				if publicProbes < k {
					return "", errors.New("connection timed out")
				}
				return "connected\n", nil
			}

			err := f.orchestrator(WithAttempts(1)).Up(testhelpers.TestContext(t), []string{"node"})
			require.NoError(t, err)

			assert.Equal(t, k, publicProbes)
			assert.Equal(t, k-1, f.sleeper.Count())
			for _, p := range f.sleeper.Pauses() {
				assert.Equal(t, 15*time.Second, p)
			}
			assert.Equal(t, public, f.storedSettings(t).NodeSettings("node").Network)
		})
	}
}

func TestUp_ReachabilityIsBounded(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testhelpers.NewConfigBuilder().WithNodes("node"))

	probes := 0
	f.exec.RunCommandFunc = func(context.Context, netsettings.Record, string) (string, error) {
		probes++
		return "", errors.New("no route to host")
	}

	orch := f.orchestrator(WithAttempts(1))
	err := orch.Up(testhelpers.TestContext(t), []string{"node"})

	require.Error(t, err)
	assert.ErrorIs(t, err, provisioning.ErrAvailabilityTimeout)
	assert.Equal(t, 2*DefaultProbeAttempts, probes, "both variants are probed on each of the 40 iterations")
	assert.Equal(t, DefaultProbeAttempts-1, f.sleeper.Count())

	rec := f.storedSettings(t).NodeSettings("node")
	assert.Equal(t, testhelpers.DefaultResourceNetwork("node").PublicIP, rec.Network,
		"the discovered record is kept after a failed attempt")
	assert.Empty(t, f.exec.ConfigureCalls())
}

func TestUp_RetryRecreatesNode(t *testing.T) {
	t.Parallel()
	f := newFixture(t, withRoles(testhelpers.NewConfigBuilder().WithNodes("node"), "node"))

	checks := 0
	f.exec.RunCommandFunc = func(_ context.Context, _ netsettings.Record, command string) (string, error) {
		if command == provisioning.ProvisionedCheckCommand {
			checks++
			if checks == 1 {
				return "NOT", nil
			}
			return "PROVISIONED", nil
		}
		return "connected", nil
	}

	orch := f.orchestrator()
	err := orch.Up(testhelpers.TestContext(t), []string{"node"})
	require.NoError(t, err)

	assert.Equal(t, []testhelpers.Call{
		{Method: "IsRunning", Node: "node"},
		{Method: "IsRunning", Node: "node"},
		{Method: "ResourceNetwork", Node: "node"},
		{Method: "Destroy", Node: "node"},
		{Method: "Apply", Node: "node"},
		{Method: "IsRunning", Node: "node"},
		{Method: "ResourceNetwork", Node: "node"},
	}, f.infra.Calls())
	assert.Len(t, f.exec.ConfigureCalls(), 2)
	assert.Equal(t, 2, orch.Outcomes()[0].Attempts)
}

func TestUp_RecreateDestroysOnFirstAttempt(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testhelpers.NewConfigBuilder().WithNodes("node"))
	f.infra.DestroyFunc = func(context.Context, string) error {
		return errors.New("server not found")
	}

	err := f.orchestrator(WithRecreate(true)).Up(testhelpers.TestContext(t), []string{"node"})
	require.NoError(t, err, "destroy failures are not fatal")

	assert.Equal(t, 1, f.infra.CallCount("Destroy", "node"))
	assert.Equal(t, 1, f.infra.CallCount("Apply", "node"))
	assert.True(t, f.observer.Contains("Failed to destroy node"))
}

func TestUp_NodeNeverRunning(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testhelpers.NewConfigBuilder().WithNodes("node"))
	f.infra.IsRunningFunc = func(context.Context, string) (bool, error) { return false, nil }

	err := f.orchestrator(WithAttempts(3)).Up(testhelpers.TestContext(t), []string{"node"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, f.infra.CallCount("Apply", "node"))
	assert.Equal(t, 2, f.infra.CallCount("Destroy", "node"))
	assert.Equal(t, 0, f.infra.CallCount("ResourceNetwork", "node"))

	settings := f.storedSettings(t)
	assert.Equal(t, 0, settings.Len())
}

func TestUp_ConfigurationFailureKeepsReachableRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t, withRoles(testhelpers.NewConfigBuilder().WithNodes("node"), "node"))
	f.exec.ConfigureFunc = func(context.Context, netsettings.Record, string, []provisioning.FileTransfer) error {
		return errors.New("chef-solo exited with 1")
	}

	orch := f.orchestrator(WithAttempts(2))
	err := orch.Up(testhelpers.TestContext(t), []string{"node"})

	require.Error(t, err)
	assert.ErrorIs(t, err, provisioning.ErrConfiguration)
	assert.Len(t, f.exec.ConfigureCalls(), 2)
	assert.Equal(t, testhelpers.DefaultResourceNetwork("node").PrivateIP, f.storedSettings(t).NodeSettings("node").Network)
	assert.Equal(t, provisioning.NodeFailed, orch.Outcomes()[0].State)
}

func TestUp_NodeWithoutRoleIsNotProvisioned(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testhelpers.NewConfigBuilder().WithNodes("node"))

	err := f.orchestrator().Up(testhelpers.TestContext(t), []string{"node"})
	require.NoError(t, err)

	assert.Empty(t, f.exec.ConfigureCalls())
	for _, c := range f.exec.Calls() {
		assert.NotEqual(t, provisioning.ProvisionedCheckCommand, c.Command)
	}
	assert.True(t, f.observer.Contains("should not be configured"))
}

func TestUp_UploadsCnfTemplates(t *testing.T) {
	t.Parallel()
	builder := testhelpers.NewConfigBuilder().WithNode("node", config.Node{
		Box:             "ubuntu-22.04",
		CnfTemplatePath: "cnf",
		Products: []config.Product{
			{Name: "mariadb", Version: "10.11", CnfTemplate: "server1.cnf"},
			{Name: "docker", CnfTemplate: "ignored.cnf"},
			{Name: "maxscale"},
		},
	})
	f := newFixture(t, withRoles(builder, "node"))

	require.NoError(t, f.orchestrator().Up(testhelpers.TestContext(t), []string{"node"}))

	configures := f.exec.ConfigureCalls()
	require.Len(t, configures, 1)
	require.Len(t, configures[0].Files, 3)
	assert.Equal(t, provisioning.FileTransfer{
		Source: filepath.Join(f.cfg.Path(), "cnf", "server1.cnf"),
		Target: "cookbooks/mariadb/files/server1.cnf",
	}, configures[0].Files[2])
}

func TestUp_EmptySelection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testhelpers.NewConfigBuilder().WithNodes("node"))

	err := f.orchestrator().Up(testhelpers.TestContext(t), nil)
	assert.ErrorIs(t, err, provisioning.ErrSelection)
}

func TestUp_CancelledContextStillStoresSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t, testhelpers.NewConfigBuilder().WithNodes("a", "b"))

	ctx, cancel := context.WithCancel(context.Background())
	f.infra.ResourceNetworkFunc = func(_ context.Context, node string) (provisioning.ResourceNetwork, error) {
		defer cancel()
		return testhelpers.DefaultResourceNetwork(node), nil
	}

	err := f.orchestrator().Up(ctx, []string{"a", "b"})

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a"}, f.storedSettings(t).Names())
	assert.Equal(t, 0, f.infra.CallCount("IsRunning", "b"))
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
