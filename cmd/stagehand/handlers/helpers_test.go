package handlers

import (
	"bytes"
	"context"
	"sync"
	"testing"

	hcloudgo "github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/stagehand/internal/config"
	"github.com/imamik/stagehand/internal/platform/hcloud"
	"github.com/imamik/stagehand/internal/platform/s3"
	"github.com/imamik/stagehand/internal/provisioning"
	testhelpers "github.com/imamik/stagehand/internal/testing"
)

// stubFactories replaces the factory variables for one test and restores
// them afterwards. Tests using it must not run in parallel.
func stubFactories(t *testing.T, tool *config.ToolConfig) (*bytes.Buffer, *testhelpers.RecordingObserver) {
	t.Helper()
	origTool := loadToolConfig
	origTimeouts := loadTimeouts
	origRunID := newRunID
	origObserver := newObserver
	origCloud := newCloudAPI
	origExecutor := newExecutor
	origRuntime := newContainerRuntime
	origPublisher := newPublisher
	origStyled := styledOutput
	origOutput := summaryOutput
	t.Cleanup(func() {
		loadToolConfig = origTool
		loadTimeouts = origTimeouts
		newRunID = origRunID
		newObserver = origObserver
		newCloudAPI = origCloud
		newExecutor = origExecutor
		newContainerRuntime = origRuntime
		newPublisher = origPublisher
		styledOutput = origStyled
		summaryOutput = origOutput
	})

	obs := testhelpers.NewRecordingObserver()
	out := &bytes.Buffer{}
	loadToolConfig = func(string) (*config.ToolConfig, error) { return tool, nil }
	loadTimeouts = quickTimeouts
	newRunID = func() string { return "run-1" }
	newObserver = func() provisioning.Observer { return obs }
	styledOutput = func() bool { return false }
	summaryOutput = out
	return out, obs
}

func quickTimeouts() *config.Timeouts {
	return &config.Timeouts{
		SSHProbeAttempts:   2,
		TaskWaitIterations: 2,
		AppWaitIterations:  2,
	}
}

// fakePublisher keeps published settings in memory.
type fakePublisher struct {
	mu          sync.Mutex
	objects     map[string][]byte
	unpublished []string
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{objects: map[string][]byte{}}
}

func (p *fakePublisher) Publish(_ context.Context, stack string, data []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.objects[stack] = data
	return "s3://results/" + stack + "/network_config.yaml", nil
}

func (p *fakePublisher) Fetch(_ context.Context, stack string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.objects[stack]
	if !ok {
		return nil, s3.ErrNotPublished
	}
	return data, nil
}

func (p *fakePublisher) Unpublish(_ context.Context, stack string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.objects, stack)
	p.unpublished = append(p.unpublished, stack)
	return nil
}

// fakeCloud records deleted servers. Creation is not exercised here.
type fakeCloud struct {
	mu        sync.Mutex
	deleted   []string
	deleteErr map[string]error
}

var _ hcloud.CloudAPI = (*fakeCloud)(nil)

func (c *fakeCloud) CreateServer(context.Context, hcloud.ServerCreateOpts) (*hcloudgo.Server, error) {
	return nil, nil
}

func (c *fakeCloud) DeleteServer(_ context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.deleteErr[name]; err != nil {
		return err
	}
	c.deleted = append(c.deleted, name)
	return nil
}

func (c *fakeCloud) GetServerByName(context.Context, string) (*hcloudgo.Server, error) {
	return nil, nil
}

func (c *fakeCloud) StartServer(context.Context, *hcloudgo.Server, int64) error {
	return nil
}

func (c *fakeCloud) EnsureSSHKey(context.Context, string, string, map[string]string) (*hcloudgo.SSHKey, error) {
	return &hcloudgo.SSHKey{}, nil
}

func (c *fakeCloud) DeleteSSHKey(context.Context, string) error { return nil }

func (c *fakeCloud) EnsureNetwork(context.Context, string, string, map[string]string) (*hcloudgo.Network, error) {
	return &hcloudgo.Network{}, nil
}

func (c *fakeCloud) EnsureSubnet(context.Context, *hcloudgo.Network, string, string) error {
	return nil
}
