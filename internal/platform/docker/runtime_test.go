package docker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/swarm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/stagehand/internal/util/labels"
	testhelpers "github.com/imamik/stagehand/internal/testing"
)

func writeStackFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docker-configuration.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseComposeFile(t *testing.T) {
	t.Parallel()

	file, err := parseComposeFile([]byte(testhelpers.StackDefinition))
	require.NoError(t, err)
	require.Len(t, file.Services, 3)

	db := file.Services["mariadb_000"]
	assert.Equal(t, "mariadb:10.11", db.Image)
	assert.Equal(t, []string{"MARIADB_ROOT_PASSWORD=skysql"}, db.Environment.env())
	require.NotNil(t, db.Deploy.RestartPolicy)
	assert.Equal(t, "on-failure", db.Deploy.RestartPolicy.Condition)

	proxy := file.Services["maxscale_000"]
	require.Len(t, proxy.Ports, 1)
	assert.Equal(t, uint32(8989), proxy.Ports[0].TargetPort)
	assert.Equal(t, uint32(8989), proxy.Ports[0].PublishedPort)
	assert.Equal(t, "overlay", file.Networks["default"].Driver)
}

func TestParseComposeFile_Syntax(t *testing.T) {
	t.Parallel()

	data := `services:
  app:
    image: busybox
    command: sleep 3600
    entrypoint: ["/bin/sh", "-c"]
    environment: ["A=1", "B=two"]
    labels:
      tier: backend
    ports: ["53:53/udp", "8080", 9000]
    networks:
      backend: {}
networks:
  backend:
    external: true
    name: shared_backend
`
	file, err := parseComposeFile([]byte(data))
	require.NoError(t, err)

	app := file.Services["app"]
	assert.Equal(t, []string{"sleep", "3600"}, []string(app.Command))
	assert.Equal(t, []string{"/bin/sh", "-c"}, []string(app.Entrypoint))
	assert.Equal(t, []string{"A=1", "B=two"}, app.Environment.env())
	assert.Equal(t, "backend", app.Labels["tier"])
	assert.Equal(t, []string{"backend"}, []string(app.Networks))

	require.Len(t, app.Ports, 3)
	assert.Equal(t, portSpec{Protocol: swarm.PortConfigProtocolUDP, TargetPort: 53, PublishedPort: 53, PublishMode: swarm.PortConfigPublishModeIngress}, app.Ports[0])
	assert.Equal(t, uint32(8080), app.Ports[1].TargetPort)
	assert.Zero(t, app.Ports[1].PublishedPort)
	assert.Equal(t, uint32(9000), app.Ports[2].TargetPort)
}

func TestParseComposeFile_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		want string
	}{
		{"not yaml", "services: [", "failed to parse stack file"},
		{"no services", "version: '3.7'\n", "defines no services"},
		{"no image", "services:\n  app:\n    hostname: a\n", "has no image"},
		{"bad port", "services:\n  app:\n    image: x\n    ports: ['http:80']\n", "invalid port"},
		{"undefined network", "services:\n  app:\n    image: x\n    networks: [front]\n", "undefined network front"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := parseComposeFile([]byte(tt.data))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestDeployStack_CreatesServicesAndNetwork(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	r := NewRuntime(api, WithRunID("run-42"))
	file := writeStackFile(t, testhelpers.StackDefinition)

	require.NoError(t, r.DeployStack(context.Background(), file, "replication"))

	require.Len(t, api.networks, 1)
	assert.Equal(t, "replication_default", api.networks[0].Name)
	assert.Equal(t, "overlay", api.networks[0].Driver)
	assert.Equal(t, "replication", api.networks[0].Labels[labels.KeyStackNamespace])

	require.Len(t, api.created, 3)
	names := []string{api.created[0].Name, api.created[1].Name, api.created[2].Name}
	assert.Equal(t, []string{"replication_mariadb_000", "replication_mariadb_001", "replication_maxscale_000"}, names)

	db := api.created[0]
	assert.Equal(t, "replication", db.Labels[labels.KeyStackNamespace])
	assert.Equal(t, "run-42", db.Labels[labels.KeyRun])
	assert.Equal(t, "replication", db.TaskTemplate.ContainerSpec.Labels[labels.KeyStackNamespace])
	assert.Equal(t, "mariadb:10.11", db.TaskTemplate.ContainerSpec.Image)
	assert.Equal(t, []swarm.NetworkAttachmentConfig{{Target: "replication_default", Aliases: []string{"mariadb_000"}}}, db.TaskTemplate.Networks)
	require.NotNil(t, db.Mode.Replicated)
	assert.Equal(t, uint64(1), *db.Mode.Replicated.Replicas)
	require.NotNil(t, db.TaskTemplate.RestartPolicy)
	assert.Equal(t, swarm.RestartPolicyConditionOnFailure, db.TaskTemplate.RestartPolicy.Condition)
	assert.Nil(t, db.EndpointSpec)

	proxy := api.created[2]
	require.NotNil(t, proxy.EndpointSpec)
	assert.Equal(t, uint32(8989), proxy.EndpointSpec.Ports[0].PublishedPort)
}

func TestDeployStack_UpdatesExistingServices(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	r := NewRuntime(api)
	file := writeStackFile(t, testhelpers.StackDefinition)
	ctx := context.Background()

	require.NoError(t, r.DeployStack(ctx, file, "replication"))
	require.NoError(t, r.DeployStack(ctx, file, "replication"))

	assert.Len(t, api.created, 3)
	assert.Len(t, api.updated, 3)
	assert.Len(t, api.networks, 1, "the stack network is created once")
}

func TestDeployStack_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		err := NewRuntime(newFakeAPI()).DeployStack(context.Background(), filepath.Join(t.TempDir(), "absent.yaml"), "s")
		assert.ErrorContains(t, err, "failed to read stack file")
	})

	t.Run("create fails", func(t *testing.T) {
		t.Parallel()
		api := newFakeAPI()
		api.createServiceErr = assert.AnError
		err := NewRuntime(api).DeployStack(context.Background(), writeStackFile(t, testhelpers.StackDefinition), "s")
		assert.ErrorIs(t, err, assert.AnError)
		assert.ErrorContains(t, err, "failed to deploy service s_mariadb_000")
	})
}

func TestDestroyStack(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	r := NewRuntime(api)
	ctx := context.Background()

	require.NoError(t, r.DeployStack(ctx, writeStackFile(t, testhelpers.StackDefinition), "replication"))
	require.NoError(t, r.DeployStack(ctx, writeStackFile(t, "services:\n  other:\n    image: busybox\n"), "other"))
	require.NoError(t, r.CreateBridgeNetwork(ctx, "replication_bridge"))

	require.NoError(t, r.DestroyStack(ctx, "replication"))

	remaining, err := api.ServiceList(ctx, swarm.ServiceListOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "other_other", remaining[0].Spec.Name)

	var networkNames []string
	for _, n := range api.networks {
		networkNames = append(networkNames, n.Name)
	}
	assert.ElementsMatch(t, []string{"other_default", "replication_bridge"}, networkNames)
}

func TestDestroyStack_JoinsErrors(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	r := NewRuntime(api)
	ctx := context.Background()
	require.NoError(t, r.DeployStack(ctx, writeStackFile(t, testhelpers.StackDefinition), "replication"))
	api.removeNetworkErr = assert.AnError

	err := r.DestroyStack(ctx, "replication")
	assert.ErrorIs(t, err, assert.AnError)
	assert.ErrorContains(t, err, "failed to remove network replication_default")
	assert.Empty(t, api.services, "services are removed even when a network is not")
}

func TestListTasks(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	stackLabels := map[string]string{labels.KeyStackNamespace: "replication"}
	api.services = []swarm.Service{
		{ID: "s1", Spec: swarm.ServiceSpec{Annotations: swarm.Annotations{Name: "replication_mariadb_000", Labels: stackLabels}}},
		{ID: "s2", Spec: swarm.ServiceSpec{Annotations: swarm.Annotations{Name: "replication_maxscale_000", Labels: stackLabels}}},
	}
	api.tasks = []swarm.Task{
		{ID: "t3", ServiceID: "s2", DesiredState: swarm.TaskStateRunning, Annotations: swarm.Annotations{Labels: stackLabels}},
		{ID: "t1", ServiceID: "s1", DesiredState: swarm.TaskStateShutdown, Annotations: swarm.Annotations{Labels: stackLabels}},
		{ID: "t2", ServiceID: "s1", DesiredState: swarm.TaskStateRunning, Annotations: swarm.Annotations{Labels: stackLabels}},
		{ID: "x1", ServiceID: "other", DesiredState: swarm.TaskStateRunning},
	}

	tasks, err := NewRuntime(api).ListTasks(context.Background(), "replication")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	assert.Equal(t, "t1", tasks[0].ID)
	assert.Equal(t, "mariadb_000", tasks[0].ServiceName)
	assert.Equal(t, "shutdown", tasks[0].DesiredState)
	assert.Equal(t, "t2", tasks[1].ID)
	assert.Equal(t, "maxscale_000", tasks[2].ServiceName)
}

func TestTaskStateAndIP(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.tasks = []swarm.Task{
		{
			ID:           "t1",
			DesiredState: swarm.TaskStateRunning,
			Status: swarm.TaskStatus{
				State:           swarm.TaskStateRunning,
				ContainerStatus: &swarm.ContainerStatus{ContainerID: "c1"},
			},
			NetworksAttachments: []swarm.NetworkAttachment{
				{Network: swarm.Network{Spec: swarm.NetworkSpec{Ingress: true}}, Addresses: []string{"10.255.0.5/16"}},
				{Network: swarm.Network{Spec: swarm.NetworkSpec{Annotations: swarm.Annotations{Name: "replication_default"}}}, Addresses: []string{"10.0.1.2/24"}},
			},
		},
		{ID: "t2", DesiredState: swarm.TaskStateRunning, Status: swarm.TaskStatus{State: swarm.TaskStatePending}},
	}
	r := NewRuntime(api)

	status, err := r.TaskStateAndIP(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, "running", status.State)
	assert.Equal(t, "running", status.DesiredState)
	assert.Equal(t, "c1", status.ContainerID)
	assert.Equal(t, "10.0.1.2", status.IP)

	status, err = r.TaskStateAndIP(context.Background(), "t2")
	require.NoError(t, err)
	assert.Equal(t, "pending", status.State)
	assert.Empty(t, status.ContainerID)
	assert.Empty(t, status.IP)

	_, err = r.TaskStateAndIP(context.Background(), "missing")
	assert.ErrorContains(t, err, "failed to inspect task missing")
}

func TestBridgeNetwork(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	r := NewRuntime(api)
	ctx := context.Background()

	require.NoError(t, r.CreateBridgeNetwork(ctx, "replication_bridge"))
	require.NoError(t, r.CreateBridgeNetwork(ctx, "replication_bridge"))
	require.Len(t, api.networks, 1, "creating the bridge is idempotent")
	assert.Equal(t, "bridge", api.networks[0].Driver)

	ips, err := r.ListContainerIPs(ctx, "replication_bridge")
	require.NoError(t, err)
	assert.Empty(t, ips)

	require.NoError(t, r.ConnectNetwork(ctx, "replication_bridge", "c1"))
	assert.Equal(t, []string{"replication_bridge/c1"}, api.connects)

	ips, err = r.ListContainerIPs(ctx, "replication_bridge")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"c1": "172.20.0.9"}, ips)

	assert.ErrorContains(t, r.ConnectNetwork(ctx, "missing", "c1"), "failed to connect c1 to missing")
	_, err = r.ListContainerIPs(ctx, "missing")
	assert.ErrorContains(t, err, "failed to inspect network missing")
}

func TestBridgeNetwork_SimilarNames(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.networks = []network.Inspect{{ID: "n1", Name: "replication_bridge_old"}}

	require.NoError(t, NewRuntime(api).CreateBridgeNetwork(context.Background(), "replication_bridge"))
	assert.Len(t, api.networks, 2, "a name filter match is not an exact match")
}

func TestRunInContainer(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.results["c1"] = execResult{stdout: "1\n"}
	api.results["c2"] = execResult{stdout: "", stderr: "Access denied", exitCode: 1}
	r := NewRuntime(api)
	ctx := context.Background()

	out, err := r.RunInContainer(ctx, []string{"mysql", "--execute=SELECT 1"}, "c1")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
	assert.Equal(t, []string{"mysql", "--execute=SELECT 1"}, api.execs["c1"])

	_, err = r.RunInContainer(ctx, []string{"mysql"}, "c2")
	assert.ErrorIs(t, err, ErrExecFailed)
	assert.ErrorContains(t, err, "Access denied")

	_, err = r.RunInContainer(ctx, []string{"true"}, "c3")
	assert.ErrorContains(t, err, "failed to create exec")
}

func TestContainerLogs(t *testing.T) {
	t.Parallel()
	api := newFakeAPI()
	api.logs["c1"] = "starting\nERROR can't bind\n"
	r := NewRuntime(api)

	assert.Equal(t, "starting\nERROR can't bind\n", r.ContainerLogs(context.Background(), "c1"))
	assert.Contains(t, r.ContainerLogs(context.Background(), "c9"), "unable to read logs of c9")
}
