package docker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/swarm"

	"github.com/imamik/stagehand/internal/provisioning"
	"github.com/imamik/stagehand/internal/util/naming"
)

// ListTasks returns every task of the stack with its service name
// relative to the stack.
func (r *Runtime) ListTasks(ctx context.Context, stack string) ([]provisioning.TaskInfo, error) {
	services, err := r.api.ServiceList(ctx, swarm.ServiceListOptions{Filters: stackFilter(stack)})
	if err != nil {
		return nil, fmt.Errorf("failed to list services of %s: %w", stack, err)
	}
	serviceNames := make(map[string]string, len(services))
	for _, svc := range services {
		serviceNames[svc.ID] = naming.LocalService(stack, svc.Spec.Name)
	}

	tasks, err := r.api.TaskList(ctx, swarm.TaskListOptions{Filters: stackFilter(stack)})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks of %s: %w", stack, err)
	}

	infos := make([]provisioning.TaskInfo, 0, len(tasks))
	for _, task := range tasks {
		name, ok := serviceNames[task.ServiceID]
		if !ok {
			continue
		}
		infos = append(infos, provisioning.TaskInfo{
			ID:           task.ID,
			ServiceName:  name,
			DesiredState: string(task.DesiredState),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ServiceName != infos[j].ServiceName {
			return infos[i].ServiceName < infos[j].ServiceName
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// TaskStateAndIP inspects a task. The IP is its address on the first
// non-ingress network and stays empty until the engine assigned one.
func (r *Runtime) TaskStateAndIP(ctx context.Context, taskID string) (provisioning.TaskStatus, error) {
	task, _, err := r.api.TaskInspectWithRaw(ctx, taskID)
	if err != nil {
		return provisioning.TaskStatus{}, fmt.Errorf("failed to inspect task %s: %w", taskID, err)
	}

	status := provisioning.TaskStatus{
		State:        string(task.Status.State),
		DesiredState: string(task.DesiredState),
	}
	if task.Status.ContainerStatus != nil {
		status.ContainerID = task.Status.ContainerStatus.ContainerID
	}
	for _, attachment := range task.NetworksAttachments {
		if attachment.Network.Spec.Ingress || len(attachment.Addresses) == 0 {
			continue
		}
		status.IP = stripPrefixLength(attachment.Addresses[0])
		break
	}
	return status, nil
}

// stripPrefixLength turns "10.0.1.2/24" into "10.0.1.2".
func stripPrefixLength(address string) string {
	ip, _, _ := strings.Cut(address, "/")
	return ip
}
