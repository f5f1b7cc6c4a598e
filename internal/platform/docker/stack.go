package docker

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/swarm"

	"github.com/imamik/stagehand/internal/util/labels"
	"github.com/imamik/stagehand/internal/util/naming"
)

// defaultNetwork is attached to services that name no network.
const defaultNetwork = "default"

const overlayDriver = "overlay"

func stackFilter(stack string) filters.Args {
	return filters.NewArgs(filters.Arg("label", labels.KeyStackNamespace+"="+stack))
}

// DeployStack creates or updates every service of the stack file.
func (r *Runtime) DeployStack(ctx context.Context, file, stack string) error {
	compose, err := loadComposeFile(file)
	if err != nil {
		return err
	}

	networks, err := r.ensureStackNetworks(ctx, stack, compose)
	if err != nil {
		return err
	}

	existing, err := r.stackServices(ctx, stack)
	if err != nil {
		return err
	}

	names := slices.Sorted(maps.Keys(compose.Services))
	for _, name := range names {
		spec := r.serviceSpec(stack, name, compose.Services[name], networks)
		if svc, ok := existing[spec.Name]; ok {
			_, err = r.api.ServiceUpdate(ctx, svc.ID, svc.Version, spec, swarm.ServiceUpdateOptions{})
		} else {
			_, err = r.api.ServiceCreate(ctx, spec, swarm.ServiceCreateOptions{})
		}
		if err != nil {
			return fmt.Errorf("failed to deploy service %s: %w", spec.Name, err)
		}
	}
	return nil
}

// DestroyStack removes the services and networks of the stack. Every
// resource is attempted; failures are joined.
func (r *Runtime) DestroyStack(ctx context.Context, stack string) error {
	services, err := r.api.ServiceList(ctx, swarm.ServiceListOptions{Filters: stackFilter(stack)})
	if err != nil {
		return fmt.Errorf("failed to list services of %s: %w", stack, err)
	}
	var errs []error
	for _, svc := range services {
		if err := r.api.ServiceRemove(ctx, svc.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove service %s: %w", svc.Spec.Name, err))
		}
	}

	networks, err := r.api.NetworkList(ctx, network.ListOptions{Filters: stackFilter(stack)})
	if err != nil {
		return errors.Join(append(errs, fmt.Errorf("failed to list networks of %s: %w", stack, err))...)
	}
	for _, n := range networks {
		if err := r.api.NetworkRemove(ctx, n.ID); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove network %s: %w", n.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) stackServices(ctx context.Context, stack string) (map[string]swarm.Service, error) {
	services, err := r.api.ServiceList(ctx, swarm.ServiceListOptions{Filters: stackFilter(stack)})
	if err != nil {
		return nil, fmt.Errorf("failed to list services of %s: %w", stack, err)
	}
	byName := make(map[string]swarm.Service, len(services))
	for _, svc := range services {
		byName[svc.Spec.Name] = svc
	}
	return byName, nil
}

// ensureStackNetworks creates the networks the services refer to and
// returns the engine name of every reference.
func (r *Runtime) ensureStackNetworks(ctx context.Context, stack string, compose *composeFile) (map[string]string, error) {
	refs := map[string]bool{}
	for _, svc := range compose.Services {
		if len(svc.Networks) == 0 {
			refs[defaultNetwork] = true
		}
		for _, ref := range svc.Networks {
			refs[ref] = true
		}
	}

	names := make(map[string]string, len(refs))
	for _, ref := range slices.Sorted(maps.Keys(refs)) {
		decl := compose.Networks[ref]
		if decl == nil {
			decl = &composeNetwork{}
		}

		name := naming.StackService(stack, ref)
		if decl.Name != "" {
			name = decl.Name
		}
		names[ref] = name
		if decl.External {
			continue
		}

		found, err := r.findNetwork(ctx, name)
		if err != nil {
			return nil, err
		}
		if found != nil {
			continue
		}

		driver := decl.Driver
		if driver == "" {
			driver = overlayDriver
		}
		netLabels := labels.NewLabelBuilder(stack).Merge(decl.Labels).Build()
		netLabels[labels.KeyStackNamespace] = stack
		_, err = r.api.NetworkCreate(ctx, name, network.CreateOptions{
			Driver:     driver,
			Scope:      "swarm",
			Attachable: decl.Attachable,
			Labels:     netLabels,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create network %s: %w", name, err)
		}
	}
	return names, nil
}

// findNetwork returns the network named exactly name, or nil.
func (r *Runtime) findNetwork(ctx context.Context, name string) (*network.Summary, error) {
	list, err := r.api.NetworkList(ctx, network.ListOptions{Filters: filters.NewArgs(filters.Arg("name", name))})
	if err != nil {
		return nil, fmt.Errorf("failed to list networks: %w", err)
	}
	for i := range list {
		if list[i].Name == name {
			return &list[i], nil
		}
	}
	return nil, nil
}

func (r *Runtime) serviceSpec(stack, name string, svc composeService, networks map[string]string) swarm.ServiceSpec {
	serviceLabels := labels.NewLabelBuilder(stack).WithRunIfSet(r.runID).Merge(svc.Deploy.Labels).Build()
	serviceLabels[labels.KeyStackNamespace] = stack

	containerLabels := maps.Clone(map[string]string(svc.Labels))
	if containerLabels == nil {
		containerLabels = map[string]string{}
	}
	containerLabels[labels.KeyStackNamespace] = stack

	refs := []string(svc.Networks)
	if len(refs) == 0 {
		refs = []string{defaultNetwork}
	}
	attachments := make([]swarm.NetworkAttachmentConfig, 0, len(refs))
	for _, ref := range refs {
		attachments = append(attachments, swarm.NetworkAttachmentConfig{Target: networks[ref], Aliases: []string{name}})
	}

	spec := swarm.ServiceSpec{
		Annotations: swarm.Annotations{
			Name:   naming.StackService(stack, name),
			Labels: serviceLabels,
		},
		TaskTemplate: swarm.TaskSpec{
			ContainerSpec: &swarm.ContainerSpec{
				Image:    svc.Image,
				Labels:   containerLabels,
				Command:  svc.Entrypoint,
				Args:     svc.Command,
				Hostname: svc.Hostname,
				Env:      svc.Environment.env(),
			},
			Networks: attachments,
		},
	}

	if rp := svc.Deploy.RestartPolicy; rp != nil && rp.Condition != "" {
		spec.TaskTemplate.RestartPolicy = &swarm.RestartPolicy{Condition: swarm.RestartPolicyCondition(rp.Condition)}
	}

	if svc.Deploy.Mode == "global" {
		spec.Mode = swarm.ServiceMode{Global: &swarm.GlobalService{}}
	} else {
		replicas := uint64(1)
		if svc.Deploy.Replicas != nil {
			replicas = *svc.Deploy.Replicas
		}
		spec.Mode = swarm.ServiceMode{Replicated: &swarm.ReplicatedService{Replicas: &replicas}}
	}

	if len(svc.Ports) > 0 {
		ports := make([]swarm.PortConfig, 0, len(svc.Ports))
		for _, p := range svc.Ports {
			ports = append(ports, swarm.PortConfig(p))
		}
		sort.Slice(ports, func(i, j int) bool { return ports[i].TargetPort < ports[j].TargetPort })
		spec.EndpointSpec = &swarm.EndpointSpec{Ports: ports}
	}
	return spec
}
