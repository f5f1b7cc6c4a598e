package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
)

// ErrExecFailed is returned when a command exits non-zero inside a container.
var ErrExecFailed = errors.New("command failed")

// RunInContainer runs command in the container and returns its stdout.
func (r *Runtime) RunInContainer(ctx context.Context, command []string, containerID string) (string, error) {
	execID, err := r.api.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		Cmd:          command,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create exec: %w", err)
	}

	resp, err := r.api.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer resp.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, resp.Reader); err != nil {
		return "", fmt.Errorf("failed to read exec output: %w", err)
	}

	inspect, err := r.api.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return "", fmt.Errorf("failed to inspect exec: %w", err)
	}
	if inspect.ExitCode != 0 {
		return stdout.String(), fmt.Errorf("%w with exit code %d: %s", ErrExecFailed, inspect.ExitCode, stderr.String())
	}
	return stdout.String(), nil
}

// ContainerLogs returns the container's interleaved stdout and stderr, or a
// note explaining why they could not be read.
func (r *Runtime) ContainerLogs(ctx context.Context, containerID string) string {
	rc, err := r.api.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return fmt.Sprintf("unable to read logs of %s: %v", containerID, err)
	}
	defer func() { _ = rc.Close() }()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		fmt.Fprintf(&out, "\nunable to read logs of %s: %v", containerID, err)
	}
	return out.String()
}
