package hal

import (
	"context"
	"fmt"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"fpgasched/internal/kernel"
	"fpgasched/internal/logging"
)

// DockerBackend executes one kernel invocation as a short-lived container
// run, grounded on cmd/main.go's container lifecycle (ContainerCreate,
// ContainerStart, wait, ContainerRemove) and internal/collectors/docker.go's
// client construction. One container is created and removed per dispatch;
// the image is expected to accept KERNEL_LABEL/KERNEL_CU/KERNEL_EXECUTIONS
// environment variables and exit when the simulated invocation is done.
type DockerBackend struct {
	cli   *client.Client
	image string
}

func NewDockerBackend(image string) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}
	return &DockerBackend{cli: cli, image: image}, nil
}

func (d *DockerBackend) Execute(ctx context.Context, label kernel.Label, cu int, slotMask uint32, executions int) error {
	logger := logging.GetLogger().WithField("component", "hal")

	cfg := &container.Config{
		Image: d.image,
		Env: []string{
			"KERNEL_LABEL=" + label.String(),
			"KERNEL_CU=" + strconv.Itoa(cu),
			"KERNEL_SLOT_MASK=" + strconv.FormatUint(uint64(slotMask), 2),
			"KERNEL_EXECUTIONS=" + strconv.Itoa(executions),
		},
	}
	hostCfg := &container.HostConfig{AutoRemove: true}

	resp, err := d.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		return fmt.Errorf("hal: container create: %w", err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("hal: container start: %w", err)
	}

	statusCh, errCh := d.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("hal: container wait: %w", err)
		}
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return fmt.Errorf("hal: kernel %s exited with status %d", label, status.StatusCode)
		}
	}

	logger.WithFields(map[string]interface{}{
		"label":      label.String(),
		"cu":         cu,
		"executions": executions,
	}).Debug("kernel invocation completed")

	return nil
}

func (d *DockerBackend) Close() error {
	return d.cli.Close()
}
