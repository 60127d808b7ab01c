// Package service controls the dependent container that writes to the
// logging database. Restores stop it first (single-writer discipline
// on the embedded engine) and restart it afterwards; both operations
// are best effort — a missing daemon or container is never fatal.
package service

import (
	"context"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"

	"logdb-backup/internal/logging"
)

// Controller stops and starts the dependent service.
type Controller interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

// DockerController drives a named container through the Docker API.
type DockerController struct {
	containerName string
	logger        *logging.Logger
}

// NewDockerController creates a controller for the named container.
// An empty name yields a no-op controller.
func NewDockerController(containerName string, logger *logging.Logger) Controller {
	if containerName == "" {
		return noopController{}
	}
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &DockerController{containerName: containerName, logger: logger}
}

func (c *DockerController) connect() (*client.Client, error) {
	return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
}

// Stop stops the container. Failures are logged and swallowed.
func (c *DockerController) Stop(ctx context.Context) error {
	cli, err := c.connect()
	if err != nil {
		c.logger.Warnf("Docker daemon unavailable, skipping service stop: %v", err)
		return nil
	}
	defer cli.Close()

	if err := cli.ContainerStop(ctx, c.containerName, container.StopOptions{}); err != nil {
		c.logger.Warnf("Failed to stop container %s: %v", c.containerName, err)
		return nil
	}
	c.logger.Infof("Stopped container %s", c.containerName)
	return nil
}

// Start starts the container. Failures are logged and swallowed.
func (c *DockerController) Start(ctx context.Context) error {
	cli, err := c.connect()
	if err != nil {
		c.logger.Warnf("Docker daemon unavailable, skipping service start: %v", err)
		return nil
	}
	defer cli.Close()

	if err := cli.ContainerStart(ctx, c.containerName, container.StartOptions{}); err != nil {
		c.logger.Warnf("Failed to start container %s: %v", c.containerName, err)
		return nil
	}
	c.logger.Infof("Started container %s", c.containerName)
	return nil
}

type noopController struct{}

func (noopController) Stop(ctx context.Context) error  { return nil }
func (noopController) Start(ctx context.Context) error { return nil }
