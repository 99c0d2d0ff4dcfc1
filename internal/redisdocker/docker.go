// Package redisdocker runs the local Redis instance that carries the job
// stream and, by default, the result store.
package redisdocker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultImage         = "redis:7-alpine"
	DefaultContainerName = "idscan-redis"
	DefaultPort          = "6379"
	ContainerPort        = "6379/tcp"
	DataDir              = "/data"
	Label                = "idscan-redis"

	startTimeout = 30 * time.Second
)

// ContainerStatus represents the state of the Redis container.
type ContainerStatus string

const (
	StatusRunning   ContainerStatus = "running"
	StatusStopped   ContainerStatus = "stopped"
	StatusNotFound  ContainerStatus = "not_found"
	StatusUnhealthy ContainerStatus = "unhealthy"
	StatusStarting  ContainerStatus = "starting"
)

// ErrNotFound is returned by operations that need an existing container.
var ErrNotFound = errors.New("container not found")

// Config holds configuration for the Docker manager.
type Config struct {
	ContainerName string
	Image         string
	DataPath      string // host directory mounted at /data; empty keeps data in the container
	HostPort      string
	Labels        map[string]string
}

// Manager manages the Redis container lifecycle.
type Manager struct {
	cli           *client.Client
	containerName string
	imageName     string
	dataPath      string
	hostPort      string
	labels        map[string]string
}

// NewManager creates a Docker manager. It does not contact the daemon.
func NewManager(cfg Config) (*Manager, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if cfg.ContainerName == "" {
		cfg.ContainerName = DefaultContainerName
	}
	if cfg.Image == "" {
		cfg.Image = DefaultImage
	}
	if cfg.HostPort == "" {
		cfg.HostPort = DefaultPort
	}

	labels := map[string]string{Label: "true"}
	for k, v := range cfg.Labels {
		labels[k] = v
	}

	return &Manager{
		cli:           cli,
		containerName: cfg.ContainerName,
		imageName:     cfg.Image,
		dataPath:      cfg.DataPath,
		hostPort:      cfg.HostPort,
		labels:        labels,
	}, nil
}

// Close closes the Docker client.
func (m *Manager) Close() error {
	return m.cli.Close()
}

// ContainerName returns the managed container's name.
func (m *Manager) ContainerName() string {
	return m.containerName
}

// Addr returns the host address Redis listens on.
func (m *Manager) Addr() string {
	return net.JoinHostPort("127.0.0.1", m.hostPort)
}

// URL returns a go-redis connection URL for the container.
func (m *Manager) URL() string {
	return "redis://" + m.Addr() + "/0"
}

// Start creates or resumes the container and waits until Redis answers.
// It is a no-op when the container is already running.
func (m *Manager) Start(ctx context.Context) error {
	if _, err := m.cli.Ping(ctx); err != nil {
		return fmt.Errorf("docker is not running: %w", err)
	}

	status, containerID, err := m.containerStatus(ctx)
	if err != nil {
		return err
	}

	switch status {
	case StatusRunning:
		return nil
	case StatusStopped:
		if err := m.ValidateExisting(ctx); err != nil {
			return err
		}
		if err := m.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
			return fmt.Errorf("failed to start existing container: %w", err)
		}
		return m.WaitReady(ctx, startTimeout)
	case StatusNotFound:
		return m.createAndStart(ctx)
	default:
		return fmt.Errorf("container in unexpected state: %s", status)
	}
}

// Stop stops the container, keeping its data.
func (m *Manager) Stop(ctx context.Context) error {
	status, containerID, err := m.containerStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound || status == StatusStopped {
		return nil
	}

	timeout := 10
	if err := m.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop container: %w", err)
	}
	return nil
}

// Remove stops and removes the container. The host data directory is left
// in place.
func (m *Manager) Remove(ctx context.Context) error {
	status, containerID, err := m.containerStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound {
		return nil
	}

	if err := m.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("failed to remove container: %w", err)
	}
	return nil
}

// Status returns the current status of the container.
func (m *Manager) Status(ctx context.Context) (ContainerStatus, error) {
	status, _, err := m.containerStatus(ctx)
	return status, err
}

// Logs returns the last tail lines of container output ("all" for everything).
func (m *Manager) Logs(ctx context.Context, tail string) (string, error) {
	status, containerID, err := m.containerStatus(ctx)
	if err != nil {
		return "", err
	}
	if status == StatusNotFound {
		return "", ErrNotFound
	}

	logs, err := m.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       tail,
	})
	if err != nil {
		return "", fmt.Errorf("failed to get logs: %w", err)
	}
	defer logs.Close()

	data, err := io.ReadAll(logs)
	if err != nil {
		return "", fmt.Errorf("failed to read logs: %w", err)
	}
	return string(data), nil
}

// ValidateExisting checks that an existing container binds the expected
// port and data directory.
func (m *Manager) ValidateExisting(ctx context.Context) error {
	status, containerID, err := m.containerStatus(ctx)
	if err != nil {
		return err
	}
	if status == StatusNotFound {
		return nil
	}

	info, err := m.cli.ContainerInspect(ctx, containerID)
	if err != nil {
		return fmt.Errorf("failed to inspect container: %w", err)
	}
	if info.HostConfig == nil {
		return fmt.Errorf("existing container has no host config")
	}
	return checkExisting(info.HostConfig.PortBindings, info.Mounts, m.hostPort, m.dataPath)
}

// WaitReady pings Redis until it answers or timeout elapses.
func (m *Manager) WaitReady(ctx context.Context, timeout time.Duration) error {
	return waitForRedis(ctx, m.Addr(), timeout)
}

func (m *Manager) createAndStart(ctx context.Context) error {
	if err := m.ensureImage(ctx); err != nil {
		return err
	}

	cfg, hostCfg := m.containerSpec()
	resp, err := m.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, m.containerName)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	if err := m.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = m.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start container: %w", err)
	}

	return m.WaitReady(ctx, startTimeout)
}

// containerSpec builds the create request. Redis runs with an append-only
// file under /data so queued jobs survive restarts.
func (m *Manager) containerSpec() (*container.Config, *container.HostConfig) {
	cfg := &container.Config{
		Image:  m.imageName,
		Cmd:    []string{"redis-server", "--appendonly", "yes", "--dir", DataDir},
		Labels: m.labels,
		ExposedPorts: nat.PortSet{
			ContainerPort: struct{}{},
		},
		Healthcheck: &container.HealthConfig{
			Test:        []string{"CMD", "redis-cli", "ping"},
			Interval:    2 * time.Second,
			Timeout:     3 * time.Second,
			Retries:     10,
			StartPeriod: 2 * time.Second,
		},
	}

	hostCfg := &container.HostConfig{
		PortBindings: nat.PortMap{
			ContainerPort: []nat.PortBinding{
				{HostIP: "127.0.0.1", HostPort: m.hostPort},
			},
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}
	if m.dataPath != "" {
		hostCfg.Mounts = []mount.Mount{
			{Type: mount.TypeBind, Source: m.dataPath, Target: DataDir},
		}
	}
	return cfg, hostCfg
}

func (m *Manager) containerStatus(ctx context.Context) (ContainerStatus, string, error) {
	filterArgs := filters.NewArgs()
	filterArgs.Add("name", "^/"+m.containerName+"$")

	containers, err := m.cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filterArgs,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return StatusNotFound, "", nil
	}

	c := containers[0]
	return statusFromState(string(c.State)), c.ID, nil
}

func statusFromState(state string) ContainerStatus {
	switch state {
	case "running":
		return StatusRunning
	case "exited", "dead", "created":
		return StatusStopped
	case "restarting":
		return StatusStarting
	default:
		return ContainerStatus(state)
	}
}

func checkExisting(bindings nat.PortMap, mounts []container.MountPoint, hostPort, dataPath string) error {
	bound := bindings[ContainerPort]
	if len(bound) == 0 {
		return fmt.Errorf("existing container has no port binding for %s", ContainerPort)
	}
	if bound[0].HostPort != hostPort {
		return fmt.Errorf("existing container bound to port %s, expected %s", bound[0].HostPort, hostPort)
	}

	if dataPath == "" {
		return nil
	}
	for _, mnt := range mounts {
		if mnt.Destination != DataDir {
			continue
		}
		if mnt.Source != dataPath {
			return fmt.Errorf("existing container mounts %s, expected %s", mnt.Source, dataPath)
		}
		return nil
	}
	return fmt.Errorf("existing container has no mount for %s", DataDir)
}

func waitForRedis(ctx context.Context, addr string, timeout time.Duration) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: time.Second,
		ReadTimeout: time.Second,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	attempts := uint(timeout / (250 * time.Millisecond))
	if attempts == 0 {
		attempts = 1
	}
	return retry.Do(
		func() error {
			return rdb.Ping(ctx).Err()
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(250*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func (m *Manager) ensureImage(ctx context.Context) error {
	if _, err := m.cli.ImageInspect(ctx, m.imageName); err == nil {
		return nil
	}

	reader, err := m.cli.ImagePull(ctx, m.imageName, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}
