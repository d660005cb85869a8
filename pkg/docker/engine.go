package docker

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
)

// ManagedLabel marks containers started by departure.
const ManagedLabel = "departure.managed"

// ErrNotFound is returned by Get when no container has the given name or id.
var ErrNotFound = errors.New("container not found")

type (
	// DockerClient is the subset of *client.Client the Engine uses.
	DockerClient interface {
		ImagePull(context.Context, string, image.PullOptions) (io.ReadCloser, error)
		ContainerCreate(context.Context, *container.Config, *container.HostConfig, *network.NetworkingConfig, *v1.Platform, string) (container.CreateResponse, error)
		ContainerStart(context.Context, string, container.StartOptions) error
		ContainerList(context.Context, container.ListOptions) ([]container.Summary, error)
		ContainerStop(context.Context, string, container.StopOptions) error
		ContainerRemove(context.Context, string, container.RemoveOptions) error
		ContainerInspect(context.Context, string) (container.InspectResponse, error)
	}

	// Engine manages long-lived containers, such as the development MySQL server.
	Engine struct {
		client DockerClient
	}

	// Container describes a container known to the Docker daemon.
	Container struct {
		ID    string
		Name  string
		Image string
		State string
	}

	// ContainerOptions configures Engine.Start.
	ContainerOptions struct {
		Name  string
		Image string
		Env   map[string]string

		// Ports maps host ports to container ports. A host port of 0 lets Docker pick.
		Ports map[int]int
	}
)

// NewEngine wraps a Docker client.
//
// Example:
//
//	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cli.Close()
//
//	engine := docker.NewEngine(cli)
func NewEngine(cl DockerClient) *Engine {
	return &Engine{client: cl}
}

// Pull pulls img, copying the daemon's progress stream to w.
func (e *Engine) Pull(ctx context.Context, img string, w io.Writer) error {
	out, err := e.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return errors.Wrapf(err, "failed to pull image: %s", img)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(w, out); err != nil {
		return errors.Wrapf(err, "failed to read pull progress: %s", img)
	}

	return nil
}

// Start creates and starts a container labeled with ManagedLabel and returns its id.
func (e *Engine) Start(ctx context.Context, opts ContainerOptions) (string, error) {
	env := make([]string, 0, len(opts.Env))
	for _, key := range slices.Sorted(maps.Keys(opts.Env)) {
		env = append(env, fmt.Sprintf("%s=%s", key, opts.Env[key]))
	}

	exposedPorts := make(nat.PortSet)
	portBindings := make(nat.PortMap)
	for hostPort, containerPort := range opts.Ports {
		port := nat.Port(fmt.Sprintf("%d/tcp", containerPort))
		exposedPorts[port] = struct{}{}

		binding := nat.PortBinding{HostIP: "127.0.0.1"}
		if hostPort > 0 {
			binding.HostPort = strconv.Itoa(hostPort)
		}
		portBindings[port] = append(portBindings[port], binding)
	}

	resp, err := e.client.ContainerCreate(
		ctx,
		&container.Config{
			Image:        opts.Image,
			Env:          env,
			ExposedPorts: exposedPorts,
			Labels:       map[string]string{ManagedLabel: "true"},
		},
		&container.HostConfig{PortBindings: portBindings},
		nil,
		nil,
		opts.Name,
	)
	if err != nil {
		return "", errors.Wrapf(err, "failed to create container: %s", opts.Name)
	}

	if err := e.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", errors.Wrapf(err, "failed to start container: %s", opts.Name)
	}

	return resp.ID, nil
}

// List returns the running containers started by departure.
func (e *Engine) List(ctx context.Context) ([]*Container, error) {
	list, err := e.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(
			filters.Arg("status", "running"),
			filters.Arg("label", ManagedLabel+"=true"),
		),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list running containers")
	}

	res := make([]*Container, len(list))
	for i, c := range list {
		var name string
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		res[i] = &Container{ID: c.ID, Name: name, Image: c.Image, State: string(c.State)}
	}

	return res, nil
}

// Stop stops and removes a container. It returns ErrNotFound when the daemon does not
// know it.
func (e *Engine) Stop(ctx context.Context, nameOrID string) error {
	timeout := 30
	if err := e.client.ContainerStop(ctx, nameOrID, container.StopOptions{Timeout: &timeout}); err != nil {
		if cerrdefs.IsNotFound(err) {
			return ErrNotFound
		}
		return errors.Wrapf(err, "failed to stop container: %s", nameOrID)
	}

	if err := e.client.ContainerRemove(ctx, nameOrID, container.RemoveOptions{Force: true}); err != nil {
		return errors.Wrapf(err, "failed to remove container: %s", nameOrID)
	}

	return nil
}

// Get inspects a container. It returns ErrNotFound when the daemon does not know it.
func (e *Engine) Get(ctx context.Context, nameOrID string) (*Container, error) {
	inspect, err := e.client.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrapf(err, "failed to inspect container: %s", nameOrID)
	}

	c := &Container{
		ID:   inspect.ID,
		Name: strings.TrimPrefix(inspect.Name, "/"),
	}
	if inspect.Config != nil {
		c.Image = inspect.Config.Image
	}
	if inspect.State != nil {
		c.State = string(inspect.State.Status)
	}

	return c, nil
}
