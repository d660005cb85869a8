package testutil

import (
	"context"
	"io"
	"maps"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	"github.com/pseudomuto/departure/pkg/config"
	"github.com/pseudomuto/departure/pkg/docker"
	"github.com/stretchr/testify/require"
)

// ErrContainerNotFound is what FakeDockerClient returns for unknown containers.
var ErrContainerNotFound = errors.Wrap(cerrdefs.ErrNotFound, "container not found")

// SkipIfNoDocker skips the test if Docker is not available
func SkipIfNoDocker(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("Docker not available")
	}

	cmd := exec.CommandContext(t.Context(), "docker", "ps")
	if err := cmd.Run(); err != nil {
		t.Skip("Docker daemon not running")
	}
}

// StartMySQLContainer starts a MySQL container that is terminated when the test ends, and
// returns its connection settings.
func StartMySQLContainer(t *testing.T) (*docker.MySQLContainer, config.Connection) {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	ctr := docker.NewMySQL(docker.DockerOptions{})
	require.NoError(t, ctr.Start(ctx), "Failed to start MySQL container")
	t.Cleanup(func() { _ = ctr.Stop(context.Background()) })

	conn, err := ctr.Connection(ctx)
	require.NoError(t, err, "Failed to get container connection")

	return ctr, conn
}

// FakeDockerClient is an in-memory docker.DockerClient. It tracks containers by name
// the way the daemon does and reports unknown names with a not-found error.
type FakeDockerClient struct {
	// StopErr, when set, is returned by ContainerStop for every container.
	StopErr error

	mu         sync.Mutex
	pulled     []string
	containers map[string]*container.InspectResponse
}

// NewFakeDockerClient returns a client with no containers.
func NewFakeDockerClient() *FakeDockerClient {
	return &FakeDockerClient{containers: make(map[string]*container.InspectResponse)}
}

// Run registers a running container, as if it had been started outside the test.
func (f *FakeDockerClient) Run(name, img string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.containers[name] = &container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    "id-" + name,
			Name:  "/" + name,
			State: &container.State{Running: true, Status: "running"},
		},
		Config: &container.Config{Image: img},
	}
}

// Has reports whether a container with the given name exists.
func (f *FakeDockerClient) Has(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.containers[name]
	return ok
}

// Pulled returns the images pulled so far.
func (f *FakeDockerClient) Pulled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.pulled)
}

func (f *FakeDockerClient) ImagePull(_ context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pulled = append(f.pulled, ref)
	return io.NopCloser(strings.NewReader(`{"status":"Downloaded newer image for ` + ref + `"}`)), nil
}

func (f *FakeDockerClient) ContainerCreate(_ context.Context, cfg *container.Config, _ *container.HostConfig, _ *network.NetworkingConfig, _ *v1.Platform, name string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.containers[name]; ok {
		return container.CreateResponse{}, errors.Errorf("conflict: container name %s is already in use", name)
	}

	f.containers[name] = &container.InspectResponse{
		ContainerJSONBase: &container.ContainerJSONBase{
			ID:    "id-" + name,
			Name:  "/" + name,
			State: &container.State{Status: "created"},
		},
		Config: cfg,
	}

	return container.CreateResponse{ID: name}, nil
}

func (f *FakeDockerClient) ContainerStart(_ context.Context, name string, _ container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[name]
	if !ok {
		return ErrContainerNotFound
	}

	c.State = &container.State{Running: true, Status: "running"}
	return nil
}

func (f *FakeDockerClient) ContainerList(context.Context, container.ListOptions) ([]container.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	summaries := make([]container.Summary, 0, len(f.containers))
	for _, name := range slices.Sorted(maps.Keys(f.containers)) {
		c := f.containers[name]
		summaries = append(summaries, container.Summary{
			ID:    c.ID,
			Names: []string{c.Name},
			Image: c.Config.Image,
			State: c.State.Status,
		})
	}

	return summaries, nil
}

func (f *FakeDockerClient) ContainerStop(_ context.Context, name string, _ container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.StopErr != nil {
		return f.StopErr
	}

	c, ok := f.containers[name]
	if !ok {
		return ErrContainerNotFound
	}

	c.State = &container.State{Status: "exited"}
	return nil
}

func (f *FakeDockerClient) ContainerRemove(_ context.Context, name string, _ container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.containers[name]; !ok {
		return ErrContainerNotFound
	}

	delete(f.containers, name)
	return nil
}

func (f *FakeDockerClient) ContainerInspect(_ context.Context, name string) (container.InspectResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.containers[name]
	if !ok {
		return container.InspectResponse{}, ErrContainerNotFound
	}

	return *c, nil
}
