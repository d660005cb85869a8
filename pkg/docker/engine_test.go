package docker_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	v1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/pkg/errors"
	. "github.com/pseudomuto/departure/pkg/docker"
	"github.com/stretchr/testify/require"
)

type mockClient struct {
	created    *container.Config
	hostConfig *container.HostConfig
	name       string
	started    []string
	stopped    []string
	removed    []string
	listOpts   container.ListOptions
	summaries  []container.Summary
	inspect    container.InspectResponse
	inspectErr error
	createErr  error
	stopErr    error
}

func (m *mockClient) ImagePull(_ context.Context, img string, _ image.PullOptions) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("pulled " + img)), nil
}

func (m *mockClient) ContainerCreate(_ context.Context, cfg *container.Config, host *container.HostConfig, _ *network.NetworkingConfig, _ *v1.Platform, name string) (container.CreateResponse, error) {
	m.created, m.hostConfig, m.name = cfg, host, name
	return container.CreateResponse{ID: "abc123"}, m.createErr
}

func (m *mockClient) ContainerStart(_ context.Context, id string, _ container.StartOptions) error {
	m.started = append(m.started, id)
	return nil
}

func (m *mockClient) ContainerList(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
	m.listOpts = opts
	return m.summaries, nil
}

func (m *mockClient) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	if m.stopErr != nil {
		return m.stopErr
	}

	m.stopped = append(m.stopped, id)
	return nil
}

func (m *mockClient) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockClient) ContainerInspect(context.Context, string) (container.InspectResponse, error) {
	return m.inspect, m.inspectErr
}

func TestEngineStart(t *testing.T) {
	cl := &mockClient{}
	engine := NewEngine(cl)

	id, err := engine.Start(t.Context(), ContainerOptions{
		Name:  "departure-dev",
		Image: "mysql:8.0",
		Env:   map[string]string{"MYSQL_ROOT_PASSWORD": "departure", "MYSQL_DATABASE": "blog"},
		Ports: map[int]int{13306: 3306},
	})
	require.NoError(t, err)
	require.Equal(t, "abc123", id)
	require.Equal(t, []string{"abc123"}, cl.started)

	require.Equal(t, "departure-dev", cl.name)
	require.Equal(t, "mysql:8.0", cl.created.Image)
	require.Equal(t, []string{"MYSQL_DATABASE=blog", "MYSQL_ROOT_PASSWORD=departure"}, cl.created.Env)
	require.Equal(t, "true", cl.created.Labels[ManagedLabel])
	require.Contains(t, cl.created.ExposedPorts, nat.Port("3306/tcp"))
	require.Equal(t, "13306", cl.hostConfig.PortBindings[nat.Port("3306/tcp")][0].HostPort)
}

func TestEngineStartCreateFails(t *testing.T) {
	cl := &mockClient{createErr: errors.New("name in use")}

	_, err := NewEngine(cl).Start(t.Context(), ContainerOptions{Name: "departure-dev", Image: "mysql:8.0"})
	require.ErrorContains(t, err, "failed to create container: departure-dev")
	require.Empty(t, cl.started)
}

func TestEnginePull(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewEngine(&mockClient{}).Pull(t.Context(), "mysql:8.0", &out))
	require.Equal(t, "pulled mysql:8.0", out.String())
}

func TestEngineList(t *testing.T) {
	cl := &mockClient{summaries: []container.Summary{
		{ID: "abc123", Names: []string{"/departure-dev"}, Image: "mysql:8.0", State: "running"},
	}}

	list, err := NewEngine(cl).List(t.Context())
	require.NoError(t, err)
	require.Equal(t, []*Container{{ID: "abc123", Name: "departure-dev", Image: "mysql:8.0", State: "running"}}, list)
	require.Equal(t, []string{ManagedLabel + "=true"}, cl.listOpts.Filters.Get("label"))
}

func TestEngineStop(t *testing.T) {
	t.Run("stops and removes", func(t *testing.T) {
		cl := &mockClient{}
		require.NoError(t, NewEngine(cl).Stop(t.Context(), "departure-dev"))
		require.Equal(t, []string{"departure-dev"}, cl.stopped)
		require.Equal(t, []string{"departure-dev"}, cl.removed)
	})

	t.Run("not found", func(t *testing.T) {
		cl := &mockClient{stopErr: cerrdefs.ErrNotFound}
		require.ErrorIs(t, NewEngine(cl).Stop(t.Context(), "departure-dev"), ErrNotFound)
		require.Empty(t, cl.removed)
	})
}

func TestEngineGet(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		cl := &mockClient{inspect: container.InspectResponse{
			ContainerJSONBase: &container.ContainerJSONBase{
				ID:    "abc123",
				Name:  "/departure-dev",
				State: &container.State{Status: "running"},
			},
			Config: &container.Config{Image: "mysql:8.0"},
		}}

		c, err := NewEngine(cl).Get(t.Context(), "departure-dev")
		require.NoError(t, err)
		require.Equal(t, &Container{ID: "abc123", Name: "departure-dev", Image: "mysql:8.0", State: "running"}, c)
	})

	t.Run("not found", func(t *testing.T) {
		cl := &mockClient{inspectErr: cerrdefs.ErrNotFound}

		_, err := NewEngine(cl).Get(t.Context(), "departure-dev")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("daemon error", func(t *testing.T) {
		cl := &mockClient{inspectErr: errors.New("daemon down")}

		_, err := NewEngine(cl).Get(t.Context(), "departure-dev")
		require.ErrorContains(t, err, "failed to inspect container")
	})
}
