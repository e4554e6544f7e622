package docker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/errdefs"
	"github.com/example/bootstack/internal/models"
	"github.com/example/bootstack/internal/retry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAPI struct {
	inspectFunc       func(ctx context.Context, containerID string) (types.ContainerJSON, error)
	networkCreateFunc func(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
}

func (m *mockAPI) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	if m.inspectFunc != nil {
		return m.inspectFunc(ctx, containerID)
	}
	return runningContainer(nil), nil
}

func (m *mockAPI) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	if m.networkCreateFunc != nil {
		return m.networkCreateFunc(ctx, name, options)
	}
	return network.CreateResponse{ID: "net123"}, nil
}

type mockExecutor struct {
	calls       []composeCall
	executeFunc func(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

type composeCall struct {
	dir  string
	name string
	args []string
}

func (m *mockExecutor) ExecuteInDir(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, composeCall{dir: dir, name: name, args: args})
	if m.executeFunc != nil {
		return m.executeFunc(ctx, dir, name, args...)
	}
	return []byte{}, nil
}

func runningContainer(env []string) types.ContainerJSON {
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{Running: true},
		},
		Config: &container.Config{Env: env},
	}
}

func stoppedContainer() types.ContainerJSON {
	return types.ContainerJSON{
		ContainerJSONBase: &types.ContainerJSONBase{
			State: &types.ContainerState{Running: false},
		},
		Config: &container.Config{},
	}
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testDockerConfig() models.DockerConfig {
	return models.DockerConfig{
		Network:      "appstack",
		DBContainer:  "infra-db-1",
		WaitAttempts: 3,
		WaitInterval: time.Millisecond,
	}
}

func TestEnsureNetwork_Creates(t *testing.T) {
	svc := NewWithClients(testLogger(), &mockAPI{}, &mockExecutor{})

	result, err := svc.EnsureNetwork(context.Background(), "appstack")
	require.NoError(t, err)
	require.Nil(t, result.Error)
	assert.True(t, result.Created)
}

func TestEnsureNetwork_ConflictContinues(t *testing.T) {
	api := &mockAPI{
		networkCreateFunc: func(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
			return network.CreateResponse{}, errdefs.Conflict(errors.New("network appstack already exists"))
		},
	}
	svc := NewWithClients(testLogger(), api, &mockExecutor{})

	result, err := svc.EnsureNetwork(context.Background(), "appstack")
	require.NoError(t, err)
	require.Nil(t, result.Error)
	assert.False(t, result.Created)
}

func TestEnsureNetwork_OtherErrorReported(t *testing.T) {
	api := &mockAPI{
		networkCreateFunc: func(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
			return network.CreateResponse{}, errors.New("daemon unreachable")
		},
	}
	svc := NewWithClients(testLogger(), api, &mockExecutor{})

	result, err := svc.EnsureNetwork(context.Background(), "appstack")
	require.NoError(t, err)
	require.Error(t, result.Error)
	assert.Contains(t, result.Error.Error(), "daemon unreachable")
}

func TestContainerRunning(t *testing.T) {
	api := &mockAPI{
		inspectFunc: func(ctx context.Context, containerID string) (types.ContainerJSON, error) {
			return stoppedContainer(), nil
		},
	}
	svc := NewWithClients(testLogger(), api, &mockExecutor{})

	running, err := svc.ContainerRunning(context.Background(), "infra-db-1")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestContainerRunning_NotFound(t *testing.T) {
	api := &mockAPI{
		inspectFunc: func(ctx context.Context, containerID string) (types.ContainerJSON, error) {
			return types.ContainerJSON{}, errdefs.NotFound(errors.New("no such container"))
		},
	}
	svc := NewWithClients(testLogger(), api, &mockExecutor{})

	running, err := svc.ContainerRunning(context.Background(), "infra-db-1")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestContainerEnv(t *testing.T) {
	api := &mockAPI{
		inspectFunc: func(ctx context.Context, containerID string) (types.ContainerJSON, error) {
			return runningContainer([]string{"PATH=/usr/bin", "POSTGRES_USER=postgres"}), nil
		},
	}
	svc := NewWithClients(testLogger(), api, &mockExecutor{})

	user, err := svc.ContainerEnv(context.Background(), "infra-db-1", "POSTGRES_USER")
	require.NoError(t, err)
	assert.Equal(t, "postgres", user)

	_, err = svc.ContainerEnv(context.Background(), "infra-db-1", "POSTGRES_PASSWORD")
	require.Error(t, err)
}

func TestWaitForContainer_BecomesReady(t *testing.T) {
	inspects := 0
	api := &mockAPI{
		inspectFunc: func(ctx context.Context, containerID string) (types.ContainerJSON, error) {
			inspects++
			if inspects < 3 {
				return stoppedContainer(), nil
			}
			return runningContainer(nil), nil
		},
	}
	svc := NewWithClients(testLogger(), api, &mockExecutor{})

	result, err := svc.WaitForContainer(context.Background(), testDockerConfig())
	require.NoError(t, err)
	require.Nil(t, result.Error)

	assert.True(t, result.Ready)
	assert.Equal(t, 3, result.Attempts)
}

func TestWaitForContainer_Exhausted(t *testing.T) {
	api := &mockAPI{
		inspectFunc: func(ctx context.Context, containerID string) (types.ContainerJSON, error) {
			return stoppedContainer(), nil
		},
	}
	svc := NewWithClients(testLogger(), api, &mockExecutor{})

	result, err := svc.WaitForContainer(context.Background(), testDockerConfig())
	require.NoError(t, err)
	require.Error(t, result.Error)

	assert.False(t, result.Ready)
	assert.ErrorIs(t, result.Error, retry.ErrExhausted)
	assert.Equal(t, 3, result.Attempts)
}

func TestComposeUp(t *testing.T) {
	executor := &mockExecutor{}
	svc := NewWithClients(testLogger(), &mockAPI{}, executor)

	require.NoError(t, svc.ComposeUp(context.Background(), "/srv/appstack/infra", "db"))

	require.Len(t, executor.calls, 1)
	c := executor.calls[0]
	assert.Equal(t, "/srv/appstack/infra", c.dir)
	assert.Equal(t, "docker", c.name)
	assert.Equal(t, []string{"compose", "up", "-d", "db"}, c.args)
}

func TestComposeUp_Failure(t *testing.T) {
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
			return []byte("no configuration file provided"), errors.New("exit status 14")
		},
	}
	svc := NewWithClients(testLogger(), &mockAPI{}, executor)

	err := svc.ComposeUp(context.Background(), "/srv/appstack/infra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no configuration file provided")
}
