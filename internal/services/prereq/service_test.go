package prereq

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockExecutor struct {
	executeFunc  func(ctx context.Context, name string, args ...string) ([]byte, error)
	lookPathFunc func(name string) (string, error)
}

func (m *mockExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, name, args...)
	}
	return []byte{}, nil
}

func (m *mockExecutor) LookPath(name string) (string, error) {
	if m.lookPathFunc != nil {
		return m.lookPathFunc(name)
	}
	return "/usr/bin/" + name, nil
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func TestCheckRoot(t *testing.T) {
	svc := NewWithExecutor(testLogger(), &mockExecutor{}, func() int { return 0 })
	require.NoError(t, svc.CheckRoot())

	svc = NewWithExecutor(testLogger(), &mockExecutor{}, func() int { return 1000 })
	err := svc.CheckRoot()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uid 1000")
}

func TestEnsureTools_AllPresent(t *testing.T) {
	var installed [][]string
	executor := &mockExecutor{
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			installed = append(installed, append([]string{name}, args...))
			return []byte{}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), executor, func() int { return 0 })
	require.NoError(t, svc.EnsureTools(context.Background(), RequiredTools))

	// Nothing should be installed when every tool resolves on the PATH.
	assert.Empty(t, installed)
}

func TestEnsureTools_InstallsMissing(t *testing.T) {
	var installed [][]string
	executor := &mockExecutor{
		lookPathFunc: func(name string) (string, error) {
			if name == "git" {
				return "", errors.New("not found")
			}
			return "/usr/bin/" + name, nil
		},
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			installed = append(installed, append([]string{name}, args...))
			return []byte{}, nil
		},
	}

	svc := NewWithExecutor(testLogger(), executor, func() int { return 0 })
	require.NoError(t, svc.EnsureTools(context.Background(), RequiredTools))

	require.Len(t, installed, 1)
	assert.Equal(t, []string{"apt-get", "install", "-y", "git"}, installed[0])
}

func TestEnsureTools_InstallFails(t *testing.T) {
	executor := &mockExecutor{
		lookPathFunc: func(name string) (string, error) {
			return "", errors.New("not found")
		},
		executeFunc: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return []byte("E: unable to locate package"), errors.New("exit status 100")
		},
	}

	svc := NewWithExecutor(testLogger(), executor, func() int { return 0 })
	err := svc.EnsureTools(context.Background(), []string{"git"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unable to locate package")
}

func TestEnsureTools_UninstallableTool(t *testing.T) {
	executor := &mockExecutor{
		lookPathFunc: func(name string) (string, error) {
			return "", errors.New("not found")
		},
	}

	svc := NewWithExecutor(testLogger(), executor, func() int { return 0 })
	err := svc.EnsureTools(context.Background(), []string{"uplink"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "install it manually")
}
