package container

import (
	"context"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/require"
)

func TestSpawnAndRemove(t *testing.T) {
	engine := NewFakeEngine()
	tracer := mocktracer.New()
	logger := hclog.NewNullLogger()

	h, err := Spawn(context.Background(), engine, logger, tracer, nil, "alpine:latest", nil)
	require.NoError(t, err)
	require.NotEmpty(t, h.ID())
	require.Len(t, h.DisplayID(), 12)

	h.Remove(context.Background())
	require.Contains(t, engine.Removed, h.ID())

	// Remove is idempotent.
	h.Remove(context.Background())
	require.Len(t, engine.Removed, 1)
}

func TestCheckedExecNonZero(t *testing.T) {
	engine := NewFakeEngine()
	engine.Responses["false"] = Output{ExitCode: 1, Stderr: []string{"boom"}}
	tracer := mocktracer.New()
	logger := hclog.NewNullLogger()

	h, err := Spawn(context.Background(), engine, logger, tracer, nil, "alpine:latest", nil)
	require.NoError(t, err)
	defer h.Remove(context.Background())

	_, err = h.CheckedExec(context.Background(), NewExecSpec("false"))
	require.Error(t, err)

	execErr, ok := err.(interface{ Error() string })
	require.True(t, ok)
	require.Contains(t, execErr.Error(), "boom")
}

func TestCheckedExecZero(t *testing.T) {
	engine := NewFakeEngine()
	engine.Responses["true"] = Output{ExitCode: 0}
	tracer := mocktracer.New()
	logger := hclog.NewNullLogger()

	h, err := Spawn(context.Background(), engine, logger, tracer, nil, "alpine:latest", nil)
	require.NoError(t, err)
	defer h.Remove(context.Background())

	_, err = h.CheckedExec(context.Background(), NewExecSpec("true"))
	require.NoError(t, err)
}
