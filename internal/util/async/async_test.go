package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunParallel_Empty(t *testing.T) {
	assert.NoError(t, RunParallel(context.Background(), nil))
}

func TestRunParallel_AllSucceed(t *testing.T) {
	var count atomic.Int32
	tasks := []Task{
		{Name: "a", Func: func(context.Context) error { count.Add(1); return nil }},
		{Name: "b", Func: func(context.Context) error { count.Add(1); return nil }},
		{Name: "c", Func: func(context.Context) error { count.Add(1); return nil }},
	}
	assert.NoError(t, RunParallel(context.Background(), tasks))
	assert.Equal(t, int32(3), count.Load())
}

func TestRunParallel_SiblingsRunDespiteFailure(t *testing.T) {
	var count atomic.Int32
	boom := errors.New("boom")
	tasks := []Task{
		{Name: "fails", Func: func(context.Context) error { return boom }},
		{Name: "ok-1", Func: func(context.Context) error { count.Add(1); return nil }},
		{Name: "ok-2", Func: func(context.Context) error { count.Add(1); return nil }},
	}

	err := RunParallel(context.Background(), tasks)
	require.Error(t, err)
	assert.Equal(t, int32(2), count.Load())

	var taskErrs TaskErrors
	require.ErrorAs(t, err, &taskErrs)
	require.Len(t, taskErrs, 1)
	assert.Equal(t, "fails", taskErrs[0].Name)
	assert.ErrorIs(t, err, boom)
}

func TestRunParallel_CollectsAllFailures(t *testing.T) {
	tasks := []Task{
		{Name: "a", Func: func(context.Context) error { return errors.New("a failed") }},
		{Name: "b", Func: func(context.Context) error { return errors.New("b failed") }},
		{Name: "c", Func: func(context.Context) error { return nil }},
	}

	err := RunParallel(context.Background(), tasks)
	require.Error(t, err)

	var taskErrs TaskErrors
	require.ErrorAs(t, err, &taskErrs)
	assert.Len(t, taskErrs, 2)
}
