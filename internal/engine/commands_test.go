package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(exec Executor, store *fakeVolumes, out func(*Plan) error) *Bus {
	var planner *Planner
	if store != nil {
		planner = NewPlanner(store, nil)
	} else {
		planner = NewPlanner(nil, nil)
	}
	return NewBus(&Deps{
		Planner: planner,
		Runner:  NewRunner(exec, nil),
		Output:  out,
		Up:      UpOptions{NoRecreate: true},
	})
}

func TestBus_Up(t *testing.T) {
	exec := &recorder{}
	store := &fakeVolumes{volumes: map[string]string{}}

	err := newTestBus(exec, store, nil).Dispatch(context.Background(), "up", shopInput())
	require.NoError(t, err)
	require.Len(t, exec.calls, 3)
	assert.Equal(t, "pod create --name=shop --share cgroup,uts -p 8080:80", exec.calls[0])
	assert.Equal(t, []string{"shop_data"}, store.created)
}

func TestBus_DownSkipsVolumes(t *testing.T) {
	exec := &recorder{}
	store := &fakeVolumes{volumes: map[string]string{}}

	err := newTestBus(exec, store, nil).Dispatch(context.Background(), "down", shopInput())
	require.NoError(t, err)
	assert.Empty(t, store.created)
	assert.Equal(t, "pod rm shop", exec.calls[len(exec.calls)-1])
}

func TestBus_Config(t *testing.T) {
	exec := &recorder{}
	var got *Plan

	err := newTestBus(exec, nil, func(p *Plan) error {
		got = p
		return nil
	}).Dispatch(context.Background(), "config", shopInput())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, got.Containers, 2)
	assert.Empty(t, exec.calls)
}

func TestBus_NotImplemented(t *testing.T) {
	bus := newTestBus(&recorder{}, nil, nil)

	for _, cmd := range []string{"build", "pull", "push"} {
		err := bus.Dispatch(context.Background(), cmd, shopInput())
		assert.ErrorIs(t, err, ErrNotImplemented, cmd)
	}
}

func TestBus_PlanErrorStopsExecution(t *testing.T) {
	exec := &recorder{}
	in := shopInput()
	in.Strategy = "mesh"

	err := newTestBus(exec, nil, nil).Dispatch(context.Background(), "up", in)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command up")
	assert.Empty(t, exec.calls)
}
