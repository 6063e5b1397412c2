package state

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct{ id, from, to string }

func TestMachineLifecycle(t *testing.T) {
	var mu sync.Mutex
	var seen []transition
	m := NewMachine("ws-1", func(id, from, to string) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, transition{id, from, to})
	})

	assert.Equal(t, StateEmpty, m.CurrentState())

	require.NoError(t, m.Trigger(EventUpload, 10, 2))
	assert.Equal(t, StateUploaded, m.CurrentState())
	st := m.GetState()
	assert.Equal(t, 10, st.Sessions)
	assert.Equal(t, 2, st.Rejected)

	// 重复上传不是错误，但不会触发回调
	require.NoError(t, m.Trigger(EventUpload, 12, 0))
	assert.Equal(t, 12, m.GetState().Sessions)

	require.NoError(t, m.Trigger(EventShare, 0, 0))
	assert.Equal(t, StateShared, m.CurrentState())
	assert.Equal(t, 12, m.GetState().Sessions)

	require.NoError(t, m.Trigger(EventReset, 0, 0))
	assert.Equal(t, StateEmpty, m.CurrentState())
	assert.Zero(t, m.GetState().Sessions)

	assert.Equal(t, []transition{
		{"ws-1", StateEmpty, StateUploaded},
		{"ws-1", StateUploaded, StateShared},
		{"ws-1", StateShared, StateEmpty},
	}, seen)
}

func TestMachineDemoCannotBeShared(t *testing.T) {
	m := NewMachine("ws-1", nil)
	require.NoError(t, m.Trigger(EventLoadDemo, 140, 0))

	assert.False(t, m.CanTransition(EventShare))
	err := m.Trigger(EventShare, 0, 0)
	assert.True(t, errors.Is(err, ErrTransition))
	assert.Equal(t, StateDemo, m.CurrentState())
}

func TestMachineShareRequiresUpload(t *testing.T) {
	m := NewMachine("ws-1", nil)
	assert.True(t, errors.Is(m.Trigger(EventShare, 0, 0), ErrTransition))

	// 重置空工作区不是错误
	assert.NoError(t, m.Trigger(EventReset, 0, 0))
}

func TestManager(t *testing.T) {
	mgr := NewManager(nil)

	a := mgr.GetOrCreate("a")
	assert.Same(t, a, mgr.GetOrCreate("a"))
	mgr.GetOrCreate("b")

	require.NoError(t, a.Trigger(EventUpload, 3, 0))
	states := mgr.GetAllStates()
	require.Len(t, states, 2)
	assert.Equal(t, StateUploaded, states["a"].CurrentState)
	assert.Equal(t, StateEmpty, states["b"].CurrentState)

	mgr.Remove("a")
	_, ok := mgr.Get("a")
	assert.False(t, ok)
}
