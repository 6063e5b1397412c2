package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

// 数据集状态常量
const (
	StateEmpty    = "empty"
	StateUploaded = "uploaded"
	StateDemo     = "demo"
	StateShared   = "shared"
)

// 事件常量
const (
	EventUpload   = "upload"
	EventLoadDemo = "load_demo"
	EventShare    = "share"
	EventReset    = "reset"
)

// ErrTransition 当前状态不允许该事件
var ErrTransition = errors.New("illegal dataset transition")

// DatasetState 工作区数据集状态
type DatasetState struct {
	WorkspaceID  string    `json:"workspace_id"`
	CurrentState string    `json:"state"`
	Since        time.Time `json:"since"`
	Sessions     int       `json:"sessions"`
	Rejected     int       `json:"rejected"`
}

// Machine 工作区数据集状态机
type Machine struct {
	mu            sync.RWMutex
	workspaceID   string
	fsm           *fsm.FSM
	state         *DatasetState
	onStateChange func(workspaceID, from, to string)
}

// NewMachine 创建状态机
func NewMachine(workspaceID string, onStateChange func(workspaceID, from, to string)) *Machine {
	m := &Machine{
		workspaceID:   workspaceID,
		onStateChange: onStateChange,
		state: &DatasetState{
			WorkspaceID:  workspaceID,
			CurrentState: StateEmpty,
			Since:        time.Now(),
		},
	}

	m.fsm = fsm.NewFSM(
		StateEmpty,
		fsm.Events{
			// 任何状态都可以重新上传或加载演示数据
			{Name: EventUpload, Src: []string{StateEmpty, StateUploaded, StateDemo, StateShared}, Dst: StateUploaded},
			{Name: EventLoadDemo, Src: []string{StateEmpty, StateUploaded, StateDemo, StateShared}, Dst: StateDemo},

			// 只有用户自己上传的数据可以共享
			{Name: EventShare, Src: []string{StateUploaded}, Dst: StateShared},

			{Name: EventReset, Src: []string{StateEmpty, StateUploaded, StateDemo, StateShared}, Dst: StateEmpty},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.workspaceID, e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// GetState 获取完整状态
func (m *Machine) GetState() *DatasetState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// 返回副本
	stateCopy := *m.state
	stateCopy.CurrentState = m.fsm.Current()
	return &stateCopy
}

// Trigger 触发事件并更新数据集计数
// 目标状态与当前状态相同（例如重复上传）不算错误
func (m *Machine) Trigger(event string, sessions, rejected int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.fsm.Current()
	if err := m.fsm.Event(context.Background(), event); err != nil {
		var noTransition fsm.NoTransitionError
		var invalid fsm.InvalidEventError
		switch {
		case errors.As(err, &noTransition):
		case errors.As(err, &invalid):
			return fmt.Errorf("%w: %s from %s", ErrTransition, event, from)
		default:
			return fmt.Errorf("trigger event %s: %w", event, err)
		}
	}

	m.state.CurrentState = m.fsm.Current()
	m.state.Since = time.Now()
	switch event {
	case EventShare:
		// 共享不改变数据集
	case EventReset:
		m.state.Sessions, m.state.Rejected = 0, 0
	default:
		m.state.Sessions, m.state.Rejected = sessions, rejected
	}
	return nil
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Manager 状态机管理器
type Manager struct {
	mu       sync.RWMutex
	machines map[string]*Machine
	onChange func(workspaceID, from, to string)
}

// NewManager 创建管理器
func NewManager(onChange func(workspaceID, from, to string)) *Manager {
	return &Manager{
		machines: make(map[string]*Machine),
		onChange: onChange,
	}
}

// GetOrCreate 获取或创建状态机
func (m *Manager) GetOrCreate(workspaceID string) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	if machine, ok := m.machines[workspaceID]; ok {
		return machine
	}

	machine := NewMachine(workspaceID, m.onChange)
	m.machines[workspaceID] = machine
	return machine
}

// Get 获取状态机
func (m *Manager) Get(workspaceID string) (*Machine, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	machine, ok := m.machines[workspaceID]
	return machine, ok
}

// Remove 删除工作区的状态机
func (m *Manager) Remove(workspaceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.machines, workspaceID)
}

// GetAllStates 获取所有工作区状态
func (m *Manager) GetAllStates() map[string]*DatasetState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make(map[string]*DatasetState, len(m.machines))
	for id, machine := range m.machines {
		states[id] = machine.GetState()
	}
	return states
}
