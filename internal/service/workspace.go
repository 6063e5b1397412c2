package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/models"
	"github.com/langchou/chargegazer/internal/state"
	"github.com/langchou/chargegazer/pkg/ws"
)

// ErrWorkspaceNotFound 工作区不存在或已过期
var ErrWorkspaceNotFound = errors.New("workspace not found")

// Notifier 数据集事件通知，通常是 *ws.Hub
type Notifier interface {
	BroadcastDatasetLoaded(workspaceID string, loaded ws.DatasetLoaded)
	BroadcastDatasetReset(workspaceID string)
}

// Dataset 工作区的一份充电记录快照，创建后不再修改
type Dataset struct {
	Sessions []models.Session
	Rejected int
	Kind     string
	LoadedAt time.Time

	byID map[string]int
}

func newDataset(sessions []models.Session, rejected int, kind string) *Dataset {
	d := &Dataset{
		Sessions: sessions,
		Rejected: rejected,
		Kind:     kind,
		LoadedAt: time.Now(),
		byID:     make(map[string]int, len(sessions)),
	}
	for i := range sessions {
		// 相同 ID 保留第一条
		if _, ok := d.byID[sessions[i].ID]; !ok {
			d.byID[sessions[i].ID] = i
		}
	}
	return d
}

var emptyDataset = newDataset([]models.Session{}, 0, state.StateEmpty)

// Session 按 ID 查找
func (d *Dataset) Session(id string) (models.Session, bool) {
	i, ok := d.byID[id]
	if !ok {
		return models.Session{}, false
	}
	return d.Sessions[i], true
}

// Workspace 一个浏览器会话的数据
type Workspace struct {
	ID        string
	CreatedAt time.Time

	mu           sync.RWMutex
	dataset      *Dataset
	lastAccessed time.Time
	machine      *state.Machine
}

// Dataset 当前快照，没有数据时返回空快照
func (w *Workspace) Dataset() *Dataset {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.dataset == nil {
		return emptyDataset
	}
	return w.dataset
}

// State 当前数据集状态
func (w *Workspace) State() *state.DatasetState {
	return w.machine.GetState()
}

func (w *Workspace) touch() {
	w.mu.Lock()
	w.lastAccessed = time.Now()
	w.mu.Unlock()
}

func (w *Workspace) idleSince() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastAccessed
}

// LoadResult 上传或加载演示数据的结果
type LoadResult struct {
	Count    int      `json:"count"`
	Rejected int      `json:"rejected"`
	Kind     string   `json:"kind"`
	Errors   []string `json:"errors,omitempty"`
}

// 响应中最多返回的解析错误条数
const maxReportedErrors = 20

// WorkspaceService 工作区服务
type WorkspaceService struct {
	logger   *zap.Logger
	fleet    *FleetService
	notifier Notifier
	states   *state.Manager
	ttl      time.Duration
	interval time.Duration

	mu         sync.RWMutex
	workspaces map[string]*Workspace
	stopCh     chan struct{}
	wg         sync.WaitGroup
	running    bool
}

// NewWorkspaceService 创建工作区服务
func NewWorkspaceService(logger *zap.Logger, fleet *FleetService, notifier Notifier, ttl, interval time.Duration) *WorkspaceService {
	svc := &WorkspaceService{
		logger:     logger,
		fleet:      fleet,
		notifier:   notifier,
		ttl:        ttl,
		interval:   interval,
		workspaces: make(map[string]*Workspace),
		stopCh:     make(chan struct{}),
	}

	// 创建状态管理器
	svc.states = state.NewManager(svc.onStateChange)

	return svc
}

// Start 启动过期清理
func (s *WorkspaceService) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.cleanupLoop(ctx)

	s.logger.Info("Workspace service started",
		zap.Duration("ttl", s.ttl),
		zap.Duration("cleanup_interval", s.interval))
}

// Stop 停止服务
func (s *WorkspaceService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()
	s.logger.Info("Workspace service stopped")
}

func (s *WorkspaceService) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.ExpireIdle(now)
		}
	}
}

// ExpireIdle 删除空闲超过 TTL 的工作区，返回删除数量
func (s *WorkspaceService) ExpireIdle(now time.Time) int {
	var expired []string

	s.mu.Lock()
	for id, w := range s.workspaces {
		if now.Sub(w.idleSince()) > s.ttl {
			delete(s.workspaces, id)
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		s.states.Remove(id)
		if s.notifier != nil {
			s.notifier.BroadcastDatasetReset(id)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("Expired idle workspaces", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// GetOrCreate 返回已有工作区，ID 为空或不存在时创建新的
func (s *WorkspaceService) GetOrCreate(id string) (*Workspace, bool) {
	if id != "" {
		if w, err := s.Get(id); err == nil {
			return w, false
		}
	}

	now := time.Now()
	w := &Workspace{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		lastAccessed: now,
	}
	w.machine = s.states.GetOrCreate(w.ID)

	s.mu.Lock()
	s.workspaces[w.ID] = w
	s.mu.Unlock()

	s.logger.Debug("Created workspace", zap.String("workspace_id", w.ID))
	return w, true
}

// Get 获取工作区并刷新访问时间
func (s *WorkspaceService) Get(id string) (*Workspace, error) {
	s.mu.RLock()
	w, ok := s.workspaces[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotFound, id)
	}
	w.touch()
	return w, nil
}

// Count 工作区数量
func (s *WorkspaceService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.workspaces)
}

// Upload 用解析结果替换工作区快照
func (s *WorkspaceService) Upload(w *Workspace, parsed analytics.ParseResult) (*LoadResult, error) {
	return s.load(w, parsed, nil)
}

// LoadDemo 加载演示数据
func (s *WorkspaceService) LoadDemo(w *Workspace, parsed analytics.ParseResult) (*LoadResult, error) {
	w.mu.Lock()
	err := w.machine.Trigger(state.EventLoadDemo, len(parsed.Sessions), parsed.Rejected)
	if err == nil {
		w.dataset = newDataset(parsed.Sessions, parsed.Rejected, state.StateDemo)
		w.lastAccessed = time.Now()
	}
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.loaded(w, parsed, state.StateDemo), nil
}

// UploadAndShare 先写入车队统计，成功后再替换工作区快照
// 共享失败时工作区保持原来的数据
func (s *WorkspaceService) UploadAndShare(ctx context.Context, w *Workspace, parsed analytics.ParseResult, model string) (*LoadResult, *ContributeResult, error) {
	shared, err := s.fleet.Contribute(ctx, parsed.Sessions, model)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.load(w, parsed, shared)
	if err != nil {
		return nil, nil, err
	}
	return result, shared, nil
}

// load 替换快照；shared 不为 nil 时数据已经写入车队统计，同时进入 shared 状态
func (s *WorkspaceService) load(w *Workspace, parsed analytics.ParseResult, shared *ContributeResult) (*LoadResult, error) {
	w.mu.Lock()
	err := w.machine.Trigger(state.EventUpload, len(parsed.Sessions), parsed.Rejected)
	if err == nil && shared != nil {
		err = w.machine.Trigger(state.EventShare, 0, 0)
	}
	kind := w.machine.CurrentState()
	if err == nil {
		w.dataset = newDataset(parsed.Sessions, parsed.Rejected, kind)
		w.lastAccessed = time.Now()
	}
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.loaded(w, parsed, kind), nil
}

func (s *WorkspaceService) loaded(w *Workspace, parsed analytics.ParseResult, kind string) *LoadResult {
	result := &LoadResult{
		Count:    len(parsed.Sessions),
		Rejected: parsed.Rejected,
		Kind:     kind,
	}
	for i, err := range parsed.Errors {
		if i == maxReportedErrors {
			break
		}
		result.Errors = append(result.Errors, err.Error())
	}

	if parsed.Rejected > 0 && len(parsed.Errors) > 0 {
		s.logger.Warn("Rejected invalid records",
			zap.String("workspace_id", w.ID),
			zap.Int("rejected", parsed.Rejected),
			zap.Error(parsed.Errors[0]))
	}
	s.logger.Info("Dataset loaded",
		zap.String("workspace_id", w.ID),
		zap.String("kind", kind),
		zap.Int("sessions", result.Count))

	if s.notifier != nil {
		s.notifier.BroadcastDatasetLoaded(w.ID, ws.DatasetLoaded{
			Count:    result.Count,
			Rejected: result.Rejected,
			Kind:     kind,
		})
	}
	return result
}

// Share 把工作区中用户上传的数据匿名共享到车队统计
// 写入车队存储期间不持有工作区锁
func (s *WorkspaceService) Share(ctx context.Context, w *Workspace, model string) (*ContributeResult, error) {
	w.mu.RLock()
	if !w.machine.CanTransition(state.EventShare) {
		current := w.machine.CurrentState()
		w.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s from %s", state.ErrTransition, state.EventShare, current)
	}
	snapshot := w.dataset
	w.mu.RUnlock()

	var sessions []models.Session
	if snapshot != nil {
		sessions = snapshot.Sessions
	}
	result, err := s.fleet.Contribute(ctx, sessions, model)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// 写入期间数据集被替换或清空，已保存的是旧数据，新数据仍未共享
	if w.dataset != snapshot {
		return nil, fmt.Errorf("%w: dataset changed while sharing", state.ErrTransition)
	}
	if err := w.machine.Trigger(state.EventShare, 0, 0); err != nil {
		return nil, err
	}
	w.dataset = newDataset(snapshot.Sessions, snapshot.Rejected, state.StateShared)
	return result, nil
}

// Reset 清空工作区数据
func (s *WorkspaceService) Reset(w *Workspace) error {
	w.mu.Lock()
	err := w.machine.Trigger(state.EventReset, 0, 0)
	if err == nil {
		w.dataset = nil
	}
	w.mu.Unlock()
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.BroadcastDatasetReset(w.ID)
	}
	return nil
}

// InitData 新 WebSocket 连接的初始数据
func (s *WorkspaceService) InitData(workspaceID string) interface{} {
	machine, ok := s.states.Get(workspaceID)
	if !ok {
		return &state.DatasetState{WorkspaceID: workspaceID, CurrentState: state.StateEmpty}
	}
	return machine.GetState()
}

func (s *WorkspaceService) onStateChange(workspaceID, from, to string) {
	s.logger.Info("Dataset state changed",
		zap.String("workspace_id", workspaceID),
		zap.String("from", from),
		zap.String("to", to))
}
