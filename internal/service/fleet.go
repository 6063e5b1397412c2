package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/models"
)

var (
	// ErrFleetDisabled 没有可用的车队存储
	ErrFleetDisabled = errors.New("fleet statistics are not available")
	// ErrModelRequired 共享数据时必须提供车型
	ErrModelRequired = errors.New("vehicle model is required when sharing data")
)

// FleetStore 车队匿名记录存储
type FleetStore interface {
	// SaveSessions 保存记录，按指纹去重，返回新增条数
	SaveSessions(ctx context.Context, sessions []models.FleetSession) (int, error)
	// ListSessions 按开始时间返回记录，model 为空时返回全部
	ListSessions(ctx context.Context, model string) ([]models.FleetSession, error)
	// AvailableModels 已有数据的车型
	AvailableModels(ctx context.Context) ([]string, error)
	// CountSessions 记录总数
	CountSessions(ctx context.Context) (int, error)
}

// BatteryHealth /api/battery-health 响应
type BatteryHealth struct {
	BatteryHealthData []models.CapacityPoint `json:"battery_health_data"`
	Trend             *models.CapacityTrend  `json:"trend,omitempty"`
	AvailableModels   []string               `json:"available_models"`
	ModelFilter       string                 `json:"model_filter"`
}

// ContributeResult 共享结果
type ContributeResult struct {
	Stored      int `json:"stored"`
	StoredCount int `json:"stored_count"`
}

// FleetService 跨用户统计服务
type FleetService struct {
	store  FleetStore
	engine *analytics.Engine
	logger *zap.Logger
}

// NewFleetService 创建车队服务，store 为 nil 时所有操作返回 ErrFleetDisabled
func NewFleetService(store FleetStore, engine *analytics.Engine, logger *zap.Logger) *FleetService {
	return &FleetService{
		store:  store,
		engine: engine,
		logger: logger,
	}
}

// Enabled 是否有可用存储
func (s *FleetService) Enabled() bool {
	return s != nil && s.store != nil
}

// Contribute 匿名化并保存用户上传的记录
func (s *FleetService) Contribute(ctx context.Context, sessions []models.Session, model string) (*ContributeResult, error) {
	if !s.Enabled() {
		return nil, ErrFleetDisabled
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, ErrModelRequired
	}

	fleet := make([]models.FleetSession, 0, len(sessions))
	for i := range sessions {
		fleet = append(fleet, analytics.ToFleetSession(&sessions[i], model))
	}

	stored, err := s.store.SaveSessions(ctx, fleet)
	if err != nil {
		return nil, fmt.Errorf("save fleet sessions: %w", err)
	}

	total, err := s.store.CountSessions(ctx)
	if err != nil {
		s.logger.Warn("Failed to count fleet sessions", zap.Error(err))
		total = stored
	}

	s.logger.Info("Stored fleet sessions",
		zap.String("model", model),
		zap.Int("submitted", len(fleet)),
		zap.Int("stored", stored))

	return &ContributeResult{Stored: stored, StoredCount: total}, nil
}

// sessions 读取车队记录并转换为 Session
func (s *FleetService) sessions(ctx context.Context, model string) ([]models.Session, error) {
	fleet, err := s.store.ListSessions(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("list fleet sessions: %w", err)
	}

	sessions := make([]models.Session, 0, len(fleet))
	for i := range fleet {
		sessions = append(sessions, analytics.FromFleetSession(&fleet[i]))
	}
	return sessions, nil
}

// AnonymousStats 全部车队记录的统计
func (s *FleetService) AnonymousStats(ctx context.Context) (models.AnonymousStats, error) {
	if !s.Enabled() {
		return models.AnonymousStats{}, ErrFleetDisabled
	}

	sessions, err := s.sessions(ctx, "")
	if err != nil {
		return models.AnonymousStats{}, err
	}
	return s.engine.AnonymousStats(sessions), nil
}

// BatteryHealth 车队电池容量趋势，可按车型过滤
func (s *FleetService) BatteryHealth(ctx context.Context, model string) (*BatteryHealth, error) {
	if !s.Enabled() {
		return nil, ErrFleetDisabled
	}

	sessions, err := s.sessions(ctx, model)
	if err != nil {
		return nil, err
	}

	available, err := s.store.AvailableModels(ctx)
	if err != nil {
		// 车型列表只用于筛选，失败时继续返回数据
		s.logger.Warn("Failed to list fleet models", zap.Error(err))
		available = []string{}
	}

	estimate := s.engine.EstimateCapacity(sessions)
	return &BatteryHealth{
		BatteryHealthData: estimate.Points,
		Trend:             estimate.Trend,
		AvailableModels:   available,
		ModelFilter:       model,
	}, nil
}

// MemoryFleetStore 内存中的车队存储，没有配置数据库时使用
type MemoryFleetStore struct {
	mu       sync.RWMutex
	sessions []models.FleetSession
	seen     map[string]bool
}

// NewMemoryFleetStore 创建内存存储
func NewMemoryFleetStore() *MemoryFleetStore {
	return &MemoryFleetStore{seen: make(map[string]bool)}
}

func (m *MemoryFleetStore) SaveSessions(ctx context.Context, sessions []models.FleetSession) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := 0
	for _, fs := range sessions {
		if m.seen[fs.Fingerprint] {
			continue
		}
		m.seen[fs.Fingerprint] = true
		m.sessions = append(m.sessions, fs)
		stored++
	}
	return stored, nil
}

func (m *MemoryFleetStore) ListSessions(ctx context.Context, model string) ([]models.FleetSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.FleetSession, 0, len(m.sessions))
	for _, fs := range m.sessions {
		if model == "" || fs.Model == model {
			result = append(result, fs)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartTime.Before(result[j].StartTime)
	})
	return result, nil
}

func (m *MemoryFleetStore) AvailableModels(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := make(map[string]bool)
	names := make([]string, 0)
	for _, fs := range m.sessions {
		if !set[fs.Model] {
			set[fs.Model] = true
			names = append(names, fs.Model)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryFleetStore) CountSessions(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions), nil
}
