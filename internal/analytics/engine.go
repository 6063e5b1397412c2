// Package analytics 充电记录分析引擎
//
// 引擎只做纯计算：输入是一份不可变的充电记录快照，输出是可直接序列化为 JSON 的统计结果。
// 所有方法都不修改输入，可以对同一份快照并发调用。
package analytics

import (
	"fmt"
	"math"
)

// 默认参数
const (
	DefaultSimilarityThreshold = 0.8
	DefaultMinGroupSessions    = 50
	DefaultTopProviders        = 5
	DefaultLocationPrecision   = 4
)

// Options 引擎参数
type Options struct {
	SimilarityThreshold  float64 // 运营商名称合并阈值 (0-1)
	MinGroupSessions     int     // 进入 top 列表的最少充电次数
	TopProviders         int     // top 列表长度
	LocationPrecision    int     // 地点聚合的经纬度小数位
	CapacityMinSocChange float64 // 容量估算的最小 SOC 变化
	CapacityMinEnergyKwh float64 // 容量估算的最小充入电量
}

// DefaultOptions 返回默认参数
func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: DefaultSimilarityThreshold,
		MinGroupSessions:    DefaultMinGroupSessions,
		TopProviders:        DefaultTopProviders,
		LocationPrecision:   DefaultLocationPrecision,
	}
}

// Engine 分析引擎
type Engine struct {
	opts Options
}

// New 创建分析引擎
func New(opts Options) (*Engine, error) {
	if err := ValidateThreshold(opts.SimilarityThreshold); err != nil {
		return nil, err
	}
	if opts.MinGroupSessions < 0 {
		return nil, fmt.Errorf("min group sessions must not be negative: %d", opts.MinGroupSessions)
	}
	if opts.TopProviders <= 0 {
		opts.TopProviders = DefaultTopProviders
	}
	if opts.LocationPrecision < 0 || opts.LocationPrecision > 8 {
		opts.LocationPrecision = DefaultLocationPrecision
	}
	return &Engine{opts: opts}, nil
}

// Options 返回当前参数
func (e *Engine) Options() Options {
	return e.opts
}

// ValidateThreshold 检查相似度阈值
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, threshold)
	}
	return nil
}
