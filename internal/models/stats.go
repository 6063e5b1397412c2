package models

import "time"

// ProviderCount 运营商计数（用于 top 列表）
type ProviderCount struct {
	Provider string `json:"provider"`
	Count    int    `json:"count"`
}

// SessionStats 充电结果统计
type SessionStats struct {
	TotalSessions           int             `json:"total_sessions"`
	TotalSuccessfulSessions int             `json:"total_successful_sessions"`
	TotalFailedSessions     int             `json:"total_failed_sessions"`
	SuccessRate             float64         `json:"success_rate"`
	TopFailedProviders      []ProviderCount `json:"top_failed_providers"`
	TopSuccessfulProviders  []ProviderCount `json:"top_successful_providers"`
}

// SOCStats SOC 统计
type SOCStats struct {
	TotalSessions     int     `json:"total_sessions"`
	FailedSessions    int     `json:"failed_sessions"`
	AverageStartSoc   float64 `json:"average_start_soc"`
	AverageEndSoc     float64 `json:"average_end_soc"`
	LowestStartSoc    float64 `json:"lowest_start_soc"`
	Below80Count      int     `json:"below_80_count"`
	Exactly80Count    int     `json:"exactly_80_count"`
	Above80Count      int     `json:"above_80_count"`
	Above90Count      int     `json:"above_90_count"`
	Exactly100Count   int     `json:"exactly_100_count"`
	Above80Percentage float64 `json:"above_80_percentage"`
	Above90Percentage float64 `json:"above_90_percentage"`
}

// ChargingTypeStats AC/DC 分类统计
type ChargingTypeStats struct {
	Sessions       int     `json:"sessions"`
	EnergyFromGrid float64 `json:"energy_from_grid"`
	EnergyAdded    float64 `json:"energy_added"`
}

// EnergyStats 电量、损耗与费用
type EnergyStats struct {
	TotalEnergyFromGrid float64                             `json:"total_energy_from_grid"`
	TotalEnergyAdded    float64                             `json:"total_energy_added"`
	EnergyWastedKwh     float64                             `json:"energy_wasted_kwh"`
	EnergyWastedPercent float64                             `json:"energy_wasted_percentage"`
	TotalCost           float64                             `json:"total_cost"`
	CostPerKwh          float64                             `json:"cost_per_kwh"`
	PeakPower           float64                             `json:"peak_power"`
	PeakPowerSessionID  string                              `json:"peak_power_session_id,omitempty"`
	ChargingTypes       map[ChargingType]*ChargingTypeStats `json:"charging_types"`
}

// CapacityPoint 电池容量估算点
// Trend 为 nil 表示数据不足，无法拟合趋势
type CapacityPoint struct {
	Date                     time.Time `json:"date"`
	RawCapacity              float64   `json:"raw_capacity"`
	EstimatedBatteryCapacity float64   `json:"estimated_battery_capacity"`
	SocChange                float64   `json:"soc_change"`
	Trend                    *float64  `json:"trend,omitempty"`
	IsMonthlyAverage         bool      `json:"is_monthly_average"`
	Month                    string    `json:"month,omitempty"`
	Count                    int       `json:"count,omitempty"`
	SessionID                string    `json:"session_id,omitempty"`
}

// CapacityTrend 线性拟合结果及容量损失
type CapacityTrend struct {
	FittedOn     string    `json:"fitted_on"` // monthly | raw
	SlopePerYear float64   `json:"slope_per_year"`
	FirstDate    time.Time `json:"first_date"`
	LastDate     time.Time `json:"last_date"`
	FirstValue   float64   `json:"first_value"`
	LastValue    float64   `json:"last_value"`
	LossKwh      float64   `json:"loss_kwh"`
	LossPercent  float64   `json:"loss_percentage"`
}

// CapacityEstimate 容量估算输出
type CapacityEstimate struct {
	Points []CapacityPoint `json:"points"`
	Trend  *CapacityTrend  `json:"trend,omitempty"`
}

// StatsSnapshot 一次查询的统计结果
type StatsSnapshot struct {
	OverallEfficiency                 float64         `json:"overall_efficiency"`
	PowerConsumptionPer100km          float64         `json:"power_consumption_per_100km"`
	PowerConsumptionWithoutGridLosses float64         `json:"power_consumption_without_losses"`
	TotalDistanceKm                   float64         `json:"total_distance_km"`
	SessionStats                      SessionStats    `json:"session_stats"`
	SOCStats                          SOCStats        `json:"soc_stats"`
	Energy                            EnergyStats     `json:"energy"`
	EstimatedCapacity                 []CapacityPoint `json:"estimated_capacity"`
	CapacityTrend                     *CapacityTrend  `json:"capacity_trend,omitempty"`
	UsingEstimatedValues              bool            `json:"using_estimated_values"`
	DateFilterActive                  bool            `json:"date_filter_active"`
}

// GlobalStats 车队总体统计
type GlobalStats struct {
	TotalSessions      int     `json:"total_sessions"`
	SuccessfulSessions int     `json:"successful_sessions"`
	FailedSessions     int     `json:"failed_sessions"`
	SuccessRate        float64 `json:"success_rate"`
	TotalEnergyAdded   float64 `json:"total_energy_added"`
}

// AnonymousStats 跨用户匿名统计（不含位置与身份信息）
type AnonymousStats struct {
	GlobalStats       GlobalStats     `json:"global_stats"`
	OverallEfficiency float64         `json:"overall_efficiency"`
	SOCStats          SOCStats        `json:"soc_stats"`
	Energy            EnergyStats     `json:"energy"`
	AllProviders      []ProviderGroup `json:"all_providers"`
	UsingEstimated    bool            `json:"using_estimated_values"`
}
