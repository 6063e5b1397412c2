package models

import "time"

// 充电结果
type Outcome string

const (
	OutcomeSuccessful Outcome = "successful"
	OutcomeFailed     Outcome = "failed"
)

// 充电类型
type ChargingType string

const (
	ChargingTypeAC ChargingType = "ac"
	ChargingTypeDC ChargingType = "dc"
)

const (
	// UnknownLocation 没有地址时的占位名
	UnknownLocation = "Unknown Location"
	// UnknownProvider 没有运营商时的占位名
	UnknownProvider = "Unknown"
)

// RawRecord 原始充电记录（统一格式）
// EnergyAddedHvb 为 nil 表示数据源没有提供电池增加电量，EnergyFromGrid 为 nil 表示没有电网侧电量
type RawRecord struct {
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	SocStart       float64   `json:"soc_start"`
	SocEnd         float64   `json:"soc_end"`
	EnergyFromGrid *float64  `json:"energy_from_grid,omitempty"` // kWh，电网侧电量
	EnergyAddedHvb *float64  `json:"energy_added_hvb,omitempty"`
	AvgPower       float64   `json:"avg_power"`
	GridPowerStart []float64 `json:"grid_power_start"`
	Location       string    `json:"location"`
	LocationID     string    `json:"location_id,omitempty"`
	Provider       string    `json:"provider"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	Mileage        float64   `json:"mileage"`
	Cost           float64   `json:"cost"`
}

// Session 解析后的充电记录
type Session struct {
	ID                 string       `json:"id"`
	StartTime          time.Time    `json:"start_time"`
	EndTime            time.Time    `json:"end_time"`
	SocStart           float64      `json:"soc_start"`
	SocEnd             float64      `json:"soc_end"`
	EnergyFromGrid     float64      `json:"energy_from_grid"`      // kWh
	EnergyAddedHvb     float64      `json:"energy_added_hvb"`      // kWh
	EnergyEstimated    bool         `json:"energy_estimated"`      // 电池电量为估算值
	GridEstimated      bool         `json:"grid_energy_estimated"` // 电网电量由功率和时长推算
	Efficiency         *float64     `json:"efficiency"`            // 0-1，电网电量为 0 时为空
	Cost               float64      `json:"cost"`
	AvgPower           float64      `json:"avg_power"` // kW
	MaxPower           float64      `json:"max_power"` // kW
	GridPowerStart     []float64    `json:"grid_power_start"`
	ChargingType       ChargingType `json:"charging_type"`
	Location           string       `json:"location"`
	LocationID         string       `json:"location_id,omitempty"`
	Latitude           *float64     `json:"latitude"`
	Longitude          *float64     `json:"longitude"`
	Provider           string       `json:"provider"`
	Mileage            float64      `json:"mileage"` // km
	SessionTimeMinutes float64      `json:"session_time_minutes"`
}

// SocChange 本次充电的 SOC 变化
func (s *Session) SocChange() float64 {
	return s.SocEnd - s.SocStart
}

// HasCoordinates 是否有经纬度
func (s *Session) HasCoordinates() bool {
	return s.Latitude != nil && s.Longitude != nil
}

// FleetSession 匿名化的车队充电记录（不含位置信息）
type FleetSession struct {
	Fingerprint     string    `json:"-"`
	Model           string    `json:"model"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	SocStart        float64   `json:"soc_start"`
	SocEnd          float64   `json:"soc_end"`
	EnergyFromGrid  float64   `json:"energy_from_grid"`
	EnergyAddedHvb  float64   `json:"energy_added_hvb"`
	EnergyEstimated bool      `json:"energy_estimated"`
	AvgPower        float64   `json:"avg_power"`
	Provider        string    `json:"provider"`
	Cost            float64   `json:"cost"`
}
