package analytics

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/langchou/chargegazer/internal/models"
)

// 电量估算参数
const (
	DCPowerThreshold = 12.0 // kW，平均功率不低于该值视为直流快充
	DCEfficiency     = 0.98
	ACEfficiency     = 0.92
)

// ParseResult 批量解析结果
type ParseResult struct {
	Sessions []models.Session `json:"sessions"`
	Rejected int              `json:"rejected"`
	Errors   []error          `json:"-"`
}

// ParseRecords 批量解析，无效记录跳过并计数
func ParseRecords(raws []models.RawRecord) ParseResult {
	result := ParseResult{
		Sessions: make([]models.Session, 0, len(raws)),
	}

	for i := range raws {
		s, err := ParseRecord(raws[i])
		if err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, &RecordError{Index: i, Err: err})
			continue
		}
		result.Sessions = append(result.Sessions, s)
	}

	return result
}

// ParseRecord 将一条原始记录转换为 Session
func ParseRecord(raw models.RawRecord) (models.Session, error) {
	if err := validateRecord(&raw); err != nil {
		return models.Session{}, err
	}

	avgPower := raw.AvgPower
	if avgPower <= 0 && len(raw.GridPowerStart) > 0 {
		avgPower = mean(raw.GridPowerStart)
	}
	chargingType := ChargingTypeFor(avgPower)
	duration := raw.EndTime.Sub(raw.StartTime)

	// 没有电网侧电量时按平均功率和充电时长推算
	grid := 0.0
	gridEstimated := false
	if raw.EnergyFromGrid != nil {
		grid = *raw.EnergyFromGrid
	} else {
		grid = EstimateGridEnergy(avgPower, duration)
		gridEstimated = true
	}

	// 数据源有电池电量就直接使用，否则按充电类型估算
	energyAdded := 0.0
	estimated := false
	if raw.EnergyAddedHvb != nil {
		energyAdded = *raw.EnergyAddedHvb
	} else {
		energyAdded = EstimateEnergyAdded(grid, avgPower)
		estimated = true
	}

	var efficiency *float64
	if grid > 0 {
		eff := energyAdded / grid
		efficiency = &eff
	}

	location := strings.TrimSpace(raw.Location)
	if location == "" {
		location = models.UnknownLocation
	}
	provider := raw.Provider
	if strings.TrimSpace(provider) == "" {
		provider = models.UnknownProvider
	}

	var lat, lng *float64
	if raw.Latitude != nil && raw.Longitude != nil {
		la, lo := *raw.Latitude, *raw.Longitude
		lat, lng = &la, &lo
	}

	samples := make([]float64, len(raw.GridPowerStart))
	copy(samples, raw.GridPowerStart)

	return models.Session{
		ID:                 strconv.FormatInt(raw.StartTime.Unix(), 10),
		StartTime:          raw.StartTime,
		EndTime:            raw.EndTime,
		SocStart:           raw.SocStart,
		SocEnd:             raw.SocEnd,
		EnergyFromGrid:     grid,
		EnergyAddedHvb:     energyAdded,
		EnergyEstimated:    estimated,
		GridEstimated:      gridEstimated,
		Efficiency:         efficiency,
		Cost:               raw.Cost,
		AvgPower:           avgPower,
		MaxPower:           maxOf(samples),
		GridPowerStart:     samples,
		ChargingType:       chargingType,
		Location:           location,
		LocationID:         raw.LocationID,
		Latitude:           lat,
		Longitude:          lng,
		Provider:           provider,
		Mileage:            raw.Mileage,
		SessionTimeMinutes: duration.Minutes(),
	}, nil
}

// EstimateGridEnergy 平均功率 (kW) 乘以充电时长得到电网侧电量 (kWh)
func EstimateGridEnergy(avgPower float64, duration time.Duration) float64 {
	if avgPower <= 0 || duration <= 0 {
		return 0
	}
	return avgPower * duration.Hours()
}

// EstimateEnergyAdded 按电网电量估算充入电池的电量
func EstimateEnergyAdded(energyFromGrid, avgPower float64) float64 {
	if ChargingTypeFor(avgPower) == models.ChargingTypeDC {
		return energyFromGrid * DCEfficiency
	}
	return energyFromGrid * ACEfficiency
}

func validateRecord(raw *models.RawRecord) error {
	if raw.StartTime.IsZero() || raw.EndTime.IsZero() {
		return invalidRecord("missing start or end time")
	}
	if raw.EndTime.Before(raw.StartTime) {
		return invalidRecord("end_time %s before start_time %s", raw.EndTime.Format("2006-01-02 15:04:05"), raw.StartTime.Format("2006-01-02 15:04:05"))
	}
	if !validSoc(raw.SocStart) || !validSoc(raw.SocEnd) {
		return invalidRecord("soc out of range: start=%v end=%v", raw.SocStart, raw.SocEnd)
	}
	if raw.EnergyFromGrid != nil && !validNonNegative(*raw.EnergyFromGrid) {
		return invalidRecord("energy_from_grid must be a non-negative number: %v", *raw.EnergyFromGrid)
	}
	if raw.EnergyAddedHvb != nil && !validNonNegative(*raw.EnergyAddedHvb) {
		return invalidRecord("energy_added_hvb must be a non-negative number: %v", *raw.EnergyAddedHvb)
	}
	if math.IsInf(raw.AvgPower, 0) || math.IsNaN(raw.AvgPower) || math.IsNaN(raw.Mileage) || math.IsNaN(raw.Cost) {
		return invalidRecord("numeric field is NaN")
	}
	if raw.Latitude != nil && (math.IsNaN(*raw.Latitude) || *raw.Latitude < -90 || *raw.Latitude > 90) {
		return invalidRecord("latitude out of range: %v", *raw.Latitude)
	}
	if raw.Longitude != nil && (math.IsNaN(*raw.Longitude) || *raw.Longitude < -180 || *raw.Longitude > 180) {
		return invalidRecord("longitude out of range: %v", *raw.Longitude)
	}
	return nil
}

func validSoc(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}

func validNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxOf(values []float64) float64 {
	var m float64
	for _, v := range values {
		if v > m {
			m = v
		}
	}
	return m
}
