package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/langchou/chargegazer/internal/models"
)

// Aggregate 计算日期范围内的统计快照，rng 为 nil 时统计全部
func (e *Engine) Aggregate(sessions []models.Session, rng *DateRange) models.StatsSnapshot {
	filtered := FilterSessions(sessions, rng)

	distance := TotalDistance(filtered)
	energy := EnergyStatistics(filtered)
	capacity := e.EstimateCapacity(filtered)

	snapshot := models.StatsSnapshot{
		OverallEfficiency:    OverallEfficiency(filtered),
		TotalDistanceKm:      distance,
		SessionStats:         e.SessionStatistics(filtered),
		SOCStats:             SOCStatistics(filtered),
		Energy:               energy,
		EstimatedCapacity:    capacity.Points,
		CapacityTrend:        capacity.Trend,
		UsingEstimatedValues: UsingEstimatedValues(filtered),
		DateFilterActive:     rng != nil,
	}

	if distance > 0 {
		snapshot.PowerConsumptionPer100km = energy.TotalEnergyFromGrid / distance * 100
		snapshot.PowerConsumptionWithoutGridLosses = energy.TotalEnergyAdded / distance * 100
	}

	return snapshot
}

// OverallEfficiency 按电网电量加权的平均效率，效率未知的记录不参与
func OverallEfficiency(sessions []models.Session) float64 {
	var added, grid float64
	for i := range sessions {
		if sessions[i].Efficiency == nil {
			continue
		}
		added += sessions[i].EnergyAddedHvb
		grid += sessions[i].EnergyFromGrid
	}
	if grid <= 0 {
		return 0
	}
	return added / grid
}

// TotalDistance 按时间排序后累加里程表增量
// 读数为 0 视为缺失，回退的读数忽略
func TotalDistance(sessions []models.Session) float64 {
	readings := make([]models.Session, 0, len(sessions))
	for i := range sessions {
		if sessions[i].Mileage > 0 {
			readings = append(readings, sessions[i])
		}
	}
	if len(readings) < 2 {
		return 0
	}

	sort.SliceStable(readings, func(i, j int) bool {
		return readings[i].StartTime.Before(readings[j].StartTime)
	})

	var total float64
	highest := readings[0].Mileage
	for _, r := range readings[1:] {
		if r.Mileage > highest {
			total += r.Mileage - highest
			highest = r.Mileage
		}
	}
	return total
}

// SessionStatistics 成功/失败次数及 top 运营商
func (e *Engine) SessionStatistics(sessions []models.Session) models.SessionStats {
	stats := models.SessionStats{
		TotalSessions: len(sessions),
	}
	for i := range sessions {
		if IsFailed(&sessions[i]) {
			stats.TotalFailedSessions++
		} else {
			stats.TotalSuccessfulSessions++
		}
	}
	if stats.TotalSessions > 0 {
		stats.SuccessRate = float64(stats.TotalSuccessfulSessions) / float64(stats.TotalSessions) * 100
	}

	groups := groupProviders(sessions, e.opts.SimilarityThreshold)
	stats.TopFailedProviders = e.topProviderCounts(groups, func(g *models.ProviderGroup) int { return g.FailedCount })
	stats.TopSuccessfulProviders = e.topProviderCounts(groups, func(g *models.ProviderGroup) int { return g.SuccessfulCount })

	return stats
}

// SOCStatistics SOC 统计，平均值包含失败的充电
func SOCStatistics(sessions []models.Session) models.SOCStats {
	stats := models.SOCStats{TotalSessions: len(sessions)}
	if len(sessions) == 0 {
		return stats
	}

	var sumStart, sumEnd float64
	stats.LowestStartSoc = sessions[0].SocStart
	for i := range sessions {
		s := &sessions[i]
		sumStart += s.SocStart
		sumEnd += s.SocEnd

		if s.SocStart < stats.LowestStartSoc {
			stats.LowestStartSoc = s.SocStart
		}
		if IsFailed(s) {
			stats.FailedSessions++
		}

		switch {
		case s.SocEnd < 80:
			stats.Below80Count++
		case s.SocEnd == 80:
			stats.Exactly80Count++
		default:
			stats.Above80Count++
		}
		if s.SocEnd > 90 {
			stats.Above90Count++
		}
		if s.SocEnd == 100 {
			stats.Exactly100Count++
		}
	}

	n := float64(len(sessions))
	stats.AverageStartSoc = sumStart / n
	stats.AverageEndSoc = sumEnd / n
	stats.Above80Percentage = float64(stats.Above80Count) / n * 100
	stats.Above90Percentage = float64(stats.Above90Count) / n * 100

	return stats
}

// EnergyStatistics 电量、损耗、费用、峰值功率和 AC/DC 分类
func EnergyStatistics(sessions []models.Session) models.EnergyStats {
	stats := models.EnergyStats{
		ChargingTypes: map[models.ChargingType]*models.ChargingTypeStats{
			models.ChargingTypeAC: {},
			models.ChargingTypeDC: {},
		},
	}

	cost := decimal.Zero
	var lossBase float64
	for i := range sessions {
		s := &sessions[i]
		stats.TotalEnergyFromGrid += s.EnergyFromGrid
		stats.TotalEnergyAdded += s.EnergyAddedHvb
		cost = cost.Add(decimal.NewFromFloat(s.Cost))

		if s.EnergyFromGrid > 0 {
			lossBase += s.EnergyFromGrid
			if wasted := s.EnergyFromGrid - s.EnergyAddedHvb; wasted > 0 {
				stats.EnergyWastedKwh += wasted
			}
		}

		if s.MaxPower > stats.PeakPower {
			stats.PeakPower = s.MaxPower
			stats.PeakPowerSessionID = s.ID
		}

		ct := stats.ChargingTypes[ChargingTypeFor(s.AvgPower)]
		ct.Sessions++
		ct.EnergyFromGrid += s.EnergyFromGrid
		ct.EnergyAdded += s.EnergyAddedHvb
	}

	if lossBase > 0 {
		stats.EnergyWastedPercent = stats.EnergyWastedKwh / lossBase * 100
	}

	stats.TotalCost = cost.Round(2).InexactFloat64()
	if stats.TotalEnergyFromGrid > 0 {
		stats.CostPerKwh = cost.Div(decimal.NewFromFloat(stats.TotalEnergyFromGrid)).Round(2).InexactFloat64()
	}

	return stats
}

// UsingEstimatedValues 是否有任一记录使用了估算电量
func UsingEstimatedValues(sessions []models.Session) bool {
	for i := range sessions {
		if sessions[i].EnergyEstimated {
			return true
		}
	}
	return false
}
