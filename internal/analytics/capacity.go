package analytics

import (
	"sort"
	"time"

	"github.com/langchou/chargegazer/internal/models"
)

const (
	secondsPerDay = 24 * 60 * 60
	daysPerYear   = 365.25
)

// 拟合数据来源
const (
	FittedOnMonthly = "monthly"
	FittedOnRaw     = "raw"
)

// line y = slope*x + intercept，x 为 Unix 纪元以来的天数
type line struct {
	slope     float64
	intercept float64
}

func (l line) at(t time.Time) float64 {
	return l.slope*daysSinceEpoch(t) + l.intercept
}

func daysSinceEpoch(t time.Time) float64 {
	return float64(t.Unix()) / secondsPerDay
}

// fitLine 最小二乘拟合，点数不足或 x 全相同时返回 false
func fitLine(xs, ys []float64) (line, bool) {
	n := len(xs)
	if n < 2 || n != len(ys) {
		return line{}, false
	}

	var meanX, meanY float64
	for i := 0; i < n; i++ {
		meanX += xs[i]
		meanY += ys[i]
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - meanX
		sxx += dx * dx
		sxy += dx * (ys[i] - meanY)
	}
	if sxx == 0 {
		return line{}, false
	}

	slope := sxy / sxx
	return line{slope: slope, intercept: meanY - slope*meanX}, true
}

// EstimateCapacity 估算每次充电对应的电池可用容量，并按月平均后拟合趋势
func (e *Engine) EstimateCapacity(sessions []models.Session) models.CapacityEstimate {
	type monthBucket struct {
		month   string
		sumCap  float64
		sumSoc  float64
		sumUnix float64
		count   int
	}

	raw := make([]models.CapacityPoint, 0)
	var months []*monthBucket
	byMonth := make(map[string]*monthBucket)

	for i := range sessions {
		s := &sessions[i]
		socChange := s.SocChange()
		if socChange <= 0 || s.EnergyAddedHvb <= 0 {
			continue
		}
		if socChange < e.opts.CapacityMinSocChange || s.EnergyAddedHvb < e.opts.CapacityMinEnergyKwh {
			continue
		}

		capacity := s.EnergyAddedHvb / (socChange / 100)
		raw = append(raw, models.CapacityPoint{
			Date:                     s.StartTime,
			RawCapacity:              capacity,
			EstimatedBatteryCapacity: capacity,
			SocChange:                socChange,
			SessionID:                s.ID,
		})

		month := s.StartTime.UTC().Format("2006-01")
		b, ok := byMonth[month]
		if !ok {
			b = &monthBucket{month: month}
			byMonth[month] = b
			months = append(months, b)
		}
		b.sumCap += capacity
		b.sumSoc += socChange
		b.sumUnix += float64(s.StartTime.Unix())
		b.count++
	}

	monthly := make([]models.CapacityPoint, 0, len(months))
	for _, b := range months {
		// 月平均点的日期取当月各次充电的平均时间
		avgUnix := int64(b.sumUnix / float64(b.count))
		avg := b.sumCap / float64(b.count)
		monthly = append(monthly, models.CapacityPoint{
			Date:                     time.Unix(avgUnix, 0).UTC(),
			RawCapacity:              avg,
			EstimatedBatteryCapacity: avg,
			SocChange:                b.sumSoc,
			IsMonthlyAverage:         true,
			Month:                    b.month,
			Count:                    b.count,
		})
	}

	// 月平均点不少于 2 个时用月平均拟合，否则用原始点
	fitted, fittedOn := monthly, FittedOnMonthly
	if len(monthly) < 2 {
		fitted, fittedOn = raw, FittedOnRaw
	}
	xs := make([]float64, len(fitted))
	ys := make([]float64, len(fitted))
	for i := range fitted {
		xs[i] = daysSinceEpoch(fitted[i].Date)
		ys[i] = fitted[i].RawCapacity
	}

	points := make([]models.CapacityPoint, 0, len(raw)+len(monthly))
	points = append(points, raw...)
	points = append(points, monthly...)
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Date.Before(points[j].Date)
	})

	estimate := models.CapacityEstimate{Points: points}

	l, ok := fitLine(xs, ys)
	if !ok {
		return estimate
	}

	for i := range points {
		v := l.at(points[i].Date)
		points[i].Trend = &v
		if points[i].IsMonthlyAverage {
			points[i].EstimatedBatteryCapacity = v
		}
	}

	first, last := points[0].Date, points[len(points)-1].Date
	trend := &models.CapacityTrend{
		FittedOn:     fittedOn,
		SlopePerYear: l.slope * daysPerYear,
		FirstDate:    first,
		LastDate:     last,
		FirstValue:   l.at(first),
		LastValue:    l.at(last),
	}
	trend.LossKwh = trend.FirstValue - trend.LastValue
	if trend.FirstValue > 0 {
		trend.LossPercent = trend.LossKwh / trend.FirstValue * 100
	}
	estimate.Trend = trend

	return estimate
}
