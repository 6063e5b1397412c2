package analytics

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/langchou/chargegazer/internal/models"
)

// Fingerprint 车队记录去重用的指纹，同一辆车重复上传同一次充电得到相同的值
func Fingerprint(s *models.Session) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%d|%.1f|%.1f|%.3f|%.1f",
		s.StartTime.Unix(), s.EndTime.Unix(), s.SocStart, s.SocEnd, s.EnergyFromGrid, s.Mileage)
	return hex.EncodeToString(h.Sum(nil))
}

// ToFleetSession 去掉位置、里程等可识别信息
func ToFleetSession(s *models.Session, model string) models.FleetSession {
	return models.FleetSession{
		Fingerprint:     Fingerprint(s),
		Model:           model,
		StartTime:       s.StartTime,
		EndTime:         s.EndTime,
		SocStart:        s.SocStart,
		SocEnd:          s.SocEnd,
		EnergyFromGrid:  s.EnergyFromGrid,
		EnergyAddedHvb:  s.EnergyAddedHvb,
		EnergyEstimated: s.EnergyEstimated,
		AvgPower:        s.AvgPower,
		Provider:        s.Provider,
		Cost:            s.Cost,
	}
}

// FromFleetSession 车队记录转回 Session，供引擎统计
func FromFleetSession(fs *models.FleetSession) models.Session {
	s := models.Session{
		ID:                 strconv.FormatInt(fs.StartTime.Unix(), 10),
		StartTime:          fs.StartTime,
		EndTime:            fs.EndTime,
		SocStart:           fs.SocStart,
		SocEnd:             fs.SocEnd,
		EnergyFromGrid:     fs.EnergyFromGrid,
		EnergyAddedHvb:     fs.EnergyAddedHvb,
		EnergyEstimated:    fs.EnergyEstimated,
		Cost:               fs.Cost,
		AvgPower:           fs.AvgPower,
		ChargingType:       ChargingTypeFor(fs.AvgPower),
		Location:           models.UnknownLocation,
		Provider:           fs.Provider,
		SessionTimeMinutes: fs.EndTime.Sub(fs.StartTime).Minutes(),
	}
	if fs.EnergyFromGrid > 0 {
		eff := fs.EnergyAddedHvb / fs.EnergyFromGrid
		s.Efficiency = &eff
	}
	return s
}

// AnonymousStats 跨用户统计，不按日期过滤，不含位置和里程
func (e *Engine) AnonymousStats(sessions []models.Session) models.AnonymousStats {
	sessionStats := e.SessionStatistics(sessions)
	energy := EnergyStatistics(sessions)

	return models.AnonymousStats{
		GlobalStats: models.GlobalStats{
			TotalSessions:      sessionStats.TotalSessions,
			SuccessfulSessions: sessionStats.TotalSuccessfulSessions,
			FailedSessions:     sessionStats.TotalFailedSessions,
			SuccessRate:        sessionStats.SuccessRate,
			TotalEnergyAdded:   energy.TotalEnergyAdded,
		},
		OverallEfficiency: OverallEfficiency(sessions),
		SOCStats:          SOCStatistics(sessions),
		Energy:            energy,
		AllProviders:      allGroups(groupProviders(sessions, e.opts.SimilarityThreshold)),
		UsingEstimated:    UsingEstimatedValues(sessions),
	}
}
