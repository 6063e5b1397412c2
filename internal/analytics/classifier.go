package analytics

import "github.com/langchou/chargegazer/internal/models"

// Classify 判断充电是否成功：SOC 没有变化即为失败
// 所有统计都必须通过这里判断，不要在别处重复实现
func Classify(s *models.Session) models.Outcome {
	if s.SocEnd == s.SocStart {
		return models.OutcomeFailed
	}
	return models.OutcomeSuccessful
}

// IsFailed 是否失败
func IsFailed(s *models.Session) bool {
	return Classify(s) == models.OutcomeFailed
}

// ChargingTypeFor 按平均功率区分 AC/DC
func ChargingTypeFor(avgPower float64) models.ChargingType {
	if avgPower >= DCPowerThreshold {
		return models.ChargingTypeDC
	}
	return models.ChargingTypeAC
}
