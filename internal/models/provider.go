package models

// ProviderGroup 合并后的运营商
type ProviderGroup struct {
	CanonicalName    string   `json:"canonical_name"`
	Provider         string   `json:"provider"` // 同 CanonicalName，前端使用
	Variants         []string `json:"variants"`
	Total            int      `json:"total"`
	SuccessfulCount  int      `json:"successful_count"`
	FailedCount      int      `json:"failed_count"`
	TotalEnergyAdded float64  `json:"total_energy_added"`
	SuccessRate      float64  `json:"success_rate"`
	FailureRate      float64  `json:"failure_rate"`
}

// ProviderMatch 原始运营商名到合并结果的映射
type ProviderMatch struct {
	OriginalProvider string  `json:"original_provider"`
	MatchedProvider  string  `json:"matched_provider"`
	Similarity       float64 `json:"similarity"`
}

// GroupedProviders 运营商分组结果
type GroupedProviders struct {
	GroupedSuccessfulProviders []ProviderGroup `json:"grouped_successful_providers"`
	GroupedFailedProviders     []ProviderGroup `json:"grouped_failed_providers"`
	AllProviders               []ProviderGroup `json:"all_providers"`
	ProviderMatches            []ProviderMatch `json:"provider_matches"`
	Threshold                  float64         `json:"threshold"`
}

// LocationAggregate 地图上的一个充电地点
type LocationAggregate struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Provider      string  `json:"provider"`
	SessionCount  int     `json:"session_count"`
	SuccessCount  int     `json:"success_count"`
	FailedCount   int     `json:"failed_count"`
	TotalEnergy   float64 `json:"total_energy"`
	LastSessionID string  `json:"session_id"`
}
