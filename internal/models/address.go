package models

import "strings"

// Address 结构化地址信息（用于逆地理编码结果）
type Address struct {
	FormattedAddress string `json:"formatted_address,omitempty"` // 完整格式化地址
	Country          string `json:"country,omitempty"`           // 国家
	Province         string `json:"province,omitempty"`          // 省/州
	City             string `json:"city,omitempty"`              // 市
	District         string `json:"district,omitempty"`          // 区/县
	Street           string `json:"street,omitempty"`            // 道路
	StreetNumber     string `json:"street_number,omitempty"`     // 门牌号
}

// Label 地图上显示的名称，优先使用完整地址
func (a *Address) Label() string {
	if a == nil {
		return ""
	}
	if a.FormattedAddress != "" {
		return a.FormattedAddress
	}

	parts := make([]string, 0, 3)
	street := strings.TrimSpace(a.Street + " " + a.StreetNumber)
	for _, p := range []string{street, a.City, a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
