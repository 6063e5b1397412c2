package analytics

import (
	"fmt"
	"sort"

	"github.com/langchou/chargegazer/internal/models"
)

// locationKey 有地点 ID 时用 ID，否则用四舍五入后的经纬度
func (e *Engine) locationKey(s *models.Session) string {
	if s.LocationID != "" {
		return "id:" + s.LocationID
	}
	p := e.opts.LocationPrecision
	return fmt.Sprintf("%.*f:%.*f", p, *s.Latitude, p, *s.Longitude)
}

// AggregateByLocation 按地点聚合充电记录，没有经纬度的记录不参与
func (e *Engine) AggregateByLocation(sessions []models.Session) []models.LocationAggregate {
	var order []string
	byKey := make(map[string]*models.LocationAggregate)
	latest := make(map[string]*models.Session)

	for i := range sessions {
		s := &sessions[i]
		if !s.HasCoordinates() {
			continue
		}

		key := e.locationKey(s)
		loc, ok := byKey[key]
		if !ok {
			loc = &models.LocationAggregate{
				Key:       key,
				Name:      s.Location,
				Latitude:  *s.Latitude,
				Longitude: *s.Longitude,
			}
			byKey[key] = loc
			order = append(order, key)
		}

		loc.SessionCount++
		loc.TotalEnergy += s.EnergyAddedHvb
		if IsFailed(s) {
			loc.FailedCount++
		} else {
			loc.SuccessCount++
		}

		// 运营商取该地点最近一次充电
		if prev, ok := latest[key]; !ok || s.StartTime.After(prev.StartTime) {
			latest[key] = s
		}
	}

	locations := make([]models.LocationAggregate, 0, len(order))
	for _, key := range order {
		loc := byKey[key]
		if s := latest[key]; s != nil {
			loc.Provider = s.Provider
			loc.LastSessionID = s.ID
		}
		locations = append(locations, *loc)
	}

	sort.SliceStable(locations, func(i, j int) bool {
		a, b := locations[i], locations[j]
		if a.SessionCount != b.SessionCount {
			return a.SessionCount > b.SessionCount
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.Key < b.Key
	})

	return locations
}
