package analytics

import (
	"fmt"
	"time"

	"github.com/langchou/chargegazer/internal/models"
)

// DateLayout 查询参数的日期格式
const DateLayout = "2006-01-02"

// DateRange 闭区间 [Start, End]
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange 创建日期范围
func NewDateRange(start, end time.Time) (*DateRange, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end %s before start %s", ErrInvalidDateRange, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return &DateRange{Start: start, End: end}, nil
}

// ParseDateRange 解析 startDate/endDate 查询参数
// 两个都为空时返回 nil（不过滤），endDate 包含当天
func ParseDateRange(startStr, endStr string) (*DateRange, error) {
	if startStr == "" && endStr == "" {
		return nil, nil
	}
	if startStr == "" || endStr == "" {
		return nil, fmt.Errorf("%w: startDate and endDate must be given together", ErrInvalidDateRange)
	}

	start, err := time.ParseInLocation(DateLayout, startStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: parse startDate: %v", ErrInvalidDateRange, err)
	}
	end, err := time.ParseInLocation(DateLayout, endStr, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w: parse endDate: %v", ErrInvalidDateRange, err)
	}

	return NewDateRange(start, end.AddDate(0, 0, 1).Add(-time.Nanosecond))
}

// Contains 判断时间是否在范围内，nil 范围包含所有时间
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	return !t.Before(r.Start) && !t.After(r.End)
}

// FilterSessions 按开始时间过滤，返回新切片
func FilterSessions(sessions []models.Session, r *DateRange) []models.Session {
	if r == nil {
		return sessions
	}

	filtered := make([]models.Session, 0, len(sessions))
	for i := range sessions {
		if r.Contains(sessions[i].StartTime) {
			filtered = append(filtered, sessions[i])
		}
	}
	return filtered
}
