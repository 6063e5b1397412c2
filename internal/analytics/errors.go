package analytics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRecord 记录格式错误或逻辑上不可能
	ErrInvalidRecord = errors.New("invalid record")
	// ErrInvalidThreshold 相似度阈值不在 [0,1]
	ErrInvalidThreshold = errors.New("invalid similarity threshold")
	// ErrInvalidDateRange 日期范围无效
	ErrInvalidDateRange = errors.New("invalid date range")
)

// RecordError 批量解析时单条记录的错误
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func invalidRecord(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}
