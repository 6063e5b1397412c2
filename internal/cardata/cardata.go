// Package cardata 解码充电记录导出文件
//
// 支持两种格式：BMW CarData 导出（camelCase 字段，Unix 秒时间戳）
// 以及统一格式（snake_case 字段，与 models.RawRecord 一致）。
package cardata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/models"
)

// 导出格式
const (
	FormatCarData    = "cardata"
	FormatNormalized = "normalized"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrNotArray      = errors.New("export must be a JSON array of records")
)

// Session CarData 导出中的一次充电
type Session struct {
	StartTime                      int64    `json:"startTime"`
	EndTime                        int64    `json:"endTime"`
	DisplayedStartSoc              float64  `json:"displayedStartSoc"`
	DisplayedSoc                   float64  `json:"displayedSoc"`
	EnergyConsumedFromPowerGridKwh *float64 `json:"energyConsumedFromPowerGridKwh"`
	EnergyIncreaseHvbKwh           *float64 `json:"energyIncreaseHvbKwh"`
	ChargingCostInformation        struct {
		CalculatedChargingCost float64 `json:"calculatedChargingCost"`
	} `json:"chargingCostInformation"`
	ChargingLocation struct {
		FormattedAddress    string  `json:"formattedAddress"`
		MapMatchedLatitude  float64 `json:"mapMatchedLatitude"`
		MapMatchedLongitude float64 `json:"mapMatchedLongitude"`
	} `json:"chargingLocation"`
	ChargingBlocks []struct {
		AveragePowerGridKw float64 `json:"averagePowerGridKw"`
	} `json:"chargingBlocks"`
	Mileage             float64 `json:"mileage"`
	PublicChargingPoint struct {
		PotentialChargingPointMatches []struct {
			ProviderName string `json:"providerName"`
		} `json:"potentialChargingPointMatches"`
	} `json:"publicChargingPoint"`
}

// ToRawRecord 转换为统一格式
func (s *Session) ToRawRecord() models.RawRecord {
	powers := make([]float64, len(s.ChargingBlocks))
	var sum float64
	for i, b := range s.ChargingBlocks {
		powers[i] = b.AveragePowerGridKw
		sum += b.AveragePowerGridKw
	}
	var avgPower float64
	if len(powers) > 0 {
		avgPower = sum / float64(len(powers))
	}

	provider := ""
	if matches := s.PublicChargingPoint.PotentialChargingPointMatches; len(matches) > 0 {
		provider = matches[0].ProviderName
	}

	raw := models.RawRecord{
		StartTime:      time.Unix(s.StartTime, 0).UTC(),
		EndTime:        time.Unix(s.EndTime, 0).UTC(),
		SocStart:       s.DisplayedStartSoc,
		SocEnd:         s.DisplayedSoc,
		EnergyFromGrid: s.EnergyConsumedFromPowerGridKwh,
		EnergyAddedHvb: s.EnergyIncreaseHvbKwh,
		AvgPower:       avgPower,
		GridPowerStart: powers,
		Location:       s.ChargingLocation.FormattedAddress,
		Provider:       provider,
		Mileage:        s.Mileage,
		Cost:           s.ChargingCostInformation.CalculatedChargingCost,
	}

	// (0,0) 表示没有定位
	lat, lon := s.ChargingLocation.MapMatchedLatitude, s.ChargingLocation.MapMatchedLongitude
	if lat != 0 || lon != 0 {
		raw.Latitude = &lat
		raw.Longitude = &lon
	}

	return raw
}

// Export 解码后的导出文件
// 无法解码的元素不会中断整个文件，记录在 Errors 中并计入拒绝数
type Export struct {
	Format  string
	Records []models.RawRecord
	Errors  []error // *analytics.RecordError，Index 为原数组中的位置

	indexes []int // Records[i] 在原数组中的位置
}

// Rejected 无法解码的元素数量
func (e *Export) Rejected() int {
	return len(e.Errors)
}

// Parse 解析全部记录，解码失败与校验失败的记录合并计数，错误按原数组位置排序
func (e *Export) Parse() analytics.ParseResult {
	parsed := analytics.ParseRecords(e.Records)

	errs := make([]error, 0, len(e.Errors)+len(parsed.Errors))
	errs = append(errs, e.Errors...)
	for _, err := range parsed.Errors {
		var recErr *analytics.RecordError
		if errors.As(err, &recErr) && recErr.Index < len(e.indexes) {
			err = &analytics.RecordError{Index: e.indexes[recErr.Index], Err: recErr.Err}
		}
		errs = append(errs, err)
	}
	sort.SliceStable(errs, func(i, j int) bool {
		return recordIndex(errs[i]) < recordIndex(errs[j])
	})

	parsed.Rejected += len(e.Errors)
	parsed.Errors = errs
	return parsed
}

func recordIndex(err error) int {
	var recErr *analytics.RecordError
	if errors.As(err, &recErr) {
		return recErr.Index
	}
	return -1
}

// Decode 读取一个导出文件
func Decode(r io.Reader) (*Export, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return DecodeBytes(data)
}

// DecodeBytes 同 Decode
// 只有顶层不是数组或格式无法识别时返回错误，单个元素的错误逐条记录
func DecodeBytes(data []byte) (*Export, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotArray
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode export: %w", err)
	}

	export := &Export{
		Format:  FormatNormalized,
		Records: make([]models.RawRecord, 0, len(items)),
	}
	if len(items) == 0 {
		return export, nil
	}

	format, err := detectFormat(items)
	if err != nil {
		return nil, err
	}
	export.Format = format

	for i, item := range items {
		raw, err := decodeItem(format, item)
		if err != nil {
			export.Errors = append(export.Errors, &analytics.RecordError{
				Index: i,
				Err:   fmt.Errorf("%w: decode %s record: %v", analytics.ErrInvalidRecord, format, err),
			})
			continue
		}
		export.Records = append(export.Records, raw)
		export.indexes = append(export.indexes, i)
	}

	return export, nil
}

func decodeItem(format string, item json.RawMessage) (models.RawRecord, error) {
	if format == FormatCarData {
		var s Session
		if err := json.Unmarshal(item, &s); err != nil {
			return models.RawRecord{}, err
		}
		return s.ToRawRecord(), nil
	}

	var raw models.RawRecord
	if err := json.Unmarshal(item, &raw); err != nil {
		return models.RawRecord{}, err
	}
	return raw, nil
}

// ReadFile 从文件读取导出
func ReadFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// detectFormat 按第一个对象元素的字段识别格式
func detectFormat(items []json.RawMessage) (string, error) {
	for _, item := range items {
		var keys map[string]json.RawMessage
		if err := json.Unmarshal(item, &keys); err != nil {
			continue
		}
		if _, ok := keys["start_time"]; ok {
			return FormatNormalized, nil
		}
		if _, ok := keys["startTime"]; ok {
			return FormatCarData, nil
		}
		return "", ErrUnknownFormat
	}
	return "", ErrUnknownFormat
}
