package geocoder

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/models"
)

const (
	amapBaseURL      = "https://restapi.amap.com/v3/geocode/regeo"
	nominatimBaseURL = "https://nominatim.openstreetmap.org/reverse"

	maxCacheSize = 10000
)

// Client 逆地理编码客户端
// 支持高德地图 API 和 Nominatim（OpenStreetMap）
// 如果配置了高德 API Key，优先使用高德；否则使用 Nominatim
type Client struct {
	amapAPIKey       string
	amapURL          string
	nominatimURL     string
	nominatimBackoff time.Duration
	httpClient       *http.Client
	logger           *zap.Logger

	// 缓存：避免重复请求相同坐标
	cache   map[string]*models.Address
	cacheMu sync.RWMutex

	// Nominatim 请求限流（每秒最多 1 次）
	lastNominatimRequest time.Time
	nominatimMu          sync.Mutex
}

// NewClient 创建逆地理编码客户端
func NewClient(amapAPIKey string, logger *zap.Logger) *Client {
	return &Client{
		amapAPIKey:       amapAPIKey,
		amapURL:          amapBaseURL,
		nominatimURL:     nominatimBaseURL,
		nominatimBackoff: time.Second,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
		cache:  make(map[string]*models.Address),
	}
}

// cacheKey 精确到小数点后 4 位，约 11 米
func cacheKey(lat, lng float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lng)
}

// ReverseGeocode 逆地理编码：根据经纬度获取结构化地址
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (*models.Address, error) {
	key := cacheKey(lat, lng)

	c.cacheMu.RLock()
	if addr, ok := c.cache[key]; ok {
		c.cacheMu.RUnlock()
		return addr, nil
	}
	c.cacheMu.RUnlock()

	var address *models.Address
	var err error

	// 优先使用高德，没有配置则使用 Nominatim
	if c.amapAPIKey != "" {
		address, err = c.reverseGeocodeAmap(ctx, lat, lng)
	} else {
		address, err = c.reverseGeocodeNominatim(ctx, lat, lng)
	}
	if err != nil {
		return nil, err
	}

	c.cacheMu.Lock()
	if len(c.cache) >= maxCacheSize {
		c.cache = make(map[string]*models.Address)
	}
	c.cache[key] = address
	c.cacheMu.Unlock()

	return address, nil
}

// NameLocations 为没有名称的地点填入逆地理编码得到的地址
// 单个地点失败只记录日志，返回成功命名的数量
func (c *Client) NameLocations(ctx context.Context, locations []models.LocationAggregate) int {
	named := 0
	for i := range locations {
		loc := &locations[i]
		if loc.Name != "" && loc.Name != models.UnknownLocation {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		addr, err := c.ReverseGeocode(ctx, loc.Latitude, loc.Longitude)
		if err != nil {
			c.logger.Warn("Failed to geocode location",
				zap.String("key", loc.Key),
				zap.Error(err))
			continue
		}
		if label := addr.Label(); label != "" {
			loc.Name = label
			named++
		}
	}
	return named
}

// GetProvider 返回当前使用的服务提供商
func (c *Client) GetProvider() string {
	if c.amapAPIKey != "" {
		return "amap"
	}
	return "nominatim"
}

// ============ 高德地图实现 ============

// AmapRegeoResponse 高德逆地理编码响应
type AmapRegeoResponse struct {
	Status    string         `json:"status"`
	Info      string         `json:"info"`
	InfoCode  string         `json:"infocode"`
	Regeocode *AmapRegeocode `json:"regeocode"`
}

type AmapRegeocode struct {
	FormattedAddress string               `json:"formatted_address"`
	AddressComponent AmapAddressComponent `json:"addressComponent"`
}

// 高德在字段为空时返回 []，因此用 interface{} 接收
type AmapAddressComponent struct {
	Country      string      `json:"country"`
	Province     string      `json:"province"`
	City         interface{} `json:"city"`
	District     interface{} `json:"district"`
	Street       interface{} `json:"street"`
	StreetNumber interface{} `json:"streetNumber"`
}

func (c *Client) reverseGeocodeAmap(ctx context.Context, lat, lng float64) (*models.Address, error) {
	// 高德 API 要求经度在前，纬度在后
	params := url.Values{}
	params.Set("key", c.amapAPIKey)
	params.Set("location", fmt.Sprintf("%.6f,%.6f", lng, lat))
	params.Set("extensions", "base")
	params.Set("output", "JSON")

	var result AmapRegeoResponse
	if err := c.getJSON(ctx, c.amapURL+"?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("amap regeo: %w", err)
	}

	if result.Status != "1" {
		return nil, fmt.Errorf("amap api error: %s (code: %s)", result.Info, result.InfoCode)
	}
	if result.Regeocode == nil {
		return nil, fmt.Errorf("no regeocode result")
	}

	comp := result.Regeocode.AddressComponent
	address := &models.Address{
		FormattedAddress: result.Regeocode.FormattedAddress,
		Country:          comp.Country,
		Province:         comp.Province,
		City:             interfaceToString(comp.City),
		District:         interfaceToString(comp.District),
		Street:           interfaceToString(comp.Street),
		StreetNumber:     interfaceToString(comp.StreetNumber),
	}

	c.logger.Debug("Geocoded via Amap",
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("address", address.FormattedAddress))

	return address, nil
}

// ============ Nominatim (OpenStreetMap) 实现 ============

// NominatimResponse Nominatim 逆地理编码响应
type NominatimResponse struct {
	DisplayName string           `json:"display_name"`
	Address     NominatimAddress `json:"address"`
}

type NominatimAddress struct {
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	County      string `json:"county"`
	State       string `json:"state"`
	Country     string `json:"country"`
	Postcode    string `json:"postcode"`
}

// waitNominatim 两次请求间隔至少 nominatimBackoff
func (c *Client) waitNominatim(ctx context.Context) error {
	c.nominatimMu.Lock()
	defer c.nominatimMu.Unlock()

	if wait := c.nominatimBackoff - time.Since(c.lastNominatimRequest); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	c.lastNominatimRequest = time.Now()
	return nil
}

func (c *Client) reverseGeocodeNominatim(ctx context.Context, lat, lng float64) (*models.Address, error) {
	if err := c.waitNominatim(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%.6f", lat))
	params.Set("lon", fmt.Sprintf("%.6f", lng))
	params.Set("format", "json")

	var result NominatimResponse
	if err := c.getJSON(ctx, c.nominatimURL+"?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("nominatim reverse: %w", err)
	}

	// Nominatim 的城市字段可能在 city/town/village 中
	city := result.Address.City
	if city == "" {
		city = result.Address.Town
	}
	if city == "" {
		city = result.Address.Village
	}

	address := &models.Address{
		FormattedAddress: result.DisplayName,
		Country:          result.Address.Country,
		Province:         result.Address.State,
		City:             city,
		District:         result.Address.County,
		Street:           result.Address.Road,
		StreetNumber:     result.Address.HouseNumber,
	}

	c.logger.Debug("Geocoded via Nominatim",
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("address", address.FormattedAddress))

	return address, nil
}

func (c *Client) getJSON(ctx context.Context, apiURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	// Nominatim 要求设置 User-Agent
	req.Header.Set("User-Agent", "ChargeGazer/1.0 (charging session analytics)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// ============ 工具函数 ============

func interfaceToString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// CacheSize 获取缓存大小
func (c *Client) CacheSize() int {
	c.cacheMu.RLock()
	defer c.cacheMu.RUnlock()
	return len(c.cache)
}
