package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 地图请求中逆地理编码的总时长上限
const geocodeBudget = 10 * time.Second

// GetMapData 按地点聚合的充电记录
func (h *Handler) GetMapData(c *gin.Context) {
	sessions, _, ok := h.filteredSessions(c)
	if !ok {
		return
	}

	locations := h.engine.AggregateByLocation(sessions)

	if h.namer != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), geocodeBudget)
		named := h.namer.NameLocations(ctx, locations)
		cancel()
		if named > 0 {
			h.logger.Debug("Named map locations", zap.Int("count", named))
		}
	}

	c.JSON(http.StatusOK, locations)
}
