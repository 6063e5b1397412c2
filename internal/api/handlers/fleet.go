package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetAnonymousStats 跨用户匿名统计
func (h *Handler) GetAnonymousStats(c *gin.Context) {
	stats, err := h.fleet.AnonymousStats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetBatteryHealth 车队电池容量趋势，model 参数按车型过滤
func (h *Handler) GetBatteryHealth(c *gin.Context) {
	health, err := h.fleet.BatteryHealth(c.Request.Context(), c.Query("model"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, health)
}
