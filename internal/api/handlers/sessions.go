package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/langchou/chargegazer/internal/analytics"
)

// GetSessions 获取充电记录，支持 startDate/endDate 过滤
func (h *Handler) GetSessions(c *gin.Context) {
	sessions, _, ok := h.filteredSessions(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// GetSession 获取单次充电详情
func (h *Handler) GetSession(c *gin.Context) {
	s, ok := h.workspace(c).Dataset().Session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// GetStats 统计快照
func (h *Handler) GetStats(c *gin.Context) {
	rng, err := analytics.ParseDateRange(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	sessions := h.workspace(c).Dataset().Sessions
	c.JSON(http.StatusOK, h.engine.Aggregate(sessions, rng))
}

// GetGroupedProviders 运营商分组，threshold 参数可覆盖默认相似度阈值
func (h *Handler) GetGroupedProviders(c *gin.Context) {
	threshold := h.engine.Options().SimilarityThreshold
	if v := c.Query("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid threshold"})
			return
		}
		threshold = t
	}

	sessions, _, ok := h.filteredSessions(c)
	if !ok {
		return
	}

	grouped, err := h.engine.GroupProviders(sessions, threshold)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grouped)
}
