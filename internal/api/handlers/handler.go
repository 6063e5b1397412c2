package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/analytics"
	"github.com/langchou/chargegazer/internal/cardata"
	"github.com/langchou/chargegazer/internal/config"
	"github.com/langchou/chargegazer/internal/models"
	"github.com/langchou/chargegazer/internal/service"
	"github.com/langchou/chargegazer/internal/state"
	"github.com/langchou/chargegazer/pkg/ws"
)

// Version 应用版本，构建时可通过 -ldflags 覆盖
var Version = "1.0.0"

const workspaceCookie = "workspace_id"

// LocationNamer 为地图上没有名称的地点命名，通常是 *geocoder.Client
type LocationNamer interface {
	NameLocations(ctx context.Context, locations []models.LocationAggregate) int
}

// Handler HTTP 处理器
type Handler struct {
	cfg        *config.Config
	logger     *zap.Logger
	engine     *analytics.Engine
	workspaces *service.WorkspaceService
	fleet      *service.FleetService
	namer      LocationNamer
	wsHub      *ws.Hub
	upgrader   websocket.Upgrader
}

// NewHandler 创建处理器，namer 可以为 nil
func NewHandler(
	cfg *config.Config,
	logger *zap.Logger,
	engine *analytics.Engine,
	workspaces *service.WorkspaceService,
	fleet *service.FleetService,
	namer LocationNamer,
	wsHub *ws.Hub,
) *Handler {
	return &Handler{
		cfg:        cfg,
		logger:     logger,
		engine:     engine,
		workspaces: workspaces,
		fleet:      fleet,
		namer:      namer,
		wsHub:      wsHub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 开发环境允许所有来源
			},
		},
	}
}

// workspace 根据 cookie 获取当前工作区，没有则创建并写回 cookie
func (h *Handler) workspace(c *gin.Context) *service.Workspace {
	id, _ := c.Cookie(workspaceCookie)
	w, created := h.workspaces.GetOrCreate(id)
	if created {
		h.logger.Debug("Assigned new workspace", zap.String("workspace_id", w.ID))
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(workspaceCookie, w.ID, int(h.cfg.WorkspaceTTL/time.Second), "/", "", false, true)
	c.Header("X-Workspace-ID", w.ID)
	return w
}

// filteredSessions 当前工作区按日期过滤后的记录
func (h *Handler) filteredSessions(c *gin.Context) ([]models.Session, *analytics.DateRange, bool) {
	rng, err := analytics.ParseDateRange(c.Query("startDate"), c.Query("endDate"))
	if err != nil {
		h.respondError(c, err)
		return nil, nil, false
	}

	sessions := h.workspace(c).Dataset().Sessions
	return analytics.FilterSessions(sessions, rng), rng, true
}

// respondError 把错误映射为 HTTP 状态码
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, analytics.ErrInvalidThreshold),
		errors.Is(err, analytics.ErrInvalidDateRange),
		errors.Is(err, analytics.ErrInvalidRecord),
		errors.Is(err, cardata.ErrNotArray),
		errors.Is(err, cardata.ErrUnknownFormat),
		errors.Is(err, service.ErrModelRequired):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrWorkspaceNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrFleetDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
