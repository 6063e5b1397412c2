package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/chargegazer/internal/cardata"
	"github.com/langchou/chargegazer/internal/service"
)

func parseConsent(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// readUpload 读取上传的导出文件，支持 multipart 的 file 字段或直接提交 JSON
func (h *Handler) readUpload(c *gin.Context) (*cardata.Export, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.cfg.MaxUploadBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		file, _, err := c.Request.FormFile("file")
		if err != nil {
			return nil, errNoFile
		}
		defer file.Close()

		return cardata.Decode(file)
	}

	return cardata.Decode(c.Request.Body)
}

// multipart 表单在内存中保留的最大字节数，超出部分写入临时文件
const multipartMemory = 8 << 20

var errNoFile = errors.New("no file uploaded")

// UploadJSON 上传 CarData 导出文件，consent=true 时同时匿名共享到车队统计
func (h *Handler) UploadJSON(c *gin.Context) {
	export, err := h.readUpload(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("Upload exceeds %d bytes", maxErr.Limit)})
		case errors.Is(err, errNoFile):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Error processing JSON: %v", err)})
		}
		return
	}

	// multipart 表单已经解析，PostForm 不会再读取请求体
	consent := parseConsent(c.Query("consent")) || parseConsent(c.PostForm("consent"))
	model := c.PostForm("model")
	if model == "" {
		model = c.Query("model")
	}

	if consent {
		if strings.TrimSpace(model) == "" {
			h.respondError(c, service.ErrModelRequired)
			return
		}
		if !h.fleet.Enabled() {
			h.respondError(c, service.ErrFleetDisabled)
			return
		}
	}

	w := h.workspace(c)
	parsed := export.Parse()

	// 同意共享时先写入车队统计，失败则工作区保持原数据
	if consent {
		result, shared, err := h.workspaces.UploadAndShare(c.Request.Context(), w, parsed, model)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message":      "File uploaded and processed successfully",
			"count":        result.Count,
			"rejected":     result.Rejected,
			"errors":       result.Errors,
			"kind":         result.Kind,
			"stored":       true,
			"new_sessions": shared.Stored,
			"stored_count": shared.StoredCount,
			"workspace_id": w.ID,
		})
		return
	}

	result, err := h.workspaces.Upload(w, parsed)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{
		"message":      "File uploaded and processed (not stored in fleet statistics)",
		"count":        result.Count,
		"rejected":     result.Rejected,
		"errors":       result.Errors,
		"kind":         result.Kind,
		"stored":       false,
		"stored_count": 0,
		"workspace_id": w.ID,
	}
	c.JSON(http.StatusOK, resp)
}

// LoadDemoData 加载演示数据，演示数据不会进入车队统计
func (h *Handler) LoadDemoData(c *gin.Context) {
	export, err := cardata.LoadDemo(h.cfg.DemoDataFile)
	if err != nil {
		h.logger.Error("Failed to load demo data", zap.String("file", h.cfg.DemoDataFile), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not load demo data"})
		return
	}

	w := h.workspace(c)
	result, err := h.workspaces.LoadDemo(w, export.Parse())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Demo data loaded successfully (not stored in database)",
		"count":        result.Count,
		"rejected":     result.Rejected,
		"kind":         result.Kind,
		"demo":         true,
		"workspace_id": w.ID,
	})
}

type shareRequest struct {
	Model string `json:"model" form:"model"`
}

// ShareDataset 把已上传的数据匿名共享到车队统计
func (h *Handler) ShareDataset(c *gin.Context) {
	var req shareRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	w := h.workspace(c)
	result, err := h.workspaces.Share(c.Request.Context(), w, req.Model)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"stored":       true,
		"new_sessions": result.Stored,
		"stored_count": result.StoredCount,
		"kind":         w.State().CurrentState,
	})
}

// ResetDataset 清空当前工作区的数据
func (h *Handler) ResetDataset(c *gin.Context) {
	w := h.workspace(c)
	if err := h.workspaces.Reset(w); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w.State())
}

// GetWorkspace 当前工作区的数据集状态
func (h *Handler) GetWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, h.workspace(c).State())
}
