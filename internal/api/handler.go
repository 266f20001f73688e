package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/fleet"
	"github.com/wwwzy/medfleet/internal/storage"
)

// Handler 设备/指标/告警接口处理器
type Handler struct {
	logger  *zap.Logger
	service *fleet.Service
	store   *storage.Storage
}

func NewHandler(logger *zap.Logger, service *fleet.Service, store *storage.Storage) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		store:   store,
	}
}

type idResponse struct {
	ID string `json:"id"`
}

// Health 健康检查
// GET /healthz
func (h *Handler) Health(c echo.Context) error {
	if err := h.store.Ping(c.Request().Context()); err != nil {
		h.logger.Error("数据库不可用", zap.Error(err))
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// ListDevices 设备列表
// GET /api/devices
func (h *Handler) ListDevices(c echo.Context) error {
	devices, err := h.service.ListDevices(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, devices)
}

// GetDevice 设备详情；设备不存在或未登录时返回 null
// GET /api/devices/:id
func (h *Handler) GetDevice(c echo.Context) error {
	device, err := h.service.GetDevice(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	if device == nil {
		return c.JSON(http.StatusOK, nil)
	}
	return c.JSON(http.StatusOK, device)
}

// CreateDevice 登记设备
// POST /api/devices
func (h *Handler) CreateDevice(c echo.Context) error {
	var req fleet.CreateDeviceInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	id, err := h.service.CreateDevice(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, idResponse{ID: id})
}

// UpdateDeviceStatus 设备状态上报
// PUT /api/devices/:id/status
func (h *Handler) UpdateDeviceStatus(c echo.Context) error {
	var req fleet.StatusUpdate
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	if err := h.service.UpdateDeviceStatus(c.Request().Context(), c.Param("id"), req); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RemoveDevice 删除设备
// DELETE /api/devices/:id
func (h *Handler) RemoveDevice(c echo.Context) error {
	if err := h.service.RemoveDevice(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RecordMetric 写入一条采样
// POST /api/devices/:id/metrics
func (h *Handler) RecordMetric(c echo.Context) error {
	var req fleet.Reading
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	id, err := h.service.RecordMetric(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, idResponse{ID: id})
}

// MetricsByDevice 查询设备最近的采样
// GET /api/devices/:id/metrics?limit=N
func (h *Handler) MetricsByDevice(c echo.Context) error {
	// limit 缺省或非法时交给服务层使用默认值
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	samples, err := h.service.MetricsByDevice(c.Request().Context(), c.Param("id"), limit)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, samples)
}

// ListAlerts 告警列表
// GET /api/alerts?status=active|acknowledged|resolved|all
func (h *Handler) ListAlerts(c echo.Context) error {
	alerts, err := h.service.ListAlerts(c.Request().Context(), c.QueryParam("status"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, alerts)
}

// CreateAlert 创建告警
// POST /api/alerts
func (h *Handler) CreateAlert(c echo.Context) error {
	var req fleet.CreateAlertInput
	if err := c.Bind(&req); err != nil {
		return badRequest(c)
	}
	id, err := h.service.CreateAlert(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, idResponse{ID: id})
}

// AcknowledgeAlert 确认告警
// POST /api/alerts/:id/acknowledge
func (h *Handler) AcknowledgeAlert(c echo.Context) error {
	if err := h.service.AcknowledgeAlert(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ResolveAlert 解决告警
// POST /api/alerts/:id/resolve
func (h *Handler) ResolveAlert(c echo.Context) error {
	if err := h.service.ResolveAlert(c.Request().Context(), c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Overview 仪表盘汇总
// GET /api/overview
func (h *Handler) Overview(c echo.Context) error {
	ov, err := h.service.Overview(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, ov)
}

func badRequest(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, map[string]string{
		"error": "请求参数错误",
	})
}

// fail 把服务层错误映射为 HTTP 状态码。
func (h *Handler) fail(c echo.Context, err error) error {
	var (
		status int
		msg    string
	)
	switch {
	case errors.Is(err, fleet.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "请先登录"
	case errors.Is(err, fleet.ErrNotFound):
		status, msg = http.StatusNotFound, "记录不存在"
	case errors.Is(err, fleet.ErrInvalidArgument):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, fleet.ErrInvalidTransition):
		status, msg = http.StatusConflict, "告警状态不允许该操作"
	default:
		h.logger.Error("请求处理失败",
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		status, msg = http.StatusInternalServerError, "服务器内部错误"
	}
	return c.JSON(status, map[string]string{
		"error": msg,
	})
}
