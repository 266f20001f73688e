package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wwwzy/medfleet/internal/fleet"
	"github.com/wwwzy/medfleet/internal/storage"
)

// Options 配置 HTTP 边界。
type Options struct {
	// JWTSecret 用于校验 Bearer token（HS256）。
	JWTSecret []byte
	Logger    *zap.Logger
	// Gatherer 为 /metrics 暴露的指标源；nil 时使用 prometheus.DefaultGatherer。
	Gatherer prometheus.Gatherer

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server 把 fleet.Service 暴露为 HTTP 接口。
type Server struct {
	echo    *echo.Echo
	handler *Handler
	logger  *zap.Logger
}

func NewServer(svc *fleet.Service, store *storage.Storage, opts Options) (*Server, error) {
	if svc == nil {
		return nil, errors.New("api: nil service")
	}
	if store == nil {
		return nil, errors.New("api: nil storage")
	}
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("api: empty jwt secret")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(accessLog(logger))

	h := NewHandler(logger, svc, store)
	s := &Server{echo: e, handler: h, logger: logger}

	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	g := e.Group("/api", bearerAuth(opts.JWTSecret), traceContext())
	g.GET("/devices", h.ListDevices)
	g.POST("/devices", h.CreateDevice)
	g.GET("/devices/:id", h.GetDevice)
	g.PUT("/devices/:id/status", h.UpdateDeviceStatus)
	g.DELETE("/devices/:id", h.RemoveDevice)
	g.POST("/devices/:id/metrics", h.RecordMetric)
	g.GET("/devices/:id/metrics", h.MetricsByDevice)

	g.GET("/alerts", h.ListAlerts)
	g.POST("/alerts", h.CreateAlert)
	g.POST("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	g.POST("/alerts/:id/resolve", h.ResolveAlert)

	g.GET("/overview", h.Overview)

	return s, nil
}

// Handler 返回底层 http.Handler，便于测试或挂到其他 server 上。
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start 监听 addr 并阻塞，直到 Shutdown 被调用。正常关闭时返回 nil。
func (s *Server) Start(addr string) error {
	s.logger.Info("HTTP 服务启动", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
