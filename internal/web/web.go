package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"agromonitor/auth"
	"agromonitor/internal/logger"
	"agromonitor/internal/web/api"
	"agromonitor/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies are the services the routes are built on
type Dependencies struct {
	Readings      api.ReadingAPI
	Devices       api.DeviceAPI
	Notifications api.NotificationLog
	Monitor       api.Monitor
	DefaultDevice string
}

type WebServer struct {
	router *gin.Engine
	srv    *http.Server
	log    zerolog.Logger
}

func NewWebServer(deps Dependencies, JWTSecret string) *WebServer {
	router := gin.New()
	log := logger.WithComponent("http")

	authModule := auth.NewAuthModule(JWTSecret)
	if authModule.Disabled() {
		log.Warn().Msg("jwt.secret is empty, API authentication disabled")
	}
	middlewareManager := middleware.NewMiddlewareManager(authModule)
	router.Use(middlewareManager.Recovery(), middlewareManager.RequestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api.RegisterSensorRoutes(router, deps.Readings, deps.DefaultDevice)
	api.RegisterDeviceRoutes(router, middlewareManager, deps.Devices)
	api.RegisterNotificationRoutes(router, middlewareManager, deps.Notifications)
	api.RegisterMonitorRoutes(router, middlewareManager, deps.Monitor)

	return &WebServer{
		router: router,
		log:    log,
		srv: &http.Server{
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Handler exposes the router, mainly for tests
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called
func (ws *WebServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	ws.log.Info().Str("addr", addr).Msg("listening")
	if err := ws.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.srv.Shutdown(ctx)
}
