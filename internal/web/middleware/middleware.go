package middleware

import (
	"strconv"
	"time"

	"agromonitor/auth"
	"agromonitor/internal/logger"
	"agromonitor/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type MiddlewareManager struct {
	auth *auth.AuthModule
	log  zerolog.Logger
}

func NewMiddlewareManager(auth *auth.AuthModule) *MiddlewareManager {
	return &MiddlewareManager{
		auth: auth,
		log:  logger.WithComponent("http"),
	}
}

// RequestLogger logs each request and records its metrics
func (m *MiddlewareManager) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)

		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(elapsed.Seconds())

		ev := m.log.Debug()
		if status >= 500 {
			ev = m.log.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("elapsed", elapsed).
			Msg("request")
	}
}

// Recovery turns handler panics into 500 responses
func (m *MiddlewareManager) Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, err interface{}) {
		metrics.PanicsRecovered.WithLabelValues("http").Inc()
		m.log.Error().Interface("panic", err).Str("path", c.Request.URL.Path).Msg("recovered from panic")
		c.AbortWithStatusJSON(500, gin.H{"erro": "Erro interno"})
	})
}
