package api

import (
	"context"
	"errors"
	"net/http"

	"agromonitor/internal/models"
	"agromonitor/internal/services"
	"agromonitor/internal/web/middleware"
	webmodels "agromonitor/internal/web/models"

	"github.com/gin-gonic/gin"
)

type DeviceAPI interface {
	Register(ctx context.Context, name, deviceID, userID string) (models.Device, error)
}

func RegisterDeviceRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, devices DeviceAPI) {
	group := r.Group("/api/dispositivos")
	group.Use(middleware.RequireAuth())
	{
		group.POST("", func(c *gin.Context) {
			var req webmodels.CreateDeviceRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, webmodels.ErrorResponse{Error: "Dados inválidos", Detail: err.Error()})
				return
			}
			if req.UserID == "" {
				req.UserID = c.GetString("user_id")
			}

			dev, err := devices.Register(c.Request.Context(), req.Name, req.DeviceID, req.UserID)
			switch {
			case errors.Is(err, services.ErrMissingFields):
				c.JSON(http.StatusBadRequest, webmodels.ErrorResponse{Error: "Campos obrigatórios: nome, deviceId, usuarioId"})
			case errors.Is(err, services.ErrDeviceExists):
				c.JSON(http.StatusConflict, webmodels.ErrorResponse{Error: "Dispositivo já cadastrado"})
			case err != nil:
				c.JSON(http.StatusInternalServerError, webmodels.ErrorResponse{Error: "Erro ao cadastrar dispositivo", Detail: err.Error()})
			default:
				c.JSON(http.StatusCreated, dev)
			}
		})
	}
}
