package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"agromonitor/internal/models"
	"agromonitor/internal/services"
	"agromonitor/internal/utils"
	webmodels "agromonitor/internal/web/models"

	"github.com/gin-gonic/gin"
)

const defaultRange = 24 * time.Hour

// ReadingAPI is what the sensor routes need from the reading service
type ReadingAPI interface {
	Ingest(ctx context.Context, r models.SensorReading) (models.SensorReading, error)
	Latest(ctx context.Context, deviceID string) (models.SensorReading, error)
	Range(ctx context.Context, deviceID string, from, to time.Time) ([]models.SensorReading, error)
}

// RegisterSensorRoutes mounts ingestion and reading queries. Devices post
// without a token, as the firmware has no way to obtain one.
func RegisterSensorRoutes(r *gin.Engine, readings ReadingAPI, defaultDevice string) {
	sensors := r.Group("/api/sensores")
	{
		sensors.POST("/sensores", func(c *gin.Context) {
			var reading models.SensorReading
			if err := c.ShouldBindJSON(&reading); err != nil {
				c.JSON(http.StatusBadRequest, webmodels.ErrorResponse{Error: "Dados inválidos", Detail: err.Error()})
				return
			}

			stored, err := readings.Ingest(c.Request.Context(), reading)
			switch {
			case errors.Is(err, services.ErrDeviceNotFound):
				c.JSON(http.StatusNotFound, webmodels.ErrorResponse{Error: "Dispositivo não encontrado"})
			case errors.Is(err, services.ErrInvalidReading):
				c.JSON(http.StatusBadRequest, webmodels.ErrorResponse{Error: "Dados inválidos", Detail: err.Error()})
			case err != nil:
				c.JSON(http.StatusInternalServerError, webmodels.ErrorResponse{Error: "Erro ao salvar dados do sensor", Detail: err.Error()})
			default:
				c.JSON(http.StatusCreated, stored)
			}
		})

		sensors.GET("/sensores", func(c *gin.Context) {
			deviceID := c.DefaultQuery("deviceId", defaultDevice)
			reading, err := readings.Latest(c.Request.Context(), deviceID)
			if errors.Is(err, services.ErrNoReadings) {
				c.JSON(http.StatusNotFound, webmodels.ErrorResponse{Error: "Nenhuma leitura encontrada"})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, webmodels.ErrorResponse{Error: "Erro ao buscar dados do sensor", Detail: err.Error()})
				return
			}
			c.JSON(http.StatusOK, reading)
		})

		sensors.GET("/sensores/:deviceId", func(c *gin.Context) {
			deviceID := c.Param("deviceId")
			to := time.Now().UTC()
			from := to.Add(-defaultRange)

			if s := c.Query("dataInicio"); s != "" {
				t, err := utils.ParseDate(s)
				if err != nil {
					c.JSON(http.StatusBadRequest, webmodels.ErrorResponse{Error: "Datas inválidas", Detail: err.Error()})
					return
				}
				from = t
			}
			if s := c.Query("dataFim"); s != "" {
				t, err := utils.ParseDate(s)
				if err != nil {
					c.JSON(http.StatusBadRequest, webmodels.ErrorResponse{Error: "Datas inválidas", Detail: err.Error()})
					return
				}
				to = utils.EndOfDay(s, t)
			}

			list, err := readings.Range(c.Request.Context(), deviceID, from, to)
			if errors.Is(err, services.ErrInvalidRange) {
				c.JSON(http.StatusBadRequest, webmodels.ErrorResponse{Error: "Datas inválidas", Detail: err.Error()})
				return
			}
			if err != nil {
				c.JSON(http.StatusInternalServerError, webmodels.ErrorResponse{Error: "Erro ao buscar dados do sensor", Detail: err.Error()})
				return
			}
			c.JSON(http.StatusOK, webmodels.ReadingsResponse{
				DeviceID: deviceID,
				From:     from.Format(time.RFC3339),
				To:       to.Format(time.RFC3339),
				Readings: list,
			})
		})
	}
}
