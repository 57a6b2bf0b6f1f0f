package models

import domain "agromonitor/internal/models"

type CreateDeviceRequest struct {
	Name     string `json:"nome"`
	DeviceID string `json:"deviceId"`
	UserID   string `json:"usuarioId"`
}

type ErrorResponse struct {
	Error  string `json:"erro"`
	Detail string `json:"detalhe,omitempty"`
}

type NotificationsResponse struct {
	Notifications []domain.NotificationEntry `json:"notificacoes"`
	Unread        int                        `json:"unread"`
}

type UnreadResponse struct {
	Unread int `json:"unread"`
}

type ReadingsResponse struct {
	DeviceID string                 `json:"deviceId"`
	From     string                 `json:"dataInicio"`
	To       string                 `json:"dataFim"`
	Readings []domain.SensorReading `json:"leituras"`
}
