package models

import "time"

// Device represents a registered sensor device
type Device struct {
	ID        string    `json:"id"`
	Name      string    `json:"nome"`
	DeviceID  string    `json:"deviceId"`
	UserID    string    `json:"usuarioId"`
	CreatedAt time.Time `json:"criadoEm"`
}

// NotificationKind tags a notification entry
type NotificationKind string

const (
	KindSoilDry   NotificationKind = "solo_seco"
	KindAirDry    NotificationKind = "ar_seco"
	KindPumpOn    NotificationKind = "bomba_on"
	KindPumpOff   NotificationKind = "bomba_off"
	KindInfo      NotificationKind = "info"
	KindThreshold NotificationKind = "limite" // custom rules
)

// Valid reports whether k is a known kind
func (k NotificationKind) Valid() bool {
	switch k {
	case KindSoilDry, KindAirDry, KindPumpOn, KindPumpOff, KindInfo, KindThreshold:
		return true
	}
	return false
}

// NotificationEntry is one alert surfaced in the notification panel.
// Entries are never changed after creation; Read is filled in by the log
// when entries are listed.
type NotificationEntry struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"tipo"`
	Text      string           `json:"texto"`
	Timestamp string           `json:"timestamp"`
	Read      bool             `json:"lida"`
}
