package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"agromonitor/internal/models"

	"github.com/google/uuid"
)

// TimestampFormat is ISO-8601 in UTC with millisecond precision
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// PanelMode selects what opening the notification panel does
type PanelMode string

const (
	// ModeClear returns the entries and empties the log
	ModeClear PanelMode = "clear"
	// ModeMarkRead returns the entries and keeps them, flagged as read
	ModeMarkRead PanelMode = "mark_read"
)

// ParsePanelMode parses a configured panel mode
func ParsePanelMode(s string) (PanelMode, error) {
	switch PanelMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeClear:
		return ModeClear, nil
	case ModeMarkRead:
		return ModeMarkRead, nil
	}
	return "", fmt.Errorf("unknown panel mode %q", s)
}

type logEntry struct {
	entry models.NotificationEntry
	read  bool
}

// Log is the in-memory notification log, most recent first
type Log struct {
	mu         sync.Mutex
	entries    []logEntry
	maxEntries int
	mode       PanelMode
	now        func() time.Time
}

// NewLog creates an empty log. maxEntries <= 0 keeps every entry.
func NewLog(maxEntries int, mode PanelMode) *Log {
	if mode == "" {
		mode = ModeClear
	}
	return &Log{
		maxEntries: maxEntries,
		mode:       mode,
		now:        time.Now,
	}
}

// Mode returns the panel mode
func (l *Log) Mode() PanelMode {
	return l.mode
}

// Append records a new entry at the head of the log and returns it
func (l *Log) Append(kind models.NotificationKind, text string) models.NotificationEntry {
	entry := models.NotificationEntry{
		ID:        newID(),
		Kind:      kind,
		Text:      text,
		Timestamp: l.now().UTC().Format(TimestampFormat),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, logEntry{})
	copy(l.entries[1:], l.entries)
	l.entries[0] = logEntry{entry: entry}
	if l.maxEntries > 0 && len(l.entries) > l.maxEntries {
		l.entries = l.entries[:l.maxEntries]
	}
	return entry
}

// Entries returns the entries most recent first, with their read flags
func (l *Log) Entries() []models.NotificationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// Open is the panel read. In ModeClear it drains the log, in ModeMarkRead it
// marks every entry read.
func (l *Log) Open() []models.NotificationEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.snapshot()
	switch l.mode {
	case ModeMarkRead:
		l.markAllRead()
	default:
		l.entries = nil
	}
	return out
}

// Unread counts entries not yet seen
func (l *Log) Unread() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if !e.read {
			n++
		}
	}
	return n
}

func (l *Log) MarkAllRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.markAllRead()
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) markAllRead() {
	for i := range l.entries {
		l.entries[i].read = true
	}
}

func (l *Log) snapshot() []models.NotificationEntry {
	out := make([]models.NotificationEntry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.entry
		out[i].Read = e.read
	}
	return out
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
