package models

import (
	"time"

	"github.com/google/uuid"
)

// Tab is the subset of browser tab state the tracker consumes
type Tab struct {
	ID     int    `json:"id" yaml:"id"`
	URL    string `json:"url" yaml:"url"`
	Active bool   `json:"active" yaml:"active"`
	// Status is the navigation status reported with update events ("loading", "complete")
	Status string `json:"status,omitempty" yaml:"status,omitempty"`
}

// TabEventType identifies what happened in the browser
type TabEventType string

const (
	TabEventActivated TabEventType = "tab_activated"
	TabEventUpdated   TabEventType = "tab_updated"
	TabEventAlarm     TabEventType = "alarm"
)

// TabEvent is one browser event forwarded by the extension bridge
type TabEvent struct {
	ID         uuid.UUID    `json:"id" yaml:"id"`
	Type       TabEventType `json:"type" yaml:"type"`
	Tab        *Tab         `json:"tab,omitempty" yaml:"tab,omitempty"`
	AlarmName  string       `json:"alarmName,omitempty" yaml:"alarmName,omitempty"`
	ReceivedAt time.Time    `json:"receivedAt" yaml:"receivedAt"`
}

// NewTabEvent creates an event stamped with a fresh ID and receive time
func NewTabEvent(eventType TabEventType, tab *Tab) *TabEvent {
	return &TabEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Tab:        tab,
		ReceivedAt: time.Now(),
	}
}

// NavigateCommand asks the extension to point a tab at a new URL
type NavigateCommand struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	TabID     int       `json:"tabId" yaml:"tabId"`
	URL       string    `json:"url" yaml:"url"`
	Reason    string    `json:"reason" yaml:"reason"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}
