// Package events is the in-process publish/subscribe channel for
// detection notifications.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies an event on the bus
type Type string

const (
	TypeCountUpdate Type = "PHISHING_COUNT_UPDATE"
	TypeDetected    Type = "PHISHING_DETECTED"
)

// DetectionDetails describes a newly flagged message
type DetectionDetails struct {
	MessageID string   `json:"message_id"`
	Sender    string   `json:"sender,omitempty"`
	Warnings  []string `json:"warnings"`
}

// Event is one notification. Count is meaningful for count updates,
// Details for detections.
type Event struct {
	Type      Type
	Count     int
	Details   *DetectionDetails
	Timestamp time.Time
}

// CountUpdate builds a PHISHING_COUNT_UPDATE event
func CountUpdate(count int) Event {
	return Event{Type: TypeCountUpdate, Count: count, Timestamp: time.Now()}
}

// Detected builds a PHISHING_DETECTED event
func Detected(details DetectionDetails) Event {
	return Event{Type: TypeDetected, Details: &details, Timestamp: time.Now()}
}

type countUpdateWire struct {
	Type  Type `json:"type"`
	Count int  `json:"count"`
}

type detectedWire struct {
	Type    Type              `json:"type"`
	Details *DetectionDetails `json:"details"`
}

// MarshalJSON renders the cross-process wire shape of the event
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case TypeCountUpdate:
		return json.Marshal(countUpdateWire{Type: e.Type, Count: e.Count})
	case TypeDetected:
		return json.Marshal(detectedWire{Type: e.Type, Details: e.Details})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}
