package model

import "time"

// EventID identifies a club event.
type EventID = int64

// LeadTime names a reminder lead time. Each lead time owns one flag on Event.
type LeadTime string

// Supported lead times.
const (
	LeadOneHour LeadTime = "1h"
	LeadOneDay  LeadTime = "24h"
)

// Event is a scheduled group activity.
//
// Reminded1h and Reminded24h only ever move from false to true.
type Event struct {
	ID          EventID
	Title       string
	Date        time.Time
	GroupID     GroupID
	Reminded1h  bool
	Reminded24h bool
}

// Reminded reports whether the reminder for lead was already sent.
func (e Event) Reminded(lead LeadTime) bool {
	switch lead {
	case LeadOneHour:
		return e.Reminded1h
	case LeadOneDay:
		return e.Reminded24h
	default:
		return false
	}
}

// MarkReminded sets the flag for lead. It never clears a flag.
func (e *Event) MarkReminded(lead LeadTime) {
	switch lead {
	case LeadOneHour:
		e.Reminded1h = true
	case LeadOneDay:
		e.Reminded24h = true
	}
}
