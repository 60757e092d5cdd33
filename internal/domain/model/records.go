package model

import "time"

// RunRecord is one recorded run session.
type RunRecord struct {
	MemberID        MemberID
	DistanceKm      float64
	DurationSeconds int64
	StartedAt       time.Time
}

// AttendanceRecord links a member to an event they signed up for.
type AttendanceRecord struct {
	MemberID  MemberID
	EventID   EventID
	EventDate time.Time
}
