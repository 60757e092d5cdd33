// Package repository defines the club data contract and an in-memory implementation.
package repository

import (
	"context"
	"time"

	"github.com/okian/runclub/internal/domain/model"
)

// Store provides read access to club records and write access to reminder flags.
// Implementations return model.ErrNotFound for unknown members and groups.
type Store interface {
	// Member resolves a member by id.
	Member(ctx context.Context, id model.MemberID) (model.Member, error)
	// MemberByName resolves a member by display name (case-insensitive).
	MemberByName(ctx context.Context, name string) (model.Member, error)

	// GroupsOf returns the groups id belongs to as a member, in group id order.
	GroupsOf(ctx context.Context, id model.MemberID) ([]model.Group, error)
	// Group resolves a group by id with its membership.
	Group(ctx context.Context, id model.GroupID) (model.Group, error)

	// RecentRuns returns at most limit runs of id, newest first.
	RecentRuns(ctx context.Context, id model.MemberID, limit int) ([]model.RunRecord, error)
	// RecentAttendance returns at most limit attendance records of id, newest first.
	RecentAttendance(ctx context.Context, id model.MemberID, limit int) ([]model.AttendanceRecord, error)

	// DueForReminder returns events dated in [from, to) whose lead flag is unset,
	// ordered by date ascending.
	DueForReminder(ctx context.Context, lead model.LeadTime, from, to time.Time) ([]model.Event, error)
	// EventsBetween returns at most limit events dated in [from, to), ordered by date ascending.
	EventsBetween(ctx context.Context, from, to time.Time, limit int) ([]model.Event, error)
	// MarkReminded sets the lead flag on every listed event. Flags are never cleared.
	MarkReminded(ctx context.Context, lead model.LeadTime, ids []model.EventID) error
}
