package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/runclub/internal/domain/model"
)

const defaultHistoryCap = 500

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a mutex-guarded, in-memory Store.
//
// Ordering follows the SQL adapter: runs and attendance newest first,
// events by date then id ascending, groups by id ascending.
type MemoryStore struct {
	mu         sync.RWMutex
	members    map[model.MemberID]model.Member
	groups     map[model.GroupID]model.Group
	runs       map[model.MemberID][]model.RunRecord
	attendance map[model.MemberID][]model.AttendanceRecord
	events     map[model.EventID]model.Event
	historyCap int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		members:    make(map[model.MemberID]model.Member),
		groups:     make(map[model.GroupID]model.Group),
		runs:       make(map[model.MemberID][]model.RunRecord),
		attendance: make(map[model.MemberID][]model.AttendanceRecord),
		events:     make(map[model.EventID]model.Event),
		historyCap: defaultHistoryCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PutMember inserts or replaces a member.
func (s *MemoryStore) PutMember(m model.Member) {
	s.mu.Lock()
	s.members[m.ID] = m
	s.mu.Unlock()
}

// PutGroup inserts or replaces a group.
func (s *MemoryStore) PutGroup(g model.Group) {
	g.MemberIDs = append([]model.MemberID(nil), g.MemberIDs...)
	s.mu.Lock()
	s.groups[g.ID] = g
	s.mu.Unlock()
}

// AddRun appends a run record for its member.
func (s *MemoryStore) AddRun(r model.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := append(s.runs[r.MemberID], r)
	if len(runs) > s.historyCap {
		sort.SliceStable(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
		runs = runs[:s.historyCap]
	}
	s.runs[r.MemberID] = runs
}

// AddAttendance appends an attendance record for its member.
func (s *MemoryStore) AddAttendance(a model.AttendanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := append(s.attendance[a.MemberID], a)
	if len(recs) > s.historyCap {
		sort.SliceStable(recs, func(i, j int) bool { return recs[i].EventDate.After(recs[j].EventDate) })
		recs = recs[:s.historyCap]
	}
	s.attendance[a.MemberID] = recs
}

// PutEvent inserts or replaces an event.
func (s *MemoryStore) PutEvent(e model.Event) {
	s.mu.Lock()
	s.events[e.ID] = e
	s.mu.Unlock()
}

// Event returns a stored event.
func (s *MemoryStore) Event(_ context.Context, id model.EventID) (model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return model.Event{}, fmt.Errorf("event %d: %w", id, model.ErrNotFound)
	}
	return e, nil
}

// Member resolves a member by id.
func (s *MemoryStore) Member(_ context.Context, id model.MemberID) (model.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return model.Member{}, fmt.Errorf("member %s: %w", id, model.ErrNotFound)
	}
	return m, nil
}

// MemberByName resolves a member by display name.
func (s *MemoryStore) MemberByName(_ context.Context, name string) (model.Member, error) {
	want := strings.TrimSpace(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if strings.EqualFold(m.DisplayName(), want) {
			return m, nil
		}
	}
	return model.Member{}, fmt.Errorf("member %q: %w", name, model.ErrNotFound)
}

// GroupsOf returns the groups id belongs to, ordered by group id.
func (s *MemoryStore) GroupsOf(_ context.Context, id model.MemberID) ([]model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Group
	for _, g := range s.groups {
		if g.Has(id) {
			out = append(out, cloneGroup(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Group resolves a group by id.
func (s *MemoryStore) Group(_ context.Context, id model.GroupID) (model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return model.Group{}, fmt.Errorf("group %d: %w", id, model.ErrNotFound)
	}
	return cloneGroup(g), nil
}

// RecentRuns returns at most limit runs of id, newest first.
func (s *MemoryStore) RecentRuns(_ context.Context, id model.MemberID, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	out := append([]model.RunRecord(nil), s.runs[id]...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecentAttendance returns at most limit attendance records of id, newest first.
func (s *MemoryStore) RecentAttendance(_ context.Context, id model.MemberID, limit int) ([]model.AttendanceRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	out := append([]model.AttendanceRecord(nil), s.attendance[id]...)
	s.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].EventDate.After(out[j].EventDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DueForReminder returns unflagged events dated in [from, to).
func (s *MemoryStore) DueForReminder(_ context.Context, lead model.LeadTime, from, to time.Time) ([]model.Event, error) {
	if err := checkLead(lead); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Event
	for _, e := range s.events {
		if inWindow(e.Date, from, to) && !e.Reminded(lead) {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

// EventsBetween returns at most limit events dated in [from, to).
func (s *MemoryStore) EventsBetween(_ context.Context, from, to time.Time, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	s.mu.RLock()
	var out []model.Event
	for _, e := range s.events {
		if inWindow(e.Date, from, to) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	sortEvents(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkReminded sets the lead flag on the listed events. Unknown ids are ignored.
func (s *MemoryStore) MarkReminded(_ context.Context, lead model.LeadTime, ids []model.EventID) error {
	if err := checkLead(lead); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		e, ok := s.events[id]
		if !ok {
			continue
		}
		e.MarkReminded(lead)
		s.events[id] = e
	}
	return nil
}

// Counts reports how many members, groups and events are stored.
func (s *MemoryStore) Counts() (members, groups, events int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members), len(s.groups), len(s.events)
}

func checkLead(lead model.LeadTime) error {
	switch lead {
	case model.LeadOneHour, model.LeadOneDay:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLead, lead)
	}
}

func inWindow(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func sortEvents(evs []model.Event) {
	sort.Slice(evs, func(i, j int) bool {
		if !evs[i].Date.Equal(evs[j].Date) {
			return evs[i].Date.Before(evs[j].Date)
		}
		return evs[i].ID < evs[j].ID
	})
}

func cloneGroup(g model.Group) model.Group {
	g.MemberIDs = append([]model.MemberID(nil), g.MemberIDs...)
	if g.ResponsibleID != nil {
		id := *g.ResponsibleID
		g.ResponsibleID = &id
	}
	return g
}
