// Package postgres reads club records from the club's existing schema and
// writes reminder flags back to it.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/okian/runclub/internal/adapters/repository"
	"github.com/okian/runclub/internal/domain/model"
)

var _ repository.Store = (*Store)(nil)

// Store implements repository.Store on Postgres.
type Store struct {
	db Querier
}

// New creates a Store on db.
func New(db Querier) *Store {
	return &Store{db: db}
}

const memberColumns = `id::text, role, prenom, nom, email, COALESCE(fcm_token, '')`

// Member resolves a member by id.
func (s *Store) Member(ctx context.Context, id model.MemberID) (model.Member, error) {
	row := s.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM users WHERE id = $1`, id)
	m, err := scanMember(row)
	if err != nil {
		return model.Member{}, fmt.Errorf("member %s: %w", id, err)
	}
	return m, nil
}

// MemberByName resolves a member by "first last" display name, case-insensitively.
func (s *Store) MemberByName(ctx context.Context, name string) (model.Member, error) {
	row := s.db.QueryRow(ctx, `SELECT `+memberColumns+` FROM users
		WHERE lower(trim(prenom || ' ' || nom)) = lower(trim($1))
		ORDER BY id LIMIT 1`, name)
	m, err := scanMember(row)
	if err != nil {
		return model.Member{}, fmt.Errorf("member %q: %w", name, err)
	}
	return m, nil
}

// GroupsOf returns the groups id is an adherent of, ordered by id.
func (s *Store) GroupsOf(ctx context.Context, id model.MemberID) ([]model.Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT g.id, g.nom, COALESCE(g.niveau, ''), COALESCE(g.responsable_id::text, '')
		FROM groupes_running g
		JOIN groupe_adherents ga ON ga.groupe_id = g.id
		WHERE ga.adherent_id = $1
		ORDER BY g.id`, id)
	if err != nil {
		return nil, fmt.Errorf("groups of %s: %w", id, err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, fmt.Errorf("groups of %s: %w", id, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("groups of %s: %w", id, err)
	}
	if len(groups) == 0 {
		return nil, nil
	}
	if err := s.loadMembers(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Group resolves a group with its membership.
func (s *Store) Group(ctx context.Context, id model.GroupID) (model.Group, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, nom, COALESCE(niveau, ''), COALESCE(responsable_id::text, '')
		FROM groupes_running WHERE id = $1`, id)
	g, err := scanGroup(row)
	if err != nil {
		return model.Group{}, fmt.Errorf("group %d: %w", id, err)
	}
	groups := []model.Group{g}
	if err := s.loadMembers(ctx, groups); err != nil {
		return model.Group{}, err
	}
	return groups[0], nil
}

func (s *Store) loadMembers(ctx context.Context, groups []model.Group) error {
	ids := make([]int64, len(groups))
	index := make(map[int64]int, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
		index[g.ID] = i
	}
	rows, err := s.db.Query(ctx, `
		SELECT groupe_id, adherent_id::text FROM groupe_adherents
		WHERE groupe_id = ANY($1)
		ORDER BY groupe_id, adherent_id`, ids)
	if err != nil {
		return fmt.Errorf("group members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			gid int64
			raw string
		)
		if err := rows.Scan(&gid, &raw); err != nil {
			return fmt.Errorf("group members: %w", err)
		}
		mid, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("group %d member %q: %w", gid, raw, err)
		}
		if i, ok := index[gid]; ok {
			groups[i].MemberIDs = append(groups[i].MemberIDs, mid)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("group members: %w", err)
	}
	return nil
}

// RecentRuns returns the newest run sessions of id.
func (s *Store) RecentRuns(ctx context.Context, id model.MemberID, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", repository.ErrInvalidLimit, limit)
	}
	rows, err := s.db.Query(ctx, `
		SELECT distance_km, duration_seconds, started_at
		FROM sessions_course
		WHERE adherent_id = $1
		ORDER BY started_at DESC
		LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("runs of %s: %w", id, err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		r := model.RunRecord{MemberID: id}
		if err := rows.Scan(&r.DistanceKm, &r.DurationSeconds, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("runs of %s: %w", id, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("runs of %s: %w", id, err)
	}
	return out, nil
}

// RecentAttendance returns the newest registrations of id with their event dates.
func (s *Store) RecentAttendance(ctx context.Context, id model.MemberID, limit int) ([]model.AttendanceRecord, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", repository.ErrInvalidLimit, limit)
	}
	rows, err := s.db.Query(ctx, `
		SELECT p.evenement_id, e.date
		FROM participations p
		JOIN evenements e ON e.id = p.evenement_id
		WHERE p.adherent_id = $1
		ORDER BY p.date_inscription DESC
		LIMIT $2`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("attendance of %s: %w", id, err)
	}
	defer rows.Close()

	var out []model.AttendanceRecord
	for rows.Next() {
		a := model.AttendanceRecord{MemberID: id}
		if err := rows.Scan(&a.EventID, &a.EventDate); err != nil {
			return nil, fmt.Errorf("attendance of %s: %w", id, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attendance of %s: %w", id, err)
	}
	return out, nil
}

const eventColumns = `id, titre, date, groupe_id, rappel_1h_envoye, rappel_24h_envoye`

// DueForReminder returns unflagged events in [from, to), oldest first.
func (s *Store) DueForReminder(ctx context.Context, lead model.LeadTime, from, to time.Time) ([]model.Event, error) {
	col, err := flagColumn(lead)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT `+eventColumns+` FROM evenements
		WHERE date >= $1 AND date < $2 AND `+col+` = false
		ORDER BY date ASC, id ASC`, from, to)
	if err != nil {
		return nil, fmt.Errorf("due events: %w", err)
	}
	return collectEvents(rows)
}

// EventsBetween returns at most limit events in [from, to), oldest first.
func (s *Store) EventsBetween(ctx context.Context, from, to time.Time, limit int) ([]model.Event, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: %d", repository.ErrInvalidLimit, limit)
	}
	rows, err := s.db.Query(ctx, `SELECT `+eventColumns+` FROM evenements
		WHERE date >= $1 AND date < $2
		ORDER BY date ASC, id ASC
		LIMIT $3`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("events between: %w", err)
	}
	return collectEvents(rows)
}

// MarkReminded sets the lead flag on ids. The update never clears a flag.
func (s *Store) MarkReminded(ctx context.Context, lead model.LeadTime, ids []model.EventID) error {
	col, err := flagColumn(lead)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, `UPDATE evenements SET `+col+` = true WHERE id = ANY($1)`, ids); err != nil {
		return fmt.Errorf("mark reminded %s: %w", lead, err)
	}
	return nil
}

func flagColumn(lead model.LeadTime) (string, error) {
	switch lead {
	case model.LeadOneHour:
		return "rappel_1h_envoye", nil
	case model.LeadOneDay:
		return "rappel_24h_envoye", nil
	default:
		return "", fmt.Errorf("%w: %q", repository.ErrInvalidLead, lead)
	}
}

func collectEvents(rows pgx.Rows) ([]model.Event, error) {
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		var e model.Event
		if err := rows.Scan(&e.ID, &e.Title, &e.Date, &e.GroupID, &e.Reminded1h, &e.Reminded24h); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan event: %w", err)
	}
	return out, nil
}

func scanMember(row pgx.Row) (model.Member, error) {
	var (
		m    model.Member
		raw  string
		role string
	)
	if err := row.Scan(&raw, &role, &m.FirstName, &m.LastName, &m.Email, &m.PushToken); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Member{}, model.ErrNotFound
		}
		return model.Member{}, err
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return model.Member{}, fmt.Errorf("member id %q: %w", raw, err)
	}
	m.ID = id
	m.Role = parseRole(role)
	return m, nil
}

func scanGroup(row pgx.Row) (model.Group, error) {
	var (
		g    model.Group
		resp string
	)
	if err := row.Scan(&g.ID, &g.Name, &g.Level, &resp); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Group{}, model.ErrNotFound
		}
		return model.Group{}, err
	}
	if resp != "" {
		id, err := uuid.Parse(resp)
		if err != nil {
			return model.Group{}, fmt.Errorf("responsible id %q: %w", resp, err)
		}
		g.ResponsibleID = &id
	}
	return g, nil
}

// parseRole maps the stored enum names to domain roles.
func parseRole(s string) model.Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ADHERENT", "MEMBER":
		return model.RoleMember
	case "ADMIN_PRINCIPAL":
		return model.RoleAdminPrincipal
	case "ADMIN_COACH":
		return model.RoleAdminCoach
	case "ADMIN_GROUPE", "ADMIN_GROUP":
		return model.RoleAdminGroup
	default:
		return model.Role(strings.ToLower(s))
	}
}
