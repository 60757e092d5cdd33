package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okian/runclub/internal/adapters/repository"
	"github.com/okian/runclub/internal/adapters/repository/postgres"
	"github.com/okian/runclub/internal/domain/model"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

var memberCols = []string{"id", "role", "prenom", "nom", "email", "fcm_token"}

func TestStore_Member(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT id::text, role, prenom, nom, email, COALESCE\(fcm_token, ''\) FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(memberCols).AddRow(id.String(), "ADHERENT", "Amira", "Ben Salah", "amira@club.tn", "tok-1"))

	m, err := postgres.New(mock).Member(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, id, m.ID)
	assert.Equal(t, model.RoleMember, m.Role)
	assert.Equal(t, "Amira Ben Salah", m.DisplayName())
	assert.Equal(t, "tok-1", m.PushToken)
}

func TestStore_MemberNotFound(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(memberCols))

	_, err := postgres.New(mock).Member(context.Background(), id)

	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestStore_MemberByName(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()

	mock.ExpectQuery(`lower\(trim\(prenom \|\| ' ' \|\| nom\)\) = lower\(trim\(\$1\)\)`).
		WithArgs("amira ben salah").
		WillReturnRows(pgxmock.NewRows(memberCols).AddRow(id.String(), "ADMIN_COACH", "Amira", "Ben Salah", "amira@club.tn", ""))

	m, err := postgres.New(mock).MemberByName(context.Background(), "amira ben salah")

	require.NoError(t, err)
	assert.Equal(t, model.RoleAdminCoach, m.Role)
	assert.False(t, m.HasPushToken())
}

func TestStore_GroupsOf(t *testing.T) {
	ctx := context.Background()
	mock := newMock(t)
	member, other, coach := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM groupes_running g\s+JOIN groupe_adherents ga`).
		WithArgs(member).
		WillReturnRows(pgxmock.NewRows([]string{"id", "nom", "niveau", "responsable_id"}).
			AddRow(int64(1), "Tempo", "intermediate", coach.String()).
			AddRow(int64(2), "Trail", "", ""))
	mock.ExpectQuery(`SELECT groupe_id, adherent_id::text FROM groupe_adherents`).
		WithArgs([]int64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"groupe_id", "adherent_id"}).
			AddRow(int64(1), member.String()).
			AddRow(int64(1), other.String()).
			AddRow(int64(2), member.String()))

	groups, err := postgres.New(mock).GroupsOf(ctx, member)

	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "Tempo", groups[0].Name)
	require.NotNil(t, groups[0].ResponsibleID)
	assert.Equal(t, coach, *groups[0].ResponsibleID)
	assert.Equal(t, []model.MemberID{member, other}, groups[0].MemberIDs)
	assert.Nil(t, groups[1].ResponsibleID)
	assert.Equal(t, []model.MemberID{member}, groups[1].MemberIDs)
}

func TestStore_GroupNotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery(`FROM groupes_running WHERE id = \$1`).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "nom", "niveau", "responsable_id"}))

	_, err := postgres.New(mock).Group(context.Background(), 404)

	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestStore_RecentRuns(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	started := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM sessions_course\s+WHERE adherent_id = \$1\s+ORDER BY started_at DESC\s+LIMIT \$2`).
		WithArgs(id, 20).
		WillReturnRows(pgxmock.NewRows([]string{"distance_km", "duration_seconds", "started_at"}).
			AddRow(5.0, int64(1500), started))

	runs, err := postgres.New(mock).RecentRuns(context.Background(), id, 20)

	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunRecord{MemberID: id, DistanceKm: 5, DurationSeconds: 1500, StartedAt: started}, runs[0])
}

func TestStore_RecentAttendance(t *testing.T) {
	mock := newMock(t)
	id := uuid.New()
	date := time.Date(2025, 3, 4, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`FROM participations p\s+JOIN evenements e`).
		WithArgs(id, 50).
		WillReturnRows(pgxmock.NewRows([]string{"evenement_id", "date"}).AddRow(int64(9), date))

	att, err := postgres.New(mock).RecentAttendance(context.Background(), id, 50)

	require.NoError(t, err)
	assert.Equal(t, []model.AttendanceRecord{{MemberID: id, EventID: 9, EventDate: date}}, att)
}

var eventCols = []string{"id", "titre", "date", "groupe_id", "rappel_1h_envoye", "rappel_24h_envoye"}

func TestStore_DueForReminder(t *testing.T) {
	mock := newMock(t)
	from := time.Date(2025, 3, 4, 16, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	mock.ExpectQuery(`FROM evenements\s+WHERE date >= \$1 AND date < \$2 AND rappel_1h_envoye = false`).
		WithArgs(from, to).
		WillReturnRows(pgxmock.NewRows(eventCols).
			AddRow(int64(10), "Intervals", from.Add(45*time.Minute), int64(5), false, true))

	evs, err := postgres.New(mock).DueForReminder(context.Background(), model.LeadOneHour, from, to)

	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "Intervals", evs[0].Title)
	assert.True(t, evs[0].Reminded24h)
}

func TestStore_EventsBetween(t *testing.T) {
	mock := newMock(t)
	from := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	mock.ExpectQuery(`FROM evenements\s+WHERE date >= \$1 AND date < \$2\s+ORDER BY date ASC, id ASC\s+LIMIT \$3`).
		WithArgs(from, to, 200).
		WillReturnError(errors.New("connection reset"))

	_, err := postgres.New(mock).EventsBetween(context.Background(), from, to, 200)

	assert.ErrorContains(t, err, "connection reset")
}

func TestStore_MarkReminded(t *testing.T) {
	mock := newMock(t)

	mock.ExpectExec(`UPDATE evenements SET rappel_24h_envoye = true WHERE id = ANY\(\$1\)`).
		WithArgs([]int64{3, 4}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	s := postgres.New(mock)
	require.NoError(t, s.MarkReminded(context.Background(), model.LeadOneDay, []model.EventID{3, 4}))
	require.NoError(t, s.MarkReminded(context.Background(), model.LeadOneDay, nil))
	assert.ErrorIs(t, s.MarkReminded(context.Background(), "2h", []model.EventID{1}), repository.ErrInvalidLead)
}
