package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/testutil"
)

func TestEnrollTakesOneSeat(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "alice")
	c := env.upcomingClass(t, 5, 12)

	e, err := env.enrollments.Enroll(env.ctx, u, c)
	require.NoError(t, err)
	assert.Equal(t, 12, e.RemainingSessions)
	assert.Equal(t, model.EnrollmentActive, e.Status)
	assert.False(t, e.PaymentStatus)
	assert.Equal(t, 1, env.membersOf(t, c))
	require.Len(t, env.events.enrollments, 1)
	assert.Equal(t, EventEnrollmentCreated, env.events.enrollments[0].Type)
}

func TestEnrollFullClassIsRejected(t *testing.T) {
	env := newEnv(t)
	c := env.upcomingClass(t, 1, 8)

	_, err := env.enrollments.Enroll(env.ctx, env.user(t, "first"), c)
	require.NoError(t, err)
	assert.Equal(t, 1, env.membersOf(t, c))

	_, err = env.enrollments.Enroll(env.ctx, env.user(t, "second"), c)
	requireKind(t, err, KindConflict)
	assert.Contains(t, err.Error(), "full")
	assert.Equal(t, 1, env.membersOf(t, c))
}

func TestEnrollTwiceIsRejected(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "alice")
	c := env.upcomingClass(t, 5, 8)

	_, err := env.enrollments.Enroll(env.ctx, u, c)
	require.NoError(t, err)
	_, err = env.enrollments.Enroll(env.ctx, u, c)
	requireKind(t, err, KindConflict)
	assert.Equal(t, 1, env.membersOf(t, c))
}

func TestEnrollClosedClasses(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "alice")
	cancelled := testutil.InsertClass(t, env.db, testutil.ClassFixture{
		MaxMembers: 5, TotalSessions: 8, Start: epoch.AddDate(0, 0, 1), End: epoch.AddDate(0, 1, 0), Cancelled: true,
	})
	finished := testutil.InsertClass(t, env.db, testutil.ClassFixture{
		MaxMembers: 5, TotalSessions: 8, Start: epoch.AddDate(0, -2, 0), End: epoch.AddDate(0, -1, 0),
	})

	_, err := env.enrollments.Enroll(env.ctx, u, cancelled)
	requireKind(t, err, KindConflict)
	_, err = env.enrollments.Enroll(env.ctx, u, finished)
	requireKind(t, err, KindConflict)
	_, err = env.enrollments.Enroll(env.ctx, u, 999)
	requireKind(t, err, KindNotFound)
	_, err = env.enrollments.Enroll(env.ctx, 0, finished)
	requireKind(t, err, KindValidation)
}

func TestCancelEnrollmentReleasesSeat(t *testing.T) {
	env := newEnv(t)
	owner := env.user(t, "alice")
	other := env.user(t, "bob")
	c := env.upcomingClass(t, 5, 8)
	e, err := env.enrollments.Enroll(env.ctx, owner, c)
	require.NoError(t, err)

	err = env.enrollments.Cancel(env.ctx, Actor{UserID: other}, e.ID)
	requireKind(t, err, KindForbidden)
	assert.Equal(t, 1, env.membersOf(t, c))

	require.NoError(t, env.enrollments.Cancel(env.ctx, Actor{UserID: owner}, e.ID))
	assert.Equal(t, 0, env.membersOf(t, c))
	assert.Equal(t, 0, testutil.QueryInt(t, env.db, "SELECT COUNT(*) FROM class_enrollments WHERE id = ?", e.ID))

	err = env.enrollments.Cancel(env.ctx, Actor{UserID: owner}, e.ID)
	requireKind(t, err, KindNotFound)
}

func TestCancelEnrollmentDuringOngoingClass(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "alice")
	c := env.ongoingClass(t, 5, 8)
	e, err := env.enrollments.Enroll(env.ctx, u, c)
	require.NoError(t, err)

	err = env.enrollments.Cancel(env.ctx, Actor{UserID: 1, Admin: true}, e.ID)
	requireKind(t, err, KindConflict)
	assert.Equal(t, 1, env.membersOf(t, c))
}

func TestListEnrollmentsCarryClassStatus(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "alice")
	up := env.upcomingClass(t, 5, 8)
	on := env.ongoingClass(t, 5, 8)
	_, err := env.enrollments.Enroll(env.ctx, u, up)
	require.NoError(t, err)
	_, err = env.enrollments.Enroll(env.ctx, u, on)
	require.NoError(t, err)

	views, err := env.enrollments.ListByUser(env.ctx, u)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, model.ClassUpcoming, views[0].ClassStatus)
	assert.Equal(t, model.ClassOngoing, views[1].ClassStatus)

	roster, err := env.enrollments.ListByClass(env.ctx, on)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, u, roster[0].UserID)

	_, err = env.enrollments.ListByClass(env.ctx, 999)
	requireKind(t, err, KindNotFound)
}

func TestClassCatalogue(t *testing.T) {
	env := newEnv(t)
	start := epoch.AddDate(0, 0, 3)
	v, err := env.classes.Create(env.ctx, ClassInput{
		Name: "Spin", MaxMembers: 12, TotalSessions: 10, StartDate: start, EndDate: start.AddDate(0, 1, 0),
		Schedule: []model.ScheduleSlot{{Weekday: 2, StartTime: "07:00", EndTime: "08:00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.ClassUpcoming, v.Status)
	env.ongoingClass(t, 5, 8)

	_, err = env.classes.Create(env.ctx, ClassInput{Name: "Bad", MaxMembers: 0, TotalSessions: 1, StartDate: start, EndDate: start})
	requireKind(t, err, KindValidation)
	_, err = env.classes.Create(env.ctx, ClassInput{Name: "Bad", MaxMembers: 1, TotalSessions: 1, StartDate: start, EndDate: start.AddDate(0, 0, -1)})
	requireKind(t, err, KindValidation)
	_, err = env.classes.Create(env.ctx, ClassInput{
		Name: "Bad", MaxMembers: 1, TotalSessions: 1, StartDate: start, EndDate: start,
		Schedule: []model.ScheduleSlot{{Weekday: 9, StartTime: "07:00", EndTime: "08:00"}},
	})
	requireKind(t, err, KindValidation)

	all, err := env.classes.List(env.ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	ongoing, err := env.classes.List(env.ctx, model.ClassOngoing)
	require.NoError(t, err)
	assert.Len(t, ongoing, 1)
	_, err = env.classes.List(env.ctx, "weird")
	requireKind(t, err, KindValidation)

	got, err := env.classes.Cancel(env.ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClassCancelled, got.Status)
	require.Len(t, got.Schedule, 1)

	_, err = env.classes.Cancel(env.ctx, 999)
	requireKind(t, err, KindNotFound)
	_, err = env.classes.Get(env.ctx, 999)
	requireKind(t, err, KindNotFound)
}
