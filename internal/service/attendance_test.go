package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/testutil"
)

func TestCreateSessionSnapshotsEnrollment(t *testing.T) {
	env := newEnv(t)
	c := env.ongoingClass(t, 5, 4)
	for _, name := range []string{"a", "b", "c"} {
		_, err := env.enrollments.Enroll(env.ctx, env.user(t, name), c)
		require.NoError(t, err)
	}

	sess, err := env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, sess.TotalEnrolled)
	assert.Equal(t, 0, sess.TotalPresent)
	assert.Equal(t, epoch, sess.SessionDate)
	assert.Equal(t, 2, testutil.QueryInt(t, env.db, "SELECT current_session FROM classes WHERE id = ?", c))

	_, err = env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, testutil.QueryInt(t, env.db, "SELECT current_session FROM classes WHERE id = ?", c))

	_, err = env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: 2})
	requireKind(t, err, KindConflict)
	_, err = env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: 5})
	requireKind(t, err, KindValidation)
	_, err = env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: 0})
	requireKind(t, err, KindValidation)
	_, err = env.attendance.CreateSession(env.ctx, SessionInput{ClassID: 999, SessionNumber: 1})
	requireKind(t, err, KindNotFound)

	sessions, err := env.attendance.ListSessionsByClass(env.ctx, c)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, 1, sessions[0].SessionNumber)
}

func TestMarkPresentOnlyOnce(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "alice")
	c := env.ongoingClass(t, 5, 4)
	e, err := env.enrollments.Enroll(env.ctx, u, c)
	require.NoError(t, err)
	sess, err := env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: 1})
	require.NoError(t, err)

	got, err := env.attendance.MarkPresent(env.ctx, sess.ID, u, "on time")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalPresent)
	require.Len(t, got.Attendees, 1)
	assert.Equal(t, e.ID, got.Attendees[0].EnrollmentID)

	_, err = env.attendance.MarkPresent(env.ctx, sess.ID, u, "again")
	requireKind(t, err, KindConflict)

	assert.Equal(t, 1, testutil.QueryInt(t, env.db, "SELECT total_present FROM attendance_sessions WHERE id = ?", sess.ID))
	assert.Equal(t, 3, testutil.QueryInt(t, env.db, "SELECT remaining_sessions FROM class_enrollments WHERE id = ?", e.ID))
	assert.Equal(t, 1, testutil.QueryInt(t, env.db, "SELECT COUNT(*) FROM enrollment_attendance WHERE enrollment_id = ?", e.ID))
}

func TestMarkPresentRequiresEnrollment(t *testing.T) {
	env := newEnv(t)
	c := env.ongoingClass(t, 5, 4)
	sess, err := env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: 1})
	require.NoError(t, err)

	_, err = env.attendance.MarkPresent(env.ctx, sess.ID, env.user(t, "stranger"), "")
	requireKind(t, err, KindNotFound)
	_, err = env.attendance.MarkPresent(env.ctx, 999, env.user(t, "ghost"), "")
	requireKind(t, err, KindNotFound)

	u := env.user(t, "paused")
	e, err := env.enrollments.Enroll(env.ctx, u, c)
	require.NoError(t, err)
	_, err = env.db.Exec("UPDATE class_enrollments SET status = 'paused' WHERE id = ?", e.ID)
	require.NoError(t, err)
	_, err = env.attendance.MarkPresent(env.ctx, sess.ID, u, "")
	requireKind(t, err, KindConflict)
}

func TestAttendanceReport(t *testing.T) {
	env := newEnv(t)
	u := env.user(t, "alice")
	c := env.ongoingClass(t, 5, 4)
	_, err := env.enrollments.Enroll(env.ctx, u, c)
	require.NoError(t, err)
	for n := 1; n <= 3; n++ {
		sess, err := env.attendance.CreateSession(env.ctx, SessionInput{ClassID: c, SessionNumber: n})
		require.NoError(t, err)
		if n != 2 {
			_, err = env.attendance.MarkPresent(env.ctx, sess.ID, u, "")
			require.NoError(t, err)
		}
	}

	r, err := env.attendance.Report(env.ctx, u, c)
	require.NoError(t, err)
	assert.Equal(t, 4, r.TotalSessions)
	assert.Equal(t, 2, r.AttendedCount)
	assert.Equal(t, 2, r.RemainingSessions)
	assert.InDelta(t, 50.0, r.AttendanceRate, 0.001)
	require.Len(t, r.Entries, 2)
	assert.Equal(t, 3, r.Entries[1].SessionNumber)

	_, err = env.attendance.Report(env.ctx, env.user(t, "bob"), c)
	requireKind(t, err, KindNotFound)
}
