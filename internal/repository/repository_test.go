package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-management/internal/model"
	"github.com/iliyamo/gym-management/internal/testutil"
)

func newTestStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	db := testutil.OpenDB(t)
	return NewStore(db), context.Background()
}

func TestClassIncrementMembersStopsAtCapacity(t *testing.T) {
	s, ctx := newTestStore(t)
	start := time.Now().UTC().AddDate(0, 0, 7)
	classID := testutil.InsertClass(t, s.DB(), testutil.ClassFixture{
		MaxMembers: 2, TotalSessions: 8, Start: start, End: start.AddDate(0, 1, 0),
	})

	for i := 0; i < 2; i++ {
		ok, err := s.Classes.IncrementMembers(ctx, classID)
		require.NoError(t, err)
		require.True(t, ok)
	}
	ok, err := s.Classes.IncrementMembers(ctx, classID)
	require.NoError(t, err)
	assert.False(t, ok)

	c, err := s.Classes.GetByID(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, 2, c.CurrentMembers)

	require.NoError(t, s.Classes.DecrementMembers(ctx, classID))
	require.NoError(t, s.Classes.DecrementMembers(ctx, classID))
	require.NoError(t, s.Classes.DecrementMembers(ctx, classID))
	c, err = s.Classes.GetByID(ctx, classID)
	require.NoError(t, err)
	assert.Equal(t, 0, c.CurrentMembers)
}

func TestClassCreateWithSchedule(t *testing.T) {
	s, ctx := newTestStore(t)
	start := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	c := &model.Class{
		Name: "Boxing", MaxMembers: 10, TotalSessions: 12,
		StartDate: start, EndDate: start.AddDate(0, 1, 0), Price: 900000,
		Schedule: []model.ScheduleSlot{
			{Weekday: 1, StartTime: "18:00", EndTime: "19:30", Room: "A"},
			{Weekday: 4, StartTime: "18:00", EndTime: "19:30", Room: "A"},
		},
	}
	require.NoError(t, s.Classes.Create(ctx, c))
	require.NotZero(t, c.ID)

	got, err := s.Classes.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Boxing", got.Name)
	assert.True(t, got.StartDate.Equal(start))
	require.Len(t, got.Schedule, 2)
	assert.Equal(t, 4, got.Schedule[1].Weekday)

	all, err := s.Classes.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Len(t, all[0].Schedule, 2)

	_, err = s.Classes.GetByID(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnrollmentUniquePerUserAndClass(t *testing.T) {
	s, ctx := newTestStore(t)
	userID := testutil.InsertUser(t, s.DB(), "lan", model.RoleUser)
	start := time.Now().UTC().AddDate(0, 0, 3)
	classID := testutil.InsertClass(t, s.DB(), testutil.ClassFixture{
		MaxMembers: 5, TotalSessions: 4, Start: start, End: start.AddDate(0, 0, 28),
	})

	e := &model.Enrollment{UserID: userID, ClassID: classID, Status: model.EnrollmentActive, RemainingSessions: 4, EnrolledAt: time.Now()}
	require.NoError(t, s.Enrollments.Create(ctx, e))

	dup := &model.Enrollment{UserID: userID, ClassID: classID, Status: model.EnrollmentActive, RemainingSessions: 4, EnrolledAt: time.Now()}
	err := s.Enrollments.Create(ctx, dup)
	assert.True(t, errors.Is(err, ErrDuplicate), "got %v", err)

	list, err := s.Enrollments.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, classID, list[0].Class.ID)
}

func TestMembershipSingleActivePerUser(t *testing.T) {
	s, ctx := newTestStore(t)
	userID := testutil.InsertUser(t, s.DB(), "minh", model.RoleUser)
	now := time.Now().UTC()

	first := &model.Membership{UserID: userID, Type: "basic", Price: 300000, StartDate: now, EndDate: now.AddDate(0, 1, 0), Status: model.MembershipPendingPayment}
	second := &model.Membership{UserID: userID, Type: "vip", Price: 500000, StartDate: now, EndDate: now.AddDate(0, 1, 0), Status: model.MembershipPendingPayment}
	require.NoError(t, s.Memberships.Create(ctx, first))
	require.NoError(t, s.Memberships.Create(ctx, second))

	ok, err := s.Memberships.MarkPaid(ctx, first.ID)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.Memberships.MarkPaid(ctx, second.ID)
	assert.ErrorIs(t, err, ErrDuplicate)

	active, err := s.Memberships.GetActiveForUser(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.True(t, active.PaymentStatus)
}

func TestMembershipMarkPaidSkipsClosedCards(t *testing.T) {
	s, ctx := newTestStore(t)
	userID := testutil.InsertUser(t, s.DB(), "minh", model.RoleUser)
	now := time.Now().UTC()

	m := &model.Membership{UserID: userID, Type: "basic", Price: 300000, StartDate: now, EndDate: now.AddDate(0, 1, 0), Status: model.MembershipPendingPayment}
	require.NoError(t, s.Memberships.Create(ctx, m))
	ok, err := s.Memberships.TransitionStatus(ctx, m.ID, model.MembershipPendingPayment, model.MembershipCancelled, "cancelled by member")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Memberships.MarkPaid(ctx, m.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	got, err := s.Memberships.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipCancelled, got.Status)
	assert.False(t, got.PaymentStatus)
}

func TestPaymentItemsAreAUnion(t *testing.T) {
	s, ctx := newTestStore(t)
	userID := testutil.InsertUser(t, s.DB(), "hoa", model.RoleUser)

	p := &model.Payment{
		Reference: "ref-1", UserID: userID, Amount: 100, Method: model.MethodCash, Status: model.PaymentPending,
		Items: []model.PaymentItem{{Kind: model.ItemEnrollment, ID: 1}, {Kind: model.ItemMembership, ID: 1}},
	}
	require.NoError(t, s.Payments.Create(ctx, p))
	require.NoError(t, s.Payments.AddItems(ctx, p.ID, []model.PaymentItem{
		{Kind: model.ItemMembership, ID: 1}, {Kind: model.ItemEnrollment, ID: 9},
	}))

	got, err := s.Payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 3)
	assert.Nil(t, got.CompletedAt)

	now := time.Now().UTC()
	ok, err := s.Payments.Transition(ctx, p.ID, model.PaymentPending, model.PaymentCompleted, &now, "")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Payments.Transition(ctx, p.ID, model.PaymentPending, model.PaymentCancelled, nil, "late")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err = s.Payments.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s, ctx := newTestStore(t)
	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.Users.Create(ctx, NewUser{Username: "tx", Email: "tx@gym.test", Phone: "0900000001", Password: "secret", Role: model.RoleUser}, 4); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	_, err = s.Users.GetByLogin(ctx, "tx")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshTokenConsumedOnce(t *testing.T) {
	s, ctx := newTestStore(t)
	uid, err := s.Users.Create(ctx, NewUser{Username: "rt", Email: "rt@gym.test", Phone: "0900000002", Password: "secret", Role: model.RoleUser}, 4)
	require.NoError(t, err)

	require.NoError(t, s.Tokens.StoreRefresh(ctx, uid, "live", time.Now().Add(time.Hour)))
	require.NoError(t, s.Tokens.StoreRefresh(ctx, uid, "stale", time.Now().Add(-time.Hour)))

	got, err := s.Tokens.ConsumeRefresh(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, uid, got)
	_, err = s.Tokens.ConsumeRefresh(ctx, "live")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Tokens.ConsumeRefresh(ctx, "stale")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Tokens.ConsumeRefresh(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Tokens.StoreRefresh(ctx, uid, "other", time.Now().Add(time.Hour)))
	require.NoError(t, s.Tokens.RevokeAllForUser(ctx, uid))
	_, err = s.Tokens.ValidateRefresh(ctx, "other")
	assert.ErrorIs(t, err, ErrNotFound)
}
