package visit

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/hometrace/internal/apperr"
	"github.com/evcraddock/hometrace/internal/auth"
	"github.com/evcraddock/hometrace/internal/connection"
	"github.com/evcraddock/hometrace/internal/house"
	"github.com/evcraddock/hometrace/internal/testutil"
)

var t0 = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

type fixture struct {
	db      *sql.DB
	svc     *Service
	clock   *testutil.Clock
	buyer   auth.Principal
	other   auth.Principal
	realtor auth.Principal
	admin   auth.Principal
	houseID int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d := testutil.OpenDB(t)
	clock := testutil.NewClock(t0)
	f := &fixture{
		db:      d,
		clock:   clock,
		buyer:   testutil.User(t, d, auth.RoleBuyer),
		other:   testutil.User(t, d, auth.RoleBuyer),
		realtor: testutil.User(t, d, auth.RoleRealtor),
		admin:   testutil.User(t, d, auth.RoleAdmin),
	}
	f.houseID = testutil.House(t, d, f.realtor)
	f.svc = NewService(NewRepository(d), house.NewRepository(d), connection.NewStore(d)).WithClock(clock.Now)
	return f
}

func (f *fixture) schedule(t *testing.T) *Visit {
	t.Helper()
	v, err := f.svc.Schedule(context.Background(), f.buyer, ScheduleInput{
		HouseID:     f.houseID,
		ScheduledAt: t0.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	return v
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusScheduled, StatusInProgress, true},
		{StatusScheduled, StatusCancelled, true},
		{StatusScheduled, StatusCompleted, false},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusCancelled, true},
		{StatusInProgress, StatusScheduled, false},
		{StatusCompleted, StatusCancelled, false},
		{StatusCancelled, StatusCancelled, false},
		{StatusCancelled, StatusScheduled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}

	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusScheduled.Terminal())
}

func TestSchedule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	notes := "bring a tape measure"

	v, err := f.svc.Schedule(ctx, f.buyer, ScheduleInput{
		HouseID:     f.houseID,
		ScheduledAt: t0.Add(24 * time.Hour),
		Notes:       &notes,
	})
	require.NoError(t, err)

	assert.NotZero(t, v.ID)
	assert.Equal(t, StatusScheduled, v.Status)
	assert.Equal(t, f.buyer.UserID, v.BuyerID)
	assert.True(t, v.ScheduledAt.Equal(t0.Add(24*time.Hour)))
	assert.Nil(t, v.StartedAt)
	assert.Nil(t, v.CompletedAt)
	assert.Nil(t, v.SuggestionID)
	require.NotNil(t, v.Notes)
	assert.Equal(t, notes, *v.Notes)
}

func TestScheduleInPastIsAccepted(t *testing.T) {
	f := newFixture(t)
	v, err := f.svc.Schedule(context.Background(), f.buyer, ScheduleInput{
		HouseID:     f.houseID,
		ScheduledAt: t0.Add(-time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, v.Status)
}

func TestScheduleGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Schedule(ctx, f.realtor, ScheduleInput{HouseID: f.houseID, ScheduledAt: t0})
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	_, err = f.svc.Schedule(ctx, f.buyer, ScheduleInput{HouseID: f.houseID})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = f.svc.Schedule(ctx, f.buyer, ScheduleInput{HouseID: 9999, ScheduledAt: t0})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	_, err = house.NewRepository(f.db).SoftDelete(ctx, f.houseID, t0)
	require.NoError(t, err)
	_, err = f.svc.Schedule(ctx, f.buyer, ScheduleInput{HouseID: f.houseID, ScheduledAt: t0})
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestFullLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.schedule(t)

	f.clock.Advance(time.Hour)
	v, err := f.svc.Start(ctx, v.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, v.Status)
	require.NotNil(t, v.StartedAt)
	assert.True(t, v.StartedAt.Equal(t0.Add(time.Hour)))
	assert.Nil(t, v.CompletedAt)

	f.clock.Advance(30 * time.Minute)
	loved := ImpressionLoved
	yes := true
	notes := "great light"
	v, err = f.svc.Complete(ctx, v.ID, f.buyer, CompleteInput{Impression: &loved, WouldBuy: &yes, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, v.Status)
	require.NotNil(t, v.CompletedAt)
	assert.False(t, v.CompletedAt.Before(*v.StartedAt))
	require.NotNil(t, v.OverallImpression)
	assert.Equal(t, ImpressionLoved, *v.OverallImpression)
	require.NotNil(t, v.WouldBuy)
	assert.True(t, *v.WouldBuy)
	require.NotNil(t, v.Notes)
	assert.Equal(t, "great light", *v.Notes)
}

func TestCompleteWithoutFeedback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.schedule(t)

	_, err := f.svc.Start(ctx, v.ID, f.buyer)
	require.NoError(t, err)
	v, err = f.svc.Complete(ctx, v.ID, f.buyer, CompleteInput{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, v.Status)
	assert.Nil(t, v.OverallImpression)
	assert.Nil(t, v.WouldBuy)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.schedule(t)

	_, err := f.svc.Complete(ctx, v.ID, f.buyer, CompleteInput{})
	require.Error(t, err)

	var te *apperr.TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "visit", te.Entity)
	assert.Equal(t, v.ID, te.ID)
	assert.Equal(t, string(StatusScheduled), te.From)
	assert.Equal(t, string(StatusCompleted), te.To)

	got, err := f.svc.Get(ctx, v.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
	assert.Nil(t, got.CompletedAt)
}

func TestCompleteRejectsUnknownImpression(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.schedule(t)
	_, err := f.svc.Start(ctx, v.ID, f.buyer)
	require.NoError(t, err)

	bad := Impression("MEH")
	_, err = f.svc.Complete(ctx, v.ID, f.buyer, CompleteInput{Impression: &bad})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	got, err := f.svc.Get(ctx, v.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, got.Status)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	scheduled := f.schedule(t)
	v, err := f.svc.Cancel(ctx, scheduled.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, v.Status)

	_, err = f.svc.Cancel(ctx, scheduled.ID, f.buyer)
	assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))

	started := f.schedule(t)
	_, err = f.svc.Start(ctx, started.ID, f.buyer)
	require.NoError(t, err)
	v, err = f.svc.Cancel(ctx, started.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, v.Status)
	assert.NotNil(t, v.StartedAt)
	assert.Nil(t, v.CompletedAt)

	_, err = f.svc.Start(ctx, started.ID, f.buyer)
	assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
}

func TestTransitionsRequireOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.schedule(t)

	for _, p := range []auth.Principal{f.other, f.realtor, f.admin} {
		_, err := f.svc.Start(ctx, v.ID, p)
		assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err), "role %s", p.Role)
	}

	got, err := f.svc.Get(ctx, v.ID, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusScheduled, got.Status)
}

func TestStaleTransitionIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.schedule(t)
	repo := NewRepository(f.db)

	ok, err := repo.Transition(ctx, v.ID, StatusScheduled, StatusCancelled, nil, t0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.Transition(ctx, v.ID, StatusScheduled, StatusInProgress, map[string]any{"started_at": t0}, t0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Nil(t, got.StartedAt)
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	v := f.schedule(t)
	err := f.svc.Remove(ctx, v.ID, f.other)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	require.NoError(t, f.svc.Remove(ctx, v.ID, f.buyer))

	_, err = f.svc.Get(ctx, v.ID, f.buyer)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	_, err = f.svc.Start(ctx, v.ID, f.buyer)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	err = f.svc.Remove(ctx, v.ID, f.buyer)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))

	list, err := f.svc.List(ctx, f.buyer, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	byAdmin := f.schedule(t)
	_, err = f.svc.Cancel(ctx, byAdmin.ID, f.buyer)
	require.NoError(t, err)
	require.NoError(t, f.svc.Remove(ctx, byAdmin.ID, f.admin))
}

func TestGetVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := f.schedule(t)

	_, err := f.svc.Get(ctx, v.ID, f.realtor)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	testutil.Connect(t, f.db, f.realtor, f.buyer)
	got, err := f.svc.Get(ctx, v.ID, f.realtor)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = f.svc.Get(ctx, v.ID, f.other)
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	_, err = f.svc.Get(ctx, v.ID, f.admin)
	assert.NoError(t, err)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	mine := f.schedule(t)
	theirs, err := f.svc.Schedule(ctx, f.other, ScheduleInput{HouseID: f.houseID, ScheduledAt: t0.Add(-24 * time.Hour)})
	require.NoError(t, err)

	list, err := f.svc.List(ctx, f.buyer, ListFilter{BuyerID: f.other.UserID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = f.svc.List(ctx, f.realtor, ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	testutil.Connect(t, f.db, f.realtor, f.other)
	list, err = f.svc.List(ctx, f.realtor, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, theirs.ID, list[0].ID)

	_, err = f.svc.List(ctx, f.realtor, ListFilter{BuyerID: f.buyer.UserID})
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))

	list, err = f.svc.List(ctx, f.admin, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = f.svc.List(ctx, f.admin, ListFilter{Upcoming: true})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, mine.ID, list[0].ID)

	list, err = f.svc.List(ctx, f.admin, ListFilter{Status: StatusCancelled})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = f.svc.List(ctx, f.admin, ListFilter{Status: "DONE"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}
