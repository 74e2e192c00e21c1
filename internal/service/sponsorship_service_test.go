package service

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/events"

	"github.com/stretchr/testify/require"
)

func TestSponsorshipBudgetScenario(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)

	got, err := f.sponsorships.Charge(f.ctx, sp.ID, 15)
	require.NoError(err)
	require.Equal(int64(85), got.Budget)
	require.Equal(int64(15), got.SpentToday)

	_, err = f.sponsorships.Charge(f.ctx, sp.ID, 10)
	require.ErrorIs(err, domain.ErrBudgetExhausted)

	unchanged, err := f.sponsorships.Get(f.ctx, sp.ID)
	require.NoError(err)
	require.Equal(int64(85), unchanged.Budget)
	require.Equal(int64(15), unchanged.SpentToday)

	f.advance(24 * time.Hour)
	res, err := f.sponsorships.ResetDaily(f.ctx)
	require.NoError(err)
	require.Equal(int64(1), res.Reset)

	got, err = f.sponsorships.Charge(f.ctx, sp.ID, 10)
	require.NoError(err)
	require.Equal(int64(75), got.Budget)
	require.Equal(int64(10), got.SpentToday)
	require.Equal(domain.SponsorshipActive, got.Status)
}

func TestChargeRejectsNonPositiveCost(t *testing.T) {
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)

	_, err := f.sponsorships.Charge(f.ctx, sp.ID, 0)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestChargeUnknownSponsorship(t *testing.T) {
	f := newFixture(t)

	_, err := f.sponsorships.Charge(f.ctx, "missing", 5)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestChargeRequiresActive(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp, err := f.sponsorships.Create(f.ctx, owner, CreateSponsorshipInput{
		ProductID: "p-1", Budget: 100, DailyBudget: 20,
		StartDate: f.clock(), EndDate: f.clock().Add(24 * time.Hour),
	})
	require.NoError(err)

	_, err = f.sponsorships.Charge(f.ctx, sp.ID, 5)
	require.ErrorIs(err, domain.ErrInvalidState)
}

func TestChargeDailyCapPausesAndResetResumes(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)
	f.advance(time.Second)

	got, err := f.sponsorships.Charge(f.ctx, sp.ID, 20)
	require.NoError(err)
	require.Equal(domain.SponsorshipPaused, got.Status)
	require.Equal(domain.PauseReasonDailyCap, got.PauseReason)
	require.Contains(f.events.Types(), events.SponsorshipPaused)

	notes, err := f.notifications.List(f.ctx, domain.AudienceSeller, "biz-1", 10, 0)
	require.NoError(err)
	var types []string
	for _, n := range notes {
		types = append(types, n.Type)
	}
	require.Contains(types, domain.NotifSponsorshipPaused)

	_, err = f.sponsorships.Charge(f.ctx, sp.ID, 1)
	require.Error(err)

	// A daily-cap pause cannot be lifted by hand.
	_, err = f.sponsorships.Resume(f.ctx, owner, sp.ID)
	require.ErrorIs(err, domain.ErrInvalidState)

	f.advance(24 * time.Hour)
	res, err := f.sponsorships.ResetDaily(f.ctx)
	require.NoError(err)
	require.Equal(int64(1), res.Resumed)

	cur, err := f.sponsorships.Get(f.ctx, sp.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipActive, cur.Status)
	require.Zero(cur.SpentToday)
	require.Equal(int64(80), cur.Budget)
}

func TestChargeBudgetDepletedStaysPaused(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 20, 20)

	got, err := f.sponsorships.Charge(f.ctx, sp.ID, 20)
	require.NoError(err)
	require.Equal(domain.PauseReasonBudgetDepleted, got.PauseReason)

	f.advance(24 * time.Hour)
	res, err := f.sponsorships.ResetDaily(f.ctx)
	require.NoError(err)
	require.Zero(res.Resumed)

	cur, err := f.sponsorships.Get(f.ctx, sp.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipPaused, cur.Status)
	require.Zero(cur.Budget)
}

func TestConcurrentChargesNeverOverspend(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 100)

	var (
		wg      sync.WaitGroup
		charged atomic.Int64
	)
	for i := 0; i < 64; i++ {
		cost := int64(i%4 + 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.sponsorships.Charge(f.ctx, sp.ID, cost); err == nil {
				charged.Add(cost)
			}
		}()
	}
	wg.Wait()

	cur, err := f.sponsorships.Get(f.ctx, sp.ID)
	require.NoError(err)
	require.GreaterOrEqual(cur.Budget, int64(0))
	require.LessOrEqual(cur.SpentToday, cur.DailyBudget)
	require.LessOrEqual(charged.Load(), cur.InitialBudget)
	require.Equal(cur.InitialBudget-charged.Load(), cur.Budget)
	require.Equal(charged.Load(), cur.SpentToday)
}

func TestCatchUpResetOnStaleDay(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)

	_, err := f.sponsorships.Charge(f.ctx, sp.ID, 18)
	require.NoError(err)

	// Past midnight, before the scheduled reset ran.
	f.advance(24 * time.Hour)
	got, err := f.sponsorships.Charge(f.ctx, sp.ID, 10)
	require.NoError(err)
	require.Equal(int64(10), got.SpentToday)
	require.Equal(domain.UTCDay(f.clock()), got.LastResetDay)
}

func TestResetDailyIsIdempotent(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)

	f.advance(24 * time.Hour)
	first, err := f.sponsorships.ResetDaily(f.ctx)
	require.NoError(err)
	require.Equal(int64(1), first.Reset)

	_, err = f.sponsorships.Charge(f.ctx, sp.ID, 7)
	require.NoError(err)

	second, err := f.sponsorships.ResetDaily(f.ctx)
	require.NoError(err)
	require.Zero(second.Reset)

	cur, err := f.sponsorships.Get(f.ctx, sp.ID)
	require.NoError(err)
	require.Equal(int64(7), cur.SpentToday)
}

func TestExpiredOnReadPath(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp, err := f.sponsorships.Create(f.ctx, owner, CreateSponsorshipInput{
		ProductID: "p-1", Budget: 100, DailyBudget: 20,
		StartDate: f.clock().Add(-48 * time.Hour), EndDate: f.clock().Add(time.Hour),
	})
	require.NoError(err)
	_, err = f.sponsorships.Approve(f.ctx, admin, sp.ID)
	require.NoError(err)

	f.advance(25 * time.Hour)

	stored, err := f.stores.Sponsorships.GetByID(f.ctx, sp.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipActive, stored.Status)

	cur, err := f.sponsorships.Get(f.ctx, sp.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipExpired, cur.Status)

	list, err := f.sponsorships.ListByBusiness(f.ctx, owner, "", domain.SponsorshipExpired, 0, 0)
	require.NoError(err)
	require.Len(list, 1)

	_, err = f.sponsorships.Pause(f.ctx, owner, sp.ID)
	require.ErrorIs(err, domain.ErrInvalidState)
	_, err = f.sponsorships.Charge(f.ctx, sp.ID, 1)
	require.ErrorIs(err, domain.ErrInvalidState)
}

func TestPauseAuthorization(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)

	_, err := f.sponsorships.Pause(f.ctx, influencer, sp.ID)
	require.ErrorIs(err, domain.ErrForbidden)
	_, err = f.sponsorships.Pause(f.ctx, customer, sp.ID)
	require.ErrorIs(err, domain.ErrForbidden)
	_, err = f.sponsorships.Pause(f.ctx, otherOwner, sp.ID)
	require.ErrorIs(err, domain.ErrForbidden)

	manager := domain.Actor{UserID: "mgr-1", Role: domain.RoleBusinessManager, BusinessID: "biz-1"}
	got, err := f.sponsorships.Pause(f.ctx, manager, sp.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipPaused, got.Status)
	require.Equal(domain.PauseReasonManual, got.PauseReason)

	_, err = f.sponsorships.Pause(f.ctx, admin, sp.ID)
	require.ErrorIs(err, domain.ErrInvalidState)

	got, err = f.sponsorships.Resume(f.ctx, owner, sp.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipActive, got.Status)
	require.Empty(got.PauseReason)
}

func TestManualPauseSurvivesDailyReset(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)

	_, err := f.sponsorships.Pause(f.ctx, owner, sp.ID)
	require.NoError(err)

	f.advance(24 * time.Hour)
	_, err = f.sponsorships.ResetDaily(f.ctx)
	require.NoError(err)

	cur, err := f.sponsorships.Get(f.ctx, sp.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipPaused, cur.Status)
	require.Equal(domain.PauseReasonManual, cur.PauseReason)
}

func TestApproveAndReject(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	in := CreateSponsorshipInput{
		ProductID: "p-2", Budget: 50, DailyBudget: 10,
		StartDate: f.clock().Add(48 * time.Hour), EndDate: f.clock().Add(96 * time.Hour),
	}
	future, err := f.sponsorships.Create(f.ctx, owner, in)
	require.NoError(err)
	require.Equal(domain.SponsorshipPending, future.Status)

	_, err = f.sponsorships.Approve(f.ctx, owner, future.ID)
	require.ErrorIs(err, domain.ErrForbidden)

	got, err := f.sponsorships.Approve(f.ctx, admin, future.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipApproved, got.Status)
	require.NotNil(got.ApprovedAt)

	_, err = f.sponsorships.Approve(f.ctx, admin, future.ID)
	require.ErrorIs(err, domain.ErrInvalidState)

	f.advance(49 * time.Hour)
	n, err := f.sponsorships.ActivateDue(f.ctx)
	require.NoError(err)
	require.Equal(int64(1), n)
	cur, err := f.sponsorships.Get(f.ctx, future.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipActive, cur.Status)

	in.StartDate, in.EndDate = f.clock(), f.clock().Add(time.Hour)
	rejected, err := f.sponsorships.Create(f.ctx, owner, in)
	require.NoError(err)
	got, err = f.sponsorships.Reject(f.ctx, admin, rejected.ID)
	require.NoError(err)
	require.Equal(domain.SponsorshipRejected, got.Status)

	_, err = f.sponsorships.Approve(f.ctx, admin, rejected.ID)
	require.ErrorIs(err, domain.ErrInvalidState)

	queue, err := f.sponsorships.ListByStatus(f.ctx, admin, domain.SponsorshipPending, 0, 0)
	require.NoError(err)
	require.Empty(queue)

	_, err = f.sponsorships.ListByStatus(f.ctx, owner, domain.SponsorshipPending, 0, 0)
	require.ErrorIs(err, domain.ErrForbidden)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	now := f.clock()
	valid := CreateSponsorshipInput{ProductID: "p-1", Budget: 100, DailyBudget: 20, StartDate: now, EndDate: now.Add(time.Hour)}

	cases := map[string]func(in *CreateSponsorshipInput){
		"zero budget":       func(in *CreateSponsorshipInput) { in.Budget = 0 },
		"daily over budget": func(in *CreateSponsorshipInput) { in.DailyBudget = 101 },
		"end before start":  func(in *CreateSponsorshipInput) { in.EndDate = now.Add(-time.Minute) },
		"ended": func(in *CreateSponsorshipInput) {
			in.StartDate, in.EndDate = now.Add(-2*time.Hour), now.Add(-time.Hour)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := valid
			mutate(&in)
			_, err := f.sponsorships.Create(f.ctx, owner, in)
			require.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}

	t.Run("unknown product", func(t *testing.T) {
		in := valid
		in.ProductID = "nope"
		_, err := f.sponsorships.Create(f.ctx, owner, in)
		require.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("influencer", func(t *testing.T) {
		_, err := f.sponsorships.Create(f.ctx, influencer, valid)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("other business", func(t *testing.T) {
		in := valid
		in.BusinessID = "biz-2"
		_, err := f.sponsorships.Create(f.ctx, owner, in)
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}

func TestGetForActorHidesOtherBusinesses(t *testing.T) {
	f := newFixture(t)
	sp := f.activeSponsorship(t, "p-1", 100, 20)

	_, err := f.sponsorships.GetForActor(f.ctx, otherOwner, sp.ID)
	require.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.sponsorships.GetForActor(f.ctx, admin, sp.ID)
	require.NoError(t, err)
}
