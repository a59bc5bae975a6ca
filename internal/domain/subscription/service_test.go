package subscription

import (
	"context"
	"errors"
	"testing"
	"time"

	"buildadvisor/internal/database/dbtest"
	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/domain/billing/billingtest"
	"buildadvisor/internal/domain/profile"
	"buildadvisor/internal/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var periodEnd = time.Date(2026, 11, 15, 3, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	provider *billingtest.Provider
	profiles profile.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t, &profile.UserProfile{})
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	f := &fixture{provider: &billingtest.Provider{}, profiles: profile.NewRepository(db)}
	f.svc = NewService(f.provider, f.profiles, Config{
		PriceIDs: map[string]string{"blue": "price_blue", "green": "price_green", "gold": "price_gold"},
		Location: tokyo,
	}, zap.NewNop())
	return f
}

func (f *fixture) seedSubscriber(t *testing.T, userID string, plan billing.Plan) {
	t.Helper()
	require.NoError(t, f.profiles.Upsert(context.Background(), userID, profile.Update{
		Plan:             profile.Set(plan),
		Status:           profile.Set(billing.StatusActive),
		CustomerID:       profile.Set("cus_1"),
		SubscriptionID:   profile.Set("sub_1"),
		CurrentPeriodEnd: profile.Set(periodEnd),
	}))
}

func liveSub(priceID string, plan billing.Plan) *billing.Subscription {
	end := periodEnd
	return &billing.Subscription{
		ID:         "sub_1",
		Status:     "active",
		CustomerID: "cus_1",
		Metadata:   map[string]string{billing.MetaUserID: "u1", billing.MetaPlan: string(plan)},
		Items:      []billing.SubscriptionItem{{ID: "si_1", PriceID: priceID, CurrentPeriodEnd: &end}},
	}
}

func TestCancel_NoSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CancelAtPeriodEnd(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoSubscription)

	// A profile without a subscription id is the same as none.
	require.NoError(t, f.profiles.Upsert(ctx, "u2", profile.Update{Plan: profile.Set(billing.PlanBlue)}))
	_, err = f.svc.CancelAtPeriodEnd(ctx, "u2")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	f.provider.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_IssuesUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSubscriber(t, "u1", billing.PlanGreen)

	updated := liveSub("price_green", billing.PlanGreen)
	updated.CancelAtPeriodEnd = true
	cancelAt := periodEnd
	updated.CancelAt = &cancelAt

	f.provider.On("GetSubscription", mock.Anything, "sub_1", false).Return(liveSub("price_green", billing.PlanGreen), nil)
	f.provider.On("UpdateSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(u billing.SubscriptionUpdate) bool {
		return u.CancelAtPeriodEnd != nil && *u.CancelAtPeriodEnd && u.PriceID == ""
	})).Return(updated, nil).Once()

	res, err := f.svc.CancelAtPeriodEnd(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, res.AlreadyCanceled)
	assert.False(t, res.AlreadyRequested)
	assert.Equal(t, billing.StatusActive, res.Status)
	assert.Equal(t, billing.PlanGreen, res.Plan)
	require.NotNil(t, res.CancelAt)
	// 03:00 UTC is noon in Tokyo on the same day.
	assert.Contains(t, res.Message, "November 15, 2026")

	p, err := f.profiles.Get(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p.CancelAtTime())
	assert.True(t, p.HasActivePlan(), "a scheduled cancellation keeps the plan billable")
	f.provider.AssertExpectations(t)
}

func TestCancel_AlreadyRequestedDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSubscriber(t, "u1", billing.PlanBlue)

	sub := liveSub("price_blue", billing.PlanBlue)
	sub.CancelAtPeriodEnd = true
	f.provider.On("GetSubscription", mock.Anything, "sub_1", false).Return(sub, nil)

	for i := 0; i < 2; i++ {
		res, err := f.svc.CancelAtPeriodEnd(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, res.AlreadyRequested)
		assert.Contains(t, res.Message, "already received")
		require.NotNil(t, res.CancelAt)
		assert.True(t, periodEnd.Equal(*res.CancelAt), "cutoff falls back to the period end")
	}
	f.provider.AssertNotCalled(t, "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_AlreadyCanceledIsMirrored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSubscriber(t, "u1", billing.PlanBlue)

	sub := liveSub("price_blue", billing.PlanBlue)
	sub.Status = "canceled"
	f.provider.On("GetSubscription", mock.Anything, "sub_1", false).Return(sub, nil)

	res, err := f.svc.CancelAtPeriodEnd(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, res.AlreadyCanceled)
	assert.Equal(t, billing.StatusCanceled, res.Status)
	assert.Contains(t, res.Message, "already canceled")
	assert.Contains(t, res.Message, "plan selection")
	assert.NotContains(t, res.Message, "keep using")

	p, err := f.profiles.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, p.HasActivePlan())
	f.provider.AssertNotCalled(t, "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestCancel_ProviderFailure(t *testing.T) {
	f := newFixture(t)
	f.seedSubscriber(t, "u1", billing.PlanBlue)
	f.provider.On("GetSubscription", mock.Anything, "sub_1", false).Return(nil, errors.New("timeout"))

	_, err := f.svc.CancelAtPeriodEnd(context.Background(), "u1")
	assert.Equal(t, apperr.KindUpstream, apperr.KindOf(err))
}

func TestChangePlan_Downgrade(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedSubscriber(t, "u1", billing.PlanGreen)

	current := liveSub("price_green", billing.PlanGreen)
	current.Metadata = map[string]string{"source": "web"}
	updated := liveSub("price_blue", billing.PlanBlue)

	f.provider.On("GetSubscription", mock.Anything, "sub_1", true).Return(current, nil)
	f.provider.On("UpdateSubscription", mock.Anything, "sub_1", mock.MatchedBy(func(u billing.SubscriptionUpdate) bool {
		return u.ItemID == "si_1" &&
			u.PriceID == "price_blue" &&
			u.ProrationBehavior == billing.ProrationCreate &&
			u.CancelAtPeriodEnd == nil &&
			u.Metadata[billing.MetaUserID] == "u1" &&
			u.Metadata[billing.MetaPlan] == "blue" &&
			u.Metadata["source"] == "web"
	})).Return(updated, nil).Once()

	res, err := f.svc.ChangePlan(ctx, "u1", "blue")
	require.NoError(t, err)
	assert.Equal(t, billing.PlanBlue, res.Plan)
	assert.Equal(t, "sub_1", res.SubscriptionID)

	p, err := f.profiles.Get(ctx, "u1")
	require.NoError(t, err)
	plan, _ := p.PlanValue()
	assert.Equal(t, billing.PlanBlue, plan)
	require.NotNil(t, p.PeriodEnd())
	assert.True(t, periodEnd.Equal(*p.PeriodEnd()), "billing anchor must not move")
	f.provider.AssertExpectations(t)
}

func TestChangePlan_SamePriceIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.seedSubscriber(t, "u1", billing.PlanGreen)

	// Metadata label drifted; the price id decides.
	f.provider.On("GetSubscription", mock.Anything, "sub_1", true).Return(liveSub("price_gold", billing.PlanGreen), nil)

	_, err := f.svc.ChangePlan(context.Background(), "u1", "gold")
	assert.ErrorIs(t, err, ErrAlreadyOnPlan)
	assert.Equal(t, 400, apperr.HTTPStatus(apperr.KindOf(err)))
	f.provider.AssertNotCalled(t, "UpdateSubscription", mock.Anything, mock.Anything, mock.Anything)
}

func TestChangePlan_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("price not configured", func(t *testing.T) {
		f := newFixture(t)
		f.svc.cfg.PriceIDs = map[string]string{}
		_, err := f.svc.ChangePlan(ctx, "u1", "blue")
		assert.Equal(t, apperr.KindConfiguration, apperr.KindOf(err))
	})

	t.Run("no subscription", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ChangePlan(ctx, "u1", "blue")
		assert.ErrorIs(t, err, ErrNoSubscription)
	})

	t.Run("no items", func(t *testing.T) {
		f := newFixture(t)
		f.seedSubscriber(t, "u1", billing.PlanGreen)
		sub := liveSub("price_green", billing.PlanGreen)
		sub.Items = nil
		f.provider.On("GetSubscription", mock.Anything, "sub_1", true).Return(sub, nil)

		_, err := f.svc.ChangePlan(ctx, "u1", "blue")
		assert.Equal(t, apperr.KindReconciliation, apperr.KindOf(err))
	})

	t.Run("card declined is actionable", func(t *testing.T) {
		f := newFixture(t)
		f.seedSubscriber(t, "u1", billing.PlanBlue)
		f.provider.On("GetSubscription", mock.Anything, "sub_1", true).Return(liveSub("price_blue", billing.PlanBlue), nil)
		f.provider.On("UpdateSubscription", mock.Anything, "sub_1", mock.Anything).Return(nil, &billing.ProviderError{
			HTTPStatus: 402, Type: "card_error", DeclineCode: "insufficient_funds", Message: "Your card has insufficient funds.",
		})

		_, err := f.svc.ChangePlan(ctx, "u1", "gold")
		assert.Equal(t, apperr.KindPaymentDeclined, apperr.KindOf(err))
		assert.Contains(t, apperr.PublicMessage(err), "insufficient funds")

		p, err := f.profiles.Get(ctx, "u1")
		require.NoError(t, err)
		plan, _ := p.PlanValue()
		assert.Equal(t, billing.PlanBlue, plan, "failed change must not touch the mirror")
	})

	t.Run("unknown plan", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.ChangePlan(ctx, "u1", "platinum")
		assert.ErrorIs(t, err, ErrUnknownPlan)
	})
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Summary(ctx, "u1")
	assert.ErrorIs(t, err, ErrNoSubscription)

	f.seedSubscriber(t, "u1", billing.PlanGold)
	p, err := f.svc.Summary(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "sub_1", p.SubscriptionIDValue())
}
