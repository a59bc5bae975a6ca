package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/domain/profile"
	"buildadvisor/internal/pkg/apperr"

	"go.uber.org/zap"
)

// ProfileStore is the Profile Mirror.
type ProfileStore interface {
	Get(ctx context.Context, userID string) (*profile.UserProfile, error)
	Upsert(ctx context.Context, userID string, u profile.Update) error
}

type Config struct {
	// PriceIDs maps lower-cased plan names to provider price ids.
	PriceIDs map[string]string
	// Location renders the cancellation cutoff date for users.
	Location *time.Location
}

// Service is the Subscription Lifecycle Manager. The provider is the source
// of truth; every successful call ends with one mirror write.
type Service struct {
	provider billing.Provider
	profiles ProfileStore
	cfg      Config
	log      *zap.Logger
}

func NewService(provider billing.Provider, profiles ProfileStore, cfg Config, log *zap.Logger) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{provider: provider, profiles: profiles, cfg: cfg, log: log}
}

type CancelResult struct {
	Plan             billing.Plan
	Status           billing.Status
	CancelAt         *time.Time
	CurrentPeriodEnd *time.Time
	AlreadyCanceled  bool
	AlreadyRequested bool
	Message          string
}

type ChangeResult struct {
	Plan             billing.Plan
	Status           billing.Status
	CurrentPeriodEnd *time.Time
	CancelAt         *time.Time
	SubscriptionID   string
	CustomerID       string
}

// CancelAtPeriodEnd schedules cancellation at the end of the paid period.
// Repeating the call never issues a second provider mutation.
func (s *Service) CancelAtPeriodEnd(ctx context.Context, userID string) (*CancelResult, error) {
	p, err := s.loadSubscribed(ctx, userID)
	if err != nil {
		return nil, err
	}
	subID := p.SubscriptionIDValue()

	sub, err := s.provider.GetSubscription(ctx, subID, false)
	if err != nil {
		return nil, providerError(err)
	}

	res := &CancelResult{}
	switch {
	case billing.NormalizeStatus(sub.Status) == billing.StatusCanceled:
		res.AlreadyCanceled = true
	case sub.CancelAtPeriodEnd:
		res.AlreadyRequested = true
	default:
		cancel := true
		updated, err := s.provider.UpdateSubscription(ctx, subID, billing.SubscriptionUpdate{CancelAtPeriodEnd: &cancel})
		if err != nil {
			return nil, providerError(err)
		}
		sub = updated
	}

	plan, ok := sub.MetadataPlan()
	if !ok {
		plan, _ = p.PlanValue()
	}
	res.Plan = plan
	res.Status = s.normalizeStatus(sub)
	res.CurrentPeriodEnd = firstTime(sub.CurrentPeriodEnd(), p.PeriodEnd())
	res.CancelAt = firstTime(sub.CancelAt, p.CancelAtTime(), res.CurrentPeriodEnd)
	res.Message = s.cancelMessage(res)

	u := profile.Update{
		Status:           profile.Set(res.Status),
		CurrentPeriodEnd: profile.SetPtr(res.CurrentPeriodEnd),
		CancelAt:         profile.SetPtr(res.CancelAt),
	}
	if ok {
		u.Plan = profile.Set(plan)
	}
	if err := s.profiles.Upsert(ctx, userID, u); err != nil {
		return nil, err
	}

	s.log.Info("subscription cancellation",
		zap.String("user_id", userID),
		zap.String("subscription_id", subID),
		zap.Bool("already_canceled", res.AlreadyCanceled),
		zap.Bool("already_requested", res.AlreadyRequested))
	return res, nil
}

// ChangePlan moves the subscription's item to the price of rawPlan with
// prorations. Upgrades are billed now and downgrades are credited on the
// next invoice; that asymmetry is the provider's policy. The billing anchor
// is not changed.
func (s *Service) ChangePlan(ctx context.Context, userID, rawPlan string) (*ChangeResult, error) {
	if rawPlan == "" {
		return nil, ErrPlanRequired
	}
	plan, ok := billing.NormalizePlan(rawPlan)
	if !ok {
		return nil, ErrUnknownPlan
	}
	priceID := s.cfg.PriceIDs[string(plan)]
	if priceID == "" {
		s.log.Error("no price configured for plan", zap.String("plan", string(plan)))
		return nil, ErrPriceMissing
	}

	p, err := s.loadSubscribed(ctx, userID)
	if err != nil {
		return nil, err
	}
	subID := p.SubscriptionIDValue()

	sub, err := s.provider.GetSubscription(ctx, subID, true)
	if err != nil {
		return nil, providerError(err)
	}
	if len(sub.Items) == 0 {
		s.log.Error("subscription has no items", zap.String("subscription_id", subID))
		return nil, ErrNoItems
	}
	item := sub.Items[0]
	// Compare price ids, not plan labels: labels in metadata can drift.
	if item.PriceID == priceID {
		return nil, ErrAlreadyOnPlan
	}

	meta := make(map[string]string, len(sub.Metadata)+2)
	for k, v := range sub.Metadata {
		meta[k] = v
	}
	if meta[billing.MetaUserID] == "" {
		meta[billing.MetaUserID] = userID
	}
	meta[billing.MetaPlan] = string(plan)

	updated, err := s.provider.UpdateSubscription(ctx, subID, billing.SubscriptionUpdate{
		ItemID:            item.ID,
		PriceID:           priceID,
		ProrationBehavior: billing.ProrationCreate,
		Metadata:          meta,
	})
	if err != nil {
		var pe *billing.ProviderError
		if errors.As(err, &pe) && pe.CardDeclined() {
			msg := pe.Message
			if msg == "" {
				msg = "Your card was declined."
			}
			s.log.Info("plan change declined",
				zap.String("user_id", userID), zap.String("decline_code", pe.DeclineCode))
			return nil, apperr.Wrap(apperr.KindPaymentDeclined,
				msg+" Please update your payment method and try again.", err)
		}
		return nil, providerError(err)
	}

	res := &ChangeResult{
		Plan:             plan,
		Status:           s.normalizeStatus(updated),
		CurrentPeriodEnd: firstTime(updated.CurrentPeriodEnd(), p.PeriodEnd()),
		CancelAt:         updated.CancelAt,
		SubscriptionID:   firstString(updated.ID, subID),
		CustomerID:       firstString(updated.CustomerID, p.CustomerIDValue()),
	}

	if err := s.profiles.Upsert(ctx, userID, profile.Update{
		Plan:             profile.Set(res.Plan),
		Status:           profile.Set(res.Status),
		CurrentPeriodEnd: profile.SetPtr(res.CurrentPeriodEnd),
		CancelAt:         profile.SetPtr(res.CancelAt),
		SubscriptionID:   profile.SetNonEmpty(res.SubscriptionID),
		CustomerID:       profile.SetNonEmpty(res.CustomerID),
	}); err != nil {
		return nil, err
	}

	s.log.Info("subscription plan changed",
		zap.String("user_id", userID),
		zap.String("subscription_id", subID),
		zap.String("plan", string(plan)))
	return res, nil
}

// Summary returns the caller's mirrored subscription.
func (s *Service) Summary(ctx context.Context, userID string) (*profile.UserProfile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) loadSubscribed(ctx context.Context, userID string) (*profile.UserProfile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return nil, ErrNoSubscription
		}
		return nil, err
	}
	if p.SubscriptionIDValue() == "" {
		return nil, ErrNoSubscription
	}
	return p, nil
}

func (s *Service) normalizeStatus(sub *billing.Subscription) billing.Status {
	if sub.Status != "" && !billing.IsKnownStatus(sub.Status) {
		s.log.Warn("unknown subscription status treated as active",
			zap.String("subscription_id", sub.ID), zap.String("status", sub.Status))
	}
	return billing.NormalizeStatus(sub.Status)
}

func (s *Service) cancelMessage(res *CancelResult) string {
	if res.AlreadyCanceled {
		return "Your subscription is already canceled. To continue, choose a plan again from plan selection."
	}
	prefix := "Your cancellation has been received."
	if res.AlreadyRequested {
		prefix = "Your cancellation was already received."
	}
	if res.CancelAt == nil {
		return prefix + " You can keep using your plan until the end of the current billing period."
	}
	return fmt.Sprintf("%s You can keep using your plan until %s.",
		prefix, res.CancelAt.In(s.cfg.Location).Format("January 2, 2006"))
}

// providerError maps a provider failure. A missing subscription is reported as
// NotFound; everything else is an upstream failure.
func providerError(err error) error {
	var pe *billing.ProviderError
	if errors.As(err, &pe) && pe.HTTPStatus == http.StatusNotFound {
		return ErrNoSubscription.WithCause(err)
	}
	return ErrProvider.WithCause(err)
}

func firstTime(ts ...*time.Time) *time.Time {
	for _, t := range ts {
		if t != nil {
			return t
		}
	}
	return nil
}

func firstString(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
