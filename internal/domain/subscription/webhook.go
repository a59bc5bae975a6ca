package subscription

import (
	"context"
	"errors"

	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/domain/profile"

	"go.uber.org/zap"
)

// Webhook event types this service reconciles. Everything else is acknowledged and ignored.
const (
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventCheckoutExpired     = "checkout.session.expired"
)

// CheckoutExpirer marks an abandoned checkout in the audit trail.
type CheckoutExpirer interface {
	Expire(ctx context.Context, sessionID string) error
}

// Reconciler applies provider-pushed changes to the mirror, so changes made
// outside this service (dunning, portal, dashboard) are not missed.
type Reconciler struct {
	profiles ProfileStore
	checkout CheckoutExpirer
	log      *zap.Logger
}

func NewReconciler(profiles ProfileStore, checkout CheckoutExpirer, log *zap.Logger) *Reconciler {
	return &Reconciler{profiles: profiles, checkout: checkout, log: log}
}

// Handle applies one verified event. A returned error makes the provider retry.
func (r *Reconciler) Handle(ctx context.Context, ev *billing.Event) error {
	switch ev.Type {
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		return r.mirrorSubscription(ctx, ev)
	case EventCheckoutExpired:
		if ev.Session == nil || ev.Session.ID == "" {
			return nil
		}
		return r.checkout.Expire(ctx, ev.Session.ID)
	default:
		r.log.Debug("ignoring webhook event", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return nil
	}
}

func (r *Reconciler) mirrorSubscription(ctx context.Context, ev *billing.Event) error {
	sub := ev.Subscription
	if sub == nil {
		return nil
	}
	userID := sub.Metadata[billing.MetaUserID]
	if userID == "" {
		r.log.Warn("subscription event without user_id metadata",
			zap.String("event_id", ev.ID), zap.String("subscription_id", sub.ID))
		return nil
	}

	// Events for a subscription the user has since replaced must not
	// overwrite the current one; the provider delivers out of order.
	current, err := r.profiles.Get(ctx, userID)
	switch {
	case errors.Is(err, profile.ErrNotFound):
	case err != nil:
		return err
	case current.SubscriptionIDValue() != "" && current.SubscriptionIDValue() != sub.ID:
		r.log.Info("ignoring event for superseded subscription",
			zap.String("event_id", ev.ID),
			zap.String("type", ev.Type),
			zap.String("user_id", userID),
			zap.String("subscription_id", sub.ID),
			zap.String("current_subscription_id", current.SubscriptionIDValue()))
		return nil
	}

	if sub.Status != "" && !billing.IsKnownStatus(sub.Status) {
		r.log.Warn("unknown subscription status treated as active",
			zap.String("subscription_id", sub.ID), zap.String("status", sub.Status))
	}
	status := billing.NormalizeStatus(sub.Status)
	if ev.Type == EventSubscriptionDeleted {
		status = billing.StatusCanceled
	}

	u := profile.Update{
		Status:         profile.Set(status),
		SubscriptionID: profile.SetNonEmpty(sub.ID),
		CustomerID:     profile.SetNonEmpty(sub.CustomerID),
		CancelAt:       profile.SetPtr(sub.CancelAt),
	}
	if plan, ok := sub.MetadataPlan(); ok {
		u.Plan = profile.Set(plan)
	}
	if end := sub.CurrentPeriodEnd(); end != nil {
		u.CurrentPeriodEnd = profile.Set(*end)
	}

	if err := r.profiles.Upsert(ctx, userID, u); err != nil {
		return err
	}
	r.log.Info("subscription mirrored from webhook",
		zap.String("event_id", ev.ID),
		zap.String("type", ev.Type),
		zap.String("user_id", userID),
		zap.String("status", string(status)))
	return nil
}
