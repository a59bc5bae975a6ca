package checkout

import (
	"context"
	"errors"
	"net/url"
	"time"

	"buildadvisor/internal/domain/billing"
	"buildadvisor/internal/domain/profile"

	"go.uber.org/zap"
)

// ProfileWriter is the Profile Mirror write path.
type ProfileWriter interface {
	Upsert(ctx context.Context, userID string, u profile.Update) error
}

// CounterToucher stamps the usage row without resetting it.
type CounterToucher interface {
	Touch(ctx context.Context, userID string) error
}

type Config struct {
	// PriceIDs maps lower-cased plan names to provider price ids.
	PriceIDs map[string]string
	// PublicBaseURL is the site origin used for redirect URLs.
	PublicBaseURL string
}

// Service is the Checkout Orchestrator.
type Service struct {
	provider billing.Provider
	records  Repository
	profiles ProfileWriter
	counters CounterToucher
	cfg      Config
	log      *zap.Logger
	now      func() time.Time
}

func NewService(provider billing.Provider, records Repository, profiles ProfileWriter, counters CounterToucher, cfg Config, log *zap.Logger) *Service {
	return &Service{
		provider: provider,
		records:  records,
		profiles: profiles,
		counters: counters,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// Confirmation is the reconciled subscription state returned to the client.
type Confirmation struct {
	Plan             billing.Plan
	Status           billing.Status
	CurrentPeriodEnd *time.Time
	CustomerID       string
	SubscriptionID   string
}

// CreateSession starts a subscription checkout for plan and returns the redirect URL.
func (s *Service) CreateSession(ctx context.Context, userID, email, rawPlan string) (string, error) {
	if rawPlan == "" {
		return "", ErrPlanRequired
	}
	plan, ok := billing.NormalizePlan(rawPlan)
	if !ok {
		return "", ErrUnknownPlan
	}
	priceID := s.cfg.PriceIDs[string(plan)]
	if priceID == "" {
		s.log.Error("no price configured for plan", zap.String("plan", string(plan)))
		return "", ErrPriceMissing
	}

	sess, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutParams{
		UserID:     userID,
		Email:      email,
		Plan:       plan,
		PriceID:    priceID,
		SuccessURL: s.cfg.PublicBaseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.cfg.PublicBaseURL + "/checkout/cancel?plan=" + url.QueryEscape(string(plan)),
	})
	if err != nil {
		return "", ErrProvider.WithCause(err)
	}
	if sess == nil || sess.URL == "" {
		return "", ErrProvider.WithCause(errors.New("checkout session has no url"))
	}

	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	// The audit row is best effort; the customer already has a live session.
	if err := s.records.Save(ctx, &Record{
		SessionID: sess.ID,
		UserID:    userID,
		Plan:      string(plan),
		Status:    RecordOpen,
		CreatedAt: createdAt,
	}); err != nil {
		s.log.Warn("failed to record checkout session",
			zap.String("session_id", sess.ID), zap.String("user_id", userID), zap.Error(err))
	}

	return sess.URL, nil
}

// Confirm verifies a returned checkout session and reconciles the mirror.
// Re-confirming the same paid session re-applies the same state.
func (s *Service) Confirm(ctx context.Context, userID, sessionID string) (*Confirmation, error) {
	if sessionID == "" {
		return nil, ErrSessionIDMissing
	}

	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		var pe *billing.ProviderError
		if errors.As(err, &pe) && pe.InvalidRequest() {
			return nil, ErrSessionNotFound.WithCause(err)
		}
		return nil, ErrProvider.WithCause(err)
	}

	if sess.OwnerID() != userID {
		s.log.Warn("checkout session owner mismatch",
			zap.String("session_id", sessionID), zap.String("user_id", userID))
		return nil, ErrNotSessionOwner
	}
	if !sess.Paid() {
		return nil, &IncompleteError{PaymentStatus: sess.PaymentStatus}
	}

	sub := sess.Subscription
	if sub == nil && sess.SubscriptionID != "" {
		sub, err = s.provider.GetSubscription(ctx, sess.SubscriptionID, false)
		if err != nil {
			return nil, ErrProvider.WithCause(err)
		}
	}

	plan, ok := billing.NormalizePlan(sess.Metadata[billing.MetaPlan])
	if !ok {
		plan, ok = sub.MetadataPlan()
	}
	if !ok {
		s.log.Error("checkout session has no resolvable plan", zap.String("session_id", sessionID))
		return nil, ErrPlanUnresolved
	}

	c := &Confirmation{
		Plan:           plan,
		Status:         billing.NormalizeStatus(""),
		CustomerID:     sess.CustomerID,
		SubscriptionID: sess.SubscriptionID,
	}
	var cancelAt *time.Time
	if sub != nil {
		c.Status = s.normalizeStatus(sub)
		c.CurrentPeriodEnd = sub.CurrentPeriodEnd()
		cancelAt = sub.CancelAt
		if c.SubscriptionID == "" {
			c.SubscriptionID = sub.ID
		}
		if c.CustomerID == "" {
			c.CustomerID = sub.CustomerID
		}
	}

	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}
	if err := s.records.Save(ctx, &Record{
		SessionID: sess.ID,
		UserID:    userID,
		Plan:      string(plan),
		Status:    RecordComplete,
		CreatedAt: createdAt,
	}); err != nil {
		return nil, err
	}

	if err := s.profiles.Upsert(ctx, userID, profile.Update{
		Plan:             profile.Set(plan),
		Status:           profile.Set(c.Status),
		CustomerID:       profile.SetNonEmpty(c.CustomerID),
		SubscriptionID:   profile.SetNonEmpty(c.SubscriptionID),
		CurrentPeriodEnd: profile.SetPtr(c.CurrentPeriodEnd),
		CancelAt:         profile.SetPtr(cancelAt),
	}); err != nil {
		return nil, err
	}

	if err := s.counters.Touch(ctx, userID); err != nil {
		return nil, err
	}

	s.log.Info("checkout confirmed",
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
		zap.String("plan", string(plan)),
		zap.String("status", string(c.Status)))
	return c, nil
}

func (s *Service) normalizeStatus(sub *billing.Subscription) billing.Status {
	if sub.Status != "" && !billing.IsKnownStatus(sub.Status) {
		s.log.Warn("unknown subscription status treated as active",
			zap.String("subscription_id", sub.ID), zap.String("status", sub.Status))
	}
	return billing.NormalizeStatus(sub.Status)
}
