package billing

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Metadata keys written on checkout sessions and subscriptions.
const (
	MetaUserID = "user_id"
	MetaPlan   = "plan"
)

// ProrationCreate bills upgrades immediately and credits downgrades on the next invoice.
// The asymmetry is the provider's policy; this service only requests it.
const ProrationCreate = "create_prorations"

type CheckoutParams struct {
	UserID     string
	Email      string
	Plan       Plan
	PriceID    string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider's checkout session, reduced to the fields
// reconciliation needs. Optional nested objects are nil when absent.
type CheckoutSession struct {
	ID                string
	URL               string
	ClientReferenceID string
	Metadata          map[string]string
	PaymentStatus     string
	Status            string
	CreatedAt         time.Time
	CustomerID        string
	SubscriptionID    string
	// Subscription is set only when the provider expanded it.
	Subscription *Subscription
}

// OwnerID returns the user the session was created for.
func (s *CheckoutSession) OwnerID() string {
	if id := s.Metadata[MetaUserID]; id != "" {
		return id
	}
	return s.ClientReferenceID
}

func (s *CheckoutSession) Paid() bool {
	return s.PaymentStatus == "paid"
}

type Subscription struct {
	ID                string
	Status            string
	CancelAtPeriodEnd bool
	CancelAt          *time.Time
	CustomerID        string
	Metadata          map[string]string
	Items             []SubscriptionItem
}

type SubscriptionItem struct {
	ID               string
	PriceID          string
	CurrentPeriodEnd *time.Time
}

// CurrentPeriodEnd is read from the first item; the provider reports billing
// periods per item.
func (s *Subscription) CurrentPeriodEnd() *time.Time {
	if s == nil || len(s.Items) == 0 {
		return nil
	}
	return s.Items[0].CurrentPeriodEnd
}

func (s *Subscription) MetadataPlan() (Plan, bool) {
	if s == nil {
		return "", false
	}
	return NormalizePlan(s.Metadata[MetaPlan])
}

// SubscriptionUpdate lists the mutations this service issues. Nil/empty fields are not sent.
type SubscriptionUpdate struct {
	CancelAtPeriodEnd *bool
	ItemID            string
	PriceID           string
	ProrationBehavior string
	Metadata          map[string]string
}

// Provider is the payment provider collaborator.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	// GetCheckoutSession retrieves a session with its subscription expanded.
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
	// GetSubscription retrieves a subscription; withPrices expands item prices.
	GetSubscription(ctx context.Context, id string, withPrices bool) (*Subscription, error)
	UpdateSubscription(ctx context.Context, id string, update SubscriptionUpdate) (*Subscription, error)
}

// Event is a verified provider webhook event.
type Event struct {
	ID           string
	Type         string
	Subscription *Subscription
	Session      *CheckoutSession
}

type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*Event, error)
}

// ProviderError is a rejection reported by the payment provider.
type ProviderError struct {
	HTTPStatus  int
	Type        string
	Code        string
	DeclineCode string
	Message     string
	Err         error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider error: status=%d type=%s code=%s decline=%s: %s",
		e.HTTPStatus, e.Type, e.Code, e.DeclineCode, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// CardDeclined reports a rejection the end user can act on (card or payment method problem).
func (e *ProviderError) CardDeclined() bool {
	return e.Type == "card_error" || e.HTTPStatus == http.StatusPaymentRequired
}

// InvalidRequest reports a 4xx caused by the request itself, e.g. an unknown id.
func (e *ProviderError) InvalidRequest() bool {
	return e.HTTPStatus == http.StatusBadRequest || e.HTTPStatus == http.StatusNotFound
}
