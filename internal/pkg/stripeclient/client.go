// Package stripeclient adapts the Stripe API to the billing provider interface.
package stripeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"buildadvisor/internal/domain/billing"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

// ErrUnexpectedPayload is returned when a webhook event's object cannot be decoded.
var ErrUnexpectedPayload = errors.New("stripeclient: unexpected event payload")

type Client struct {
	sessions      *session.Client
	subscriptions *subscription.Client
	webhookSecret string
}

type Option func(*stripe.BackendConfig)

// WithBaseURL points the API backend somewhere other than api.stripe.com.
func WithBaseURL(u string) Option {
	return func(c *stripe.BackendConfig) { c.URL = stripe.String(u) }
}

// WithMaxRetries overrides the SDK's network retry count.
func WithMaxRetries(n int64) Option {
	return func(c *stripe.BackendConfig) { c.MaxNetworkRetries = stripe.Int64(n) }
}

// WithTimeout bounds every API call, including the response body read.
func WithTimeout(d time.Duration) Option {
	return func(c *stripe.BackendConfig) { c.HTTPClient = &http.Client{Timeout: d} }
}

// New builds a client with its own backend so the global stripe.Key stays unset.
// Network retries are off unless WithMaxRetries says otherwise: a failed call is
// reported to the user, who decides whether to try again.
func New(secretKey, webhookSecret string, log *zap.Logger, opts ...Option) *Client {
	cfg := &stripe.BackendConfig{
		LeveledLogger:     log.Named("stripe").Sugar(),
		MaxNetworkRetries: stripe.Int64(0),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)
	return &Client{
		sessions:      &session.Client{B: backend, Key: secretKey},
		subscriptions: &subscription.Client{B: backend, Key: secretKey},
		webhookSecret: webhookSecret,
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	meta := map[string]string{
		billing.MetaUserID: p.UserID,
		billing.MetaPlan:   string(p.Plan),
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.UserID),
		Metadata:          meta,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: meta,
		},
	}
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.Context = ctx

	s, err := c.sessions.New(params)
	if err != nil {
		return nil, convertError(err)
	}
	return toSession(s), nil
}

func (c *Client) GetCheckoutSession(ctx context.Context, id string) (*billing.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	params.AddExpand("subscription")

	s, err := c.sessions.Get(id, params)
	if err != nil {
		return nil, convertError(err)
	}
	return toSession(s), nil
}

func (c *Client) GetSubscription(ctx context.Context, id string, withPrices bool) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	if withPrices {
		params.AddExpand("items.data.price")
	}

	s, err := c.subscriptions.Get(id, params)
	if err != nil {
		return nil, convertError(err)
	}
	return toSubscription(s), nil
}

func (c *Client) UpdateSubscription(ctx context.Context, id string, u billing.SubscriptionUpdate) (*billing.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	if u.CancelAtPeriodEnd != nil {
		params.CancelAtPeriodEnd = stripe.Bool(*u.CancelAtPeriodEnd)
	}
	if u.ItemID != "" && u.PriceID != "" {
		params.Items = []*stripe.SubscriptionItemsParams{
			{ID: stripe.String(u.ItemID), Price: stripe.String(u.PriceID)},
		}
	}
	if u.ProrationBehavior != "" {
		params.ProrationBehavior = stripe.String(u.ProrationBehavior)
	}
	for k, v := range u.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := c.subscriptions.Update(id, params)
	if err != nil {
		return nil, convertError(err)
	}
	return toSubscription(s), nil
}

// ParseWebhook verifies the signature and decodes the object of the events
// the reconciler consumes. Other event types come back with no object.
func (c *Client) ParseWebhook(payload []byte, signature string) (*billing.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, err
	}

	out := &billing.Event{ID: event.ID, Type: string(event.Type)}
	if event.Data == nil {
		return out, nil
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
		}
		out.Subscription = toSubscription(&sub)
	case "checkout.session.completed", "checkout.session.expired":
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnexpectedPayload, err)
		}
		out.Session = toSession(&s)
	}
	return out, nil
}

func toSession(s *stripe.CheckoutSession) *billing.CheckoutSession {
	out := &billing.CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		ClientReferenceID: s.ClientReferenceID,
		Metadata:          s.Metadata,
		PaymentStatus:     string(s.PaymentStatus),
		Status:            string(s.Status),
	}
	if s.Created > 0 {
		out.CreatedAt = time.Unix(s.Created, 0).UTC()
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		out.SubscriptionID = s.Subscription.ID
		// An unexpanded reference decodes to an object holding only the id.
		if s.Subscription.Status != "" {
			out.Subscription = toSubscription(s.Subscription)
		}
	}
	return out
}

func toSubscription(s *stripe.Subscription) *billing.Subscription {
	out := &billing.Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		CancelAt:          unixTime(s.CancelAt),
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	if s.Items != nil {
		for _, it := range s.Items.Data {
			if it == nil {
				continue
			}
			item := billing.SubscriptionItem{ID: it.ID, CurrentPeriodEnd: unixTime(it.CurrentPeriodEnd)}
			if it.Price != nil {
				item.PriceID = it.Price.ID
			}
			out.Items = append(out.Items, item)
		}
	}
	return out
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// convertError keeps the provider's classification so services can tell a
// declined card from an outage.
func convertError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return err
	}
	return &billing.ProviderError{
		HTTPStatus:  se.HTTPStatusCode,
		Type:        string(se.Type),
		Code:        string(se.Code),
		DeclineCode: string(se.DeclineCode),
		Message:     se.Msg,
		Err:         err,
	}
}
