// Package billingtest provides a testify mock of the payment provider.
package billingtest

import (
	"context"

	"buildadvisor/internal/domain/billing"

	"github.com/stretchr/testify/mock"
)

type Provider struct {
	mock.Mock
}

var _ billing.Provider = (*Provider)(nil)

func (m *Provider) CreateCheckoutSession(ctx context.Context, params billing.CheckoutParams) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, params)
	s, _ := args.Get(0).(*billing.CheckoutSession)
	return s, args.Error(1)
}

func (m *Provider) GetCheckoutSession(ctx context.Context, id string) (*billing.CheckoutSession, error) {
	args := m.Called(ctx, id)
	s, _ := args.Get(0).(*billing.CheckoutSession)
	return s, args.Error(1)
}

func (m *Provider) GetSubscription(ctx context.Context, id string, withPrices bool) (*billing.Subscription, error) {
	args := m.Called(ctx, id, withPrices)
	s, _ := args.Get(0).(*billing.Subscription)
	return s, args.Error(1)
}

func (m *Provider) UpdateSubscription(ctx context.Context, id string, update billing.SubscriptionUpdate) (*billing.Subscription, error) {
	args := m.Called(ctx, id, update)
	s, _ := args.Get(0).(*billing.Subscription)
	return s, args.Error(1)
}
