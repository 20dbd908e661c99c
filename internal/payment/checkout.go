// Package payment is the boundary to the hosted checkout provider.
// It creates redirect-URL checkout sessions for token packages and
// reads back the purchased token count once a checkout completes.
// Crediting the purchased tokens to a profile happens outside this
// service.
package payment

import (
	"context"
	"fmt"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// CheckoutParams describes a token package being purchased.
type CheckoutParams struct {
	UserID       string
	PackageLabel string // e.g. "Starter Pack"
	TokensLabel  string // e.g. "500 Tokens"
	Tokens       int64  // token count credited after completion
	PriceCents   int64  // charge amount in the configured currency
	CustomerID   string // optional, reuse an existing checkout customer
}

// Checkout is the provider-side view of a checkout session.
type Checkout struct {
	ID         string `json:"id"`
	URL        string `json:"url,omitempty"`
	Status     string `json:"status"`
	Paid       bool   `json:"paid"`
	Tokens     int64  `json:"tokens"`
	CustomerID string `json:"-"`
}

// Gateway creates and retrieves checkout sessions.
type Gateway interface {
	CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error)
	GetCheckout(ctx context.Context, id string) (*Checkout, error)
}

// StripeGateway implements Gateway against the Stripe API.
type StripeGateway struct {
	api        *client.API
	currency   string
	successURL string
	cancelURL  string
}

// NewStripeGateway builds a gateway with the given secret key. The
// success URL receives the checkout session id for later retrieval.
func NewStripeGateway(secretKey, currency, successURL, cancelURL string) *StripeGateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{
		api:        api,
		currency:   currency,
		successURL: successURL,
		cancelURL:  cancelURL,
	}
}

func (g *StripeGateway) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	p := &stripe.CheckoutSessionParams{
		Params:     stripe.Params{Context: ctx},
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(g.currency),
				UnitAmount: stripe.Int64(params.PriceCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(params.PackageLabel),
					Description: stripe.String(params.TokensLabel),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	if params.CustomerID != "" {
		p.Customer = stripe.String(params.CustomerID)
	} else {
		p.CustomerCreation = stripe.String(string(stripe.CheckoutSessionCustomerCreationAlways))
	}
	p.AddMetadata("userId", params.UserID)
	p.AddMetadata("tokens", strconv.FormatInt(params.Tokens, 10))

	s, err := g.api.CheckoutSessions.New(p)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return fromStripe(s), nil
}

func (g *StripeGateway) GetCheckout(ctx context.Context, id string) (*Checkout, error) {
	s, err := g.api.CheckoutSessions.Get(id, &stripe.CheckoutSessionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}
	return fromStripe(s), nil
}

func fromStripe(s *stripe.CheckoutSession) *Checkout {
	tokens, _ := strconv.ParseInt(s.Metadata["tokens"], 10, 64)
	out := &Checkout{
		ID:     s.ID,
		URL:    s.URL,
		Status: string(s.Status),
		Paid:   s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		Tokens: tokens,
	}
	if s.Customer != nil {
		out.CustomerID = s.Customer.ID
	}
	return out
}
