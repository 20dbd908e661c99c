package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/letsmanuel/webnest-sub001/internal/crypto"
	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/payment"
	"github.com/letsmanuel/webnest-sub001/internal/store"
)

// PaymentHandler exposes the two checkout endpoints. It never credits
// tokens itself; completed purchases are credited by the fulfillment
// pipeline outside this service.
type PaymentHandler struct {
	gateway   payment.Gateway
	profiles  store.ProfileStore
	encryptor crypto.Encryptor
	jwtSecret string
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(gateway payment.Gateway, profiles store.ProfileStore, encryptor crypto.Encryptor, jwtSecret string) *PaymentHandler {
	return &PaymentHandler{gateway: gateway, profiles: profiles, encryptor: encryptor, jwtSecret: jwtSecret}
}

// CreateCheckout handles POST /payments/checkout.
func (h *PaymentHandler) CreateCheckout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	var payload struct {
		PackageLabel string `json:"packageLabel"`
		TokensLabel  string `json:"tokensLabel"`
		Tokens       int64  `json:"tokens"`
		PriceCents   int64  `json:"priceCents"`
	}
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}
	if payload.Tokens <= 0 || payload.PriceCents <= 0 || payload.PackageLabel == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Package, tokens and price are required"}, nil
	}

	params := payment.CheckoutParams{
		UserID:       userID,
		PackageLabel: payload.PackageLabel,
		TokensLabel:  payload.TokensLabel,
		Tokens:       payload.Tokens,
		PriceCents:   payload.PriceCents,
	}
	if customerID := h.customerID(ctx, userID); customerID != "" {
		params.CustomerID = customerID
	}

	checkout, err := h.gateway.CreateCheckout(ctx, params)
	if err != nil {
		fmt.Printf("CreateCheckout error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadGateway, Body: "Failed to create checkout session"}, nil
	}

	if checkout.CustomerID != "" && params.CustomerID == "" {
		h.storeCustomerID(ctx, userID, checkout.CustomerID)
	}

	body, _ := json.Marshal(struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}{ID: checkout.ID, URL: checkout.URL})
	return jsonResponse(http.StatusCreated, body), nil
}

// GetCheckout handles GET /payments/checkout/{id}.
func (h *PaymentHandler) GetCheckout(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := GetUserID(req, h.jwtSecret); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing checkout session ID"}, nil
	}

	checkout, err := h.gateway.GetCheckout(ctx, id)
	if err != nil {
		fmt.Printf("GetCheckout error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusNotFound, Body: "Checkout session not found"}, nil
	}

	body, _ := json.Marshal(checkout)
	return jsonResponse(http.StatusOK, body), nil
}

// customerID decrypts the stored checkout customer id, if any. Failures
// degrade to creating a fresh customer.
func (h *PaymentHandler) customerID(ctx context.Context, userID string) string {
	profile, err := h.profiles.GetProfile(ctx, userID)
	if err != nil || profile.EncryptedCustomerID == "" {
		return ""
	}
	customerID, err := h.encryptor.Decrypt(ctx, profile.EncryptedCustomerID)
	if err != nil {
		fmt.Printf("customer id decrypt error: %v\n", err)
		return ""
	}
	return customerID
}

// storeCustomerID persists the checkout customer id, encrypted at rest.
// Best effort: a failure only costs a duplicate customer next time.
func (h *PaymentHandler) storeCustomerID(ctx context.Context, userID, customerID string) {
	encrypted, err := h.encryptor.Encrypt(ctx, customerID)
	if err != nil {
		fmt.Printf("customer id encrypt error: %v\n", err)
		return
	}
	_, err = h.profiles.UpdateProfile(ctx, userID, func(p *model.UserProfile) error {
		p.EncryptedCustomerID = encrypted
		return nil
	})
	if err != nil {
		fmt.Printf("customer id store error: %v\n", err)
	}
}
