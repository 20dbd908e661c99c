package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/store"
)

// ProfileHandler serves the caller's token wallet. Profiles are created
// lazily on first authenticated access.
type ProfileHandler struct {
	profiles  store.ProfileStore
	jwtSecret string
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(profiles store.ProfileStore, jwtSecret string) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, jwtSecret: jwtSecret}
}

// ensureProfile returns the caller's profile, creating it if absent.
func (h *ProfileHandler) ensureProfile(ctx context.Context, identity *Identity) (*model.UserProfile, error) {
	profile, err := h.profiles.GetProfile(ctx, identity.UserID)
	if err == nil {
		return profile, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	fresh := &model.UserProfile{
		UserID:      identity.UserID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		UpdatedAt:   time.Now(),
	}
	err = h.profiles.CreateProfile(ctx, fresh)
	if errors.Is(err, store.ErrConditionFailed) {
		// Concurrent first access created it already.
		return h.profiles.GetProfile(ctx, identity.UserID)
	}
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// GetProfile handles GET /profile.
func (h *ProfileHandler) GetProfile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	identity, err := GetIdentity(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	profile, err := h.ensureProfile(ctx, identity)
	if err != nil {
		fmt.Printf("GetProfile error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to load profile"}, nil
	}

	body, _ := json.Marshal(profile)
	return jsonResponse(http.StatusOK, body), nil
}

// UpdateProfile handles PATCH /profile. Only the display name is
// writable by the client; balances move through collab and payments.
func (h *ProfileHandler) UpdateProfile(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	identity, err := GetIdentity(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	var payload struct {
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}
	if payload.DisplayName == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Display name is required"}, nil
	}

	if _, err := h.ensureProfile(ctx, identity); err != nil {
		fmt.Printf("UpdateProfile ensure error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to load profile"}, nil
	}

	profile, err := h.profiles.UpdateProfile(ctx, identity.UserID, func(p *model.UserProfile) error {
		p.DisplayName = payload.DisplayName
		return nil
	})
	if err != nil {
		fmt.Printf("UpdateProfile error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to update profile"}, nil
	}

	body, _ := json.Marshal(profile)
	return jsonResponse(http.StatusOK, body), nil
}
