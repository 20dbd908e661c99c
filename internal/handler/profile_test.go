package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/letsmanuel/webnest-sub001/internal/handler"
	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/store/memory"
)

func TestProfileHandler_GetCreatesOnFirstAccess(t *testing.T) {
	mem := memory.New()
	h := handler.NewProfileHandler(mem, testJWTSecret)
	ctx := context.Background()

	resp, err := h.GetProfile(ctx, makeRequest("GET", "/profile", ""))
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var profile model.UserProfile
	json.Unmarshal([]byte(resp.Body), &profile)
	if profile.UserID != testUserID {
		t.Errorf("Expected userID '%s', got '%s'", testUserID, profile.UserID)
	}
	if profile.Tokens != 0 || profile.HasUsedFreeCollabTrial {
		t.Errorf("Fresh profile should have 0 tokens and unused trial: %+v", profile)
	}
	if profile.Email != testUserID+"@example.com" {
		t.Errorf("Expected email from token claims, got '%s'", profile.Email)
	}

	// Second access returns the same profile, not a reset one.
	mem.UpdateProfile(ctx, testUserID, func(p *model.UserProfile) error {
		p.Tokens = 42
		return nil
	})
	resp, _ = h.GetProfile(ctx, makeRequest("GET", "/profile", ""))
	json.Unmarshal([]byte(resp.Body), &profile)
	if profile.Tokens != 42 {
		t.Errorf("Expected persisted balance 42, got %d", profile.Tokens)
	}
}

func TestProfileHandler_Unauthorized(t *testing.T) {
	h := handler.NewProfileHandler(memory.New(), testJWTSecret)
	req := makeRequest("GET", "/profile", "")
	req.Headers = map[string]string{}

	resp, _ := h.GetProfile(context.Background(), req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestProfileHandler_UpdateDisplayName(t *testing.T) {
	h := handler.NewProfileHandler(memory.New(), testJWTSecret)
	ctx := context.Background()

	resp, err := h.UpdateProfile(ctx, makeRequest("PATCH", "/profile", `{"displayName":"New Name"}`))
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", resp.StatusCode, resp.Body)
	}

	var profile model.UserProfile
	json.Unmarshal([]byte(resp.Body), &profile)
	if profile.DisplayName != "New Name" {
		t.Errorf("Expected display name updated, got '%s'", profile.DisplayName)
	}
}

func TestProfileHandler_UpdateRequiresName(t *testing.T) {
	h := handler.NewProfileHandler(memory.New(), testJWTSecret)

	resp, _ := h.UpdateProfile(context.Background(), makeRequest("PATCH", "/profile", `{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", resp.StatusCode)
	}
}
