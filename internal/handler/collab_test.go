package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/letsmanuel/webnest-sub001/internal/collab"
	"github.com/letsmanuel/webnest-sub001/internal/handler"
	"github.com/letsmanuel/webnest-sub001/internal/model"
	"github.com/letsmanuel/webnest-sub001/internal/store/memory"
)

func newCollabHandler() (*handler.CollabHandler, *memory.Store) {
	mem := memory.New()
	manager := collab.NewManager(mem, mem, collab.NewRecordingNotifier())
	profiles := handler.NewProfileHandler(mem, testJWTSecret)
	return handler.NewCollabHandler(manager, profiles, testJWTSecret), mem
}

type createResponse struct {
	ID      string `json:"id"`
	Pin     string `json:"pin"`
	Cost    int    `json:"cost"`
	Charged int    `json:"charged"`
	Trial   bool   `json:"freeTrialUsed"`
}

func TestCollabHandler_CreateSession(t *testing.T) {
	h, _ := newCollabHandler()
	ctx := context.Background()

	req := makeRequest("POST", "/collab/sessions", `{"websiteId":"site-1","maxParticipants":3,"pinStyle":"standard"}`)
	resp, err := h.CreateSession(ctx, req)
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", resp.StatusCode, resp.Body)
	}

	var created createResponse
	if err := json.Unmarshal([]byte(resp.Body), &created); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if created.ID == "" || len([]rune(created.Pin)) != 6 {
		t.Errorf("Expected id and 6-char pin, got %+v", created)
	}
	if created.Cost != 30 {
		t.Errorf("Expected cost 30, got %d", created.Cost)
	}
	// First session for a fresh profile rides the free trial.
	if created.Charged != 0 || !created.Trial {
		t.Errorf("Expected free trial, got %+v", created)
	}
}

func TestCollabHandler_CreateSession_Unauthorized(t *testing.T) {
	h, _ := newCollabHandler()
	req := makeRequest("POST", "/collab/sessions", `{"websiteId":"site-1","maxParticipants":3}`)
	req.Headers = map[string]string{}

	resp, _ := h.CreateSession(context.Background(), req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", resp.StatusCode)
	}
}

func TestCollabHandler_CreateSession_InvalidCapacity(t *testing.T) {
	h, _ := newCollabHandler()
	req := makeRequest("POST", "/collab/sessions", `{"websiteId":"site-1","maxParticipants":1}`)

	resp, _ := h.CreateSession(context.Background(), req)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestCollabHandler_CreateSession_InsufficientTokens(t *testing.T) {
	h, mem := newCollabHandler()
	ctx := context.Background()
	mem.CreateProfile(ctx, &model.UserProfile{UserID: testUserID, Tokens: 5, HasUsedFreeCollabTrial: true})

	req := makeRequest("POST", "/collab/sessions", `{"websiteId":"site-1","maxParticipants":3}`)
	resp, _ := h.CreateSession(ctx, req)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Errorf("Expected 402, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestCollabHandler_JoinLifecycle(t *testing.T) {
	h, _ := newCollabHandler()
	ctx := context.Background()

	// Owner creates a 2-slot session.
	resp, _ := h.CreateSession(ctx, makeRequestAs("owner", "POST", "/collab/sessions", `{"websiteId":"site-1","maxParticipants":2}`))
	var created createResponse
	json.Unmarshal([]byte(resp.Body), &created)

	// Second user joins by PIN and is admitted.
	joinResp, err := h.JoinSession(ctx, makeRequestAs("userB", "POST", "/collab/join", `{"pin":"`+created.Pin+`","displayName":"B"}`))
	if err != nil {
		t.Fatalf("JoinSession returned error: %v", err)
	}
	if joinResp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", joinResp.StatusCode, joinResp.Body)
	}
	var join struct {
		Result  collab.JoinResult    `json:"result"`
		Session *model.CollabSession `json:"session"`
	}
	json.Unmarshal([]byte(joinResp.Body), &join)
	if join.Result != collab.Admitted {
		t.Fatalf("Expected admitted, got %s", join.Result)
	}
	if join.Session.CurrentParticipants != 2 {
		t.Errorf("Expected 2 participants, got %d", join.Session.CurrentParticipants)
	}

	// Third user is queued.
	queuedResp, _ := h.JoinSession(ctx, makeRequestAs("userC", "POST", "/collab/join", `{"pin":"`+created.Pin+`"}`))
	json.Unmarshal([]byte(queuedResp.Body), &join)
	if join.Result != collab.Queued {
		t.Errorf("Expected queued, got %s", join.Result)
	}

	// Owner denies the queued user.
	denyReq := makeRequestAs("owner", "POST", "/collab/sessions/"+created.ID+"/deny", `{"userId":"userC"}`)
	denyReq.PathParameters["id"] = created.ID
	denyResp, _ := h.DenyUser(ctx, denyReq)
	if denyResp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", denyResp.StatusCode, denyResp.Body)
	}

	// Denied join is reported as such.
	deniedResp, _ := h.JoinSession(ctx, makeRequestAs("userC", "POST", "/collab/join", `{"pin":"`+created.Pin+`"}`))
	json.Unmarshal([]byte(deniedResp.Body), &join)
	if join.Result != collab.Denied {
		t.Errorf("Expected denied, got %s", join.Result)
	}
}

func TestCollabHandler_JoinUnknownPin(t *testing.T) {
	h, _ := newCollabHandler()
	resp, _ := h.JoinSession(context.Background(), makeRequest("POST", "/collab/join", `{"pin":"ZZZZZZ"}`))
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d: %s", resp.StatusCode, resp.Body)
	}
}

func TestCollabHandler_DenyRequiresOwner(t *testing.T) {
	h, _ := newCollabHandler()
	ctx := context.Background()

	resp, _ := h.CreateSession(ctx, makeRequestAs("owner", "POST", "/collab/sessions", `{"websiteId":"site-1","maxParticipants":2}`))
	var created createResponse
	json.Unmarshal([]byte(resp.Body), &created)

	denyReq := makeRequestAs("stranger", "POST", "/collab/sessions/"+created.ID+"/deny", `{"userId":"owner"}`)
	denyReq.PathParameters["id"] = created.ID
	denyResp, _ := h.DenyUser(ctx, denyReq)
	if denyResp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected 403, got %d: %s", denyResp.StatusCode, denyResp.Body)
	}
}

func TestCollabHandler_GetSession_NotFound(t *testing.T) {
	h, _ := newCollabHandler()
	req := makeRequest("GET", "/collab/sessions/nope", "")
	req.PathParameters["id"] = "nope"

	resp, _ := h.GetSession(context.Background(), req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", resp.StatusCode)
	}
}

func TestCollabHandler_EndSession(t *testing.T) {
	h, _ := newCollabHandler()
	ctx := context.Background()

	resp, _ := h.CreateSession(ctx, makeRequestAs("owner", "POST", "/collab/sessions", `{"websiteId":"site-1","maxParticipants":2}`))
	var created createResponse
	json.Unmarshal([]byte(resp.Body), &created)

	endReq := makeRequestAs("owner", "POST", "/collab/sessions/"+created.ID+"/end", "")
	endReq.PathParameters["id"] = created.ID
	endResp, _ := h.EndSession(ctx, endReq)
	if endResp.StatusCode != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", endResp.StatusCode, endResp.Body)
	}

	getReq := makeRequest("GET", "/collab/sessions/"+created.ID, "")
	getReq.PathParameters["id"] = created.ID
	getResp, _ := h.GetSession(ctx, getReq)
	var session model.CollabSession
	json.Unmarshal([]byte(getResp.Body), &session)
	if session.State != model.SessionClosed {
		t.Errorf("Expected closed state, got %s", session.State)
	}
}
