package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"github.com/letsmanuel/webnest-sub001/internal/collab"
	"github.com/letsmanuel/webnest-sub001/internal/model"
)

// CollabHandler exposes the collaboration session lifecycle.
type CollabHandler struct {
	manager   *collab.Manager
	profiles  *ProfileHandler
	jwtSecret string
}

// NewCollabHandler creates a new CollabHandler. profiles is used to
// resolve the caller to a profile before a session is priced.
func NewCollabHandler(manager *collab.Manager, profiles *ProfileHandler, jwtSecret string) *CollabHandler {
	return &CollabHandler{manager: manager, profiles: profiles, jwtSecret: jwtSecret}
}

// CreateSession handles POST /collab/sessions.
func (h *CollabHandler) CreateSession(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	identity, err := GetIdentity(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	var payload struct {
		WebsiteID       string         `json:"websiteId"`
		MaxParticipants int            `json:"maxParticipants"`
		PinStyle        model.PinStyle `json:"pinStyle"`
	}
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}

	// The caller must resolve to a profile before pricing.
	if _, err := h.profiles.ensureProfile(ctx, identity); err != nil {
		fmt.Printf("ensureProfile error: %v\n", err)
		return events.APIGatewayProxyResponse{StatusCode: http.StatusInternalServerError, Body: "Failed to resolve profile"}, nil
	}

	result, err := h.manager.CreateSession(ctx, payload.WebsiteID, identity.UserID, payload.MaxParticipants, payload.PinStyle)
	if err != nil {
		return collabErrResponse("CreateSession", err), nil
	}

	body, _ := json.Marshal(struct {
		ID      string `json:"id"`
		Pin     string `json:"pin"`
		Cost    int    `json:"cost"`
		Charged int    `json:"charged"`
		Trial   bool   `json:"freeTrialUsed"`
	}{
		ID:      result.Session.ID,
		Pin:     result.Session.Pin,
		Cost:    result.Cost,
		Charged: result.Charged,
		Trial:   result.Trial,
	})
	return jsonResponse(http.StatusCreated, body), nil
}

// GetSession handles GET /collab/sessions/{id}.
func (h *CollabHandler) GetSession(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if _, err := GetUserID(req, h.jwtSecret); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing session ID"}, nil
	}

	session, err := h.manager.GetSession(ctx, id)
	if err != nil {
		return collabErrResponse("GetSession", err), nil
	}

	body, _ := json.Marshal(session)
	return jsonResponse(http.StatusOK, body), nil
}

// JoinSession handles POST /collab/join.
func (h *CollabHandler) JoinSession(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	identity, err := GetIdentity(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	var payload struct {
		Pin         string `json:"pin"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}
	if payload.DisplayName == "" {
		payload.DisplayName = identity.DisplayName
	}

	result, session, err := h.manager.JoinSession(ctx, payload.Pin, identity.UserID, payload.DisplayName)
	if err != nil {
		return collabErrResponse("JoinSession", err), nil
	}

	body, _ := json.Marshal(struct {
		Result  collab.JoinResult    `json:"result"`
		Session *model.CollabSession `json:"session,omitempty"`
	}{Result: result, Session: session})
	return jsonResponse(http.StatusOK, body), nil
}

// LeaveSession handles POST /collab/sessions/{id}/leave.
func (h *CollabHandler) LeaveSession(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing session ID"}, nil
	}

	if err := h.manager.LeaveSession(ctx, id, userID); err != nil {
		return collabErrResponse("LeaveSession", err), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}

// DenyUser handles POST /collab/sessions/{id}/deny.
func (h *CollabHandler) DenyUser(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing session ID"}, nil
	}

	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal([]byte(req.Body), &payload); err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Invalid request body"}, nil
	}

	if err := h.manager.DenyUser(ctx, id, userID, payload.UserID); err != nil {
		return collabErrResponse("DenyUser", err), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}

// EndSession handles POST /collab/sessions/{id}/end.
func (h *CollabHandler) EndSession(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := GetUserID(req, h.jwtSecret)
	if err != nil {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusUnauthorized, Body: "Unauthorized"}, nil
	}

	id := req.PathParameters["id"]
	if id == "" {
		return events.APIGatewayProxyResponse{StatusCode: http.StatusBadRequest, Body: "Missing session ID"}, nil
	}

	if err := h.manager.EndSession(ctx, id, userID); err != nil {
		return collabErrResponse("EndSession", err), nil
	}
	return events.APIGatewayProxyResponse{StatusCode: http.StatusNoContent}, nil
}

// collabErrResponse maps manager errors onto HTTP statuses.
func collabErrResponse(op string, err error) events.APIGatewayProxyResponse {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, collab.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, collab.ErrInsufficientTokens):
		status = http.StatusPaymentRequired
	case errors.Is(err, collab.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, collab.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, collab.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, collab.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, collab.ErrUnavailable):
		status = http.StatusServiceUnavailable
	default:
		fmt.Printf("%s error: %v\n", op, err)
	}
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return jsonResponse(status, body)
}

func jsonResponse(status int, body []byte) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Body:       string(body),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}
