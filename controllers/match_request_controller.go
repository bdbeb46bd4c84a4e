package controllers

import (
	"encoding/json"
	"net/http"

	apperrors "moveflow_server/errors"
	"moveflow_server/services"

	"github.com/gorilla/mux"
)

// MatchRequestController struct
type MatchRequestController struct {
	MatchRequests *services.MatchRequestService
}

// NewMatchRequestController initializes the controller
func NewMatchRequestController(service *services.MatchRequestService) *MatchRequestController {
	return &MatchRequestController{MatchRequests: service}
}

// HandlePropose - propose a partner match
func (c *MatchRequestController) HandlePropose(w http.ResponseWriter, r *http.Request) {
	var request struct {
		FromID string `json:"fromId"`
		ToID   string `json:"toId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid request body"))
		return
	}

	created, err := c.MatchRequests.Propose(r.Context(), request.FromID, request.ToID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleAccept - accept a pending request
func (c *MatchRequestController) HandleAccept(w http.ResponseWriter, r *http.Request) {
	updated, err := c.MatchRequests.Accept(r.Context(), mux.Vars(r)["requestId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleReject - reject a pending request
func (c *MatchRequestController) HandleReject(w http.ResponseWriter, r *http.Request) {
	updated, err := c.MatchRequests.Reject(r.Context(), mux.Vars(r)["requestId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HandleListPending - incoming pending requests for a participant
func (c *MatchRequestController) HandleListPending(w http.ResponseWriter, r *http.Request) {
	toID := r.URL.Query().Get("toId")

	requests, err := c.MatchRequests.ListPendingIncoming(r.Context(), toID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, requests)
}
