package controllers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	apperrors "moveflow_server/errors"
	"moveflow_server/services"

	"github.com/gorilla/mux"
)

// SessionController struct
type SessionController struct {
	Coordinator *services.SessionCoordinator
	Sessions    *services.SessionService
}

// NewSessionController initializes the session controller
func NewSessionController(coordinator *services.SessionCoordinator, sessions *services.SessionService) *SessionController {
	return &SessionController{Coordinator: coordinator, Sessions: sessions}
}

// HandleOpenSession - open or reuse the session for a participant pair
func (c *SessionController) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	var request struct {
		RequesterID string `json:"requesterId"`
		ProviderID  string `json:"providerId"`
		MoveID      string `json:"moveId,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid request body"))
		return
	}

	session, err := c.Coordinator.OpenOrReuseSession(r.Context(), request.RequesterID, request.ProviderID, request.MoveID)
	if err != nil {
		log.Printf("❌ Failed to open session for %s/%s: %v", request.RequesterID, request.ProviderID, err)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// HandleGetSession - fetch a session document
func (c *SessionController) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	session, err := c.Sessions.GetSession(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// HandleGetMessages - ordered message replay for a session
func (c *SessionController) HandleGetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	messages, err := c.Sessions.ListMessages(r.Context(), sessionID, int32(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

// HandleSendMessage - append a message to the session log
func (c *SessionController) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var request struct {
		SenderID string `json:"senderId"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid request body"))
		return
	}

	message, err := c.Coordinator.Send(r.Context(), sessionID, request.SenderID, request.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, message)
}

// HandleConfirm - act on the confirmation handshake as one of the parties
func (c *SessionController) HandleConfirm(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]

	var request struct {
		ParticipantID string `json:"participantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid request body"))
		return
	}

	outcome, err := c.Coordinator.Confirm(r.Context(), sessionID, request.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}

	response := map[string]interface{}{
		"session": outcome.Session,
		"state":   outcome.State,
		"repeat":  outcome.Repeat,
	}

	// Partial success: flags are durable but the move record lags. 202 so
	// the caller knows to re-drive the missing half.
	if !outcome.MoveStatusSynced {
		response["moveStatusSynced"] = false
		writeJSON(w, http.StatusAccepted, response)
		return
	}
	writeJSON(w, http.StatusOK, response)
}
