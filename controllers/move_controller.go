package controllers

import (
	"encoding/json"
	"net/http"

	apperrors "moveflow_server/errors"
	"moveflow_server/services"

	"github.com/gorilla/mux"
)

// MoveController struct
type MoveController struct {
	Coordinator   *services.SessionCoordinator
	Moves         *services.MoveService
	Confirmations *services.ConfirmationService
}

// NewMoveController initializes the move controller
func NewMoveController(coordinator *services.SessionCoordinator, moves *services.MoveService, confirmations *services.ConfirmationService) *MoveController {
	return &MoveController{Coordinator: coordinator, Moves: moves, Confirmations: confirmations}
}

// HandleOpenMove - create a move and its coordination session
func (c *MoveController) HandleOpenMove(w http.ResponseWriter, r *http.Request) {
	var request struct {
		RequesterID string `json:"requesterId"`
		ProviderID  string `json:"providerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid request body"))
		return
	}

	move, session, err := c.Coordinator.OpenMove(r.Context(), request.RequesterID, request.ProviderID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"move":    move,
		"session": session,
	})
}

// HandleGetMove - fetch a move record
func (c *MoveController) HandleGetMove(w http.ResponseWriter, r *http.Request) {
	move, err := c.Moves.GetMove(r.Context(), mux.Vars(r)["moveId"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, move)
}

// HandleCancelMove - cancel the move and reset the linked session
func (c *MoveController) HandleCancelMove(w http.ResponseWriter, r *http.Request) {
	if err := c.Coordinator.CancelMove(r.Context(), mux.Vars(r)["moveId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "canceled"})
}

// HandleCompleteMove - close out a confirmed move
func (c *MoveController) HandleCompleteMove(w http.ResponseWriter, r *http.Request) {
	if err := c.Coordinator.CompleteMove(r.Context(), mux.Vars(r)["moveId"]); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

// HandleReconcile - re-drive a move status left behind by a partial confirm
func (c *MoveController) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	var request struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperrors.New(apperrors.KindInvalidArgument, "invalid request body"))
		return
	}

	synced, err := c.Confirmations.ReconcileMoveStatus(r.Context(), request.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"moveStatusSynced": synced})
}
