package routes

import (
	"moveflow_server/controllers"
	"moveflow_server/services"

	"github.com/gorilla/mux"
)

// RegisterSessionRoutes sets up routes for session operations under /api/sessions
func RegisterSessionRoutes(r *mux.Router, coordinator *services.SessionCoordinator, sessions *services.SessionService) {
	controller := controllers.NewSessionController(coordinator, sessions)

	sessionRouter := r.PathPrefix("/api/sessions").Subrouter()
	sessionRouter.HandleFunc("/open", controller.HandleOpenSession).Methods("POST")
	sessionRouter.HandleFunc("/{sessionId}", controller.HandleGetSession).Methods("GET")
	sessionRouter.HandleFunc("/{sessionId}/messages", controller.HandleGetMessages).Methods("GET")
	sessionRouter.HandleFunc("/{sessionId}/messages", controller.HandleSendMessage).Methods("POST")
	sessionRouter.HandleFunc("/{sessionId}/confirm", controller.HandleConfirm).Methods("POST")
}
