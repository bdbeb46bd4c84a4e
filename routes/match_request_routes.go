package routes

import (
	"moveflow_server/controllers"
	"moveflow_server/services"

	"github.com/gorilla/mux"
)

// RegisterMatchRequestRoutes sets up routes for partner matching under /api/match-requests
func RegisterMatchRequestRoutes(r *mux.Router, matchRequests *services.MatchRequestService) {
	controller := controllers.NewMatchRequestController(matchRequests)

	matchRouter := r.PathPrefix("/api/match-requests").Subrouter()
	matchRouter.HandleFunc("", controller.HandlePropose).Methods("POST")
	matchRouter.HandleFunc("/pending", controller.HandleListPending).Methods("GET")
	matchRouter.HandleFunc("/{requestId}/accept", controller.HandleAccept).Methods("POST")
	matchRouter.HandleFunc("/{requestId}/reject", controller.HandleReject).Methods("POST")
}
