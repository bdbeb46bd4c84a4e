package routes

import (
	"moveflow_server/controllers"
	"moveflow_server/services"

	"github.com/gorilla/mux"
)

// RegisterMoveRoutes sets up routes for move records under /api/moves
func RegisterMoveRoutes(r *mux.Router, coordinator *services.SessionCoordinator, moves *services.MoveService, confirmations *services.ConfirmationService) {
	controller := controllers.NewMoveController(coordinator, moves, confirmations)

	moveRouter := r.PathPrefix("/api/moves").Subrouter()
	moveRouter.HandleFunc("", controller.HandleOpenMove).Methods("POST")
	moveRouter.HandleFunc("/reconcile", controller.HandleReconcile).Methods("POST")
	moveRouter.HandleFunc("/{moveId}", controller.HandleGetMove).Methods("GET")
	moveRouter.HandleFunc("/{moveId}/cancel", controller.HandleCancelMove).Methods("POST")
	moveRouter.HandleFunc("/{moveId}/complete", controller.HandleCompleteMove).Methods("POST")
}
