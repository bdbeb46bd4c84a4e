package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"moveflow_server/routes"
	"moveflow_server/services"
	"moveflow_server/socket"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
)

func main() {
	// Local development picks AWS_REGION and PORT up from .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on the environment")
	}

	// Initialize DynamoDB client and the document store
	log.Println("Initializing DynamoDB client...")
	dynamoClient := services.InitializeDynamoDBClient()
	store := &services.DynamoService{Client: dynamoClient}
	log.Println("DynamoDB client initialized.")

	// Initialize services; every handle is passed explicitly, no globals
	hub := services.NewSessionHub()
	sessionService := &services.SessionService{Store: store, Hub: hub}
	moveService := &services.MoveService{Store: store}
	profileService := &services.UserProfileService{Store: store}

	socketServer := socket.NewServer(sessionService)
	notifier := socketServer.Notifier()

	confirmationService := &services.ConfirmationService{
		Sessions: sessionService,
		Moves:    moveService,
		Notifier: notifier,
	}
	matchRequestService := &services.MatchRequestService{Store: store, Notifier: notifier}
	coordinator := &services.SessionCoordinator{
		Sessions:      sessionService,
		Confirmations: confirmationService,
		Moves:         moveService,
		Profiles:      profileService,
		Notifier:      notifier,
	}

	// Set up the server port
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Printf("Using server port: %s\n", port)

	// Initialize the router
	r := mux.NewRouter()

	// Register a welcome route
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "Welcome to MoveFlow")
	}).Methods("GET")

	// Register a health check endpoint
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		response := map[string]string{"status": "healthy"}
		json.NewEncoder(w).Encode(response)
	}).Methods("GET")

	// Register routes
	routes.RegisterSessionRoutes(r, coordinator, sessionService)
	routes.RegisterMoveRoutes(r, coordinator, moveService, confirmationService)
	routes.RegisterMatchRequestRoutes(r, matchRequestService)
	routes.RegisterUserProfileRoutes(r, profileService)

	// Mount the socket.io endpoint for realtime session streams
	go func() {
		if err := socketServer.IO.Serve(); err != nil {
			log.Fatalf("socket.io serve error: %v", err)
		}
	}()
	defer socketServer.IO.Close()
	r.PathPrefix("/socket.io/").Handler(socketServer.IO)

	// Add CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Adjust for specific domains if needed
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(r)

	// Start the HTTP server
	log.Printf("Starting server on port %s...\n", port)
	log.Fatal(http.ListenAndServe(":"+port, corsHandler))
}
