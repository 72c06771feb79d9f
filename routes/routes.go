package routes

import (
	"net/http"

	"vibin_notifier/controllers"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up the base routes for the application
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
}

// RegisterSocketRoutes mounts the Socket.IO endpoint
func RegisterSocketRoutes(r *mux.Router, socketHandler http.Handler) {
	r.PathPrefix("/socket.io/").Handler(socketHandler)
}
