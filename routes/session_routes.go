package routes

import (
	"vibin_notifier/controllers"
	"vibin_notifier/services"

	"github.com/gorilla/mux"
)

// RegisterSessionRoutes registers session routes under `/api/sessions`
func RegisterSessionRoutes(router *mux.Router, sessions *services.SessionManager) {
	controller := &controllers.SessionController{Sessions: sessions}

	sessionRouter := router.PathPrefix("/api/sessions").Subrouter()
	sessionRouter.HandleFunc("", controller.OpenSessionHandler).Methods("POST")
	sessionRouter.HandleFunc("/{userId}", controller.CloseSessionHandler).Methods("DELETE")
	sessionRouter.HandleFunc("/{userId}/lifecycle", controller.LifecycleHandler).Methods("POST")
	sessionRouter.HandleFunc("/{userId}/connectivity", controller.ConnectivityHandler).Methods("POST")
	sessionRouter.HandleFunc("/{userId}/push-token", controller.PushTokenHandler).Methods("POST")
	sessionRouter.HandleFunc("/{userId}/notifications", controller.InboundNotificationHandler).Methods("POST")
	sessionRouter.HandleFunc("/{userId}/queue", controller.QueueHandler).Methods("GET")
	sessionRouter.HandleFunc("/{userId}/queue/flush", controller.FlushQueueHandler).Methods("POST")
}
