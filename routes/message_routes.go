package routes

import (
	"vibin_notifier/controllers"
	"vibin_notifier/services"

	"github.com/gorilla/mux"
)

// RegisterMessageRoutes registers message notification routes under `/api/messages`
func RegisterMessageRoutes(router *mux.Router, sessions *services.SessionManager) {
	controller := &controllers.MessageController{Sessions: sessions}

	messageRouter := router.PathPrefix("/api/messages").Subrouter()
	messageRouter.HandleFunc("/notify", controller.NotifyMessageHandler).Methods("POST")
}
