package routes

import (
	"vibin_notifier/controllers"
	"vibin_notifier/services"

	"github.com/gorilla/mux"
)

// RegisterLikeRoutes registers all like-related routes under `/api/likes`
func RegisterLikeRoutes(router *mux.Router, sessions *services.SessionManager, likes *services.LikeService) {
	controller := &controllers.LikeController{Sessions: sessions, Likes: likes}

	likeRouter := router.PathPrefix("/api/likes").Subrouter()
	likeRouter.HandleFunc("", controller.SubmitLikeHandler).Methods("POST")
	likeRouter.HandleFunc("", controller.GetLikesHandler).Methods("GET")
}
