package controllers

import (
	"context"
	"net/http"
	"time"

	"vibin_notifier/services"
	"vibin_notifier/utils"
)

// LikeController handles API requests related to likes
type LikeController struct {
	Sessions *services.SessionManager
	Likes    *services.LikeService
}

// SubmitLikeHandler records a like from the liker's session, queueing it while offline
func (c *LikeController) SubmitLikeHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		EventID string `json:"eventId" validate:"required"`
		LikerID string `json:"likerId" validate:"required"`
		LikedID string `json:"likedId" validate:"required,nefield=LikerID"`
	}
	if !decodeRequest(w, r, &request) {
		return
	}

	session, err := c.Sessions.Get(request.LikerID)
	if err != nil {
		writeServiceError(w, err, "like this profile")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	result, err := session.SubmitLike(ctx, request.EventID, request.LikedID)
	if err != nil {
		writeServiceError(w, err, "like this profile")
		return
	}

	status := http.StatusCreated
	switch {
	case result.Queued:
		status = http.StatusAccepted
	case !result.Created:
		status = http.StatusOK
	}
	utils.WriteJSONResponse(w, status, result)
}

// GetLikesHandler fetches likes given and received by a user
func (c *LikeController) GetLikesHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		utils.WriteErrorResponse(w, http.StatusBadRequest, "userId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	likes, err := c.Likes.LikesFor(ctx, userID)
	if err != nil {
		writeServiceError(w, err, "load likes")
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"likes": likes})
}
