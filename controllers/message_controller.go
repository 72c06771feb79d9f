package controllers

import (
	"context"
	"net/http"
	"time"

	"vibin_notifier/services"
	"vibin_notifier/utils"
)

// MessageController sends chat message notifications
type MessageController struct {
	Sessions *services.SessionManager
}

// NotifyMessageHandler pushes a "message" notification to the recipient
func (c *MessageController) NotifyMessageHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		SenderID    string `json:"senderId" validate:"required"`
		RecipientID string `json:"recipientId" validate:"required,nefield=SenderID"`
		EventID     string `json:"eventId"`
		Text        string `json:"text"`
	}
	if !decodeRequest(w, r, &request) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	messageID, err := c.Sessions.NotifyMessage(ctx, request.SenderID, request.RecipientID, request.EventID, request.Text)
	if err != nil {
		writeServiceError(w, err, "send the notification")
		return
	}
	utils.WriteJSONResponse(w, http.StatusAccepted, map[string]string{"messageId": messageID})
}
