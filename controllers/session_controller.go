package controllers

import (
	"context"
	"net/http"
	"time"

	"vibin_notifier/models"
	"vibin_notifier/services"
	"vibin_notifier/utils"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// SessionController manages notification sessions
type SessionController struct {
	Sessions *services.SessionManager
}

// OpenSessionHandler starts (or refreshes) the session of a user
func (c *SessionController) OpenSessionHandler(w http.ResponseWriter, r *http.Request) {
	var request struct {
		UserID    string `json:"userId" validate:"required"`
		Name      string `json:"name"`
		PushToken string `json:"pushToken"`
		State     string `json:"state" validate:"omitempty,oneof=active inactive background"`
	}
	if !decodeRequest(w, r, &request) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	session, err := c.Sessions.Open(ctx, request.UserID, request.Name, request.PushToken)
	if err != nil {
		writeServiceError(w, err, "start the session")
		return
	}
	if request.State != "" {
		session.Tracker().Transition(request.State)
	}

	utils.WriteJSONResponse(w, http.StatusCreated, map[string]interface{}{
		"userId":     session.UserID,
		"foreground": session.Tracker().IsForeground(),
		"online":     session.Online(),
	})
}

// CloseSessionHandler ends a session and releases its subscriptions
func (c *SessionController) CloseSessionHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if err := c.Sessions.Close(userID); err != nil {
		writeServiceError(w, err, "end the session")
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Session closed", "userId": userID})
}

// LifecycleHandler records a foreground/background transition
func (c *SessionController) LifecycleHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var request struct {
		State string `json:"state" validate:"required,oneof=active inactive background"`
	}
	if !decodeRequest(w, r, &request) {
		return
	}
	if err := c.Sessions.Transition(userID, request.State); err != nil {
		writeServiceError(w, err, "update the app state")
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"userId": userID, "state": request.State})
}

// ConnectivityHandler toggles the online flag; going online replays the queue
func (c *SessionController) ConnectivityHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var request struct {
		Online *bool `json:"online" validate:"required"`
	}
	if !decodeRequest(w, r, &request) {
		return
	}
	session, err := c.Sessions.Get(userID)
	if err != nil {
		writeServiceError(w, err, "update connectivity")
		return
	}
	session.SetOnline(*request.Online)
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"userId": userID, "online": *request.Online})
}

// PushTokenHandler registers the device push token of a user
func (c *SessionController) PushTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var request struct {
		Token string `json:"token" validate:"required"`
	}
	if !decodeRequest(w, r, &request) {
		return
	}
	c.Sessions.RegisterToken(userID, request.Token)
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Push token registered"})
}

// InboundNotificationHandler routes a notification delivered to the device
func (c *SessionController) InboundNotificationHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var request struct {
		MessageID string                     `json:"messageId"`
		Source    string                     `json:"source" validate:"omitempty,oneof=push localFallback"`
		Payload   models.NotificationPayload `json:"payload"`
	}
	if !decodeRequest(w, r, &request) {
		return
	}

	session, err := c.Sessions.Get(userID)
	if err != nil {
		writeServiceError(w, err, "deliver the notification")
		return
	}

	source := request.Source
	if source == "" {
		source = models.SourcePush
	}
	request.Payload.Source = source

	decision := session.Deliver(r.Context(), models.NotificationEnvelope{
		ID:         request.MessageID,
		Type:       request.Payload.Type,
		Source:     source,
		Payload:    request.Payload,
		ReceivedAt: time.Now().UTC(),
	})
	logrus.WithFields(logrus.Fields{"userId": userID, "decision": decision.String()}).Debug("📨 Inbound notification routed")

	status := http.StatusOK
	if decision == services.DecisionRejected {
		status = http.StatusUnprocessableEntity
	}
	utils.WriteJSONResponse(w, status, map[string]string{"decision": decision.String()})
}

// QueueHandler lists the actions waiting for replay
func (c *SessionController) QueueHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	session, err := c.Sessions.Get(userID)
	if err != nil {
		writeServiceError(w, err, "read the offline queue")
		return
	}
	pending, err := session.Queue().Pending(r.Context())
	if err != nil {
		writeServiceError(w, err, "read the offline queue")
		return
	}
	if pending == nil {
		pending = []models.QueuedAction{}
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"actions": pending})
}

// FlushQueueHandler replays the offline queue now
func (c *SessionController) FlushQueueHandler(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	session, err := c.Sessions.Get(userID)
	if err != nil {
		writeServiceError(w, err, "replay the offline queue")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := session.Flush(ctx)
	if err != nil {
		logrus.WithError(err).WithField("userId", userID).Warn("⚠️ Flush stopped early")
		utils.WriteJSONResponse(w, http.StatusAccepted, map[string]interface{}{"result": result, "error": err.Error()})
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, map[string]interface{}{"result": result})
}
