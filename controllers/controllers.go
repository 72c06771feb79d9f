package controllers

import (
	"encoding/json"
	"errors"
	"net/http"

	"vibin_notifier/services"
	"vibin_notifier/utils"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

var validate = validator.New()

// HealthCheckHandler provides a basic health check
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// WelcomeHandler provides a welcome message
func WelcomeHandler(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, map[string]string{"message": "Welcome to the Vibin notifier"})
}

// decodeRequest decodes and validates a JSON body, writing a 400 on failure
func decodeRequest(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logrus.WithError(err).Warn("❌ Invalid request payload")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		logrus.WithError(err).Warn("⚠️ Missing required fields in request")
		utils.WriteErrorResponse(w, http.StatusBadRequest, "Missing or invalid fields: "+err.Error())
		return false
	}
	return true
}

// writeServiceError maps the error taxonomy onto HTTP statuses
func writeServiceError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, services.ErrNoSession) {
		utils.WriteErrorResponse(w, http.StatusNotFound, "No active session for this user")
		return
	}

	switch services.ClassifyError(err) {
	case services.KindPermission:
		utils.WriteErrorResponse(w, http.StatusForbidden, "You can't "+action+" right now")
	case services.KindInvariant:
		utils.WriteErrorResponse(w, http.StatusBadRequest, err.Error())
	case services.KindNotFound:
		utils.WriteErrorResponse(w, http.StatusNotFound, "Not found")
	case services.KindTransient:
		utils.WriteErrorResponse(w, http.StatusServiceUnavailable, "Temporarily unavailable, try again")
	case services.KindTransport:
		utils.WriteErrorResponse(w, http.StatusBadGateway, "Notification could not be sent")
	default:
		logrus.WithError(err).Errorf("❌ Failed to %s", action)
		utils.WriteErrorResponse(w, http.StatusInternalServerError, "Failed to "+action)
	}
}
