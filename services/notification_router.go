package services

import (
	"context"
	"fmt"
	"time"

	"vibin_notifier/models"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// RouteDecision records what the router did with an envelope.
type RouteDecision int

const (
	DecisionDiscarded RouteDecision = iota // duplicate within the dedup window
	DecisionRejected                       // payload failed validation
	DecisionInApp                          // push while foregrounded, UI owns it
	DecisionSystem                         // push while backgrounded, full OS presentation
	DecisionLocal                          // local fallback, always surfaced
)

func (d RouteDecision) String() string {
	switch d {
	case DecisionDiscarded:
		return "discarded"
	case DecisionRejected:
		return "rejected"
	case DecisionInApp:
		return "in_app"
	case DecisionSystem:
		return "system"
	case DecisionLocal:
		return "local"
	}
	return "unknown"
}

// Presenter puts notifications in front of the user.
type Presenter interface {
	PresentSystem(ctx context.Context, userID string, n models.SystemNotification)
	PresentInApp(ctx context.Context, userID string, e models.InAppEvent)
}

// FallbackCanceller is the part of the scheduler the router needs.
type FallbackCanceller interface {
	Cancel(key string) bool
}

// NotificationRouter decides how one inbound notification reaches the user.
type NotificationRouter struct {
	userID     string
	foreground ForegroundState
	dedup      DedupCache
	fallbacks  FallbackCanceller
	presenter  Presenter
	validate   *validator.Validate
}

var _ EnvelopeSink = (*NotificationRouter)(nil)

func NewNotificationRouter(userID string, foreground ForegroundState, dedup DedupCache, fallbacks FallbackCanceller, presenter Presenter) *NotificationRouter {
	return &NotificationRouter{
		userID:     userID,
		foreground: foreground,
		dedup:      dedup,
		fallbacks:  fallbacks,
		presenter:  presenter,
		validate:   validator.New(),
	}
}

// Seen reports whether id is inside the dedup window.
func (r *NotificationRouter) Seen(ctx context.Context, id string) bool {
	return r.dedup.Seen(ctx, id)
}

func (r *NotificationRouter) Route(ctx context.Context, envelope models.NotificationEnvelope) RouteDecision {
	envelope = normalizeEnvelope(envelope)
	log := logrus.WithFields(logrus.Fields{
		"userId":         r.userID,
		"notificationId": envelope.DedupKey(),
		"type":           envelope.Type,
		"source":         envelope.Source,
	})

	if err := r.validate.Struct(envelope.Payload); err != nil {
		log.WithError(fmt.Errorf("%w: %w", ErrInvariant, err)).Error("❌ Dropping malformed notification")
		return DecisionRejected
	}

	if envelope.Source == models.SourcePush && r.fallbacks != nil {
		if r.fallbacks.Cancel(models.FallbackKey(envelope.Type, envelope.Payload.PartnerID)) {
			log.Debug("🛑 Push arrived in time, fallback cancelled")
		}
	}

	key := envelope.DedupKey()
	if !r.dedup.Claim(ctx, key) {
		log.Debug("♻️ Duplicate notification discarded")
		return DecisionDiscarded
	}

	foreground := r.foreground.IsForeground()
	route := models.RouteFor(envelope.Payload)

	if envelope.Source == models.SourceLocalFallback {
		r.presenter.PresentSystem(ctx, r.userID, models.SystemNotification{
			NotificationID: key,
			Type:           envelope.Type,
			Source:         envelope.Source,
			Title:          envelope.Payload.Title,
			Body:           envelope.Payload.Body,
			Sound:          true,
			Badge:          !foreground,
			Banner:         true,
			Route:          route,
		})
		log.Info("🔔 Local notification surfaced")
		return DecisionLocal
	}

	if foreground {
		event := models.InAppEvent{
			Kind:           models.InAppToast,
			Type:           envelope.Type,
			NotificationID: key,
			PartnerID:      envelope.Payload.PartnerID,
			PartnerName:    envelope.Payload.PartnerName,
			Title:          envelope.Payload.Title,
			Body:           envelope.Payload.Body,
			Route:          route,
		}
		if envelope.Type == models.NotificationTypeMatch {
			match := models.MatchEventFor(r.userID, envelope)
			event.Kind = models.InAppModal
			event.Match = &match
		}
		r.presenter.PresentInApp(ctx, r.userID, event)
		log.WithField("kind", event.Kind).Info("📲 Push shown in app")
		return DecisionInApp
	}

	r.presenter.PresentSystem(ctx, r.userID, models.SystemNotification{
		NotificationID: key,
		Type:           envelope.Type,
		Source:         envelope.Source,
		Title:          envelope.Payload.Title,
		Body:           envelope.Payload.Body,
		Sound:          true,
		Badge:          true,
		Banner:         true,
		Route:          route,
	})
	log.Info("📩 Push presented by the system")
	return DecisionSystem
}

// normalizeEnvelope fills envelope fields from the payload and supplies default copy.
func normalizeEnvelope(e models.NotificationEnvelope) models.NotificationEnvelope {
	if e.Type == "" {
		e.Type = e.Payload.Type
	}
	if e.Payload.Type == "" {
		e.Payload.Type = e.Type
	}
	if e.Source == "" {
		e.Source = e.Payload.Source
	}
	if e.Payload.Source == "" {
		e.Payload.Source = e.Source
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	if e.Payload.Title == "" || e.Payload.Body == "" {
		title, body := DefaultCopy(e.Payload.Type, e.Payload.PartnerName)
		if e.Payload.Title == "" {
			e.Payload.Title = title
		}
		if e.Payload.Body == "" {
			e.Payload.Body = body
		}
	}
	return e
}

// DefaultCopy is the title and body used when a payload carries none.
func DefaultCopy(notificationType, partnerName string) (string, string) {
	switch notificationType {
	case models.NotificationTypeMatch:
		return "It's a match! 🎉", fmt.Sprintf("You and %s liked each other", partnerName)
	case models.NotificationTypeMessage:
		return "New message", fmt.Sprintf("%s sent you a message", partnerName)
	}
	return "Vibin", "You have a new update"
}
