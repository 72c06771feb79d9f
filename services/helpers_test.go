package services

import (
	"context"
	"sync"
	"time"

	"vibin_notifier/models"
)

func fastRetry() RetryPolicy {
	return RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}
}

type presented struct {
	userID string
	system *models.SystemNotification
	inApp  *models.InAppEvent
}

func (p presented) notificationID() string {
	if p.system != nil {
		return p.system.NotificationID
	}
	return p.inApp.NotificationID
}

type recordingPresenter struct {
	mu    sync.Mutex
	shown []presented
}

func (p *recordingPresenter) PresentSystem(ctx context.Context, userID string, n models.SystemNotification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, presented{userID: userID, system: &n})
}

func (p *recordingPresenter) PresentInApp(ctx context.Context, userID string, e models.InAppEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shown = append(p.shown, presented{userID: userID, inApp: &e})
}

func (p *recordingPresenter) For(userID string) []presented {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []presented
	for _, shown := range p.shown {
		if shown.userID == userID {
			out = append(out, shown)
		}
	}
	return out
}

func (p *recordingPresenter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.shown)
}

type recordingSink struct {
	mu     sync.Mutex
	routed []models.NotificationEnvelope
}

func (s *recordingSink) Route(ctx context.Context, envelope models.NotificationEnvelope) RouteDecision {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routed = append(s.routed, envelope)
	return DecisionLocal
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.routed)
}

func matchPayload(eventID, partnerID, partnerName string) models.NotificationPayload {
	return models.NotificationPayload{
		Type:           models.NotificationTypeMatch,
		Source:         models.SourcePush,
		PartnerID:      partnerID,
		PartnerName:    partnerName,
		NotificationID: models.SynthesizeNotificationID(eventID, models.NotificationTypeMatch, partnerID),
		EventID:        eventID,
	}
}

func pushEnvelope(payload models.NotificationPayload) models.NotificationEnvelope {
	return models.NotificationEnvelope{
		ID:      "msg-" + payload.NotificationID,
		Type:    payload.Type,
		Source:  models.SourcePush,
		Payload: payload,
	}
}
