package models

import "time"

// NotificationPayload is carried by pushes and local fallbacks alike.
type NotificationPayload struct {
	Type           string `json:"type" validate:"required,oneof=match message general"` // match, message, general
	Source         string `json:"source" validate:"required,oneof=push localFallback"`  // push, localFallback
	PartnerID      string `json:"partnerId" validate:"required"`                        // The other user
	PartnerName    string `json:"partnerName" validate:"required"`                      // Display name of the other user
	NotificationID string `json:"notificationId" validate:"required"`                   // Dedup id shared by push and fallback
	EventID        string `json:"eventId,omitempty"`                                    // Event the notification is about
	Title          string `json:"title,omitempty"`
	Body           string `json:"body,omitempty"`
}

// NotificationEnvelope wraps one inbound notification.
type NotificationEnvelope struct {
	ID         string              `json:"id"` // Delivery-layer id when present
	Type       string              `json:"type"`
	Source     string              `json:"source"`
	Payload    NotificationPayload `json:"payload"`
	ReceivedAt time.Time           `json:"receivedAt"`
}

// DedupKey prefers the payload's notification id so push and fallback collapse together.
func (e NotificationEnvelope) DedupKey() string {
	if e.Payload.NotificationID != "" {
		return e.Payload.NotificationID
	}
	return e.ID
}

// MatchEvent is what one participant learns when a pair becomes mutual.
type MatchEvent struct {
	PairKey     string    `json:"pairKey"`
	EventID     string    `json:"eventId"`
	PartnerID   string    `json:"partnerId"`
	PartnerName string    `json:"partnerName"`
	DetectedAt  time.Time `json:"detectedAt"`
}

// MatchEventFor describes the match in a match envelope from userID's side.
func MatchEventFor(userID string, e NotificationEnvelope) MatchEvent {
	return MatchEvent{
		PairKey:     PairKey(userID, e.Payload.PartnerID),
		EventID:     e.Payload.EventID,
		PartnerID:   e.Payload.PartnerID,
		PartnerName: e.Payload.PartnerName,
		DetectedAt:  e.ReceivedAt,
	}
}

// SynthesizeNotificationID builds the id used when no delivery-layer id exists.
func SynthesizeNotificationID(eventID, notificationType, partnerID string) string {
	return eventID + ":" + notificationType + ":" + partnerID
}

// FallbackKey identifies a pending local fallback; a push with the same type and partner cancels it.
func FallbackKey(notificationType, partnerID string) string {
	return notificationType + ":" + partnerID
}

// ToData flattens the payload into push data fields.
func (p NotificationPayload) ToData() map[string]string {
	data := map[string]string{
		"type":           p.Type,
		"partnerId":      p.PartnerID,
		"partnerName":    p.PartnerName,
		"notificationId": p.NotificationID,
	}
	if p.EventID != "" {
		data["eventId"] = p.EventID
	}
	return data
}

// PayloadFromData rebuilds a push payload from its data fields.
func PayloadFromData(data map[string]string, title, body string) NotificationPayload {
	return NotificationPayload{
		Type:           data["type"],
		Source:         SourcePush,
		PartnerID:      data["partnerId"],
		PartnerName:    data["partnerName"],
		NotificationID: data["notificationId"],
		EventID:        data["eventId"],
		Title:          title,
		Body:           body,
	}
}
