package models

// DeepLinkRoute is where tapping a notification takes the user.
type DeepLinkRoute struct {
	Screen string            `json:"screen"`
	Params map[string]string `json:"params,omitempty"`
}

// RouteFor maps match and message notifications to the chat with the partner.
// Anything else lands on the default event list.
func RouteFor(p NotificationPayload) DeepLinkRoute {
	switch p.Type {
	case NotificationTypeMatch, NotificationTypeMessage:
		if p.PartnerID == "" {
			break
		}
		return DeepLinkRoute{
			Screen: ScreenChat,
			Params: map[string]string{"partnerId": p.PartnerID, "partnerName": p.PartnerName},
		}
	}
	return DeepLinkRoute{Screen: ScreenEvents}
}

// InAppEvent is raised while the UI is visible instead of a system banner.
type InAppEvent struct {
	Kind           string        `json:"kind"` // modal or toast
	Type           string        `json:"type"`
	NotificationID string        `json:"notificationId"`
	PartnerID      string        `json:"partnerId"`
	PartnerName    string        `json:"partnerName"`
	Title          string        `json:"title"`
	Body           string        `json:"body"`
	Route          DeepLinkRoute `json:"route"`
	Match          *MatchEvent   `json:"match,omitempty"` // Set on match modals
}

// SystemNotification is an OS-level presentation.
type SystemNotification struct {
	NotificationID string        `json:"notificationId"`
	Type           string        `json:"type"`
	Source         string        `json:"source"`
	Title          string        `json:"title"`
	Body           string        `json:"body"`
	Sound          bool          `json:"sound"`
	Badge          bool          `json:"badge"`
	Banner         bool          `json:"banner"`
	Route          DeepLinkRoute `json:"route"`
}
