package models

// ✅ Notification Types
const (
	NotificationTypeMatch   = "match"
	NotificationTypeMessage = "message"
	NotificationTypeGeneral = "general"
)

// ✅ Notification Sources
const (
	SourcePush          = "push"
	SourceLocalFallback = "localFallback"
)

// ✅ Lifecycle States reported by the UI
const (
	LifecycleActive     = "active"
	LifecycleInactive   = "inactive"
	LifecycleBackground = "background"
)

// ✅ In-app event kinds
const (
	InAppModal = "modal"
	InAppToast = "toast"
)

// ✅ Deep-link screens
const (
	ScreenChat   = "chat"
	ScreenEvents = "events"
)

// ✅ Queued operation kinds
const (
	OperationCreateLike = "create_like"
)
