package notify

// NotificationType tags the payload data bundle so clients can route taps.
type NotificationType string

const (
	TypeCallInvite           NotificationType = "call_invite"
	TypeChatMessage          NotificationType = "chat_message"
	TypeConsultationReminder NotificationType = "consultation_reminder"
)

// Payload is one logical notification, constructed fresh per dispatch and
// never persisted. Data values must already be strings; FCM rejects anything
// else in the data bundle.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string

	// Platform delivery hints.
	Priority string // Android priority, "high" or "normal"
	Sound    string
	Category string // APNs category, enables interactive notification UI
}
