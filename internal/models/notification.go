package models

type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
)

type NotificationStatus string

const (
	NotificationSent     NotificationStatus = "sent"
	NotificationFailed   NotificationStatus = "failed"
	NotificationSkipped  NotificationStatus = "skipped"
	NotificationDisabled NotificationStatus = "disabled"
)

type Notification struct {
	ID          string                 `json:"id"`
	EventID     string                 `json:"eventId"`
	RecipientID string                 `json:"recipientId"`
	Template    string                 `json:"template"`
	Channel     NotificationChannel    `json:"channel"`
	Status      NotificationStatus     `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	SentAt      string                 `json:"sentAt"`
}

type NotificationTemplate struct {
	Type    EventType `json:"type"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	// HighPriority templates are also delivered by SMS.
	HighPriority bool `json:"highPriority"`
}
