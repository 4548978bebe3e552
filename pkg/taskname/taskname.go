package taskname

const (
	// Notification tasks
	NotificationCreate = "notification:create"

	// Email tasks
	EmailSend = "email:send"
)
