package enums

import "fmt"

// NotificationType labels the payload carried by a notification.
type NotificationType string

const (
	NotificationOrderPlaced   NotificationType = "order_placed"
	NotificationOrderStatus   NotificationType = "order_status_changed"
	NotificationOrderRejected NotificationType = "order_rejected"
)

var validNotificationTypes = []NotificationType{
	NotificationOrderPlaced,
	NotificationOrderStatus,
	NotificationOrderRejected,
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into a NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
