package external

import (
	"context"
	"fmt"
	"time"
)

// Channel is the delivery medium of a notification.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// NotificationRequest is one templated message to one recipient.
type NotificationRequest struct {
	TemplateID      string
	Channel         Channel
	Recipient       string
	Personalisation map[string]string
	// Reference is echoed back by the provider and used for correlation.
	Reference string
}

// DeliveryReceipt is the provider's acknowledgement of an accepted message.
type DeliveryReceipt struct {
	ID        string
	Reference string
	SentAt    time.Time
}

// NotificationProvider sends templated notifications.
type NotificationProvider interface {
	Send(ctx context.Context, req NotificationRequest) (*DeliveryReceipt, error)
}

// DeliveryError is returned by NotificationProvider implementations when the
// provider rejected the message or could not be reached. StatusCode is 0 when
// no response was received.
type DeliveryError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("notification delivery failed: %s", e.Message)
	}
	return fmt.Sprintf("notification delivery failed (status %d): %s", e.StatusCode, e.Message)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// DeliveryStatus exposes the HTTP status for retry classification.
func (e *DeliveryError) DeliveryStatus() int { return e.StatusCode }
