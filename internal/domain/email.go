package domain

import (
	"context"
	"time"
)

// Mailer defines the contract for sending emails (infrastructure port).
type Mailer interface {
	Send(ctx context.Context, to, subject, html, text string) error
}

// EmailTemplateRenderer renders email content from a named template with the given data.
type EmailTemplateRenderer interface {
	Render(templateName string, data any) (subject, htmlBody, textBody string, err error)
}

// NotificationKind names the decision a notification reports.
type NotificationKind string

const (
	NotificationRSVPConfirmed   NotificationKind = "rsvp_confirmed"
	NotificationCheckedIn       NotificationKind = "checked_in"
	NotificationWalkInCheckedIn NotificationKind = "walk_in_checked_in"
	NotificationRecheckedIn     NotificationKind = "rechecked_in"
)

// Notification is emitted after an admission or check-in decision commits.
// It carries everything the email templates need so consumers never read the stores.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	EventID       string           `json:"event_id"`
	EventTitle    string           `json:"event_title"`
	EventDate     time.Time        `json:"event_date"`
	EventLocation string           `json:"event_location,omitempty"`
	ReservationID string           `json:"reservation_id"`
	AttendeeID    string           `json:"attendee_id"`
	AttendeeName  string           `json:"attendee_name"`
	AttendeeEmail string           `json:"attendee_email"`
	OccurredAt    time.Time        `json:"occurred_at"`
}

// NotificationPublisher hands notifications to an asynchronous transport.
type NotificationPublisher interface {
	Publish(ctx context.Context, n *Notification) error
}

// NotificationHandler consumes a notification, typically by sending an email.
type NotificationHandler interface {
	Handle(ctx context.Context, n *Notification) error
}

// EmailService defines the contract for sending domain-level emails.
type EmailService interface {
	NotificationHandler
}
