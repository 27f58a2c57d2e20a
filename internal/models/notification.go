package models

import "time"

// Notification type tags. The payload shape per type is closed: message
// notifications carry a related chat id, nothing else does.
const NotificationTypeMessage = "message"

// Notification is the fan-out record handed to the notification subsystem.
type Notification struct {
	ID            int64     `db:"id" json:"id"`
	RecipientID   int64     `db:"recipient_id" json:"recipient_id"`
	SenderID      int64     `db:"sender_id" json:"sender_id"`
	Type          string    `db:"type" json:"type"`
	Title         string    `db:"title" json:"title"`
	Body          string    `db:"body" json:"body"`
	RelatedChatID int64     `db:"related_chat_id" json:"related_chat_id"`
	IsRead        bool      `db:"is_read" json:"is_read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}
