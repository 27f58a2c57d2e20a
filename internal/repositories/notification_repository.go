package repositories

import (
	"context"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"

	"wisdomwalk-chat-service/internal/models"
)

// NotificationRepository persists the fan-out records consumed by the
// notification subsystem.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, notifications []models.Notification) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// CreateBatch inserts all rows in one statement.
func (r *NotificationRepo) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	values := make([]string, 0, len(notifications))
	args := make([]interface{}, 0, len(notifications)*6)
	for i, n := range notifications {
		base := i * 6
		values = append(values, placeholderRow(base, 6))
		args = append(args, n.RecipientID, n.SenderID, n.Type, n.Title, n.Body, n.RelatedChatID)
	}

	query := `INSERT INTO notifications (recipient_id, sender_id, type, title, body, related_chat_id) VALUES ` +
		strings.Join(values, ", ")
	_, err := r.db.ExecContext(ctx, query, args...)
	return err
}

func placeholderRow(base, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "$" + strconv.Itoa(base+i+1)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
