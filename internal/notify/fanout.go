package notify

import (
	"context"

	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/observability"
	"wisdomwalk-chat-service/internal/presence"
	"wisdomwalk-chat-service/internal/rabbitmq"
	"wisdomwalk-chat-service/internal/repositories"
)

// Fanout decides which recipients of a freshly persisted message get a
// notification record. Everything here is best-effort: the message is
// already committed, so failures are logged and never surfaced.
type Fanout struct {
	notifications repositories.NotificationRepository
	registry      *presence.Registry
	publisher     rabbitmq.Publisher
	log           *zap.SugaredLogger
}

// NewFanout constructs a Fanout.
func NewFanout(notifications repositories.NotificationRepository, registry *presence.Registry, publisher rabbitmq.Publisher, log *zap.SugaredLogger) *Fanout {
	return &Fanout{
		notifications: notifications,
		registry:      registry,
		publisher:     publisher,
		log:           log,
	}
}

// MessageSent enqueues one notification per eligible recipient. A recipient
// is eligible when their per-chat mute flag is off and, on the realtime path,
// they hold no live connection. The non-realtime path notifies all unmuted
// recipients, since the sender cannot know who is watching.
func (f *Fanout) MessageSent(ctx context.Context, chat *models.Chat, msg models.Message, sender models.UserProfile, realtime bool) {
	var notifications []models.Notification
	for _, participantID := range chat.OtherParticipantIDs(msg.SenderID) {
		if setting, ok := chat.Setting(participantID); ok && setting.IsMuted {
			continue
		}
		if realtime && f.registry.IsOnline(participantID) {
			continue
		}
		notifications = append(notifications, models.Notification{
			RecipientID:   participantID,
			SenderID:      msg.SenderID,
			Type:          models.NotificationTypeMessage,
			Title:         "New message",
			Body:          sender.FirstName + " sent you a message",
			RelatedChatID: chat.ID,
		})
	}

	if len(notifications) == 0 {
		return
	}

	if err := f.notifications.CreateBatch(ctx, notifications); err != nil {
		f.log.Warnw("notification fan-out failed", "chat_id", chat.ID, "message_id", msg.ID, "error", err)
		return
	}
	observability.AddNotificationsFanned(len(notifications))

	if err := f.publisher.Publish(ctx, "notifications.message", map[string]any{
		"chat_id":    chat.ID,
		"message_id": msg.ID,
		"sender_id":  msg.SenderID,
		"recipients": len(notifications),
	}); err != nil {
		observability.IncAMQPPublishError()
	}
}
