package service

import (
	"context"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/directory"
	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/guard"
	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/notify"
	"wisdomwalk-chat-service/internal/rabbitmq"
	"wisdomwalk-chat-service/internal/repositories"
)

// editWindow is how long a sender may edit their own message.
const editWindow = 15 * time.Minute

const maxContentLength = 2000

// Broadcaster delivers resolved events to every connection subscribed to a
// chat room. The websocket hub implements it; the REST path shares it so
// realtime subscribers see REST-originated mutations too.
type Broadcaster interface {
	Broadcast(chatID int64, event models.ChatEvent)
	BroadcastExcept(chatID, exceptUserID int64, event models.ChatEvent)
}

// ChatService is the single write path for chats and messages. Both the
// realtime gateway and the REST handlers delegate here, so validation,
// guarding, persistence, fan-out and broadcast stay identical on both paths.
type ChatService struct {
	chats       repositories.ChatRepository
	messages    repositories.MessageRepository
	blocks      repositories.BlockRepository
	guard       *guard.Guard
	users       directory.UserDirectory
	fanout      *notify.Fanout
	broadcaster Broadcaster
	publisher   rabbitmq.Publisher
	log         *zap.SugaredLogger

	now func() time.Time
}

// NewChatService wires the service.
func NewChatService(
	chats repositories.ChatRepository,
	messages repositories.MessageRepository,
	blocks repositories.BlockRepository,
	g *guard.Guard,
	users directory.UserDirectory,
	fanout *notify.Fanout,
	broadcaster Broadcaster,
	publisher rabbitmq.Publisher,
	log *zap.SugaredLogger,
) *ChatService {
	return &ChatService{
		chats:       chats,
		messages:    messages,
		blocks:      blocks,
		guard:       g,
		users:       users,
		fanout:      fanout,
		broadcaster: broadcaster,
		publisher:   publisher,
		log:         log,
		now:         time.Now,
	}
}

// CreateDirectChat finds or creates the unique direct chat between the two
// users. Safe under concurrent calls from both sides.
func (s *ChatService) CreateDirectChat(ctx context.Context, userID, friendID int64) (models.Chat, bool, error) {
	chat, created, err := s.chats.FindOrCreateDirect(ctx, userID, friendID)
	if err != nil {
		return models.Chat{}, false, storeUnlessTagged(err)
	}
	return chat, created, nil
}

// CreateGroupChat creates a group with the caller as admin.
func (s *ChatService) CreateGroupChat(ctx context.Context, userID int64, name, description string, memberIDs []int64) (models.Chat, error) {
	chat, err := s.chats.CreateGroup(ctx, userID, name, description, memberIDs)
	if err != nil {
		return models.Chat{}, storeUnlessTagged(err)
	}
	return chat, nil
}

// ListChats returns the caller's chats with unread counts, annotating direct
// chats with the other participant's display identity.
func (s *ChatService) ListChats(ctx context.Context, userID int64, page, pageSize int) ([]models.ChatSummary, int64, error) {
	summaries, total, err := s.chats.ListForUser(ctx, userID, page, pageSize)
	if err != nil {
		return nil, 0, errs.Store(err)
	}

	friendIDs := make([]int64, 0, len(summaries))
	for _, summary := range summaries {
		if summary.Type == models.ChatTypeDirect && summary.FriendID != 0 {
			friendIDs = append(friendIDs, summary.FriendID)
		}
	}

	profiles, err := s.users.BulkUsers(ctx, friendIDs)
	if err != nil {
		// Display identity is decoration; a directory outage must not hide
		// the chat list.
		s.log.Warnw("user directory lookup failed", "error", err)
		profiles = map[int64]models.UserProfile{}
	}

	for i := range summaries {
		if summaries[i].Type != models.ChatTypeDirect {
			continue
		}
		if profile, ok := profiles[summaries[i].FriendID]; ok {
			summaries[i].ChatName = profile.DisplayName()
			summaries[i].ChatImage = profile.ProfilePicture
		}
	}
	return summaries, total, nil
}

// ListMessages returns a page of a chat's messages and, as a side effect,
// marks the page read for the caller (the upstream list semantics).
func (s *ChatService) ListMessages(ctx context.Context, chatID, userID int64, page, pageSize int) ([]models.Message, int64, error) {
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		return nil, 0, storeUnlessTagged(err)
	}
	if err := s.guard.CanAct(&chat, userID); err != nil {
		return nil, 0, err
	}

	msgs, total, err := s.messages.ListForChat(ctx, chatID, page, pageSize)
	if err != nil {
		return nil, 0, errs.Store(err)
	}
	s.resolveSenders(ctx, msgs)

	if len(msgs) > 0 {
		newest := msgs[len(msgs)-1].ID
		if err := s.MarkRead(ctx, chatID, userID, newest); err != nil {
			s.log.Warnw("mark read on list failed", "chat_id", chatID, "user_id", userID, "error", err)
		}
	}
	return msgs, total, nil
}

// SendMessage validates, persists and broadcasts a new message. realtime
// marks whether the sender holds a live connection, which narrows the
// notification fan-out to offline recipients.
func (s *ChatService) SendMessage(ctx context.Context, chatID, userID int64, input models.NewMessageInput, realtime bool) (models.Message, error) {
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		return models.Message{}, storeUnlessTagged(err)
	}
	if err := s.guard.CanSend(ctx, &chat, userID); err != nil {
		return models.Message{}, err
	}
	if err := s.validateInput(ctx, chatID, &input); err != nil {
		return models.Message{}, err
	}

	msg, err := s.messages.Create(ctx, chatID, userID, input)
	if err != nil {
		return models.Message{}, errs.Store(err)
	}
	if err := s.chats.RecordActivity(ctx, chatID, msg.ID); err != nil {
		return models.Message{}, errs.Store(err)
	}

	s.resolveMessage(ctx, &msg)

	sender := models.UserProfile{ID: userID}
	if msg.Sender != nil {
		sender = *msg.Sender
	}
	s.fanout.MessageSent(ctx, &chat, msg, sender, realtime)

	s.broadcaster.Broadcast(chatID, models.ChatEvent{
		Event:   models.EventNewMessage,
		ChatID:  chatID,
		Message: &msg,
	})
	s.publishFeed(ctx, "chats.message.created", chatID, msg.ID)
	return msg, nil
}

// EditMessage lets the sender rewrite their message within the edit window.
func (s *ChatService) EditMessage(ctx context.Context, messageID, userID int64, content, encryptedContent string) (models.Message, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, storeUnlessTagged(err)
	}
	if _, err := s.chats.GetChatForUser(ctx, msg.ChatID, userID); err != nil {
		return models.Message{}, storeUnlessTagged(err)
	}
	if msg.SenderID != userID {
		return models.Message{}, errs.ErrForbidden
	}
	if s.now().Sub(msg.CreatedAt) > editWindow {
		return models.Message{}, errs.ErrEditWindowExpired
	}
	if content == "" && encryptedContent == "" {
		return models.Message{}, errs.Validationf("content or encrypted content is required")
	}
	if utf8.RuneCountInString(content) > maxContentLength {
		return models.Message{}, errs.Validationf("content exceeds %d characters", maxContentLength)
	}

	if err := s.messages.Edit(ctx, messageID, content, encryptedContent); err != nil {
		return models.Message{}, storeUnlessTagged(err)
	}

	updated, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, storeUnlessTagged(err)
	}
	s.resolveMessage(ctx, &updated)

	s.broadcaster.Broadcast(updated.ChatID, models.ChatEvent{
		Event:   models.EventMessageEdited,
		ChatID:  updated.ChatID,
		Message: &updated,
	})
	return updated, nil
}

// DeleteMessage soft-deletes the sender's own message and announces the
// deletion marker to the room.
func (s *ChatService) DeleteMessage(ctx context.Context, messageID, userID int64) (int64, error) {
	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return 0, storeUnlessTagged(err)
	}
	if _, err := s.chats.GetChatForUser(ctx, msg.ChatID, userID); err != nil {
		return 0, storeUnlessTagged(err)
	}
	if msg.SenderID != userID {
		return 0, errs.ErrForbidden
	}

	if err := s.messages.SoftDelete(ctx, messageID); err != nil {
		return 0, storeUnlessTagged(err)
	}

	s.broadcaster.Broadcast(msg.ChatID, models.ChatEvent{
		Event:     models.EventMessageDeleted,
		ChatID:    msg.ChatID,
		MessageID: messageID,
	})
	return msg.ChatID, nil
}

// ToggleReaction adds or removes the caller's (emoji) reaction and
// broadcasts the resulting set.
func (s *ChatService) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (models.ReactionDelta, error) {
	if emoji == "" {
		return models.ReactionDelta{}, errs.Validationf("emoji is required")
	}

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.ReactionDelta{}, storeUnlessTagged(err)
	}
	chat, err := s.chats.GetChatForUser(ctx, msg.ChatID, userID)
	if err != nil {
		return models.ReactionDelta{}, storeUnlessTagged(err)
	}
	if err := s.guard.CanAct(&chat, userID); err != nil {
		return models.ReactionDelta{}, err
	}

	delta, err := s.messages.ToggleReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return models.ReactionDelta{}, errs.Store(err)
	}

	s.broadcaster.Broadcast(msg.ChatID, models.ChatEvent{
		Event:     models.EventMessageReaction,
		ChatID:    msg.ChatID,
		MessageID: messageID,
		ActorID:   userID,
		Reaction:  &delta,
	})
	return delta, nil
}

// PinMessage pins a message in a chat the caller participates in.
func (s *ChatService) PinMessage(ctx context.Context, chatID, messageID, userID int64) error {
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		return storeUnlessTagged(err)
	}
	if err := s.guard.CanAct(&chat, userID); err != nil {
		return err
	}

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return storeUnlessTagged(err)
	}
	if msg.ChatID != chatID {
		return errs.ErrNotFoundOrForbidden
	}

	if err := s.messages.Pin(ctx, chatID, messageID); err != nil {
		return storeUnlessTagged(err)
	}

	s.broadcaster.Broadcast(chatID, models.ChatEvent{
		Event:     models.EventMessagePinned,
		ChatID:    chatID,
		MessageID: messageID,
		ActorID:   userID,
	})
	return nil
}

// UnpinMessage removes a pin.
func (s *ChatService) UnpinMessage(ctx context.Context, chatID, messageID, userID int64) error {
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		return storeUnlessTagged(err)
	}
	if err := s.guard.CanAct(&chat, userID); err != nil {
		return err
	}

	msg, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return storeUnlessTagged(err)
	}
	if msg.ChatID != chatID {
		return errs.ErrNotFoundOrForbidden
	}

	if err := s.messages.Unpin(ctx, chatID, messageID); err != nil {
		return storeUnlessTagged(err)
	}

	s.broadcaster.Broadcast(chatID, models.ChatEvent{
		Event:     models.EventMessageUnpinned,
		ChatID:    chatID,
		MessageID: messageID,
		ActorID:   userID,
	})
	return nil
}

// MarkRead appends read receipts up to the watermark and advances the
// caller's last-read pointer. Idempotent; stale watermarks are no-ops and
// watermarks beyond the chat's newest message are clamped to it.
func (s *ChatService) MarkRead(ctx context.Context, chatID, userID, uptoMessageID int64) error {
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		return storeUnlessTagged(err)
	}
	if chat.LastMessageID == nil {
		return nil
	}
	if uptoMessageID > *chat.LastMessageID {
		uptoMessageID = *chat.LastMessageID
	}

	if err := s.messages.MarkRead(ctx, chatID, userID, uptoMessageID); err != nil {
		return errs.Store(err)
	}
	if err := s.chats.AdvanceLastRead(ctx, chatID, userID, uptoMessageID); err != nil {
		return errs.Store(err)
	}
	return nil
}

// ForwardMessage copies an existing message into a target chat the caller
// participates in, keeping a forwarded-from link.
func (s *ChatService) ForwardMessage(ctx context.Context, messageID, targetChatID, userID int64, realtime bool) (models.Message, error) {
	original, err := s.messages.Get(ctx, messageID)
	if err != nil {
		return models.Message{}, storeUnlessTagged(err)
	}
	if _, err := s.chats.GetChatForUser(ctx, original.ChatID, userID); err != nil {
		return models.Message{}, storeUnlessTagged(err)
	}
	if original.IsDeleted {
		return models.Message{}, errs.ErrNotFoundOrForbidden
	}

	input := models.NewMessageInput{
		Content:         original.Content,
		MessageType:     original.MessageType,
		ForwardedFromID: messageID,
		Attachments:     original.Attachments,
	}
	if original.EncryptedContent != nil {
		input.EncryptedContent = *original.EncryptedContent
	}
	if original.ScriptureVerse != nil {
		input.ScriptureVerse = *original.ScriptureVerse
	}
	if original.ScriptureRef != nil {
		input.ScriptureRef = *original.ScriptureRef
	}
	return s.SendMessage(ctx, targetChatID, userID, input, realtime)
}

// SearchMessages searches non-deleted messages in a chat the caller
// participates in.
func (s *ChatService) SearchMessages(ctx context.Context, chatID, userID int64, query string, page, pageSize int) ([]models.Message, int64, error) {
	if query == "" {
		return nil, 0, errs.Validationf("query is required")
	}
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		return nil, 0, storeUnlessTagged(err)
	}
	if err := s.guard.CanAct(&chat, userID); err != nil {
		return nil, 0, err
	}

	msgs, total, err := s.messages.Search(ctx, chatID, query, page, pageSize)
	if err != nil {
		return nil, 0, errs.Store(err)
	}
	s.resolveSenders(ctx, msgs)
	return msgs, total, nil
}

// SetMuted flips the caller's own mute flag for the chat.
func (s *ChatService) SetMuted(ctx context.Context, chatID, userID int64, muted bool) error {
	if _, err := s.chats.GetChatForUser(ctx, chatID, userID); err != nil {
		return storeUnlessTagged(err)
	}
	return storeUnlessTagged(s.chats.SetMuted(ctx, chatID, userID, muted))
}

// LeaveChat records the caller's departure; data is retained.
func (s *ChatService) LeaveChat(ctx context.Context, chatID, userID int64) error {
	if _, err := s.chats.GetChatForUser(ctx, chatID, userID); err != nil {
		return storeUnlessTagged(err)
	}
	return storeUnlessTagged(s.chats.Leave(ctx, chatID, userID))
}

// AddGroupParticipant adds a member to a group chat; admin-gated.
func (s *ChatService) AddGroupParticipant(ctx context.Context, chatID, actorID, userID int64) error {
	if err := s.requireGroupAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	return storeUnlessTagged(s.chats.AddParticipant(ctx, chatID, userID))
}

// RemoveGroupParticipant removes a member from a group chat; admin-gated.
// Removing an admin clears their admin bit with the membership.
func (s *ChatService) RemoveGroupParticipant(ctx context.Context, chatID, actorID, userID int64) error {
	if err := s.requireGroupAdmin(ctx, chatID, actorID); err != nil {
		return err
	}
	return storeUnlessTagged(s.chats.RemoveParticipant(ctx, chatID, userID))
}

// BlockUser records a block from the caller toward another user.
func (s *ChatService) BlockUser(ctx context.Context, userID, blockedUserID int64) error {
	return storeUnlessTagged(s.blocks.Block(ctx, userID, blockedUserID))
}

// UnblockUser removes a block.
func (s *ChatService) UnblockUser(ctx context.Context, userID, blockedUserID int64) error {
	return storeUnlessTagged(s.blocks.Unblock(ctx, userID, blockedUserID))
}

// Typing relays a transient typing indicator to everyone else in the room.
// Nothing is persisted.
func (s *ChatService) Typing(ctx context.Context, chatID, userID int64, typing bool) error {
	chat, err := s.chats.GetChatForUser(ctx, chatID, userID)
	if err != nil {
		return storeUnlessTagged(err)
	}
	if err := s.guard.CanAct(&chat, userID); err != nil {
		return err
	}

	event := models.EventTyping
	if !typing {
		event = models.EventStopTyping
	}

	var actor *models.UserProfile
	if profile, err := s.users.GetUser(ctx, userID); err == nil {
		actor = &profile
	}

	s.broadcaster.BroadcastExcept(chatID, userID, models.ChatEvent{
		Event:   event,
		ChatID:  chatID,
		ActorID: userID,
		Actor:   actor,
	})
	return nil
}

// ChatsForUser lists every chat id the user actively participates in,
// including chats that have no messages yet; the gateway uses it for
// auto-join on connect so the first broadcast in a fresh chat is delivered.
func (s *ChatService) ChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	ids, err := s.chats.ChatIDsForUser(ctx, userID)
	if err != nil {
		return nil, errs.Store(err)
	}
	return ids, nil
}

// VerifyMembership reports whether the user may join the chat's room.
func (s *ChatService) VerifyMembership(ctx context.Context, chatID, userID int64) error {
	_, err := s.chats.GetChatForUser(ctx, chatID, userID)
	return storeUnlessTagged(err)
}

func (s *ChatService) requireGroupAdmin(ctx context.Context, chatID, actorID int64) error {
	chat, err := s.chats.GetChatForUser(ctx, chatID, actorID)
	if err != nil {
		return storeUnlessTagged(err)
	}
	if chat.Type != models.ChatTypeGroup {
		return errs.Validationf("not a group chat")
	}
	setting, ok := chat.Setting(actorID)
	if !ok || !setting.IsAdmin || setting.LeftAt != nil {
		return errs.ErrForbidden
	}
	return nil
}

func (s *ChatService) validateInput(ctx context.Context, chatID int64, input *models.NewMessageInput) error {
	if input.MessageType == "" {
		input.MessageType = models.MessageTypeText
	}
	if !models.ValidMessageType(input.MessageType) {
		return errs.Validationf("unknown message type %q", input.MessageType)
	}
	if input.Content == "" && input.EncryptedContent == "" {
		return errs.Validationf("content or encrypted content is required")
	}
	if utf8.RuneCountInString(input.Content) > maxContentLength {
		return errs.Validationf("content exceeds %d characters", maxContentLength)
	}

	if input.ReplyToID != 0 {
		target, err := s.messages.Get(ctx, input.ReplyToID)
		if err != nil {
			return errs.Validationf("reply target not found")
		}
		if target.ChatID != chatID {
			return errs.Validationf("reply target belongs to a different chat")
		}
	}
	return nil
}

// resolveMessage attaches the sender's display identity and the reply
// target, so broadcast events carry the full entity.
func (s *ChatService) resolveMessage(ctx context.Context, msg *models.Message) {
	if profile, err := s.users.GetUser(ctx, msg.SenderID); err == nil {
		msg.Sender = &profile
	} else {
		s.log.Warnw("sender lookup failed", "user_id", msg.SenderID, "error", err)
	}

	if msg.ReplyToID != nil {
		if target, err := s.messages.Get(ctx, *msg.ReplyToID); err == nil {
			if profile, err := s.users.GetUser(ctx, target.SenderID); err == nil {
				target.Sender = &profile
			}
			msg.ReplyTo = &target
		}
	}
}

// resolveSenders batch-resolves display identities for a message page.
func (s *ChatService) resolveSenders(ctx context.Context, msgs []models.Message) {
	if len(msgs) == 0 {
		return
	}

	seen := map[int64]struct{}{}
	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			ids = append(ids, m.SenderID)
		}
	}

	profiles, err := s.users.BulkUsers(ctx, ids)
	if err != nil {
		s.log.Warnw("bulk sender lookup failed", "error", err)
		return
	}
	for i := range msgs {
		if profile, ok := profiles[msgs[i].SenderID]; ok {
			msgs[i].Sender = &profile
		}
	}
}

func (s *ChatService) publishFeed(ctx context.Context, routingKey string, chatID, messageID int64) {
	if err := s.publisher.Publish(ctx, routingKey, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}); err != nil {
		s.log.Warnw("event feed publish failed", "routing_key", routingKey, "error", err)
	}
}

// storeUnlessTagged wraps untyped persistence errors as transient while
// passing taxonomy errors through unchanged.
func storeUnlessTagged(err error) error {
	if err == nil {
		return nil
	}
	if errs.HTTPStatus(err) != 500 {
		return err
	}
	return errs.Store(err)
}
