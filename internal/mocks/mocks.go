package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"wisdomwalk-chat-service/internal/directory"
	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/rabbitmq"
	"wisdomwalk-chat-service/internal/repositories"
)

// ChatRepository is a testify mock of repositories.ChatRepository.
type ChatRepository struct {
	mock.Mock
}

func (m *ChatRepository) FindOrCreateDirect(ctx context.Context, userID, friendID int64) (models.Chat, bool, error) {
	args := m.Called(ctx, userID, friendID)
	return args.Get(0).(models.Chat), args.Bool(1), args.Error(2)
}

func (m *ChatRepository) CreateGroup(ctx context.Context, creatorID int64, name, description string, memberIDs []int64) (models.Chat, error) {
	args := m.Called(ctx, creatorID, name, description, memberIDs)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *ChatRepository) GetChatForUser(ctx context.Context, chatID, userID int64) (models.Chat, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Get(0).(models.Chat), args.Error(1)
}

func (m *ChatRepository) ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]models.ChatSummary, int64, error) {
	args := m.Called(ctx, userID, page, pageSize)
	var summaries []models.ChatSummary
	if args.Get(0) != nil {
		summaries = args.Get(0).([]models.ChatSummary)
	}
	return summaries, args.Get(1).(int64), args.Error(2)
}

func (m *ChatRepository) ChatIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	args := m.Called(ctx, userID)
	var ids []int64
	if args.Get(0) != nil {
		ids = args.Get(0).([]int64)
	}
	return ids, args.Error(1)
}

func (m *ChatRepository) RecordActivity(ctx context.Context, chatID, messageID int64) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *ChatRepository) SetMuted(ctx context.Context, chatID, userID int64, muted bool) error {
	args := m.Called(ctx, chatID, userID, muted)
	return args.Error(0)
}

func (m *ChatRepository) AdvanceLastRead(ctx context.Context, chatID, userID, messageID int64) error {
	args := m.Called(ctx, chatID, userID, messageID)
	return args.Error(0)
}

func (m *ChatRepository) Leave(ctx context.Context, chatID, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepository) AddParticipant(ctx context.Context, chatID, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepository) RemoveParticipant(ctx context.Context, chatID, userID int64) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

// MessageRepository is a testify mock of repositories.MessageRepository.
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Create(ctx context.Context, chatID, senderID int64, input models.NewMessageInput) (models.Message, error) {
	args := m.Called(ctx, chatID, senderID, input)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepository) Get(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(models.Message), args.Error(1)
}

func (m *MessageRepository) ListForChat(ctx context.Context, chatID int64, page, pageSize int) ([]models.Message, int64, error) {
	args := m.Called(ctx, chatID, page, pageSize)
	var msgs []models.Message
	if args.Get(0) != nil {
		msgs = args.Get(0).([]models.Message)
	}
	return msgs, args.Get(1).(int64), args.Error(2)
}

func (m *MessageRepository) MarkRead(ctx context.Context, chatID, userID, uptoMessageID int64) error {
	args := m.Called(ctx, chatID, userID, uptoMessageID)
	return args.Error(0)
}

func (m *MessageRepository) Edit(ctx context.Context, messageID int64, content, encryptedContent string) error {
	args := m.Called(ctx, messageID, content, encryptedContent)
	return args.Error(0)
}

func (m *MessageRepository) SoftDelete(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageRepository) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (models.ReactionDelta, error) {
	args := m.Called(ctx, messageID, userID, emoji)
	return args.Get(0).(models.ReactionDelta), args.Error(1)
}

func (m *MessageRepository) Pin(ctx context.Context, chatID, messageID int64) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *MessageRepository) Unpin(ctx context.Context, chatID, messageID int64) error {
	args := m.Called(ctx, chatID, messageID)
	return args.Error(0)
}

func (m *MessageRepository) Search(ctx context.Context, chatID int64, query string, page, pageSize int) ([]models.Message, int64, error) {
	args := m.Called(ctx, chatID, query, page, pageSize)
	var msgs []models.Message
	if args.Get(0) != nil {
		msgs = args.Get(0).([]models.Message)
	}
	return msgs, args.Get(1).(int64), args.Error(2)
}

// NotificationRepository is a testify mock of repositories.NotificationRepository.
type NotificationRepository struct {
	mock.Mock
}

func (m *NotificationRepository) CreateBatch(ctx context.Context, notifications []models.Notification) error {
	args := m.Called(ctx, notifications)
	return args.Error(0)
}

// BlockRepository is a testify mock of repositories.BlockRepository.
type BlockRepository struct {
	mock.Mock
}

func (m *BlockRepository) Block(ctx context.Context, userID, blockedUserID int64) error {
	args := m.Called(ctx, userID, blockedUserID)
	return args.Error(0)
}

func (m *BlockRepository) Unblock(ctx context.Context, userID, blockedUserID int64) error {
	args := m.Called(ctx, userID, blockedUserID)
	return args.Error(0)
}

func (m *BlockRepository) AnyBlockBetween(ctx context.Context, userID int64, otherIDs []int64) (bool, error) {
	args := m.Called(ctx, userID, otherIDs)
	return args.Bool(0), args.Error(1)
}

// UserDirectory is a testify mock of directory.UserDirectory.
type UserDirectory struct {
	mock.Mock
}

func (m *UserDirectory) GetUser(ctx context.Context, userID int64) (models.UserProfile, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(models.UserProfile), args.Error(1)
}

func (m *UserDirectory) BulkUsers(ctx context.Context, ids []int64) (map[int64]models.UserProfile, error) {
	args := m.Called(ctx, ids)
	var profiles map[int64]models.UserProfile
	if args.Get(0) != nil {
		profiles = args.Get(0).(map[int64]models.UserProfile)
	}
	return profiles, args.Error(1)
}

// Publisher is a testify mock of rabbitmq.Publisher.
type Publisher struct {
	mock.Mock
}

func (m *Publisher) Publish(ctx context.Context, routingKey string, event any) error {
	args := m.Called(ctx, routingKey, event)
	return args.Error(0)
}

func (m *Publisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// Broadcaster is a testify mock of service.Broadcaster.
type Broadcaster struct {
	mock.Mock
}

func (m *Broadcaster) Broadcast(chatID int64, event models.ChatEvent) {
	m.Called(chatID, event)
}

func (m *Broadcaster) BroadcastExcept(chatID, exceptUserID int64, event models.ChatEvent) {
	m.Called(chatID, exceptUserID, event)
}

var (
	_ repositories.ChatRepository         = (*ChatRepository)(nil)
	_ repositories.MessageRepository      = (*MessageRepository)(nil)
	_ repositories.NotificationRepository = (*NotificationRepository)(nil)
	_ repositories.BlockRepository        = (*BlockRepository)(nil)
	_ directory.UserDirectory             = (*UserDirectory)(nil)
	_ rabbitmq.Publisher                  = (*Publisher)(nil)
)
