package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/guard"
	"wisdomwalk-chat-service/internal/mocks"
	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/notify"
	"wisdomwalk-chat-service/internal/presence"
)

type serviceFixture struct {
	chats       *mocks.ChatRepository
	messages    *mocks.MessageRepository
	blocks      *mocks.BlockRepository
	users       *mocks.UserDirectory
	broadcaster *mocks.Broadcaster
	publisher   *mocks.Publisher
	svc         *ChatService
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	f := &serviceFixture{
		chats:       new(mocks.ChatRepository),
		messages:    new(mocks.MessageRepository),
		blocks:      new(mocks.BlockRepository),
		users:       new(mocks.UserDirectory),
		broadcaster: new(mocks.Broadcaster),
		publisher:   new(mocks.Publisher),
	}
	log := zap.NewNop().Sugar()
	notifications := new(mocks.NotificationRepository)
	notifications.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	fanout := notify.NewFanout(notifications, presence.NewRegistry(), f.publisher, log)
	f.svc = NewChatService(f.chats, f.messages, f.blocks, guard.New(f.blocks), f.users, fanout, f.broadcaster, f.publisher, log)
	return f
}

func directChat(id int64, userIDs ...int64) models.Chat {
	chat := models.Chat{ID: id, Type: models.ChatTypeDirect, IsActive: true}
	for _, uid := range userIDs {
		chat.Participants = append(chat.Participants, models.ParticipantSetting{ChatID: id, UserID: uid})
	}
	return chat
}

func withLastMessage(chat models.Chat, messageID int64) models.Chat {
	chat.LastMessageID = &messageID
	return chat
}

func groupChat(id int64, adminID int64, memberIDs ...int64) models.Chat {
	chat := models.Chat{ID: id, Type: models.ChatTypeGroup, IsActive: true}
	chat.Participants = append(chat.Participants, models.ParticipantSetting{ChatID: id, UserID: adminID, IsAdmin: true})
	for _, uid := range memberIDs {
		chat.Participants = append(chat.Participants, models.ParticipantSetting{ChatID: id, UserID: uid})
	}
	return chat
}

func TestSendMessageBlockedDirect(t *testing.T) {
	f := newFixture(t)
	chat := directChat(10, 1, 2)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(chat, nil)
	f.blocks.On("AnyBlockBetween", mock.Anything, int64(1), []int64{2}).Return(true, nil)

	_, err := f.svc.SendMessage(context.Background(), 10, 1, models.NewMessageInput{Content: "hi"}, true)

	assert.ErrorIs(t, err, errs.ErrBlocked)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessagePersistsAndBroadcasts(t *testing.T) {
	f := newFixture(t)
	chat := directChat(10, 1, 2)
	created := models.Message{ID: 100, ChatID: 10, SenderID: 1, Content: "hi", MessageType: models.MessageTypeText, CreatedAt: time.Now()}

	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(chat, nil)
	f.blocks.On("AnyBlockBetween", mock.Anything, int64(1), []int64{2}).Return(false, nil)
	f.messages.On("Create", mock.Anything, int64(10), int64(1), mock.Anything).Return(created, nil)
	f.chats.On("RecordActivity", mock.Anything, int64(10), int64(100)).Return(nil)
	f.users.On("GetUser", mock.Anything, int64(1)).Return(models.UserProfile{ID: 1, FirstName: "Sarah"}, nil)
	f.broadcaster.On("Broadcast", int64(10), mock.MatchedBy(func(e models.ChatEvent) bool {
		return e.Event == models.EventNewMessage && e.Message != nil && e.Message.ID == 100
	})).Return()
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	msg, err := f.svc.SendMessage(context.Background(), 10, 1, models.NewMessageInput{Content: "hi"}, true)

	require.NoError(t, err)
	assert.Equal(t, int64(100), msg.ID)
	require.NotNil(t, msg.Sender)
	assert.Equal(t, "Sarah", msg.Sender.FirstName)
	f.broadcaster.AssertExpectations(t)
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	f := newFixture(t)
	chat := groupChat(20, 1, 2, 3)
	f.chats.On("GetChatForUser", mock.Anything, int64(20), int64(1)).Return(chat, nil)

	_, err := f.svc.SendMessage(context.Background(), 20, 1, models.NewMessageInput{}, false)

	assert.ErrorIs(t, err, errs.ErrValidation)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageRejectsCrossChatReply(t *testing.T) {
	f := newFixture(t)
	chat := groupChat(20, 1, 2)
	f.chats.On("GetChatForUser", mock.Anything, int64(20), int64(1)).Return(chat, nil)
	f.messages.On("Get", mock.Anything, int64(7)).Return(models.Message{ID: 7, ChatID: 99}, nil)

	_, err := f.svc.SendMessage(context.Background(), 20, 1, models.NewMessageInput{Content: "hi", ReplyToID: 7}, false)

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestSendMessageUnknownChatIsNotFound(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChatForUser", mock.Anything, int64(404), int64(1)).Return(models.Chat{}, errs.ErrNotFoundOrForbidden)

	_, err := f.svc.SendMessage(context.Background(), 404, 1, models.NewMessageInput{Content: "hi"}, false)

	assert.ErrorIs(t, err, errs.ErrNotFoundOrForbidden)
}

func TestEditMessageWithinWindow(t *testing.T) {
	f := newFixture(t)
	base := time.Now()
	f.svc.now = func() time.Time { return base.Add(10 * time.Minute) }

	msg := models.Message{ID: 100, ChatID: 10, SenderID: 1, Content: "hi", CreatedAt: base}
	edited := msg
	edited.Content = "hello"
	edited.IsEdited = true

	f.messages.On("Get", mock.Anything, int64(100)).Return(msg, nil).Once()
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(directChat(10, 1, 2), nil)
	f.messages.On("Edit", mock.Anything, int64(100), "hello", "").Return(nil)
	f.messages.On("Get", mock.Anything, int64(100)).Return(edited, nil).Once()
	f.users.On("GetUser", mock.Anything, int64(1)).Return(models.UserProfile{ID: 1}, nil)
	f.broadcaster.On("Broadcast", int64(10), mock.MatchedBy(func(e models.ChatEvent) bool {
		return e.Event == models.EventMessageEdited
	})).Return()

	out, err := f.svc.EditMessage(context.Background(), 100, 1, "hello", "")

	require.NoError(t, err)
	assert.True(t, out.IsEdited)
	f.broadcaster.AssertExpectations(t)
}

func TestEditMessageWindowExpired(t *testing.T) {
	f := newFixture(t)
	base := time.Now()
	f.svc.now = func() time.Time { return base.Add(16 * time.Minute) }

	msg := models.Message{ID: 100, ChatID: 10, SenderID: 1, CreatedAt: base}
	f.messages.On("Get", mock.Anything, int64(100)).Return(msg, nil)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(directChat(10, 1, 2), nil)

	_, err := f.svc.EditMessage(context.Background(), 100, 1, "hello", "")

	assert.ErrorIs(t, err, errs.ErrEditWindowExpired)
	f.messages.AssertNotCalled(t, "Edit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEditMessageSenderOnly(t *testing.T) {
	f := newFixture(t)
	msg := models.Message{ID: 100, ChatID: 10, SenderID: 1, CreatedAt: time.Now()}
	f.messages.On("Get", mock.Anything, int64(100)).Return(msg, nil)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(2)).Return(directChat(10, 1, 2), nil)

	_, err := f.svc.EditMessage(context.Background(), 100, 2, "hello", "")

	assert.ErrorIs(t, err, errs.ErrForbidden)
}

func TestDeleteMessageBroadcastsMarker(t *testing.T) {
	f := newFixture(t)
	msg := models.Message{ID: 100, ChatID: 10, SenderID: 1, CreatedAt: time.Now()}
	f.messages.On("Get", mock.Anything, int64(100)).Return(msg, nil)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(directChat(10, 1, 2), nil)
	f.messages.On("SoftDelete", mock.Anything, int64(100)).Return(nil)
	f.broadcaster.On("Broadcast", int64(10), mock.MatchedBy(func(e models.ChatEvent) bool {
		return e.Event == models.EventMessageDeleted && e.MessageID == 100
	})).Return()

	chatID, err := f.svc.DeleteMessage(context.Background(), 100, 1)

	require.NoError(t, err)
	assert.Equal(t, int64(10), chatID)
	f.broadcaster.AssertExpectations(t)
}

func TestMarkReadAdvancesWatermark(t *testing.T) {
	f := newFixture(t)
	chat := withLastMessage(directChat(10, 1, 2), 60)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(2)).Return(chat, nil)
	f.messages.On("MarkRead", mock.Anything, int64(10), int64(2), int64(55)).Return(nil)
	f.chats.On("AdvanceLastRead", mock.Anything, int64(10), int64(2), int64(55)).Return(nil)

	err := f.svc.MarkRead(context.Background(), 10, 2, 55)

	require.NoError(t, err)
	f.messages.AssertExpectations(t)
	f.chats.AssertExpectations(t)
}

func TestMarkReadClampsWatermarkToNewestMessage(t *testing.T) {
	f := newFixture(t)
	chat := withLastMessage(directChat(10, 1, 2), 60)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(2)).Return(chat, nil)
	f.messages.On("MarkRead", mock.Anything, int64(10), int64(2), int64(60)).Return(nil)
	f.chats.On("AdvanceLastRead", mock.Anything, int64(10), int64(2), int64(60)).Return(nil)

	err := f.svc.MarkRead(context.Background(), 10, 2, 1<<62)

	require.NoError(t, err)
	f.messages.AssertExpectations(t)
	f.chats.AssertExpectations(t)
}

func TestMarkReadWithoutMessagesIsNoop(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(2)).Return(directChat(10, 1, 2), nil)

	err := f.svc.MarkRead(context.Background(), 10, 2, 55)

	require.NoError(t, err)
	f.messages.AssertNotCalled(t, "MarkRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.chats.AssertNotCalled(t, "AdvanceLastRead", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleReactionBroadcastsDelta(t *testing.T) {
	f := newFixture(t)
	msg := models.Message{ID: 100, ChatID: 10, SenderID: 1}
	delta := models.ReactionDelta{UserID: 2, Emoji: "🙏", Added: true, Count: 1}

	f.messages.On("Get", mock.Anything, int64(100)).Return(msg, nil)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(2)).Return(directChat(10, 1, 2), nil)
	f.messages.On("ToggleReaction", mock.Anything, int64(100), int64(2), "🙏").Return(delta, nil)
	f.broadcaster.On("Broadcast", int64(10), mock.MatchedBy(func(e models.ChatEvent) bool {
		return e.Event == models.EventMessageReaction && e.Reaction != nil && e.Reaction.Added
	})).Return()

	out, err := f.svc.ToggleReaction(context.Background(), 100, 2, "🙏")

	require.NoError(t, err)
	assert.True(t, out.Added)
	f.broadcaster.AssertExpectations(t)
}

func TestForwardMessageKeepsOrigin(t *testing.T) {
	f := newFixture(t)
	ref := "Psalm 23:1"
	original := models.Message{
		ID:           100,
		ChatID:       10,
		SenderID:     2,
		Content:      "Psalm 23",
		MessageType:  models.MessageTypeScripture,
		ScriptureRef: &ref,
	}
	target := groupChat(20, 1, 2, 3)
	forwarded := models.Message{ID: 101, ChatID: 20, SenderID: 1, Content: "Psalm 23", MessageType: models.MessageTypeScripture}

	f.messages.On("Get", mock.Anything, int64(100)).Return(original, nil)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(directChat(10, 1, 2), nil)
	f.chats.On("GetChatForUser", mock.Anything, int64(20), int64(1)).Return(target, nil)
	f.messages.On("Create", mock.Anything, int64(20), int64(1), mock.MatchedBy(func(in models.NewMessageInput) bool {
		return in.ForwardedFromID == 100 && in.ScriptureRef == "Psalm 23:1"
	})).Return(forwarded, nil)
	f.chats.On("RecordActivity", mock.Anything, int64(20), int64(101)).Return(nil)
	f.users.On("GetUser", mock.Anything, int64(1)).Return(models.UserProfile{ID: 1}, nil)
	f.broadcaster.On("Broadcast", int64(20), mock.Anything).Return()
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	msg, err := f.svc.ForwardMessage(context.Background(), 100, 20, 1, false)

	require.NoError(t, err)
	assert.Equal(t, int64(101), msg.ID)
}

func TestForwardDeletedMessageRefused(t *testing.T) {
	f := newFixture(t)
	original := models.Message{ID: 100, ChatID: 10, SenderID: 2, IsDeleted: true}
	f.messages.On("Get", mock.Anything, int64(100)).Return(original, nil)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(directChat(10, 1, 2), nil)

	_, err := f.svc.ForwardMessage(context.Background(), 100, 20, 1, false)

	assert.ErrorIs(t, err, errs.ErrNotFoundOrForbidden)
}

func TestRemoveParticipantRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	chat := groupChat(20, 1, 2, 3)
	f.chats.On("GetChatForUser", mock.Anything, int64(20), int64(2)).Return(chat, nil)

	err := f.svc.RemoveGroupParticipant(context.Background(), 20, 2, 3)

	assert.ErrorIs(t, err, errs.ErrForbidden)
	f.chats.AssertNotCalled(t, "RemoveParticipant", mock.Anything, mock.Anything, mock.Anything)
}

func TestAddParticipantRejectsDirectChat(t *testing.T) {
	f := newFixture(t)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(directChat(10, 1, 2), nil)

	err := f.svc.AddGroupParticipant(context.Background(), 10, 1, 3)

	assert.ErrorIs(t, err, errs.ErrValidation)
}

func TestTypingSkipsSender(t *testing.T) {
	f := newFixture(t)
	chat := directChat(10, 1, 2)
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(chat, nil)
	f.users.On("GetUser", mock.Anything, int64(1)).Return(models.UserProfile{ID: 1, FirstName: "Sarah"}, nil)
	f.broadcaster.On("BroadcastExcept", int64(10), int64(1), mock.MatchedBy(func(e models.ChatEvent) bool {
		return e.Event == models.EventTyping && e.ActorID == 1
	})).Return()

	err := f.svc.Typing(context.Background(), 10, 1, true)

	require.NoError(t, err)
	f.broadcaster.AssertExpectations(t)
}

func TestListChatsResolvesDirectNames(t *testing.T) {
	f := newFixture(t)
	summaries := []models.ChatSummary{
		{ChatID: 10, Type: models.ChatTypeDirect, FriendID: 2},
		{ChatID: 20, Type: models.ChatTypeGroup, ChatName: "Prayer Circle"},
	}
	f.chats.On("ListForUser", mock.Anything, int64(1), 1, 50).Return(summaries, int64(2), nil)
	f.users.On("BulkUsers", mock.Anything, []int64{2}).Return(map[int64]models.UserProfile{
		2: {ID: 2, FirstName: "Grace", LastName: "Kim"},
	}, nil)

	out, total, err := f.svc.ListChats(context.Background(), 1, 1, 50)

	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Equal(t, "Grace Kim", out[0].ChatName)
	assert.Equal(t, "Prayer Circle", out[1].ChatName)
}

func TestChatsForUserCoversMessagelessChats(t *testing.T) {
	f := newFixture(t)
	// Chat 30 has no messages yet. The connect-time join list must still
	// include it, or its first message is never broadcast to the room.
	f.chats.On("ChatIDsForUser", mock.Anything, int64(1)).Return([]int64{10, 20, 30}, nil)

	ids, err := f.svc.ChatsForUser(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
	f.chats.AssertNotCalled(t, "ListForUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageLimitCountsRunes(t *testing.T) {
	f := newFixture(t)
	chat := groupChat(20, 1, 2, 3)
	content := strings.Repeat("é", 1500) // 3000 bytes, 1500 runes
	created := models.Message{ID: 100, ChatID: 20, SenderID: 1, Content: content, MessageType: models.MessageTypeText}

	f.chats.On("GetChatForUser", mock.Anything, int64(20), int64(1)).Return(chat, nil)
	f.messages.On("Create", mock.Anything, int64(20), int64(1), mock.Anything).Return(created, nil)
	f.chats.On("RecordActivity", mock.Anything, int64(20), int64(100)).Return(nil)
	f.users.On("GetUser", mock.Anything, int64(1)).Return(models.UserProfile{ID: 1}, nil)
	f.broadcaster.On("Broadcast", int64(20), mock.Anything).Return()
	f.publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err := f.svc.SendMessage(context.Background(), 20, 1, models.NewMessageInput{Content: content}, false)

	require.NoError(t, err)
}

func TestSendMessageRejectsOverlongContent(t *testing.T) {
	f := newFixture(t)
	chat := groupChat(20, 1, 2, 3)
	f.chats.On("GetChatForUser", mock.Anything, int64(20), int64(1)).Return(chat, nil)

	_, err := f.svc.SendMessage(context.Background(), 20, 1, models.NewMessageInput{Content: strings.Repeat("a", 2001)}, false)

	assert.ErrorIs(t, err, errs.ErrValidation)
	f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListMessagesMarksPageRead(t *testing.T) {
	f := newFixture(t)
	chat := withLastMessage(directChat(10, 1, 2), 99)
	msgs := []models.Message{
		{ID: 98, ChatID: 10, SenderID: 2},
		{ID: 99, ChatID: 10, SenderID: 2},
	}
	f.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(chat, nil)
	f.messages.On("ListForChat", mock.Anything, int64(10), 1, 50).Return(msgs, int64(2), nil)
	f.users.On("BulkUsers", mock.Anything, mock.Anything).Return(map[int64]models.UserProfile{}, nil)
	f.messages.On("MarkRead", mock.Anything, int64(10), int64(1), int64(99)).Return(nil)
	f.chats.On("AdvanceLastRead", mock.Anything, int64(10), int64(1), int64(99)).Return(nil)

	out, total, err := f.svc.ListMessages(context.Background(), 10, 1, 1, 50)

	require.NoError(t, err)
	assert.Len(t, out, 2)
	assert.Equal(t, int64(2), total)
	f.messages.AssertCalled(t, "MarkRead", mock.Anything, int64(10), int64(1), int64(99))
}
