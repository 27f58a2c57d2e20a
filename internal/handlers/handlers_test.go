package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisdomwalk-chat-service/internal/auth"
	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/guard"
	"wisdomwalk-chat-service/internal/mocks"
	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/notify"
	"wisdomwalk-chat-service/internal/presence"
	"wisdomwalk-chat-service/internal/service"
)

type testEnv struct {
	chats    *mocks.ChatRepository
	messages *mocks.MessageRepository
	blocks   *mocks.BlockRepository
	users    *mocks.UserDirectory
	router   *gin.Engine
}

func setup(t *testing.T, userID int64) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		chats:    new(mocks.ChatRepository),
		messages: new(mocks.MessageRepository),
		blocks:   new(mocks.BlockRepository),
		users:    new(mocks.UserDirectory),
	}

	log := zap.NewNop().Sugar()
	notifications := new(mocks.NotificationRepository)
	notifications.On("CreateBatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	publisher := new(mocks.Publisher)
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	broadcaster := new(mocks.Broadcaster)
	broadcaster.On("Broadcast", mock.Anything, mock.Anything).Return().Maybe()
	broadcaster.On("BroadcastExcept", mock.Anything, mock.Anything, mock.Anything).Return().Maybe()

	fanout := notify.NewFanout(notifications, presence.NewRegistry(), publisher, log)
	svc := service.NewChatService(env.chats, env.messages, env.blocks, guard.New(env.blocks), env.users, fanout, broadcaster, publisher, log)

	env.router = gin.New()
	api := env.router.Group("/api")
	api.Use(func(c *gin.Context) {
		c.Set(auth.ContextUserKey, userID)
		c.Next()
	})
	RegisterRoutes(api, NewChatHandler(svc, log), NewMessageHandler(svc, log))
	return env
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func participant(chatID, userID int64) models.ParticipantSetting {
	return models.ParticipantSetting{ChatID: chatID, UserID: userID}
}

func TestCreateDirectChatCreated(t *testing.T) {
	env := setup(t, 1)
	chat := models.Chat{ID: 10, Type: models.ChatTypeDirect, Participants: []models.ParticipantSetting{participant(10, 1), participant(10, 2)}}
	env.chats.On("FindOrCreateDirect", mock.Anything, int64(1), int64(2)).Return(chat, true, nil)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/direct", gin.H{"friend_id": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"created":true`)
}

func TestCreateDirectChatExisting(t *testing.T) {
	env := setup(t, 1)
	chat := models.Chat{ID: 10, Type: models.ChatTypeDirect}
	env.chats.On("FindOrCreateDirect", mock.Anything, int64(1), int64(2)).Return(chat, false, nil)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/direct", gin.H{"friend_id": 2})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateDirectChatWithSelf(t *testing.T) {
	env := setup(t, 1)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/direct", gin.H{"friend_id": 1})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env.chats.AssertNotCalled(t, "FindOrCreateDirect", mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMessageBlockedReturns403(t *testing.T) {
	env := setup(t, 1)
	chat := models.Chat{ID: 10, Type: models.ChatTypeDirect, Participants: []models.ParticipantSetting{participant(10, 1), participant(10, 2)}}
	env.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(chat, nil)
	env.blocks.On("AnyBlockBetween", mock.Anything, int64(1), []int64{2}).Return(true, nil)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/10/messages", gin.H{"content": "hi"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSendMessageUnknownChatReturns404(t *testing.T) {
	env := setup(t, 1)
	env.chats.On("GetChatForUser", mock.Anything, int64(404), int64(1)).Return(models.Chat{}, errs.ErrNotFoundOrForbidden)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/404/messages", gin.H{"content": "hi"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSendMessageCreated(t *testing.T) {
	env := setup(t, 1)
	chat := models.Chat{ID: 10, Type: models.ChatTypeGroup, Participants: []models.ParticipantSetting{participant(10, 1), participant(10, 2)}}
	created := models.Message{ID: 100, ChatID: 10, SenderID: 1, Content: "hi", MessageType: models.MessageTypeText, CreatedAt: time.Now()}

	env.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(chat, nil)
	env.messages.On("Create", mock.Anything, int64(10), int64(1), mock.Anything).Return(created, nil)
	env.chats.On("RecordActivity", mock.Anything, int64(10), int64(100)).Return(nil)
	env.users.On("GetUser", mock.Anything, int64(1)).Return(models.UserProfile{ID: 1}, nil)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/10/messages", gin.H{"content": "hi"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"id":100`)
}

func TestEditMessageExpiredReturns403(t *testing.T) {
	env := setup(t, 1)
	old := models.Message{ID: 100, ChatID: 10, SenderID: 1, CreatedAt: time.Now().Add(-time.Hour)}
	env.messages.On("Get", mock.Anything, int64(100)).Return(old, nil)
	env.chats.On("GetChatForUser", mock.Anything, int64(10), int64(1)).Return(models.Chat{ID: 10, Type: models.ChatTypeDirect, Participants: []models.ParticipantSetting{participant(10, 1)}}, nil)

	w := doJSON(t, env.router, http.MethodPut, "/api/messages/100", gin.H{"content": "too late"})

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestMarkReadOK(t *testing.T) {
	env := setup(t, 2)
	newest := int64(60)
	chat := models.Chat{ID: 10, Type: models.ChatTypeDirect, LastMessageID: &newest, Participants: []models.ParticipantSetting{participant(10, 1), participant(10, 2)}}
	env.chats.On("GetChatForUser", mock.Anything, int64(10), int64(2)).Return(chat, nil)
	env.messages.On("MarkRead", mock.Anything, int64(10), int64(2), int64(55)).Return(nil)
	env.chats.On("AdvanceLastRead", mock.Anything, int64(10), int64(2), int64(55)).Return(nil)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/10/read", gin.H{"upto_message_id": 55})

	assert.Equal(t, http.StatusOK, w.Code)
	env.messages.AssertExpectations(t)
}

func TestReactionToggleOK(t *testing.T) {
	env := setup(t, 2)
	msg := models.Message{ID: 100, ChatID: 10, SenderID: 1}
	chat := models.Chat{ID: 10, Type: models.ChatTypeDirect, Participants: []models.ParticipantSetting{participant(10, 1), participant(10, 2)}}
	delta := models.ReactionDelta{UserID: 2, Emoji: "🙏", Added: true, Count: 1}

	env.messages.On("Get", mock.Anything, int64(100)).Return(msg, nil)
	env.chats.On("GetChatForUser", mock.Anything, int64(10), int64(2)).Return(chat, nil)
	env.messages.On("ToggleReaction", mock.Anything, int64(100), int64(2), "🙏").Return(delta, nil)

	w := doJSON(t, env.router, http.MethodPost, "/api/messages/100/reactions", gin.H{"emoji": "🙏"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"added":true`)
}

func TestListChatsOK(t *testing.T) {
	env := setup(t, 1)
	summaries := []models.ChatSummary{{ChatID: 10, Type: models.ChatTypeDirect, FriendID: 2}}
	env.chats.On("ListForUser", mock.Anything, int64(1), 1, 50).Return(summaries, int64(1), nil)
	env.users.On("BulkUsers", mock.Anything, []int64{2}).Return(map[int64]models.UserProfile{2: {ID: 2, FirstName: "Grace"}}, nil)

	w := doJSON(t, env.router, http.MethodGet, "/api/chats", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"chat_name":"Grace"`)
}

func TestInvalidChatIDReturns400(t *testing.T) {
	env := setup(t, 1)

	w := doJSON(t, env.router, http.MethodPost, "/api/chats/abc/read", gin.H{"upto_message_id": 1})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBlockUserOK(t *testing.T) {
	env := setup(t, 1)
	env.blocks.On("Block", mock.Anything, int64(1), int64(2)).Return(nil)

	w := doJSON(t, env.router, http.MethodPost, "/api/blocks", gin.H{"user_id": 2})

	assert.Equal(t, http.StatusOK, w.Code)
	env.blocks.AssertExpectations(t)
}
