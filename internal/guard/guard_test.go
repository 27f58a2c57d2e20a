package guard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/mocks"
	"wisdomwalk-chat-service/internal/models"
)

func activeDirect(userIDs ...int64) *models.Chat {
	chat := &models.Chat{ID: 10, Type: models.ChatTypeDirect}
	for _, uid := range userIDs {
		chat.Participants = append(chat.Participants, models.ParticipantSetting{UserID: uid})
	}
	return chat
}

func TestCanActNonParticipant(t *testing.T) {
	g := New(new(mocks.BlockRepository))
	err := g.CanAct(activeDirect(1, 2), 3)
	assert.ErrorIs(t, err, errs.ErrNotFoundOrForbidden)
}

func TestCanActDepartedParticipant(t *testing.T) {
	g := New(new(mocks.BlockRepository))
	chat := activeDirect(1)
	left := time.Now()
	chat.Participants = append(chat.Participants, models.ParticipantSetting{
		UserID: 2,
		LeftAt: &left,
	})

	err := g.CanAct(chat, 2)
	assert.ErrorIs(t, err, errs.ErrNotFoundOrForbidden)
}

func TestCanSendBlockedEitherDirection(t *testing.T) {
	blocks := new(mocks.BlockRepository)
	blocks.On("AnyBlockBetween", mock.Anything, int64(1), []int64{2}).Return(true, nil)
	g := New(blocks)

	err := g.CanSend(context.Background(), activeDirect(1, 2), 1)
	assert.ErrorIs(t, err, errs.ErrBlocked)
}

func TestCanSendGroupIgnoresBlocks(t *testing.T) {
	blocks := new(mocks.BlockRepository)
	g := New(blocks)

	chat := activeDirect(1, 2, 3)
	chat.Type = models.ChatTypeGroup

	err := g.CanSend(context.Background(), chat, 1)
	assert.NoError(t, err)
	blocks.AssertNotCalled(t, "AnyBlockBetween", mock.Anything, mock.Anything, mock.Anything)
}

func TestCanSendDirectUnblocked(t *testing.T) {
	blocks := new(mocks.BlockRepository)
	blocks.On("AnyBlockBetween", mock.Anything, int64(1), []int64{2}).Return(false, nil)
	g := New(blocks)

	err := g.CanSend(context.Background(), activeDirect(1, 2), 1)
	assert.NoError(t, err)
}
