package guard

import (
	"context"

	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/models"
	"wisdomwalk-chat-service/internal/repositories"
)

// Guard is the authorization predicate applied before every mutating chat or
// message operation.
type Guard struct {
	blocks repositories.BlockRepository
}

// New constructs a Guard.
func New(blocks repositories.BlockRepository) *Guard {
	return &Guard{blocks: blocks}
}

// CanAct verifies the user is an active participant of the chat. The failure
// is the same error used for a missing chat, so callers cannot distinguish
// "no access" from "does not exist".
func (g *Guard) CanAct(chat *models.Chat, userID int64) error {
	if chat == nil || !chat.IsParticipant(userID) {
		return errs.ErrNotFoundOrForbidden
	}
	return nil
}

// CanSend extends CanAct with the pairwise block check. The block veto
// applies to direct chats only; group sends are unaffected by pairwise
// blocks, matching the upstream product behavior.
func (g *Guard) CanSend(ctx context.Context, chat *models.Chat, userID int64) error {
	if err := g.CanAct(chat, userID); err != nil {
		return err
	}
	if chat.Type != models.ChatTypeDirect {
		return nil
	}

	blocked, err := g.blocks.AnyBlockBetween(ctx, userID, chat.OtherParticipantIDs(userID))
	if err != nil {
		return errs.Store(err)
	}
	if blocked {
		return errs.ErrBlocked
	}
	return nil
}
