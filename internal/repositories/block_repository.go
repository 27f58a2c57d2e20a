package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"wisdomwalk-chat-service/internal/errs"
)

// BlockRepository tracks pairwise user blocks.
type BlockRepository interface {
	Block(ctx context.Context, userID, blockedUserID int64) error
	Unblock(ctx context.Context, userID, blockedUserID int64) error
	// AnyBlockBetween reports whether a block exists in either direction
	// between the user and any of the given others.
	AnyBlockBetween(ctx context.Context, userID int64, otherIDs []int64) (bool, error)
}

// BlockRepo is a sqlx implementation of BlockRepository.
type BlockRepo struct {
	db *sqlx.DB
}

// NewBlockRepo constructs a BlockRepo.
func NewBlockRepo(db *sqlx.DB) *BlockRepo {
	return &BlockRepo{db: db}
}

// Block records a block; idempotent.
func (r *BlockRepo) Block(ctx context.Context, userID, blockedUserID int64) error {
	if userID == blockedUserID {
		return errs.Validationf("cannot block yourself")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_blocks (user_id, blocked_user_id) VALUES ($1, $2)
         ON CONFLICT (user_id, blocked_user_id) DO NOTHING`, userID, blockedUserID)
	return err
}

// Unblock removes a block; removing a non-existent block is a no-op.
func (r *BlockRepo) Unblock(ctx context.Context, userID, blockedUserID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM user_blocks WHERE user_id=$1 AND blocked_user_id=$2`, userID, blockedUserID)
	return err
}

// AnyBlockBetween checks both directions: the actor blocking another
// participant or being blocked by one both veto delivery.
func (r *BlockRepo) AnyBlockBetween(ctx context.Context, userID int64, otherIDs []int64) (bool, error) {
	if len(otherIDs) == 0 {
		return false, nil
	}

	query, args, err := sqlx.In(
		`SELECT EXISTS(
            SELECT 1 FROM user_blocks
            WHERE (user_id = ? AND blocked_user_id IN (?))
               OR (blocked_user_id = ? AND user_id IN (?))
        )`, userID, otherIDs, userID, otherIDs)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := r.db.GetContext(ctx, &exists, r.db.Rebind(query), args...); err != nil {
		return false, err
	}
	return exists, nil
}
