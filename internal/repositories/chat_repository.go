package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/models"
)

// ChatRepository abstracts chat persistence.
type ChatRepository interface {
	// FindOrCreateDirect returns the unique direct chat between the two users,
	// creating it atomically if absent. The bool reports whether it was created.
	FindOrCreateDirect(ctx context.Context, userID, friendID int64) (models.Chat, bool, error)
	CreateGroup(ctx context.Context, creatorID int64, name, description string, memberIDs []int64) (models.Chat, error)
	// GetChatForUser loads a chat with its participant settings, scoped to an
	// active participant. Absent chat and non-participant caller are
	// indistinguishable: both yield errs.ErrNotFoundOrForbidden.
	GetChatForUser(ctx context.Context, chatID, userID int64) (models.Chat, error)
	ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]models.ChatSummary, int64, error)
	// ChatIDsForUser lists every chat the user is an active participant of,
	// with none of the list view's filters. Room subscription depends on it
	// covering chats that have no messages yet.
	ChatIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	RecordActivity(ctx context.Context, chatID, messageID int64) error
	SetMuted(ctx context.Context, chatID, userID int64, muted bool) error
	// AdvanceLastRead moves the read watermark forward only; older watermarks
	// are a no-op.
	AdvanceLastRead(ctx context.Context, chatID, userID, messageID int64) error
	Leave(ctx context.Context, chatID, userID int64) error
	AddParticipant(ctx context.Context, chatID, userID int64) error
	RemoveParticipant(ctx context.Context, chatID, userID int64) error
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// directKey builds the unique key for a direct participant pair, order
// independent.
func directKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("%d:%d", a, b)
}

// FindOrCreateDirect relies on the UNIQUE direct_key constraint: concurrent
// calls from both users race on one ON CONFLICT insert and converge on a
// single row.
func (r *ChatRepo) FindOrCreateDirect(ctx context.Context, userID, friendID int64) (models.Chat, bool, error) {
	if userID == friendID {
		return models.Chat{}, false, errs.Validationf("cannot chat with yourself")
	}
	key := directKey(userID, friendID)

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, false, err
	}
	defer tx.Rollback()

	var chatID int64
	created := true
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (type, direct_key) VALUES ('direct', $1)
         ON CONFLICT (direct_key) DO NOTHING
         RETURNING id`, key).Scan(&chatID)
	if errors.Is(err, sql.ErrNoRows) {
		created = false
		if err = tx.GetContext(ctx, &chatID, `SELECT id FROM chats WHERE direct_key=$1`, key); err != nil {
			return models.Chat{}, false, err
		}
	} else if err != nil {
		return models.Chat{}, false, err
	}

	if created {
		for _, id := range []int64{userID, friendID} {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)`, chatID, id); err != nil {
				return models.Chat{}, false, err
			}
		}
	} else {
		// A returning participant re-activates their own membership.
		if _, err = tx.ExecContext(ctx,
			`UPDATE chat_participants SET left_at = NULL WHERE chat_id=$1 AND user_id=$2`, chatID, userID); err != nil {
			return models.Chat{}, false, err
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE chats SET is_active = TRUE WHERE id=$1`, chatID); err != nil {
			return models.Chat{}, false, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, false, err
	}

	chat, err := r.GetChatForUser(ctx, chatID, userID)
	return chat, created, err
}

// CreateGroup creates a group chat with the creator as admin, atomically with
// its member list.
func (r *ChatRepo) CreateGroup(ctx context.Context, creatorID int64, name, description string, memberIDs []int64) (models.Chat, error) {
	if name == "" {
		return models.Chat{}, errs.Validationf("group name is required")
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer tx.Rollback()

	var chatID int64
	if err = tx.QueryRowxContext(ctx,
		`INSERT INTO chats (type, group_name, group_description) VALUES ('group', $1, NULLIF($2, ''))
         RETURNING id`, name, description).Scan(&chatID); err != nil {
		return models.Chat{}, err
	}

	memberSet := map[int64]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	for id := range memberSet {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO chat_participants (chat_id, user_id, is_admin) VALUES ($1, $2, $3)`,
			chatID, id, id == creatorID); err != nil {
			return models.Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return r.GetChatForUser(ctx, chatID, creatorID)
}

// GetChatForUser loads a chat scoped to an active participant.
func (r *ChatRepo) GetChatForUser(ctx context.Context, chatID, userID int64) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat,
		`SELECT c.id, c.type, c.group_name, c.group_description, c.last_message_id,
                c.last_activity, c.is_active, c.created_at
         FROM chats c
         INNER JOIN chat_participants cp ON cp.chat_id = c.id
         WHERE c.id=$1 AND cp.user_id=$2 AND cp.left_at IS NULL`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, errs.ErrNotFoundOrForbidden
	}
	if err != nil {
		return models.Chat{}, err
	}

	if err := r.db.SelectContext(ctx, &chat.Participants,
		`SELECT chat_id, user_id, is_muted, is_admin, joined_at, left_at, last_read_message_id
         FROM chat_participants WHERE chat_id=$1 ORDER BY joined_at ASC`, chatID); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

type chatListRow struct {
	ID            int64         `db:"id"`
	Type          string        `db:"type"`
	GroupName     sql.NullString `db:"group_name"`
	FriendID      sql.NullInt64 `db:"friend_id"`
	UnreadCount   int64         `db:"unread_count"`
	LastMessageID sql.NullInt64 `db:"last_message_id"`
	LastActivity  sql.NullTime  `db:"last_activity"`
}

// ListForUser returns the user's active chats ordered by last activity, each
// annotated with the unread count relative to the user's read watermark.
func (r *ChatRepo) ListForUser(ctx context.Context, userID int64, page, pageSize int) ([]models.ChatSummary, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := `SELECT c.id, c.type, c.group_name, c.last_message_id, c.last_activity,
                other.user_id AS friend_id,
                COALESCE(unread.cnt, 0) AS unread_count
        FROM chats c
        INNER JOIN chat_participants cp ON cp.chat_id = c.id AND cp.user_id = $1 AND cp.left_at IS NULL
        LEFT JOIN LATERAL (
            SELECT user_id FROM chat_participants
            WHERE chat_id = c.id AND user_id <> $1 AND c.type = 'direct'
            LIMIT 1
        ) other ON TRUE
        LEFT JOIN LATERAL (
            SELECT COUNT(*) AS cnt FROM messages m
            WHERE m.chat_id = c.id
              AND m.sender_id <> $1
              AND m.is_deleted = FALSE
              AND m.id > COALESCE(cp.last_read_message_id, 0)
        ) unread ON TRUE
        WHERE c.is_active = TRUE AND c.last_message_id IS NOT NULL
        ORDER BY c.last_activity DESC
        LIMIT $2 OFFSET $3`

	var rows []chatListRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, pageSize, offset); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM chats c
         INNER JOIN chat_participants cp ON cp.chat_id = c.id AND cp.user_id = $1 AND cp.left_at IS NULL
         WHERE c.is_active = TRUE AND c.last_message_id IS NOT NULL`, userID); err != nil {
		return nil, 0, err
	}

	summaries := make([]models.ChatSummary, 0, len(rows))
	for _, row := range rows {
		summary := models.ChatSummary{
			ChatID:      row.ID,
			Type:        row.Type,
			UnreadCount: row.UnreadCount,
		}
		if row.LastActivity.Valid {
			summary.LastActivity = row.LastActivity.Time
		}
		if row.Type == models.ChatTypeDirect && row.FriendID.Valid {
			summary.FriendID = row.FriendID.Int64
		}
		if row.GroupName.Valid {
			summary.ChatName = row.GroupName.String
		}
		summaries = append(summaries, summary)
	}
	return summaries, total, nil
}

// ChatIDsForUser returns all active memberships, unfiltered and unpaged.
func (r *ChatRepo) ChatIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	var ids []int64
	err := r.db.SelectContext(ctx, &ids,
		`SELECT chat_id FROM chat_participants WHERE user_id=$1 AND left_at IS NULL`, userID)
	return ids, err
}

// RecordActivity bumps the chat's last-message pointer and activity timestamp.
// Called after every successful message persist.
func (r *ChatRepo) RecordActivity(ctx context.Context, chatID, messageID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chats SET last_message_id=$2, last_activity=NOW(), is_active=TRUE WHERE id=$1`,
		chatID, messageID)
	return err
}

// SetMuted flips the caller's own mute flag.
func (r *ChatRepo) SetMuted(ctx context.Context, chatID, userID int64, muted bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET is_muted=$3 WHERE chat_id=$1 AND user_id=$2 AND left_at IS NULL`,
		chatID, userID, muted)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// AdvanceLastRead is monotone: the watermark never moves backwards, so stale
// re-invocations are harmless.
func (r *ChatRepo) AdvanceLastRead(ctx context.Context, chatID, userID, messageID int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET last_read_message_id=$3
         WHERE chat_id=$1 AND user_id=$2
           AND COALESCE(last_read_message_id, 0) < $3`,
		chatID, userID, messageID)
	return err
}

// Leave records the participant's leave timestamp and hides the chat from
// list views. Data is retained.
func (r *ChatRepo) Leave(ctx context.Context, chatID, userID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE chat_participants SET left_at=NOW(), is_admin=FALSE
         WHERE chat_id=$1 AND user_id=$2 AND left_at IS NULL`, chatID, userID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE chats SET is_active=FALSE WHERE id=$1 AND type='direct'`, chatID); err != nil {
		return err
	}
	return tx.Commit()
}

// AddParticipant inserts a member, re-activating a previous membership if one
// exists.
func (r *ChatRepo) AddParticipant(ctx context.Context, chatID, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_participants (chat_id, user_id) VALUES ($1, $2)
         ON CONFLICT (chat_id, user_id) DO UPDATE SET left_at = NULL`, chatID, userID)
	return err
}

// RemoveParticipant ends a membership; the admin bit is cleared with it so a
// removed admin never lingers in the admin set.
func (r *ChatRepo) RemoveParticipant(ctx context.Context, chatID, userID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_participants SET left_at=NOW(), is_admin=FALSE
         WHERE chat_id=$1 AND user_id=$2 AND left_at IS NULL`, chatID, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return errs.ErrNotFoundOrForbidden
	}
	return nil
}
