package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"wisdomwalk-chat-service/internal/errs"
	"wisdomwalk-chat-service/internal/models"
)

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, chatID, senderID int64, input models.NewMessageInput) (models.Message, error)
	// Get retrieves a message regardless of its deleted flag; moderation
	// relies on deleted messages staying addressable by id.
	Get(ctx context.Context, messageID int64) (models.Message, error)
	ListForChat(ctx context.Context, chatID int64, page, pageSize int) ([]models.Message, int64, error)
	// MarkRead appends a read receipt for every message in the chat up to the
	// watermark that was sent by someone else and not yet read by the user.
	// Idempotent: receipts are insert-if-absent.
	MarkRead(ctx context.Context, chatID, userID, uptoMessageID int64) error
	Edit(ctx context.Context, messageID int64, content, encryptedContent string) error
	SoftDelete(ctx context.Context, messageID int64) error
	ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (models.ReactionDelta, error)
	// Pin and Unpin keep the message flag and the chat's pinned set in step.
	Pin(ctx context.Context, chatID, messageID int64) error
	Unpin(ctx context.Context, chatID, messageID int64) error
	Search(ctx context.Context, chatID int64, query string, page, pageSize int) ([]models.Message, int64, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, chat_id, sender_id, content, encrypted_content, message_type,
    scripture_verse, scripture_reference, reply_to_id, forwarded_from_id,
    is_pinned, is_edited, edited_at, is_deleted, deleted_at, created_at`

// Create persists a message and its attachments atomically.
func (r *MessageRepo) Create(ctx context.Context, chatID, senderID int64, input models.NewMessageInput) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (chat_id, sender_id, content, encrypted_content, message_type,
             scripture_verse, scripture_reference, reply_to_id, forwarded_from_id)
         VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, 0), NULLIF($9, 0))
         RETURNING `+messageColumns,
		chatID, senderID, input.Content, input.EncryptedContent, input.MessageType,
		input.ScriptureVerse, input.ScriptureRef, input.ReplyToID, input.ForwardedFromID).
		StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	for i, att := range input.Attachments {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO message_attachments (message_id, position, url, file_type, file_name)
             VALUES ($1, $2, $3, $4, $5)`,
			msg.ID, i, att.URL, att.FileType, att.FileName); err != nil {
			return models.Message{}, err
		}
		att.MessageID = msg.ID
		att.Position = i
		msg.Attachments = append(msg.Attachments, att)
	}

	if err = tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// Get fetches a single message with its embedded collections.
func (r *MessageRepo) Get(ctx context.Context, messageID int64) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, errs.ErrNotFoundOrForbidden
	}
	if err != nil {
		return models.Message{}, err
	}

	msgs := []models.Message{msg}
	if err := r.hydrate(ctx, msgs); err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// ListForChat returns non-deleted messages in creation order, newest page
// first, each hydrated with attachments, reactions and read receipts.
func (r *MessageRepo) ListForChat(ctx context.Context, chatID int64, page, pageSize int) ([]models.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}
	offset := (page - 1) * pageSize

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE chat_id=$1 AND is_deleted = FALSE
         ORDER BY id DESC LIMIT $2 OFFSET $3`, chatID, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	// reverse into ascending order for display
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM messages WHERE chat_id=$1 AND is_deleted = FALSE`, chatID); err != nil {
		return nil, 0, err
	}

	if err := r.hydrate(ctx, msgs); err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// MarkRead inserts receipts with ON CONFLICT DO NOTHING, so concurrent
// readers commute and re-invocation with an old watermark changes nothing.
func (r *MessageRepo) MarkRead(ctx context.Context, chatID, userID, uptoMessageID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO message_reads (message_id, user_id)
         SELECT m.id, $2 FROM messages m
         WHERE m.chat_id=$1 AND m.sender_id <> $2 AND m.id <= $3
         ON CONFLICT (message_id, user_id) DO NOTHING`,
		chatID, userID, uptoMessageID)
	return err
}

// Edit replaces the content and stamps the edit flags. Ownership and the
// edit window are enforced by the caller, which holds the loaded message.
func (r *MessageRepo) Edit(ctx context.Context, messageID int64, content, encryptedContent string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET content=$2, encrypted_content=NULLIF($3, ''),
             is_edited=TRUE, edited_at=NOW()
         WHERE id=$1 AND is_deleted = FALSE`, messageID, content, encryptedContent)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// SoftDelete flags the message deleted; content is retained for moderation.
func (r *MessageRepo) SoftDelete(ctx context.Context, messageID int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_deleted=TRUE, deleted_at=NOW() WHERE id=$1 AND is_deleted = FALSE`,
		messageID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ToggleReaction removes the (user, emoji) pair if present, otherwise adds
// it, and returns the resulting reaction set.
func (r *MessageRepo) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (models.ReactionDelta, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.ReactionDelta{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM message_reactions WHERE message_id=$1 AND user_id=$2 AND emoji=$3`,
		messageID, userID, emoji)
	if err != nil {
		return models.ReactionDelta{}, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return models.ReactionDelta{}, err
	}

	added := removed == 0
	if added {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
             ON CONFLICT (message_id, user_id, emoji) DO NOTHING`,
			messageID, userID, emoji); err != nil {
			return models.ReactionDelta{}, err
		}
	}

	var reactions []models.Reaction
	if err = tx.SelectContext(ctx, &reactions,
		`SELECT message_id, user_id, emoji, created_at FROM message_reactions
         WHERE message_id=$1 ORDER BY created_at ASC`, messageID); err != nil {
		return models.ReactionDelta{}, err
	}

	if err = tx.Commit(); err != nil {
		return models.ReactionDelta{}, err
	}

	return models.ReactionDelta{
		UserID:    userID,
		Emoji:     emoji,
		Added:     added,
		Reactions: reactions,
		Count:     len(reactions),
	}, nil
}

// Pin sets the message flag and adds it to the chat's pinned set in one
// transaction. Deleted messages cannot be pinned.
func (r *MessageRepo) Pin(ctx context.Context, chatID, messageID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE messages SET is_pinned=TRUE WHERE id=$1 AND chat_id=$2 AND is_deleted = FALSE`,
		messageID, chatID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return errs.Validationf("message cannot be pinned")
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO chat_pins (chat_id, message_id) VALUES ($1, $2)
         ON CONFLICT (chat_id, message_id) DO NOTHING`, chatID, messageID); err != nil {
		return err
	}
	return tx.Commit()
}

// Unpin clears the flag and removes the chat set entry.
func (r *MessageRepo) Unpin(ctx context.Context, chatID, messageID int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx,
		`UPDATE messages SET is_pinned=FALSE WHERE id=$1 AND chat_id=$2`, messageID, chatID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM chat_pins WHERE chat_id=$1 AND message_id=$2`, chatID, messageID); err != nil {
		return err
	}
	return tx.Commit()
}

// Search matches non-deleted messages in the chat against the query using
// the same tsvector expression the GIN index covers.
func (r *MessageRepo) Search(ctx context.Context, chatID int64, query string, page, pageSize int) ([]models.Message, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	where := `chat_id=$1 AND is_deleted = FALSE
        AND to_tsvector('simple', content) @@ plainto_tsquery('simple', $2)`

	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages WHERE `+where+`
         ORDER BY id DESC LIMIT $3 OFFSET $4`, chatID, query, pageSize, offset)
	if err != nil {
		return nil, 0, err
	}

	var total int64
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM messages WHERE `+where, chatID, query); err != nil {
		return nil, 0, err
	}

	if err := r.hydrate(ctx, msgs); err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// hydrate batch-loads attachments, reactions and read receipts for a message
// page.
func (r *MessageRepo) hydrate(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(msgs))
	index := make(map[int64]*models.Message, len(msgs))
	for i := range msgs {
		ids = append(ids, msgs[i].ID)
		index[msgs[i].ID] = &msgs[i]
	}

	query, args, err := sqlx.In(
		`SELECT message_id, position, url, file_type, file_name
         FROM message_attachments WHERE message_id IN (?) ORDER BY message_id, position`, ids)
	if err != nil {
		return err
	}
	var attachments []models.Attachment
	if err := r.db.SelectContext(ctx, &attachments, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, att := range attachments {
		if m, ok := index[att.MessageID]; ok {
			m.Attachments = append(m.Attachments, att)
		}
	}

	query, args, err = sqlx.In(
		`SELECT message_id, user_id, emoji, created_at
         FROM message_reactions WHERE message_id IN (?) ORDER BY created_at`, ids)
	if err != nil {
		return err
	}
	var reactions []models.Reaction
	if err := r.db.SelectContext(ctx, &reactions, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, re := range reactions {
		if m, ok := index[re.MessageID]; ok {
			m.Reactions = append(m.Reactions, re)
		}
	}

	query, args, err = sqlx.In(
		`SELECT message_id, user_id, read_at
         FROM message_reads WHERE message_id IN (?) ORDER BY read_at`, ids)
	if err != nil {
		return err
	}
	var reads []models.ReadReceipt
	if err := r.db.SelectContext(ctx, &reads, r.db.Rebind(query), args...); err != nil {
		return err
	}
	for _, rd := range reads {
		if m, ok := index[rd.MessageID]; ok {
			m.ReadBy = append(m.ReadBy, rd)
		}
	}
	return nil
}
