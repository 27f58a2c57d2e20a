package models

import "time"

// Message types.
const (
	MessageTypeText      = "text"
	MessageTypeImage     = "image"
	MessageTypeScripture = "scripture"
	MessageTypePrayer    = "prayer"
	MessageTypeVideo     = "video"
	MessageTypeDocument  = "document"
)

// ValidMessageType reports whether t is one of the known message types.
func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeScripture,
		MessageTypePrayer, MessageTypeVideo, MessageTypeDocument:
		return true
	}
	return false
}

// Message is a single chat message. The id is assigned by the store in
// creation order and doubles as the read watermark. Optional columns are
// pointers so unset fields vanish from the JSON payloads subscribers see.
type Message struct {
	ID               int64      `db:"id" json:"id"`
	ChatID           int64      `db:"chat_id" json:"chat_id"`
	SenderID         int64      `db:"sender_id" json:"sender_id"`
	Content          string     `db:"content" json:"content,omitempty"`
	EncryptedContent *string    `db:"encrypted_content" json:"encrypted_content,omitempty"`
	MessageType      string     `db:"message_type" json:"message_type"`
	ScriptureVerse   *string    `db:"scripture_verse" json:"scripture_verse,omitempty"`
	ScriptureRef     *string    `db:"scripture_reference" json:"scripture_reference,omitempty"`
	ReplyToID        *int64     `db:"reply_to_id" json:"reply_to_id,omitempty"`
	ForwardedFromID  *int64     `db:"forwarded_from_id" json:"forwarded_from_id,omitempty"`
	IsPinned         bool       `db:"is_pinned" json:"is_pinned"`
	IsEdited         bool       `db:"is_edited" json:"is_edited"`
	EditedAt         *time.Time `db:"edited_at" json:"edited_at,omitempty"`
	IsDeleted        bool       `db:"is_deleted" json:"is_deleted"`
	DeletedAt        *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`

	Sender      *UserProfile  `db:"-" json:"sender,omitempty"`
	ReplyTo     *Message      `db:"-" json:"reply_to,omitempty"`
	Attachments []Attachment  `db:"-" json:"attachments,omitempty"`
	Reactions   []Reaction    `db:"-" json:"reactions,omitempty"`
	ReadBy      []ReadReceipt `db:"-" json:"read_by,omitempty"`
}

// Attachment is a blob-store reference carried by a message. The service
// never handles bytes; the URL comes from the external blob store.
type Attachment struct {
	MessageID int64  `db:"message_id" json:"-"`
	Position  int    `db:"position" json:"-"`
	URL       string `db:"url" json:"url"`
	FileType  string `db:"file_type" json:"file_type"`
	FileName  string `db:"file_name" json:"file_name"`
}

// Reaction is one (user, emoji) pair on a message, unique per pair.
type Reaction struct {
	MessageID int64     `db:"message_id" json:"-"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Emoji     string    `db:"emoji" json:"emoji"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ReadReceipt records that a user has read a message. Append-only; a user
// appears at most once per message.
type ReadReceipt struct {
	MessageID int64     `db:"message_id" json:"-"`
	UserID    int64     `db:"user_id" json:"user_id"`
	ReadAt    time.Time `db:"read_at" json:"read_at"`
}

// NewMessageInput is the validated payload for creating a message.
type NewMessageInput struct {
	Content          string
	EncryptedContent string
	MessageType      string
	ScriptureVerse   string
	ScriptureRef     string
	ReplyToID        int64
	ForwardedFromID  int64
	Attachments      []Attachment
}
