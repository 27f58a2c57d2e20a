package models

import "time"

// Chat types.
const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

// Chat represents a conversation, either direct (exactly two participants)
// or group. Optional columns are pointers so unset fields vanish from JSON.
type Chat struct {
	ID               int64      `db:"id" json:"id"`
	Type             string     `db:"type" json:"type"`
	GroupName        *string    `db:"group_name" json:"group_name,omitempty"`
	GroupDescription *string    `db:"group_description" json:"group_description,omitempty"`
	LastMessageID    *int64     `db:"last_message_id" json:"last_message_id,omitempty"`
	LastActivity     time.Time  `db:"last_activity" json:"last_activity"`
	IsActive         bool       `db:"is_active" json:"is_active"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`

	Participants []ParticipantSetting `db:"-" json:"participants,omitempty"`
}

// ParticipantSetting is the per-participant state embedded in a chat:
// mute flag, admin bit, membership window and read watermark.
type ParticipantSetting struct {
	ChatID            int64      `db:"chat_id" json:"-"`
	UserID            int64      `db:"user_id" json:"user_id"`
	IsMuted           bool       `db:"is_muted" json:"is_muted"`
	IsAdmin           bool       `db:"is_admin" json:"is_admin"`
	JoinedAt          time.Time  `db:"joined_at" json:"joined_at"`
	LeftAt            *time.Time `db:"left_at" json:"left_at,omitempty"`
	LastReadMessageID *int64     `db:"last_read_message_id" json:"last_read_message_id,omitempty"`
}

// ChatSummary is the list-view projection of a chat for one user.
type ChatSummary struct {
	ChatID       int64     `db:"id" json:"chat_id"`
	Type         string    `db:"type" json:"type"`
	ChatName     string    `db:"-" json:"chat_name"`
	ChatImage    string    `db:"-" json:"chat_image,omitempty"`
	FriendID     int64     `db:"friend_id" json:"friend_id,omitempty"`
	UnreadCount  int64     `db:"unread_count" json:"unread_count"`
	LastMessage  *Message  `db:"-" json:"last_message,omitempty"`
	LastActivity time.Time `db:"last_activity" json:"last_activity"`
}

// IsParticipant reports whether the user has an active membership entry.
func (c *Chat) IsParticipant(userID int64) bool {
	for _, p := range c.Participants {
		if p.UserID == userID && p.LeftAt == nil {
			return true
		}
	}
	return false
}

// Setting returns the participant entry for a user, if any.
func (c *Chat) Setting(userID int64) (ParticipantSetting, bool) {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return ParticipantSetting{}, false
}

// OtherParticipantIDs lists every active participant except the given user.
func (c *Chat) OtherParticipantIDs(userID int64) []int64 {
	var out []int64
	for _, p := range c.Participants {
		if p.UserID != userID && p.LeftAt == nil {
			out = append(out, p.UserID)
		}
	}
	return out
}
