package models

// Event names broadcast to chat rooms. Each event carries the fully resolved
// entity so subscribers never need a follow-up fetch.
const (
	EventNewMessage      = "newMessage"
	EventMessageEdited   = "messageEdited"
	EventMessageDeleted  = "messageDeleted"
	EventMessageReaction = "messageReaction"
	EventMessagePinned   = "messagePinned"
	EventMessageUnpinned = "messageUnpinned"
	EventTyping          = "typing"
	EventStopTyping      = "stopTyping"
)

// ChatEvent is the envelope broadcast over websocket rooms and published to
// the outbound event feed.
type ChatEvent struct {
	Event     string         `json:"event"`
	ChatID    int64          `json:"chat_id"`
	Message   *Message       `json:"message,omitempty"`
	MessageID int64          `json:"message_id,omitempty"`
	Reaction  *ReactionDelta `json:"reaction,omitempty"`
	ActorID   int64          `json:"actor_id,omitempty"`
	Actor     *UserProfile   `json:"actor,omitempty"`
}

// ReactionDelta describes a reaction toggle outcome.
type ReactionDelta struct {
	UserID    int64      `json:"user_id"`
	Emoji     string     `json:"emoji"`
	Added     bool       `json:"added"`
	Reactions []Reaction `json:"reactions"`
	Count     int        `json:"count"`
}
