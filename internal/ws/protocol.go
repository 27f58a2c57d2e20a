package ws

import "encoding/json"

// Client-to-server event names. Server-to-client events reuse the models
// event names so REST and realtime subscribers see identical envelopes.
const (
	ActionSendMessage    = "sendMessage"
	ActionEditMessage    = "editMessage"
	ActionDeleteMessage  = "deleteMessage"
	ActionForwardMessage = "forwardMessage"
	ActionToggleReaction = "toggleReaction"
	ActionPinMessage     = "pinMessage"
	ActionUnpinMessage   = "unpinMessage"
	ActionMarkRead       = "markRead"
	ActionTyping         = "typing"
	ActionStopTyping     = "stopTyping"
	ActionJoinChat       = "joinChat"
	ActionLeaveChat      = "leaveChat"
)

// frame is the inbound envelope. ID is an optional client-chosen
// correlation id echoed back on the ack.
type frame struct {
	Event string          `json:"event"`
	ID    string          `json:"id,omitempty"`
	Data  json.RawMessage `json:"data"`
}

// ack is the reply to a frame that carried an id.
type ack struct {
	Event string `json:"event"`
	ID    string `json:"id"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type sendMessagePayload struct {
	ChatID           int64               `json:"chat_id"`
	Content          string              `json:"content"`
	EncryptedContent string              `json:"encrypted_content"`
	MessageType      string              `json:"message_type"`
	ScriptureVerse   string              `json:"scripture_verse"`
	ScriptureRef     string              `json:"scripture_ref"`
	ReplyToID        int64               `json:"reply_to_id"`
	Attachments      []attachmentPayload `json:"attachments"`
}

type attachmentPayload struct {
	URL      string `json:"url"`
	FileType string `json:"file_type"`
	FileName string `json:"file_name"`
}

type editMessagePayload struct {
	MessageID        int64  `json:"message_id"`
	Content          string `json:"content"`
	EncryptedContent string `json:"encrypted_content"`
}

type deleteMessagePayload struct {
	MessageID int64 `json:"message_id"`
}

type forwardMessagePayload struct {
	MessageID    int64 `json:"message_id"`
	TargetChatID int64 `json:"target_chat_id"`
}

type toggleReactionPayload struct {
	MessageID int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type pinPayload struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

type markReadPayload struct {
	ChatID        int64 `json:"chat_id"`
	UptoMessageID int64 `json:"upto_message_id"`
}

type typingPayload struct {
	ChatID int64 `json:"chat_id"`
}

type roomPayload struct {
	ChatID int64 `json:"chat_id"`
}
