package models

// Message kinds carried by ChatMessage.Type.
const (
	TypeChat    = "chat"
	TypeCommand = "command"
	TypeDM      = "dm"
	TypeWhisper = "whisper"
	TypeReply   = "reply"
	TypeGroup   = "group"
	TypePublic  = "public"
	TypeSystem  = "system"
	TypeSuggest = "suggest"
)

// ChatMessage is the frame exchanged with transport clients. Inbound frames
// carry a chat line or a command; outbound frames carry rendered text.
type ChatMessage struct {
	SenderID UserID `json:"sender_id,omitempty"`
	Content  string `json:"content"`
	Type     string `json:"type"`
}
