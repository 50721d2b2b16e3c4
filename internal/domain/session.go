package domain

// Surface identifies a message previously sent to a chat.
type Surface struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// Button is an inline action rendered under a message.
type Button struct {
	Text   string `json:"text"`
	Action string `json:"action"`
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Message is an outgoing rendered surface.
type Message struct {
	Text     string
	Keyboard Keyboard
	// DisablePreview suppresses link previews.
	DisablePreview bool
}

// Session is the per-principal listing state.
type Session struct {
	Articles []Article     `json:"articles"`
	Page     int           `json:"page"`
	NumPages int           `json:"num_pages"`
	Order    SortOrder     `json:"order"`
	Filter   ArticleStatus `json:"filter,omitempty"`
	Surface  *Surface      `json:"surface,omitempty"`
}

// NewSession returns the state a listing starts from.
func NewSession() Session {
	return Session{Page: 1, Order: SortAscending}
}
