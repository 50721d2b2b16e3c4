package domain

// Command is a slash command such as /start.
type Command struct {
	Name      string
	ChatID    int64
	Principal Principal
}

// ButtonPress is an inline button callback.
type ButtonPress struct {
	Token      string
	CallbackID string
	Principal  Principal
	Surface    Surface
}

// TextMessage is any other free text sent by a principal.
type TextMessage struct {
	Body      string
	ChatID    int64
	Principal Principal
}
