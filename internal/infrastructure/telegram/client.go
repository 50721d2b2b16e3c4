package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ArticlesBot/internal/config"
	"ArticlesBot/internal/domain"
	"ArticlesBot/internal/ports"
)

const parseModeHTML = "HTML"

// APIError is a Bot API call answered with ok=false.
type APIError struct {
	Method      string
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

// Client calls the Telegram Bot API over HTTPS with JSON bodies.
type Client struct {
	endpoint string
	http     *http.Client
	logger   *slog.Logger
}

var _ ports.Messenger = (*Client)(nil)

// NewClient builds a client for the configured bot.
func NewClient(cfg config.TelegramConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	// Long polling holds the request open for PollTimeout.
	return &Client{
		endpoint: strings.TrimRight(cfg.APIURL, "/") + "/bot" + cfg.BotToken,
		http:     &http.Client{Timeout: timeout + cfg.PollTimeout},
		logger:   logger.With("component", "telegram"),
	}
}

type sendMessageRequest struct {
	ChatID                int64                 `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type editMessageTextRequest struct {
	ChatID                int64                 `json:"chat_id"`
	MessageID             int64                 `json:"message_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type editMarkupRequest struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int64                 `json:"message_id"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type surfaceRequest struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int64 `json:"message_id"`
}

// SendMessage posts msg as HTML. When Telegram rejects the markup the
// text is resent with tags stripped.
func (c *Client) SendMessage(ctx context.Context, chatID int64, msg domain.Message) (domain.Surface, error) {
	req := sendMessageRequest{
		ChatID:                chatID,
		Text:                  msg.Text,
		ParseMode:             parseModeHTML,
		DisableWebPagePreview: msg.DisablePreview,
		ReplyMarkup:           markup(msg.Keyboard),
	}

	var sent Message
	err := c.call(ctx, "sendMessage", req, &sent)
	if isEntityError(err) {
		c.logger.Warn("resend as plain text", "chat_id", chatID, "error", err)
		req.Text = PlainText(msg.Text)
		req.ParseMode = ""
		err = c.call(ctx, "sendMessage", req, &sent)
	}
	if err != nil {
		return domain.Surface{}, err
	}
	return domain.Surface{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// EditMessageText replaces the text and buttons of a sent message.
func (c *Client) EditMessageText(ctx context.Context, surface domain.Surface, msg domain.Message) error {
	req := editMessageTextRequest{
		ChatID:                surface.ChatID,
		MessageID:             surface.MessageID,
		Text:                  msg.Text,
		ParseMode:             parseModeHTML,
		DisableWebPagePreview: msg.DisablePreview,
		ReplyMarkup:           markup(msg.Keyboard),
	}
	err := c.call(ctx, "editMessageText", req, nil)
	if isEntityError(err) {
		req.Text = PlainText(msg.Text)
		req.ParseMode = ""
		err = c.call(ctx, "editMessageText", req, nil)
	}
	return err
}

// EditMessageButtons replaces only the buttons. A nil keyboard removes them.
func (c *Client) EditMessageButtons(ctx context.Context, surface domain.Surface, keyboard domain.Keyboard) error {
	req := editMarkupRequest{ChatID: surface.ChatID, MessageID: surface.MessageID, ReplyMarkup: markup(keyboard)}
	if req.ReplyMarkup == nil {
		req.ReplyMarkup = &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{}}
	}
	return c.call(ctx, "editMessageReplyMarkup", req, nil)
}

// DeleteMessage removes a message from the chat.
func (c *Client) DeleteMessage(ctx context.Context, surface domain.Surface) error {
	return c.call(ctx, "deleteMessage", surfaceRequest{ChatID: surface.ChatID, MessageID: surface.MessageID}, nil)
}

// AnswerCallback stops the client-side spinner and optionally shows text.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	req := struct {
		CallbackQueryID string `json:"callback_query_id"`
		Text            string `json:"text,omitempty"`
	}{callbackID, text}
	return c.call(ctx, "answerCallbackQuery", req, nil)
}

// SetMyCommands publishes the command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	req := struct {
		Commands []BotCommand `json:"commands"`
	}{commands}
	return c.call(ctx, "setMyCommands", req, nil)
}

// GetUpdates long-polls for updates after offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	req := struct {
		Offset         int64    `json:"offset,omitempty"`
		Timeout        int      `json:"timeout"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{offset, int(timeout.Seconds()), []string{"message", "callback_query"}}

	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook registers url as the update destination.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	req := struct {
		URL            string   `json:"url"`
		SecretToken    string   `json:"secret_token,omitempty"`
		AllowedUpdates []string `json:"allowed_updates"`
	}{url, secret, []string{"message", "callback_query"}}
	return c.call(ctx, "setWebhook", req, nil)
}

// DeleteWebhook switches the bot back to getUpdates.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", struct{}{}, nil)
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response (status %s): %w", method, resp.Status, err)
	}
	if !envelope.OK {
		return classify(&APIError{Method: method, Code: envelope.ErrorCode, Description: envelope.Description})
	}
	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// classify maps Bot API descriptions onto the messenger sentinel errors.
func classify(apiErr *APIError) error {
	desc := strings.ToLower(apiErr.Description)
	switch {
	case strings.Contains(desc, "message is not modified"):
		return errors.Join(ports.ErrMessageNotModified, apiErr)
	case strings.Contains(desc, "message to edit not found"),
		strings.Contains(desc, "message to delete not found"),
		strings.Contains(desc, "message can't be deleted"):
		return errors.Join(ports.ErrMessageNotFound, apiErr)
	default:
		return apiErr
	}
}

func isEntityError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Description), "can't parse entities")
}

func markup(keyboard domain.Keyboard) *InlineKeyboardMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]InlineKeyboardButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, InlineKeyboardButton{Text: b.Text, CallbackData: b.Action})
		}
		rows = append(rows, buttons)
	}
	return &InlineKeyboardMarkup{InlineKeyboard: rows}
}

// PlainText strips HTML markup, keeping the visible text.
func PlainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return doc.Text()
}
