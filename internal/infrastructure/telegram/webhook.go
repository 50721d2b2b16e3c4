package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"ArticlesBot/internal/config"
	"ArticlesBot/internal/ports"
)

const secretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookServer receives updates pushed by Telegram.
type WebhookServer struct {
	app     *fiber.App
	cfg     config.WebhookConfig
	handler ports.EventHandler
	logger  *slog.Logger
	base    context.Context
	queue   *sequencer
}

// NewWebhookServer builds the fiber app serving the webhook and a health check.
func NewWebhookServer(cfg config.WebhookConfig, handler ports.EventHandler, logger *slog.Logger) *WebhookServer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &WebhookServer{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			BodyLimit:             1024 * 1024,
		}),
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "webhook"),
		base:    context.Background(),
		queue:   newSequencer(),
	}
	s.registerRoutes()
	return s
}

// GetApp exposes the fiber app for tests.
func (s *WebhookServer) GetApp() *fiber.App {
	return s.app
}

func (s *WebhookServer) registerRoutes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendString("ok")
	})
	s.app.Post(s.cfg.Path, s.receive)
}

func (s *WebhookServer) receive(c *fiber.Ctx) error {
	if s.cfg.SecretToken != "" {
		got := c.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.cfg.SecretToken)) != 1 {
			s.logger.Warn("reject webhook call with bad secret", "ip", c.IP())
			return c.SendStatus(fiber.StatusUnauthorized)
		}
	}

	var update Update
	if err := json.Unmarshal(c.Body(), &update); err != nil {
		s.logger.Warn("decode update", "error", err)
		return c.SendStatus(fiber.StatusBadRequest)
	}

	// Reply at once; Telegram redelivers updates that are not acknowledged quickly.
	// Updates of one principal still run in the order they were received.
	s.queue.Go(senderID(update), func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("handler panic", "update_id", update.UpdateID, "panic", r)
			}
		}()
		Dispatch(s.base, s.handler, update)
	})
	return c.SendStatus(fiber.StatusOK)
}

// Run serves until ctx is cancelled, then drains in-flight handlers.
func (s *WebhookServer) Run(ctx context.Context) error {
	s.base = context.WithoutCancel(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("webhook listening", "addr", s.cfg.Listen, "path", s.cfg.Path)
		errCh <- s.app.Listen(s.cfg.Listen)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := s.app.ShutdownWithTimeout(10 * time.Second); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("webhook shutdown", "error", err)
	}
	s.queue.Wait()
	return nil
}

// Wait blocks until dispatched updates are handled.
func (s *WebhookServer) Wait() {
	s.queue.Wait()
}
