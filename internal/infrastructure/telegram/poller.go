package telegram

import (
	"context"
	"log/slog"
	"time"

	"ArticlesBot/internal/ports"
)

// UpdateSource fetches updates by long polling.
type UpdateSource interface {
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error)
}

// Poller pulls updates and dispatches them. Updates of one principal are
// handled in arrival order; different principals are handled concurrently.
type Poller struct {
	source  UpdateSource
	handler ports.EventHandler
	timeout time.Duration
	backoff time.Duration
	logger  *slog.Logger
	queue   *sequencer
}

// NewPoller wires the update source to the event handler.
func NewPoller(source UpdateSource, handler ports.EventHandler, timeout time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		source:  source,
		handler: handler,
		timeout: timeout,
		backoff: 3 * time.Second,
		logger:  logger.With("component", "poller"),
		queue:   newSequencer(),
	}
}

// Run polls until ctx is cancelled, then waits for in-flight handlers.
// Handlers keep running to completion after cancellation.
func (p *Poller) Run(ctx context.Context) error {
	defer p.queue.Wait()

	handlerCtx := context.WithoutCancel(ctx)
	var offset int64
	for {
		updates, err := p.source.GetUpdates(ctx, offset, p.timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("get updates", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(p.backoff):
			}
			continue
		}

		for _, update := range updates {
			offset = max(offset, update.UpdateID+1)
			p.queue.Go(senderID(update), func() {
				p.dispatch(handlerCtx, update)
			})
		}
	}
}

func (p *Poller) dispatch(ctx context.Context, update Update) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("handler panic", "update_id", update.UpdateID, "panic", r)
		}
	}()
	if !Dispatch(ctx, p.handler, update) {
		p.logger.Debug("skip update", "update_id", update.UpdateID)
	}
}
