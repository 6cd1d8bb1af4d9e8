// Package workers consumes tab events from the queue and feeds them to the tracker.
package workers

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/queue"
	"github.com/benvon/sitetime/internal/tracker"
	"go.uber.org/zap"
)

// EventHandler is the tracker surface the processor drives
type EventHandler interface {
	Handle(ctx context.Context, event *models.TabEvent) error
}

// EventConsumer delivers tab events from the broker
type EventConsumer interface {
	ConsumeEvents(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error)
}

var _ EventHandler = (*tracker.Tracker)(nil)

// EventProcessor applies queued tab events to the tracker in delivery order
type EventProcessor struct {
	handler EventHandler
	logger  *zap.Logger
}

// NewEventProcessor creates a new event processor
func NewEventProcessor(handler EventHandler, log *zap.Logger) *EventProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &EventProcessor{handler: handler, logger: log}
}

// ProcessMessage applies one event and settles the message. Failed events are
// nacked without requeue so they land in the dead letter queue.
func (p *EventProcessor) ProcessMessage(ctx context.Context, msg queue.MessageInterface) error {
	event := msg.GetEvent()
	if event == nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_message", zap.Error(nackErr))
		}
		return fmt.Errorf("message carries no tab event")
	}

	if err := p.handler.Handle(ctx, event); err != nil {
		if nackErr := msg.Nack(false); nackErr != nil {
			p.logger.Warn("failed_to_nack_message", zap.Error(nackErr))
		}
		if errors.Is(err, tracker.ErrUnknownEvent) {
			return fmt.Errorf("unprocessable event %s: %w", event.ID, err)
		}
		return fmt.Errorf("failed to handle event %s: %w", event.ID, err)
	}

	if ackErr := msg.Ack(); ackErr != nil {
		return fmt.Errorf("failed to ack event: %w", ackErr)
	}
	p.logger.Debug("tab_event_processed",
		zap.String("event_id", event.ID.String()),
		zap.String("type", string(event.Type)),
	)
	return nil
}

// Run consumes events until ctx is canceled or the delivery channel closes.
// prefetch should be 1: the tracker depends on strict event ordering.
func (p *EventProcessor) Run(ctx context.Context, consumer EventConsumer, prefetch int) error {
	msgChan, errChan, err := consumer.ConsumeEvents(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to consume events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			p.logger.Error("event_queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				return fmt.Errorf("event delivery channel closed")
			}
			if err := p.ProcessMessage(ctx, msg); err != nil {
				p.logger.Error("failed_to_process_event", zap.Error(err))
			}
		}
	}
}
