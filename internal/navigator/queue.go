package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/sitetime/internal/models"
	"github.com/benvon/sitetime/internal/queue"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// QueueNavigator publishes redirect commands on the commands routing key
type QueueNavigator struct {
	publisher queue.CommandPublisher
}

// NewQueueNavigator creates a navigator backed by publisher
func NewQueueNavigator(publisher queue.CommandPublisher) *QueueNavigator {
	return &QueueNavigator{publisher: publisher}
}

// Redirect publishes a command pointing tabID at url
func (n *QueueNavigator) Redirect(ctx context.Context, tabID int, url, reason string) error {
	cmd := &models.NavigateCommand{
		ID:        uuid.New(),
		TabID:     tabID,
		URL:       url,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	if err := n.publisher.PublishCommand(ctx, cmd); err != nil {
		return fmt.Errorf("failed to publish redirect: %w", err)
	}
	return nil
}

// CommandConsumer is the consuming side of the commands queue
type CommandConsumer interface {
	ConsumeCommands(ctx context.Context, prefetchCount int) (<-chan *queue.Message, <-chan error, error)
}

// Relay moves commands published by the worker into the local outbox so
// the bridge can poll them from the HTTP server. It returns when ctx is
// canceled or the delivery channel closes.
func Relay(ctx context.Context, consumer CommandConsumer, outbox *Outbox, prefetch int, log *zap.Logger) error {
	msgChan, errChan, err := consumer.ConsumeCommands(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to consume commands: %w", err)
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
			log.Error("command_relay_queue_error", zap.Error(err))
		case msg, ok := <-msgChan:
			if !ok {
				return fmt.Errorf("command delivery channel closed")
			}
			deliver(msg, outbox, log)
		}
	}
}

// deliver pushes one message into the outbox and settles it
func deliver(msg queue.MessageInterface, outbox *Outbox, log *zap.Logger) {
	cmd := msg.GetCommand()
	if cmd == nil {
		log.Warn("command_relay_unexpected_payload")
		if err := msg.Nack(false); err != nil {
			log.Warn("command_relay_nack_failed", zap.Error(err))
		}
		return
	}

	if err := outbox.Push(*cmd); err != nil {
		log.Error("command_relay_push_failed", zap.Error(err))
		if nackErr := msg.Nack(true); nackErr != nil {
			log.Warn("command_relay_nack_failed", zap.Error(nackErr))
		}
		return
	}
	if err := msg.Ack(); err != nil {
		log.Warn("command_relay_ack_failed", zap.Error(err))
	}
}
