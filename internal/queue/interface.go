package queue

import (
	"context"

	"github.com/benvon/sitetime/internal/models"
)

// MessageInterface defines the interface for queue messages
// This enables better testability by allowing mock implementations
type MessageInterface interface {
	Ack() error
	Nack(requeue bool) error
	// GetEvent returns the tab event, nil for command messages
	GetEvent() *models.TabEvent
	// GetCommand returns the navigate command, nil for event messages
	GetCommand() *models.NavigateCommand
}

// EventPublisher sends tab events towards the tracker worker
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.TabEvent) error
}

// CommandPublisher sends redirect commands back towards the extension bridge
type CommandPublisher interface {
	PublishCommand(ctx context.Context, cmd *models.NavigateCommand) error
}

// EventQueue is the transport between the HTTP bridge and the tracker worker
type EventQueue interface {
	EventPublisher
	CommandPublisher

	// ConsumeEvents delivers tab events asynchronously as they arrive.
	// Prefetch controls how many unacknowledged events the consumer can hold;
	// the tracker requires 1 so events are handled strictly in order.
	// The caller is responsible for acknowledging each message.
	ConsumeEvents(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// ConsumeCommands delivers redirect commands published by the worker
	ConsumeCommands(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error)

	// Close closes the queue connection
	Close() error

	// HealthCheck verifies the queue connection is healthy
	HealthCheck(ctx context.Context) error
}
