package queue

import (
	"github.com/benvon/sitetime/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Message wraps a decoded payload with its RabbitMQ delivery information
type Message struct {
	Event       *models.TabEvent
	Command     *models.NavigateCommand
	DeliveryTag uint64
	Channel     *amqp.Channel
}

var _ MessageInterface = (*Message)(nil)

// Ack acknowledges the message
func (m *Message) Ack() error {
	return m.Channel.Ack(m.DeliveryTag, false)
}

// Nack negatively acknowledges the message
func (m *Message) Nack(requeue bool) error {
	return m.Channel.Nack(m.DeliveryTag, false, requeue)
}

// GetEvent returns the tab event carried by the message
func (m *Message) GetEvent() *models.TabEvent {
	return m.Event
}

// GetCommand returns the navigate command carried by the message
func (m *Message) GetCommand() *models.NavigateCommand {
	return m.Command
}
