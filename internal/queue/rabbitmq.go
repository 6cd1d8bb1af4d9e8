package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benvon/sitetime/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultEventQueueName is the queue the tracker worker consumes
	DefaultEventQueueName = "sitetime_tab_events"
	// DefaultDLQName is the dead letter queue for undecodable events
	DefaultDLQName = "sitetime_tab_events_dlq"
	// DefaultCommandQueueName is the queue the HTTP bridge drains redirects from
	DefaultCommandQueueName = "sitetime_commands"
	// DefaultExchangeName is the default exchange name
	DefaultExchangeName = "sitetime"

	// Routing keys
	RoutingKeyEvents   = "events"
	RoutingKeyCommands = "commands"
	RoutingKeyDLQ      = "dlq"
)

// RabbitMQQueue implements EventQueue using RabbitMQ
type RabbitMQQueue struct {
	conn             *amqp.Connection
	channel          *amqp.Channel
	publishMu        sync.Mutex
	eventQueueName   string
	dlqName          string
	commandQueueName string
	exchangeName     string
	commandTTL       time.Duration
}

var _ EventQueue = (*RabbitMQQueue)(nil)

// NewRabbitMQQueue creates a new RabbitMQ queue
func NewRabbitMQQueue(amqpURL string) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	queue := &RabbitMQQueue{
		conn:             conn,
		channel:          ch,
		eventQueueName:   DefaultEventQueueName,
		dlqName:          DefaultDLQName,
		commandQueueName: DefaultCommandQueueName,
		exchangeName:     DefaultExchangeName,
		commandTTL:       DefaultCommandTTL,
	}

	if err := queue.setup(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to setup queues: %w", err)
	}

	return queue, nil
}

// SetCommandTTL sets how long a published redirect stays deliverable
func (q *RabbitMQQueue) SetCommandTTL(ttl time.Duration) {
	if ttl > 0 {
		q.commandTTL = ttl
	}
}

// setup configures the exchange and queues
func (q *RabbitMQQueue) setup() error {
	err := q.channel.ExchangeDeclare(
		q.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	if err := q.declareAndBind(q.dlqName, RoutingKeyDLQ, nil); err != nil {
		return err
	}

	eventArgs := amqp.Table{
		"x-dead-letter-exchange":    q.exchangeName,
		"x-dead-letter-routing-key": RoutingKeyDLQ,
	}
	if err := q.declareAndBind(q.eventQueueName, RoutingKeyEvents, eventArgs); err != nil {
		return err
	}

	return q.declareAndBind(q.commandQueueName, RoutingKeyCommands, nil)
}

func (q *RabbitMQQueue) declareAndBind(name, routingKey string, args amqp.Table) error {
	_, err := q.channel.QueueDeclare(
		name,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		args,
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", name, err)
	}

	if err := q.channel.QueueBind(name, routingKey, q.exchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", name, err)
	}
	return nil
}

// PublishEvent sends a tab event to the tracker worker
func (q *RabbitMQQueue) PublishEvent(ctx context.Context, event *models.TabEvent) error {
	publishing, err := eventPublishing(event)
	if err != nil {
		return err
	}
	if err := q.publish(ctx, RoutingKeyEvents, publishing); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// PublishCommand sends a redirect command on the commands routing key
func (q *RabbitMQQueue) PublishCommand(ctx context.Context, cmd *models.NavigateCommand) error {
	publishing, err := commandPublishing(cmd, q.commandTTL)
	if err != nil {
		return err
	}
	if err := q.publish(ctx, RoutingKeyCommands, publishing); err != nil {
		return fmt.Errorf("failed to publish command: %w", err)
	}
	return nil
}

func (q *RabbitMQQueue) publish(ctx context.Context, routingKey string, publishing amqp.Publishing) error {
	q.publishMu.Lock()
	defer q.publishMu.Unlock()

	return q.channel.PublishWithContext(
		ctx,
		q.exchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		publishing,
	)
}

// ConsumeEvents returns a channel of tab events using async delivery
func (q *RabbitMQQueue) ConsumeEvents(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	return q.consume(ctx, q.eventQueueName, prefetchCount)
}

// ConsumeCommands returns a channel of redirect commands using async delivery
func (q *RabbitMQQueue) ConsumeCommands(ctx context.Context, prefetchCount int) (<-chan *Message, <-chan error, error) {
	return q.consume(ctx, q.commandQueueName, prefetchCount)
}

func (q *RabbitMQQueue) consume(ctx context.Context, queueName string, prefetchCount int) (<-chan *Message, <-chan error, error) {
	// Dedicated channel per consumer so QoS does not affect publishing
	consumeCh, err := q.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create consumer channel: %w", err)
	}

	if prefetchCount < 1 {
		prefetchCount = 1
	}
	if err := consumeCh.Qos(prefetchCount, 0, false); err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := consumeCh.Consume(
		queueName,
		"",    // consumer tag (empty = auto-generate)
		false, // auto-ack (false = manual ack required)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		_ = consumeCh.Close()
		return nil, nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	msgChan := make(chan *Message, prefetchCount)
	errChan := make(chan error, 1)

	go func() {
		defer close(msgChan)
		defer close(errChan)
		defer func() {
			// channel may already be closed with the connection
			_ = consumeCh.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case delivery, ok := <-deliveries:
				if !ok {
					errChan <- fmt.Errorf("delivery channel closed")
					return
				}

				msg, err := decodeMessage(delivery.Type, delivery.Body)
				if err != nil {
					// Invalid message, send to DLQ
					_ = delivery.Nack(false, false)
					select {
					case errChan <- err:
					default:
					}
					continue
				}
				msg.DeliveryTag = delivery.DeliveryTag
				msg.Channel = consumeCh

				select {
				case <-ctx.Done():
					_ = delivery.Nack(false, true)
					return
				case msgChan <- msg:
				}
			}
		}
	}()

	return msgChan, errChan, nil
}

// HealthCheck verifies the connection and publishing channel are open
func (q *RabbitMQQueue) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if q.conn == nil || q.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	if q.channel == nil || q.channel.IsClosed() {
		return fmt.Errorf("rabbitmq channel is closed")
	}
	return nil
}

// Close closes the queue connection
func (q *RabbitMQQueue) Close() error {
	var err error
	if q.channel != nil {
		err = q.channel.Close()
	}
	if q.conn != nil {
		if closeErr := q.conn.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
