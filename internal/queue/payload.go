package queue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/benvon/sitetime/internal/models"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Payload types carried in the AMQP Type property
const (
	PayloadTabEvent        = "tab_event"
	PayloadNavigateCommand = "navigate_command"
)

// DefaultCommandTTL bounds how long an undelivered redirect stays useful
const DefaultCommandTTL = 5 * time.Minute

// eventPublishing builds a persistent publishing for a tab event
func eventPublishing(event *models.TabEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		Type:         PayloadTabEvent,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID.String(),
		Timestamp:    event.ReceivedAt,
	}, nil
}

// commandPublishing builds a publishing for a redirect command. Commands
// expire after ttl since a stale redirect would hit whatever the tab shows now.
func commandPublishing(cmd *models.NavigateCommand, ttl time.Duration) (amqp.Publishing, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal command: %w", err)
	}
	publishing := amqp.Publishing{
		ContentType:  "application/json",
		Type:         PayloadNavigateCommand,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    cmd.ID.String(),
		Timestamp:    cmd.CreatedAt,
	}
	if ttl > 0 {
		publishing.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}
	return publishing, nil
}

// decodeMessage unmarshals body according to payloadType
func decodeMessage(payloadType string, body []byte) (*Message, error) {
	switch payloadType {
	case PayloadTabEvent:
		var event models.TabEvent
		if err := json.Unmarshal(body, &event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event: %w", err)
		}
		return &Message{Event: &event}, nil
	case PayloadNavigateCommand:
		var cmd models.NavigateCommand
		if err := json.Unmarshal(body, &cmd); err != nil {
			return nil, fmt.Errorf("failed to unmarshal command: %w", err)
		}
		return &Message{Command: &cmd}, nil
	default:
		return nil, fmt.Errorf("unknown payload type %q", payloadType)
	}
}
