// Package navigator carries redirect commands from the tracker to the
// extension bridge, either through an in-process outbox or over RabbitMQ.
package navigator

import (
	"context"
	"sync"
	"time"

	"github.com/benvon/sitetime/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultOutboxCapacity bounds how many undelivered commands are kept
const DefaultOutboxCapacity = 100

// Outbox buffers redirect commands until the bridge polls for them. When
// full, the oldest command is dropped.
type Outbox struct {
	mu       sync.Mutex
	pending  []models.NavigateCommand
	capacity int
	ttl      time.Duration
	notify   chan struct{}
	logger   *zap.Logger
	now      func() time.Time
}

// NewOutbox creates an outbox. Commands older than ttl are discarded on
// drain; a zero ttl keeps them until drained.
func NewOutbox(capacity int, ttl time.Duration, log *zap.Logger) *Outbox {
	if capacity <= 0 {
		capacity = DefaultOutboxCapacity
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Outbox{
		pending:  make([]models.NavigateCommand, 0, capacity),
		capacity: capacity,
		ttl:      ttl,
		notify:   make(chan struct{}, 1),
		logger:   log,
		now:      time.Now,
	}
}

// Redirect queues a command pointing tabID at url
func (o *Outbox) Redirect(ctx context.Context, tabID int, url, reason string) error {
	return o.Push(models.NavigateCommand{
		ID:        uuid.New(),
		TabID:     tabID,
		URL:       url,
		Reason:    reason,
		CreatedAt: o.now(),
	})
}

// Push queues an already built command
func (o *Outbox) Push(cmd models.NavigateCommand) error {
	o.mu.Lock()
	if len(o.pending) >= o.capacity {
		dropped := o.pending[0]
		o.pending = o.pending[1:]
		o.logger.Warn("outbox_command_dropped",
			zap.String("command_id", dropped.ID.String()),
			zap.Int("tab_id", dropped.TabID),
		)
	}
	o.pending = append(o.pending, cmd)
	o.mu.Unlock()

	select {
	case o.notify <- struct{}{}:
	default:
	}
	return nil
}

// Drain removes and returns up to limit pending commands, oldest first.
// A limit <= 0 drains everything.
func (o *Outbox) Drain(limit int) []models.NavigateCommand {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.expireLocked()
	n := len(o.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.NavigateCommand, n)
	copy(out, o.pending[:n])
	o.pending = append(o.pending[:0], o.pending[n:]...)
	return out
}

// Wait drains pending commands, blocking up to wait for the first one
func (o *Outbox) Wait(ctx context.Context, wait time.Duration, limit int) []models.NavigateCommand {
	if cmds := o.Drain(limit); len(cmds) > 0 || wait <= 0 {
		return cmds
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return []models.NavigateCommand{}
		case <-timer.C:
			return o.Drain(limit)
		case <-o.notify:
			// a stale signal may arrive after its command was already drained
			if cmds := o.Drain(limit); len(cmds) > 0 {
				return cmds
			}
		}
	}
}

// Pending returns the number of queued commands
func (o *Outbox) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// expireLocked drops commands older than ttl; o.mu must be held
func (o *Outbox) expireLocked() {
	if o.ttl <= 0 {
		return
	}
	cutoff := o.now().Add(-o.ttl)
	kept := o.pending[:0]
	for _, cmd := range o.pending {
		if cmd.CreatedAt.After(cutoff) {
			kept = append(kept, cmd)
		}
	}
	o.pending = kept
}
