package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"pocketplan/internal/amqp"
	"pocketplan/internal/log"
)

// Consumer delivers change messages one at a time until ctx ends.
type Consumer interface {
	ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error
}

// Invalidator drops cached state for the user a message names.
type Invalidator interface {
	Invalidate(ctx context.Context, msg *amqp.ChangeMessage) error
}

var ErrEmptyUser = errors.New("change message has no user")

// Stats counts handled messages.
type Stats struct {
	Processed int64
	Failed    int64
	LastSeen  time.Time
}

// ChangeWorker applies change notifications from other instances to the
// local ledger caches.
type ChangeWorker struct {
	consumer    Consumer
	invalidator Invalidator
	logger      *log.Logger

	processed atomic.Int64
	failed    atomic.Int64
	lastSeen  atomic.Int64
}

func NewChangeWorker(consumer Consumer, invalidator Invalidator, logger *log.Logger) *ChangeWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ChangeWorker{
		consumer:    consumer,
		invalidator: invalidator,
		logger:      logger.WithComponent(log.ComponentAMQP),
	}
}

// HandleChangeMessage processes a single change message from AMQP.
// A returned error makes the broker redeliver it.
func (w *ChangeWorker) HandleChangeMessage(ctx context.Context, msg *amqp.ChangeMessage) error {
	w.lastSeen.Store(time.Now().UnixNano())
	if msg == nil || msg.UserID == "" {
		w.failed.Add(1)
		return ErrEmptyUser
	}

	w.logger.DebugContext(ctx, "Processing change message",
		log.FieldUserID, msg.UserID,
		log.FieldCollection, msg.Collection,
		log.FieldRecordID, msg.ID,
		"op", msg.Op)

	if err := w.invalidator.Invalidate(ctx, msg); err != nil {
		w.failed.Add(1)
		return fmt.Errorf("invalidate %s: %w", msg.UserID, err)
	}
	w.processed.Add(1)
	return nil
}

// Run consumes until ctx is cancelled. Cancellation is not an error.
func (w *ChangeWorker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Change worker started")
	err := w.consumer.ConsumeChanges(ctx, w.HandleChangeMessage)
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		w.logger.InfoContext(ctx, "Change worker stopped", "processed", w.processed.Load())
		return nil
	}
	return err
}

func (w *ChangeWorker) Stats() Stats {
	s := Stats{Processed: w.processed.Load(), Failed: w.failed.Load()}
	if ns := w.lastSeen.Load(); ns != 0 {
		s.LastSeen = time.Unix(0, ns)
	}
	return s
}
