package worker

import (
	"context"
	"errors"
	"testing"

	"pocketplan/internal/amqp"
)

type fakeInvalidator struct {
	users []string
	err   error
}

func (f *fakeInvalidator) Invalidate(ctx context.Context, msg *amqp.ChangeMessage) error {
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, msg.UserID)
	return nil
}

type fakeConsumer struct {
	msgs []*amqp.ChangeMessage
	errs []error
}

func (f *fakeConsumer) ConsumeChanges(ctx context.Context, handler func(context.Context, *amqp.ChangeMessage) error) error {
	for _, m := range f.msgs {
		f.errs = append(f.errs, handler(ctx, m))
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestHandleChangeMessage(t *testing.T) {
	inv := &fakeInvalidator{}
	w := NewChangeWorker(nil, inv, nil)

	msg := amqp.NewChangeMessage("u-1", "transactions", amqp.OpCreated, "t-1")
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleChangeMessage: %v", err)
	}
	// Redelivery is harmless.
	if err := w.HandleChangeMessage(context.Background(), msg); err != nil {
		t.Fatalf("redelivered message: %v", err)
	}
	if len(inv.users) != 2 || inv.users[0] != "u-1" {
		t.Fatalf("unexpected invalidations %v", inv.users)
	}

	if err := w.HandleChangeMessage(context.Background(), &amqp.ChangeMessage{}); !errors.Is(err, ErrEmptyUser) {
		t.Fatalf("expected ErrEmptyUser, got %v", err)
	}

	stats := w.Stats()
	if stats.Processed != 2 || stats.Failed != 1 || stats.LastSeen.IsZero() {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestHandleChangeMessageInvalidatorError(t *testing.T) {
	boom := errors.New("boom")
	w := NewChangeWorker(nil, &fakeInvalidator{err: boom}, nil)
	err := w.HandleChangeMessage(context.Background(), amqp.NewChangeMessage("u-1", "goals", amqp.OpDeleted, "g-1"))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped invalidator error, got %v", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	inv := &fakeInvalidator{}
	consumer := &fakeConsumer{msgs: []*amqp.ChangeMessage{
		amqp.NewChangeMessage("u-1", "profiles", amqp.OpUpdated, "u-1"),
		amqp.NewChangeMessage("u-2", "goals", amqp.OpCreated, "g-9"),
	}}
	w := NewChangeWorker(consumer, inv, nil)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()

	for w.Stats().Processed < 2 {
		select {
		case err := <-errc:
			t.Fatalf("Run returned early: %v", err)
		default:
		}
	}
	cancel()
	if err := <-errc; err != nil {
		t.Fatalf("Run after cancel: %v", err)
	}
	if len(inv.users) != 2 || inv.users[1] != "u-2" {
		t.Fatalf("unexpected invalidations %v", inv.users)
	}
}
