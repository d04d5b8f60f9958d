package outbox

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	appoutbox "carhire/internal/app/outbox"
)

// Queue is the claim side of the outbox store.
type Queue interface {
	Claim(ctx context.Context, workerID string) (*EventDocument, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Worker struct {
	Store       Queue
	Producer    appoutbox.Producer
	Interval    time.Duration
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.Drain(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				w.logError("outbox claim failed", err)
			}
		}
	}
}

// Drain publishes due records until none is left and reports how many were sent.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	var sent int
	for {
		ok, err := w.processOnce(ctx)
		if err != nil || !ok {
			return sent, err
		}
		sent++
	}
}

// processOnce reports false when nothing was claimed. Publish failures are
// rescheduled and do not stop the drain.
func (w *Worker) processOnce(ctx context.Context) (bool, error) {
	doc, err := w.Store.Claim(ctx, w.ID)
	if err != nil || doc == nil {
		return false, err
	}
	topic := appoutbox.TopicFor(w.TopicPrefix, doc.Name)
	payload, headers, err := appoutbox.Envelope(doc.Record(), w.source())
	if err == nil {
		err = w.Producer.Publish(ctx, topic, doc.Aggregate, payload, headers)
	}
	if err != nil {
		w.logError("outbox publish failed", err, "event_id", doc.ID, "topic", topic, "attempts", doc.Attempts+1)
		if markErr := w.Store.MarkFailed(ctx, doc.ID, w.nextRetry(doc.Attempts), err.Error()); markErr != nil {
			return false, markErr
		}
		return false, nil
	}
	return true, w.Store.MarkSent(ctx, doc.ID)
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if attempts < len(w.Backoff) {
		return now().Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now().Add(w.Backoff[len(w.Backoff)-1])
	}
	return now().Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://carhire"
}

func (w *Worker) logError(msg string, err error, attrs ...any) {
	if w.Logger == nil {
		return
	}
	w.Logger.Error(msg, append([]any{"error", err}, attrs...)...)
}
