package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	appoutbox "carhire/internal/app/outbox"
)

// Outbox keeps events in memory until flushed. With a Producer set, Flush
// publishes them as CloudEvents; records that fail stay queued for the next flush.
type Outbox struct {
	Producer    appoutbox.Producer
	TopicPrefix string
	Source      string
	Logger      *slog.Logger

	mu      sync.Mutex
	records []appoutbox.EventRecord
}

func NewOutbox() *Outbox {
	return &Outbox{Source: "carhire"}
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	o.records = nil
	o.mu.Unlock()
	if o.Producer == nil || len(pending) == 0 {
		return nil
	}

	var failed []appoutbox.EventRecord
	var errs []error
	for _, rec := range pending {
		payload, headers, err := appoutbox.Envelope(rec, o.Source)
		if err != nil {
			// Undecodable payloads are never retried.
			errs = append(errs, err)
			continue
		}
		topic := appoutbox.TopicFor(o.TopicPrefix, rec.Name)
		if err := o.Producer.Publish(ctx, topic, rec.Aggregate, payload, headers); err != nil {
			failed = append(failed, rec)
			errs = append(errs, err)
		}
	}
	if len(failed) > 0 {
		o.mu.Lock()
		o.records = append(failed, o.records...)
		o.mu.Unlock()
	}
	if err := errors.Join(errs...); err != nil && o.Logger != nil {
		o.Logger.Warn("outbox flush incomplete", "failed", len(failed), "error", err)
	}
	return nil
}

// Pending returns a copy of the queued records.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
