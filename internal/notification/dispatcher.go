package notification

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/defense-allocation-api/internal/models"
	"github.com/noah-isme/defense-allocation-api/pkg/jobs"
)

// DefaultSendTimeout bounds a single channel delivery.
const DefaultSendTimeout = 30 * time.Second

type contactReader interface {
	FindContact(ctx context.Context, studentID string) (*models.StudentContact, error)
}

type outcomeRecorder interface {
	RecordNotification(channel, outcome string)
}

// DispatcherConfig tunes delivery. LookupRetries re-runs a queued delivery
// whose contact lookup failed for a reason other than a missing student.
type DispatcherConfig struct {
	SendTimeout      time.Duration
	Workers          int
	BufferSize       int
	LookupRetries    int
	LookupRetryDelay time.Duration
}

// Dispatcher delivers defense notifications on the message and email channels.
// Delivery is best effort: failures are logged and reported as Results, never
// returned to the publisher.
type Dispatcher struct {
	contacts contactReader
	renderer *Renderer
	messages MessageSender
	emails   EmailSender
	retry    RetryStore
	metrics  outcomeRecorder
	logger   *zap.Logger
	timeout  time.Duration

	queue    *jobs.Queue[Event]
	inflight sync.WaitGroup
}

// NewDispatcher wires a dispatcher. messages, emails, retry and metrics may be nil.
func NewDispatcher(
	contacts contactReader,
	renderer *Renderer,
	messages MessageSender,
	emails EmailSender,
	retry RetryStore,
	metrics outcomeRecorder,
	logger *zap.Logger,
	cfg DispatcherConfig,
) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = NewRenderer("", nil)
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}

	d := &Dispatcher{
		contacts: contacts,
		renderer: renderer,
		messages: messages,
		emails:   emails,
		retry:    retry,
		metrics:  metrics,
		logger:   logger,
		timeout:  cfg.SendTimeout,
	}
	d.queue = jobs.NewQueue[Event]("notifications", func(ctx context.Context, job jobs.Job[Event]) error {
		_, err := d.deliver(ctx, job.Payload)
		return err
	}, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.LookupRetries,
		RetryDelay: cfg.LookupRetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop halts the workers, delivers what is still buffered and waits for
// overflow deliveries to finish.
func (d *Dispatcher) Stop() {
	d.queue.Stop()
	d.inflight.Wait()
}

// Publish hands the event to the workers without blocking. When the queue is
// not running or full the event is delivered on its own goroutine.
func (d *Dispatcher) Publish(event Event) {
	err := d.queue.TryEnqueue(jobs.Job[Event]{ID: event.Defense.ID, Payload: event})
	if err == nil {
		return
	}
	d.logger.Debug("notification queue unavailable, delivering inline", zap.String("defense_id", event.Defense.ID), zap.Error(err))

	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		d.Deliver(context.Background(), event)
	}()
}

// Deliver sends the event on both channels concurrently and reports each outcome.
func (d *Dispatcher) Deliver(ctx context.Context, event Event) []Result {
	results, _ := d.deliver(ctx, event)
	return results
}

// deliver returns an error only when the contact lookup failed in a way a
// later attempt may not.
func (d *Dispatcher) deliver(ctx context.Context, event Event) ([]Result, error) {
	log := d.logger.With(zap.String("defense_id", event.Defense.ID), zap.String("purpose", string(event.Purpose)))

	if d.contacts == nil {
		log.Warn("notification skipped: no contact source")
		return nil, nil
	}
	contact, err := d.contacts.FindContact(ctx, event.Defense.StudentID)
	if err != nil {
		log.Warn("notification skipped: contact lookup failed", zap.String("student_id", event.Defense.StudentID), zap.Error(err))
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find contact of student %s: %w", event.Defense.StudentID, err)
	}

	name := contact.FullName
	if name == "" {
		name = event.Defense.StudentName
	}
	msg := d.renderer.Render(event, name)

	results := make([]Result, 2)
	var g errgroup.Group
	g.Go(func() error {
		results[0] = d.sendMessage(ctx, log, valueOf(contact.Phone), msg)
		return nil
	})
	g.Go(func() error {
		results[1] = d.sendEmail(ctx, log, valueOf(contact.Email), msg)
		return nil
	})
	_ = g.Wait()
	return results, nil
}

func (d *Dispatcher) sendMessage(ctx context.Context, log *zap.Logger, recipient string, msg Message) Result {
	result := Result{Channel: ChannelMessage}
	if recipient == "" || d.messages == nil {
		log.Info("message notification skipped", zap.Bool("has_recipient", recipient != ""))
		result.Skipped = true
		d.record(result)
		return result
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.messages.SendMessage(sendCtx, recipient, msg.Text); err != nil {
		result.Err = err
		log.Warn("message notification failed", zap.String("recipient", recipient), zap.Error(err))
		if d.retry != nil && !errors.Is(err, ErrInvalidRecipient) {
			payload := RetryPayload{Recipient: recipient, Text: msg.Text, Attempts: 1}
			if pushErr := d.retry.Push(context.WithoutCancel(ctx), payload); pushErr != nil {
				log.Error("failed to queue message for retry", zap.Error(pushErr))
			} else {
				result.Queued = true
			}
		}
		d.record(result)
		return result
	}
	result.Sent = true
	d.record(result)
	return result
}

func (d *Dispatcher) sendEmail(ctx context.Context, log *zap.Logger, to string, msg Message) Result {
	result := Result{Channel: ChannelEmail}
	if to == "" || d.emails == nil {
		log.Info("email notification skipped", zap.Bool("has_recipient", to != ""))
		result.Skipped = true
		d.record(result)
		return result
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.emails.SendEmail(sendCtx, to, msg); err != nil {
		result.Err = err
		log.Warn("email notification failed", zap.String("to", to), zap.Error(err))
		d.record(result)
		return result
	}
	result.Sent = true
	d.record(result)
	return result
}

func (d *Dispatcher) record(r Result) {
	if d.metrics == nil {
		return
	}
	outcome := "sent"
	switch {
	case r.Skipped:
		outcome = "skipped"
	case r.Queued:
		outcome = "queued"
	case r.Err != nil:
		outcome = "failed"
	}
	d.metrics.RecordNotification(string(r.Channel), outcome)
}

func valueOf(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
