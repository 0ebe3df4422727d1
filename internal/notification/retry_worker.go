package notification

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type depthRecorder interface {
	SetRetryQueueDepth(depth int64)
}

// RetryWorkerConfig tunes the redelivery loop.
type RetryWorkerConfig struct {
	Interval    time.Duration
	SendTimeout time.Duration
	BatchSize   int
}

// RetryWorker drains the retry store on a fixed interval and re-sends each
// payload through the message channel. Payloads that fail again go back to
// the tail of the store without an attempt cap.
type RetryWorker struct {
	store   RetryStore
	sender  MessageSender
	metrics depthRecorder
	logger  *zap.Logger
	cfg     RetryWorkerConfig

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewRetryWorker constructs a retry worker. metrics is optional.
func NewRetryWorker(store RetryStore, sender MessageSender, metrics depthRecorder, logger *zap.Logger, cfg RetryWorkerConfig) *RetryWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &RetryWorker{store: store, sender: sender, metrics: metrics, logger: logger, cfg: cfg}
}

// Start launches the background loop. Safe to call once.
func (w *RetryWorker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.started = true

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.RunOnce(ctx)
			}
		}
	}()
	w.logger.Info("notification retry worker started", zap.Duration("interval", w.cfg.Interval))
}

// Stop halts the loop and waits for the in-flight pass to finish.
func (w *RetryWorker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.cancel()
	done := w.done
	w.mu.Unlock()
	<-done
	w.logger.Info("notification retry worker stopped")
}

// RunOnce processes at most one batch of queued payloads and returns how many were delivered.
func (w *RetryWorker) RunOnce(ctx context.Context) int {
	delivered := 0
	var failed []RetryPayload

	for i := 0; i < w.cfg.BatchSize; i++ {
		if ctx.Err() != nil {
			break
		}
		payload, err := w.store.Pop(ctx)
		if err != nil {
			w.logger.Warn("failed to read retry queue", zap.Error(err))
			break
		}
		if payload == nil {
			break
		}

		sendCtx, cancel := context.WithTimeout(ctx, w.cfg.SendTimeout)
		err = w.sender.SendMessage(sendCtx, payload.Recipient, payload.Text)
		cancel()
		if err != nil {
			payload.Attempts++
			w.logger.Warn("message redelivery failed", zap.String("recipient", payload.Recipient), zap.Int("attempts", payload.Attempts), zap.Error(err))
			failed = append(failed, *payload)
			continue
		}
		delivered++
	}

	// Requeue after the pass so a failing payload is not retried twice in one tick.
	for _, payload := range failed {
		if err := w.store.Push(context.WithoutCancel(ctx), payload); err != nil {
			w.logger.Error("failed to requeue message", zap.String("recipient", payload.Recipient), zap.Error(err))
		}
	}

	if w.metrics != nil {
		if depth, err := w.store.Len(context.WithoutCancel(ctx)); err == nil {
			w.metrics.SetRetryQueueDepth(depth)
		}
	}
	if delivered > 0 {
		w.logger.Info("queued messages delivered", zap.Int("count", delivered))
	}
	return delivered
}
