package mail

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// sendTimeout bounds a single delivery attempt.
const sendTimeout = 30 * time.Second

// Dispatcher queues messages and delivers them from one background worker.
// Enqueue never blocks: when the queue is full the message is dropped and
// logged. Failed deliveries are logged and not retried.
type Dispatcher struct {
	sender    Sender
	logger    *slog.Logger
	queue     chan Message
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	// mu orders Enqueue against Stop: nothing is queued once done is closed.
	mu      sync.Mutex
	stopped bool
}

func NewDispatcher(sender Sender, size int, logger *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = 100
	}
	return &Dispatcher{
		sender: sender,
		logger: logger,
		queue:  make(chan Message, size),
		done:   make(chan struct{}),
	}
}

// Start launches the worker. Calling it more than once is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting mail dispatcher", slog.Int("queueSize", cap(d.queue)))
		d.wg.Add(1)
		go d.worker()
	})
}

// Stop signals the worker, waits for it to deliver what is already queued
// and returns. Messages enqueued after Stop are dropped.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.stopped = true
		close(d.done)
		d.mu.Unlock()

		d.logger.Info("shutting down mail dispatcher", slog.Int("pending", len(d.queue)))
		d.wg.Wait()
	})
}

// Enqueue schedules msg for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.logger.Warn("mail dispatcher stopped, dropping message", slog.String("to", msg.To))
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("mail queue full, dropping message", slog.String("to", msg.To))
		return false
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case msg := <-d.queue:
			d.deliver(msg)
		case <-d.done:
			// Drain whatever is still queued.
			for {
				select {
				case msg := <-d.queue:
					d.deliver(msg)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("failed to send mail",
			slog.String("to", msg.To),
			slog.String("subject", msg.Subject),
			slog.String("error", err.Error()),
		)
		return
	}
	d.logger.Debug("mail sent", slog.String("to", msg.To))
}
