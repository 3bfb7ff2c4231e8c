package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/devansh728/BYVS/internal/logger"
	"github.com/devansh728/BYVS/internal/models"
)

// SendTimeout bounds one delivery attempt.
const SendTimeout = 15 * time.Second

// Sender delivers one SMS.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Dispatcher delivers messages on background workers. Delivery is best
// effort: a full queue drops the message and send errors are only logged.
type Dispatcher struct {
	sender  Sender
	workers int
	queue   chan models.Message
	log     *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(sender Sender, workers, queueSize int, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		workers: workers,
		queue:   make(chan models.Message, queueSize),
		log:     log.With(logger.Module("jobs.delivery")),
	}
}

// Start launches the worker goroutines.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	d.log.Info("delivery workers started", slog.Int("workers", d.workers))
}

// Enqueue never blocks. It returns false when the message was dropped.
func (d *Dispatcher) Enqueue(msg models.Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.log.Warn("message dropped, dispatcher stopped", slog.String("kind", string(msg.Kind)))
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.log.Warn("message dropped, queue full",
			slog.String("kind", string(msg.Kind)),
			logger.Secret("to", msg.To),
		)
		return false
	}
}

// Stop closes the queue and waits for the workers to drain it or for ctx
// to end, whichever comes first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.log.Info("delivery workers stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), SendTimeout)
	defer cancel()

	log := d.log.With(slog.String("kind", string(msg.Kind)), logger.Secret("to", msg.To))
	if err := d.sender.SendSMS(ctx, msg.To, msg.Body); err != nil {
		log.Error("message delivery failed", logger.Err(err))
		return
	}
	log.Debug("message delivered")
}
