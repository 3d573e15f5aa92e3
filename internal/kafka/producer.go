package kafka

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

// Producer writes messages from an in-memory inbox on a single goroutine.
// Each message names its own topic.
type Producer struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     *slog.Logger

	mu     sync.RWMutex // guards closed and the close of inbox
	closed bool
}

// ErrProducerClosed is returned by Publish after Close.
var ErrProducerClosed = errors.New("kafka producer closed")

func NewProducer(brokers []string, buf int, log *slog.Logger) *Producer {
	if log == nil {
		log = slog.Default()
	}
	return &Producer{
		w: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

// Start runs the write loop until ctx is done or Close is called, then
// flushes what is left in the inbox.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				p.drain()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *Producer) drain() {
	for {
		select {
		case m, ok := <-p.inbox:
			if !ok {
				_ = p.w.Close()
				return
			}
			p.write(m)
		default:
			_ = p.w.Close()
			return
		}
	}
}

func (p *Producer) write(m kafka.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.w.WriteMessages(ctx, m); err != nil {
		metrics.EventsPublished.WithLabelValues(m.Topic, "write_error").Inc()
		p.log.Error("kafka write failed", "topic", m.Topic, "key", string(m.Key), "error", err)
	}
}

// Publish queues m. It blocks while the inbox is full and gives up when ctx
// ends. It is safe to call concurrently with Close.
func (p *Producer) Publish(ctx context.Context, m kafka.Message) error {
	if m.Time.IsZero() {
		m.Time = time.Now()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrProducerClosed
	}
	select {
	case p.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closeCh:
		return ErrProducerClosed
	}
}

// Close stops accepting messages; the write loop flushes the rest and exits.
// Calling it more than once is harmless.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.inbox)
	}
}

// WaitClosed blocks until the write loop exited.
func (p *Producer) WaitClosed() { <-p.closeCh }
