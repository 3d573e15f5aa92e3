package kafka

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

// Handler returns nil only when the message was fully processed and its
// offset may be committed.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	workers int
	log     *slog.Logger
}

func NewConsumer(brokers []string, group, topic string, workers int, log *slog.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{r: r, workers: workers, log: log}
}

// Start fetches messages and hands them to a pool of workers until ctx ends.
// A failed message is logged and left uncommitted.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make(chan kafka.Message, 1024)
	errs := make(chan error, c.workers)
	var wg sync.WaitGroup

	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				if err := h(ctx, m); err != nil {
					metrics.EventsConsumed.WithLabelValues(m.Topic, "error").Inc()
					c.log.WarnContext(ctx, "handle message failed",
						"topic", m.Topic, "partition", m.Partition, "offset", m.Offset, "error", err)
					select {
					case errs <- err:
					default:
					}
					continue
				}
				metrics.EventsConsumed.WithLabelValues(m.Topic, "ok").Inc()
				if err := c.r.CommitMessages(ctx, m); err != nil {
					c.log.WarnContext(ctx, "commit offset failed", "topic", m.Topic, "offset", m.Offset, "error", err)
				}
			}
		}()
	}
	stop := func() {
		close(jobs)
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs <- m:
		case <-ctx.Done():
			stop()
			return nil
		}

		select {
		case <-errs:
			time.Sleep(200 * time.Millisecond) // light backoff after a failure
		default:
		}
	}
}
