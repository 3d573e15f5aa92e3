// Package dispatch reacts to completed purchases by moving tracked physical
// sales from WAITLIST to SHIPPING.
package dispatch

import (
	"context"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
	kafkax "github.com/ariefcatur/cyberphone-ledger/internal/kafka"
)

// Dedup remembers handled event ids.
type Dedup interface {
	Seen(ctx context.Context, id string) (bool, error)
	Mark(ctx context.Context, id string) error
}

type Service struct {
	Fulfillment *commerce.Fulfillment
	Dedup       Dedup
	Log         *slog.Logger
}

// HandlePurchaseCompleted is installed as the consumer handler. Returning an
// error leaves the offset uncommitted so the message is redelivered.
func (s *Service) HandlePurchaseCompleted(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		s.Log.WarnContext(ctx, "dropping undecodable message", "offset", m.Offset, "error", err)
		return nil
	}
	if env.EventType != commerce.EventPurchaseCompleted {
		return nil
	}

	seen, err := s.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	p, err := kafkax.UnwrapPayload[commerce.PurchaseCompletedPayload](env.Payload)
	if err != nil {
		s.Log.WarnContext(ctx, "dropping bad payload", "event_id", env.EventID, "error", err)
		return nil
	}

	ids := make([]string, 0, len(p.Lines))
	for _, l := range p.Lines {
		if l.Status == commerce.StatusWaitlist {
			ids = append(ids, l.SaleID)
		}
	}
	if len(ids) > 0 {
		moved, err := s.Fulfillment.Dispatch(ctx, ids)
		if err != nil {
			return err
		}
		s.Log.InfoContext(ctx, "sales dispatched",
			"purchase_id", p.PurchaseID, "moved", len(moved), "waitlisted", len(ids), "trace_id", env.TraceID)
	}
	return s.Dedup.Mark(ctx, env.EventID)
}
