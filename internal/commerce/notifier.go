package commerce

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/metrics"
)

type NotificationInput struct {
	Type        NotificationType
	RecipientID string
	ActorID     string
	PostID      string
	SaleID      string
	Timestamp   time.Time // zero means now
}

// Notifier is the single entry point for creating notifications. It owns the
// self-notification rule: nothing is written when recipient and actor match.
type Notifier struct {
	Deps
}

func NewNotifier(d Deps) *Notifier {
	return &Notifier{Deps: d.withDefaults()}
}

// Create appends one notification in its own transaction. The bool is false
// when the notification was suppressed.
func (n *Notifier) Create(ctx context.Context, in NotificationInput) (Notification, bool, error) {
	if in.Type == "" || in.RecipientID == "" {
		return Notification{}, false, apperr.BadRequest("notification type and recipient are required", nil)
	}
	var (
		note    Notification
		created bool
	)
	err := n.run(ctx, func(ctx context.Context, tx Tx, ob *outbox) error {
		var err error
		note, created, err = n.create(ctx, tx, ob, in)
		return err
	})
	if err != nil {
		return Notification{}, false, wrapInternal("create notification", err)
	}
	return note, created, nil
}

func (n *Notifier) create(ctx context.Context, tx Tx, ob *outbox, in NotificationInput) (Notification, bool, error) {
	if in.RecipientID == in.ActorID {
		ob.onCommit(func() { metrics.NotificationsSuppressed.WithLabelValues(string(in.Type)).Inc() })
		return Notification{}, false, nil
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = n.Now()
	}
	note := Notification{
		ID:          "notif-" + uuid.NewString(),
		Type:        in.Type,
		RecipientID: in.RecipientID,
		ActorID:     in.ActorID,
		PostID:      in.PostID,
		SaleID:      in.SaleID,
		Timestamp:   ts,
		IsRead:      false,
	}
	if err := tx.InsertNotification(ctx, note); err != nil {
		return Notification{}, false, fmt.Errorf("insert notification: %w", err)
	}
	if err := ob.add(TopicNotificationCreated, EventNotificationCreated, note.RecipientID,
		NotificationCreatedPayload{Notification: note}); err != nil {
		return Notification{}, false, err
	}
	ob.onCommit(func() { metrics.NotificationsCreated.WithLabelValues(string(note.Type)).Inc() })
	return note, true, nil
}

// ForUser returns every notification addressed to userID, newest first.
func (n *Notifier) ForUser(ctx context.Context, userID string) ([]Notification, error) {
	var out []Notification
	err := n.run(ctx, func(ctx context.Context, tx Tx, _ *outbox) error {
		var err error
		out, err = tx.Notifications(ctx, userID)
		return err
	})
	if err != nil {
		return nil, wrapInternal("list notifications", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// MarkRead flips every unread notification of userID and returns how many changed.
func (n *Notifier) MarkRead(ctx context.Context, userID string) (int, error) {
	var changed int
	err := n.run(ctx, func(ctx context.Context, tx Tx, _ *outbox) error {
		var err error
		changed, err = tx.MarkNotificationsRead(ctx, userID)
		return err
	})
	if err != nil {
		return 0, wrapInternal("mark notifications read", err)
	}
	return changed, nil
}

func (n *Notifier) UnreadCount(ctx context.Context, userID string) (int, error) {
	notes, err := n.ForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	unread := 0
	for _, note := range notes {
		if !note.IsRead {
			unread++
		}
	}
	return unread, nil
}
