package commerce_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
	"github.com/ariefcatur/cyberphone-ledger/internal/commerce"
)

func TestNotifier_Create(t *testing.T) {
	e := newEnv(t, commerce.PolicyPlatformFee, commerce.ModeImmediate)
	ctx := context.Background()

	note, created, err := e.notifier.Create(ctx, commerce.NotificationInput{
		Type: commerce.NotifyLike, RecipientID: "u1", ActorID: "u2", PostID: "post-9",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Contains(t, note.ID, "notif-")
	assert.False(t, note.Timestamp.IsZero())
	assert.Equal(t, "post-9", note.PostID)

	evs := e.pub.byTopic(commerce.TopicNotificationCreated)
	require.Len(t, evs, 1)
	assert.Equal(t, "u1", evs[0].Key)
	assert.Equal(t, commerce.EventNotificationCreated, evs[0].Envelope.EventType)
}

func TestNotifier_SuppressesSelfNotification(t *testing.T) {
	e := newEnv(t, commerce.PolicyPlatformFee, commerce.ModeImmediate)

	_, created, err := e.notifier.Create(context.Background(), commerce.NotificationInput{
		Type: commerce.NotifyComment, RecipientID: "u1", ActorID: "u1",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, e.notes(t, "u1"))
	assert.Empty(t, e.pub.topics())
}

func TestNotifier_RequiresTypeAndRecipient(t *testing.T) {
	e := newEnv(t, commerce.PolicyPlatformFee, commerce.ModeImmediate)
	_, _, err := e.notifier.Create(context.Background(), commerce.NotificationInput{RecipientID: "u1"})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
	_, _, err = e.notifier.Create(context.Background(), commerce.NotificationInput{Type: commerce.NotifyLike})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))
}

func TestNotifier_ReadState(t *testing.T) {
	e := newEnv(t, commerce.PolicyPlatformFee, commerce.ModeImmediate)
	ctx := context.Background()
	for _, typ := range []commerce.NotificationType{commerce.NotifyLike, commerce.NotifyReaction, commerce.NotifyPostIndication} {
		_, _, err := e.notifier.Create(ctx, commerce.NotificationInput{Type: typ, RecipientID: "u1", ActorID: "u2"})
		require.NoError(t, err)
	}
	_, _, err := e.notifier.Create(ctx, commerce.NotificationInput{Type: commerce.NotifyLike, RecipientID: "u3", ActorID: "u2"})
	require.NoError(t, err)

	notes := e.notes(t, "u1")
	require.Len(t, notes, 3)
	assert.Equal(t, commerce.NotifyPostIndication, notes[0].Type, "newest first")
	assert.Equal(t, commerce.NotifyLike, notes[2].Type)

	n, err := e.notifier.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	changed, err := e.notifier.MarkRead(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, changed)

	n, err = e.notifier.UnreadCount(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = e.notifier.UnreadCount(ctx, "u3")
	require.NoError(t, err)
	assert.Equal(t, 1, n, "other recipients untouched")
}
