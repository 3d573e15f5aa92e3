package commerce

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
)

// Social holds the follow graph. It shares the notifier with the ledger.
type Social struct {
	Deps
	Notifier *Notifier
}

func NewSocial(d Deps, n *Notifier) *Social {
	return &Social{Deps: d.withDefaults(), Notifier: n}
}

// ToggleFollow makes followerID follow followeeID, or unfollow when already
// following. Both sides are updated together so the lists stay symmetric.
// It returns true when the follower now follows.
func (s *Social) ToggleFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	if followerID == "" || followeeID == "" {
		return false, apperr.BadRequest("follower and followee are required", nil)
	}
	if followerID == followeeID {
		return false, apperr.BadRequest("users cannot follow themselves", nil)
	}
	var following bool
	err := s.run(ctx, func(ctx context.Context, tx Tx, ob *outbox) error {
		follower, err := tx.User(ctx, followerID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("follower", err)
		}
		if err != nil {
			return fmt.Errorf("load follower: %w", err)
		}
		followee, err := tx.User(ctx, followeeID)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("followee", err)
		}
		if err != nil {
			return fmt.Errorf("load followee: %w", err)
		}

		following = !contains(follower.FollowedUsers, followeeID)
		if following {
			follower.FollowedUsers = appendUnique(follower.FollowedUsers, followeeID)
			followee.Followers = appendUnique(followee.Followers, followerID)
		} else {
			follower.FollowedUsers = without(follower.FollowedUsers, followeeID)
			followee.Followers = without(followee.Followers, followerID)
		}
		if err := tx.SaveUser(ctx, follower); err != nil {
			return fmt.Errorf("save follower: %w", err)
		}
		if err := tx.SaveUser(ctx, followee); err != nil {
			return fmt.Errorf("save followee: %w", err)
		}
		if !following {
			return nil
		}
		_, _, err = s.Notifier.create(ctx, tx, ob, NotificationInput{
			Type:        NotifyNewFollower,
			RecipientID: followeeID,
			ActorID:     followerID,
		})
		return err
	})
	if err != nil {
		return false, wrapInternal("toggle follow", err)
	}
	return following, nil
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func appendUnique(ids []string, id string) []string {
	if contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
