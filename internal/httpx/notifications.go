package httpx

import (
	"net/http"

	"github.com/ariefcatur/cyberphone-ledger/internal/apperr"
)

type MarkReadReq struct {
	RecipientID string `json:"recipientId" validate:"required"`
}

func recipient(r *http.Request) (string, error) {
	id := r.URL.Query().Get("recipientId")
	if id == "" {
		return "", apperr.BadRequest("recipientId is required", nil)
	}
	return id, nil
}

func (a *API) listNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := recipient(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	notes, err := a.Notifier.ForUser(ctx, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

func (a *API) markNotificationsRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadReq
	if err := decode(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	n, err := a.Notifier.MarkRead(ctx, req.RecipientID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": n})
}

func (a *API) unreadCount(w http.ResponseWriter, r *http.Request) {
	id, err := recipient(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	ctx, cancel := a.ctx(r)
	defer cancel()

	n, err := a.Notifier.UnreadCount(ctx, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}
