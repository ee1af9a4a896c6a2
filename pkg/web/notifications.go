package web

import (
	"net/http"

	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/paging"
)

type notificationsContent struct {
	Items  []domain.Notification
	Empty  string
	Failed string
}

// handleNotifications выводит уведомления пользователя.
func (app *App) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.requireLogin(w, r, "/notifications"); !ok {
		return
	}

	var c notificationsContent
	code := http.StatusOK

	items, err := app.api.Notifications(r.Context(), credentials(r), paging.NotificationsSize)
	switch {
	case err != nil:
		if app.expired(w, r, err) {
			return
		}
		c.Failed = backend.Message(err, "Failed to fetch notifications.")
		code = errorCode(err)
	case len(items) == 0:
		c.Empty = "No notifications yet."
	}
	c.Items = items

	app.render(w, "notifications", app.newPage(r, "Notifications | Hacker News", c), code)
}

// handleMarkRead отмечает уведомление прочитанным.
func (app *App) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		app.renderError(w, r, ErrNotFound, http.StatusNotFound)
		return
	}
	s, ok := app.requireLogin(w, r, "/notifications")
	if !ok || !app.checkToken(w, r, s) {
		return
	}

	if err := app.api.MarkRead(r.Context(), credentials(r), id); err != nil {
		app.failed(w, r, err, "Failed to mark notification as read.")
		return
	}

	http.Redirect(w, r, "/notifications", http.StatusSeeOther)
}
