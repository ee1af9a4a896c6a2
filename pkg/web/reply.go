package web

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/forms"
)

type replyContent struct {
	Comment domain.Comment
	Text    string
	Closed  bool // на удаленный комментарий ответить нельзя
}

func replyPath(id int64) string {
	return "/reply/" + strconv.FormatInt(id, 10)
}

// handleReply выводит комментарий и форму ответа.
func (app *App) handleReply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		app.renderError(w, r, ErrNoComment, http.StatusNotFound)
		return
	}
	app.renderReply(w, r, id, "", "", http.StatusOK)
}

func (app *App) renderReply(w http.ResponseWriter, r *http.Request, id int64, msg, text string, code int) {
	c, err := app.api.Comment(r.Context(), credentials(r), id)
	if err != nil {
		if backend.StatusCode(err) == http.StatusNotFound {
			app.renderError(w, r, ErrNoComment, http.StatusNotFound)
			return
		}
		app.failed(w, r, err, "Failed to fetch comment.")
		return
	}

	p := app.newPage(r, "Add Comment | Hacker News", replyContent{Comment: c, Text: text, Closed: c.IsDeleted})
	p.url = &url.URL{Path: replyPath(id)}
	p.Error = msg
	app.render(w, "reply", p, code)
}

// handleReplyCreate публикует ответ и возвращает на ветку комментария.
func (app *App) handleReplyCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		app.renderError(w, r, ErrNoComment, http.StatusNotFound)
		return
	}
	s, ok := app.requireLogin(w, r, replyPath(id))
	if !ok || !app.checkToken(w, r, s) {
		return
	}

	text, err := forms.Text(r.PostFormValue("text"))
	if err != nil {
		app.renderReply(w, r, id, err.Error(), "", http.StatusUnprocessableEntity)
		return
	}

	a := credentials(r)
	parent, err := app.api.Comment(r.Context(), a, id)
	if err != nil {
		app.failed(w, r, err, "Failed to fetch comment.")
		return
	}
	if parent.IsDeleted {
		app.renderReply(w, r, id, ErrNoReply.Error(), "", http.StatusConflict)
		return
	}

	if _, err := app.api.CreateComment(r.Context(), a, parent.PostID, parent.ID, text); err != nil {
		if app.expired(w, r, err) {
			return
		}
		app.renderReply(w, r, id, backend.Message(err, "Failed to post reply. Please try again."), text, errorCode(err))
		return
	}

	http.Redirect(w, r, postPath(parent.PostID)+"?id="+strconv.FormatInt(parent.ID, 10), http.StatusSeeOther)
}
