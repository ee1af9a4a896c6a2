package web

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rtemka/hnfront/pkg/forms"
)

var errBadVote = errors.New("Invalid vote.")

// handleVote голосует за публикацию или комментарий и возвращает
// пользователя на страницу goto. Гость отправляется на вход,
// голос будет отдан после входа.
func (app *App) handleVote(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	next := forms.SafeNext(q.Get("goto"), "/")

	id, err := strconv.ParseInt(q.Get("id"), 10, 64)
	kind, how := q.Get("kind"), q.Get("how")
	if err != nil || id <= 0 || (kind != "post" && kind != "comment") ||
		(how != "up" && how != "down" && how != "un") {
		app.renderError(w, r, errBadVote, http.StatusBadRequest)
		return
	}

	s, ok := current(r)
	if !ok {
		if how == "un" {
			http.Redirect(w, r, loginURL(next), http.StatusSeeOther)
			return
		}
		dir := "1"
		if how == "down" {
			dir = "-1"
		}
		http.Redirect(w, r, loginURL(next)+"&vote="+dir+"&"+kind+"="+strconv.FormatInt(id, 10), http.StatusSeeOther)
		return
	}
	if !app.checkToken(w, r, s) {
		return
	}

	a := credentials(r)
	switch {
	case how == "un" && kind == "post":
		err = app.api.UnvotePost(r.Context(), a, id)
	case how == "un":
		err = app.api.UnvoteComment(r.Context(), a, id)
	case kind == "post":
		err = app.api.VotePost(r.Context(), a, id, direction(how))
	default:
		err = app.api.VoteComment(r.Context(), a, id, direction(how))
	}
	if err != nil {
		fallback := "Failed to vote. Please try again."
		if how == "un" {
			fallback = "Failed to remove vote. Please try again."
		}
		app.failed(w, r, err, fallback)
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

func direction(how string) int {
	if how == "down" {
		return -1
	}
	return 1
}
