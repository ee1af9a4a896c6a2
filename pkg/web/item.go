package web

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/forms"
	"github.com/rtemka/hnfront/pkg/thread"
	"go.uber.org/zap"
)

// postVote - голос пользователя за публикацию.
type postVote int

type postContent struct {
	Post     domain.Post
	Vote     int
	Rows     []thread.Row
	Focus    int64
	Text     string
	PostPath string
}

func postPath(id int64) string {
	return "/post/" + strconv.FormatInt(id, 10)
}

// handlePost выводит публикацию с деревом комментариев.
func (app *App) handlePost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		app.renderError(w, r, errors.New("Post not found"), http.StatusNotFound)
		return
	}
	app.renderPost(w, r, id, "", "", http.StatusOK)
}

// renderPost загружает публикацию, комментарии и голоса пользователя
// параллельно. Первая ошибка прерывает вывод.
func (app *App) renderPost(w http.ResponseWriter, r *http.Request, id int64, msg, text string, code int) {
	a := credentials(r)
	_, loggedIn := current(r)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	n := 2
	if loggedIn {
		n++
	}
	ch := make(chan any, n)

	go func() {
		p, err := app.api.Post(ctx, a, id)
		if err != nil {
			ch <- err
			return
		}
		ch <- p
	}()
	go func() {
		cs, err := app.api.Comments(ctx, a, id)
		if err != nil {
			ch <- err
			return
		}
		ch <- cs
	}()
	if loggedIn {
		go func() {
			// голос не обязателен для вывода, кроме случая 401
			v, err := app.api.PostVote(ctx, a, id)
			if errors.Is(err, backend.ErrUnauthorized) {
				ch <- err
				return
			}
			ch <- postVote(v)
		}()
	}

	c := postContent{Text: text, PostPath: postPath(id)}
	var comments []domain.Comment

	for i := 0; i < n; i++ {
		switch v := (<-ch).(type) {
		case error:
			app.failed(w, r, v, "Post not found")
			return
		case domain.Post:
			c.Post = v
		case []domain.Comment:
			comments = v
		case postVote:
			c.Vote = int(v)
		}
	}

	q := r.URL.Query()
	tree := domain.Thread(comments)
	if focus, err := strconv.ParseInt(q.Get("id"), 10, 64); err == nil && focus > 0 {
		sub, ok := domain.Find(tree, focus)
		if !ok {
			app.renderError(w, r, ErrNoComment, http.StatusNotFound)
			return
		}
		c.Focus = focus
		tree = []domain.Comment{sub}
	}

	st := thread.State{
		Edit:      queryID(q.Get("edit")),
		Delete:    queryID(q.Get("delete")),
		Collapsed: thread.ParseSet(q.Get("c")),
	}
	s, _ := current(r)
	if loggedIn {
		votes, err := app.api.CommentVotes(r.Context(), a, commentIDs(tree))
		if app.expired(w, r, err) {
			return
		}
		if err != nil {
			// страница выводится без отметок голосов
			app.logger.Debug("comment votes", zap.Any("request_id", r.Context().Value(requestID)), zap.Error(err))
		}
		st.Votes = votes
	}
	c.Rows = thread.Render(tree, st, thread.Viewer{LoggedIn: loggedIn, UserID: s.UserID})

	p := app.newPage(r, domain.PlainText(c.Post.Title)+" | Hacker News", c)
	if r.Method != http.MethodGet {
		// ссылки страницы ведут на саму публикацию, а не на адрес формы
		p.url = &url.URL{Path: c.PostPath}
	}
	p.Error = msg
	app.render(w, "post", p, code)
}

// handleCommentCreate добавляет комментарий верхнего уровня.
func (app *App) handleCommentCreate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		app.renderError(w, r, errors.New("Post not found"), http.StatusNotFound)
		return
	}
	s, ok := app.requireLogin(w, r, postPath(id))
	if !ok || !app.checkToken(w, r, s) {
		return
	}

	text, err := forms.Text(r.PostFormValue("text"))
	if err != nil {
		app.renderPost(w, r, id, err.Error(), "", http.StatusUnprocessableEntity)
		return
	}

	if _, err := app.api.CreateComment(r.Context(), credentials(r), id, 0, text); err != nil {
		if app.expired(w, r, err) {
			return
		}
		app.renderPost(w, r, id, backend.Message(err, "Failed to post comment. Please try again."), text, errorCode(err))
		return
	}

	http.Redirect(w, r, postPath(id), http.StatusSeeOther)
}

// handleCommentEdit сохраняет новый текст комментария.
// Пустой текст не отправляется.
func (app *App) handleCommentEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		app.renderError(w, r, ErrNoComment, http.StatusNotFound)
		return
	}
	next := forms.SafeNext(r.PostFormValue("goto"), "/")
	s, ok := app.requireLogin(w, r, next)
	if !ok || !app.checkToken(w, r, s) {
		return
	}

	text, err := forms.Text(r.PostFormValue("text"))
	if err != nil {
		http.Redirect(w, r, next, http.StatusSeeOther)
		return
	}

	if _, err := app.api.UpdateComment(r.Context(), credentials(r), id, text); err != nil {
		app.failed(w, r, err, "Failed to update comment. Please try again.")
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

// handleCommentDelete удаляет комментарий после подтверждения.
func (app *App) handleCommentDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		app.renderError(w, r, ErrNoComment, http.StatusNotFound)
		return
	}
	next := forms.SafeNext(r.PostFormValue("goto"), "/")
	s, ok := app.requireLogin(w, r, next)
	if !ok || !app.checkToken(w, r, s) {
		return
	}

	if err := app.api.DeleteComment(r.Context(), credentials(r), id); err != nil {
		app.failed(w, r, err, "Failed to delete comment. Please try again.")
		return
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

func queryID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0
	}
	return id
}

func commentIDs(tree []domain.Comment) []int64 {
	flat := domain.Flatten(tree)
	ids := make([]int64, 0, len(flat))
	for i := range flat {
		ids = append(ids, flat[i].ID)
	}
	return ids
}
