package web

import (
	"bytes"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/paging"
	"github.com/rtemka/hnfront/pkg/session"
	"go.uber.org/zap"
)

//go:embed templates static
var files embed.FS

// страницы сайта, у каждой свой шаблон в templates/pages.
var pageNames = []string{
	"feed", "post", "reply", "comments", "search", "submit",
	"login", "register", "notifications", "error",
}

var funcs = template.FuncMap{
	"ago":     func(t domain.Time) string { return domain.TimeAgo(t.Time) },
	"iso":     func(t domain.Time) string { return domain.ISOTime(t.Time) },
	"host":    domain.Hostname,
	"discuss": domain.CommentsLink,
	"text":    domain.DisplayText,
	"plain":   domain.PlainText,
	"excerpt": domain.Excerpt,
	"points": func(score int) string {
		return fmt.Sprintf("%d %s", score, domain.PointsLabel(score))
	},
	"rank": func(page, i int) int { return paging.Rank(page, paging.PageSize, i) },
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(files,
			"templates/layout.html",
			"templates/partials.html",
			"templates/pages/"+name+".html",
		)
		if err != nil {
			return nil, errors.Wrapf(err, "parse page %q", name)
		}
		pages[name] = t
	}
	return pages, nil
}

// page - данные для шаблона страницы.
type page struct {
	Title    string
	LoggedIn bool
	User     session.Session
	Unread   int
	Error    string
	Query    string // строка поиска в подвале
	Content  any

	url *url.URL
}

// Path - адрес текущей страницы вместе с параметрами.
func (p *page) Path() string {
	return p.url.RequestURI()
}

// Set возвращает адрес текущей страницы с замененными параметрами.
// Аргументы - пары ключ, значение. Пустое значение удаляет параметр.
func (p *page) Set(kv ...any) string {
	q := p.url.Query()
	for i := 0; i+1 < len(kv); i += 2 {
		k := fmt.Sprint(kv[i])
		v := fmt.Sprint(kv[i+1])
		if v == "" || v == "0" {
			q.Del(k)
			continue
		}
		q.Set(k, v)
	}
	u := url.URL{Path: p.url.Path, RawQuery: q.Encode()}
	return u.RequestURI()
}

// Vote возвращает ссылку голосования. how - up, down или un.
// Гостя ссылка ведет на вход с отложенным голосом.
func (p *page) Vote(kind string, id int64, how string) string {
	if !p.LoggedIn {
		dir := "1"
		if how == "down" {
			dir = "-1"
		}
		return loginURL(p.Path()) + "&vote=" + dir + "&" + kind + "=" + strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("id", strconv.FormatInt(id, 10))
	q.Set("how", how)
	q.Set("kind", kind)
	q.Set("auth", p.User.FormToken)
	q.Set("goto", p.Path())
	return "/vote?" + q.Encode()
}

// Login - ссылка на вход с возвратом на next.
func (p *page) Login(next string) string {
	return loginURL(next)
}

func loginURL(next string) string {
	return "/login?next=" + escapeNext(next)
}

// escapeNext кодирует адрес возврата. Простые пути
// вида /post/5 остаются как есть.
func escapeNext(next string) string {
	if !strings.ContainsAny(next, "?&#%+ ") {
		return next
	}
	return url.QueryEscape(next)
}

// newPage собирает общие данные страницы: пользователя и счетчик
// непрочитанных уведомлений. Ошибка счетчика не мешает выводу.
func (app *App) newPage(r *http.Request, title string, content any) *page {
	p := page{Title: title, Content: content, url: r.URL}
	s, ok := current(r)
	if !ok {
		return &p
	}
	p.LoggedIn, p.User = true, s

	n, err := app.api.UnreadCount(r.Context(), credentials(r))
	if err != nil {
		app.logger.Debug("unread count", zap.Any("request_id", r.Context().Value(requestID)), zap.Error(err))
	}
	p.Unread = n

	return &p
}

// render выводит страницу name. Страница сначала формируется в буфер,
// чтобы ошибка шаблона не оставила наполовину записанный ответ.
func (app *App) render(w http.ResponseWriter, name string, p *page, code int) {
	t, ok := app.pages[name]
	if !ok {
		app.writeInternal(w, errors.Errorf("unknown page %q", name))
		return
	}

	var b bytes.Buffer
	if err := t.Execute(&b, p); err != nil {
		app.writeInternal(w, errors.Wrapf(err, "render page %q", name))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_, _ = b.WriteTo(w)
}

func (app *App) writeInternal(w http.ResponseWriter, err error) {
	if wrw, ok := w.(*wideResponseWriter); ok {
		wrw.internalErr = err
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(ErrInternal.Error()))
}

// renderError выводит страницу с сообщением об ошибке.
func (app *App) renderError(w http.ResponseWriter, r *http.Request, err error, code int) {
	if wrw, ok := w.(*wideResponseWriter); ok && code >= http.StatusInternalServerError {
		wrw.internalErr = err
	}
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = backend.DefaultMessage
	}
	p := app.newPage(r, "Error", nil)
	p.Error = msg
	app.render(w, "error", p, code)
}

// failed выводит ошибку API. Ответ 401 означает, что сессия
// больше не действительна: она удаляется, пользователь
// отправляется на вход.
func (app *App) failed(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	if app.expired(w, r, err) {
		return
	}
	app.renderError(w, r, errors.New(backend.Message(err, fallback)), errorCode(err))
}

// expired обрабатывает 401 от API. Возвращает true, если ответ уже записан.
func (app *App) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	if s, ok := r.Context().Value(sessionKey).(session.Session); ok {
		if err := app.sessions.Delete(r.Context(), s.ID); err != nil {
			app.logger.Error("session delete", zap.Any("request_id", r.Context().Value(requestID)), zap.Error(err))
		}
	}
	app.clearCookie(w)

	next := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		next = "/"
	}
	http.Redirect(w, r, loginURL(next), http.StatusSeeOther)
	return true
}

// errorCode - код ответа браузеру для ошибки API:
// ошибки клиента передаются как есть, остальное - 502.
func errorCode(err error) int {
	if c := backend.StatusCode(err); c >= 400 && c < 500 {
		return c
	}
	return http.StatusBadGateway
}

// requireLogin отправляет гостя на вход. Возвращает сессию
// и true, если пользователь вошел.
func (app *App) requireLogin(w http.ResponseWriter, r *http.Request, next string) (session.Session, bool) {
	s, ok := current(r)
	if !ok {
		http.Redirect(w, r, loginURL(next), http.StatusSeeOther)
	}
	return s, ok
}

// checkToken сверяет токен формы или ссылки с токеном сессии.
func (app *App) checkToken(w http.ResponseWriter, r *http.Request, s session.Session) bool {
	token := r.FormValue("auth")
	if token != "" && subtle.ConstantTimeCompare([]byte(token), []byte(s.FormToken)) == 1 {
		return true
	}
	app.renderError(w, r, ErrBadToken, http.StatusForbidden)
	return false
}

// pathID возвращает id из пути запроса.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id, err == nil && id > 0
}

func (app *App) WriteJSON(w http.ResponseWriter, data any, code int) {
	w.Header().Set("Content-Type", "application/json;charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}
