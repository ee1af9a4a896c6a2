package web

import (
	"net/http"
	"strconv"

	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/forms"
	"github.com/rtemka/hnfront/pkg/session"
	"go.uber.org/zap"
)

// loginContent - форма входа и отложенный голос.
type loginContent struct {
	Username string
	Next     string
	Vote     string
	Post     string
	Comment  string
}

func loginForm(r *http.Request) loginContent {
	return loginContent{
		Username: r.FormValue("username"),
		Next:     forms.SafeNext(r.FormValue("next"), "/"),
		Vote:     r.FormValue("vote"),
		Post:     r.FormValue("post"),
		Comment:  r.FormValue("comment"),
	}
}

// handleLoginForm выводит форму входа. Вошедший пользователь
// сразу отправляется на next.
func (app *App) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	f := loginForm(r)
	if _, ok := current(r); ok {
		http.Redirect(w, r, f.Next, http.StatusSeeOther)
		return
	}
	app.render(w, "login", app.newPage(r, "Login | Hacker News", f), http.StatusOK)
}

// handleLogin выполняет вход, создает сессию и отдает
// отложенный голос. Ошибка голосования не мешает входу.
func (app *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	f := loginForm(r)

	username, err := forms.Credentials(f.Username, r.PostFormValue("password"))
	if err != nil {
		app.renderLogin(w, r, f, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	f.Username = username

	tok, err := app.api.Login(r.Context(), username, r.PostFormValue("password"))
	if err != nil {
		app.renderLogin(w, r, f, backend.Message(err, "Login failed. Please try again."), errorCode(err))
		return
	}

	s := session.New(app.opts.SessionTTL)
	s.Token, s.CSRF, s.Username = tok.AccessToken, tok.CSRF, username
	a := backend.Auth{Token: s.Token, CSRF: s.CSRF}

	if u, err := app.api.Me(r.Context(), a); err == nil {
		s.UserID = u.ID
		if u.Username != "" {
			s.Username = u.Username
		}
	} else {
		app.logger.Warn("current user", zap.Any("request_id", r.Context().Value(requestID)), zap.Error(err))
	}

	if err := app.sessions.Save(r.Context(), s); err != nil {
		app.writeInternal(w, err)
		return
	}
	app.setCookie(w, s)

	app.replayVote(r, a, f)

	http.Redirect(w, r, f.Next, http.StatusSeeOther)
}

// replayVote отдает голос, с которым гость пришел на вход.
func (app *App) replayVote(r *http.Request, a backend.Auth, f loginContent) {
	dir, err := strconv.Atoi(f.Vote)
	if err != nil || (dir != 1 && dir != -1) {
		return
	}
	if id, err := strconv.ParseInt(f.Post, 10, 64); err == nil && id > 0 {
		if err := app.api.VotePost(r.Context(), a, id, dir); err != nil {
			app.logger.Warn("pending post vote", zap.Int64("post_id", id), zap.Error(err))
		}
	}
	if id, err := strconv.ParseInt(f.Comment, 10, 64); err == nil && id > 0 {
		if err := app.api.VoteComment(r.Context(), a, id, dir); err != nil {
			app.logger.Warn("pending comment vote", zap.Int64("comment_id", id), zap.Error(err))
		}
	}
}

func (app *App) renderLogin(w http.ResponseWriter, r *http.Request, f loginContent, msg string, code int) {
	p := app.newPage(r, "Login | Hacker News", f)
	p.Error = msg
	app.render(w, "login", p, code)
}

// registerContent - форма регистрации.
type registerContent struct {
	Username string
	Email    string
	Status   string // доступность имени: available или taken
	Hint     string // подсказка по паролю
}

// handleRegisterForm выводит форму регистрации. Если передано имя,
// проверяется его доступность.
func (app *App) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	f := registerContent{Username: r.URL.Query().Get("username")}
	if name, err := forms.Username(f.Username); err == nil {
		f.Username = name
		f.Status = app.usernameStatus(r, name)
	}
	app.render(w, "register", app.newPage(r, "Create Account | Hacker News", f), http.StatusOK)
}

// handleRegister создает пользователя и отправляет его на вход.
func (app *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	f := registerContent{
		Username: r.PostFormValue("username"),
		Email:    r.PostFormValue("email"),
	}
	password := r.PostFormValue("password")

	name, err := forms.Username(f.Username)
	f.Username = name
	if err != nil {
		app.renderRegister(w, r, f, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if err := forms.Password(password); err != nil {
		f.Hint = err.Error()
		app.renderRegister(w, r, f, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if f.Status = app.usernameStatus(r, name); f.Status == "taken" {
		app.renderRegister(w, r, f, "Username is already taken.", http.StatusConflict)
		return
	}

	_, err = app.api.Register(r.Context(), backend.Credentials{Username: name, Email: f.Email, Password: password})
	if err != nil {
		app.renderRegister(w, r, f, backend.Message(err, "Registration failed. Please try again."), errorCode(err))
		return
	}

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// usernameStatus возвращает "available", "taken" или "",
// если проверить не удалось.
func (app *App) usernameStatus(r *http.Request, name string) string {
	ok, err := app.api.UsernameAvailable(r.Context(), name)
	switch {
	case err != nil:
		app.logger.Debug("username check", zap.String("username", name), zap.Error(err))
		return ""
	case ok:
		return "available"
	default:
		return "taken"
	}
}

func (app *App) renderRegister(w http.ResponseWriter, r *http.Request, f registerContent, msg string, code int) {
	p := app.newPage(r, "Create Account | Hacker News", f)
	p.Error = msg
	app.render(w, "register", p, code)
}

// handleLogout завершает сессию в API и удаляет ее.
func (app *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	s, ok := current(r)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if !app.checkToken(w, r, s) {
		return
	}

	if err := app.api.Logout(r.Context(), credentials(r)); err != nil {
		app.logger.Warn("logout", zap.Any("request_id", r.Context().Value(requestID)), zap.Error(err))
	}
	if err := app.sessions.Delete(r.Context(), s.ID); err != nil {
		app.logger.Error("session delete", zap.Any("request_id", r.Context().Value(requestID)), zap.Error(err))
	}
	app.clearCookie(w)

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
