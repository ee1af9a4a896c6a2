package web

import (
	"net/http"

	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/forms"
)

// handleSubmitForm выводит форму новой публикации.
func (app *App) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := app.requireLogin(w, r, "/submit"); !ok {
		return
	}
	app.render(w, "submit", app.newPage(r, "Submit | Hacker News", forms.Submission{}), http.StatusOK)
}

// handleSubmit публикует ссылку или текст.
func (app *App) handleSubmit(w http.ResponseWriter, r *http.Request) {
	s, ok := app.requireLogin(w, r, "/submit")
	if !ok || !app.checkToken(w, r, s) {
		return
	}

	f, err := forms.Submit(forms.Submission{
		Title: r.PostFormValue("title"),
		URL:   r.PostFormValue("url"),
		Text:  r.PostFormValue("text"),
	})
	if err != nil {
		app.renderSubmit(w, r, f, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	_, err = app.api.CreatePost(r.Context(), credentials(r), backend.NewPost{Title: f.Title, URL: f.URL, Text: f.Text})
	if err != nil {
		if app.expired(w, r, err) {
			return
		}
		app.renderSubmit(w, r, f, backend.Message(err, "Failed to submit post. Please try again."), errorCode(err))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (app *App) renderSubmit(w http.ResponseWriter, r *http.Request, f forms.Submission, msg string, code int) {
	p := app.newPage(r, "Submit | Hacker News", f)
	p.Error = msg
	app.render(w, "submit", p, code)
}
