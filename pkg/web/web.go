// пакет web предоставляет веб-интерфейс сайта: страницы HTML,
// формируемые на сервере по данным REST API.
package web

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/session"
	"go.uber.org/zap"
)

var (
	ErrInternal  = errors.New("internal server error")
	ErrBadToken  = errors.New("Invalid or expired form. Please try again.")
	ErrNotFound  = errors.New("Page not found.")
	ErrNoComment = errors.New("Comment not found")
	ErrNoReply   = errors.New("Deleted comments can't be replied to.")
)

// Backend - операции REST API, которые нужны страницам.
type Backend interface {
	Register(ctx context.Context, c backend.Credentials) (domain.User, error)
	Login(ctx context.Context, username, password string) (backend.Token, error)
	Logout(ctx context.Context, a backend.Auth) error
	Me(ctx context.Context, a backend.Auth) (domain.User, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)

	Posts(ctx context.Context, a backend.Auth, p backend.ListParams) ([]domain.Post, error)
	Search(ctx context.Context, a backend.Auth, q string, limit, skip int) ([]domain.Post, error)
	Post(ctx context.Context, a backend.Auth, id int64) (domain.Post, error)
	CreatePost(ctx context.Context, a backend.Auth, np backend.NewPost) (domain.Post, error)
	VotePost(ctx context.Context, a backend.Auth, id int64, voteType int) error
	PostVote(ctx context.Context, a backend.Auth, id int64) (int, error)
	UnvotePost(ctx context.Context, a backend.Auth, id int64) error

	Comments(ctx context.Context, a backend.Auth, postID int64) ([]domain.Comment, error)
	Comment(ctx context.Context, a backend.Auth, id int64) (domain.Comment, error)
	CreateComment(ctx context.Context, a backend.Auth, postID, parentID int64, text string) (domain.Comment, error)
	UpdateComment(ctx context.Context, a backend.Auth, id int64, text string) (domain.Comment, error)
	DeleteComment(ctx context.Context, a backend.Auth, id int64) error
	RecentComments(ctx context.Context, a backend.Auth, limit, skip int) ([]domain.Comment, error)
	VoteComment(ctx context.Context, a backend.Auth, id int64, voteType int) error
	UnvoteComment(ctx context.Context, a backend.Auth, id int64) error
	CommentVotes(ctx context.Context, a backend.Auth, ids []int64) (map[int64]int, error)

	Notifications(ctx context.Context, a backend.Auth, limit int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, a backend.Auth, id int64) error
	UnreadCount(ctx context.Context, a backend.Auth) (int, error)
}

// Options - настройки веб-интерфейса.
type Options struct {
	SessionTTL   time.Duration
	CookieSecure bool
}

// App - веб-интерфейс.
type App struct {
	router   *mux.Router
	logger   *zap.Logger
	api      Backend
	sessions session.Store
	opts     Options

	pages    map[string]*template.Template
	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

// New возвращает [*App].
func New(api Backend, sessions session.Store, logger *zap.Logger, opts Options) (*App, error) {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 30 * 24 * time.Hour
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	app := App{
		router:   mux.NewRouter(),
		logger:   logger,
		api:      api,
		sessions: sessions,
		opts:     opts,
		pages:    pages,
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hnfront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Browser requests by route and status code.",
		}, []string{"route", "method", "code"}),
	}
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		app.requests,
		backend.RequestDuration,
	)
	app.endpoints()

	return &app, nil
}

// ServeHTTP - таким образом, мы можем использовать
// сам [*App] в качестве мультиплексора на сервере.
func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app.router.ServeHTTP(w, r)
}

func (app *App) endpoints() {
	app.router.Use(
		app.requestIDMiddleware,
		app.wideEventLogMiddleware,
		app.closerMiddleware,
		app.headersMiddleware,
		app.secHeadersMiddleware,
		app.sessionMiddleware,
	)

	// ленты
	app.router.HandleFunc("/", app.handleFeed("", "/")).Methods(http.MethodGet)
	app.router.HandleFunc("/news", app.handleFeed("", "/news")).Methods(http.MethodGet)
	app.router.HandleFunc("/ask", app.handleFeed(domain.TypeAsk, "/ask")).Methods(http.MethodGet)
	app.router.HandleFunc("/show", app.handleFeed(domain.TypeShow, "/show")).Methods(http.MethodGet)
	app.router.HandleFunc("/jobs", app.handleFeed(domain.TypeJob, "/jobs")).Methods(http.MethodGet)

	// публикация и комментарии
	app.router.HandleFunc("/post/{id:[0-9]+}", app.handlePost).Methods(http.MethodGet)
	app.router.HandleFunc("/post/{id:[0-9]+}/comments", app.handleCommentCreate).Methods(http.MethodPost)
	app.router.HandleFunc("/reply/{id:[0-9]+}", app.handleReply).Methods(http.MethodGet)
	app.router.HandleFunc("/reply/{id:[0-9]+}", app.handleReplyCreate).Methods(http.MethodPost)
	app.router.HandleFunc("/comment/{id:[0-9]+}/edit", app.handleCommentEdit).Methods(http.MethodPost)
	app.router.HandleFunc("/comment/{id:[0-9]+}/delete", app.handleCommentDelete).Methods(http.MethodPost)
	app.router.HandleFunc("/vote", app.handleVote).Methods(http.MethodGet)
	app.router.HandleFunc("/comments", app.handleRecentComments).Methods(http.MethodGet)
	app.router.HandleFunc("/search", app.handleSearch).Methods(http.MethodGet)
	app.router.HandleFunc("/submit", app.handleSubmitForm).Methods(http.MethodGet)
	app.router.HandleFunc("/submit", app.handleSubmit).Methods(http.MethodPost)

	// пользователь
	app.router.HandleFunc("/login", app.handleLoginForm).Methods(http.MethodGet)
	app.router.HandleFunc("/login", app.handleLogin).Methods(http.MethodPost)
	app.router.HandleFunc("/register", app.handleRegisterForm).Methods(http.MethodGet)
	app.router.HandleFunc("/register", app.handleRegister).Methods(http.MethodPost)
	app.router.HandleFunc("/logout", app.handleLogout).Methods(http.MethodPost)
	app.router.HandleFunc("/notifications", app.handleNotifications).Methods(http.MethodGet)
	app.router.HandleFunc("/notifications/{id:[0-9]+}/read", app.handleMarkRead).Methods(http.MethodPost)

	// служебные
	app.router.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	app.router.HandleFunc("/healthz", app.handleHealth).Methods(http.MethodGet)

	static, _ := fs.Sub(files, "static")
	app.router.PathPrefix("/static/").Handler(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))).Methods(http.MethodGet)

	// для неизвестных адресов middleware вызываются вручную
	app.router.NotFoundHandler = app.requestIDMiddleware(
		app.wideEventLogMiddleware(app.secHeadersMiddleware(app.sessionMiddleware(
			http.HandlerFunc(app.handleNotFound)))))
}

func (app *App) handleNotFound(w http.ResponseWriter, r *http.Request) {
	app.renderError(w, r, ErrNotFound, http.StatusNotFound)
}

func (app *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	app.WriteJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
