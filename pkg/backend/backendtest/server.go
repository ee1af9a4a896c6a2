// пакет backendtest предоставляет REST API сайта, хранящий
// данные в памяти. Используется в тестах клиента и веб-интерфейса.
package backendtest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rtemka/hnfront/domain"
)

var (
	errNotFound     = errors.New("Not found")
	errUnauthorized = errors.New("Could not validate credentials")
	errCSRF         = errors.New("CSRF token missing or invalid")
	errForbidden    = errors.New("Not authorized")
)

// Call - запись о полученном запросе.
type Call struct {
	Method        string
	Path          string
	Query         string
	Authorization string
	CSRFHeader    string
	Body          string
}

type user struct {
	domain.User
	password string
}

type session struct {
	userID int64
	csrf   string
}

type failure struct {
	status int
	detail string
}

type voteKey struct {
	userID, id int64
}

// Server - REST API в памяти.
type Server struct {
	router *mux.Router

	mu            sync.Mutex
	nextID        int64
	users         map[string]*user
	sessions      map[string]session
	posts         []domain.Post
	comments      []domain.Comment
	postVotes     map[voteKey]int
	commentVotes  map[voteKey]int
	notifications []domain.Notification
	failures      map[string]failure
	calls         []Call
}

// New возвращает [*Server].
func New() *Server {
	s := Server{
		router:       mux.NewRouter(),
		users:        make(map[string]*user),
		sessions:     make(map[string]session),
		postVotes:    make(map[voteKey]int),
		commentVotes: make(map[voteKey]int),
		failures:     make(map[string]failure),
	}
	s.endpoints()
	return &s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) endpoints() {
	s.router.Use(s.recordMiddleware, s.failMiddleware, s.headersMiddleware)

	s.router.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/logout", s.authed(s.handleLogout)).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/me", s.authed(s.handleMe)).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/username-available", s.handleUsernameAvailable).Methods(http.MethodGet)

	s.router.HandleFunc("/posts/", s.handlePosts).Methods(http.MethodGet)
	s.router.HandleFunc("/posts/", s.authed(s.handlePostCreate)).Methods(http.MethodPost)
	s.router.HandleFunc("/posts/search", s.handleSearch).Methods(http.MethodGet)
	s.router.HandleFunc("/posts/{id:[0-9]+}", s.handlePost).Methods(http.MethodGet)
	s.router.HandleFunc("/posts/{id:[0-9]+}/vote", s.authed(s.handlePostVote)).Methods(http.MethodPost, http.MethodGet, http.MethodDelete)
	s.router.HandleFunc("/posts/{id:[0-9]+}/comments", s.handleComments).Methods(http.MethodGet)
	s.router.HandleFunc("/posts/{id:[0-9]+}/comments", s.authed(s.handleCommentCreate)).Methods(http.MethodPost)

	s.router.HandleFunc("/comments/recent", s.handleRecent).Methods(http.MethodGet)
	s.router.HandleFunc("/comments/votes/bulk", s.authed(s.handleVotesBulk)).Methods(http.MethodPost)
	s.router.HandleFunc("/comments/{id:[0-9]+}", s.handleComment).Methods(http.MethodGet)
	s.router.HandleFunc("/comments/{id:[0-9]+}", s.authed(s.handleCommentUpdate)).Methods(http.MethodPut)
	s.router.HandleFunc("/comments/{id:[0-9]+}", s.authed(s.handleCommentDelete)).Methods(http.MethodDelete)
	s.router.HandleFunc("/comments/{id:[0-9]+}/vote", s.authed(s.handleCommentVote)).Methods(http.MethodPost, http.MethodDelete)

	s.router.HandleFunc("/notifications/", s.authed(s.handleNotifications)).Methods(http.MethodGet)
	s.router.HandleFunc("/notifications/unread/count", s.authed(s.handleUnreadCount)).Methods(http.MethodGet)
	s.router.HandleFunc("/notifications/{id:[0-9]+}/read", s.authed(s.handleMarkRead)).Methods(http.MethodPut)
}

// Fail заставляет API отвечать на method path ошибкой.
func (s *Server) Fail(method, path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, detail: detail}
}

// Calls возвращает полученные запросы.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// LastCall возвращает последний запрос method path.
func (s *Server) LastCall(method, path string) (Call, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.calls) - 1; i >= 0; i-- {
		if s.calls[i].Method == method && s.calls[i].Path == path {
			return s.calls[i], true
		}
	}
	return Call{}, false
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

// AddUser регистрирует пользователя.
func (s *Server) AddUser(username, password string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUser(username, "", password)
}

func (s *Server) addUser(username, email, password string) domain.User {
	u := &user{User: domain.User{ID: s.id(), Username: username, Email: email}, password: password}
	s.users[username] = u
	return u.User
}

// Login выдает токены без HTTP-запроса.
func (s *Server) Login(username string) (token, csrf string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.login(s.users[username].ID)
}

func (s *Server) login(userID int64) (string, string) {
	token, csrf := uuid.NewString(), uuid.NewString()
	s.sessions[token] = session{userID: userID, csrf: csrf}
	return token, csrf
}

// AddPost добавляет публикацию. Пустые id и время заполняются.
func (s *Server) AddPost(p domain.Post) domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = domain.Time{Time: time.Now().UTC()}
	}
	if p.PostType == "" {
		p.PostType = domain.TypeStory
	}
	s.posts = append(s.posts, p)
	return p
}

// AddComment добавляет комментарий.
func (s *Server) AddComment(c domain.Comment) domain.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == 0 {
		c.ID = s.id()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = domain.Time{Time: time.Now().UTC()}
	}
	c.Replies = nil
	s.comments = append(s.comments, c)
	return c
}

// AddNotification добавляет уведомление.
func (s *Server) AddNotification(n domain.Notification) domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == 0 {
		n.ID = s.id()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = domain.Time{Time: time.Now().UTC()}
	}
	s.notifications = append(s.notifications, n)
	return n
}

// Comment возвращает сохраненный комментарий.
func (s *Server) Comment(id int64) (domain.Comment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.commentIndex(id)
	if i < 0 {
		return domain.Comment{}, false
	}
	return s.comments[i], true
}

// Posts возвращает сохраненные публикации.
func (s *Server) Posts() []domain.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Post(nil), s.posts...)
}

// PostVote возвращает голос пользователя за публикацию.
func (s *Server) PostVote(userID, postID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postVotes[voteKey{userID, postID}]
}

// CommentVote возвращает голос пользователя за комментарий.
func (s *Server) CommentVote(userID, commentID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commentVotes[voteKey{userID, commentID}]
}

func (s *Server) recordMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(strings.NewReader(string(b)))

		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Authorization: r.Header.Get("Authorization"),
			CSRFHeader:    r.Header.Get("X-CSRF-Token"),
			Body:          string(b),
		})
		s.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (s *Server) failMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeError(w, errors.New(f.detail), f.status)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// authed проверяет токен, а для небезопасных методов и CSRF-заголовок.
func (s *Server) authed(next func(http.ResponseWriter, *http.Request, int64)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			if c, err := r.Cookie("access_token"); err == nil {
				token = c.Value
			}
		}

		s.mu.Lock()
		sess, ok := s.sessions[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, errUnauthorized, http.StatusUnauthorized)
			return
		}

		if r.Method != http.MethodGet && r.Header.Get("X-CSRF-Token") != sess.csrf {
			writeError(w, errCSRF, http.StatusForbidden)
			return
		}

		next(w, r, sess.userID)
	}
}

func writeError(w http.ResponseWriter, err error, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": err.Error()})
}

func writeJSON(w http.ResponseWriter, data any, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func paging(r *http.Request, def int) (skip, limit int) {
	skip, _ = strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = def
	}
	return skip, limit
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	end := skip + limit
	if end > len(items) {
		end = len(items)
	}
	return items[skip:end]
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var c struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, err, http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[c.Username]; ok {
		writeError(w, errors.New("Username already registered"), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.addUser(c.Username, c.Email, c.Password), http.StatusOK)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var c struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, err, http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	u, ok := s.users[c.Username]
	if !ok || u.password != c.Password {
		s.mu.Unlock()
		writeError(w, errors.New("Incorrect username or password"), http.StatusUnauthorized)
		return
	}
	token, csrf := s.login(u.ID)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "access_token", Value: token, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: "csrf_token", Value: csrf, Path: "/"})
	writeJSON(w, map[string]string{"access_token": token, "token_type": "bearer"}, http.StatusOK)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, _ int64) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	writeJSON(w, map[string]string{"detail": "Logged out"}, http.StatusOK)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == uid {
			writeJSON(w, u.User, http.StatusOK)
			return
		}
	}
	writeError(w, errUnauthorized, http.StatusUnauthorized)
}

func (s *Server) handleUsernameAvailable(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, taken := s.users[r.URL.Query().Get("username")]
	s.mu.Unlock()
	writeJSON(w, map[string]bool{"available": !taken}, http.StatusOK)
}

// withCounts возвращает копию публикации с числом комментариев.
func (s *Server) withCounts(p domain.Post) domain.Post {
	p.CommentCount = 0
	for _, c := range s.comments {
		if c.PostID == p.ID {
			p.CommentCount++
		}
	}
	return p
}

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	skip, limit := paging(r, 30)

	s.mu.Lock()
	defer s.mu.Unlock()

	posts := make([]domain.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if t := q.Get("post_type"); t != "" && p.PostType != t {
			continue
		}
		posts = append(posts, s.withCounts(p))
	}

	switch q.Get("sort") {
	case "top", "best":
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].Score > posts[j].Score })
	default:
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].ID > posts[j].ID })
	}

	writeJSON(w, page(posts, skip, limit), http.StatusOK)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	skip, limit := paging(r, 30)

	s.mu.Lock()
	defer s.mu.Unlock()

	posts := []domain.Post{}
	for _, p := range s.posts {
		if q != "" && strings.Contains(strings.ToLower(p.Title+" "+p.Text), q) {
			posts = append(posts, s.withCounts(p))
		}
	}
	writeJSON(w, page(posts, skip, limit), http.StatusOK)
}

func (s *Server) postIndex(id int64) int {
	for i := range s.posts {
		if s.posts[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) commentIndex(id int64) int {
	for i := range s.comments {
		if s.comments[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.postIndex(pathID(r))
	if i < 0 {
		writeError(w, errors.New("Post not found"), http.StatusNotFound)
		return
	}
	writeJSON(w, s.withCounts(s.posts[i]), http.StatusOK)
}

func (s *Server) username(uid int64) string {
	for _, u := range s.users {
		if u.ID == uid {
			return u.Username
		}
	}
	return ""
}

func (s *Server) handlePostCreate(w http.ResponseWriter, r *http.Request, uid int64) {
	var in struct {
		Title string `json:"title"`
		URL   string `json:"url"`
		Text  string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Title == "" {
		writeError(w, errors.New("Title is required"), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	p := domain.Post{
		ID:        s.id(),
		Title:     in.Title,
		URL:       in.URL,
		Text:      in.Text,
		PostType:  domain.TypeStory,
		Score:     1,
		UserID:    uid,
		Username:  s.username(uid),
		CreatedAt: domain.Time{Time: time.Now().UTC()},
	}
	switch {
	case strings.HasPrefix(strings.ToLower(in.Title), "ask hn"):
		p.PostType = domain.TypeAsk
	case strings.HasPrefix(strings.ToLower(in.Title), "show hn"):
		p.PostType = domain.TypeShow
	}
	s.posts = append(s.posts, p)
	s.mu.Unlock()

	writeJSON(w, p, http.StatusOK)
}

func (s *Server) handlePostVote(w http.ResponseWriter, r *http.Request, uid int64) {
	id := pathID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.postIndex(id)
	if i < 0 {
		writeError(w, errors.New("Post not found"), http.StatusNotFound)
		return
	}
	k := voteKey{uid, id}
	prev := s.postVotes[k]

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, domain.Vote{VoteType: prev}, http.StatusOK)
		return
	case http.MethodDelete:
		delete(s.postVotes, k)
		s.posts[i].Score = domain.AdjustScore(s.posts[i].Score, prev, 0)
		writeJSON(w, map[string]string{"detail": "Vote removed"}, http.StatusOK)
		return
	}

	var v domain.Vote
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil || (v.VoteType != 1 && v.VoteType != -1) {
		writeError(w, errors.New("Vote type must be 1 (upvote) or -1 (downvote)"), http.StatusBadRequest)
		return
	}
	s.postVotes[k] = v.VoteType
	s.posts[i].Score = domain.AdjustScore(s.posts[i].Score, prev, v.VoteType)
	writeJSON(w, v, http.StatusOK)
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) {
	id := pathID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.postIndex(id) < 0 {
		writeError(w, errors.New("Post not found"), http.StatusNotFound)
		return
	}
	var flat []domain.Comment
	for _, c := range s.comments {
		if c.PostID == id {
			flat = append(flat, c)
		}
	}
	tree := domain.ToTree(flat)
	if tree == nil {
		tree = []domain.Comment{}
	}
	writeJSON(w, tree, http.StatusOK)
}

func (s *Server) handleCommentCreate(w http.ResponseWriter, r *http.Request, uid int64) {
	postID := pathID(r)
	var in struct {
		Text     string `json:"text"`
		ParentID *int64 `json:"parent_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Text) == "" {
		writeError(w, errors.New("Comment text is required"), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pi := s.postIndex(postID)
	if pi < 0 {
		writeError(w, errors.New("Post not found"), http.StatusNotFound)
		return
	}
	c := domain.Comment{
		ID:        s.id(),
		Text:      in.Text,
		UserID:    uid,
		PostID:    postID,
		Username:  s.username(uid),
		CreatedAt: domain.Time{Time: time.Now().UTC()},
		PostTitle: s.posts[pi].Title,
	}
	if in.ParentID != nil {
		if s.commentIndex(*in.ParentID) < 0 {
			writeError(w, errors.New("Parent comment not found"), http.StatusNotFound)
			return
		}
		c.ParentID = *in.ParentID
	}
	s.comments = append(s.comments, c)
	writeJSON(w, c, http.StatusOK)
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.commentIndex(pathID(r))
	if i < 0 {
		writeError(w, errors.New("Comment not found"), http.StatusNotFound)
		return
	}
	writeJSON(w, s.comments[i], http.StatusOK)
}

func (s *Server) handleCommentUpdate(w http.ResponseWriter, r *http.Request, uid int64) {
	var in struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Text) == "" {
		writeError(w, errors.New("Comment text is required"), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.commentIndex(pathID(r))
	if i < 0 {
		writeError(w, errors.New("Comment not found"), http.StatusNotFound)
		return
	}
	if s.comments[i].UserID != uid {
		writeError(w, errForbidden, http.StatusForbidden)
		return
	}
	s.comments[i].Text = in.Text
	writeJSON(w, s.comments[i], http.StatusOK)
}

func (s *Server) handleCommentDelete(w http.ResponseWriter, r *http.Request, uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.commentIndex(pathID(r))
	if i < 0 {
		writeError(w, errors.New("Comment not found"), http.StatusNotFound)
		return
	}
	if s.comments[i].UserID != uid {
		writeError(w, errForbidden, http.StatusForbidden)
		return
	}
	s.comments[i].IsDeleted = true
	writeJSON(w, map[string]string{"detail": "Comment deleted"}, http.StatusOK)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	skip, limit := paging(r, 30)

	s.mu.Lock()
	defer s.mu.Unlock()

	cs := append([]domain.Comment(nil), s.comments...)
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].ID > cs[j].ID })
	for i := range cs {
		if pi := s.postIndex(cs[i].PostID); pi >= 0 {
			cs[i].PostTitle = s.posts[pi].Title
		}
	}
	writeJSON(w, page(cs, skip, limit), http.StatusOK)
}

func (s *Server) handleCommentVote(w http.ResponseWriter, r *http.Request, uid int64) {
	id := pathID(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.commentIndex(id)
	if i < 0 {
		writeError(w, errors.New("Comment not found"), http.StatusNotFound)
		return
	}
	k := voteKey{uid, id}
	prev := s.commentVotes[k]

	if r.Method == http.MethodDelete {
		delete(s.commentVotes, k)
		s.comments[i].Score = domain.AdjustScore(s.comments[i].Score, prev, 0)
		writeJSON(w, map[string]string{"detail": "Vote removed"}, http.StatusOK)
		return
	}

	var v domain.Vote
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil || (v.VoteType != 1 && v.VoteType != -1) {
		writeError(w, errors.New("Vote type must be 1 (upvote) or -1 (downvote)"), http.StatusBadRequest)
		return
	}
	s.commentVotes[k] = v.VoteType
	s.comments[i].Score = domain.AdjustScore(s.comments[i].Score, prev, v.VoteType)
	writeJSON(w, domain.CommentVote{CommentID: id, VoteType: v.VoteType}, http.StatusOK)
}

func (s *Server) handleVotesBulk(w http.ResponseWriter, r *http.Request, uid int64) {
	var in struct {
		CommentIDs []int64 `json:"comment_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, err, http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.CommentVote{}
	for _, id := range in.CommentIDs {
		if v, ok := s.commentVotes[voteKey{uid, id}]; ok {
			out = append(out, domain.CommentVote{CommentID: id, VoteType: v})
		}
	}
	writeJSON(w, out, http.StatusOK)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, uid int64) {
	_, limit := paging(r, 50)

	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Notification{}
	for i := len(s.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if s.notifications[i].UserID == uid {
			out = append(out, s.notifications[i])
		}
	}
	writeJSON(w, out, http.StatusOK)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, uid int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, v := range s.notifications {
		if v.UserID == uid && !v.Read {
			n++
		}
	}
	writeJSON(w, map[string]int{"unread_count": n}, http.StatusOK)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, uid int64) {
	id := pathID(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id && s.notifications[i].UserID == uid {
			s.notifications[i].Read = true
			writeJSON(w, map[string]string{"detail": "Notification marked as read"}, http.StatusOK)
			return
		}
	}
	writeError(w, errNotFound, http.StatusNotFound)
}
