package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rtemka/hnfront/domain"
	"github.com/rtemka/hnfront/pkg/backend"
	"github.com/rtemka/hnfront/pkg/backend/backendtest"
	"github.com/rtemka/hnfront/pkg/session"
	"github.com/rtemka/hnfront/pkg/session/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type env struct {
	app   *App
	api   *backendtest.Server
	store *memdb.MemDB
}

func newEnv(t *testing.T) *env {
	t.Helper()

	api := backendtest.New()
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	cl, err := backend.New(ts.URL, "", time.Second)
	require.NoError(t, err)

	store := memdb.New()
	app, err := New(cl, store, zap.NewNop(), Options{SessionTTL: time.Hour})
	require.NoError(t, err)

	return &env{app: app, api: api, store: store}
}

// login создает пользователя и сессию, как после успешного входа.
func (e *env) login(t *testing.T, username string) (*http.Cookie, session.Session) {
	t.Helper()

	u := e.api.AddUser(username, "password1")
	token, csrf := e.api.Login(username)

	s := session.New(time.Hour)
	s.Token, s.CSRF, s.UserID, s.Username = token, csrf, u.ID, username
	require.NoError(t, e.store.Save(context.Background(), s))

	return &http.Cookie{Name: session.CookieName, Value: s.ID}, s
}

func (e *env) do(method, target string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	return rr
}

func document(t *testing.T, rr *httptest.ResponseRecorder) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(rr.Body)
	require.NoError(t, err)
	return doc
}

func id(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestFeed(t *testing.T) {
	e := newEnv(t)
	link := e.api.AddPost(domain.Post{Title: "Go 1.24", URL: "https://go.dev/doc", Score: 3, Username: "rob"})
	ask := e.api.AddPost(domain.Post{Title: "Ask HN: tabs?", Text: "why", PostType: domain.TypeAsk, Username: "ken"})

	rr := e.do(http.MethodGet, "/", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))

	doc := document(t, rr)
	items := doc.Find(".hn-item")
	require.Equal(t, 2, items.Length())

	// новые сверху
	assert.Equal(t, "post-"+id(ask.ID), items.Eq(0).AttrOr("id", ""))
	assert.Equal(t, "1.", items.Eq(0).Find(".hn-rank").Text())
	assert.Equal(t, "2.", items.Eq(1).Find(".hn-rank").Text())
	assert.Equal(t, "(go.dev)", items.Eq(1).Find(".hn-site").Text())

	up := items.Eq(1).Find("a.votearrow").First().AttrOr("href", "")
	assert.Equal(t, "/login?next=/&vote=1&post="+id(link.ID), up)
	down := items.Eq(1).Find("a.downvote").AttrOr("href", "")
	assert.Equal(t, "/login?next=/&vote=-1&post="+id(link.ID), down)

	assert.Contains(t, doc.Find(".hn-subtext").Eq(1).Text(), "3 points by rob")
	assert.Equal(t, "discuss", doc.Find(".hn-discuss").Eq(1).Text())
	assert.Equal(t, "/?p=2", doc.Find(".hn-more").AttrOr("href", ""))
	assert.Equal(t, "login", doc.Find(".hn-user a").First().Text())

	c, ok := e.api.LastCall(http.MethodGet, "/posts/")
	require.True(t, ok)
	assert.Contains(t, c.Query, "sort=new")
}

func TestFeed_Sort(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Top", URL: "https://example.com", Score: 10})

	doc := document(t, e.do(http.MethodGet, "/?sort=top&p=1", nil, nil))
	assert.Equal(t, "/?p=2&sort=top", doc.Find(".hn-more").AttrOr("href", ""))
	assert.Equal(t,
		"/login?next=%2F%3Fsort%3Dtop%26p%3D1&vote=1&post="+id(p.ID),
		doc.Find("a.votearrow").First().AttrOr("href", ""))

	// неизвестная сортировка заменяется сортировкой по умолчанию
	e.do(http.MethodGet, "/?sort=bogus", nil, nil)
	c, ok := e.api.LastCall(http.MethodGet, "/posts/")
	require.True(t, ok)
	assert.Contains(t, c.Query, "sort=new")
}

func TestFeed_Empty(t *testing.T) {
	e := newEnv(t)

	tests := []struct {
		target, want string
	}{
		{"/jobs", "No job listings found."},
		{"/jobs?p=2", "No more job listings."},
		{"/ask", "No ask posts found."},
		{"/show?p=3", "No more show posts."},
		{"/news", "No posts found."},
		{"/?p=abc", "No posts found."},
	}
	for _, tt := range tests {
		doc := document(t, e.do(http.MethodGet, tt.target, nil, nil))
		assert.Equal(t, tt.want, doc.Find(".hn-empty").Text(), tt.target)
		assert.Equal(t, 0, doc.Find(".hn-more").Length(), tt.target)
	}
}

func TestFeed_Job(t *testing.T) {
	e := newEnv(t)
	e.api.AddPost(domain.Post{Title: "Hiring", URL: "https://jobs.example.com", PostType: domain.TypeJob, Score: 5})

	doc := document(t, e.do(http.MethodGet, "/jobs", nil, nil))
	sub := doc.Find(".hn-subtext").Text()
	assert.Contains(t, sub, "ago")
	assert.NotContains(t, sub, "points")
	assert.Equal(t, 0, doc.Find("a.votearrow").Length())
}

func TestFeed_Error(t *testing.T) {
	e := newEnv(t)
	e.api.Fail(http.MethodGet, "/posts/", http.StatusInternalServerError, "")

	rr := e.do(http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	doc := document(t, rr)
	assert.Equal(t, "Failed to fetch posts.", doc.Find(".hn-error").Text())
	assert.Equal(t, 0, doc.Find(".hn-empty").Length())
}

func TestHeader_LoggedIn(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")
	e.api.AddNotification(domain.Notification{UserID: s.UserID, Message: "bob replied"})

	doc := document(t, e.do(http.MethodGet, "/", nil, cookie))
	assert.Equal(t, "alice", doc.Find(".hn-username").Text())
	assert.Equal(t, "notifications (1)", doc.Find("#notifications").Text())
	assert.Equal(t, s.FormToken, doc.Find("form[action='/logout'] input[name=auth]").AttrOr("value", ""))
}

// chain добавляет цепочку из n вложенных комментариев.
func chain(e *env, postID, userID int64, n int) []domain.Comment {
	var out []domain.Comment
	var parent int64
	for i := 0; i < n; i++ {
		c := e.api.AddComment(domain.Comment{PostID: postID, ParentID: parent, UserID: userID, Username: "u", Text: "c" + strconv.Itoa(i)})
		out = append(out, c)
		parent = c.ID
	}
	return out
}

func TestPost(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Show HN: hnfront", Text: "server side", PostType: domain.TypeShow, Username: "rob"})
	cs := chain(e, p.ID, 99, 2)

	rr := e.do(http.MethodGet, "/post/"+id(p.ID), nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	doc := document(t, rr)

	assert.Equal(t, "Show HN: hnfront | Hacker News", doc.Find("title").Text())
	assert.Equal(t, "server side", doc.Find(".hn-post-text").Text())
	assert.Equal(t, "/login?next=/post/"+id(p.ID), doc.Find("main p a").First().AttrOr("href", ""))

	rows := doc.Find(".hn-comment")
	require.Equal(t, 2, rows.Length())
	assert.Equal(t, "margin-left: 40px", rows.Eq(1).AttrOr("style", ""))
	assert.Equal(t, "/login?next=/reply/"+id(cs[1].ID), rows.Eq(1).Find(".hn-reply").AttrOr("href", ""))
	assert.Equal(t, "/post/"+id(p.ID)+"?id="+id(cs[0].ID), rows.Eq(1).Find(".hn-parent").AttrOr("href", ""))
	assert.Equal(t, "/login?next=/post/"+id(p.ID)+"&vote=1&comment="+id(cs[0].ID),
		rows.Eq(0).Find("a.votearrow").AttrOr("href", ""))
	assert.Equal(t, 0, doc.Find(".hn-edit-link").Length())
}

func TestPost_NoComments(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Quiet", URL: "https://example.com"})

	doc := document(t, e.do(http.MethodGet, "/post/"+id(p.ID), nil, nil))
	assert.Equal(t, "No comments yet.", doc.Find(".hn-empty").Text())
}

func TestPost_NotFound(t *testing.T) {
	e := newEnv(t)

	rr := e.do(http.MethodGet, "/post/404", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Post not found", document(t, rr).Find(".hn-error").Text())

	p := e.api.AddPost(domain.Post{Title: "x", Text: "y"})
	rr = e.do(http.MethodGet, "/post/"+id(p.ID)+"?id=12345", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Comment not found", document(t, rr).Find(".hn-error").Text())
}

func TestPost_Depth(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Deep", Text: "thread"})
	cs := chain(e, p.ID, 99, 7)

	doc := document(t, e.do(http.MethodGet, "/post/"+id(p.ID), nil, nil))
	rows := doc.Find(".hn-comment")
	require.Equal(t, 6, rows.Length())

	last := rows.Last()
	assert.Equal(t, 0, last.Find(".hn-reply").Length())
	assert.Equal(t, "1 more replies", last.Find(".hn-more-replies").Text())
	assert.Equal(t, "/post/"+id(p.ID)+"?id="+id(cs[5].ID), last.Find(".hn-more-replies").AttrOr("href", ""))

	// ветка, открытая по ссылке, начинается с нулевой глубины
	doc = document(t, e.do(http.MethodGet, "/post/"+id(p.ID)+"?id="+id(cs[5].ID), nil, nil))
	rows = doc.Find(".hn-comment")
	require.Equal(t, 2, rows.Length())
	assert.Equal(t, "margin-left: 0px", rows.Eq(0).AttrOr("style", ""))
}

func TestPost_FocusNavigation(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Nav", Text: "thread"})
	cs := chain(e, p.ID, 99, 3)
	sib := e.api.AddComment(domain.Comment{PostID: p.ID, ParentID: cs[0].ID, UserID: 99, Username: "u", Text: "sibling"})
	base := "/post/" + id(p.ID)
	row := func(doc *goquery.Document, c domain.Comment) *goquery.Selection {
		return doc.Find(`.hn-comment[id="` + id(c.ID) + `"]`)
	}

	doc := document(t, e.do(http.MethodGet, base, nil, nil))
	assert.Equal(t, "#"+id(cs[0].ID), row(doc, cs[2]).Find(".hn-root").AttrOr("href", ""))
	assert.Equal(t, "#"+id(sib.ID), row(doc, cs[1]).Find(".hn-next").AttrOr("href", ""))

	// корня и соседей выбранного комментария нет на странице
	doc = document(t, e.do(http.MethodGet, base+"?id="+id(cs[1].ID), nil, nil))
	require.Equal(t, 2, doc.Find(".hn-comment").Length())
	assert.Equal(t, base+"?id="+id(cs[0].ID), row(doc, cs[2]).Find(".hn-root").AttrOr("href", ""))
	assert.Equal(t, base+"?id="+id(sib.ID), row(doc, cs[1]).Find(".hn-next").AttrOr("href", ""))
}

func TestPost_VotesFailed(t *testing.T) {
	e := newEnv(t)
	core, logs := observer.New(zap.DebugLevel)
	e.app.logger = zap.New(core)

	cookie, _ := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "Votes", Text: "t"})
	chain(e, p.ID, 99, 2)
	e.api.Fail(http.MethodPost, "/comments/votes/bulk", http.StatusInternalServerError, "")

	rr := e.do(http.MethodGet, "/post/"+id(p.ID), nil, cookie)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, document(t, rr).Find(".hn-comment").Length())

	entries := logs.FilterMessage("comment votes").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap(), "request_id")
}

func TestPost_Collapse(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Fold", Text: "thread"})
	cs := chain(e, p.ID, 99, 3)

	target := "/post/" + id(p.ID) + "?c=" + id(cs[0].ID)
	doc := document(t, e.do(http.MethodGet, target, nil, nil))
	rows := doc.Find(".hn-comment")
	require.Equal(t, 1, rows.Length())

	toggle := rows.Find(".hn-toggle")
	assert.Equal(t, "[2 more]", toggle.Text())
	assert.Equal(t, "/post/"+id(p.ID), toggle.AttrOr("href", ""))
	assert.Equal(t, 0, rows.Find(".hn-comment-text").Length())
}

func TestPost_Owner(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "Mine", Text: "t"})
	c := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: s.UserID, Username: "alice", Text: "first"})
	e.api.AddComment(domain.Comment{PostID: p.ID, UserID: 99, Username: "bob", Text: "second"})

	path := "/post/" + id(p.ID)
	doc := document(t, e.do(http.MethodGet, path, nil, cookie))
	require.Equal(t, 1, doc.Find(".hn-edit-link").Length())
	assert.Equal(t, path+"?edit="+id(c.ID), doc.Find(".hn-edit-link").AttrOr("href", ""))
	assert.Equal(t, path+"?delete="+id(c.ID), doc.Find(".hn-delete-link").AttrOr("href", ""))
	assert.Equal(t, "/reply/"+id(c.ID), doc.Find(".hn-reply").First().AttrOr("href", ""))
	assert.Equal(t, 1, doc.Find("form.hn-comment-form").Length())

	doc = document(t, e.do(http.MethodGet, path+"?edit="+id(c.ID), nil, cookie))
	form := doc.Find("form.hn-edit")
	require.Equal(t, 1, form.Length())
	assert.Equal(t, "first", form.Find("textarea").Text())
	assert.Equal(t, path, form.Find("input[name=goto]").AttrOr("value", ""))

	doc = document(t, e.do(http.MethodGet, path+"?delete="+id(c.ID), nil, cookie))
	assert.Contains(t, doc.Find("form.hn-delete").Text(), "Do you want this to be deleted?")
}

func TestCommentCreate(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "Talk", Text: "t"})
	target := "/post/" + id(p.ID) + "/comments"

	rr := e.do(http.MethodPost, target, url.Values{"auth": {s.FormToken}, "text": {"  hello  "}}, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/post/"+id(p.ID), rr.Header().Get("Location"))

	call, ok := e.api.LastCall(http.MethodPost, "/posts/"+id(p.ID)+"/comments")
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"hello","parent_id":null}`, call.Body)

	rr = e.do(http.MethodPost, target, url.Values{"auth": {s.FormToken}, "text": {"   "}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	doc := document(t, rr)
	assert.Equal(t, "Please enter some text.", doc.Find(".hn-error").Text())
	assert.Equal(t, "/post/"+id(p.ID)+"/comments", doc.Find("form.hn-comment-form").AttrOr("action", ""))

	rr = e.do(http.MethodPost, target, url.Values{"auth": {"forged"}, "text": {"x"}}, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(http.MethodPost, target, url.Values{"text": {"x"}}, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next=/post/"+id(p.ID), rr.Header().Get("Location"))
}

func TestCommentCreate_Failed(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "Talk", Text: "t"})
	target := "/post/" + id(p.ID) + "/comments"
	e.api.Fail(http.MethodPost, "/posts/"+id(p.ID)+"/comments", http.StatusInternalServerError, "")

	rr := e.do(http.MethodPost, target, url.Values{"auth": {s.FormToken}, "text": {"keep me"}}, cookie)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	doc := document(t, rr)
	assert.Equal(t, "Failed to post comment. Please try again.", doc.Find(".hn-error").Text())
	assert.Equal(t, "keep me", doc.Find("form.hn-comment-form textarea").Text())
}

func TestCommentEdit(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "Edit", Text: "t"})
	c := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: s.UserID, Text: "old"})
	path := "/post/" + id(p.ID)

	rr := e.do(http.MethodPost, "/comment/"+id(c.ID)+"/edit",
		url.Values{"auth": {s.FormToken}, "text": {"new"}, "goto": {path}}, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, path, rr.Header().Get("Location"))
	got, _ := e.api.Comment(c.ID)
	assert.Equal(t, "new", got.Text)

	// пустой текст не отправляется
	n := len(e.api.Calls())
	rr = e.do(http.MethodPost, "/comment/"+id(c.ID)+"/edit",
		url.Values{"auth": {s.FormToken}, "text": {" "}, "goto": {path}}, cookie)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	for _, call := range e.api.Calls()[n:] {
		assert.NotEqual(t, http.MethodPut, call.Method)
	}

	// чужой комментарий
	other := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: 99, Text: "bob"})
	rr = e.do(http.MethodPost, "/comment/"+id(other.ID)+"/edit",
		url.Values{"auth": {s.FormToken}, "text": {"hijack"}, "goto": {path}}, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "Not authorized", document(t, rr).Find(".hn-error").Text())
}

func TestCommentDelete(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "Delete", Text: "t"})
	c := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: s.UserID, Text: "oops"})
	path := "/post/" + id(p.ID)

	rr := e.do(http.MethodPost, "/comment/"+id(c.ID)+"/delete",
		url.Values{"auth": {s.FormToken}, "goto": {"//evil.com"}}, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	doc := document(t, e.do(http.MethodGet, path, nil, cookie))
	text := doc.Find(".hn-comment-text")
	assert.Equal(t, domain.DeletedText, text.Text())
	assert.True(t, text.HasClass("hn-deleted"))
	assert.Equal(t, 0, doc.Find(".hn-reply").Length())
	assert.Equal(t, 0, doc.Find(".hn-comment a.votearrow").Length())
}

func TestReply(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Parent post", Text: "t"})
	c := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: 99, Username: "bob", Text: "reply to me", PostTitle: "Parent post"})

	doc := document(t, e.do(http.MethodGet, "/reply/"+id(c.ID), nil, nil))
	assert.Equal(t, "reply to me", doc.Find(".hn-comment-text").Text())
	assert.Equal(t, "Parent post", doc.Find(".hn-on").Text())
	assert.Contains(t, doc.Find("main").Text(), "Login to reply.")
	assert.Equal(t, "/login?next=/reply/"+id(c.ID), doc.Find("main p a").AttrOr("href", ""))

	cookie, s := e.login(t, "alice")
	rr := e.do(http.MethodPost, "/reply/"+id(c.ID), url.Values{"auth": {s.FormToken}, "text": {"hi bob"}}, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/post/"+id(p.ID)+"?id="+id(c.ID), rr.Header().Get("Location"))

	call, ok := e.api.LastCall(http.MethodPost, "/posts/"+id(p.ID)+"/comments")
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"hi bob","parent_id":`+id(c.ID)+`}`, call.Body)

	rr = e.do(http.MethodGet, "/reply/987654", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Comment not found", document(t, rr).Find(".hn-error").Text())
}

func TestReply_Deleted(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Parent post", Text: "t"})
	c := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: 99, Username: "bob", Text: "gone", IsDeleted: true})

	cookie, s := e.login(t, "alice")
	doc := document(t, e.do(http.MethodGet, "/reply/"+id(c.ID), nil, cookie))
	assert.Equal(t, 0, doc.Find(".hn-reply-form").Length())
	assert.Equal(t, "Deleted comments can't be replied to.", doc.Find(".hn-closed").Text())

	rr := e.do(http.MethodPost, "/reply/"+id(c.ID), url.Values{"auth": {s.FormToken}, "text": {"hello?"}}, cookie)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, ErrNoReply.Error(), document(t, rr).Find(".hn-error").Text())

	_, ok := e.api.LastCall(http.MethodPost, "/posts/"+id(p.ID)+"/comments")
	assert.False(t, ok)
}

func TestVote(t *testing.T) {
	e := newEnv(t)
	p := e.api.AddPost(domain.Post{Title: "Vote", URL: "https://example.com"})

	rr := e.do(http.MethodGet, "/vote?id="+id(p.ID)+"&how=down&kind=post&goto=%2Fnews", nil, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next=/news&vote=-1&post="+id(p.ID), rr.Header().Get("Location"))

	cookie, s := e.login(t, "alice")
	q := url.Values{"id": {id(p.ID)}, "how": {"up"}, "kind": {"post"}, "auth": {s.FormToken}, "goto": {"/news?p=2"}}
	rr = e.do(http.MethodGet, "/vote?"+q.Encode(), nil, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/news?p=2", rr.Header().Get("Location"))
	assert.Equal(t, 1, e.api.PostVote(s.UserID, p.ID))

	doc := document(t, e.do(http.MethodGet, "/post/"+id(p.ID), nil, cookie))
	assert.Equal(t, 0, doc.Find(".hn-item a.votearrow").Length())
	unvote := doc.Find(".hn-subtext .hn-unvote").AttrOr("href", "")
	assert.True(t, strings.HasPrefix(unvote, "/vote?"), unvote)

	q.Set("how", "un")
	e.do(http.MethodGet, "/vote?"+q.Encode(), nil, cookie)
	assert.Equal(t, 0, e.api.PostVote(s.UserID, p.ID))

	q.Set("auth", "forged")
	rr = e.do(http.MethodGet, "/vote?"+q.Encode(), nil, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(http.MethodGet, "/vote?id=x&how=up&kind=post", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVote_Comment(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "Vote", Text: "t"})
	c := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: 99, Text: "nice"})
	path := "/post/" + id(p.ID)

	doc := document(t, e.do(http.MethodGet, path, nil, cookie))
	href := doc.Find(".hn-comment a.votearrow").AttrOr("href", "")
	require.True(t, strings.HasPrefix(href, "/vote?"), href)

	rr := e.do(http.MethodGet, href, nil, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, path, rr.Header().Get("Location"))
	assert.Equal(t, 1, e.api.CommentVote(s.UserID, c.ID))

	doc = document(t, e.do(http.MethodGet, path, nil, cookie))
	assert.Equal(t, 0, doc.Find(".hn-comment a.votearrow").Length())
	assert.Equal(t, 1, doc.Find(".hn-comment .hn-unvote").Length())
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	u := e.api.AddUser("bob", "password1")
	p := e.api.AddPost(domain.Post{Title: "Later", URL: "https://example.com"})

	doc := document(t, e.do(http.MethodGet, "/login?next=%2Fnews%3Fp%3D2&vote=1&post="+id(p.ID), nil, nil))
	form := doc.Find("form.hn-login")
	assert.Equal(t, "/news?p=2", form.Find("input[name=next]").AttrOr("value", ""))
	assert.Equal(t, "1", form.Find("input[name=vote]").AttrOr("value", ""))
	assert.Equal(t, id(p.ID), form.Find("input[name=post]").AttrOr("value", ""))
	assert.Equal(t, "Create account", doc.Find("a[href='/register']").Last().Text())

	rr := e.do(http.MethodPost, "/login", url.Values{
		"username": {"bob"}, "password": {"password1"},
		"next": {"/news?p=2"}, "vote": {"1"}, "post": {id(p.ID)},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/news?p=2", rr.Header().Get("Location"))

	// отложенный голос отдан после входа
	assert.Equal(t, 1, e.api.PostVote(u.ID, p.ID))

	var sid *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName {
			sid = c
		}
	}
	require.NotNil(t, sid)
	assert.True(t, sid.HttpOnly)

	s, err := e.store.Get(context.Background(), sid.Value)
	require.NoError(t, err)
	assert.Equal(t, u.ID, s.UserID)
	assert.Equal(t, "bob", s.Username)
	assert.NotEmpty(t, s.Token)
	assert.NotEmpty(t, s.CSRF)

	// вошедший пользователь видит свое имя
	doc = document(t, e.do(http.MethodGet, "/", nil, sid))
	assert.Equal(t, "bob", doc.Find(".hn-username").Text())
}

func TestLogin_UnsafeNext(t *testing.T) {
	e := newEnv(t)
	e.api.AddUser("bob", "password1")

	unsafe := []string{"//evil.com", "https://evil.com", "/\\evil.com", "/\\\\evil.com", "/\t/evil.com", "/\n/evil.com"}
	for _, next := range unsafe {
		rr := e.do(http.MethodPost, "/login", url.Values{
			"username": {"bob"}, "password": {"password1"}, "next": {next},
		}, nil)
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"), next)
	}

	// уже вошедший пользователь сразу уходит на next
	cookie, s := e.login(t, "alice")
	for _, next := range unsafe {
		rr := e.do(http.MethodGet, "/login?next="+url.QueryEscape(next), nil, cookie)
		require.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"), next)
	}

	p := e.api.AddPost(domain.Post{Title: "Vote", URL: "https://example.com"})
	q := url.Values{"id": {id(p.ID)}, "how": {"up"}, "kind": {"post"}, "auth": {s.FormToken}, "goto": {"/\t/evil.com"}}
	rr := e.do(http.MethodGet, "/vote?"+q.Encode(), nil, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestLogin_Failed(t *testing.T) {
	e := newEnv(t)
	e.api.AddUser("bob", "password1")

	rr := e.do(http.MethodPost, "/login", url.Values{"username": {"bob"}, "password": {"nope"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	doc := document(t, rr)
	assert.Equal(t, "Incorrect username or password", doc.Find(".hn-error").Text())
	assert.Equal(t, "bob", doc.Find("input[name=username]").AttrOr("value", ""))

	e.api.Fail(http.MethodPost, "/auth/login", http.StatusInternalServerError, "")
	rr = e.do(http.MethodPost, "/login", url.Values{"username": {"bob"}, "password": {"password1"}}, nil)
	assert.Equal(t, "Login failed. Please try again.", document(t, rr).Find(".hn-error").Text())

	rr = e.do(http.MethodPost, "/login", url.Values{"username": {" "}, "password": {""}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRegister(t *testing.T) {
	e := newEnv(t)
	e.api.AddUser("taken", "password1")

	doc := document(t, e.do(http.MethodGet, "/register?username=taken", nil, nil))
	assert.Equal(t, "taken", doc.Find(".hn-status").Text())
	doc = document(t, e.do(http.MethodGet, "/register?username=fresh", nil, nil))
	assert.Equal(t, "available", doc.Find(".hn-status").Text())
	assert.Equal(t, "create account", doc.Find("form.hn-register button").Text())

	rr := e.do(http.MethodPost, "/register", url.Values{"username": {"carol"}, "password": {"short1"}}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	doc = document(t, rr)
	assert.Equal(t, "Password must be at least 8 characters.", doc.Find(".hn-error").Text())
	assert.Equal(t, "carol", doc.Find("input[name=username]").AttrOr("value", ""))

	rr = e.do(http.MethodPost, "/register", url.Values{"username": {"taken"}, "password": {"password1"}}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, "taken", document(t, rr).Find(".hn-status").Text())

	rr = e.do(http.MethodPost, "/register", url.Values{
		"username": {"carol"}, "email": {"carol@example.com"}, "password": {"password1"},
	}, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))

	rr = e.do(http.MethodPost, "/login", url.Values{"username": {"carol"}, "password": {"password1"}}, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestRegister_Failed(t *testing.T) {
	e := newEnv(t)
	e.api.Fail(http.MethodPost, "/auth/register", http.StatusBadRequest, "Email already registered")

	rr := e.do(http.MethodPost, "/register", url.Values{"username": {"dave"}, "password": {"password1"}}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Email already registered", document(t, rr).Find(".hn-error").Text())
}

func TestLogout(t *testing.T) {
	e := newEnv(t)
	cookie, s := e.login(t, "alice")

	rr := e.do(http.MethodPost, "/logout", url.Values{"auth": {"forged"}}, cookie)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = e.do(http.MethodPost, "/logout", url.Values{"auth": {s.FormToken}}, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	_, err := e.store.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	_, ok := e.api.LastCall(http.MethodPost, "/auth/logout")
	assert.True(t, ok)

	// с удаленной сессией пользователь снова гость
	doc := document(t, e.do(http.MethodGet, "/", nil, cookie))
	assert.Equal(t, 0, doc.Find(".hn-username").Length())
}

func TestSessionExpired(t *testing.T) {
	e := newEnv(t)

	s := session.New(time.Hour)
	s.Token, s.CSRF, s.Username = "stale", "stale", "ghost"
	require.NoError(t, e.store.Save(context.Background(), s))
	cookie := &http.Cookie{Name: session.CookieName, Value: s.ID}

	rr := e.do(http.MethodGet, "/notifications", nil, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next=/notifications", rr.Header().Get("Location"))

	_, err := e.store.Get(context.Background(), s.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)

	var cleared bool
	for _, c := range rr.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}

func TestSubmit(t *testing.T) {
	e := newEnv(t)

	rr := e.do(http.MethodGet, "/submit", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next=/submit", rr.Header().Get("Location"))

	cookie, s := e.login(t, "alice")
	doc := document(t, e.do(http.MethodGet, "/submit", nil, cookie))
	assert.Equal(t, s.FormToken, doc.Find("form.hn-submit input[name=auth]").AttrOr("value", ""))

	rr = e.do(http.MethodPost, "/submit", url.Values{"auth": {s.FormToken}, "title": {"Empty"}}, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	doc = document(t, rr)
	assert.Equal(t, "Please provide either a URL or text content.", doc.Find(".hn-error").Text())
	assert.Equal(t, "Empty", doc.Find("input[name=title]").AttrOr("value", ""))

	rr = e.do(http.MethodPost, "/submit", url.Values{
		"auth": {s.FormToken}, "title": {"Go"}, "url": {"https://go.dev"},
	}, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))

	posts := e.api.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "Go", posts[0].Title)
	assert.Equal(t, "https://go.dev", posts[0].URL)

	e.api.Fail(http.MethodPost, "/posts/", http.StatusInternalServerError, "")
	rr = e.do(http.MethodPost, "/submit", url.Values{"auth": {s.FormToken}, "title": {"Again"}, "text": {"t"}}, cookie)
	assert.Equal(t, "Failed to submit post. Please try again.", document(t, rr).Find(".hn-error").Text())
}

func TestRecentComments(t *testing.T) {
	e := newEnv(t)

	doc := document(t, e.do(http.MethodGet, "/comments", nil, nil))
	assert.Equal(t, "No comments found.", doc.Find(".hn-empty").Text())
	doc = document(t, e.do(http.MethodGet, "/comments?p=2", nil, nil))
	assert.Equal(t, "No more comments.", doc.Find(".hn-empty").Text())

	cookie, s := e.login(t, "alice")
	p := e.api.AddPost(domain.Post{Title: "On this", Text: "t"})
	root := e.api.AddComment(domain.Comment{PostID: p.ID, UserID: 99, Username: "bob", Text: "root"})
	reply := e.api.AddComment(domain.Comment{PostID: p.ID, ParentID: root.ID, UserID: 99, Username: "bob", Text: "reply"})
	require.NoError(t, voteComment(e, s, root.ID))

	doc = document(t, e.do(http.MethodGet, "/comments", nil, cookie))
	rows := doc.Find(".hn-comment")
	require.Equal(t, 2, rows.Length())

	// новые сверху
	assert.Equal(t, id(reply.ID), rows.Eq(0).AttrOr("id", ""))
	assert.Equal(t, "/post/"+id(p.ID)+"?id="+id(root.ID), rows.Eq(0).Find(".hn-parent").AttrOr("href", ""))
	assert.Equal(t, "On this", rows.Eq(0).Find(".hn-on").Text())
	assert.Equal(t, 1, rows.Eq(0).Find("a.votearrow").Length())
	assert.Equal(t, 0, rows.Eq(0).Find(".hn-unvote").Length())

	assert.Equal(t, 0, rows.Eq(1).Find("a.votearrow").Length())
	assert.Equal(t, 1, rows.Eq(1).Find(".hn-unvote").Length())
	assert.Equal(t, "/comments?p=2", doc.Find(".hn-more").AttrOr("href", ""))

	e.api.Fail(http.MethodGet, "/comments/recent", http.StatusInternalServerError, "")
	doc = document(t, e.do(http.MethodGet, "/comments", nil, nil))
	assert.Equal(t, "Failed to fetch comments.", doc.Find(".hn-error").Text())
}

func voteComment(e *env, s session.Session, id int64) error {
	req := httptest.NewRequest(http.MethodGet, "/vote?"+url.Values{
		"id": {strconv.FormatInt(id, 10)}, "how": {"up"}, "kind": {"comment"}, "auth": {s.FormToken},
	}.Encode(), nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: s.ID})
	rr := httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	if rr.Code != http.StatusSeeOther {
		return &backend.APIError{Status: rr.Code}
	}
	return nil
}

func TestSearch(t *testing.T) {
	e := newEnv(t)
	e.api.AddPost(domain.Post{Title: "Rust vs Go", URL: "https://example.com/rust-go"})
	e.api.AddPost(domain.Post{Title: "Python tips", Text: "t"})

	doc := document(t, e.do(http.MethodGet, "/search?q=++", nil, nil))
	assert.Equal(t, "No results found.", doc.Find(".hn-empty").Text())
	_, ok := e.api.LastCall(http.MethodGet, "/posts/search")
	assert.False(t, ok)

	doc = document(t, e.do(http.MethodGet, "/search?q=go", nil, nil))
	require.Equal(t, 1, doc.Find(".hn-item").Length())
	assert.Equal(t, "1.", doc.Find(".hn-rank").Text())
	assert.Equal(t, "go", doc.Find("footer input[name=q]").AttrOr("value", ""))
	// как и в ленте, "More" есть на любой непустой странице
	assert.Equal(t, "/search?p=2&q=go", doc.Find(".hn-more").AttrOr("href", ""))

	doc = document(t, e.do(http.MethodGet, "/search?q=haskell", nil, nil))
	assert.Equal(t, "No results found.", doc.Find(".hn-empty").Text())
	assert.Equal(t, 0, doc.Find(".hn-more").Length())

	e.api.Fail(http.MethodGet, "/posts/search", http.StatusInternalServerError, "")
	doc = document(t, e.do(http.MethodGet, "/search?q=go", nil, nil))
	assert.Equal(t, "Failed to fetch search results.", doc.Find(".hn-error").Text())
}

func TestNotifications(t *testing.T) {
	e := newEnv(t)

	rr := e.do(http.MethodGet, "/notifications", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login?next=/notifications", rr.Header().Get("Location"))

	cookie, s := e.login(t, "alice")
	doc := document(t, e.do(http.MethodGet, "/notifications", nil, cookie))
	assert.Equal(t, "No notifications yet.", doc.Find(".hn-empty").Text())
	assert.Equal(t, "notifications", doc.Find("#notifications").Text())

	n := e.api.AddNotification(domain.Notification{UserID: s.UserID, Message: "bob replied to you", PostID: 7, CommentID: 9})
	doc = document(t, e.do(http.MethodGet, "/notifications", nil, cookie))
	item := doc.Find(".hn-notification")
	require.Equal(t, 1, item.Length())
	assert.True(t, item.HasClass("hn-unread"))
	assert.Equal(t, "/post/7?id=9", item.Find("a").AttrOr("href", ""))
	assert.Equal(t, "[mark as read]", item.Find(".hn-mark").Text())

	rr = e.do(http.MethodPost, "/notifications/"+id(n.ID)+"/read", url.Values{"auth": {s.FormToken}}, cookie)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/notifications", rr.Header().Get("Location"))

	doc = document(t, e.do(http.MethodGet, "/notifications", nil, cookie))
	assert.False(t, doc.Find(".hn-notification").HasClass("hn-unread"))
	assert.Equal(t, 0, doc.Find(".hn-mark").Length())
}

func TestService(t *testing.T) {
	e := newEnv(t)

	rr := e.do(http.MethodGet, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var health map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.NotEmpty(t, rr.Header().Get(RequestIDHeader))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	assert.Contains(t, rr.Header().Get("Content-Security-Policy"), "frame-ancestors 'none'")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc123")
	rr = httptest.NewRecorder()
	e.app.ServeHTTP(rr, req)
	assert.Equal(t, "abc123", rr.Header().Get(RequestIDHeader))

	rr = e.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "hnfront_http_requests_total")

	rr = e.do(http.MethodGet, "/static/style.css", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "text/css")

	rr = e.do(http.MethodGet, "/no/such/page", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "Page not found.", document(t, rr).Find(".hn-error").Text())
}

func TestPage(t *testing.T) {
	u, _ := url.Parse("/post/5?id=7&edit=9")
	p := &page{url: u}

	assert.Equal(t, "/post/5?id=7&edit=9", p.Path())
	assert.Equal(t, "/post/5?id=7", p.Set("edit", ""))
	assert.Equal(t, "/post/5?delete=9&id=7", p.Set("delete", int64(9), "edit", ""))
	assert.Equal(t, "/post/5?c=1%2C2&edit=9&id=7", p.Set("c", "1,2"))

	assert.Equal(t, "/login?next=%2Fpost%2F5%3Fid%3D7%26edit%3D9&vote=1&comment=3", p.Vote("comment", 3, "up"))

	p.LoggedIn = true
	p.User.FormToken = "tok"
	v, err := url.Parse(p.Vote("post", 5, "down"))
	require.NoError(t, err)
	assert.Equal(t, "/vote", v.Path)
	assert.Equal(t, "5", v.Query().Get("id"))
	assert.Equal(t, "down", v.Query().Get("how"))
	assert.Equal(t, "post", v.Query().Get("kind"))
	assert.Equal(t, "tok", v.Query().Get("auth"))
	assert.Equal(t, "/post/5?id=7&edit=9", v.Query().Get("goto"))
}

func TestEscapeNext(t *testing.T) {
	assert.Equal(t, "/post/5", escapeNext("/post/5"))
	assert.Equal(t, "%2Fnews%3Fsort%3Dtop%26p%3D2", escapeNext("/news?sort=top&p=2"))
}

func TestEmptyFeed(t *testing.T) {
	assert.Equal(t, "No posts found.", emptyFeed("", 1))
	assert.Equal(t, "No more posts.", emptyFeed(domain.TypeStory, 2))
	assert.Equal(t, "No ask posts found.", emptyFeed(domain.TypeAsk, 1))
}
