package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"
	"github.com/rtemka/hnfront/domain"
)

// Credentials - данные формы входа и регистрации.
type Credentials struct {
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// Token - результат входа.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	CSRF        string `json:"-"`
}

// ListParams - параметры ленты публикаций.
type ListParams struct {
	Sort     string
	PostType string
	Limit    int
	Skip     int
}

// NewPost - данные новой публикации.
type NewPost struct {
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
	Text  string `json:"text,omitempty"`
}

func path(format string, id int64) string {
	return format + strconv.FormatInt(id, 10)
}

func paged(limit, skip int) url.Values {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	return q
}

// Register создает пользователя.
func (cl *Client) Register(ctx context.Context, c Credentials) (domain.User, error) {
	var u domain.User
	_, err := cl.do(ctx, Auth{}, call{op: "auth.register", method: http.MethodPost, path: "/auth/register", in: c, out: &u})
	return u, err
}

// Login возвращает токен доступа. Если API выставил cookie
// с токенами, их значения предпочтительнее.
func (cl *Client) Login(ctx context.Context, username, password string) (Token, error) {
	var t Token
	cookies, err := cl.do(ctx, Auth{}, call{
		op:     "auth.login",
		method: http.MethodPost,
		path:   "/auth/login",
		in:     Credentials{Username: username, Password: password},
		out:    &t,
	})
	if err != nil {
		return t, err
	}
	for _, c := range cookies {
		switch c.Name {
		case AccessCookie:
			if c.Value != "" {
				t.AccessToken = c.Value
			}
		case CSRFCookie:
			t.CSRF = c.Value
		}
	}
	if t.AccessToken == "" {
		return t, errors.New("auth.login: empty access token")
	}
	return t, nil
}

func (cl *Client) Logout(ctx context.Context, a Auth) error {
	_, err := cl.do(ctx, a, call{op: "auth.logout", method: http.MethodPost, path: "/auth/logout"})
	return err
}

// Me возвращает текущего пользователя.
func (cl *Client) Me(ctx context.Context, a Auth) (domain.User, error) {
	var u domain.User
	_, err := cl.do(ctx, a, call{op: "auth.me", method: http.MethodGet, path: "/auth/me", out: &u})
	return u, err
}

func (cl *Client) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	var res struct {
		Available bool `json:"available"`
	}
	_, err := cl.do(ctx, Auth{}, call{
		op:     "auth.username_available",
		method: http.MethodGet,
		path:   "/auth/username-available",
		query:  url.Values{"username": {username}},
		out:    &res,
	})
	return res.Available, err
}

// Posts возвращает ленту публикаций.
func (cl *Client) Posts(ctx context.Context, a Auth, p ListParams) ([]domain.Post, error) {
	q := paged(p.Limit, p.Skip)
	if p.Sort != "" {
		q.Set("sort", p.Sort)
	}
	if p.PostType != "" {
		q.Set("post_type", p.PostType)
	}
	var posts []domain.Post
	_, err := cl.do(ctx, a, call{op: "posts.list", method: http.MethodGet, path: "/posts/", query: q, out: &posts})
	return posts, err
}

// Search ищет публикации по строке q.
func (cl *Client) Search(ctx context.Context, a Auth, q string, limit, skip int) ([]domain.Post, error) {
	qv := paged(limit, skip)
	qv.Set("q", q)
	var posts []domain.Post
	_, err := cl.do(ctx, a, call{op: "posts.search", method: http.MethodGet, path: "/posts/search", query: qv, out: &posts})
	return posts, err
}

func (cl *Client) Post(ctx context.Context, a Auth, id int64) (domain.Post, error) {
	var p domain.Post
	_, err := cl.do(ctx, a, call{op: "posts.get", method: http.MethodGet, path: path("/posts/", id), out: &p})
	return p, err
}

func (cl *Client) CreatePost(ctx context.Context, a Auth, np NewPost) (domain.Post, error) {
	var p domain.Post
	_, err := cl.do(ctx, a, call{op: "posts.create", method: http.MethodPost, path: "/posts/", in: np, out: &p})
	return p, err
}

// VotePost голосует за публикацию: voteType 1 или -1.
func (cl *Client) VotePost(ctx context.Context, a Auth, id int64, voteType int) error {
	_, err := cl.do(ctx, a, call{
		op:     "posts.vote",
		method: http.MethodPost,
		path:   path("/posts/", id) + "/vote",
		in:     domain.Vote{VoteType: voteType},
	})
	return err
}

// PostVote возвращает голос пользователя за публикацию.
func (cl *Client) PostVote(ctx context.Context, a Auth, id int64) (int, error) {
	var v domain.Vote
	_, err := cl.do(ctx, a, call{op: "posts.get_vote", method: http.MethodGet, path: path("/posts/", id) + "/vote", out: &v})
	return v.VoteType, err
}

func (cl *Client) UnvotePost(ctx context.Context, a Auth, id int64) error {
	_, err := cl.do(ctx, a, call{op: "posts.unvote", method: http.MethodDelete, path: path("/posts/", id) + "/vote"})
	return err
}

// Comments возвращает комментарии публикации.
func (cl *Client) Comments(ctx context.Context, a Auth, postID int64) ([]domain.Comment, error) {
	var cs []domain.Comment
	_, err := cl.do(ctx, a, call{op: "comments.list", method: http.MethodGet, path: path("/posts/", postID) + "/comments", out: &cs})
	return cs, err
}

func (cl *Client) Comment(ctx context.Context, a Auth, id int64) (domain.Comment, error) {
	var c domain.Comment
	_, err := cl.do(ctx, a, call{op: "comments.get", method: http.MethodGet, path: path("/comments/", id), out: &c})
	return c, err
}

// CreateComment добавляет комментарий; parentID 0 - комментарий верхнего уровня.
func (cl *Client) CreateComment(ctx context.Context, a Auth, postID, parentID int64, text string) (domain.Comment, error) {
	in := struct {
		Text     string `json:"text"`
		ParentID *int64 `json:"parent_id"`
	}{Text: text}
	if parentID != 0 {
		in.ParentID = &parentID
	}
	var c domain.Comment
	_, err := cl.do(ctx, a, call{op: "comments.create", method: http.MethodPost, path: path("/posts/", postID) + "/comments", in: in, out: &c})
	return c, err
}

func (cl *Client) UpdateComment(ctx context.Context, a Auth, id int64, text string) (domain.Comment, error) {
	in := struct {
		Text string `json:"text"`
	}{Text: text}
	var c domain.Comment
	_, err := cl.do(ctx, a, call{op: "comments.update", method: http.MethodPut, path: path("/comments/", id), in: in, out: &c})
	return c, err
}

func (cl *Client) DeleteComment(ctx context.Context, a Auth, id int64) error {
	_, err := cl.do(ctx, a, call{op: "comments.delete", method: http.MethodDelete, path: path("/comments/", id)})
	return err
}

// RecentComments возвращает последние комментарии сайта.
func (cl *Client) RecentComments(ctx context.Context, a Auth, limit, skip int) ([]domain.Comment, error) {
	var cs []domain.Comment
	_, err := cl.do(ctx, a, call{op: "comments.recent", method: http.MethodGet, path: "/comments/recent", query: paged(limit, skip), out: &cs})
	return cs, err
}

func (cl *Client) VoteComment(ctx context.Context, a Auth, id int64, voteType int) error {
	_, err := cl.do(ctx, a, call{
		op:     "comments.vote",
		method: http.MethodPost,
		path:   path("/comments/", id) + "/vote",
		in:     domain.Vote{VoteType: voteType},
	})
	return err
}

func (cl *Client) UnvoteComment(ctx context.Context, a Auth, id int64) error {
	_, err := cl.do(ctx, a, call{op: "comments.unvote", method: http.MethodDelete, path: path("/comments/", id) + "/vote"})
	return err
}

// CommentVotes возвращает голоса пользователя за комментарии ids.
func (cl *Client) CommentVotes(ctx context.Context, a Auth, ids []int64) (map[int64]int, error) {
	votes := make(map[int64]int, len(ids))
	if len(ids) == 0 {
		return votes, nil
	}
	in := struct {
		CommentIDs []int64 `json:"comment_ids"`
	}{CommentIDs: ids}
	var out []domain.CommentVote
	_, err := cl.do(ctx, a, call{op: "comments.votes_bulk", method: http.MethodPost, path: "/comments/votes/bulk", in: in, out: &out})
	if err != nil {
		return votes, err
	}
	for _, v := range out {
		votes[v.CommentID] = v.VoteType
	}
	return votes, nil
}

func (cl *Client) Notifications(ctx context.Context, a Auth, limit int) ([]domain.Notification, error) {
	var ns []domain.Notification
	_, err := cl.do(ctx, a, call{op: "notifications.list", method: http.MethodGet, path: "/notifications/", query: paged(limit, 0), out: &ns})
	return ns, err
}

func (cl *Client) MarkRead(ctx context.Context, a Auth, id int64) error {
	_, err := cl.do(ctx, a, call{op: "notifications.read", method: http.MethodPut, path: path("/notifications/", id) + "/read"})
	return err
}

// UnreadCount возвращает число непрочитанных уведомлений.
func (cl *Client) UnreadCount(ctx context.Context, a Auth) (int, error) {
	var res struct {
		UnreadCount int `json:"unread_count"`
	}
	_, err := cl.do(ctx, a, call{op: "notifications.unread_count", method: http.MethodGet, path: "/notifications/unread/count", out: &res})
	return res.UnreadCount, err
}
