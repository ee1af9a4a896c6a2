// пакет domain содержит модели данных, получаемые от REST API сайта,
// и операции над деревом комментариев.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// типы публикаций.
const (
	TypeStory = "story"
	TypeAsk   = "ask"
	TypeShow  = "show"
	TypeJob   = "job"
)

// Post - модель данных публикации (ссылка или текст).
type Post struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	URL          string `json:"url,omitempty"`
	Text         string `json:"text,omitempty"`
	PostType     string `json:"post_type,omitempty"`
	Score        int    `json:"score"`
	CommentCount int    `json:"comment_count"`
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	CreatedAt    Time   `json:"created_at"`
}

// UnmarshalJSON принимает как "score", так и "points":
// разные версии API называют рейтинг по-разному.
func (p *Post) UnmarshalJSON(b []byte) error {
	type post Post
	aux := struct {
		*post
		Points *int `json:"points"`
	}{post: (*post)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	if aux.Points != nil && p.Score == 0 {
		p.Score = *aux.Points
	}
	return nil
}

// IsJob сообщает, является ли публикация вакансией.
func (p Post) IsJob() bool { return p.PostType == TypeJob }

// Comment - модель данных комментария к публикации.
type Comment struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	UserID    int64     `json:"user_id"`
	PostID    int64     `json:"post_id"`
	ParentID  int64     `json:"parent_id,omitempty"`
	CreatedAt Time      `json:"created_at"`
	Username  string    `json:"username"`
	Score     int       `json:"score,omitempty"`
	IsDeleted bool      `json:"is_deleted,omitempty"`
	PostTitle string    `json:"post_title,omitempty"`
	Replies   []Comment `json:"replies,omitempty"`

	// навигация по ветке, заполняется Navigate.
	RootID int64 `json:"root_id,omitempty"`
	PrevID int64 `json:"prev_id,omitempty"`
	NextID int64 `json:"next_id,omitempty"`
}

// Notification - уведомление пользователя.
type Notification struct {
	ID            int64  `json:"id"`
	UserID        int64  `json:"user_id"`
	ActorID       int64  `json:"actor_id"`
	ActorUsername string `json:"actor_username"`
	Type          string `json:"type"`
	PostID        int64  `json:"post_id,omitempty"`
	CommentID     int64  `json:"comment_id,omitempty"`
	Message       string `json:"message"`
	Read          bool   `json:"read"`
	CreatedAt     Time   `json:"created_at"`
}

// User - пользователь сайта.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

// Vote - голос пользователя: 1, -1 или 0, если голоса нет.
type Vote struct {
	VoteType int `json:"vote_type"`
}

// CommentVote - голос пользователя за комментарий.
type CommentVote struct {
	CommentID int64 `json:"comment_id"`
	VoteType  int   `json:"vote_type"`
}

// AdjustScore возвращает рейтинг после того, как голос
// пользователя сменился с prev на next.
func AdjustScore(score, prev, next int) int {
	return score + next - prev
}

// ToTree - возвращает дерево комментариев.
// Комментарии, родитель которых отсутствует в списке,
// становятся корневыми. Так же поступаем с циклами родителей.
func ToTree(comments []Comment) []Comment {
	ids := make(map[int64]bool, len(comments))
	for i := range comments {
		ids[comments[i].ID] = true
	}

	children := make(map[int64][]int, len(comments))
	tops := make([]int, 0, len(comments))

	for i := range comments {
		p := comments[i].ParentID
		if p == 0 || p == comments[i].ID || !ids[p] {
			tops = append(tops, i)
			continue
		}
		children[p] = append(children[p], i)
	}

	seen := make(map[int]bool, len(comments))
	out := make([]Comment, 0, len(tops))
	for _, i := range tops {
		out = append(out, dig(comments, i, children, seen))
	}
	// комментарии из цикла родителей (1 -> 2 -> 1) не достижимы
	// из корней, первый из них становится корневым.
	for i := range comments {
		if !seen[i] {
			out = append(out, dig(comments, i, children, seen))
		}
	}

	return out
}

func dig(comments []Comment, i int, children map[int64][]int, seen map[int]bool) Comment {
	seen[i] = true
	c := comments[i]
	c.Replies = nil
	for _, j := range children[c.ID] {
		if seen[j] {
			continue
		}
		c.Replies = append(c.Replies, dig(comments, j, children, seen))
	}
	return c
}

// Flatten раскладывает дерево комментариев в список (в порядке обхода в глубину).
func Flatten(tree []Comment) []Comment {
	var out []Comment
	var walk func([]Comment)
	walk = func(cs []Comment) {
		for i := range cs {
			c := cs[i]
			c.Replies = nil
			out = append(out, c)
			walk(cs[i].Replies)
		}
	}
	walk(tree)
	return out
}

// Thread приводит ответ API (плоский список или дерево)
// к дереву с заполненной навигацией.
func Thread(comments []Comment) []Comment {
	return Navigate(ToTree(Flatten(comments)))
}

// Navigate заполняет RootID, PrevID и NextID у всех узлов дерева.
func Navigate(tree []Comment) []Comment {
	navigate(tree, 0)
	return tree
}

func navigate(siblings []Comment, root int64) {
	for i := range siblings {
		c := &siblings[i]
		c.RootID = root
		c.PrevID, c.NextID = 0, 0
		if i > 0 {
			c.PrevID = siblings[i-1].ID
		}
		if i < len(siblings)-1 {
			c.NextID = siblings[i+1].ID
		}
		r := root
		if r == 0 {
			r = c.ID
		}
		navigate(c.Replies, r)
	}
}

// Find ищет в дереве комментарий по id и возвращает его вместе с ответами.
func Find(tree []Comment, id int64) (Comment, bool) {
	for i := range tree {
		if tree[i].ID == id {
			return tree[i], true
		}
		if c, ok := Find(tree[i].Replies, id); ok {
			return c, true
		}
	}
	return Comment{}, false
}

// Descendants возвращает количество всех ответов в ветке комментария.
func Descendants(c Comment) int {
	n := len(c.Replies)
	for i := range c.Replies {
		n += Descendants(c.Replies[i])
	}
	return n
}

// Time - время в ответах API. Бэкенд может отдавать время
// без часового пояса, такое время считается UTC.
type Time struct {
	time.Time
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

func (t *Time) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}

	var pt time.Time
	var err error

	for i := range layouts {
		pt, err = time.Parse(layouts[i], s)
		if err == nil {
			break
		}
	}
	t.Time = pt.UTC()

	return err
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
