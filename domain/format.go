package domain

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	strip "github.com/grokify/html-strip-tags-go"
)

// DeletedText показывается вместо текста удаленного комментария.
const DeletedText = "comment has been deleted"

// Hostname возвращает имя хоста из ссылки публикации.
// Для пустой или неразборчивой ссылки возвращается "".
func Hostname(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Hostname()
}

// TimeAgo - возраст записи в виде "5 minutes ago".
func TimeAgo(t time.Time) string {
	return timeAgo(t, time.Now())
}

func timeAgo(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	s := int(d / time.Second)
	if s < 60 {
		return ago(s, "second")
	}
	m := s / 60
	if m < 60 {
		return ago(m, "minute")
	}
	h := m / 60
	if h < 24 {
		return ago(h, "hour")
	}
	return ago(h/24, "day")
}

func ago(n int, unit string) string {
	if n != 1 {
		unit += "s"
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}

// ISOTime - время для атрибута title.
func ISOTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func PointsLabel(score int) string {
	if score == 1 {
		return "point"
	}
	return "points"
}

func CommentsLabel(count int) string {
	if count == 1 {
		return "comment"
	}
	return "comments"
}

// CommentsLink - подпись ссылки на обсуждение публикации.
func CommentsLink(count int) string {
	if count > 0 {
		return fmt.Sprintf("%d %s", count, CommentsLabel(count))
	}
	return "discuss"
}

// DisplayText - текст комментария с учетом удаления.
func DisplayText(c Comment) string {
	if c.IsDeleted {
		return DeletedText
	}
	return c.Text
}

// PlainText убирает из текста html-теги и сущности.
func PlainText(s string) string {
	return strings.TrimSpace(html.UnescapeString(strip.StripTags(s)))
}

// Excerpt - начало текста длиной не более n символов.
func Excerpt(s string, n int) string {
	s = PlainText(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "..."
}
