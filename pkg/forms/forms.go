// пакет forms проверяет данные, введенные пользователем в формы.
package forms

import (
	"errors"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ошибки проверки. Текст ошибок показывается пользователю.
var (
	ErrEmptyText    = errors.New("Please enter some text.")
	ErrNoTitle      = errors.New("Please enter a title.")
	ErrNoContent    = errors.New("Please provide either a URL or text content.")
	ErrBadURL       = errors.New("Please enter a valid http(s) URL.")
	ErrShortPass    = errors.New("Password must be at least 8 characters.")
	ErrWeakPass     = errors.New("Password must include letters and numbers.")
	ErrNoUsername   = errors.New("Please enter a username.")
	ErrBadUsername  = errors.New("Username may contain only letters, digits, '-' and '_'.")
	ErrNoCredential = errors.New("Please enter username and password.")
)

// MinPassword - минимальная длина пароля.
const MinPassword = 8

// MaxTitle - максимальная длина заголовка.
const MaxTitle = 80

// Text проверяет текст комментария и возвращает его без
// пробелов по краям.
func Text(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrEmptyText
	}
	return s, nil
}

// Submission - форма новой публикации.
type Submission struct {
	Title string
	URL   string
	Text  string
}

// Submit проверяет форму публикации. Нужна ссылка или текст.
func Submit(f Submission) (Submission, error) {
	f.Title = strings.TrimSpace(f.Title)
	f.URL = strings.TrimSpace(f.URL)
	f.Text = strings.TrimSpace(f.Text)

	if f.Title == "" {
		return f, ErrNoTitle
	}
	if utf8.RuneCountInString(f.Title) > MaxTitle {
		return f, errors.New("Title must be at most 80 characters.")
	}
	if f.URL == "" && f.Text == "" {
		return f, ErrNoContent
	}
	if f.URL != "" {
		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return f, ErrBadURL
		}
	}
	return f, nil
}

// Password проверяет сложность пароля.
func Password(p string) error {
	if utf8.RuneCountInString(p) < MinPassword {
		return ErrShortPass
	}
	var letter, digit bool
	for _, r := range p {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !letter || !digit {
		return ErrWeakPass
	}
	return nil
}

// Username проверяет имя пользователя.
func Username(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrNoUsername
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return s, ErrBadUsername
		}
	}
	return s, nil
}

// Credentials проверяет форму входа.
func Credentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return username, ErrNoCredential
	}
	return username, nil
}

// SafeNext возвращает путь для перехода после входа. Допускаются
// только пути этого сайта: "/..." но не "//...". Иначе - def.
// Управляющие символы браузер выбрасывает из адреса, поэтому
// "/\t/evil.com" тоже отклоняется.
func SafeNext(next, def string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") ||
		strings.HasPrefix(next, "/\\") || strings.IndexFunc(next, unicode.IsControl) >= 0 {
		return def
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return def
	}
	return next
}
