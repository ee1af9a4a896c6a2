// пакет session описывает серверные сессии пользователей.
// Браузер хранит только id сессии, токены API остаются на сервере.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound - сессия не найдена или истекла.
var ErrNotFound = errors.New("session not found")

// CookieName - имя cookie с id сессии.
const CookieName = "sid"

// Session - модель данных сессии.
type Session struct {
	ID        string    `db:"id"`
	Token     string    `db:"token"`      // токен доступа к API
	CSRF      string    `db:"csrf"`       // CSRF-токен API
	FormToken string    `db:"form_token"` // токен наших форм и ссылок голосования
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	ExpiresAt time.Time `db:"expires_at"`
}

// New возвращает новую сессию со случайными id и токеном форм.
func New(ttl time.Duration) Session {
	return Session{
		ID:        uuid.NewString(),
		FormToken: uuid.NewString(),
		ExpiresAt: time.Now().Add(ttl).UTC().Truncate(time.Second),
	}
}

// Expired сообщает, истекла ли сессия к моменту now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// LoggedIn сообщает, есть ли у сессии токен API.
func (s Session) LoggedIn() bool {
	return s.Token != ""
}

// Store - контракт на хранение сессий.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)        // Получить действующую сессию.
	Save(ctx context.Context, s Session) error                  // Создать или обновить сессию.
	Delete(ctx context.Context, id string) error                // Удалить сессию.
	Purge(ctx context.Context, before time.Time) (int64, error) // Удалить истекшие к моменту before.
	Close() error                                               // Закрыть хранилище.
}
