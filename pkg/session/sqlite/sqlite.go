// пакет sqlite хранит сессии в БД SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rtemka/hnfront/pkg/session"
)

//go:embed migrations/*.sql
var migrations embed.FS

// row - строка таблицы sessions. Время хранится в UNIX-секундах.
type row struct {
	ID        string `db:"id"`
	Token     string `db:"token"`
	CSRF      string `db:"csrf"`
	FormToken string `db:"form_token"`
	UserID    int64  `db:"user_id"`
	Username  string `db:"username"`
	ExpiresAt int64  `db:"expires_at"`
}

func toRow(s session.Session) row {
	return row{
		ID:        s.ID,
		Token:     s.Token,
		CSRF:      s.CSRF,
		FormToken: s.FormToken,
		UserID:    s.UserID,
		Username:  s.Username,
		ExpiresAt: s.ExpiresAt.Unix(),
	}
}

func (r row) session() session.Session {
	return session.Session{
		ID:        r.ID,
		Token:     r.Token,
		CSRF:      r.CSRF,
		FormToken: r.FormToken,
		UserID:    r.UserID,
		Username:  r.Username,
		ExpiresAt: time.Unix(r.ExpiresAt, 0).UTC(),
	}
}

// SQLite выполняет операции с сессиями в БД.
type SQLite struct {
	// это поле экспортируемое, чтобы пользователь
	// мог установить параметры подключения.
	DB *sqlx.DB
}

// New производит подключение к [*SQLite] БД и применяет миграции.
func New(connstr string) (*SQLite, error) {
	db, err := sqlx.Connect("sqlite3", connstr)
	if err != nil {
		return nil, err
	}
	// SQLite не допускает параллельной записи.
	db.SetMaxOpenConns(1)

	if err := migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{DB: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.Up(db, "migrations")
}

// Close закрывает подключение к БД.
func (l *SQLite) Close() error {
	return l.DB.Close()
}

// Get возвращает действующую сессию.
func (l *SQLite) Get(ctx context.Context, id string) (session.Session, error) {
	stmt := `
		SELECT id, token, csrf, form_token, user_id, username, expires_at
		FROM sessions
		WHERE id = ? AND expires_at > ?;`

	var r row
	err := l.DB.GetContext(ctx, &r, stmt, id, time.Now().Unix())
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}

	return r.session(), nil
}

// Save создает или обновляет сессию.
func (l *SQLite) Save(ctx context.Context, s session.Session) error {
	stmt := `
		INSERT INTO sessions(id, token, csrf, form_token, user_id, username, expires_at)
		VALUES(:id, :token, :csrf, :form_token, :user_id, :username, :expires_at)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			csrf = excluded.csrf,
			form_token = excluded.form_token,
			user_id = excluded.user_id,
			username = excluded.username,
			expires_at = excluded.expires_at;`

	_, err := l.DB.NamedExecContext(ctx, stmt, toRow(s))
	return err
}

func (l *SQLite) Delete(ctx context.Context, id string) error {
	_, err := l.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?;`, id)
	return err
}

// Purge удаляет сессии, истекшие к моменту before.
func (l *SQLite) Purge(ctx context.Context, before time.Time) (int64, error) {
	res, err := l.DB.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?;`, before.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
