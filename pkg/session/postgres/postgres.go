// пакет postgres хранит сессии в БД PostgreSQL.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rtemka/hnfront/pkg/session"
)

//go:embed schema.sql
var schema string

// Postgres выполняет операции с сессиями в БД.
type Postgres struct {
	db *pgxpool.Pool
}

// New выполняет подключение, создает таблицу сессий
// и возвращает объект для взаимодействия с БД.
func New(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	p := &Postgres{db: pool}
	if err := p.exec(ctx, schema); err != nil {
		pool.Close()
		return nil, err
	}

	return p, nil
}

// Close выполняет закрытие подключения к БД.
func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}

// Get возвращает действующую сессию.
func (p *Postgres) Get(ctx context.Context, id string) (session.Session, error) {
	stmt := `
		SELECT id, token, csrf, form_token, user_id, username, expires_at
		FROM sessions
		WHERE id = $1 AND expires_at > now();`

	var s session.Session
	err := p.db.QueryRow(ctx, stmt, id).Scan(
		&s.ID, &s.Token, &s.CSRF, &s.FormToken,
		&s.UserID, &s.Username, &s.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session.Session{}, session.ErrNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	s.ExpiresAt = s.ExpiresAt.UTC()

	return s, nil
}

// Save создает или обновляет сессию.
func (p *Postgres) Save(ctx context.Context, s session.Session) error {
	stmt := `
		INSERT INTO sessions(id, token, csrf, form_token, user_id, username, expires_at)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(id) DO UPDATE SET
			token = EXCLUDED.token,
			csrf = EXCLUDED.csrf,
			form_token = EXCLUDED.form_token,
			user_id = EXCLUDED.user_id,
			username = EXCLUDED.username,
			expires_at = EXCLUDED.expires_at;`

	return p.exec(ctx, stmt, s.ID, s.Token, s.CSRF, s.FormToken, s.UserID, s.Username, s.ExpiresAt)
}

func (p *Postgres) Delete(ctx context.Context, id string) error {
	return p.exec(ctx, `DELETE FROM sessions WHERE id = $1;`, id)
}

// Purge удаляет сессии, истекшие к моменту before.
func (p *Postgres) Purge(ctx context.Context, before time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1;`, before)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// exec вспомогательная функция, выполняет
// *tx.Exec() в транзакции.
func (p *Postgres) exec(ctx context.Context, stmt string, args ...any) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err = tx.Exec(ctx, stmt, args...); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
